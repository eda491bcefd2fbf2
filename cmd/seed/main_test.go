package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func writeWorkbook(t *testing.T, rows [][]interface{}) string {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}

	path := filepath.Join(t.TempDir(), "stores.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func TestReadStoresFromXLSX(t *testing.T) {
	path := writeWorkbook(t, [][]interface{}{
		{"Name", "Email", "Address"},
		{"Corner Bakery", " Bakery@Example.com ", "1 Main Street"},
		{"Duplicate Bakery", "bakery@example.com", "2 Main Street"},
		{"No Address", "noaddress@example.com", ""},
		{"Bad Email", "not-an-email", "3 Main Street"},
		{"Short row"},
		{"Arcade", "arcade@example.com", "4 Main Street"},
	})

	stores, skipped, err := readStoresFromXLSX(path)
	require.NoError(t, err)

	require.Len(t, stores, 2)
	assert.Equal(t, "Corner Bakery", stores[0].Name)
	assert.Equal(t, "bakery@example.com", stores[0].Email)
	assert.Equal(t, "Arcade", stores[1].Name)
	assert.Equal(t, 4, skipped)
}

func TestReadStoresFromXLSX_MissingFile(t *testing.T) {
	_, _, err := readStoresFromXLSX(filepath.Join(t.TempDir(), "missing.xlsx"))
	assert.Error(t, err)
}
