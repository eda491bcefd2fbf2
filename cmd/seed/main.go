package main

import (
	"fmt"
	"log"
	"net/mail"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/ikkim/storerating-backend/config"
	"github.com/ikkim/storerating-backend/internal/app/model"
	"github.com/ikkim/storerating-backend/internal/app/repository"
	"github.com/ikkim/storerating-backend/internal/db"
	"github.com/xuri/excelize/v2"
)

const batchSize = 500

func main() {
	if len(os.Args) < 2 {
		log.Fatal("Usage: go run cmd/seed/main.go <xlsx_file_path> [--yes]")
	}

	filePath := os.Args[1]
	assumeYes := len(os.Args) > 2 && os.Args[2] == "--yes"

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	if err := db.Initialize(&cfg.Database); err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		log.Fatal("Failed to run migrations:", err)
	}

	created, err := db.EnsureAdmin(db.GetDB(), &cfg.Admin)
	if err != nil {
		log.Fatal("Failed to ensure admin account:", err)
	}
	if created {
		fmt.Printf("Created admin account: %s\n", cfg.Admin.Email)
	}

	storeRepo := repository.NewStoreRepository(db.GetDB())

	fmt.Printf("Reading XLSX file: %s\n", filePath)
	stores, skipped, err := readStoresFromXLSX(filePath)
	if err != nil {
		log.Fatal("Failed to read XLSX:", err)
	}

	fmt.Printf("Stores to import: %d (skipped rows: %d)\n", len(stores), skipped)

	if !assumeYes {
		fmt.Print("Do you want to proceed with the import? (yes/no): ")
		var confirm string
		fmt.Scanln(&confirm)
		if confirm != "yes" && confirm != "y" {
			fmt.Println("Import cancelled.")
			return
		}
	}

	// Stores whose email already exists are left untouched
	if err := storeRepo.BulkCreate(stores, batchSize); err != nil {
		log.Fatal("Failed to bulk create stores:", err)
	}

	fmt.Println("Import completed successfully!")
}

// readStoresFromXLSX reads name, email and address from the first sheet.
// The first row is a header. Invalid or duplicate rows are counted as skipped.
func readStoresFromXLSX(filePath string) ([]model.Store, int, error) {
	f, err := excelize.OpenFile(filePath)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open XLSX file: %w", err)
	}
	defer f.Close()

	sheetName := f.GetSheetName(0)
	if sheetName == "" {
		return nil, 0, fmt.Errorf("no sheets found in XLSX file")
	}

	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read rows: %w", err)
	}
	if len(rows) == 0 {
		return nil, 0, fmt.Errorf("no data found in XLSX file")
	}

	var stores []model.Store
	seen := make(map[string]bool)
	skipped := 0

	for _, row := range rows[1:] {
		store, ok := storeFromRow(row)
		if !ok || seen[store.Email] {
			skipped++
			continue
		}
		seen[store.Email] = true
		stores = append(stores, store)
	}

	return stores, skipped, nil
}

func storeFromRow(row []string) (model.Store, bool) {
	if len(row) < 3 {
		return model.Store{}, false
	}

	name := strings.TrimSpace(row[0])
	email := model.NormalizeEmail(row[1])
	address := strings.TrimSpace(row[2])

	if name == "" || utf8.RuneCountInString(name) > 255 {
		return model.Store{}, false
	}
	if address == "" || utf8.RuneCountInString(address) > 400 {
		return model.Store{}, false
	}
	if _, err := mail.ParseAddress(email); err != nil || len(email) > 255 {
		return model.Store{}, false
	}

	return model.Store{Name: name, Email: email, Address: address}, true
}
