package service

import (
	"context"
	"fmt"
	"time"

	"github.com/ikkim/storerating-backend/internal/app/model"
	"github.com/ikkim/storerating-backend/internal/app/repository"
	apperrors "github.com/ikkim/storerating-backend/internal/errors"
	"github.com/ikkim/storerating-backend/pkg/logger"
	"github.com/xuri/excelize/v2"
)

const (
	ReportContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	storesSheet  = "Stores"
	summarySheet = "Summary"

	reportFolder      = "reports"
	reportDownloadTTL = 15 * time.Minute
)

var storeReportHeader = []interface{}{
	"ID", "Name", "Email", "Address", "Owner", "Owner Email", "Average Rating", "Total Ratings", "Created At",
}

// ReportUploader persists report files and hands out download links
type ReportUploader interface {
	Upload(ctx context.Context, key, contentType string, body []byte) error
	PresignDownload(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// KeyFunc names a new object under folder
type KeyFunc func(folder, ext string) string

type ArchivedReport struct {
	Key       string    `json:"key"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

type ReportService interface {
	StoreReport() ([]byte, error)
	ArchiveStoreReport(ctx context.Context) (*ArchivedReport, error)
}

type reportService struct {
	storeRepo repository.StoreRepository
	dashboard DashboardService
	uploader  ReportUploader
	newKey    KeyFunc
	now       func() time.Time
}

// NewReportService builds the report service. uploader may be nil, which
// disables archiving.
func NewReportService(
	storeRepo repository.StoreRepository,
	dashboard DashboardService,
	uploader ReportUploader,
	newKey KeyFunc,
) ReportService {
	return &reportService{
		storeRepo: storeRepo,
		dashboard: dashboard,
		uploader:  uploader,
		newKey:    newKey,
		now:       time.Now,
	}
}

// StoreReport renders every store and the dashboard counts as an XLSX workbook
func (s *reportService) StoreReport() ([]byte, error) {
	stores, err := s.storeRepo.FindAll(repository.StoreFilter{SortBy: "name", SortOrder: repository.SortAsc})
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	summary, err := s.dashboard.Dashboard()
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", storesSheet); err != nil {
		return nil, s.renderFailed(err)
	}
	if err := writeStoresSheet(f, stores); err != nil {
		return nil, s.renderFailed(err)
	}

	if _, err := f.NewSheet(summarySheet); err != nil {
		return nil, s.renderFailed(err)
	}
	if err := writeSummarySheet(f, summary, s.now()); err != nil {
		return nil, s.renderFailed(err)
	}
	f.SetActiveSheet(0)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, s.renderFailed(err)
	}

	logger.Info("Store report generated", map[string]interface{}{
		"stores": len(stores),
		"bytes":  buf.Len(),
	})
	return buf.Bytes(), nil
}

func (s *reportService) ArchiveStoreReport(ctx context.Context) (*ArchivedReport, error) {
	if s.uploader == nil {
		return nil, ErrStorageUnavailable
	}

	body, err := s.StoreReport()
	if err != nil {
		return nil, err
	}

	key := s.newKey(reportFolder, ".xlsx")
	if err := s.uploader.Upload(ctx, key, ReportContentType, body); err != nil {
		logger.Error("Failed to archive store report", err, map[string]interface{}{
			"key": key,
		})
		return nil, apperrors.New(apperrors.KindInternal, apperrors.InternalExternalAPI, "Failed to archive report").Wrap(err)
	}

	url, err := s.uploader.PresignDownload(ctx, key, reportDownloadTTL)
	if err != nil {
		return nil, apperrors.New(apperrors.KindInternal, apperrors.InternalExternalAPI, "Failed to sign report URL").Wrap(err)
	}

	logger.Info("Store report archived", map[string]interface{}{
		"key": key,
	})
	return &ArchivedReport{
		Key:       key,
		URL:       url,
		ExpiresAt: s.now().Add(reportDownloadTTL),
	}, nil
}

func (s *reportService) renderFailed(err error) error {
	logger.Error("Failed to render store report", err)
	return apperrors.Internal(err)
}

func writeStoresSheet(f *excelize.File, stores []model.Store) error {
	if err := f.SetSheetRow(storesSheet, "A1", &storeReportHeader); err != nil {
		return err
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	if err := f.SetRowStyle(storesSheet, 1, 1, bold); err != nil {
		return err
	}

	for i, store := range stores {
		var ownerName, ownerEmail string
		if store.Owner != nil {
			ownerName, ownerEmail = store.Owner.Name, store.Owner.Email
		}
		row := []interface{}{
			store.ID,
			store.Name,
			store.Email,
			store.Address,
			ownerName,
			ownerEmail,
			store.AverageRating,
			store.TotalRatings,
			store.CreatedAt.UTC().Format(time.RFC3339),
		}

		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(storesSheet, cell, &row); err != nil {
			return err
		}
	}

	return f.SetColWidth(storesSheet, "B", "D", 32)
}

func writeSummarySheet(f *excelize.File, d *Dashboard, generatedAt time.Time) error {
	rows := [][]interface{}{
		{"Metric", "Value"},
		{"Generated At", generatedAt.UTC().Format(time.RFC3339)},
		{"Total Users", d.Users.Total},
		{"Recent Signups (30d)", d.Users.RecentSignups},
	}
	for _, role := range model.AllRoles {
		rows = append(rows, []interface{}{fmt.Sprintf("Users (%s)", role), d.Users.ByRole[role]})
	}
	rows = append(rows,
		[]interface{}{"Total Stores", d.Stores.Total},
		[]interface{}{"Total Ratings", d.Ratings.Total},
		[]interface{}{"Recent Ratings (30d)", d.Ratings.Recent},
	)

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(summarySheet, cell, &row); err != nil {
			return err
		}
	}
	return f.SetColWidth(summarySheet, "A", "A", 24)
}
