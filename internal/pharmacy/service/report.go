package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/pharmaflow/pharmacy-backend/internal/pharmacy/repository"
	"github.com/pharmaflow/pharmacy-backend/pkg/errors"
	"github.com/pharmaflow/pharmacy-backend/pkg/logger"
)

// GeneralItemsBucket groups rows whose identity has no chemical name
// (dressing items, suture kits and other non-pharmaceutical consumables).
const GeneralItemsBucket = "General Items"

// ReportRow is one brand/dose/expiry line of the monthly report. Daily
// always has one cell per calendar day of the month; days without recorded
// usage hold zero.
type ReportRow struct {
	MedicineForm string    `json:"medicine_form"`
	BrandName    string    `json:"brand_name"`
	DoseVolume   *string   `json:"dose_volume,omitempty"`
	ExpiryDate   time.Time `json:"expiry_date"`
	Daily        []int     `json:"daily"`
	MonthlyTotal int       `json:"monthly_total"`
}

// ReportSection holds the rows for one chemical name.
type ReportSection struct {
	ChemicalName string       `json:"chemical_name"`
	Rows         []*ReportRow `json:"rows"`
}

// MonthlyReport is the dense usage report for one calendar month.
type MonthlyReport struct {
	Year     int              `json:"year"`
	Month    time.Month       `json:"month"`
	Days     int              `json:"days"`
	Sections []*ReportSection `json:"sections"`
}

// ReportService builds monthly usage reports from the daily aggregates.
type ReportService struct {
	stockRepo *repository.StockRepository
	usageRepo *repository.DailyUsageRepository
	logger    *logger.Logger
}

// NewReportService creates a new report service
func NewReportService(stockRepo *repository.StockRepository, usageRepo *repository.DailyUsageRepository, log *logger.Logger) *ReportService {
	return &ReportService{stockRepo: stockRepo, usageRepo: usageRepo, logger: log}
}

// MonthlyUsage expands the month's sparse daily aggregates into a dense
// per-day matrix. Every identity known to the system appears, whether or
// not it saw any usage that month: known means present in active stock or
// in the month's usage records. A month with zero activity still yields
// one all-zero row per active batch.
func (s *ReportService) MonthlyUsage(ctx context.Context, year int, month time.Month) (*MonthlyReport, error) {
	if month < time.January || month > time.December {
		return nil, errors.Validation(map[string]string{
			"month": "must be between 1 and 12",
		})
	}
	if year < 1900 || year > 9999 {
		return nil, errors.Validation(map[string]string{
			"year": "must be a four-digit year",
		})
	}

	batches, err := s.stockRepo.ListActive(ctx, "")
	if err != nil {
		return nil, err
	}

	usage, err := s.usageRepo.ListMonth(ctx, year, month)
	if err != nil {
		return nil, err
	}

	return buildMonthlyReport(year, month, batches, usage), nil
}

// buildMonthlyReport is the pure sparse-to-dense assembly. Split out so the
// expansion logic is testable without a database.
func buildMonthlyReport(year int, month time.Month, batches []*repository.StockBatch, usage []*repository.DailyUsageRecord) *MonthlyReport {
	days := daysInMonth(year, month)
	rows := make(map[string]*ReportRow)
	chemicals := make(map[string]string)

	rowFor := func(id repository.BatchIdentity) *ReportRow {
		key := identityKey(id)
		row, ok := rows[key]
		if !ok {
			row = &ReportRow{
				MedicineForm: id.MedicineForm,
				BrandName:    id.BrandName,
				DoseVolume:   id.DoseVolume,
				ExpiryDate:   id.ExpiryDate,
				Daily:        make([]int, days),
			}
			rows[key] = row
			chemicals[key] = chemicalBucket(id.ChemicalName)
		}
		return row
	}

	for _, batch := range batches {
		rowFor(batch.BatchIdentity)
	}
	for _, record := range usage {
		row := rowFor(record.BatchIdentity)
		day := record.UsageDate.Day()
		if day >= 1 && day <= days {
			row.Daily[day-1] += record.Quantity
			row.MonthlyTotal += record.Quantity
		}
	}

	sections := make(map[string]*ReportSection)
	for key, row := range rows {
		bucket := chemicals[key]
		section, ok := sections[bucket]
		if !ok {
			section = &ReportSection{ChemicalName: bucket}
			sections[bucket] = section
		}
		section.Rows = append(section.Rows, row)
	}

	report := &MonthlyReport{
		Year:     year,
		Month:    month,
		Days:     days,
		Sections: make([]*ReportSection, 0, len(sections)),
	}
	for _, section := range sections {
		sort.Slice(section.Rows, func(i, j int) bool {
			a, b := section.Rows[i], section.Rows[j]
			if a.BrandName != b.BrandName {
				return a.BrandName < b.BrandName
			}
			if av, bv := derefOrEmpty(a.DoseVolume), derefOrEmpty(b.DoseVolume); av != bv {
				return av < bv
			}
			return a.ExpiryDate.Before(b.ExpiryDate)
		})
		report.Sections = append(report.Sections, section)
	}
	// General Items sorts after the named chemicals.
	sort.Slice(report.Sections, func(i, j int) bool {
		a, b := report.Sections[i], report.Sections[j]
		if (a.ChemicalName == GeneralItemsBucket) != (b.ChemicalName == GeneralItemsBucket) {
			return b.ChemicalName == GeneralItemsBucket
		}
		return a.ChemicalName < b.ChemicalName
	})

	return report
}

func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func chemicalBucket(chemical *string) string {
	if chemical == nil || *chemical == "" {
		return GeneralItemsBucket
	}
	return *chemical
}

func derefOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func identityKey(id repository.BatchIdentity) string {
	return fmt.Sprintf("%s|%s|%s|%s|%s",
		id.MedicineForm,
		id.BrandName,
		derefOrEmpty(id.ChemicalName),
		derefOrEmpty(id.DoseVolume),
		id.ExpiryDate.Format("2006-01-02"),
	)
}
