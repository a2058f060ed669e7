package service

import (
	"testing"
	"time"

	"github.com/pharmaflow/pharmacy-backend/internal/pharmacy/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(s string) *string {
	return &s
}

func day(year int, month time.Month, d int) time.Time {
	return time.Date(year, month, d, 0, 0, 0, 0, time.UTC)
}

func testIdentity(brand string, chemical *string) repository.BatchIdentity {
	return repository.BatchIdentity{
		MedicineForm: repository.FormTablet,
		BrandName:    brand,
		ChemicalName: chemical,
		DoseVolume:   ptr("500mg"),
		ExpiryDate:   day(2026, time.December, 1),
	}
}

func findSection(t *testing.T, report *MonthlyReport, chemical string) *ReportSection {
	t.Helper()
	for _, s := range report.Sections {
		if s.ChemicalName == chemical {
			return s
		}
	}
	t.Fatalf("section %q not found", chemical)
	return nil
}

func TestBuildMonthlyReport_DenseExpansion(t *testing.T) {
	identity := testIdentity("Calpol", ptr("Paracetamol"))

	batches := []*repository.StockBatch{
		{ID: "b1", BatchIdentity: identity, Quantity: 120, TotalQuantity: 200},
	}
	usage := []*repository.DailyUsageRecord{
		{BatchIdentity: identity, UsageDate: day(2026, time.January, 10), Quantity: 80},
		{BatchIdentity: identity, UsageDate: day(2026, time.January, 25), Quantity: 15},
	}

	report := buildMonthlyReport(2026, time.January, batches, usage)

	assert.Equal(t, 31, report.Days)
	require.Len(t, report.Sections, 1)

	section := findSection(t, report, "Paracetamol")
	require.Len(t, section.Rows, 1)

	row := section.Rows[0]
	require.Len(t, row.Daily, 31)
	assert.Equal(t, 80, row.Daily[9])
	assert.Equal(t, 15, row.Daily[24])
	assert.Equal(t, 95, row.MonthlyTotal)

	// Every other day-cell is zero.
	for i, qty := range row.Daily {
		if i != 9 && i != 24 {
			assert.Zero(t, qty, "day %d", i+1)
		}
	}
}

func TestBuildMonthlyReport_ZeroActivityMonthStillListsKnownItems(t *testing.T) {
	batches := []*repository.StockBatch{
		{ID: "b1", BatchIdentity: testIdentity("Calpol", ptr("Paracetamol")), Quantity: 100, TotalQuantity: 100},
		{ID: "b2", BatchIdentity: testIdentity("Brufen", ptr("Ibuprofen")), Quantity: 40, TotalQuantity: 40},
	}

	report := buildMonthlyReport(2026, time.January, batches, nil)

	require.Len(t, report.Sections, 2)
	for _, section := range report.Sections {
		require.Len(t, section.Rows, 1)
		row := section.Rows[0]
		assert.Len(t, row.Daily, 31)
		assert.Zero(t, row.MonthlyTotal)
	}
}

func TestBuildMonthlyReport_NilChemicalGoesToGeneralItems(t *testing.T) {
	gauze := repository.BatchIdentity{
		MedicineForm: repository.FormDressing,
		BrandName:    "Gauze Roll",
		ExpiryDate:   day(2027, time.June, 1),
	}
	batches := []*repository.StockBatch{
		{ID: "b1", BatchIdentity: gauze, Quantity: 30, TotalQuantity: 30},
		{ID: "b2", BatchIdentity: testIdentity("Calpol", ptr("Paracetamol")), Quantity: 10, TotalQuantity: 10},
	}

	report := buildMonthlyReport(2026, time.February, batches, nil)

	require.Len(t, report.Sections, 2)
	general := findSection(t, report, GeneralItemsBucket)
	require.Len(t, general.Rows, 1)
	assert.Equal(t, "Gauze Roll", general.Rows[0].BrandName)

	// General Items always sorts last.
	assert.Equal(t, GeneralItemsBucket, report.Sections[len(report.Sections)-1].ChemicalName)
}

func TestBuildMonthlyReport_UsageOnlyIdentityStillAppears(t *testing.T) {
	// The batch was consumed to zero and archived during the month: it is
	// gone from active stock but its usage must still report.
	identity := testIdentity("Calpol", ptr("Paracetamol"))
	usage := []*repository.DailyUsageRecord{
		{BatchIdentity: identity, UsageDate: day(2026, time.January, 3), Quantity: 200},
	}

	report := buildMonthlyReport(2026, time.January, nil, usage)

	section := findSection(t, report, "Paracetamol")
	require.Len(t, section.Rows, 1)
	assert.Equal(t, 200, section.Rows[0].MonthlyTotal)
}

func TestBuildMonthlyReport_FebruaryLeapYear(t *testing.T) {
	report := buildMonthlyReport(2028, time.February, nil, nil)
	assert.Equal(t, 29, report.Days)

	report = buildMonthlyReport(2026, time.February, nil, nil)
	assert.Equal(t, 28, report.Days)
}

func TestBuildMonthlyReport_RowsSortedWithinSection(t *testing.T) {
	chem := ptr("Paracetamol")
	early := testIdentity("Calpol", chem)
	late := testIdentity("Calpol", chem)
	late.ExpiryDate = day(2027, time.June, 1)
	other := testIdentity("Adol", chem)

	batches := []*repository.StockBatch{
		{ID: "b1", BatchIdentity: late, Quantity: 1, TotalQuantity: 1},
		{ID: "b2", BatchIdentity: early, Quantity: 1, TotalQuantity: 1},
		{ID: "b3", BatchIdentity: other, Quantity: 1, TotalQuantity: 1},
	}

	report := buildMonthlyReport(2026, time.March, batches, nil)
	section := findSection(t, report, "Paracetamol")
	require.Len(t, section.Rows, 3)
	assert.Equal(t, "Adol", section.Rows[0].BrandName)
	assert.Equal(t, early.ExpiryDate, section.Rows[1].ExpiryDate)
	assert.Equal(t, late.ExpiryDate, section.Rows[2].ExpiryDate)
}

func TestExpiryWindow(t *testing.T) {
	from, until := expiryWindow(day(2026, time.January, 18))
	assert.Equal(t, day(2026, time.January, 1), from)
	assert.Equal(t, day(2026, time.March, 1), until)

	// Year boundary.
	from, until = expiryWindow(day(2026, time.December, 30))
	assert.Equal(t, day(2026, time.December, 1), from)
	assert.Equal(t, day(2027, time.February, 1), until)
}
