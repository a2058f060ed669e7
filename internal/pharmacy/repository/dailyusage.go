package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pharmaflow/pharmacy-backend/pkg/database"
)

// DailyUsageRecord aggregates the quantity consumed for one batch identity
// on one calendar day. Its quantity only ever grows, by atomic add: repeated
// consumption on the same identity and day accumulates instead of
// overwriting.
type DailyUsageRecord struct {
	ID string `db:"id" json:"id"`
	BatchIdentity
	UsageDate time.Time `db:"usage_date" json:"usage_date"`
	Quantity  int       `db:"quantity" json:"quantity"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// DailyUsageRepository handles per-day consumption aggregates
type DailyUsageRepository struct {
	db *database.DB
}

// NewDailyUsageRepository creates a new daily usage repository
func NewDailyUsageRepository(db *database.DB) *DailyUsageRepository {
	return &DailyUsageRepository{db: db}
}

const addUsageQuery = `
	INSERT INTO pharmacy_daily_usage (
		medicine_form, brand_name, chemical_name, dose_volume, expiry_date,
		usage_date, quantity
	) VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (medicine_form, brand_name, (COALESCE(chemical_name, '')), (COALESCE(dose_volume, '')), expiry_date, usage_date)
	DO UPDATE SET
		quantity = pharmacy_daily_usage.quantity + EXCLUDED.quantity,
		updated_at = NOW()
	RETURNING quantity
`

// AddTx atomically adds delta to the usage record for (identity, date),
// creating the record with delta if absent. Returns the accumulated
// quantity for the day.
func (r *DailyUsageRepository) AddTx(ctx context.Context, tx *sqlx.Tx, identity BatchIdentity, date time.Time, delta int) (int, error) {
	var quantity int
	err := tx.QueryRowxContext(ctx, addUsageQuery,
		identity.MedicineForm, identity.BrandName, identity.ChemicalName,
		identity.DoseVolume, identity.ExpiryDate, date, delta,
	).Scan(&quantity)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return 0, appErr
		}
		return 0, err
	}
	return quantity, nil
}

// ListMonth returns every usage record with a usage date inside the given
// calendar month, ordered for stable report assembly.
func (r *DailyUsageRepository) ListMonth(ctx context.Context, year int, month time.Month) ([]*DailyUsageRecord, error) {
	monthStart := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	nextMonth := monthStart.AddDate(0, 1, 0)

	records := []*DailyUsageRecord{}
	query := `
		SELECT * FROM pharmacy_daily_usage
		WHERE usage_date >= $1 AND usage_date < $2
		ORDER BY chemical_name NULLS LAST, brand_name, dose_volume, expiry_date, usage_date
	`
	if err := r.db.SelectContext(ctx, &records, query, monthStart, nextMonth); err != nil {
		return nil, err
	}
	return records, nil
}
