package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pharmaflow/pharmacy-backend/pkg/database"
)

// Medicine is a catalogue entry: one known (brand, chemical, dose)
// combination, independent of expiry dates and current stock levels. The
// catalogue feeds data-entry suggestions and survives batches going terminal.
type Medicine struct {
	ID           string    `db:"id" json:"id"`
	MedicineForm string    `db:"medicine_form" json:"medicine_form"`
	BrandName    string    `db:"brand_name" json:"brand_name"`
	ChemicalName *string   `db:"chemical_name" json:"chemical_name,omitempty"`
	DoseVolume   *string   `db:"dose_volume" json:"dose_volume,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// MedicineRepository handles the medicine catalogue
type MedicineRepository struct {
	db *database.DB
}

// NewMedicineRepository creates a new medicine repository
func NewMedicineRepository(db *database.DB) *MedicineRepository {
	return &MedicineRepository{db: db}
}

// UpsertTx records a medicine in the catalogue, keeping the most recent
// medicine form for an already-known combination.
func (r *MedicineRepository) UpsertTx(ctx context.Context, tx *sqlx.Tx, m *Medicine) error {
	query := `
		INSERT INTO pharmacy_medicines (medicine_form, brand_name, chemical_name, dose_volume)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (brand_name, (COALESCE(chemical_name, '')), (COALESCE(dose_volume, '')))
		DO UPDATE SET medicine_form = EXCLUDED.medicine_form
		RETURNING id, created_at
	`

	err := tx.QueryRowxContext(ctx, query,
		m.MedicineForm, m.BrandName, m.ChemicalName, m.DoseVolume,
	).Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}
	return nil
}

// List lists catalogue entries, optionally filtered by medicine form.
func (r *MedicineRepository) List(ctx context.Context, medicineForm string) ([]*Medicine, error) {
	medicines := []*Medicine{}
	query := `SELECT * FROM pharmacy_medicines ORDER BY brand_name, chemical_name NULLS LAST`
	args := []interface{}{}
	if medicineForm != "" {
		query = `
			SELECT * FROM pharmacy_medicines
			WHERE medicine_form = $1
			ORDER BY brand_name, chemical_name NULLS LAST
		`
		args = append(args, medicineForm)
	}
	if err := r.db.SelectContext(ctx, &medicines, query, args...); err != nil {
		return nil, err
	}
	return medicines, nil
}
