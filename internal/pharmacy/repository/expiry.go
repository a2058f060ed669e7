package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pharmaflow/pharmacy-backend/pkg/database"
	"github.com/pharmaflow/pharmacy-backend/pkg/errors"
)

// ExpiryRegisterEntry is the snapshot of a batch taken when the expiry sweep
// flagged it out of active stock. Once RemovedDate is set the entry is
// terminal: removal never returns quantity to stock.
type ExpiryRegisterEntry struct {
	ID string `db:"id" json:"id"`
	BatchIdentity
	QuantityAtFlag int        `db:"quantity_at_flag" json:"quantity_at_flag"`
	TotalQuantity  int        `db:"total_quantity" json:"total_quantity"`
	FlaggedDate    time.Time  `db:"flagged_date" json:"flagged_date"`
	RemovedDate    *time.Time `db:"removed_date" json:"removed_date,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
}

// ExpiryRegisterRepository handles the expiry register
type ExpiryRegisterRepository struct {
	db *database.DB
}

// NewExpiryRegisterRepository creates a new expiry register repository
func NewExpiryRegisterRepository(db *database.DB) *ExpiryRegisterRepository {
	return &ExpiryRegisterRepository{db: db}
}

// InsertTx snapshots a flagged batch into the register.
func (r *ExpiryRegisterRepository) InsertTx(ctx context.Context, tx *sqlx.Tx, entry *ExpiryRegisterEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}

	query := `
		INSERT INTO pharmacy_expiry_register (
			id, medicine_form, brand_name, chemical_name, dose_volume,
			expiry_date, quantity_at_flag, total_quantity, flagged_date
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at
	`

	err := tx.QueryRowxContext(ctx, query,
		entry.ID, entry.MedicineForm, entry.BrandName, entry.ChemicalName,
		entry.DoseVolume, entry.ExpiryDate, entry.QuantityAtFlag,
		entry.TotalQuantity, entry.FlaggedDate,
	).Scan(&entry.CreatedAt)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}
	return nil
}

// GetByID gets a register entry by ID
func (r *ExpiryRegisterRepository) GetByID(ctx context.Context, id string) (*ExpiryRegisterEntry, error) {
	var entry ExpiryRegisterEntry
	query := `SELECT * FROM pharmacy_expiry_register WHERE id = $1`
	if err := r.db.GetContext(ctx, &entry, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("expiry register entry")
		}
		return nil, err
	}
	return &entry, nil
}

// MarkRemoved sets the removal date on a pending entry. The guard on
// removed_date makes re-removal a no-op at the store level; the second call
// surfaces DuplicateOperation and leaves the original date untouched.
func (r *ExpiryRegisterRepository) MarkRemoved(ctx context.Context, id string, removedDate time.Time) error {
	query := `
		UPDATE pharmacy_expiry_register
		SET removed_date = $2
		WHERE id = $1 AND removed_date IS NULL
	`
	result, err := r.db.ExecContext(ctx, query, id, removedDate)
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected > 0 {
		return nil
	}

	// Distinguish a repeat removal from a missing entry.
	if _, err := r.GetByID(ctx, id); err != nil {
		return err
	}
	return errors.DuplicateOperation("expiry register entry is already removed")
}

// List returns register entries, most recently flagged first. With
// pendingOnly set, entries that are already removed are excluded.
func (r *ExpiryRegisterRepository) List(ctx context.Context, pendingOnly bool) ([]*ExpiryRegisterEntry, error) {
	entries := []*ExpiryRegisterEntry{}
	query := `SELECT * FROM pharmacy_expiry_register ORDER BY flagged_date DESC, created_at DESC`
	if pendingOnly {
		query = `
			SELECT * FROM pharmacy_expiry_register
			WHERE removed_date IS NULL
			ORDER BY flagged_date DESC, created_at DESC
		`
	}
	if err := r.db.SelectContext(ctx, &entries, query); err != nil {
		return nil, err
	}
	return entries, nil
}

// CountPending returns the number of flagged entries not yet removed.
func (r *ExpiryRegisterRepository) CountPending(ctx context.Context) (int64, error) {
	var count int64
	query := `SELECT COUNT(*) FROM pharmacy_expiry_register WHERE removed_date IS NULL`
	if err := r.db.GetContext(ctx, &count, query); err != nil {
		return 0, err
	}
	return count, nil
}
