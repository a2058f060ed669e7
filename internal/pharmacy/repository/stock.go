package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pharmaflow/pharmacy-backend/pkg/database"
	"github.com/pharmaflow/pharmacy-backend/pkg/errors"
)

// StockBatch is the active-inventory row for one batch identity.
// Invariant: 0 <= Quantity <= TotalQuantity. There is at most one row per
// identity; the row is deleted (never soft-closed) when the batch moves to
// the expiry register or the archived history.
type StockBatch struct {
	ID string `db:"id" json:"id"`
	BatchIdentity
	Quantity         int       `db:"quantity" json:"quantity"`
	TotalQuantity    int       `db:"total_quantity" json:"total_quantity"`
	LastReceivedDate time.Time `db:"last_received_date" json:"last_received_date"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time `db:"updated_at" json:"updated_at"`
}

// StockRepository handles active stock persistence
type StockRepository struct {
	db *database.DB
}

// NewStockRepository creates a new stock repository
func NewStockRepository(db *database.DB) *StockRepository {
	return &StockRepository{db: db}
}

// receiveQuery folds a racing create into an additive update at the store
// level, so concurrent receipts for the same identity never lose an update
// and never surface a uniqueness conflict.
const receiveQuery = `
	INSERT INTO pharmacy_stock (
		medicine_form, brand_name, chemical_name, dose_volume, expiry_date,
		quantity, total_quantity, last_received_date
	) VALUES ($1, $2, $3, $4, $5, $6, $6, $7)
	ON CONFLICT (medicine_form, brand_name, (COALESCE(chemical_name, '')), (COALESCE(dose_volume, '')), expiry_date)
	DO UPDATE SET
		quantity = pharmacy_stock.quantity + EXCLUDED.quantity,
		total_quantity = pharmacy_stock.total_quantity + EXCLUDED.quantity,
		last_received_date = EXCLUDED.last_received_date,
		updated_at = NOW()
	RETURNING *
`

// ReceiveTx adds quantity to the batch for identity, creating the row on
// first receipt. Quantity must already be validated as positive.
func (r *StockRepository) ReceiveTx(ctx context.Context, tx *sqlx.Tx, identity BatchIdentity, quantity int, receivedDate time.Time) (*StockBatch, error) {
	var batch StockBatch
	err := sqlx.GetContext(ctx, tx, &batch, receiveQuery,
		identity.MedicineForm, identity.BrandName, identity.ChemicalName,
		identity.DoseVolume, identity.ExpiryDate, quantity, receivedDate,
	)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return nil, appErr
		}
		return nil, err
	}
	return &batch, nil
}

// FindForUpdateTx locates the single batch matching filter and locks its row
// for the remainder of the transaction. When a partial identity matches
// several batches the earliest expiry wins (FIFO for pharmaceutical stock),
// with id as a deterministic tie-break.
func (r *StockRepository) FindForUpdateTx(ctx context.Context, tx *sqlx.Tx, filter BatchFilter) (*StockBatch, error) {
	if filter.BrandName == "" {
		return nil, errors.Validation(map[string]string{"brand_name": "this field is required"})
	}

	var sb strings.Builder
	sb.WriteString(`SELECT * FROM pharmacy_stock WHERE brand_name = $1`)
	args := []interface{}{filter.BrandName}

	appendCond := func(column string, value interface{}) {
		args = append(args, value)
		fmt.Fprintf(&sb, " AND %s = $%d", column, len(args))
	}

	if filter.MedicineForm != nil {
		appendCond("medicine_form", *filter.MedicineForm)
	}
	if filter.ChemicalName != nil {
		appendCond("chemical_name", *filter.ChemicalName)
	}
	if filter.DoseVolume != nil {
		appendCond("dose_volume", *filter.DoseVolume)
	}
	if filter.ExpiryDate != nil {
		appendCond("expiry_date", *filter.ExpiryDate)
	}

	sb.WriteString(" ORDER BY expiry_date, id LIMIT 1 FOR UPDATE")

	var batch StockBatch
	if err := sqlx.GetContext(ctx, tx, &batch, sb.String(), args...); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("stock batch")
		}
		return nil, err
	}
	return &batch, nil
}

// DecrementTx subtracts quantity from the batch matching filter. The row is
// locked before the check-and-subtract; an insufficient balance fails with
// no mutation and reports the available quantity.
func (r *StockRepository) DecrementTx(ctx context.Context, tx *sqlx.Tx, filter BatchFilter, quantity int) (*StockBatch, error) {
	batch, err := r.FindForUpdateTx(ctx, tx, filter)
	if err != nil {
		return nil, err
	}

	if quantity > batch.Quantity {
		return nil, errors.InsufficientStock(batch.Quantity)
	}

	query := `UPDATE pharmacy_stock SET quantity = quantity - $2, updated_at = NOW() WHERE id = $1`
	if _, err := tx.ExecContext(ctx, query, batch.ID, quantity); err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return nil, appErr
		}
		return nil, err
	}

	batch.Quantity -= quantity
	return batch, nil
}

// ListActive lists active batches ordered by expiry, optionally filtered by
// medicine form.
func (r *StockRepository) ListActive(ctx context.Context, medicineForm string) ([]*StockBatch, error) {
	batches := []*StockBatch{}
	query := `SELECT * FROM pharmacy_stock ORDER BY expiry_date, brand_name`
	args := []interface{}{}
	if medicineForm != "" {
		query = `SELECT * FROM pharmacy_stock WHERE medicine_form = $1 ORDER BY expiry_date, brand_name`
		args = append(args, medicineForm)
	}
	if err := r.db.SelectContext(ctx, &batches, query, args...); err != nil {
		return nil, err
	}
	return batches, nil
}

// ListExpiringWithin lists batches whose expiry date falls in [from, until).
// Candidates only: the sweep claims each batch individually afterwards.
func (r *StockRepository) ListExpiringWithin(ctx context.Context, from, until time.Time) ([]*StockBatch, error) {
	batches := []*StockBatch{}
	query := `
		SELECT * FROM pharmacy_stock
		WHERE expiry_date >= $1 AND expiry_date < $2
		ORDER BY expiry_date
	`
	if err := r.db.SelectContext(ctx, &batches, query, from, until); err != nil {
		return nil, err
	}
	return batches, nil
}

// ClaimTx atomically removes the batch from active stock and returns its
// final state. Returns NotFound if another sweep or transaction already
// claimed it, which makes competing sweeps naturally idempotent.
func (r *StockRepository) ClaimTx(ctx context.Context, tx *sqlx.Tx, id string) (*StockBatch, error) {
	var batch StockBatch
	query := `DELETE FROM pharmacy_stock WHERE id = $1 RETURNING *`
	if err := sqlx.GetContext(ctx, tx, &batch, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("stock batch")
		}
		return nil, err
	}
	return &batch, nil
}

// ArchiveExhaustedTx moves every batch with quantity <= 0 into the archived
// stock history in one set-at-a-time statement. Returns the number of
// archived batches.
func (r *StockRepository) ArchiveExhaustedTx(ctx context.Context, tx *sqlx.Tx, archiveDate time.Time) (int64, error) {
	query := `
		WITH exhausted AS (
			DELETE FROM pharmacy_stock
			WHERE quantity <= 0
			RETURNING medicine_form, brand_name, chemical_name, dose_volume, expiry_date, total_quantity
		)
		INSERT INTO pharmacy_stock_history (
			entry_kind, medicine_form, brand_name, chemical_name, dose_volume,
			expiry_date, quantity, entry_date
		)
		SELECT 'archived', medicine_form, brand_name, chemical_name, dose_volume,
			expiry_date, total_quantity, $1
		FROM exhausted
	`
	result, err := tx.ExecContext(ctx, query, archiveDate)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// ListExpiryDates returns the distinct expiry dates in active stock for a
// brand, narrowed by chemical name and dose volume when provided.
func (r *StockRepository) ListExpiryDates(ctx context.Context, filter BatchFilter) ([]time.Time, error) {
	if filter.BrandName == "" {
		return nil, errors.Validation(map[string]string{"brand_name": "this field is required"})
	}

	var sb strings.Builder
	sb.WriteString(`SELECT DISTINCT expiry_date FROM pharmacy_stock WHERE brand_name = $1`)
	args := []interface{}{filter.BrandName}

	if filter.ChemicalName != nil {
		args = append(args, *filter.ChemicalName)
		fmt.Fprintf(&sb, " AND chemical_name = $%d", len(args))
	}
	if filter.DoseVolume != nil {
		args = append(args, *filter.DoseVolume)
		fmt.Fprintf(&sb, " AND dose_volume = $%d", len(args))
	}

	sb.WriteString(" ORDER BY expiry_date")

	dates := []time.Time{}
	if err := r.db.SelectContext(ctx, &dates, sb.String(), args...); err != nil {
		return nil, err
	}
	return dates, nil
}
