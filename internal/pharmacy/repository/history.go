package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pharmaflow/pharmacy-backend/pkg/database"
)

// History entry kinds
const (
	HistoryReceived = "received"
	HistoryArchived = "archived"
)

// StockHistoryEntry is one row of the append-only stock ledger: a receipt
// event or the archival snapshot of an exhausted batch. Rows are never
// updated or deleted, so the ledger stays a faithful audit trail regardless
// of what later happens to the batch.
type StockHistoryEntry struct {
	ID string `db:"id" json:"id"`
	BatchIdentity
	EntryKind string    `db:"entry_kind" json:"entry_kind"`
	Quantity  int       `db:"quantity" json:"quantity"`
	EntryDate time.Time `db:"entry_date" json:"entry_date"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// StockHistoryRepository handles the append-only stock ledger
type StockHistoryRepository struct {
	db *database.DB
}

// NewStockHistoryRepository creates a new stock history repository
func NewStockHistoryRepository(db *database.DB) *StockHistoryRepository {
	return &StockHistoryRepository{db: db}
}

// AppendTx appends one ledger entry.
func (r *StockHistoryRepository) AppendTx(ctx context.Context, tx *sqlx.Tx, entry *StockHistoryEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}

	query := `
		INSERT INTO pharmacy_stock_history (
			id, entry_kind, medicine_form, brand_name, chemical_name, dose_volume,
			expiry_date, quantity, entry_date
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at
	`

	err := tx.QueryRowxContext(ctx, query,
		entry.ID, entry.EntryKind, entry.MedicineForm, entry.BrandName,
		entry.ChemicalName, entry.DoseVolume, entry.ExpiryDate,
		entry.Quantity, entry.EntryDate,
	).Scan(&entry.CreatedAt)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}
	return nil
}

// List returns ledger entries, newest first, optionally narrowed by entry
// kind and date range.
func (r *StockHistoryRepository) List(ctx context.Context, entryKind string, from, until *time.Time) ([]*StockHistoryEntry, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT * FROM pharmacy_stock_history WHERE 1=1`)
	args := []interface{}{}

	if entryKind != "" {
		args = append(args, entryKind)
		fmt.Fprintf(&sb, " AND entry_kind = $%d", len(args))
	}
	if from != nil {
		args = append(args, *from)
		fmt.Fprintf(&sb, " AND entry_date >= $%d", len(args))
	}
	if until != nil {
		args = append(args, *until)
		fmt.Fprintf(&sb, " AND entry_date <= $%d", len(args))
	}

	sb.WriteString(" ORDER BY entry_date DESC, created_at DESC")

	entries := []*StockHistoryEntry{}
	if err := r.db.SelectContext(ctx, &entries, sb.String(), args...); err != nil {
		return nil, err
	}
	return entries, nil
}
