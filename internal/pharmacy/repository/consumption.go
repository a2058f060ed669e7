package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pharmaflow/pharmacy-backend/pkg/database"
	"github.com/pharmaflow/pharmacy-backend/pkg/errors"
)

// Consumption kinds
const (
	KindDiscard   = "discard"
	KindWard      = "ward"
	KindAmbulance = "ambulance"
)

// IsValidConsumptionKind reports whether kind is one of the accepted kinds.
func IsValidConsumptionKind(kind string) bool {
	return kind == KindDiscard || kind == KindWard || kind == KindAmbulance
}

// ConsumptionEvent is one immutable removal of quantity from a batch, for
// ward use, ambulance use, or discard. It always carries the fully resolved
// batch identity, even when the request that produced it was partial.
type ConsumptionEvent struct {
	ID string `db:"id" json:"id"`
	BatchIdentity
	Kind         string    `db:"kind" json:"kind"`
	Quantity     int       `db:"quantity" json:"quantity"`
	ConsumedDate time.Time `db:"consumed_date" json:"consumed_date"`
	Reason       *string   `db:"reason" json:"reason,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// ConsumptionRepository handles the consumption event log
type ConsumptionRepository struct {
	db *database.DB
}

// NewConsumptionRepository creates a new consumption repository
func NewConsumptionRepository(db *database.DB) *ConsumptionRepository {
	return &ConsumptionRepository{db: db}
}

// InsertTx appends one consumption event.
func (r *ConsumptionRepository) InsertTx(ctx context.Context, tx *sqlx.Tx, event *ConsumptionEvent) error {
	if !IsValidConsumptionKind(event.Kind) {
		return errors.Validation(map[string]string{
			"kind": "must be one of: discard, ward, ambulance",
		})
	}
	if event.ID == "" {
		event.ID = uuid.New().String()
	}

	query := `
		INSERT INTO pharmacy_consumptions (
			id, kind, medicine_form, brand_name, chemical_name, dose_volume,
			expiry_date, quantity, consumed_date, reason
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at
	`

	err := tx.QueryRowxContext(ctx, query,
		event.ID, event.Kind, event.MedicineForm, event.BrandName,
		event.ChemicalName, event.DoseVolume, event.ExpiryDate,
		event.Quantity, event.ConsumedDate, event.Reason,
	).Scan(&event.CreatedAt)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}
	return nil
}

// List returns consumption events, newest first, optionally narrowed by kind
// and consumed-date range.
func (r *ConsumptionRepository) List(ctx context.Context, kind string, from, until *time.Time) ([]*ConsumptionEvent, error) {
	if kind != "" && !IsValidConsumptionKind(kind) {
		return nil, errors.Validation(map[string]string{
			"kind": "must be one of: discard, ward, ambulance",
		})
	}

	var sb strings.Builder
	sb.WriteString(`SELECT * FROM pharmacy_consumptions WHERE 1=1`)
	args := []interface{}{}

	if kind != "" {
		args = append(args, kind)
		fmt.Fprintf(&sb, " AND kind = $%d", len(args))
	}
	if from != nil {
		args = append(args, *from)
		fmt.Fprintf(&sb, " AND consumed_date >= $%d", len(args))
	}
	if until != nil {
		args = append(args, *until)
		fmt.Fprintf(&sb, " AND consumed_date <= $%d", len(args))
	}

	sb.WriteString(" ORDER BY consumed_date DESC, created_at DESC")

	events := []*ConsumptionEvent{}
	if err := r.db.SelectContext(ctx, &events, sb.String(), args...); err != nil {
		return nil, err
	}
	return events, nil
}
