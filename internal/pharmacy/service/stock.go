package service

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pharmaflow/pharmacy-backend/internal/pharmacy/events"
	"github.com/pharmaflow/pharmacy-backend/internal/pharmacy/repository"
	"github.com/pharmaflow/pharmacy-backend/pkg/database"
	"github.com/pharmaflow/pharmacy-backend/pkg/errors"
	"github.com/pharmaflow/pharmacy-backend/pkg/logger"
	"github.com/pharmaflow/pharmacy-backend/pkg/metrics"
)

// StockService owns the receipt and consumption paths of the inventory
// ledger. Every multi-step operation runs inside one database transaction:
// a failure at any step rolls the whole operation back and surfaces exactly
// one typed error.
type StockService struct {
	db              *database.DB
	stockRepo       *repository.StockRepository
	historyRepo     *repository.StockHistoryRepository
	consumptionRepo *repository.ConsumptionRepository
	usageRepo       *repository.DailyUsageRepository
	medicineRepo    *repository.MedicineRepository
	publisher       *events.StockEventPublisher
	logger          *logger.Logger
}

// NewStockService creates a new stock service
func NewStockService(
	db *database.DB,
	stockRepo *repository.StockRepository,
	historyRepo *repository.StockHistoryRepository,
	consumptionRepo *repository.ConsumptionRepository,
	usageRepo *repository.DailyUsageRepository,
	medicineRepo *repository.MedicineRepository,
	publisher *events.StockEventPublisher,
	log *logger.Logger,
) *StockService {
	return &StockService{
		db:              db,
		stockRepo:       stockRepo,
		historyRepo:     historyRepo,
		consumptionRepo: consumptionRepo,
		usageRepo:       usageRepo,
		medicineRepo:    medicineRepo,
		publisher:       publisher,
		logger:          log,
	}
}

// ReceiveRequest is a validated stock receipt.
type ReceiveRequest struct {
	Identity     repository.BatchIdentity
	Quantity     int
	ReceivedDate time.Time
}

// ConsumptionRequest is a validated consumption call. The identity may be
// partial: absent fields are wildcards resolved against active stock.
type ConsumptionRequest struct {
	Kind     string
	Filter   repository.BatchFilter
	Quantity int
	Date     time.Time
	Reason   *string
}

// ConsumptionResult carries the resolved identity and the batch's remaining
// quantity after a successful consumption.
type ConsumptionResult struct {
	Event     *repository.ConsumptionEvent `json:"event"`
	Remaining int                          `json:"remaining"`
	DayTotal  int                          `json:"day_total"`
}

// Receive records a quantity received into stock. The batch row is created
// on first receipt; later receipts add to both quantity and total_quantity.
// One receipt ledger entry is appended per call and the medicine catalogue
// is kept up to date, all in the same transaction.
func (s *StockService) Receive(ctx context.Context, req ReceiveRequest) (*repository.StockBatch, error) {
	if err := validateReceive(req); err != nil {
		return nil, err
	}

	var batch *repository.StockBatch
	err := s.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		var err error
		batch, err = s.stockRepo.ReceiveTx(ctx, tx, req.Identity, req.Quantity, req.ReceivedDate)
		if err != nil {
			return err
		}

		entry := &repository.StockHistoryEntry{
			BatchIdentity: req.Identity,
			EntryKind:     repository.HistoryReceived,
			Quantity:      req.Quantity,
			EntryDate:     req.ReceivedDate,
		}
		if err := s.historyRepo.AppendTx(ctx, tx, entry); err != nil {
			return err
		}

		medicine := &repository.Medicine{
			MedicineForm: req.Identity.MedicineForm,
			BrandName:    req.Identity.BrandName,
			ChemicalName: req.Identity.ChemicalName,
			DoseVolume:   req.Identity.DoseVolume,
		}
		return s.medicineRepo.UpsertTx(ctx, tx, medicine)
	})
	if err != nil {
		return nil, err
	}

	metrics.ReceiptsTotal.Inc()
	s.publisher.PublishStockReceived(ctx, batch, req.Quantity)

	s.logger.Info().
		Str("brand_name", batch.BrandName).
		Int("received", req.Quantity).
		Int("quantity", batch.Quantity).
		Msg("stock received")

	return batch, nil
}

// RecordConsumption atomically decrements the matching batch, logs one
// immutable consumption event of the given kind, and folds the quantity
// into the daily usage aggregate. A failure in any of the three steps
// (including the aggregate write) rolls back the decrement.
func (s *StockService) RecordConsumption(ctx context.Context, req ConsumptionRequest) (*ConsumptionResult, error) {
	if err := validateConsumption(req); err != nil {
		return nil, err
	}

	var result ConsumptionResult
	err := s.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		batch, err := s.stockRepo.DecrementTx(ctx, tx, req.Filter, req.Quantity)
		if err != nil {
			return err
		}

		event := &repository.ConsumptionEvent{
			BatchIdentity: batch.BatchIdentity,
			Kind:          req.Kind,
			Quantity:      req.Quantity,
			ConsumedDate:  req.Date,
			Reason:        req.Reason,
		}
		if err := s.consumptionRepo.InsertTx(ctx, tx, event); err != nil {
			return err
		}

		dayTotal, err := s.usageRepo.AddTx(ctx, tx, batch.BatchIdentity, req.Date, req.Quantity)
		if err != nil {
			return err
		}

		result = ConsumptionResult{
			Event:     event,
			Remaining: batch.Quantity,
			DayTotal:  dayTotal,
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, errors.ErrInsufficientStock) {
			metrics.InsufficientStockTotal.Inc()
		}
		return nil, err
	}

	metrics.ConsumptionsTotal.WithLabelValues(req.Kind).Inc()
	s.publisher.PublishStockConsumed(ctx, result.Event, result.Remaining)

	s.logger.Info().
		Str("kind", req.Kind).
		Str("brand_name", result.Event.BrandName).
		Int("quantity", req.Quantity).
		Int("remaining", result.Remaining).
		Msg("consumption recorded")

	return &result, nil
}

// CurrentStock lists active batches, optionally filtered by medicine form.
func (s *StockService) CurrentStock(ctx context.Context, medicineForm string) ([]*repository.StockBatch, error) {
	if medicineForm != "" && !repository.IsValidMedicineForm(medicineForm) {
		return nil, errors.Validation(map[string]string{
			"medicine_form": "unknown medicine form",
		})
	}
	return s.stockRepo.ListActive(ctx, medicineForm)
}

// ConsumptionHistory lists recorded consumption events.
func (s *StockService) ConsumptionHistory(ctx context.Context, kind string, from, until *time.Time) ([]*repository.ConsumptionEvent, error) {
	return s.consumptionRepo.List(ctx, kind, from, until)
}

// ReceiptHistory lists stock ledger entries.
func (s *StockService) ReceiptHistory(ctx context.Context, entryKind string, from, until *time.Time) ([]*repository.StockHistoryEntry, error) {
	return s.historyRepo.List(ctx, entryKind, from, until)
}

// ExpiryDates returns the distinct expiry dates in active stock for a
// brand/chemical/dose combination.
func (s *StockService) ExpiryDates(ctx context.Context, filter repository.BatchFilter) ([]time.Time, error) {
	return s.stockRepo.ListExpiryDates(ctx, filter)
}

// Medicines lists the medicine catalogue.
func (s *StockService) Medicines(ctx context.Context, medicineForm string) ([]*repository.Medicine, error) {
	return s.medicineRepo.List(ctx, medicineForm)
}

func validateReceive(req ReceiveRequest) error {
	details := make(map[string]string)

	if req.Quantity <= 0 {
		details["quantity"] = "must be a positive integer"
	}
	if req.Identity.BrandName == "" {
		details["brand_name"] = "this field is required"
	}
	if !repository.IsValidMedicineForm(req.Identity.MedicineForm) {
		details["medicine_form"] = "unknown medicine form"
	}
	if req.Identity.ExpiryDate.IsZero() {
		details["expiry_date"] = "this field is required"
	}
	if req.ReceivedDate.IsZero() {
		details["received_date"] = "this field is required"
	}

	if len(details) > 0 {
		return errors.Validation(details)
	}
	return nil
}

func validateConsumption(req ConsumptionRequest) error {
	details := make(map[string]string)

	if !repository.IsValidConsumptionKind(req.Kind) {
		details["kind"] = "must be one of: discard, ward, ambulance"
	}
	if req.Quantity <= 0 {
		details["quantity"] = "must be a positive integer"
	}
	if req.Filter.BrandName == "" {
		details["brand_name"] = "this field is required"
	}
	if req.Date.IsZero() {
		details["date"] = "this field is required"
	}
	if req.Kind == repository.KindDiscard && (req.Reason == nil || *req.Reason == "") {
		details["reason"] = "this field is required for discards"
	}

	if len(details) > 0 {
		return errors.Validation(details)
	}
	return nil
}
