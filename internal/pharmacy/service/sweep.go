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

// SweepService runs the maintenance passes over stock: near-expiry flagging
// into the expiry register and archival of exhausted batches. Sweeps are
// safe to run concurrently from several instances; each batch is claimed
// with a DELETE inside its own transaction, so two overlapping sweeps never
// flag the same batch twice.
type SweepService struct {
	db          *database.DB
	stockRepo   *repository.StockRepository
	expiryRepo  *repository.ExpiryRegisterRepository
	historyRepo *repository.StockHistoryRepository
	publisher   *events.StockEventPublisher
	logger      *logger.Logger
}

// NewSweepService creates a new sweep service
func NewSweepService(
	db *database.DB,
	stockRepo *repository.StockRepository,
	expiryRepo *repository.ExpiryRegisterRepository,
	historyRepo *repository.StockHistoryRepository,
	publisher *events.StockEventPublisher,
	log *logger.Logger,
) *SweepService {
	return &SweepService{
		db:          db,
		stockRepo:   stockRepo,
		expiryRepo:  expiryRepo,
		historyRepo: historyRepo,
		publisher:   publisher,
		logger:      log,
	}
}

// SweepResult summarizes one expiry sweep pass.
type SweepResult struct {
	WindowFrom  time.Time `json:"window_from"`
	WindowUntil time.Time `json:"window_until"`
	Flagged     int       `json:"flagged"`
	Failed      int       `json:"failed"`
}

// expiryWindow returns the inclusive-exclusive date range a sweep on the
// given day covers: the current calendar month and the immediately
// following month.
func expiryWindow(today time.Time) (time.Time, time.Time) {
	from := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC)
	until := from.AddDate(0, 2, 0)
	return from, until
}

// SweepExpiring moves every active batch expiring within the current
// two-month window out of stock and into the expiry register. Each batch
// is moved in its own transaction; a failure on one batch is logged and the
// sweep continues with the rest.
func (s *SweepService) SweepExpiring(ctx context.Context, today time.Time) (*SweepResult, error) {
	from, until := expiryWindow(today)

	candidates, err := s.stockRepo.ListExpiringWithin(ctx, from, until)
	if err != nil {
		return nil, err
	}

	result := &SweepResult{WindowFrom: from, WindowUntil: until}
	for _, candidate := range candidates {
		entry, err := s.flagBatch(ctx, candidate.ID, today)
		if err != nil {
			if errors.Is(err, errors.ErrNotFound) {
				// Another sweep (or a consumption exhausting the batch)
				// got there first. Not an error.
				continue
			}
			result.Failed++
			s.logger.WithError(err).Error().
				Str("batch_id", candidate.ID).
				Str("brand_name", candidate.BrandName).
				Msg("failed to flag expiring batch")
			continue
		}

		result.Flagged++
		metrics.ExpiryFlaggedTotal.Inc()
		s.publisher.PublishExpiryFlagged(ctx, entry)
	}

	s.logger.Info().
		Int("flagged", result.Flagged).
		Int("failed", result.Failed).
		Time("window_until", until).
		Msg("expiry sweep completed")

	return result, nil
}

// flagBatch claims one batch and inserts the matching register entry. The
// claim is a DELETE RETURNING, so the batch row and the register entry swap
// atomically.
func (s *SweepService) flagBatch(ctx context.Context, batchID string, flaggedDate time.Time) (*repository.ExpiryRegisterEntry, error) {
	var entry *repository.ExpiryRegisterEntry
	err := s.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		batch, err := s.stockRepo.ClaimTx(ctx, tx, batchID)
		if err != nil {
			return err
		}

		entry = &repository.ExpiryRegisterEntry{
			BatchIdentity:  batch.BatchIdentity,
			QuantityAtFlag: batch.Quantity,
			TotalQuantity:  batch.TotalQuantity,
			FlaggedDate:    flaggedDate,
		}
		return s.expiryRepo.InsertTx(ctx, tx, entry)
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// ArchiveExhausted moves every zero-quantity batch into the stock history
// as an archived entry, recording its lifetime total. Returns the number of
// batches archived.
func (s *SweepService) ArchiveExhausted(ctx context.Context, archiveDate time.Time) (int64, error) {
	var archived int64
	err := s.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		var err error
		archived, err = s.stockRepo.ArchiveExhaustedTx(ctx, tx, archiveDate)
		return err
	})
	if err != nil {
		return 0, err
	}

	if archived > 0 {
		metrics.ArchivedTotal.Add(float64(archived))
		s.publisher.PublishStockArchived(ctx, archived, archiveDate)
	}

	s.logger.Info().Int64("archived", archived).Msg("archival pass completed")
	return archived, nil
}

// MarkRemoved records the physical removal of a flagged batch. Removing an
// already-removed entry is rejected, so the register stays a faithful log
// of what left the shelf and when.
func (s *SweepService) MarkRemoved(ctx context.Context, entryID string, removedDate time.Time) (*repository.ExpiryRegisterEntry, error) {
	if removedDate.IsZero() {
		return nil, errors.Validation(map[string]string{
			"removed_date": "this field is required",
		})
	}

	if err := s.expiryRepo.MarkRemoved(ctx, entryID, removedDate); err != nil {
		return nil, err
	}

	s.publisher.PublishExpiryRemoved(ctx, entryID, removedDate)

	return s.expiryRepo.GetByID(ctx, entryID)
}

// ExpiryRegister lists register entries, optionally only those still
// awaiting removal.
func (s *SweepService) ExpiryRegister(ctx context.Context, pendingOnly bool) ([]*repository.ExpiryRegisterEntry, error) {
	return s.expiryRepo.List(ctx, pendingOnly)
}

// PendingExpiryCount reports how many flagged batches still await removal.
func (s *SweepService) PendingExpiryCount(ctx context.Context) (int64, error) {
	return s.expiryRepo.CountPending(ctx)
}
