package events

import (
	"context"
	"time"

	"github.com/pharmaflow/pharmacy-backend/internal/pharmacy/repository"
	"github.com/pharmaflow/pharmacy-backend/pkg/logger"
	"github.com/pharmaflow/pharmacy-backend/pkg/messaging"
)

const dateLayout = "2006-01-02"

// StockEventPublisher publishes pharmacy stock events. Publishing is
// fire-and-forget: a broker failure is logged, never propagated, so the
// ledger transaction that already committed stays authoritative.
type StockEventPublisher struct {
	publisher *messaging.Publisher
	logger    *logger.Logger
}

// NewStockEventPublisher creates a new stock event publisher
func NewStockEventPublisher(rmq *messaging.RabbitMQ, log *logger.Logger) (*StockEventPublisher, error) {
	publisher, err := messaging.NewPublisher(rmq, messaging.ExchangePharmacyEvents, "pharmacy-service", log)
	if err != nil {
		return nil, err
	}

	return &StockEventPublisher{
		publisher: publisher,
		logger:    log,
	}, nil
}

// PublishStockReceived publishes a stock received event
func (p *StockEventPublisher) PublishStockReceived(ctx context.Context, batch *repository.StockBatch, received int) {
	if p == nil {
		return
	}

	data := messaging.StockReceivedEvent{
		MedicineForm: batch.MedicineForm,
		BrandName:    batch.BrandName,
		ChemicalName: batch.ChemicalName,
		DoseVolume:   batch.DoseVolume,
		ExpiryDate:   batch.ExpiryDate.Format(dateLayout),
		Quantity:     received,
		NewQuantity:  batch.Quantity,
	}

	if err := p.publisher.Publish(ctx, messaging.EventStockReceived, data); err != nil {
		p.logger.Error().Err(err).Str("brand_name", batch.BrandName).Msg("failed to publish stock received event")
	}
}

// PublishStockConsumed publishes a stock consumed event
func (p *StockEventPublisher) PublishStockConsumed(ctx context.Context, event *repository.ConsumptionEvent, remaining int) {
	if p == nil {
		return
	}

	reason := ""
	if event.Reason != nil {
		reason = *event.Reason
	}

	data := messaging.StockConsumedEvent{
		Kind:         event.Kind,
		MedicineForm: event.MedicineForm,
		BrandName:    event.BrandName,
		ChemicalName: event.ChemicalName,
		DoseVolume:   event.DoseVolume,
		ExpiryDate:   event.ExpiryDate.Format(dateLayout),
		Quantity:     event.Quantity,
		Remaining:    remaining,
		Reason:       reason,
	}

	if err := p.publisher.Publish(ctx, messaging.EventStockConsumed, data); err != nil {
		p.logger.Error().Err(err).Str("brand_name", event.BrandName).Msg("failed to publish stock consumed event")
	}
}

// PublishExpiryFlagged publishes an expiry flagged event
func (p *StockEventPublisher) PublishExpiryFlagged(ctx context.Context, entry *repository.ExpiryRegisterEntry) {
	if p == nil {
		return
	}

	data := messaging.StockExpiryFlaggedEvent{
		EntryID:      entry.ID,
		MedicineForm: entry.MedicineForm,
		BrandName:    entry.BrandName,
		ChemicalName: entry.ChemicalName,
		DoseVolume:   entry.DoseVolume,
		ExpiryDate:   entry.ExpiryDate.Format(dateLayout),
		Quantity:     entry.QuantityAtFlag,
	}

	if err := p.publisher.Publish(ctx, messaging.EventStockExpiryFlagged, data); err != nil {
		p.logger.Error().Err(err).Str("entry_id", entry.ID).Msg("failed to publish expiry flagged event")
	}
}

// PublishStockArchived publishes a stock archived event
func (p *StockEventPublisher) PublishStockArchived(ctx context.Context, archived int64, archiveDate time.Time) {
	if p == nil || archived == 0 {
		return
	}

	data := messaging.StockArchivedEvent{
		ArchivedCount: int(archived),
		ArchiveDate:   archiveDate.Format(dateLayout),
	}

	if err := p.publisher.Publish(ctx, messaging.EventStockArchived, data); err != nil {
		p.logger.Error().Err(err).Msg("failed to publish stock archived event")
	}
}

// PublishExpiryRemoved publishes an expiry removed event
func (p *StockEventPublisher) PublishExpiryRemoved(ctx context.Context, entryID string, removedDate time.Time) {
	if p == nil {
		return
	}

	data := messaging.ExpiryRemovedEvent{
		EntryID:     entryID,
		RemovedDate: removedDate.Format(dateLayout),
	}

	if err := p.publisher.Publish(ctx, messaging.EventExpiryRemoved, data); err != nil {
		p.logger.Error().Err(err).Str("entry_id", entryID).Msg("failed to publish expiry removed event")
	}
}
