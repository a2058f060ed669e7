package messaging

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types
const (
	EventStockReceived     = "pharmacy.stock.received"
	EventStockConsumed     = "pharmacy.stock.consumed"
	EventStockExpiryFlagged = "pharmacy.stock.expiry_flagged"
	EventStockArchived     = "pharmacy.stock.archived"
	EventExpiryRemoved     = "pharmacy.expiry.removed"
)

// Exchange names
const (
	ExchangePharmacyEvents = "pharmacy.events"
)

// Event is the base event structure
type Event struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id"`
	Data          json.RawMessage `json:"data"`
}

// NewEvent creates a new event with the given type and data
func NewEvent(eventType, source, correlationID string, data interface{}) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:            uuid.New().String(),
		Type:          eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		CorrelationID: correlationID,
		Data:          dataBytes,
	}, nil
}

// UnmarshalData unmarshals the event data into the provided struct
func (e *Event) UnmarshalData(v interface{}) error {
	return json.Unmarshal(e.Data, v)
}

// StockReceivedEvent is published when a quantity is received into stock
type StockReceivedEvent struct {
	MedicineForm string  `json:"medicine_form"`
	BrandName    string  `json:"brand_name"`
	ChemicalName *string `json:"chemical_name,omitempty"`
	DoseVolume   *string `json:"dose_volume,omitempty"`
	ExpiryDate   string  `json:"expiry_date"`
	Quantity     int     `json:"quantity"`
	NewQuantity  int     `json:"new_quantity"`
}

// StockConsumedEvent is published when a consumption event is recorded
type StockConsumedEvent struct {
	Kind         string  `json:"kind"`
	MedicineForm string  `json:"medicine_form"`
	BrandName    string  `json:"brand_name"`
	ChemicalName *string `json:"chemical_name,omitempty"`
	DoseVolume   *string `json:"dose_volume,omitempty"`
	ExpiryDate   string  `json:"expiry_date"`
	Quantity     int     `json:"quantity"`
	Remaining    int     `json:"remaining"`
	Reason       string  `json:"reason,omitempty"`
}

// StockExpiryFlaggedEvent is published when a batch is moved to the expiry register
type StockExpiryFlaggedEvent struct {
	EntryID      string  `json:"entry_id"`
	MedicineForm string  `json:"medicine_form"`
	BrandName    string  `json:"brand_name"`
	ChemicalName *string `json:"chemical_name,omitempty"`
	DoseVolume   *string `json:"dose_volume,omitempty"`
	ExpiryDate   string  `json:"expiry_date"`
	Quantity     int     `json:"quantity"`
}

// StockArchivedEvent is published after an archival sweep
type StockArchivedEvent struct {
	ArchivedCount int    `json:"archived_count"`
	ArchiveDate   string `json:"archive_date"`
}

// ExpiryRemovedEvent is published when a flagged batch is physically removed
type ExpiryRemovedEvent struct {
	EntryID     string `json:"entry_id"`
	RemovedDate string `json:"removed_date"`
}
