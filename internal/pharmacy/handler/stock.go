package handler

import (
	"net/http"
	"time"

	"github.com/pharmaflow/pharmacy-backend/internal/pharmacy/repository"
	"github.com/pharmaflow/pharmacy-backend/internal/pharmacy/service"
	"github.com/pharmaflow/pharmacy-backend/pkg/errors"
	"github.com/pharmaflow/pharmacy-backend/pkg/httputil"
	"github.com/pharmaflow/pharmacy-backend/pkg/logger"
)

const dateLayout = "2006-01-02"

// StockHandler handles receipt, consumption and stock query endpoints
type StockHandler struct {
	service *service.StockService
	logger  *logger.Logger
}

// NewStockHandler creates a new stock handler
func NewStockHandler(svc *service.StockService, log *logger.Logger) *StockHandler {
	return &StockHandler{
		service: svc,
		logger:  log,
	}
}

type receiveRequest struct {
	MedicineForm string  `json:"medicine_form" validate:"required"`
	BrandName    string  `json:"brand_name" validate:"required"`
	ChemicalName *string `json:"chemical_name,omitempty"`
	DoseVolume   *string `json:"dose_volume,omitempty"`
	ExpiryDate   string  `json:"expiry_date" validate:"required,datetime=2006-01-02"`
	ReceivedDate string  `json:"received_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Quantity     int     `json:"quantity" validate:"required,gt=0"`
}

type consumeRequest struct {
	Kind         string  `json:"kind" validate:"required,oneof=discard ward ambulance"`
	MedicineForm *string `json:"medicine_form,omitempty"`
	BrandName    string  `json:"brand_name" validate:"required"`
	ChemicalName *string `json:"chemical_name,omitempty"`
	DoseVolume   *string `json:"dose_volume,omitempty"`
	ExpiryDate   *string `json:"expiry_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Date         string  `json:"date" validate:"required,datetime=2006-01-02"`
	Quantity     int     `json:"quantity" validate:"required,gt=0"`
	Reason       *string `json:"reason,omitempty"`
}

// Receive records a stock receipt
func (h *StockHandler) Receive(w http.ResponseWriter, r *http.Request) {
	var req receiveRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	expiry, err := time.Parse(dateLayout, req.ExpiryDate)
	if err != nil {
		httputil.Error(w, errors.BadRequest("invalid expiry_date"))
		return
	}
	received := time.Now().UTC().Truncate(24 * time.Hour)
	if req.ReceivedDate != "" {
		if received, err = time.Parse(dateLayout, req.ReceivedDate); err != nil {
			httputil.Error(w, errors.BadRequest("invalid received_date"))
			return
		}
	}

	batch, err := h.service.Receive(r.Context(), service.ReceiveRequest{
		Identity: repository.BatchIdentity{
			MedicineForm: req.MedicineForm,
			BrandName:    req.BrandName,
			ChemicalName: req.ChemicalName,
			DoseVolume:   req.DoseVolume,
			ExpiryDate:   expiry,
		},
		Quantity:     req.Quantity,
		ReceivedDate: received,
	})
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, batch)
}

// Consume records a discard, ward or ambulance consumption
func (h *StockHandler) Consume(w http.ResponseWriter, r *http.Request) {
	var req consumeRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	date, err := time.Parse(dateLayout, req.Date)
	if err != nil {
		httputil.Error(w, errors.BadRequest("invalid date"))
		return
	}

	filter := repository.BatchFilter{
		MedicineForm: req.MedicineForm,
		BrandName:    req.BrandName,
		ChemicalName: req.ChemicalName,
		DoseVolume:   req.DoseVolume,
	}
	if req.ExpiryDate != nil {
		expiry, err := time.Parse(dateLayout, *req.ExpiryDate)
		if err != nil {
			httputil.Error(w, errors.BadRequest("invalid expiry_date"))
			return
		}
		filter.ExpiryDate = &expiry
	}

	result, err := h.service.RecordConsumption(r.Context(), service.ConsumptionRequest{
		Kind:     req.Kind,
		Filter:   filter,
		Quantity: req.Quantity,
		Date:     date,
		Reason:   req.Reason,
	})
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, result)
}

// CurrentStock lists active batches
func (h *StockHandler) CurrentStock(w http.ResponseWriter, r *http.Request) {
	batches, err := h.service.CurrentStock(r.Context(), r.URL.Query().Get("medicine_form"))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, batches)
}

// ExpiryDates lists distinct expiry dates for a brand/chemical/dose combination
func (h *StockHandler) ExpiryDates(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("brand_name") == "" {
		httputil.Error(w, errors.Validation(map[string]string{
			"brand_name": "this field is required",
		}))
		return
	}

	filter := repository.BatchFilter{
		BrandName:    q.Get("brand_name"),
		MedicineForm: optionalParam(q.Get("medicine_form")),
		ChemicalName: optionalParam(q.Get("chemical_name")),
		DoseVolume:   optionalParam(q.Get("dose_volume")),
	}

	dates, err := h.service.ExpiryDates(r.Context(), filter)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	formatted := make([]string, 0, len(dates))
	for _, d := range dates {
		formatted = append(formatted, d.Format(dateLayout))
	}
	httputil.JSON(w, http.StatusOK, formatted)
}

// Consumptions lists consumption events
func (h *StockHandler) Consumptions(w http.ResponseWriter, r *http.Request) {
	kind := r.URL.Query().Get("kind")
	if kind != "" && !repository.IsValidConsumptionKind(kind) {
		httputil.Error(w, errors.Validation(map[string]string{
			"kind": "must be one of: discard, ward, ambulance",
		}))
		return
	}

	from, until, err := parseDateRange(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	events, err := h.service.ConsumptionHistory(r.Context(), kind, from, until)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, events)
}

// History lists receipt ledger entries
func (h *StockHandler) History(w http.ResponseWriter, r *http.Request) {
	entryKind := r.URL.Query().Get("entry_kind")
	if entryKind != "" && entryKind != repository.HistoryReceived && entryKind != repository.HistoryArchived {
		httputil.Error(w, errors.Validation(map[string]string{
			"entry_kind": "must be one of: received, archived",
		}))
		return
	}

	from, until, err := parseDateRange(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	entries, err := h.service.ReceiptHistory(r.Context(), entryKind, from, until)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, entries)
}

func optionalParam(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

func parseDateRange(r *http.Request) (*time.Time, *time.Time, error) {
	var from, until *time.Time

	if v := r.URL.Query().Get("from"); v != "" {
		t, err := time.Parse(dateLayout, v)
		if err != nil {
			return nil, nil, errors.BadRequest("invalid from date")
		}
		from = &t
	}
	if v := r.URL.Query().Get("until"); v != "" {
		t, err := time.Parse(dateLayout, v)
		if err != nil {
			return nil, nil, errors.BadRequest("invalid until date")
		}
		until = &t
	}

	return from, until, nil
}
