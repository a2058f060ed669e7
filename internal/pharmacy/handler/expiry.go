package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pharmaflow/pharmacy-backend/internal/pharmacy/service"
	"github.com/pharmaflow/pharmacy-backend/pkg/errors"
	"github.com/pharmaflow/pharmacy-backend/pkg/httputil"
	"github.com/pharmaflow/pharmacy-backend/pkg/logger"
)

// ExpiryHandler handles expiry register and sweep endpoints
type ExpiryHandler struct {
	service *service.SweepService
	logger  *logger.Logger
}

// NewExpiryHandler creates a new expiry handler
func NewExpiryHandler(svc *service.SweepService, log *logger.Logger) *ExpiryHandler {
	return &ExpiryHandler{
		service: svc,
		logger:  log,
	}
}

// List lists expiry register entries. ?pending=true restricts the result
// to entries not yet physically removed.
func (h *ExpiryHandler) List(w http.ResponseWriter, r *http.Request) {
	pendingOnly := r.URL.Query().Get("pending") == "true"

	entries, err := h.service.ExpiryRegister(r.Context(), pendingOnly)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, entries)
}

// PendingCount reports the number of flagged batches awaiting removal
func (h *ExpiryHandler) PendingCount(w http.ResponseWriter, r *http.Request) {
	count, err := h.service.PendingExpiryCount(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]int64{"pending": count})
}

// MarkRemoved records the physical removal of a flagged batch
func (h *ExpiryHandler) MarkRemoved(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req struct {
		RemovedDate string `json:"removed_date" validate:"required,datetime=2006-01-02"`
	}
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	removedDate, err := time.Parse(dateLayout, req.RemovedDate)
	if err != nil {
		httputil.Error(w, errors.BadRequest("invalid removed_date"))
		return
	}

	entry, err := h.service.MarkRemoved(r.Context(), id, removedDate)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, entry)
}

// SweepExpiry triggers an on-demand expiry sweep
func (h *ExpiryHandler) SweepExpiry(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.SweepExpiring(r.Context(), time.Now().UTC())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, result)
}

// SweepArchive triggers an on-demand archival pass
func (h *ExpiryHandler) SweepArchive(w http.ResponseWriter, r *http.Request) {
	archived, err := h.service.ArchiveExhausted(r.Context(), time.Now().UTC())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]int64{"archived": archived})
}
