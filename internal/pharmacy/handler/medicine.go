package handler

import (
	"net/http"

	"github.com/pharmaflow/pharmacy-backend/internal/pharmacy/repository"
	"github.com/pharmaflow/pharmacy-backend/internal/pharmacy/service"
	"github.com/pharmaflow/pharmacy-backend/pkg/errors"
	"github.com/pharmaflow/pharmacy-backend/pkg/httputil"
	"github.com/pharmaflow/pharmacy-backend/pkg/logger"
)

// MedicineHandler handles medicine catalogue endpoints
type MedicineHandler struct {
	service *service.StockService
	logger  *logger.Logger
}

// NewMedicineHandler creates a new medicine handler
func NewMedicineHandler(svc *service.StockService, log *logger.Logger) *MedicineHandler {
	return &MedicineHandler{
		service: svc,
		logger:  log,
	}
}

// List lists known medicines, optionally filtered by form
func (h *MedicineHandler) List(w http.ResponseWriter, r *http.Request) {
	form := r.URL.Query().Get("medicine_form")
	if form != "" && !repository.IsValidMedicineForm(form) {
		httputil.Error(w, errors.Validation(map[string]string{
			"medicine_form": "unknown medicine form",
		}))
		return
	}

	medicines, err := h.service.Medicines(r.Context(), form)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, medicines)
}

// Forms lists the recognised medicine forms
func (h *MedicineHandler) Forms(w http.ResponseWriter, r *http.Request) {
	httputil.JSON(w, http.StatusOK, repository.MedicineForms)
}
