package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/pharmaflow/pharmacy-backend/internal/pharmacy/service"
	"github.com/pharmaflow/pharmacy-backend/pkg/errors"
	"github.com/pharmaflow/pharmacy-backend/pkg/httputil"
	"github.com/pharmaflow/pharmacy-backend/pkg/logger"
)

// ReportHandler handles monthly usage report endpoints
type ReportHandler struct {
	service *service.ReportService
	logger  *logger.Logger
}

// NewReportHandler creates a new report handler
func NewReportHandler(svc *service.ReportService, log *logger.Logger) *ReportHandler {
	return &ReportHandler{
		service: svc,
		logger:  log,
	}
}

// MonthlyUsage builds the dense usage report for one month. Defaults to
// the current month when year/month are omitted.
func (h *ReportHandler) MonthlyUsage(w http.ResponseWriter, r *http.Request) {
	now := time.Now().UTC()
	year, month := now.Year(), int(now.Month())

	q := r.URL.Query()
	if v := q.Get("year"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			httputil.Error(w, errors.BadRequest("invalid year"))
			return
		}
		year = parsed
	}
	if v := q.Get("month"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			httputil.Error(w, errors.BadRequest("invalid month"))
			return
		}
		month = parsed
	}

	report, err := h.service.MonthlyUsage(r.Context(), year, time.Month(month))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, report)
}
