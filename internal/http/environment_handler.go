package httpapi

import (
	"net/http"

	"github.com/LuisSimiao/Riada-Care-System/internal/service"

	"go.uber.org/zap"
)

// EnvironmentHandler 环境数据查询/聚合接口
type EnvironmentHandler struct {
	environment *service.EnvironmentService
	logger      *zap.Logger
}

func NewEnvironmentHandler(environment *service.EnvironmentService, logger *zap.Logger) *EnvironmentHandler {
	return &EnvironmentHandler{environment: environment, logger: logger}
}

// AvailableDates GET /api/available-dates?group=CARE-A
func (h *EnvironmentHandler) AvailableDates(w http.ResponseWriter, r *http.Request) {
	group := r.URL.Query().Get("group")
	dates, err := h.environment.AvailableDates(r.Context(), group)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(dates))
}

// EnvironmentData GET /api/environment-data?group=CARE-A&date=2026-08-30
func (h *EnvironmentHandler) EnvironmentData(w http.ResponseWriter, r *http.Request) {
	group := r.URL.Query().Get("group")
	date := r.URL.Query().Get("date")
	agg, err := h.environment.Aggregate(r.Context(), group, date)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(agg))
}

// LatestReadings GET /api/latest-readings?device_id=Hillcrest-1
func (h *EnvironmentHandler) LatestReadings(w http.ResponseWriter, r *http.Request) {
	deviceID := r.URL.Query().Get("device_id")
	if deviceID == "" {
		writeJSON(w, http.StatusBadRequest, Fail("device_id is required"))
		return
	}
	latest, err := h.environment.LatestReadings(r.Context(), deviceID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(latest))
}
