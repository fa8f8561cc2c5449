package httpapi

import (
	"net/http"

	"github.com/LuisSimiao/Riada-Care-System/internal/service"

	"go.uber.org/zap"
)

// AlertHandler 告警创建/查询/确认接口
type AlertHandler struct {
	alerts *service.AlertService
	logger *zap.Logger
}

func NewAlertHandler(alerts *service.AlertService, logger *zap.Logger) *AlertHandler {
	return &AlertHandler{alerts: alerts, logger: logger}
}

// Create POST /api/alerts
func (h *AlertHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req service.CreateAlertRequest
	if err := readJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid request body"))
		return
	}
	eventID, err := h.alerts.CreateAlert(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]string{"event_id": eventID}))
}

// Unacknowledged GET /api/unacknowledged-alerts
func (h *AlertHandler) Unacknowledged(w http.ResponseWriter, r *http.Request) {
	alerts, err := h.alerts.Unacknowledged(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(alerts))
}

type acknowledgeRequest struct {
	Date     string `json:"date"`
	Time     string `json:"time"`
	Location string `json:"location"`
}

// Acknowledge POST /api/acknowledge-alert
func (h *AlertHandler) Acknowledge(w http.ResponseWriter, r *http.Request) {
	var req acknowledgeRequest
	if err := readJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid request body"))
		return
	}
	affected, err := h.alerts.Acknowledge(r.Context(), req.Date, req.Time, req.Location)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]int64{"affected": affected}))
}
