package httpapi

import (
	"net/http"

	"github.com/LuisSimiao/Riada-Care-System/internal/service"

	"go.uber.org/zap"
)

// ReportHandler 事故报告接口：先落盘 PDF，再确认对应时间窗的告警
type ReportHandler struct {
	reports *service.ReportService
	alerts  *service.AlertService
	logger  *zap.Logger
}

func NewReportHandler(reports *service.ReportService, alerts *service.AlertService, logger *zap.Logger) *ReportHandler {
	return &ReportHandler{reports: reports, alerts: alerts, logger: logger}
}

// Create POST /api/accident-report
func (h *ReportHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req service.AccidentReport
	if err := readJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid request body"))
		return
	}
	if req.Location == "" || req.Date == "" || req.Time == "" {
		writeJSON(w, http.StatusBadRequest, Fail("location, date and time are required"))
		return
	}

	path, err := h.reports.Save(req)
	if err != nil {
		writeError(w, err)
		return
	}

	affected, err := h.alerts.Acknowledge(r.Context(), req.Date, req.Time, req.Location)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, Ok(map[string]any{
		"path":     path,
		"affected": affected,
	}))
}
