package httpapi

import (
	"fmt"
	"net/http"
	"sort"
	"strconv"

	"github.com/LuisSimiao/Riada-Care-System/internal/domain"
	"github.com/LuisSimiao/Riada-Care-System/internal/service"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// ExportHandler 聚合结果导出为 xlsx
type ExportHandler struct {
	environment *service.EnvironmentService
	logger      *zap.Logger
}

func NewExportHandler(environment *service.EnvironmentService, logger *zap.Logger) *ExportHandler {
	return &ExportHandler{environment: environment, logger: logger}
}

// Export GET /api/export?group=CARE-A&date=2026-08-30
func (h *ExportHandler) Export(w http.ResponseWriter, r *http.Request) {
	group := r.URL.Query().Get("group")
	date := r.URL.Query().Get("date")
	agg, err := h.environment.Aggregate(r.Context(), group, date)
	if err != nil {
		writeError(w, err)
		return
	}

	f, err := buildExportWorkbook(agg)
	if err != nil {
		h.logger.Error("Failed to build export workbook", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("failed to build export"))
		return
	}
	defer f.Close()

	filename := fmt.Sprintf("environment_%s_%s.xlsx", group, date)
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	if err := f.Write(w); err != nil {
		h.logger.Error("Failed to write export workbook", zap.Error(err))
	}
}

// buildExportWorkbook 两张表：Environment（分时段平均）、Alerts（分时段计数）
func buildExportWorkbook(agg *service.Aggregation) (*excelize.File, error) {
	f := excelize.NewFile()

	const envSheet = "Environment"
	if err := f.SetSheetName("Sheet1", envSheet); err != nil {
		return nil, err
	}

	header := []any{"Device", "Channel"}
	for _, label := range agg.PeriodLabels {
		header = append(header, label)
	}
	if err := f.SetSheetRow(envSheet, "A1", &header); err != nil {
		return nil, err
	}

	deviceIDs := make([]string, 0, len(agg.ChannelAverages))
	for deviceID := range agg.ChannelAverages {
		deviceIDs = append(deviceIDs, deviceID)
	}
	sort.Strings(deviceIDs)

	row := 2
	for _, deviceID := range deviceIDs {
		channels := agg.ChannelAverages[deviceID]
		for _, channel := range domain.Channels {
			cells := []any{deviceID, string(channel)}
			for _, v := range channels[channel] {
				if v == nil {
					cells = append(cells, "-")
				} else {
					cells = append(cells, *v)
				}
			}
			cell := "A" + strconv.Itoa(row)
			if err := f.SetSheetRow(envSheet, cell, &cells); err != nil {
				return nil, err
			}
			row++
		}
	}

	const alertSheet = "Alerts"
	if _, err := f.NewSheet(alertSheet); err != nil {
		return nil, err
	}
	alertHeader := []any{"Event type", "Device"}
	for _, label := range agg.PeriodLabels {
		alertHeader = append(alertHeader, label)
	}
	alertHeader = append(alertHeader, "Total")
	if err := f.SetSheetRow(alertSheet, "A1", &alertHeader); err != nil {
		return nil, err
	}

	row = 2
	for _, table := range agg.AlertTables {
		for _, tableRow := range table.Rows {
			cells := []any{table.EventType, tableRow.DeviceID}
			for _, n := range tableRow.Counts {
				if n == 0 {
					cells = append(cells, "-")
				} else {
					cells = append(cells, n)
				}
			}
			cells = append(cells, tableRow.Total)
			cell := "A" + strconv.Itoa(row)
			if err := f.SetSheetRow(alertSheet, cell, &cells); err != nil {
				return nil, err
			}
			row++
		}
	}

	return f, nil
}
