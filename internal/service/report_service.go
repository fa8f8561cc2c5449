package service

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
	"go.uber.org/zap"
)

// AccidentReport 事故报告表单
type AccidentReport struct {
	Location    string `json:"location"`
	Date        string `json:"date"` // YYYY-MM-DD
	Time        string `json:"time"` // HH:MM
	Resident    string `json:"resident"`
	Reporter    string `json:"reporter"`
	Description string `json:"description"`
	Actions     string `json:"actions"`
}

// ReportService 事故报告 PDF 渲染与归档
type ReportService struct {
	dir    string
	logger *zap.Logger
}

// NewReportService 创建报告服务
func NewReportService(dir string, logger *zap.Logger) *ReportService {
	return &ReportService{dir: dir, logger: logger}
}

// Save 渲染 PDF 并保存到 <dir>/<location>/Accident_Report_<location>_<date>_<time>.pdf
func (s *ReportService) Save(report AccidentReport) (string, error) {
	pdfBytes, err := renderAccidentPDF(report)
	if err != nil {
		return "", fmt.Errorf("failed to render accident report: %w", err)
	}

	saveDir := filepath.Join(s.dir, report.Location)
	if err := os.MkdirAll(saveDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create report directory: %w", err)
	}

	filename := fmt.Sprintf("Accident_Report_%s_%s_%s.pdf",
		report.Location, report.Date, strings.ReplaceAll(report.Time, ":", "-"))
	path := filepath.Join(saveDir, filename)

	if err := os.WriteFile(path, pdfBytes, 0o644); err != nil {
		return "", fmt.Errorf("failed to save accident report: %w", err)
	}

	s.logger.Info("Accident report saved", zap.String("path", path))
	return path, nil
}

// renderAccidentPDF 渲染事故报告 PDF
func renderAccidentPDF(report AccidentReport) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "B", 14)
	pdf.AddPage()

	pdf.Cell(0, 8, "Accident Report")
	pdf.Ln(12)

	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Location: %s", report.Location))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Date: %s", report.Date))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Time: %s", report.Time))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Resident: %s", report.Resident))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Reported by: %s", report.Reporter))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Generated: %s", time.Now().Format(time.RFC3339)))
	pdf.Ln(10)

	pdf.SetFont("Arial", "B", 10)
	pdf.Cell(0, 6, "Description")
	pdf.Ln(6)
	pdf.SetFont("Arial", "", 10)
	pdf.MultiCell(0, 5, report.Description, "", "L", false)
	pdf.Ln(6)

	pdf.SetFont("Arial", "B", 10)
	pdf.Cell(0, 6, "Actions taken")
	pdf.Ln(6)
	pdf.SetFont("Arial", "", 10)
	pdf.MultiCell(0, 5, report.Actions, "", "L", false)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
