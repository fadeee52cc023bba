package reporting

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/jung-kurt/gofpdf"

	"github.com/lcalzada-xor/tagap/internal/core/domain"
)

// maxRecentRows caps the recent-capture table at one page.
const maxRecentRows = 30

// PDFExporter exports capture summaries to PDF format
type PDFExporter struct {
	title string
}

// NewPDFExporter creates a new PDF exporter instance
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{title: "Tagged Frame Capture Summary"}
}

// ExportCaptureSummary renders a capture summary as a PDF document
func (e *PDFExporter) ExportCaptureSummary(summary *domain.CaptureSummary) ([]byte, error) {
	if summary == nil {
		return nil, fmt.Errorf("nil capture summary")
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()

	e.addHeader(pdf, summary)
	e.addDeviceTable(pdf, summary)
	e.addRecentCaptures(pdf, summary)
	e.addFooter(pdf, summary)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to generate PDF: %w", err)
	}
	return buf.Bytes(), nil
}

func (e *PDFExporter) addHeader(pdf *gofpdf.Fpdf, summary *domain.CaptureSummary) {
	pdf.SetFont("Arial", "B", 22)
	pdf.SetTextColor(0, 51, 102)
	pdf.CellFormat(0, 15, e.title, "", 1, "L", false, 0, "")
	pdf.Ln(2)

	pdf.SetFont("Arial", "", 10)
	pdf.SetTextColor(120, 120, 120)
	pdf.CellFormat(0, 6, "Generated: "+summary.GeneratedAt.Format("2006-01-02 15:04:05"), "", 1, "L", false, 0, "")

	var total int64
	for _, s := range summary.Stats {
		total += s.Count
	}
	pdf.CellFormat(0, 6, fmt.Sprintf("Registered devices: %d   Stored captures: %d", len(summary.Devices), total), "", 1, "L", false, 0, "")
	pdf.Ln(8)
}

// signalColor grades an average RSSI in dBm.
func (e *PDFExporter) signalColor(rssi float64) (r, g, b int) {
	switch {
	case rssi >= -55:
		return 52, 199, 89 // strong
	case rssi >= -70:
		return 255, 204, 0
	case rssi >= -85:
		return 255, 149, 0
	default:
		return 220, 53, 69 // weak
	}
}

func (e *PDFExporter) sectionTitle(pdf *gofpdf.Fpdf, title string) {
	pdf.SetFont("Arial", "B", 14)
	pdf.SetTextColor(0, 51, 102)
	pdf.CellFormat(0, 10, title, "", 1, "L", false, 0, "")
	pdf.Ln(2)
}

func (e *PDFExporter) addDeviceTable(pdf *gofpdf.Fpdf, summary *domain.CaptureSummary) {
	e.sectionTitle(pdf, "Devices")

	stats := make(map[domain.DeviceID]domain.DeviceCaptureStats, len(summary.Stats))
	for _, s := range summary.Stats {
		stats[s.Device] = s
	}

	pdf.SetFillColor(240, 240, 240)
	pdf.SetFont("Arial", "B", 10)
	pdf.SetTextColor(60, 60, 60)
	pdf.CellFormat(12, 8, "ID", "1", 0, "C", true, 0, "")
	pdf.CellFormat(38, 8, "Label", "1", 0, "L", true, 0, "")
	pdf.CellFormat(45, 8, "Address", "1", 0, "L", true, 0, "")
	pdf.CellFormat(22, 8, "Captures", "1", 0, "C", true, 0, "")
	pdf.CellFormat(25, 8, "Avg RSSI", "1", 0, "C", true, 0, "")
	pdf.CellFormat(38, 8, "Last seen", "1", 1, "C", true, 0, "")

	pdf.SetFont("Arial", "", 9)
	for _, d := range summary.Devices {
		s, seen := stats[d.ID]

		pdf.SetTextColor(60, 60, 60)
		pdf.CellFormat(12, 7, d.ID.String(), "1", 0, "C", false, 0, "")
		pdf.CellFormat(38, 7, truncate(d.DisplayName(), 22), "1", 0, "L", false, 0, "")
		pdf.CellFormat(45, 7, d.Address.String(), "1", 0, "L", false, 0, "")
		pdf.CellFormat(22, 7, strconv.FormatInt(s.Count, 10), "1", 0, "C", false, 0, "")

		if seen {
			r, g, b := e.signalColor(s.AvgRSSI)
			pdf.SetTextColor(r, g, b)
			pdf.CellFormat(25, 7, fmt.Sprintf("%.1f dB", s.AvgRSSI), "1", 0, "C", false, 0, "")
			pdf.SetTextColor(60, 60, 60)
			pdf.CellFormat(38, 7, s.LastSeen.Format("2006-01-02 15:04"), "1", 1, "C", false, 0, "")
		} else {
			pdf.CellFormat(25, 7, "-", "1", 0, "C", false, 0, "")
			pdf.CellFormat(38, 7, "never", "1", 1, "C", false, 0, "")
		}
	}
	pdf.Ln(8)
}

func (e *PDFExporter) addRecentCaptures(pdf *gofpdf.Fpdf, summary *domain.CaptureSummary) {
	e.sectionTitle(pdf, "Recent Captures")

	if len(summary.Recent) == 0 {
		pdf.SetFont("Arial", "I", 10)
		pdf.SetTextColor(100, 100, 100)
		pdf.CellFormat(0, 7, "No captures recorded", "", 1, "L", false, 0, "")
		return
	}

	pdf.SetFillColor(240, 240, 240)
	pdf.SetFont("Arial", "B", 9)
	pdf.SetTextColor(60, 60, 60)
	pdf.CellFormat(38, 7, "Time", "1", 0, "C", true, 0, "")
	pdf.CellFormat(14, 7, "Dev", "1", 0, "C", true, 0, "")
	pdf.CellFormat(18, 7, "RSSI", "1", 0, "C", true, 0, "")
	pdf.CellFormat(18, 7, "Noise", "1", 0, "C", true, 0, "")
	pdf.CellFormat(18, 7, "Samples", "1", 0, "C", true, 0, "")
	pdf.CellFormat(24, 7, "Min/Max", "1", 0, "C", true, 0, "")
	pdf.CellFormat(25, 7, "Mean", "1", 0, "C", true, 0, "")
	pdf.CellFormat(25, 7, "StdDev", "1", 1, "C", true, 0, "")

	pdf.SetFont("Arial", "", 8)
	for i, c := range summary.Recent {
		if i >= maxRecentRows {
			break
		}
		if pdf.GetY() > 265 {
			pdf.AddPage()
		}
		s := c.Summary
		pdf.CellFormat(38, 6, c.Timestamp.Format("01-02 15:04:05.000"), "1", 0, "C", false, 0, "")
		pdf.CellFormat(14, 6, c.Device.String(), "1", 0, "C", false, 0, "")
		pdf.CellFormat(18, 6, strconv.Itoa(c.RSSI), "1", 0, "C", false, 0, "")
		pdf.CellFormat(18, 6, strconv.Itoa(c.NoiseFloor), "1", 0, "C", false, 0, "")
		pdf.CellFormat(18, 6, strconv.Itoa(s.Count), "1", 0, "C", false, 0, "")
		pdf.CellFormat(24, 6, fmt.Sprintf("%d/%d", s.Min, s.Max), "1", 0, "C", false, 0, "")
		pdf.CellFormat(25, 6, fmt.Sprintf("%.2f", s.Mean), "1", 0, "C", false, 0, "")
		pdf.CellFormat(25, 6, fmt.Sprintf("%.2f", s.StdDev), "1", 1, "C", false, 0, "")
	}
}

func (e *PDFExporter) addFooter(pdf *gofpdf.Fpdf, summary *domain.CaptureSummary) {
	pdf.SetY(-20)

	pdf.SetDrawColor(200, 200, 200)
	pdf.Line(20, pdf.GetY(), 190, pdf.GetY())
	pdf.Ln(3)

	pdf.SetFont("Arial", "I", 8)
	pdf.SetTextColor(120, 120, 120)
	footer := fmt.Sprintf("Generated by tagap | %d recent captures listed", min(len(summary.Recent), maxRecentRows))
	pdf.CellFormat(0, 5, footer, "", 1, "C", false, 0, "")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
