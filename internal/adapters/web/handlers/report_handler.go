package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/lcalzada-xor/tagap/internal/core/domain"
)

// SummarySource produces the capture summary behind a report.
type SummarySource interface {
	Generate(ctx context.Context, filter domain.CaptureFilter) (*domain.CaptureSummary, error)
}

// SummaryExporter renders a capture summary document.
type SummaryExporter interface {
	ExportCaptureSummary(summary *domain.CaptureSummary) ([]byte, error)
}

// ReportHandler handles report generation
type ReportHandler struct {
	Generator SummarySource
	Exporter  SummaryExporter
}

// NewReportHandler creates a new ReportHandler. generator is nil when
// persistence is disabled.
func NewReportHandler(generator SummarySource, exporter SummaryExporter) *ReportHandler {
	return &ReportHandler{Generator: generator, Exporter: exporter}
}

// HandleCapturesPDF streams the capture summary as a PDF attachment. It
// accepts the same query parameters as the capture list.
func (h *ReportHandler) HandleCapturesPDF(w http.ResponseWriter, r *http.Request) {
	if h.Generator == nil {
		writeError(w, http.StatusServiceUnavailable, "persistence disabled")
		return
	}

	filter, err := ParseCaptureFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	summary, err := h.Generator.Generate(r.Context(), filter)
	if err != nil {
		slog.Error("capture summary failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to build summary")
		return
	}

	pdf, err := h.Exporter.ExportCaptureSummary(summary)
	if err != nil {
		slog.Error("pdf export failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to render report")
		return
	}

	name := fmt.Sprintf("tagap-captures-%s.pdf", summary.GeneratedAt.Format("20060102-150405"))
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(pdf)))
	w.WriteHeader(http.StatusOK)
	w.Write(pdf)
}
