package handlers

import (
	"fmt"
	"net/http"

	"github.com/mkarlsen/dayblocks/internal/export"
)

// ExportHandler serves day summaries as markdown and CSV.
type ExportHandler struct {
	svc *export.Service
}

// NewExportHandler creates a new ExportHandler.
func NewExportHandler(svc *export.Service) *ExportHandler {
	return &ExportHandler{svc: svc}
}

// Markdown handles GET /api/export/markdown?date&tz_offset
func (h *ExportHandler) Markdown(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	tz, err := tzOffset(r)
	if err != nil {
		writeError(w, err)
		return
	}

	date := r.URL.Query().Get("date")
	doc, err := h.svc.Markdown(date, tz)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", date+".md"))
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, doc)
}

// CSV handles GET /api/export/csv?date&tz_offset
func (h *ExportHandler) CSV(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	tz, err := tzOffset(r)
	if err != nil {
		writeError(w, err)
		return
	}

	date := r.URL.Query().Get("date")
	doc, err := h.svc.CSV(date, tz)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", date+".csv"))
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, doc)
}
