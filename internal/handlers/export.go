package handlers

import (
	"bytes"
	"mime"
	"net/http"
	"strconv"

	"github.com/sirupsen/logrus"

	"finance-tracker/internal/export"
	"finance-tracker/internal/logging"
	"finance-tracker/internal/report"
)

// ExportCSV sends the filtered transactions as a CSV attachment.
func (h *Handlers) ExportCSV(w http.ResponseWriter, r *http.Request) {
	h.export(w, r, "csv", "text/csv; charset=utf-8", func(buf *bytes.Buffer, rep *report.Report) error {
		return export.WriteCSV(buf, rep.Transactions)
	})
}

// ExportPDF sends the filtered report as a PDF attachment.
func (h *Handlers) ExportPDF(w http.ResponseWriter, r *http.Request) {
	h.export(w, r, "pdf", "application/pdf", func(buf *bytes.Buffer, rep *report.Report) error {
		return export.WritePDF(buf, export.Document{
			Username:  identity(r).User.Username,
			Generated: h.now(),
			Report:    rep,
		})
	})
}

// export builds the whole file before writing headers so a failure can still
// become an error response.
func (h *Handlers) export(w http.ResponseWriter, r *http.Request, ext, contentType string, write func(*bytes.Buffer, *report.Report) error) {
	user := identity(r).User
	q := r.URL.Query()
	f := report.ParseFilter(q.Get("month"), q.Get("year"), q.Get("type"))

	rep, err := h.reports.BuildReport(r.Context(), user.ID, f)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := write(&buf, rep); err != nil {
		h.serverError(w, r, err)
		return
	}

	logging.FromContext(r.Context()).WithFields(logrus.Fields{
		logging.FieldComponent: logging.ComponentExport,
		logging.FieldOperation: logging.OpExport,
		logging.FieldFormat:    ext,
		"transactions":         len(rep.Transactions),
	}).Info("export generated")

	name := export.Filename(user.Username, f, ext, h.now())
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	_, _ = buf.WriteTo(w)
}
