// Package export renders a report as a CSV or PDF attachment.
package export

import (
	"encoding/csv"
	"io"

	"finance-tracker/internal/models"
)

// CSVHeader is the first row of every CSV export.
var CSVHeader = []string{"Date", "Type", "Category", "Amount", "Description"}

// DateTimeLayout is how timestamps appear in exports.
const DateTimeLayout = "2006-01-02 15:04:05"

// WriteCSV writes txns as UTF-8 CSV, one row per transaction in the given order.
func WriteCSV(w io.Writer, txns []models.Transaction) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return err
	}
	for _, t := range txns {
		record := []string{
			t.Date.UTC().Format(DateTimeLayout),
			t.Type.Title(),
			t.Category,
			t.Amount.StringFixed(2),
			t.Description,
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
