package export

import (
	"io"
	"time"

	"github.com/go-pdf/fpdf"

	"finance-tracker/internal/models"
	"finance-tracker/internal/report"
)

// Page geometry in millimetres.
const (
	marginTop    = 15.0
	marginBottom = 20.0
	marginLeft   = 10.0
	marginRight  = 200.0
	lineHeight   = 6.0
	rowHeight    = 7.0

	maxCategoryChars    = 15
	maxDescriptionChars = 25

	fontFamily = "Helvetica"
	rowFont    = 9.0
)

type column struct {
	title string
	x     float64
}

var columns = []column{
	{"Date", marginLeft},
	{"Type", 45},
	{"Category", 70},
	{"Amount", 110},
	{"Description", 140},
}

type rgb struct{ r, g, b int }

var (
	colorIncome  = rgb{0, 128, 0}
	colorExpense = rgb{200, 0, 0}
	colorNeutral = rgb{0, 0, 0}
)

// Document is what a PDF export shows.
type Document struct {
	Username  string
	Generated time.Time
	Report    *report.Report
}

// WritePDF renders doc and writes the PDF to w.
func WritePDF(w io.Writer, doc Document) error {
	return newReportPDF(doc).Output(w)
}

// newReportPDF lays out the header block and the transaction table. Text is
// placed at absolute positions and pages break manually.
func newReportPDF(doc Document) *fpdf.Fpdf {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetTitle("Transaction Report", true)
	pdf.SetAuthor(doc.Username, true)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	_, pageHeight := pdf.GetPageSize()

	pdf.AddPage()
	y := marginTop

	pdf.SetFont(fontFamily, "B", 16)
	pdf.Text(marginLeft, y, "Transaction Report")
	y += lineHeight + 4

	pdf.SetFont(fontFamily, "", 11)
	for _, line := range []string{
		"User: " + doc.Username,
		"Generated: " + doc.Generated.Format(DateTimeLayout),
		"Filter: " + doc.Report.Filter.Describe(),
	} {
		pdf.Text(marginLeft, y, tr(line))
		y += lineHeight
	}
	y += 4

	pdf.SetFont(fontFamily, "B", 12)
	pdf.Text(marginLeft, y, "Summary")
	y += lineHeight + 1
	pdf.SetFont(fontFamily, "", 11)
	for _, line := range []string{
		"Total Income: " + Money(doc.Report.Income),
		"Total Expenses: " + Money(doc.Report.Expenses),
		"Balance: " + Money(doc.Report.Balance),
	} {
		pdf.Text(marginLeft, y, line)
		y += lineHeight
	}
	y += 6

	pdf.SetFont(fontFamily, "B", 10)
	for _, c := range columns {
		pdf.Text(c.x, y, c.title)
	}
	pdf.Line(marginLeft, y+2, marginRight, y+2)
	y += rowHeight

	pdf.SetFont(fontFamily, "", rowFont)
	if len(doc.Report.Transactions) == 0 {
		pdf.Text(marginLeft, y, "No transactions match this filter.")
		return pdf
	}

	for _, t := range doc.Report.Transactions {
		if y > pageHeight-marginBottom {
			pdf.AddPage()
			y = marginTop
			pdf.SetFont(fontFamily, "", rowFont)
		}
		writeRow(pdf, tr, t, y)
		y += rowHeight
	}
	return pdf
}

func writeRow(pdf *fpdf.Fpdf, tr func(string) string, t models.Transaction, y float64) {
	pdf.Text(columns[0].x, y, t.Date.UTC().Format("2006-01-02"))
	pdf.Text(columns[1].x, y, t.Type.Title())
	pdf.Text(columns[2].x, y, tr(truncate(t.Category, maxCategoryChars)))

	c := colorExpense
	if t.IsIncome() {
		c = colorIncome
	}
	pdf.SetTextColor(c.r, c.g, c.b)
	pdf.Text(columns[3].x, y, Money(t.Amount))
	pdf.SetTextColor(colorNeutral.r, colorNeutral.g, colorNeutral.b)

	pdf.Text(columns[4].x, y, tr(truncate(t.Description, maxDescriptionChars)))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
