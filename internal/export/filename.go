package export

import (
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gosimple/slug"
	"github.com/shopspring/decimal"

	"finance-tracker/internal/report"
)

// Filename builds the attachment name, e.g. transactions_alice_Jan2024_income_20240201.csv.
func Filename(username string, f report.Filter, ext string, now time.Time) string {
	user := slug.Make(username)
	if user == "" {
		user = "user"
	}
	parts := []string{"transactions", user}
	if f.HasPeriod() {
		parts = append(parts, time.Month(f.Month).String()[:3]+strconv.Itoa(f.Year))
	}
	if f.Type != "" {
		parts = append(parts, string(f.Type))
	}
	parts = append(parts, now.Format("20060102"))
	return strings.Join(parts, "_") + "." + ext
}

// Money formats d as a dollar amount with thousands separators and two decimals.
func Money(d decimal.Decimal) string {
	d = d.Round(2)
	whole, cents, _ := strings.Cut(d.Abs().StringFixed(2), ".")
	n, _ := new(big.Int).SetString(whole, 10)
	s := humanize.BigComma(n) + "." + cents
	if d.IsNegative() {
		return "-$" + s
	}
	return "$" + s
}
