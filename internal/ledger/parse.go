package ledger

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"finance-tracker/internal/models"
)

// dateLayouts are tried in order; the first two are what date and
// datetime-local inputs submit.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02T15:04",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	time.RFC3339,
}

// ParseType validates a transaction type.
func ParseType(s string) (models.TransactionType, error) {
	t := models.TransactionType(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", models.Invalid("type", "type must be income or expense")
	}
	return t, nil
}

// maxAmount is the exclusive upper bound of a stored amount, NUMERIC(14,2).
var maxAmount = decimal.New(1, 12)

// ParseAmount parses a non-negative currency amount rounded to cents.
// Exponent notation is rejected.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, models.Invalid("amount", "amount is required")
	}
	if strings.ContainsAny(s, "eE") {
		return decimal.Zero, models.Invalid("amount", "amount %q is not a number", s)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, models.Invalid("amount", "amount %q is not a number", s)
	}
	if d.IsNegative() {
		return decimal.Zero, models.Invalid("amount", "amount must not be negative")
	}
	d = d.Round(2)
	if d.GreaterThanOrEqual(maxAmount) {
		return decimal.Zero, models.Invalid("amount", "amount must be less than %s", maxAmount.String())
	}
	return d, nil
}

// ParseDate parses a submitted date or date-time as UTC. An empty value
// yields now.
func ParseDate(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return now.UTC(), nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, models.Invalid("date", "date %q is not valid", s)
}
