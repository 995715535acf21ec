package report

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"finance-tracker/internal/models"
)

// TypeAll is the query value selecting both transaction types.
const TypeAll = "all"

// Filter selects which transactions a report covers. Month and Year are zero
// when absent; an empty Type means all types.
type Filter struct {
	Month int
	Year  int
	Type  models.TransactionType
}

// ParseFilter reads the month, year and type query values. Malformed or
// out-of-range values are treated as absent.
func ParseFilter(month, year, typ string) Filter {
	var f Filter
	if m, err := strconv.Atoi(strings.TrimSpace(month)); err == nil && m >= 1 && m <= 12 {
		f.Month = m
	}
	if y, err := strconv.Atoi(strings.TrimSpace(year)); err == nil && y >= 1 && y <= 9999 {
		f.Year = y
	}
	if t := models.TransactionType(strings.ToLower(strings.TrimSpace(typ))); t.Valid() {
		f.Type = t
	}
	return f
}

// HasPeriod reports whether both month and year are set. With only one of
// them the date filter is skipped.
func (f Filter) HasPeriod() bool {
	return f.Month >= 1 && f.Month <= 12 && f.Year > 0
}

// DateRange returns the half-open UTC range [first of month, first of next month).
func (f Filter) DateRange() (from, to time.Time, ok bool) {
	if !f.HasPeriod() {
		return time.Time{}, time.Time{}, false
	}
	from = time.Date(f.Year, time.Month(f.Month), 1, 0, 0, 0, 0, time.UTC)
	nextYear, nextMonth := f.Year, f.Month+1
	if f.Month == 12 {
		nextYear, nextMonth = f.Year+1, 1
	}
	to = time.Date(nextYear, time.Month(nextMonth), 1, 0, 0, 0, 0, time.UTC)
	return from, to, true
}

// TypeParam returns the type as a query value.
func (f Filter) TypeParam() string {
	if f.Type == "" {
		return TypeAll
	}
	return string(f.Type)
}

// Describe returns a human-readable summary such as "January 2024, Income only".
func (f Filter) Describe() string {
	period := "All dates"
	if f.HasPeriod() {
		period = fmt.Sprintf("%s %d", time.Month(f.Month), f.Year)
	}
	kind := "all types"
	if f.Type != "" {
		kind = f.Type.Title() + " only"
	}
	return period + ", " + kind
}

// Period is a (year, month) pair that has at least one transaction.
type Period struct {
	Year  int
	Month int
}

// Label renders the period as "January 2024".
func (p Period) Label() string {
	return fmt.Sprintf("%s %d", time.Month(p.Month), p.Year)
}
