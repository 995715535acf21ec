// Package report filters a user's ledger and aggregates it into totals.
package report

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"finance-tracker/internal/logging"
	"finance-tracker/internal/models"
	"finance-tracker/internal/storage"
)

// Summary holds the totals of a transaction set.
type Summary struct {
	Income            decimal.Decimal
	Expenses          decimal.Decimal
	Balance           decimal.Decimal
	ExpenseByCategory map[string]decimal.Decimal
}

// CategoryTotal is one row of the expense breakdown.
type CategoryTotal struct {
	Category   string
	Total      decimal.Decimal
	Count      int
	Percentage float64
}

// Report is a filtered transaction list with its totals.
type Report struct {
	Filter       Filter
	Transactions []models.Transaction
	Summary
	// Categories is the expense breakdown, largest first.
	Categories []CategoryTotal
}

// Summarize totals txns. Balance is always Income minus Expenses.
func Summarize(txns []models.Transaction) Summary {
	s := Summary{
		Income:            decimal.Zero,
		Expenses:          decimal.Zero,
		ExpenseByCategory: make(map[string]decimal.Decimal),
	}
	for _, t := range txns {
		switch t.Type {
		case models.TypeIncome:
			s.Income = s.Income.Add(t.Amount)
		case models.TypeExpense:
			s.Expenses = s.Expenses.Add(t.Amount)
			s.ExpenseByCategory[t.Category] = s.ExpenseByCategory[t.Category].Add(t.Amount)
		}
	}
	s.Balance = s.Income.Sub(s.Expenses)
	return s
}

// Breakdown turns the per-category expense sums into rows sorted by total
// descending, then by name.
func Breakdown(txns []models.Transaction, s Summary) []CategoryTotal {
	counts := make(map[string]int)
	for _, t := range txns {
		if t.Type == models.TypeExpense {
			counts[t.Category]++
		}
	}

	rows := make([]CategoryTotal, 0, len(s.ExpenseByCategory))
	for category, total := range s.ExpenseByCategory {
		pct := 0.0
		if s.Expenses.IsPositive() {
			pct = total.Div(s.Expenses).Mul(decimal.NewFromInt(100)).InexactFloat64()
		}
		rows = append(rows, CategoryTotal{
			Category:   category,
			Total:      total,
			Count:      counts[category],
			Percentage: pct,
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		if c := rows[i].Total.Cmp(rows[j].Total); c != 0 {
			return c > 0
		}
		return rows[i].Category < rows[j].Category
	})
	return rows
}

// Periods returns the distinct (year, month) pairs of dates, newest first.
func Periods(dates []time.Time) []Period {
	seen := make(map[Period]struct{})
	periods := make([]Period, 0)
	for _, d := range dates {
		p := Period{Year: d.Year(), Month: int(d.Month())}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		periods = append(periods, p)
	}
	sort.Slice(periods, func(i, j int) bool {
		if periods[i].Year != periods[j].Year {
			return periods[i].Year > periods[j].Year
		}
		return periods[i].Month > periods[j].Month
	})
	return periods
}

// Engine builds reports from the store.
type Engine struct {
	db  *storage.DB
	log logrus.FieldLogger
}

// NewEngine creates an Engine.
func NewEngine(db *storage.DB, log logrus.FieldLogger) *Engine {
	return &Engine{db: db, log: log.WithField(logging.FieldComponent, logging.ComponentReport)}
}

// BuildReport loads the user's transactions matching f, newest first, and totals them.
func (e *Engine) BuildReport(ctx context.Context, userID int64, f Filter) (*Report, error) {
	var lf storage.TransactionFilter
	if from, to, ok := f.DateRange(); ok {
		lf.From, lf.To = from, to
	}
	lf.Type = f.Type

	txns, err := e.db.ListTransactions(ctx, userID, lf)
	if err != nil {
		return nil, err
	}

	summary := Summarize(txns)
	e.log.WithFields(logrus.Fields{
		logging.FieldUserID: userID,
		"transactions":      len(txns),
	}).Debug("report built")

	return &Report{
		Filter:       f,
		Transactions: txns,
		Summary:      summary,
		Categories:   Breakdown(txns, summary),
	}, nil
}

// AvailablePeriods lists every (year, month) the user has transactions in,
// regardless of any active filter.
func (e *Engine) AvailablePeriods(ctx context.Context, userID int64) ([]Period, error) {
	dates, err := e.db.ListTransactionDates(ctx, userID)
	if err != nil {
		return nil, err
	}
	return Periods(dates), nil
}
