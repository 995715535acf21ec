package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"finance-tracker/internal/models"
)

const transactionColumns = "id, user_id, type, category, amount, date, description"

// TransactionFilter narrows ListTransactions. Zero values disable a condition;
// From is inclusive and To exclusive.
type TransactionFilter struct {
	From time.Time
	To   time.Time
	Type models.TransactionType
}

// CreateTransaction inserts t and sets its ID.
func (q *Queries) CreateTransaction(ctx context.Context, t *models.Transaction) error {
	err := q.queryRow(ctx,
		"INSERT INTO transactions (user_id, type, category, amount, date, description) VALUES (?, ?, ?, ?, ?, ?) RETURNING id",
		t.UserID, string(t.Type), t.Category, t.Amount, t.Date.UTC(), nullString(t.Description),
	).Scan(&t.ID)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

// GetTransaction retrieves a transaction by ID scoped to its owner.
func (q *Queries) GetTransaction(ctx context.Context, userID, id int64) (*models.Transaction, error) {
	row := q.queryRow(ctx,
		"SELECT "+transactionColumns+" FROM transactions WHERE id = ? AND user_id = ?",
		id, userID,
	)
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get transaction: %w", err)
	}
	return t, nil
}

// TransactionExists reports whether any transaction has the given ID. It
// reveals nothing about the owner.
func (q *Queries) TransactionExists(ctx context.Context, id int64) (bool, error) {
	var one int
	err := q.queryRow(ctx, "SELECT 1 FROM transactions WHERE id = ?", id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("probe transaction: %w", err)
	}
	return true, nil
}

// UpdateTransaction overwrites the mutable fields of t. Both ID and UserID
// must match; otherwise ErrNotFound is returned.
func (q *Queries) UpdateTransaction(ctx context.Context, t *models.Transaction) error {
	res, err := q.exec(ctx,
		"UPDATE transactions SET type = ?, category = ?, amount = ?, date = ?, description = ? WHERE id = ? AND user_id = ?",
		string(t.Type), t.Category, t.Amount, t.Date.UTC(), nullString(t.Description), t.ID, t.UserID,
	)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	return expectOneRow(res)
}

// DeleteTransaction removes a transaction owned by userID.
func (q *Queries) DeleteTransaction(ctx context.Context, userID, id int64) error {
	res, err := q.exec(ctx, "DELETE FROM transactions WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	return expectOneRow(res)
}

// ListTransactions retrieves a user's transactions matching f, ordered by date descending.
func (q *Queries) ListTransactions(ctx context.Context, userID int64, f TransactionFilter) ([]models.Transaction, error) {
	var (
		where = []string{"user_id = ?"}
		args  = []any{userID}
	)
	if !f.From.IsZero() {
		where = append(where, "date >= ?")
		args = append(args, f.From.UTC())
	}
	if !f.To.IsZero() {
		where = append(where, "date < ?")
		args = append(args, f.To.UTC())
	}
	if f.Type != "" {
		where = append(where, "type = ?")
		args = append(args, string(f.Type))
	}

	rows, err := q.query(ctx,
		"SELECT "+transactionColumns+" FROM transactions WHERE "+strings.Join(where, " AND ")+" ORDER BY date DESC, id DESC",
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var transactions []models.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		transactions = append(transactions, *t)
	}
	return transactions, rows.Err()
}

// ListTransactionDates returns the date of every transaction the user owns.
func (q *Queries) ListTransactionDates(ctx context.Context, userID int64) ([]time.Time, error) {
	rows, err := q.query(ctx, "SELECT date FROM transactions WHERE user_id = ?", userID)
	if err != nil {
		return nil, fmt.Errorf("list transaction dates: %w", err)
	}
	defer rows.Close()

	var dates []time.Time
	for rows.Next() {
		var d time.Time
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("scan transaction date: %w", err)
		}
		dates = append(dates, d.UTC())
	}
	return dates, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*models.Transaction, error) {
	var (
		t     models.Transaction
		typ   string
		descr sql.NullString
	)
	if err := row.Scan(&t.ID, &t.UserID, &typ, &t.Category, &t.Amount, &t.Date, &descr); err != nil {
		return nil, err
	}
	t.Type = models.TransactionType(typ)
	t.Date = t.Date.UTC()
	t.Description = descr.String
	return &t, nil
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return models.ErrNotFound
	}
	return nil
}
