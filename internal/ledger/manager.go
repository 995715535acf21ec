// Package ledger adds, edits and deletes transactions on behalf of their owner.
package ledger

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"finance-tracker/internal/logging"
	"finance-tracker/internal/models"
	"finance-tracker/internal/storage"
)

// Input is a submitted transaction form. All values are raw strings.
type Input struct {
	Type           string
	Category       string
	CustomCategory string
	Amount         string
	Date           string
	Description    string
}

// Patch carries the fields of an edit; nil fields are left unchanged.
type Patch struct {
	Type           *string
	Category       *string
	CustomCategory *string
	Amount         *string
	Date           *string
	Description    *string
}

// Manager owns every transaction mutation. Each call runs in one database
// transaction and only touches rows owned by the given user.
type Manager struct {
	db  *storage.DB
	log logrus.FieldLogger
	now func() time.Time
}

// NewManager creates a Manager.
func NewManager(db *storage.DB, log logrus.FieldLogger) *Manager {
	return &Manager{
		db:  db,
		log: log.WithField(logging.FieldComponent, logging.ComponentLedger),
		now: time.Now,
	}
}

// Add validates in and records a new transaction for userID.
func (m *Manager) Add(ctx context.Context, userID int64, in Input) (*models.Transaction, error) {
	typ, err := ParseType(in.Type)
	if err != nil {
		return nil, err
	}
	category, err := ResolveCategory(in.Category, in.CustomCategory)
	if err != nil {
		return nil, err
	}
	amount, err := ParseAmount(in.Amount)
	if err != nil {
		return nil, err
	}
	date, err := ParseDate(in.Date, m.now())
	if err != nil {
		return nil, err
	}

	t := &models.Transaction{
		UserID:      userID,
		Type:        typ,
		Category:    category,
		Amount:      amount,
		Date:        date,
		Description: strings.TrimSpace(in.Description),
	}
	if err := m.db.InTx(ctx, func(q *storage.Queries) error {
		return q.CreateTransaction(ctx, t)
	}); err != nil {
		return nil, err
	}

	m.logMutation(t, logging.OpCreate).Info("transaction created")
	return t, nil
}

// Get returns the transaction with id when userID owns it.
func (m *Manager) Get(ctx context.Context, userID, id int64) (*models.Transaction, error) {
	var t *models.Transaction
	err := m.db.InTx(ctx, func(q *storage.Queries) error {
		var err error
		t, err = q.GetTransaction(ctx, userID, id)
		if errors.Is(err, models.ErrNotFound) {
			return missing(ctx, q, id)
		}
		return err
	})
	return t, err
}

// Edit applies the supplied fields of p to transaction id. It fails with
// models.ErrNotFound when id does not exist and models.ErrForbidden when it
// belongs to someone else.
func (m *Manager) Edit(ctx context.Context, userID, id int64, p Patch) (*models.Transaction, error) {
	var t *models.Transaction
	err := m.db.InTx(ctx, func(q *storage.Queries) error {
		var err error
		t, err = q.GetTransaction(ctx, userID, id)
		if errors.Is(err, models.ErrNotFound) {
			return missing(ctx, q, id)
		}
		if err != nil {
			return err
		}
		if err := m.apply(t, p); err != nil {
			return err
		}
		return q.UpdateTransaction(ctx, t)
	})
	if err != nil {
		return nil, err
	}

	m.logMutation(t, logging.OpUpdate).Info("transaction updated")
	return t, nil
}

// Delete removes transaction id permanently. A second delete of the same id
// fails with models.ErrNotFound.
func (m *Manager) Delete(ctx context.Context, userID, id int64) error {
	err := m.db.InTx(ctx, func(q *storage.Queries) error {
		err := q.DeleteTransaction(ctx, userID, id)
		if errors.Is(err, models.ErrNotFound) {
			return missing(ctx, q, id)
		}
		return err
	})
	if err != nil {
		return err
	}

	m.log.WithFields(logrus.Fields{
		logging.FieldUserID:    userID,
		logging.FieldTxID:      id,
		logging.FieldOperation: logging.OpDelete,
	}).Info("transaction deleted")
	return nil
}

func (m *Manager) apply(t *models.Transaction, p Patch) error {
	if p.Type != nil {
		typ, err := ParseType(*p.Type)
		if err != nil {
			return err
		}
		t.Type = typ
	}
	if p.Category != nil {
		custom := ""
		if p.CustomCategory != nil {
			custom = *p.CustomCategory
		}
		category, err := ResolveCategory(*p.Category, custom)
		if err != nil {
			return err
		}
		t.Category = category
	}
	if p.Amount != nil {
		amount, err := ParseAmount(*p.Amount)
		if err != nil {
			return err
		}
		t.Amount = amount
	}
	// A blank date on edit keeps the stored one.
	if p.Date != nil && strings.TrimSpace(*p.Date) != "" {
		date, err := ParseDate(*p.Date, m.now())
		if err != nil {
			return err
		}
		t.Date = date
	}
	if p.Description != nil {
		t.Description = strings.TrimSpace(*p.Description)
	}
	return nil
}

func (m *Manager) logMutation(t *models.Transaction, op string) *logrus.Entry {
	return m.log.WithFields(logrus.Fields{
		logging.FieldUserID:    t.UserID,
		logging.FieldTxID:      t.ID,
		logging.FieldTxType:    t.Type,
		logging.FieldOperation: op,
	})
}

// missing tells a foreign transaction apart from an absent one after an
// owner-scoped lookup came back empty.
func missing(ctx context.Context, q *storage.Queries, id int64) error {
	exists, err := q.TransactionExists(ctx, id)
	if err != nil {
		return err
	}
	if exists {
		return models.ErrForbidden
	}
	return models.ErrNotFound
}
