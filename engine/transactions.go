package engine

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/moneta/finance-engine/finance"
)

// =============================================================================
// SINGLE-TRANSACTION OPERATIONS
// =============================================================================
// Paired rows are owned by the transfer coordinator; every path here
// rejects them so one leg can never be mutated without the other.

// CreateTransactionParams describes one manual ledger entry.
type CreateTransactionParams struct {
	AccountID   finance.AccountID
	CategoryID  finance.CategoryID
	Flow        finance.FlowType
	Amount      decimal.Decimal
	Date        finance.Date
	Description string
}

// TransactionPatch carries the fields UpdateTransaction may change.
type TransactionPatch struct {
	CategoryID  *finance.CategoryID
	Amount      *decimal.Decimal
	Date        *finance.Date
	Description *string
}

// CreateTransaction inserts one manual transaction and recomputes the
// affected caches.
func (e *Engine) CreateTransaction(ctx context.Context, owner finance.OwnerID, p CreateTransactionParams) (*finance.Transaction, error) {
	if !p.Amount.IsPositive() {
		return nil, finance.ErrInvalidInput
	}
	if p.Flow != finance.FlowIncome && p.Flow != finance.FlowOutcome {
		return nil, finance.ErrInvalidInput
	}

	tx := finance.Transaction{
		ID:          newTransactionID(),
		OwnerID:     owner,
		AccountID:   p.AccountID,
		CategoryID:  p.CategoryID,
		Flow:        p.Flow,
		Amount:      p.Amount,
		Date:        p.Date,
		Description: p.Description,
	}

	err := e.Store.WithTx(ctx, func(s finance.Store) error {
		if err := requireAccount(ctx, s, owner, p.AccountID); err != nil {
			return err
		}
		if err := requireCategory(ctx, s, owner, p.CategoryID); err != nil {
			return err
		}

		if err := s.InsertTransaction(ctx, tx); err != nil {
			return err
		}
		if _, err := recomputeAccountBalance(ctx, s, p.AccountID); err != nil {
			return err
		}
		// Income never affects budget consumption.
		if p.Flow == finance.FlowOutcome {
			if _, err := recomputeBudgetsForCategory(ctx, s, owner, p.CategoryID, e.Now()); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

// UpdateTransaction patches one unpaired transaction and recomputes the
// account balance plus the budgets of both the old and new category.
func (e *Engine) UpdateTransaction(ctx context.Context, owner finance.OwnerID, id finance.TransactionID, patch TransactionPatch) (*finance.Transaction, error) {
	if patch.Amount != nil && !patch.Amount.IsPositive() {
		return nil, finance.ErrInvalidInput
	}

	var updated finance.Transaction

	err := e.Store.WithTx(ctx, func(s finance.Store) error {
		tx, err := s.GetTransaction(ctx, owner, id)
		if err != nil {
			return err
		}
		if tx == nil {
			return &finance.NotFoundError{Entity: "transaction", ID: string(id), Owner: owner}
		}
		if tx.IsPaired() {
			return &finance.PairingError{Entity: "transaction", ID: string(id)}
		}

		oldCategory := tx.CategoryID
		if patch.CategoryID != nil {
			if err := requireCategory(ctx, s, owner, *patch.CategoryID); err != nil {
				return err
			}
			tx.CategoryID = *patch.CategoryID
		}
		if patch.Amount != nil {
			tx.Amount = *patch.Amount
		}
		if patch.Date != nil {
			tx.Date = *patch.Date
		}
		if patch.Description != nil {
			tx.Description = *patch.Description
		}

		if err := s.UpdateTransaction(ctx, *tx); err != nil {
			return err
		}
		if _, err := recomputeAccountBalance(ctx, s, tx.AccountID); err != nil {
			return err
		}
		if tx.Flow == finance.FlowOutcome {
			if _, err := recomputeBudgetsForCategory(ctx, s, owner, oldCategory, e.Now()); err != nil {
				return err
			}
			if tx.CategoryID != oldCategory {
				if _, err := recomputeBudgetsForCategory(ctx, s, owner, tx.CategoryID, e.Now()); err != nil {
					return err
				}
			}
		}

		updated = *tx
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeleteTransaction soft-deletes one unpaired transaction.
func (e *Engine) DeleteTransaction(ctx context.Context, owner finance.OwnerID, id finance.TransactionID) error {
	return e.Store.WithTx(ctx, func(s finance.Store) error {
		tx, err := s.GetTransaction(ctx, owner, id)
		if err != nil {
			return err
		}
		if tx == nil {
			return &finance.NotFoundError{Entity: "transaction", ID: string(id), Owner: owner}
		}
		if tx.IsPaired() {
			return &finance.PairingError{Entity: "transaction", ID: string(id)}
		}

		if err := s.SoftDeleteTransaction(ctx, id, e.Now()); err != nil {
			return err
		}
		if _, err := recomputeAccountBalance(ctx, s, tx.AccountID); err != nil {
			return err
		}
		if tx.Flow == finance.FlowOutcome {
			if _, err := recomputeBudgetsForCategory(ctx, s, owner, tx.CategoryID, e.Now()); err != nil {
				return err
			}
		}
		return nil
	})
}

func requireCategory(ctx context.Context, s finance.Store, owner finance.OwnerID, id finance.CategoryID) error {
	category, err := s.GetCategory(ctx, owner, id)
	if err != nil {
		return err
	}
	if category == nil {
		return &finance.NotFoundError{Entity: "category", ID: string(id), Owner: owner}
	}
	return nil
}
