/*
transfer.go - Paired-row transfer coordinator

PURPOSE:
  A transfer is two ledger rows (one outcome, one income) that point at
  each other. This file owns every code path that writes pair pointers:
  creation, mirrored update, and paired soft-delete, each as one atomic
  unit. The same contracts apply to recurring transfer templates.

INVARIANT:
  The pairing relation is always symmetric and always both-or-neither.
  No path here may ever leave one side paired and the other not.

SEE ALSO:
  - materialize.go: Emits paired occurrences from recurring templates
  - transactions.go: Rejects single-row mutation of paired rows
*/
package engine

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/moneta/finance-engine/finance"
)

// TransferPatch carries the mirrored fields an UpdateTransfer may change.
// Category, flow direction, and account are structurally fixed.
type TransferPatch struct {
	Amount      *decimal.Decimal
	Date        *finance.Date
	Description *string
}

// CreateTransfer moves amount from one account to another as a mutually
// paired outcome/income pair under the system transfer category.
func (e *Engine) CreateTransfer(ctx context.Context, owner finance.OwnerID, from, to finance.AccountID, amount decimal.Decimal, date finance.Date, description string) (finance.TransactionID, finance.TransactionID, error) {
	if !amount.IsPositive() {
		return "", "", finance.ErrInvalidInput
	}
	if from == to {
		return "", "", finance.ErrSelfReference
	}

	outcomeID := newTransactionID()
	incomeID := newTransactionID()

	err := e.Store.WithTx(ctx, func(s finance.Store) error {
		if err := requireAccount(ctx, s, owner, from); err != nil {
			return err
		}
		if err := requireAccount(ctx, s, owner, to); err != nil {
			return err
		}

		outcomeCat, incomeCat, err := transferCategories(ctx, s)
		if err != nil {
			return err
		}

		outcome := finance.Transaction{
			ID:                  outcomeID,
			OwnerID:             owner,
			AccountID:           from,
			CategoryID:          outcomeCat,
			Flow:                finance.FlowOutcome,
			Amount:              amount,
			Date:                date,
			Description:         description,
			PairedTransactionID: &incomeID,
		}
		income := finance.Transaction{
			ID:                  incomeID,
			OwnerID:             owner,
			AccountID:           to,
			CategoryID:          incomeCat,
			Flow:                finance.FlowIncome,
			Amount:              amount,
			Date:                date,
			Description:         description,
			PairedTransactionID: &outcomeID,
		}

		if err := s.InsertTransaction(ctx, outcome); err != nil {
			return err
		}
		if err := s.InsertTransaction(ctx, income); err != nil {
			return err
		}

		return recomputeAccounts(ctx, s, from, to)
	})
	if err != nil {
		return "", "", err
	}
	return outcomeID, incomeID, nil
}

// UpdateTransfer applies the supplied fields identically to both legs of
// the transfer containing transactionID. Rejects unpaired transactions.
func (e *Engine) UpdateTransfer(ctx context.Context, owner finance.OwnerID, transactionID finance.TransactionID, patch TransferPatch) (finance.TransactionID, finance.TransactionID, error) {
	if patch.Amount != nil && !patch.Amount.IsPositive() {
		return "", "", finance.ErrInvalidInput
	}

	var pairID finance.TransactionID

	err := e.Store.WithTx(ctx, func(s finance.Store) error {
		primary, pair, err := requirePair(ctx, s, owner, transactionID)
		if err != nil {
			return err
		}
		pairID = pair.ID

		for _, leg := range []*finance.Transaction{primary, pair} {
			if patch.Amount != nil {
				leg.Amount = *patch.Amount
			}
			if patch.Date != nil {
				leg.Date = *patch.Date
			}
			if patch.Description != nil {
				leg.Description = *patch.Description
			}
			if err := s.UpdateTransaction(ctx, *leg); err != nil {
				return err
			}
		}

		return recomputeAccounts(ctx, s, primary.AccountID, pair.AccountID)
	})
	if err != nil {
		return "", "", err
	}
	return transactionID, pairID, nil
}

// DeleteTransfer soft-deletes both legs and clears both pair pointers.
// A transaction without a pair is a caller error, not a silent no-op.
func (e *Engine) DeleteTransfer(ctx context.Context, owner finance.OwnerID, transactionID finance.TransactionID) (finance.TransactionID, finance.TransactionID, error) {
	var pairID finance.TransactionID
	when := e.Now()

	err := e.Store.WithTx(ctx, func(s finance.Store) error {
		primary, pair, err := requirePair(ctx, s, owner, transactionID)
		if err != nil {
			return err
		}
		pairID = pair.ID

		for _, leg := range []*finance.Transaction{primary, pair} {
			if err := s.SoftDeleteTransaction(ctx, leg.ID, when); err != nil {
				return err
			}
			if err := s.ClearTransactionPair(ctx, leg.ID); err != nil {
				return err
			}
		}

		return recomputeAccounts(ctx, s, primary.AccountID, pair.AccountID)
	})
	if err != nil {
		return "", "", err
	}
	return transactionID, pairID, nil
}

// =============================================================================
// RECURRING TRANSFER TEMPLATES - Same pairing contracts, rule level
// =============================================================================

// RecurringTransferParams describes a paired recurring transfer.
type RecurringTransferParams struct {
	FromAccount finance.AccountID
	ToAccount   finance.AccountID
	Amount      decimal.Decimal
	Description string
	Schedule    finance.Schedule
	StartDate   finance.Date
	EndDate     *finance.Date
}

// CreateRecurringTransfer creates two mutually paired rule templates: an
// outcome rule on the source account and an income rule on the target.
func (e *Engine) CreateRecurringTransfer(ctx context.Context, owner finance.OwnerID, p RecurringTransferParams) (finance.RuleID, finance.RuleID, error) {
	if !p.Amount.IsPositive() || !p.Schedule.Frequency.Valid(false) {
		return "", "", finance.ErrInvalidInput
	}
	if p.FromAccount == p.ToAccount {
		return "", "", finance.ErrSelfReference
	}

	outcomeID := newRuleID()
	incomeID := newRuleID()

	err := e.Store.WithTx(ctx, func(s finance.Store) error {
		if err := requireAccount(ctx, s, owner, p.FromAccount); err != nil {
			return err
		}
		if err := requireAccount(ctx, s, owner, p.ToAccount); err != nil {
			return err
		}

		outcomeCat, incomeCat, err := transferCategories(ctx, s)
		if err != nil {
			return err
		}

		schedule := finance.NewSchedule(p.Schedule.Frequency, p.Schedule.Interval)
		schedule.ByWeekday = p.Schedule.ByWeekday
		schedule.ByMonthday = p.Schedule.ByMonthday

		base := finance.RecurringRule{
			OwnerID:     owner,
			Amount:      p.Amount,
			Description: p.Description,
			Schedule:    schedule,
			StartDate:   p.StartDate,
			NextRunDate: p.StartDate,
			EndDate:     p.EndDate,
			IsActive:    true,
		}

		outcome := base
		outcome.ID = outcomeID
		outcome.AccountID = p.FromAccount
		outcome.CategoryID = outcomeCat
		outcome.Flow = finance.FlowOutcome
		outcome.PairedRuleID = &incomeID

		income := base
		income.ID = incomeID
		income.AccountID = p.ToAccount
		income.CategoryID = incomeCat
		income.Flow = finance.FlowIncome
		income.PairedRuleID = &outcomeID

		if err := s.InsertRule(ctx, outcome); err != nil {
			return err
		}
		return s.InsertRule(ctx, income)
	})
	if err != nil {
		return "", "", err
	}
	return outcomeID, incomeID, nil
}

// DeleteRecurringAndPair soft-deletes both rules of a recurring transfer
// and clears both pair pointers.
func (e *Engine) DeleteRecurringAndPair(ctx context.Context, owner finance.OwnerID, ruleID finance.RuleID) (finance.RuleID, finance.RuleID, error) {
	var pairID finance.RuleID
	when := e.Now()

	err := e.Store.WithTx(ctx, func(s finance.Store) error {
		rule, err := s.GetRule(ctx, owner, ruleID)
		if err != nil {
			return err
		}
		if rule == nil {
			return &finance.NotFoundError{Entity: "rule", ID: string(ruleID), Owner: owner}
		}
		if rule.PairedRuleID == nil {
			return &finance.PairingError{Entity: "rule", ID: string(ruleID)}
		}

		pair, err := s.GetRule(ctx, owner, *rule.PairedRuleID)
		if err != nil {
			return err
		}
		if pair == nil {
			return &finance.NotFoundError{Entity: "rule", ID: string(*rule.PairedRuleID), Owner: owner}
		}
		pairID = pair.ID

		for _, id := range []finance.RuleID{rule.ID, pair.ID} {
			if err := s.SoftDeleteRule(ctx, id, when); err != nil {
				return err
			}
			if err := s.ClearRulePair(ctx, id); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return "", "", err
	}
	return ruleID, pairID, nil
}

// =============================================================================
// SHARED HELPERS
// =============================================================================

func requireAccount(ctx context.Context, s finance.Store, owner finance.OwnerID, id finance.AccountID) error {
	account, err := s.GetAccount(ctx, owner, id)
	if err != nil {
		return err
	}
	if account == nil {
		return &finance.NotFoundError{Entity: "account", ID: string(id), Owner: owner}
	}
	return nil
}

// requirePair loads a transaction and its counterpart, enforcing the
// pairing invariant.
func requirePair(ctx context.Context, s finance.Store, owner finance.OwnerID, id finance.TransactionID) (*finance.Transaction, *finance.Transaction, error) {
	primary, err := s.GetTransaction(ctx, owner, id)
	if err != nil {
		return nil, nil, err
	}
	if primary == nil {
		return nil, nil, &finance.NotFoundError{Entity: "transaction", ID: string(id), Owner: owner}
	}
	if primary.PairedTransactionID == nil {
		return nil, nil, &finance.PairingError{Entity: "transaction", ID: string(id)}
	}

	pair, err := s.GetTransaction(ctx, owner, *primary.PairedTransactionID)
	if err != nil {
		return nil, nil, err
	}
	if pair == nil {
		return nil, nil, &finance.NotFoundError{Entity: "transaction", ID: string(*primary.PairedTransactionID), Owner: owner}
	}
	return primary, pair, nil
}

// transferCategories resolves the system transfer category for each flow
// direction.
func transferCategories(ctx context.Context, s finance.Store) (outcome, income finance.CategoryID, err error) {
	out, err := s.GetSystemCategory(ctx, finance.SystemCategoryTransfer, finance.FlowOutcome)
	if err != nil {
		return "", "", err
	}
	in, err := s.GetSystemCategory(ctx, finance.SystemCategoryTransfer, finance.FlowIncome)
	if err != nil {
		return "", "", err
	}
	if out == nil || in == nil {
		return "", "", &finance.NotFoundError{Entity: "category", ID: finance.SystemCategoryTransfer}
	}
	return out.ID, in.ID, nil
}

func recomputeAccounts(ctx context.Context, s finance.Store, accounts ...finance.AccountID) error {
	seen := make(map[finance.AccountID]bool)
	for _, id := range accounts {
		if seen[id] {
			continue
		}
		seen[id] = true
		if _, err := recomputeAccountBalance(ctx, s, id); err != nil {
			return err
		}
	}
	return nil
}
