/*
recompute.go - Cache recomputation service

PURPOSE:
  The only writers of cached_balance and cached_consumption live here.
  Both caches are always recomputed in full from the ledger: the cost is
  bounded by one account's (or one budget's period's) transaction count,
  and full recomputation cannot drift the way incremental arithmetic can.

ORDERING:
  Recomputation always runs inside the same store transaction as the
  ledger writes that made it necessary, so a reader can never observe a
  ledger change without its cache update (or vice versa).

SEE ALSO:
  - finance/period.go: Budget period window arithmetic
  - materialize.go: The batched caller
*/
package engine

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/moneta/finance-engine/finance"
)

// BudgetDelta reports one budget's consumption before and after a
// recomputation pass.
type BudgetDelta struct {
	BudgetID finance.BudgetID
	Old      decimal.Decimal
	New      decimal.Decimal
}

// RecomputeAccountBalance recomputes and persists the account's cached
// balance from the ledger, returning the new value.
func (e *Engine) RecomputeAccountBalance(ctx context.Context, owner finance.OwnerID, id finance.AccountID) (decimal.Decimal, error) {
	var balance decimal.Decimal

	err := e.Store.WithTx(ctx, func(s finance.Store) error {
		account, err := s.GetAccount(ctx, owner, id)
		if err != nil {
			return err
		}
		if account == nil {
			return &finance.NotFoundError{Entity: "account", ID: string(id), Owner: owner}
		}

		balance, err = recomputeAccountBalance(ctx, s, id)
		return err
	})
	if err != nil {
		return decimal.Zero, err
	}
	return balance, nil
}

// RecomputeBudgetConsumption recomputes and persists the budget's
// consumption for an explicitly supplied period.
func (e *Engine) RecomputeBudgetConsumption(ctx context.Context, owner finance.OwnerID, id finance.BudgetID, period finance.Period) (decimal.Decimal, error) {
	var consumption decimal.Decimal

	err := e.Store.WithTx(ctx, func(s finance.Store) error {
		budget, err := s.GetBudget(ctx, owner, id)
		if err != nil {
			return err
		}
		if budget == nil {
			return &finance.NotFoundError{Entity: "budget", ID: string(id), Owner: owner}
		}

		consumption, err = s.SumBudgetConsumption(ctx, id, period)
		if err != nil {
			return err
		}
		return s.UpdateBudgetConsumption(ctx, id, consumption)
	})
	if err != nil {
		return decimal.Zero, err
	}
	return consumption, nil
}

// RecomputeBudgetsForCategory recomputes every active budget linked to
// the category for its own current period. Safe to call redundantly: it
// always recomputes in full rather than incrementing.
func (e *Engine) RecomputeBudgetsForCategory(ctx context.Context, owner finance.OwnerID, category finance.CategoryID) ([]BudgetDelta, error) {
	var deltas []BudgetDelta

	err := e.Store.WithTx(ctx, func(s finance.Store) error {
		var err error
		deltas, err = recomputeBudgetsForCategory(ctx, s, owner, category, e.Now())
		return err
	})
	if err != nil {
		return nil, err
	}
	return deltas, nil
}

// =============================================================================
// IN-TRANSACTION WORKERS - Shared by every mutating service
// =============================================================================

func recomputeAccountBalance(ctx context.Context, s finance.Store, id finance.AccountID) (decimal.Decimal, error) {
	balance, err := s.SumAccountBalance(ctx, id)
	if err != nil {
		return decimal.Zero, err
	}
	if err := s.UpdateAccountBalance(ctx, id, balance); err != nil {
		return decimal.Zero, err
	}
	return balance, nil
}

// recomputeBudgetsForCategory recomputes each linked budget for the
// period containing today, clamped to the budget's end date.
func recomputeBudgetsForCategory(ctx context.Context, s finance.Store, owner finance.OwnerID, category finance.CategoryID, today finance.Date) ([]BudgetDelta, error) {
	budgets, err := s.ListBudgetsByCategory(ctx, owner, category)
	if err != nil {
		return nil, err
	}

	var deltas []BudgetDelta
	for _, b := range budgets {
		period := b.CurrentPeriod(today)
		consumption, err := s.SumBudgetConsumption(ctx, b.ID, period)
		if err != nil {
			return nil, err
		}
		if err := s.UpdateBudgetConsumption(ctx, b.ID, consumption); err != nil {
			return nil, err
		}
		deltas = append(deltas, BudgetDelta{
			BudgetID: b.ID,
			Old:      b.CachedConsumption,
			New:      consumption,
		})
	}
	return deltas, nil
}

// recomputeBudgets recomputes an explicit budget set (used after category
// deletion, where the junction rows are already gone).
func recomputeBudgets(ctx context.Context, s finance.Store, budgets []finance.Budget, today finance.Date) error {
	for _, b := range budgets {
		period := b.CurrentPeriod(today)
		consumption, err := s.SumBudgetConsumption(ctx, b.ID, period)
		if err != nil {
			return err
		}
		if err := s.UpdateBudgetConsumption(ctx, b.ID, consumption); err != nil {
			return err
		}
	}
	return nil
}
