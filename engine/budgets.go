package engine

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/moneta/finance-engine/finance"
)

// =============================================================================
// BUDGET OPERATIONS
// =============================================================================

// CreateBudgetParams describes a budget and its category links.
type CreateBudgetParams struct {
	Name        string
	LimitAmount decimal.Decimal
	Schedule    finance.Schedule
	StartDate   finance.Date
	EndDate     *finance.Date
	CategoryIDs []finance.CategoryID
}

// CreateBudget creates a budget with its category links and computes the
// initial consumption for the current period.
func (e *Engine) CreateBudget(ctx context.Context, owner finance.OwnerID, p CreateBudgetParams) (*finance.Budget, error) {
	if p.Name == "" || !p.LimitAmount.IsPositive() {
		return nil, finance.ErrInvalidInput
	}
	if !p.Schedule.Frequency.Valid(true) {
		return nil, finance.ErrInvalidInput
	}

	budget := finance.Budget{
		ID:                newBudgetID(),
		OwnerID:           owner,
		Name:              p.Name,
		LimitAmount:       p.LimitAmount,
		Schedule:          finance.NewSchedule(p.Schedule.Frequency, p.Schedule.Interval),
		StartDate:         p.StartDate,
		EndDate:           p.EndDate,
		CachedConsumption: decimal.Zero,
		IsActive:          true,
	}

	err := e.Store.WithTx(ctx, func(s finance.Store) error {
		for _, categoryID := range p.CategoryIDs {
			if err := requireCategory(ctx, s, owner, categoryID); err != nil {
				return err
			}
		}

		if err := s.InsertBudget(ctx, budget); err != nil {
			return err
		}
		for _, categoryID := range p.CategoryIDs {
			if err := s.LinkBudgetCategory(ctx, finance.BudgetCategory{
				BudgetID:   budget.ID,
				CategoryID: categoryID,
				OwnerID:    owner,
			}); err != nil {
				return err
			}
		}

		period := budget.CurrentPeriod(e.Now())
		consumption, err := s.SumBudgetConsumption(ctx, budget.ID, period)
		if err != nil {
			return err
		}
		budget.CachedConsumption = consumption
		return s.UpdateBudgetConsumption(ctx, budget.ID, consumption)
	})
	if err != nil {
		return nil, err
	}
	return &budget, nil
}

// DeleteBudget soft-deletes a budget; its links are removed and history
// retained.
func (e *Engine) DeleteBudget(ctx context.Context, owner finance.OwnerID, id finance.BudgetID) error {
	return e.Store.WithTx(ctx, func(s finance.Store) error {
		budget, err := s.GetBudget(ctx, owner, id)
		if err != nil {
			return err
		}
		if budget == nil {
			return &finance.NotFoundError{Entity: "budget", ID: string(id), Owner: owner}
		}
		return s.SoftDeleteBudget(ctx, id, e.Now())
	})
}
