package engine

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/moneta/finance-engine/finance"
)

// =============================================================================
// RECURRING RULE OPERATIONS (standalone; transfer pairs in transfer.go)
// =============================================================================

// CreateRuleParams describes a standalone recurring rule.
type CreateRuleParams struct {
	AccountID   finance.AccountID
	CategoryID  finance.CategoryID
	Flow        finance.FlowType
	Amount      decimal.Decimal
	Description string
	Schedule    finance.Schedule
	StartDate   finance.Date
	EndDate     *finance.Date
}

// CreateRecurringRule creates a standalone rule whose first occurrence
// falls on the start date.
func (e *Engine) CreateRecurringRule(ctx context.Context, owner finance.OwnerID, p CreateRuleParams) (*finance.RecurringRule, error) {
	if !p.Amount.IsPositive() || !p.Schedule.Frequency.Valid(false) {
		return nil, finance.ErrInvalidInput
	}
	if p.Flow != finance.FlowIncome && p.Flow != finance.FlowOutcome {
		return nil, finance.ErrInvalidInput
	}

	// Normalize the interval but keep the declared constraint lists:
	// they are stored and surfaced even though advancement stays plain
	// interval arithmetic.
	schedule := finance.NewSchedule(p.Schedule.Frequency, p.Schedule.Interval)
	schedule.ByWeekday = p.Schedule.ByWeekday
	schedule.ByMonthday = p.Schedule.ByMonthday

	rule := finance.RecurringRule{
		ID:          newRuleID(),
		OwnerID:     owner,
		AccountID:   p.AccountID,
		CategoryID:  p.CategoryID,
		Flow:        p.Flow,
		Amount:      p.Amount,
		Description: p.Description,
		Schedule:    schedule,
		StartDate:   p.StartDate,
		NextRunDate: p.StartDate,
		EndDate:     p.EndDate,
		IsActive:    true,
	}

	err := e.Store.WithTx(ctx, func(s finance.Store) error {
		if err := requireAccount(ctx, s, owner, p.AccountID); err != nil {
			return err
		}
		if err := requireCategory(ctx, s, owner, p.CategoryID); err != nil {
			return err
		}
		return s.InsertRule(ctx, rule)
	})
	if err != nil {
		return nil, err
	}
	return &rule, nil
}

// DeleteRecurringRule soft-deletes a standalone rule. Rules that are half
// of a recurring transfer go through DeleteRecurringAndPair instead.
func (e *Engine) DeleteRecurringRule(ctx context.Context, owner finance.OwnerID, id finance.RuleID) error {
	return e.Store.WithTx(ctx, func(s finance.Store) error {
		rule, err := s.GetRule(ctx, owner, id)
		if err != nil {
			return err
		}
		if rule == nil {
			return &finance.NotFoundError{Entity: "rule", ID: string(id), Owner: owner}
		}
		if rule.PairedRuleID != nil {
			return &finance.PairingError{Entity: "rule", ID: string(id)}
		}
		return s.SoftDeleteRule(ctx, id, e.Now())
	})
}
