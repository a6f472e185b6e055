/*
materialize.go - Recurring rule materialization

PURPOSE:
  Walks every due recurring rule for an owner forward in time, emitting
  concrete ledger transactions (single rows for standalone rules, paired
  rows for transfer templates), advancing each rule's next_run_date, and
  recomputing the caches for every touched account and budget.

IDEMPOTENCE:
  next_run_date is only ever advanced past already-materialized dates and
  the due filter is <=, so a second call with the same as-of date and no
  new rules generates nothing.

ATOMICITY:
  The whole batch - transaction inserts, rule advancement, and cache
  updates - runs in one store transaction. An error anywhere rolls back
  everything; there is no partial materialization.

PAIRING POLICY:
  A transfer template whose counterpart is missing, inactive, or deleted
  degrades to standalone processing using only its own data. That is
  deliberate: a half-broken pair keeps producing its surviving leg.

SEE ALSO:
  - finance/schedule.go: Frequency advancement
  - recompute.go: The batched cache recomputation this ends with
*/
package engine

import (
	"context"

	"github.com/moneta/finance-engine/finance"
)

// MaterializeSummary reports what one materialization pass did.
type MaterializeSummary struct {
	TransactionsGenerated int
	RulesProcessed        int
	AccountsTouched       int
	BudgetsTouched        int
}

// Materialize processes every active rule for the owner whose
// next_run_date is at or before asOf. Calls for the same owner are
// serialized; the entire pass is one atomic unit.
func (e *Engine) Materialize(ctx context.Context, owner finance.OwnerID, asOf finance.Date) (MaterializeSummary, error) {
	lock := e.ownerLock(owner)
	lock.Lock()
	defer lock.Unlock()

	var summary MaterializeSummary

	err := e.Store.WithTx(ctx, func(s finance.Store) error {
		rules, err := s.ListDueRules(ctx, owner, asOf)
		if err != nil {
			return err
		}

		processed := make(map[finance.RuleID]bool)
		touchedAccounts := make(map[finance.AccountID]bool)
		touchedCategories := make(map[finance.CategoryID]bool)

		for _, rule := range rules {
			if processed[rule.ID] {
				// Already handled as the paired side of an earlier rule.
				continue
			}
			processed[rule.ID] = true

			pair, err := e.livePair(ctx, s, rule)
			if err != nil {
				return err
			}
			if pair != nil {
				processed[pair.ID] = true
			}

			generated, err := e.materializeRule(ctx, s, rule, pair, asOf, touchedAccounts, touchedCategories)
			if err != nil {
				return err
			}

			summary.TransactionsGenerated += generated
			summary.RulesProcessed++
			if pair != nil {
				summary.RulesProcessed++
			}
		}

		// Batched cache recomputation: once per distinct account/budget,
		// not per transaction.
		for accountID := range touchedAccounts {
			if _, err := recomputeAccountBalance(ctx, s, accountID); err != nil {
				return err
			}
		}

		touchedBudgets := make(map[finance.BudgetID]bool)
		for categoryID := range touchedCategories {
			deltas, err := recomputeBudgetsForCategory(ctx, s, owner, categoryID, asOf)
			if err != nil {
				return err
			}
			for _, d := range deltas {
				touchedBudgets[d.BudgetID] = true
			}
		}

		summary.AccountsTouched = len(touchedAccounts)
		summary.BudgetsTouched = len(touchedBudgets)
		return nil
	})
	if err != nil {
		return MaterializeSummary{}, err
	}
	return summary, nil
}

// livePair resolves the rule's transfer counterpart. A missing, deleted,
// or inactive counterpart returns nil: the rule degrades to standalone.
func (e *Engine) livePair(ctx context.Context, s finance.Store, rule finance.RecurringRule) (*finance.RecurringRule, error) {
	if rule.PairedRuleID == nil {
		return nil, nil
	}
	pair, err := s.GetRule(ctx, rule.OwnerID, *rule.PairedRuleID)
	if err != nil {
		return nil, err
	}
	if pair == nil || !pair.Materializable() {
		return nil, nil
	}
	return pair, nil
}

// materializeRule expands one rule (or one transfer pair) up to asOf and
// advances next_run_date. Returns the number of transactions emitted.
func (e *Engine) materializeRule(
	ctx context.Context,
	s finance.Store,
	rule finance.RecurringRule,
	pair *finance.RecurringRule,
	asOf finance.Date,
	touchedAccounts map[finance.AccountID]bool,
	touchedCategories map[finance.CategoryID]bool,
) (int, error) {
	cursor := rule.NextRunDate
	generated := 0

	for cursor.BeforeOrEqual(asOf) && (rule.EndDate == nil || cursor.BeforeOrEqual(*rule.EndDate)) {
		if pair != nil {
			if err := e.emitTransferOccurrence(ctx, s, rule, *pair, cursor); err != nil {
				return 0, err
			}
			generated += 2
			touchedAccounts[rule.AccountID] = true
			touchedAccounts[pair.AccountID] = true
			// Transfers never touch budgets: the transfer category is
			// structurally excluded from budget links.
		} else {
			if err := e.emitOccurrence(ctx, s, rule, cursor); err != nil {
				return 0, err
			}
			generated++
			touchedAccounts[rule.AccountID] = true
			if rule.Flow == finance.FlowOutcome {
				touchedCategories[rule.CategoryID] = true
			}
		}

		next := rule.Schedule.Advance(cursor)
		if !next.After(cursor) {
			break
		}
		cursor = next
	}

	// A rule whose cursor already sits past its end date emits nothing
	// but still advances: next_run_date must grow strictly, leaving the
	// rule dormant without deactivating it.
	if generated == 0 {
		next := rule.Schedule.Advance(cursor)
		if next.After(cursor) {
			cursor = next
		}
	}

	if err := s.UpdateRuleNextRun(ctx, rule.ID, cursor); err != nil {
		return 0, err
	}
	if pair != nil {
		if err := s.UpdateRuleNextRun(ctx, pair.ID, cursor); err != nil {
			return 0, err
		}
	}
	return generated, nil
}

// emitOccurrence writes one standalone transaction for the rule at the
// cursor date.
func (e *Engine) emitOccurrence(ctx context.Context, s finance.Store, rule finance.RecurringRule, on finance.Date) error {
	ruleID := rule.ID
	return s.InsertTransaction(ctx, finance.Transaction{
		ID:                 newTransactionID(),
		OwnerID:            rule.OwnerID,
		AccountID:          rule.AccountID,
		CategoryID:         rule.CategoryID,
		Flow:               rule.Flow,
		Amount:             rule.Amount,
		Date:               on,
		Description:        rule.Description,
		RecurringRuleID:    &ruleID,
		SystemGeneratedKey: finance.GeneratedKeyRecurringSync,
	})
}

// emitTransferOccurrence writes the two mutually paired legs of one
// transfer occurrence, each tagged with its own originating rule.
func (e *Engine) emitTransferOccurrence(ctx context.Context, s finance.Store, rule, pair finance.RecurringRule, on finance.Date) error {
	primaryID := newTransactionID()
	pairedID := newTransactionID()
	ruleID := rule.ID
	pairRuleID := pair.ID

	primary := finance.Transaction{
		ID:                  primaryID,
		OwnerID:             rule.OwnerID,
		AccountID:           rule.AccountID,
		CategoryID:          rule.CategoryID,
		Flow:                rule.Flow,
		Amount:              rule.Amount,
		Date:                on,
		Description:         rule.Description,
		PairedTransactionID: &pairedID,
		RecurringRuleID:     &ruleID,
		SystemGeneratedKey:  finance.GeneratedKeyRecurringSync,
	}
	secondary := finance.Transaction{
		ID:                  pairedID,
		OwnerID:             pair.OwnerID,
		AccountID:           pair.AccountID,
		CategoryID:          pair.CategoryID,
		Flow:                pair.Flow,
		Amount:              pair.Amount,
		Date:                on,
		Description:         pair.Description,
		PairedTransactionID: &primaryID,
		RecurringRuleID:     &pairRuleID,
		SystemGeneratedKey:  finance.GeneratedKeyRecurringSync,
	}

	if err := s.InsertTransaction(ctx, primary); err != nil {
		return err
	}
	return s.InsertTransaction(ctx, secondary)
}
