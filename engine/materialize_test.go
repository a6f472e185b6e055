package engine_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moneta/finance-engine/engine"
	"github.com/moneta/finance-engine/finance"
)

// =============================================================================
// CATCH-UP MATERIALIZATION
// =============================================================================

func TestMaterialize_MonthlyRule_CatchUp(t *testing.T) {
	// GIVEN: A monthly $1200 rent rule starting Sep 1, never materialized
	// WHEN: Materializing as of Dec 4
	// THEN: Four transactions exist (Sep 1, Oct 1, Nov 1, Dec 1) and
	//       next_run_date sits at Jan 1 of the following year

	eng := newTestEngine(t)
	ctx := context.Background()

	account := newAccount(t, eng, "Checking")
	rent := newOutcomeCategory(t, eng, "Rent")

	rule, err := eng.CreateRecurringRule(ctx, testOwner, engine.CreateRuleParams{
		AccountID:   account.ID,
		CategoryID:  rent.ID,
		Flow:        finance.FlowOutcome,
		Amount:      amt("1200"),
		Description: "rent",
		Schedule:    finance.NewSchedule(finance.FreqMonthly, 1),
		StartDate:   finance.NewDate(2025, time.September, 1),
	})
	require.NoError(t, err)

	summary, err := eng.Materialize(ctx, testOwner, finance.NewDate(2025, time.December, 4))
	require.NoError(t, err)

	assert.Equal(t, 4, summary.TransactionsGenerated)
	assert.Equal(t, 1, summary.RulesProcessed)
	assert.Equal(t, 1, summary.AccountsTouched)

	txs := accountTransactions(t, eng, account.ID)
	require.Len(t, txs, 4)
	dates := make([]string, len(txs))
	for i, tx := range txs {
		dates[i] = tx.Date.String()
		assert.Equal(t, finance.FlowOutcome, tx.Flow)
		assert.True(t, amt("1200").Equal(tx.Amount))
		assert.Equal(t, finance.GeneratedKeyRecurringSync, tx.SystemGeneratedKey)
		require.NotNil(t, tx.RecurringRuleID)
		assert.Equal(t, rule.ID, *tx.RecurringRuleID)
	}
	assert.ElementsMatch(t, []string{"2025-09-01", "2025-10-01", "2025-11-01", "2025-12-01"}, dates)

	updated, err := eng.Store.GetRule(ctx, testOwner, rule.ID)
	require.NoError(t, err)
	assert.Equal(t, "2026-01-01", updated.NextRunDate.String())

	// The balance cache reflects all four occurrences.
	assert.True(t, amt("-4800").Equal(getAccount(t, eng, account.ID).CachedBalance),
		"got %s", getAccount(t, eng, account.ID).CachedBalance)
}

func TestMaterialize_SecondRun_GeneratesNothing(t *testing.T) {
	// GIVEN: A rule already materialized up to Dec 4
	// WHEN: Materializing again with the same as-of date
	// THEN: No new transactions; next_run_date does not move

	eng := newTestEngine(t)
	ctx := context.Background()

	account := newAccount(t, eng, "Checking")
	rent := newOutcomeCategory(t, eng, "Rent")

	rule, err := eng.CreateRecurringRule(ctx, testOwner, engine.CreateRuleParams{
		AccountID:  account.ID,
		CategoryID: rent.ID,
		Flow:       finance.FlowOutcome,
		Amount:     amt("1200"),
		Schedule:   finance.NewSchedule(finance.FreqMonthly, 1),
		StartDate:  finance.NewDate(2025, time.September, 1),
	})
	require.NoError(t, err)

	asOf := finance.NewDate(2025, time.December, 4)
	_, err = eng.Materialize(ctx, testOwner, asOf)
	require.NoError(t, err)

	summary, err := eng.Materialize(ctx, testOwner, asOf)
	require.NoError(t, err)

	assert.Equal(t, 0, summary.TransactionsGenerated)
	assert.Len(t, accountTransactions(t, eng, account.ID), 4)

	updated, err := eng.Store.GetRule(ctx, testOwner, rule.ID)
	require.NoError(t, err)
	assert.Equal(t, "2026-01-01", updated.NextRunDate.String())
}

func TestMaterialize_FutureRule_NotDue(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	account := newAccount(t, eng, "Checking")
	rent := newOutcomeCategory(t, eng, "Rent")

	_, err := eng.CreateRecurringRule(ctx, testOwner, engine.CreateRuleParams{
		AccountID:  account.ID,
		CategoryID: rent.ID,
		Flow:       finance.FlowOutcome,
		Amount:     amt("1200"),
		Schedule:   finance.NewSchedule(finance.FreqMonthly, 1),
		StartDate:  finance.NewDate(2026, time.January, 1),
	})
	require.NoError(t, err)

	summary, err := eng.Materialize(ctx, testOwner, finance.NewDate(2025, time.December, 4))
	require.NoError(t, err)

	assert.Equal(t, 0, summary.TransactionsGenerated)
	assert.Equal(t, 0, summary.RulesProcessed)
}

// =============================================================================
// END DATES AND DORMANCY
// =============================================================================

func TestMaterialize_EndDate_StopsOccurrences(t *testing.T) {
	// GIVEN: A monthly rule from Sep 1 ending Sep 30
	// WHEN: Materializing as of Dec 4
	// THEN: Only the Sep 1 occurrence is emitted and next_run_date moves
	//       past the end date, leaving the rule dormant but active

	eng := newTestEngine(t)
	ctx := context.Background()

	account := newAccount(t, eng, "Checking")
	rent := newOutcomeCategory(t, eng, "Rent")

	end := finance.NewDate(2025, time.September, 30)
	rule, err := eng.CreateRecurringRule(ctx, testOwner, engine.CreateRuleParams{
		AccountID:  account.ID,
		CategoryID: rent.ID,
		Flow:       finance.FlowOutcome,
		Amount:     amt("50"),
		Schedule:   finance.NewSchedule(finance.FreqMonthly, 1),
		StartDate:  finance.NewDate(2025, time.September, 1),
		EndDate:    &end,
	})
	require.NoError(t, err)

	summary, err := eng.Materialize(ctx, testOwner, finance.NewDate(2025, time.December, 4))
	require.NoError(t, err)
	assert.Equal(t, 1, summary.TransactionsGenerated)

	updated, err := eng.Store.GetRule(ctx, testOwner, rule.ID)
	require.NoError(t, err)
	assert.Equal(t, "2025-10-01", updated.NextRunDate.String())
	assert.True(t, updated.IsActive, "ended rules stay active, just dormant")
}

func TestMaterialize_DormantRule_NextRunStrictlyAdvances(t *testing.T) {
	// A dormant rule (cursor past end date) emits nothing but its cursor
	// must still grow on every pass, or it would be re-selected forever.

	eng := newTestEngine(t)
	ctx := context.Background()

	account := newAccount(t, eng, "Checking")
	rent := newOutcomeCategory(t, eng, "Rent")

	end := finance.NewDate(2025, time.September, 30)
	rule, err := eng.CreateRecurringRule(ctx, testOwner, engine.CreateRuleParams{
		AccountID:  account.ID,
		CategoryID: rent.ID,
		Flow:       finance.FlowOutcome,
		Amount:     amt("50"),
		Schedule:   finance.NewSchedule(finance.FreqMonthly, 1),
		StartDate:  finance.NewDate(2025, time.September, 1),
		EndDate:    &end,
	})
	require.NoError(t, err)

	asOf := finance.NewDate(2025, time.December, 4)
	_, err = eng.Materialize(ctx, testOwner, asOf)
	require.NoError(t, err)

	summary, err := eng.Materialize(ctx, testOwner, asOf)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.TransactionsGenerated)

	updated, err := eng.Store.GetRule(ctx, testOwner, rule.ID)
	require.NoError(t, err)
	assert.Equal(t, "2025-11-01", updated.NextRunDate.String(),
		"dormant pass still advances the cursor by one step")
	assert.Len(t, accountTransactions(t, eng, account.ID), 1)
}

// =============================================================================
// PAIRED TRANSFER TEMPLATES
// =============================================================================

func TestMaterialize_RecurringTransfer_EmitsPairedLegs(t *testing.T) {
	// GIVEN: A weekly $500 transfer template from checking to savings
	//        starting Nov 20
	// WHEN: Materializing as of Dec 4
	// THEN: Three occurrences, each two mutually paired legs; balances
	//       move oppositely; no budget is touched

	eng := newTestEngine(t)
	ctx := context.Background()

	checking := newAccount(t, eng, "Checking")
	savings := newAccount(t, eng, "Savings")

	outRule, inRule, err := eng.CreateRecurringTransfer(ctx, testOwner, engine.RecurringTransferParams{
		FromAccount: checking.ID,
		ToAccount:   savings.ID,
		Amount:      amt("500"),
		Description: "savings sweep",
		Schedule:    finance.NewSchedule(finance.FreqWeekly, 1),
		StartDate:   finance.NewDate(2025, time.November, 20),
	})
	require.NoError(t, err)

	summary, err := eng.Materialize(ctx, testOwner, finance.NewDate(2025, time.December, 4))
	require.NoError(t, err)

	assert.Equal(t, 6, summary.TransactionsGenerated)
	assert.Equal(t, 2, summary.RulesProcessed)
	assert.Equal(t, 2, summary.AccountsTouched)
	assert.Equal(t, 0, summary.BudgetsTouched, "transfers never touch budgets")

	outTxs := accountTransactions(t, eng, checking.ID)
	inTxs := accountTransactions(t, eng, savings.ID)
	require.Len(t, outTxs, 3)
	require.Len(t, inTxs, 3)

	// Every leg points at a live counterpart on the other account.
	byID := make(map[finance.TransactionID]finance.Transaction)
	for _, tx := range append(outTxs, inTxs...) {
		byID[tx.ID] = tx
	}
	for _, tx := range byID {
		require.NotNil(t, tx.PairedTransactionID)
		pair, ok := byID[*tx.PairedTransactionID]
		require.True(t, ok)
		require.NotNil(t, pair.PairedTransactionID)
		assert.Equal(t, tx.ID, *pair.PairedTransactionID, "pairing must be symmetric")
		assert.Equal(t, tx.Flow.Opposite(), pair.Flow)
		assert.Equal(t, tx.Date, pair.Date)
	}

	assert.True(t, amt("-1500").Equal(getAccount(t, eng, checking.ID).CachedBalance))
	assert.True(t, amt("1500").Equal(getAccount(t, eng, savings.ID).CachedBalance))

	// Both rules advanced to the same next occurrence.
	out, err := eng.Store.GetRule(ctx, testOwner, outRule)
	require.NoError(t, err)
	in, err := eng.Store.GetRule(ctx, testOwner, inRule)
	require.NoError(t, err)
	assert.Equal(t, "2025-12-11", out.NextRunDate.String())
	assert.Equal(t, out.NextRunDate, in.NextRunDate)
}

func TestMaterialize_BrokenPair_DegradesToStandalone(t *testing.T) {
	// GIVEN: A transfer template whose counterpart rule was deleted out
	//        from under it
	// WHEN: Materializing
	// THEN: The surviving rule emits unpaired rows from its own data

	eng := newTestEngine(t)
	ctx := context.Background()

	checking := newAccount(t, eng, "Checking")
	savings := newAccount(t, eng, "Savings")

	outRule, inRule, err := eng.CreateRecurringTransfer(ctx, testOwner, engine.RecurringTransferParams{
		FromAccount: checking.ID,
		ToAccount:   savings.ID,
		Amount:      amt("500"),
		Schedule:    finance.NewSchedule(finance.FreqWeekly, 1),
		StartDate:   finance.NewDate(2025, time.December, 1),
	})
	require.NoError(t, err)

	// Break the pair without clearing the survivor's pointer.
	require.NoError(t, eng.Store.SoftDeleteRule(ctx, inRule, testToday))

	summary, err := eng.Materialize(ctx, testOwner, finance.NewDate(2025, time.December, 4))
	require.NoError(t, err)

	assert.Equal(t, 1, summary.TransactionsGenerated)
	assert.Equal(t, 1, summary.RulesProcessed)

	outTxs := accountTransactions(t, eng, checking.ID)
	require.Len(t, outTxs, 1)
	assert.Nil(t, outTxs[0].PairedTransactionID, "degraded legs are unpaired")
	require.NotNil(t, outTxs[0].RecurringRuleID)
	assert.Equal(t, outRule, *outTxs[0].RecurringRuleID)

	assert.Empty(t, accountTransactions(t, eng, savings.ID))
}

// =============================================================================
// BUDGET INTERACTION
// =============================================================================

func TestMaterialize_OutcomeRule_UpdatesBudgetConsumption(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	account := newAccount(t, eng, "Checking")
	groceries := newOutcomeCategory(t, eng, "Groceries")

	budget, err := eng.CreateBudget(ctx, testOwner, engine.CreateBudgetParams{
		Name:        "Food",
		LimitAmount: amt("600"),
		Schedule:    finance.NewSchedule(finance.FreqMonthly, 1),
		StartDate:   finance.NewDate(2025, time.December, 1),
		CategoryIDs: []finance.CategoryID{groceries.ID},
	})
	require.NoError(t, err)

	_, err = eng.CreateRecurringRule(ctx, testOwner, engine.CreateRuleParams{
		AccountID:  account.ID,
		CategoryID: groceries.ID,
		Flow:       finance.FlowOutcome,
		Amount:     amt("80"),
		Schedule:   finance.NewSchedule(finance.FreqWeekly, 1),
		StartDate:  finance.NewDate(2025, time.December, 1),
	})
	require.NoError(t, err)

	summary, err := eng.Materialize(ctx, testOwner, testToday)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.TransactionsGenerated) // Dec 1 only; Dec 8 is future
	assert.Equal(t, 1, summary.BudgetsTouched)
	assert.True(t, amt("80").Equal(getBudget(t, eng, budget.ID).CachedConsumption))
}

func TestMaterialize_IncomeRule_NeverTouchesBudgets(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	account := newAccount(t, eng, "Checking")
	salary := newIncomeCategory(t, eng, "Salary")

	_, err := eng.CreateRecurringRule(ctx, testOwner, engine.CreateRuleParams{
		AccountID:  account.ID,
		CategoryID: salary.ID,
		Flow:       finance.FlowIncome,
		Amount:     amt("4000"),
		Schedule:   finance.NewSchedule(finance.FreqMonthly, 1),
		StartDate:  finance.NewDate(2025, time.December, 1),
	})
	require.NoError(t, err)

	summary, err := eng.Materialize(ctx, testOwner, testToday)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.TransactionsGenerated)
	assert.Equal(t, 0, summary.BudgetsTouched)
	assert.True(t, amt("4000").Equal(getAccount(t, eng, account.ID).CachedBalance))
}
