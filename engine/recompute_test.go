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
// ACCOUNT BALANCE CACHE
// =============================================================================

func TestRecomputeAccountBalance_SumsSignedFlows(t *testing.T) {
	// GIVEN: An account with income and outcome transactions
	// THEN: The cached balance equals income minus outcome

	eng := newTestEngine(t)
	ctx := context.Background()

	account := newAccount(t, eng, "Checking")
	salary := newIncomeCategory(t, eng, "Salary")
	groceries := newOutcomeCategory(t, eng, "Groceries")

	_, err := eng.CreateTransaction(ctx, testOwner, engine.CreateTransactionParams{
		AccountID:  account.ID,
		CategoryID: salary.ID,
		Flow:       finance.FlowIncome,
		Amount:     amt("1000"),
		Date:       testToday,
	})
	require.NoError(t, err)

	_, err = eng.CreateTransaction(ctx, testOwner, engine.CreateTransactionParams{
		AccountID:  account.ID,
		CategoryID: groceries.ID,
		Flow:       finance.FlowOutcome,
		Amount:     amt("249.99"),
		Date:       testToday,
	})
	require.NoError(t, err)

	assert.True(t, amt("750.01").Equal(getAccount(t, eng, account.ID).CachedBalance))
}

func TestRecomputeAccountBalance_RepairsCorruptedCache(t *testing.T) {
	// The cache is never trusted: a recompute restores it from the
	// ledger no matter what was written there.

	eng := newTestEngine(t)
	ctx := context.Background()

	account := newAccount(t, eng, "Checking")
	salary := newIncomeCategory(t, eng, "Salary")

	_, err := eng.CreateTransaction(ctx, testOwner, engine.CreateTransactionParams{
		AccountID:  account.ID,
		CategoryID: salary.ID,
		Flow:       finance.FlowIncome,
		Amount:     amt("1000"),
		Date:       testToday,
	})
	require.NoError(t, err)

	// Corrupt the cache directly.
	require.NoError(t, eng.Store.UpdateAccountBalance(ctx, account.ID, amt("999999")))

	balance, err := eng.RecomputeAccountBalance(ctx, testOwner, account.ID)
	require.NoError(t, err)
	assert.True(t, amt("1000").Equal(balance))
	assert.True(t, amt("1000").Equal(getAccount(t, eng, account.ID).CachedBalance))
}

func TestRecomputeAccountBalance_MissingAccount_NotFound(t *testing.T) {
	eng := newTestEngine(t)

	_, err := eng.RecomputeAccountBalance(context.Background(), testOwner, "acc-nope")
	assert.True(t, finance.IsNotFound(err))
}

func TestCreateAccount_InitialBalance_IsDerived(t *testing.T) {
	// An initial balance is a real ledger row, not an asserted cache
	// value: recomputation reproduces it.

	eng := newTestEngine(t)
	ctx := context.Background()

	account, err := eng.CreateAccount(ctx, testOwner, engine.CreateAccountParams{
		Name:           "Savings",
		Type:           finance.AccountBank,
		InitialBalance: amt("2500"),
	})
	require.NoError(t, err)
	assert.True(t, amt("2500").Equal(account.CachedBalance))

	txs := accountTransactions(t, eng, account.ID)
	require.Len(t, txs, 1)
	assert.Equal(t, finance.GeneratedKeyInitialBalance, txs[0].SystemGeneratedKey)
	assert.Equal(t, finance.FlowIncome, txs[0].Flow)

	balance, err := eng.RecomputeAccountBalance(ctx, testOwner, account.ID)
	require.NoError(t, err)
	assert.True(t, amt("2500").Equal(balance))
}

func TestSetAccountBalance_WritesAdjustmentRow(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	account, err := eng.CreateAccount(ctx, testOwner, engine.CreateAccountParams{
		Name:           "Checking",
		Type:           finance.AccountBank,
		InitialBalance: amt("100"),
	})
	require.NoError(t, err)

	balance, err := eng.SetAccountBalance(ctx, testOwner, account.ID, amt("75.50"))
	require.NoError(t, err)
	assert.True(t, amt("75.50").Equal(balance))

	txs := accountTransactions(t, eng, account.ID)
	require.Len(t, txs, 2)

	var adjustment *finance.Transaction
	for i := range txs {
		if txs[i].SystemGeneratedKey == finance.GeneratedKeyBalanceUpdate {
			adjustment = &txs[i]
		}
	}
	require.NotNil(t, adjustment)
	assert.Equal(t, finance.FlowOutcome, adjustment.Flow, "dropping the balance writes an outcome")
	assert.True(t, amt("24.50").Equal(adjustment.Amount))
}

// =============================================================================
// BUDGET CONSUMPTION CACHE
// =============================================================================

func TestBudgetConsumption_OutcomeOnly_WithinPeriod(t *testing.T) {
	// GIVEN: A monthly budget anchored Dec 1 over one category
	// THEN: Consumption counts only outcome rows of linked categories
	//       dated within the current period

	eng := newTestEngine(t)
	ctx := context.Background()

	account := newAccount(t, eng, "Checking")
	groceries := newOutcomeCategory(t, eng, "Groceries")
	dining := newOutcomeCategory(t, eng, "Dining")
	salary := newIncomeCategory(t, eng, "Salary")

	// In period, linked category: counts.
	_, err := eng.CreateTransaction(ctx, testOwner, engine.CreateTransactionParams{
		AccountID:  account.ID,
		CategoryID: groceries.ID,
		Flow:       finance.FlowOutcome,
		Amount:     amt("120"),
		Date:       finance.NewDate(2025, time.December, 2),
	})
	require.NoError(t, err)

	// Before the period: excluded.
	_, err = eng.CreateTransaction(ctx, testOwner, engine.CreateTransactionParams{
		AccountID:  account.ID,
		CategoryID: groceries.ID,
		Flow:       finance.FlowOutcome,
		Amount:     amt("300"),
		Date:       finance.NewDate(2025, time.November, 20),
	})
	require.NoError(t, err)

	// Unlinked category: excluded.
	_, err = eng.CreateTransaction(ctx, testOwner, engine.CreateTransactionParams{
		AccountID:  account.ID,
		CategoryID: dining.ID,
		Flow:       finance.FlowOutcome,
		Amount:     amt("60"),
		Date:       finance.NewDate(2025, time.December, 2),
	})
	require.NoError(t, err)

	// Income: never consumption.
	_, err = eng.CreateTransaction(ctx, testOwner, engine.CreateTransactionParams{
		AccountID:  account.ID,
		CategoryID: salary.ID,
		Flow:       finance.FlowIncome,
		Amount:     amt("4000"),
		Date:       finance.NewDate(2025, time.December, 2),
	})
	require.NoError(t, err)

	budget, err := eng.CreateBudget(ctx, testOwner, engine.CreateBudgetParams{
		Name:        "Food",
		LimitAmount: amt("600"),
		Schedule:    finance.NewSchedule(finance.FreqMonthly, 1),
		StartDate:   finance.NewDate(2025, time.December, 1),
		CategoryIDs: []finance.CategoryID{groceries.ID},
	})
	require.NoError(t, err)

	assert.True(t, amt("120").Equal(budget.CachedConsumption),
		"got %s", budget.CachedConsumption)
}

func TestCreateTransaction_UpdatesLinkedBudget(t *testing.T) {
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

	_, err = eng.CreateTransaction(ctx, testOwner, engine.CreateTransactionParams{
		AccountID:  account.ID,
		CategoryID: groceries.ID,
		Flow:       finance.FlowOutcome,
		Amount:     amt("85"),
		Date:       testToday,
	})
	require.NoError(t, err)

	assert.True(t, amt("85").Equal(getBudget(t, eng, budget.ID).CachedConsumption))
}

func TestUpdateTransaction_CategoryChange_RefreshesBothBudgets(t *testing.T) {
	// Moving an outcome between categories must refresh the budgets of
	// both the old and the new category.

	eng := newTestEngine(t)
	ctx := context.Background()

	account := newAccount(t, eng, "Checking")
	groceries := newOutcomeCategory(t, eng, "Groceries")
	dining := newOutcomeCategory(t, eng, "Dining")

	foodBudget, err := eng.CreateBudget(ctx, testOwner, engine.CreateBudgetParams{
		Name:        "Food",
		LimitAmount: amt("600"),
		Schedule:    finance.NewSchedule(finance.FreqMonthly, 1),
		StartDate:   finance.NewDate(2025, time.December, 1),
		CategoryIDs: []finance.CategoryID{groceries.ID},
	})
	require.NoError(t, err)

	diningBudget, err := eng.CreateBudget(ctx, testOwner, engine.CreateBudgetParams{
		Name:        "Eating out",
		LimitAmount: amt("200"),
		Schedule:    finance.NewSchedule(finance.FreqMonthly, 1),
		StartDate:   finance.NewDate(2025, time.December, 1),
		CategoryIDs: []finance.CategoryID{dining.ID},
	})
	require.NoError(t, err)

	tx, err := eng.CreateTransaction(ctx, testOwner, engine.CreateTransactionParams{
		AccountID:  account.ID,
		CategoryID: groceries.ID,
		Flow:       finance.FlowOutcome,
		Amount:     amt("85"),
		Date:       testToday,
	})
	require.NoError(t, err)

	_, err = eng.UpdateTransaction(ctx, testOwner, tx.ID, engine.TransactionPatch{
		CategoryID: &dining.ID,
	})
	require.NoError(t, err)

	assert.True(t, getBudget(t, eng, foodBudget.ID).CachedConsumption.IsZero())
	assert.True(t, amt("85").Equal(getBudget(t, eng, diningBudget.ID).CachedConsumption))
}

func TestDeleteTransaction_ReleasesBudgetConsumption(t *testing.T) {
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

	tx, err := eng.CreateTransaction(ctx, testOwner, engine.CreateTransactionParams{
		AccountID:  account.ID,
		CategoryID: groceries.ID,
		Flow:       finance.FlowOutcome,
		Amount:     amt("85"),
		Date:       testToday,
	})
	require.NoError(t, err)

	require.NoError(t, eng.DeleteTransaction(ctx, testOwner, tx.ID))

	assert.True(t, getBudget(t, eng, budget.ID).CachedConsumption.IsZero())
	assert.True(t, getAccount(t, eng, account.ID).CachedBalance.IsZero())
}

func TestBudgetConsumption_SharedSystemCategory_OwnerScoped(t *testing.T) {
	// GIVEN: Two owners spending in the shared system general/outcome
	//        category, and a budget of the first owner linked to it
	// THEN: The budget's consumption sums only its own owner's rows

	eng := newTestEngine(t)
	ctx := context.Background()
	otherOwner := finance.OwnerID("user-2")

	general, err := eng.Store.GetSystemCategory(ctx, finance.SystemCategoryGeneral, finance.FlowOutcome)
	require.NoError(t, err)
	require.NotNil(t, general)

	account := newAccount(t, eng, "Checking")
	_, err = eng.CreateTransaction(ctx, testOwner, engine.CreateTransactionParams{
		AccountID:  account.ID,
		CategoryID: general.ID,
		Flow:       finance.FlowOutcome,
		Amount:     amt("40"),
		Date:       testToday,
	})
	require.NoError(t, err)

	otherAccount, err := eng.CreateAccount(ctx, otherOwner, engine.CreateAccountParams{
		Name: "Checking",
		Type: finance.AccountBank,
	})
	require.NoError(t, err)
	_, err = eng.CreateTransaction(ctx, otherOwner, engine.CreateTransactionParams{
		AccountID:  otherAccount.ID,
		CategoryID: general.ID,
		Flow:       finance.FlowOutcome,
		Amount:     amt("999"),
		Date:       testToday,
	})
	require.NoError(t, err)

	budget, err := eng.CreateBudget(ctx, testOwner, engine.CreateBudgetParams{
		Name:        "Everything else",
		LimitAmount: amt("500"),
		Schedule:    finance.NewSchedule(finance.FreqMonthly, 1),
		StartDate:   finance.NewDate(2025, time.December, 1),
		CategoryIDs: []finance.CategoryID{general.ID},
	})
	require.NoError(t, err)

	assert.True(t, amt("40").Equal(budget.CachedConsumption),
		"got %s: a shared category must never leak another owner's spending", budget.CachedConsumption)

	// A full recompute through the batched entry point agrees.
	deltas, err := eng.RecomputeBudgetsForCategory(ctx, testOwner, general.ID)
	require.NoError(t, err)
	require.Len(t, deltas, 1)
	assert.True(t, amt("40").Equal(deltas[0].New))
}

func TestTransfers_NeverConsumeBudgets(t *testing.T) {
	// A budget linked to an outcome category sees nothing from transfers,
	// which live in the system transfer category.

	eng := newTestEngine(t)
	ctx := context.Background()

	checking := newAccount(t, eng, "Checking")
	savings := newAccount(t, eng, "Savings")
	groceries := newOutcomeCategory(t, eng, "Groceries")

	budget, err := eng.CreateBudget(ctx, testOwner, engine.CreateBudgetParams{
		Name:        "Food",
		LimitAmount: amt("600"),
		Schedule:    finance.NewSchedule(finance.FreqMonthly, 1),
		StartDate:   finance.NewDate(2025, time.December, 1),
		CategoryIDs: []finance.CategoryID{groceries.ID},
	})
	require.NoError(t, err)

	_, _, err = eng.CreateTransfer(ctx, testOwner, checking.ID, savings.ID, amt("1000"), testToday, "")
	require.NoError(t, err)

	assert.True(t, getBudget(t, eng, budget.ID).CachedConsumption.IsZero())
}
