package engine_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/moneta/finance-engine/engine"
	"github.com/moneta/finance-engine/finance"
	"github.com/moneta/finance-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

const testOwner = finance.OwnerID("user-1")

// testToday pins the engine clock: budget periods and soft-delete stamps
// are deterministic across runs.
var testToday = finance.NewDate(2025, time.December, 4)

func newTestEngine(t *testing.T) *engine.Engine {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	eng := engine.New(store)
	eng.Now = func() finance.Date { return testToday }
	return eng
}

func amt(s string) decimal.Decimal {
	return finance.MustDecimal(s)
}

func newAccount(t *testing.T, eng *engine.Engine, name string) *finance.Account {
	t.Helper()
	account, err := eng.CreateAccount(context.Background(), testOwner, engine.CreateAccountParams{
		Name: name,
		Type: finance.AccountBank,
	})
	require.NoError(t, err)
	return account
}

func newOutcomeCategory(t *testing.T, eng *engine.Engine, name string) *finance.Category {
	t.Helper()
	category, err := eng.CreateCategory(context.Background(), testOwner, engine.CreateCategoryParams{
		Name: name,
		Flow: finance.FlowOutcome,
	})
	require.NoError(t, err)
	return category
}

func newIncomeCategory(t *testing.T, eng *engine.Engine, name string) *finance.Category {
	t.Helper()
	category, err := eng.CreateCategory(context.Background(), testOwner, engine.CreateCategoryParams{
		Name: name,
		Flow: finance.FlowIncome,
	})
	require.NoError(t, err)
	return category
}

func getAccount(t *testing.T, eng *engine.Engine, id finance.AccountID) *finance.Account {
	t.Helper()
	account, err := eng.Store.GetAccount(context.Background(), testOwner, id)
	require.NoError(t, err)
	require.NotNil(t, account)
	return account
}

func getBudget(t *testing.T, eng *engine.Engine, id finance.BudgetID) *finance.Budget {
	t.Helper()
	budget, err := eng.Store.GetBudget(context.Background(), testOwner, id)
	require.NoError(t, err)
	require.NotNil(t, budget)
	return budget
}

func accountTransactions(t *testing.T, eng *engine.Engine, id finance.AccountID) []finance.Transaction {
	t.Helper()
	txs, err := eng.Store.ListTransactionsByAccount(context.Background(), testOwner, id)
	require.NoError(t, err)
	return txs
}
