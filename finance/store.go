/*
store.go - Persistence interfaces

PURPOSE:
  Defines the storage contract the engine operates over. The engine never
  talks SQL; it composes these interfaces inside WithTx so that every
  operation (materialization batch, transfer, cascade delete) is a single
  atomic unit - all rows and cache updates commit together or not at all.

OWNER SCOPING:
  Read and bulk-mutation methods take an OwnerID and must only see that
  owner's rows. A row owned by someone else behaves exactly like a row
  that does not exist.

SOFT-DELETE:
  Soft-deleted rows are invisible to every read and aggregate here unless
  a method says otherwise. Categories are the one hard-deleted entity.

SEE ALSO:
  - store/sqlite: The SQLite implementation
  - engine: The services composed on top of these interfaces
*/
package finance

import (
	"context"

	"github.com/shopspring/decimal"
)

// =============================================================================
// PER-ENTITY STORES
// =============================================================================

// AccountStore persists accounts and their derived balance cache.
type AccountStore interface {
	// GetAccount returns the non-deleted account, or nil if missing/foreign.
	GetAccount(ctx context.Context, owner OwnerID, id AccountID) (*Account, error)
	SaveAccount(ctx context.Context, a Account) error
	ListAccounts(ctx context.Context, owner OwnerID) ([]Account, error)

	// UpdateAccountBalance writes the derived balance cache.
	UpdateAccountBalance(ctx context.Context, id AccountID, balance decimal.Decimal) error

	// ClearFavorite unsets is_favorite on all of the owner's accounts.
	ClearFavorite(ctx context.Context, owner OwnerID) error

	SoftDeleteAccount(ctx context.Context, id AccountID, when Date) error
}

// CategoryStore persists categories. System categories are read through
// GetSystemCategory by (key, flow); they have no owner.
type CategoryStore interface {
	// GetCategory returns the category if it is a system category or is
	// owned by owner; nil otherwise.
	GetCategory(ctx context.Context, owner OwnerID, id CategoryID) (*Category, error)
	GetSystemCategory(ctx context.Context, key string, flow FlowType) (*Category, error)
	SaveCategory(ctx context.Context, c Category) error
	ListCategories(ctx context.Context, owner OwnerID) ([]Category, error)

	// DeleteCategory hard-deletes the row. Callers enforce immutability
	// and reassignment first.
	DeleteCategory(ctx context.Context, id CategoryID) error

	// ClearCategoryParent orphans all sub-categories of parent, returning
	// how many were detached.
	ClearCategoryParent(ctx context.Context, parent CategoryID) (int, error)
}

// LedgerStore persists transactions and answers the aggregate queries the
// cache recomputation service is built on.
type LedgerStore interface {
	InsertTransaction(ctx context.Context, t Transaction) error
	GetTransaction(ctx context.Context, owner OwnerID, id TransactionID) (*Transaction, error)
	UpdateTransaction(ctx context.Context, t Transaction) error
	ListTransactionsByAccount(ctx context.Context, owner OwnerID, account AccountID) ([]Transaction, error)

	SoftDeleteTransaction(ctx context.Context, id TransactionID, when Date) error
	ClearTransactionPair(ctx context.Context, id TransactionID) error

	// SumAccountBalance is the authoritative balance: signed sum of the
	// account's non-deleted transactions (income positive, outcome negative).
	SumAccountBalance(ctx context.Context, account AccountID) (decimal.Decimal, error)

	// SumBudgetConsumption sums outcome-only, non-deleted amounts whose
	// category is linked to the budget, within the inclusive period.
	SumBudgetConsumption(ctx context.Context, budget BudgetID, p Period) (decimal.Decimal, error)

	ReassignTransactionsByAccount(ctx context.Context, owner OwnerID, from, to AccountID) (int, error)
	ReassignTransactionsByCategory(ctx context.Context, owner OwnerID, from, to CategoryID) (int, error)

	// ClearPairRefsByAccount nulls paired_transaction_id on any transaction
	// whose counterpart lives in the given account, so a cascade never
	// leaves a dangling pair pointer.
	ClearPairRefsByAccount(ctx context.Context, owner OwnerID, account AccountID) (int, error)
	SoftDeleteTransactionsByAccount(ctx context.Context, owner OwnerID, account AccountID, when Date) (int, error)

	ClearPairRefsByCategory(ctx context.Context, owner OwnerID, category CategoryID) (int, error)
	SoftDeleteTransactionsByCategory(ctx context.Context, owner OwnerID, category CategoryID, when Date) (int, error)

	// AccountIDsByCategory returns the distinct accounts holding
	// non-deleted transactions in the category. Captured before a
	// cascade so their balances can be recomputed after.
	AccountIDsByCategory(ctx context.Context, owner OwnerID, category CategoryID) ([]AccountID, error)

	// OutcomeCategoryIDsByAccount returns the distinct categories of the
	// account's non-deleted outcome transactions. Captured before an
	// account cascade so linked budget caches can be recomputed after.
	OutcomeCategoryIDsByAccount(ctx context.Context, owner OwnerID, account AccountID) ([]CategoryID, error)
}

// RuleStore persists recurring rule templates.
type RuleStore interface {
	InsertRule(ctx context.Context, r RecurringRule) error
	GetRule(ctx context.Context, owner OwnerID, id RuleID) (*RecurringRule, error)

	// ListDueRules returns active, non-deleted rules with
	// next_run_date <= asOf, ordered by next_run_date ascending.
	ListDueRules(ctx context.Context, owner OwnerID, asOf Date) ([]RecurringRule, error)

	// DueRuleOwners returns the distinct owners that have at least one
	// active, non-deleted rule due at or before asOf. The background
	// scheduler uses this to decide which owners to materialize.
	DueRuleOwners(ctx context.Context, asOf Date) ([]OwnerID, error)

	UpdateRuleNextRun(ctx context.Context, id RuleID, next Date) error
	SoftDeleteRule(ctx context.Context, id RuleID, when Date) error
	ClearRulePair(ctx context.Context, id RuleID) error

	ReassignRulesByAccount(ctx context.Context, owner OwnerID, from, to AccountID) (int, error)
	ClearRulePairRefsByAccount(ctx context.Context, owner OwnerID, account AccountID) (int, error)
	SoftDeleteRulesByAccount(ctx context.Context, owner OwnerID, account AccountID, when Date) (int, error)
}

// BudgetStore persists budgets, their category links, and the derived
// consumption cache.
type BudgetStore interface {
	InsertBudget(ctx context.Context, b Budget) error
	GetBudget(ctx context.Context, owner OwnerID, id BudgetID) (*Budget, error)
	ListBudgets(ctx context.Context, owner OwnerID) ([]Budget, error)

	// ListBudgetsByCategory returns the owner's active, non-deleted budgets
	// linked to the category.
	ListBudgetsByCategory(ctx context.Context, owner OwnerID, category CategoryID) ([]Budget, error)

	UpdateBudgetConsumption(ctx context.Context, id BudgetID, consumption decimal.Decimal) error
	LinkBudgetCategory(ctx context.Context, link BudgetCategory) error
	RemoveBudgetLinksByCategory(ctx context.Context, category CategoryID) (int, error)
	SoftDeleteBudget(ctx context.Context, id BudgetID, when Date) error
}

// =============================================================================
// STORE - Aggregate with atomic-unit execution
// =============================================================================

// Store is the full persistence surface. WithTx runs fn against a Store
// bound to one database transaction; returning an error rolls everything
// back. Calling WithTx on an already-transactional Store joins the open
// transaction rather than nesting.
type Store interface {
	AccountStore
	CategoryStore
	LedgerStore
	RuleStore
	BudgetStore

	WithTx(ctx context.Context, fn func(Store) error) error
}
