/*
Package finance provides the core domain model for the ledger engine.

PURPOSE:
  This package contains the entities and algorithms shared by every service:
  accounts, categories, transactions, recurring rules, and budgets, plus the
  schedule/period arithmetic that drives materialization and budget windows.

KEY CONCEPTS IN THIS FILE (types.go):
  - FlowType: The direction of a money movement (income or outcome)
  - Typed IDs: Strong typing prevents mixing account/category/rule ids
  - Entities: Plain structs mirroring the persisted rows

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal for all money amounts
  2. Soft-delete: Rows are marked deleted, never erased (categories excepted)
  3. Derived caches: cached_balance and cached_consumption are always
     recomputed from the ledger, never incremented in place
  4. Symmetric pairing: a transfer is two rows that point at each other;
     no operation may ever write one side without the other

SEE ALSO:
  - schedule.go: Frequency advancement for recurring rules
  - period.go: Budget period window arithmetic
  - store.go: Persistence interfaces
  - errors.go: Error taxonomy
*/
package finance

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type OwnerID string
type AccountID string
type CategoryID string
type TransactionID string
type RuleID string
type BudgetID string

// =============================================================================
// FLOW TYPE - Direction of a money movement
// =============================================================================

type FlowType string

const (
	FlowIncome  FlowType = "income"
	FlowOutcome FlowType = "outcome"
)

// Opposite returns the other flow direction.
func (f FlowType) Opposite() FlowType {
	if f == FlowIncome {
		return FlowOutcome
	}
	return FlowIncome
}

// Sign returns +1 for income, -1 for outcome. Used when folding
// transaction amounts into a signed balance.
func (f FlowType) Sign() decimal.Decimal {
	if f == FlowIncome {
		return decimal.NewFromInt(1)
	}
	return decimal.NewFromInt(-1)
}

// MustDecimal parses a decimal string, returning zero on failure.
// Intended for constants and store scan paths where the value was
// written by this code in the first place.
func MustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// =============================================================================
// ACCOUNT - A named money container
// =============================================================================

type AccountType string

const (
	AccountCash       AccountType = "cash"
	AccountBank       AccountType = "bank"
	AccountCreditCard AccountType = "credit_card"
	AccountLoan       AccountType = "loan"
	AccountRemittance AccountType = "remittance"
	AccountCrypto     AccountType = "crypto"
	AccountInvestment AccountType = "investment"
)

// Account is a money container. CachedBalance is derived: it must always
// equal the signed sum of the account's non-deleted transactions.
type Account struct {
	ID            AccountID
	OwnerID       OwnerID
	Name          string
	Type          AccountType
	Currency      string
	CachedBalance decimal.Decimal
	IsFavorite    bool
	DeletedAt     *Date
}

func (a Account) IsDeleted() bool { return a.DeletedAt != nil }

// =============================================================================
// CATEGORY - A label for transaction direction and purpose
// =============================================================================

// System category keys. Each key exists once per flow direction and is
// immutable; lookups are by (key, flow), never by ownership.
const (
	SystemCategoryGeneral        = "general"
	SystemCategoryTransfer       = "transfer"
	SystemCategoryInitialBalance = "initial_balance"
	SystemCategoryBalanceUpdate  = "balance_update"
)

// Category labels a transaction. System categories have a non-empty
// SystemKey and no owner; user categories are owned and may nest one
// level deep via ParentID.
type Category struct {
	ID        CategoryID
	OwnerID   OwnerID // empty for system categories
	Name      string
	Flow      FlowType
	ParentID  *CategoryID
	SystemKey string // empty for user categories
}

func (c Category) IsSystem() bool { return c.SystemKey != "" }

// =============================================================================
// TRANSACTION - One money movement
// =============================================================================

// Provenance tags stamped on system-generated transactions. Never used
// for business logic, only for human-readable audit.
const (
	GeneratedKeyRecurringSync  = "recurring_sync"
	GeneratedKeyInitialBalance = "initial_balance"
	GeneratedKeyBalanceUpdate  = "balance_update"
)

// Transaction is one ledger row. A transfer is exactly two rows, one
// outcome and one income, whose PairedTransactionID fields point at each
// other. Both sides are always created, updated, and soft-deleted together.
type Transaction struct {
	ID                  TransactionID
	OwnerID             OwnerID
	AccountID           AccountID
	CategoryID          CategoryID
	Flow                FlowType
	Amount              decimal.Decimal // always positive; Flow carries the sign
	Date                Date
	Description         string
	PairedTransactionID *TransactionID
	RecurringRuleID     *RuleID
	SystemGeneratedKey  string
	DeletedAt           *Date
}

func (t Transaction) IsDeleted() bool { return t.DeletedAt != nil }
func (t Transaction) IsPaired() bool  { return t.PairedTransactionID != nil }

// SignedAmount returns the amount with the flow direction applied.
func (t Transaction) SignedAmount() decimal.Decimal {
	return t.Amount.Mul(t.Flow.Sign())
}

// =============================================================================
// RECURRING RULE - A template that generates future transactions
// =============================================================================

// RecurringRule is a materialization template. NextRunDate is the next
// occurrence needing materialization; once it passes EndDate the rule is
// dormant but never deleted by the engine.
type RecurringRule struct {
	ID           RuleID
	OwnerID      OwnerID
	AccountID    AccountID
	CategoryID   CategoryID
	Flow         FlowType
	Amount       decimal.Decimal
	Description  string
	Schedule     Schedule
	StartDate    Date
	NextRunDate  Date
	EndDate      *Date
	IsActive     bool
	PairedRuleID *RuleID
	DeletedAt    *Date
}

func (r RecurringRule) IsDeleted() bool { return r.DeletedAt != nil }

// Materializable reports whether the rule can still produce transactions.
func (r RecurringRule) Materializable() bool {
	return r.IsActive && !r.IsDeleted()
}

// =============================================================================
// BUDGET - A spending ceiling over categories for a recurring period
// =============================================================================

// Budget caps outcome spending across its linked categories within the
// current period. CachedConsumption is derived from the ledger.
type Budget struct {
	ID                BudgetID
	OwnerID           OwnerID
	Name              string
	LimitAmount       decimal.Decimal
	Schedule          Schedule
	StartDate         Date
	EndDate           *Date
	CachedConsumption decimal.Decimal
	IsActive          bool
	DeletedAt         *Date
}

func (b Budget) IsDeleted() bool { return b.DeletedAt != nil }

// BudgetCategory links a budget to a category. Carries the owner id so
// access checks never need a join.
type BudgetCategory struct {
	BudgetID   BudgetID
	CategoryID CategoryID
	OwnerID    OwnerID
}
