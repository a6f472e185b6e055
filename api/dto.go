/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

WIRE FORMATS:
  - Dates are "YYYY-MM-DD" strings.
  - Amounts are decimal strings ("125.50"), never floats. Parsing and
    arithmetic happen on shopspring decimals inside the engine.

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - finance/types.go: Domain entities these project
*/
package api

import (
	"github.com/moneta/finance-engine/engine"
	"github.com/moneta/finance-engine/finance"
)

// =============================================================================
// REQUEST TYPES
// =============================================================================

// CreateAccountRequest is the request to create an account.
type CreateAccountRequest struct {
	Name           string `json:"name"`
	Type           string `json:"type"`
	Currency       string `json:"currency,omitempty"`
	InitialBalance string `json:"initial_balance,omitempty"`
	IsFavorite     bool   `json:"is_favorite,omitempty"`
}

// SetBalanceRequest sets an account's balance to a target value via an
// adjustment transaction.
type SetBalanceRequest struct {
	Balance string `json:"balance"`
}

// CreateCategoryRequest is the request to create a user category.
type CreateCategoryRequest struct {
	Name     string  `json:"name"`
	Flow     string  `json:"flow"`
	ParentID *string `json:"parent_id,omitempty"`
}

// RenameCategoryRequest renames a user category.
type RenameCategoryRequest struct {
	Name string `json:"name"`
}

// CreateTransactionRequest is the request to record a manual transaction.
type CreateTransactionRequest struct {
	AccountID   string `json:"account_id"`
	CategoryID  string `json:"category_id"`
	Flow        string `json:"flow"`
	Amount      string `json:"amount"`
	Date        string `json:"date"`
	Description string `json:"description,omitempty"`
}

// UpdateTransactionRequest carries the optional fields of a transaction
// update. Absent fields are left unchanged.
type UpdateTransactionRequest struct {
	CategoryID  *string `json:"category_id,omitempty"`
	Amount      *string `json:"amount,omitempty"`
	Date        *string `json:"date,omitempty"`
	Description *string `json:"description,omitempty"`
}

// CreateTransferRequest moves an amount between two accounts.
type CreateTransferRequest struct {
	FromAccountID string `json:"from_account_id"`
	ToAccountID   string `json:"to_account_id"`
	Amount        string `json:"amount"`
	Date          string `json:"date"`
	Description   string `json:"description,omitempty"`
}

// UpdateTransferRequest patches both legs of a transfer symmetrically.
type UpdateTransferRequest struct {
	Amount      *string `json:"amount,omitempty"`
	Date        *string `json:"date,omitempty"`
	Description *string `json:"description,omitempty"`
}

// ScheduleDTO is the JSON shape of a recurrence schedule.
type ScheduleDTO struct {
	Frequency  string `json:"frequency"`
	Interval   int    `json:"interval,omitempty"`
	ByWeekday  []int  `json:"by_weekday,omitempty"`
	ByMonthday []int  `json:"by_monthday,omitempty"`
}

// CreateRuleRequest creates a standalone recurring rule.
type CreateRuleRequest struct {
	AccountID   string      `json:"account_id"`
	CategoryID  string      `json:"category_id"`
	Flow        string      `json:"flow"`
	Amount      string      `json:"amount"`
	Description string      `json:"description,omitempty"`
	Schedule    ScheduleDTO `json:"schedule"`
	StartDate   string      `json:"start_date"`
	EndDate     *string     `json:"end_date,omitempty"`
}

// CreateRecurringTransferRequest creates a paired pair of recurring rules.
type CreateRecurringTransferRequest struct {
	FromAccountID string      `json:"from_account_id"`
	ToAccountID   string      `json:"to_account_id"`
	Amount        string      `json:"amount"`
	Description   string      `json:"description,omitempty"`
	Schedule      ScheduleDTO `json:"schedule"`
	StartDate     string      `json:"start_date"`
	EndDate       *string     `json:"end_date,omitempty"`
}

// CreateBudgetRequest creates a budget with its category links.
type CreateBudgetRequest struct {
	Name        string      `json:"name"`
	LimitAmount string      `json:"limit_amount"`
	Schedule    ScheduleDTO `json:"schedule"`
	StartDate   string      `json:"start_date"`
	EndDate     *string     `json:"end_date,omitempty"`
	CategoryIDs []string    `json:"category_ids"`
}

// MaterializeRequest triggers materialization up to an optional as-of date
// (defaults to today).
type MaterializeRequest struct {
	AsOf string `json:"as_of,omitempty"`
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// AccountDTO represents an account in API responses.
type AccountDTO struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Type       string `json:"type"`
	Currency   string `json:"currency"`
	Balance    string `json:"balance"`
	IsFavorite bool   `json:"is_favorite"`
}

// CategoryDTO represents a category in API responses.
type CategoryDTO struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Flow      string  `json:"flow"`
	ParentID  *string `json:"parent_id,omitempty"`
	SystemKey string  `json:"system_key,omitempty"`
}

// TransactionDTO represents a ledger row in API responses.
type TransactionDTO struct {
	ID                  string  `json:"id"`
	AccountID           string  `json:"account_id"`
	CategoryID          string  `json:"category_id"`
	Flow                string  `json:"flow"`
	Amount              string  `json:"amount"`
	Date                string  `json:"date"`
	Description         string  `json:"description,omitempty"`
	PairedTransactionID *string `json:"paired_transaction_id,omitempty"`
	RecurringRuleID     *string `json:"recurring_rule_id,omitempty"`
	SystemGeneratedKey  string  `json:"system_generated_key,omitempty"`
}

// RuleDTO represents a recurring rule in API responses.
type RuleDTO struct {
	ID           string      `json:"id"`
	AccountID    string      `json:"account_id"`
	CategoryID   string      `json:"category_id"`
	Flow         string      `json:"flow"`
	Amount       string      `json:"amount"`
	Description  string      `json:"description,omitempty"`
	Schedule     ScheduleDTO `json:"schedule"`
	StartDate    string      `json:"start_date"`
	NextRunDate  string      `json:"next_run_date"`
	EndDate      *string     `json:"end_date,omitempty"`
	IsActive     bool        `json:"is_active"`
	PairedRuleID *string     `json:"paired_rule_id,omitempty"`
}

// BudgetDTO represents a budget in API responses.
type BudgetDTO struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	LimitAmount string      `json:"limit_amount"`
	Consumption string      `json:"consumption"`
	Schedule    ScheduleDTO `json:"schedule"`
	StartDate   string      `json:"start_date"`
	EndDate     *string     `json:"end_date,omitempty"`
	IsActive    bool        `json:"is_active"`
}

// TransferDTO identifies both legs of a transfer pair.
type TransferDTO struct {
	OutgoingTransactionID string `json:"outgoing_transaction_id"`
	IncomingTransactionID string `json:"incoming_transaction_id"`
}

// RulePairDTO identifies both rules of a recurring transfer pair.
type RulePairDTO struct {
	OutgoingRuleID string `json:"outgoing_rule_id"`
	IncomingRuleID string `json:"incoming_rule_id"`
}

// MaterializeResultDTO summarizes one materialization run.
type MaterializeResultDTO struct {
	TransactionsGenerated int `json:"transactions_generated"`
	RulesProcessed        int `json:"rules_processed"`
	AccountsTouched       int `json:"accounts_touched"`
	BudgetsTouched        int `json:"budgets_touched"`
}

// BalanceDTO is a recomputed cache value.
type BalanceDTO struct {
	AccountID string `json:"account_id"`
	Balance   string `json:"balance"`
}

// BudgetDeltaDTO reports one budget's consumption before and after a
// recompute.
type BudgetDeltaDTO struct {
	BudgetID string `json:"budget_id"`
	Old      string `json:"old"`
	New      string `json:"new"`
}

// AccountDeletionDTO reports what an account deletion touched.
type AccountDeletionDTO struct {
	Strategy               string `json:"strategy"`
	RulesReassigned        int    `json:"rules_reassigned,omitempty"`
	TransactionsReassigned int    `json:"transactions_reassigned,omitempty"`
	RulesDeleted           int    `json:"rules_deleted,omitempty"`
	TransactionsDeleted    int    `json:"transactions_deleted,omitempty"`
	PairRefsCleared        int    `json:"pair_refs_cleared,omitempty"`
}

// CategoryDeletionDTO reports what a category deletion touched.
type CategoryDeletionDTO struct {
	TransactionsReassigned int `json:"transactions_reassigned,omitempty"`
	TransactionsDeleted    int `json:"transactions_deleted,omitempty"`
	PairRefsCleared        int `json:"pair_refs_cleared,omitempty"`
	BudgetLinksRemoved     int `json:"budget_links_removed,omitempty"`
	SubcategoriesDetached  int `json:"subcategories_detached,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toAccountDTO(a finance.Account) AccountDTO {
	return AccountDTO{
		ID:         string(a.ID),
		Name:       a.Name,
		Type:       string(a.Type),
		Currency:   a.Currency,
		Balance:    a.CachedBalance.String(),
		IsFavorite: a.IsFavorite,
	}
}

func toCategoryDTO(c finance.Category) CategoryDTO {
	dto := CategoryDTO{
		ID:        string(c.ID),
		Name:      c.Name,
		Flow:      string(c.Flow),
		SystemKey: c.SystemKey,
	}
	if c.ParentID != nil {
		dto.ParentID = strPtr(string(*c.ParentID))
	}
	return dto
}

func toTransactionDTO(t finance.Transaction) TransactionDTO {
	dto := TransactionDTO{
		ID:                 string(t.ID),
		AccountID:          string(t.AccountID),
		CategoryID:         string(t.CategoryID),
		Flow:               string(t.Flow),
		Amount:             t.Amount.String(),
		Date:               t.Date.String(),
		Description:        t.Description,
		SystemGeneratedKey: t.SystemGeneratedKey,
	}
	if t.PairedTransactionID != nil {
		dto.PairedTransactionID = strPtr(string(*t.PairedTransactionID))
	}
	if t.RecurringRuleID != nil {
		dto.RecurringRuleID = strPtr(string(*t.RecurringRuleID))
	}
	return dto
}

func toScheduleDTO(s finance.Schedule) ScheduleDTO {
	return ScheduleDTO{
		Frequency:  string(s.Frequency),
		Interval:   s.Interval,
		ByWeekday:  s.ByWeekday,
		ByMonthday: s.ByMonthday,
	}
}

func toRuleDTO(r finance.RecurringRule) RuleDTO {
	dto := RuleDTO{
		ID:          string(r.ID),
		AccountID:   string(r.AccountID),
		CategoryID:  string(r.CategoryID),
		Flow:        string(r.Flow),
		Amount:      r.Amount.String(),
		Description: r.Description,
		Schedule:    toScheduleDTO(r.Schedule),
		StartDate:   r.StartDate.String(),
		NextRunDate: r.NextRunDate.String(),
		IsActive:    r.IsActive,
	}
	if r.EndDate != nil {
		dto.EndDate = strPtr(r.EndDate.String())
	}
	if r.PairedRuleID != nil {
		dto.PairedRuleID = strPtr(string(*r.PairedRuleID))
	}
	return dto
}

func toBudgetDTO(b finance.Budget) BudgetDTO {
	dto := BudgetDTO{
		ID:          string(b.ID),
		Name:        b.Name,
		LimitAmount: b.LimitAmount.String(),
		Consumption: b.CachedConsumption.String(),
		Schedule:    toScheduleDTO(b.Schedule),
		StartDate:   b.StartDate.String(),
		IsActive:    b.IsActive,
	}
	if b.EndDate != nil {
		dto.EndDate = strPtr(b.EndDate.String())
	}
	return dto
}

func toBudgetDeltaDTOs(deltas []engine.BudgetDelta) []BudgetDeltaDTO {
	dtos := make([]BudgetDeltaDTO, 0, len(deltas))
	for _, d := range deltas {
		dtos = append(dtos, BudgetDeltaDTO{
			BudgetID: string(d.BudgetID),
			Old:      d.Old.String(),
			New:      d.New.String(),
		})
	}
	return dtos
}

func strPtr(s string) *string {
	return &s
}
