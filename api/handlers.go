/*
handlers.go - HTTP API handlers for the finance engine

PURPOSE:
  Exposes the materialization and cache-consistency engine via REST API.
  Handles HTTP request/response, JSON serialization, and delegates to
  domain logic.

ENDPOINTS:
  Accounts:
    GET    /api/accounts                    List accounts
    POST   /api/accounts                    Create account
    GET    /api/accounts/{id}               Get account
    GET    /api/accounts/{id}/transactions  Transaction history
    POST   /api/accounts/{id}/favorite      Mark as favorite
    POST   /api/accounts/{id}/balance       Set balance via adjustment
    POST   /api/accounts/{id}/recompute     Recompute cached balance
    DELETE /api/accounts/{id}               Delete (reassign or cascade)

  Categories:
    GET    /api/categories                  List (user + system)
    POST   /api/categories                  Create user category
    PUT    /api/categories/{id}             Rename
    POST   /api/categories/{id}/recompute   Recompute linked budgets
    DELETE /api/categories/{id}             Delete (reassign or cascade)

  Transactions:
    POST   /api/transactions                Record manual transaction
    PUT    /api/transactions/{id}           Update (standalone only)
    DELETE /api/transactions/{id}           Delete (standalone only)

  Transfers:
    POST   /api/transfers                   Create paired transfer
    PUT    /api/transfers/{id}              Update both legs
    DELETE /api/transfers/{id}              Delete both legs

  Recurring:
    POST   /api/recurring                   Create standalone rule
    POST   /api/recurring/transfer          Create paired rule templates
    GET    /api/recurring/{id}              Get rule
    DELETE /api/recurring/{id}              Delete standalone rule
    DELETE /api/recurring/{id}/pair         Delete rule and its pair
    POST   /api/materialize                 Run materialization

  Budgets:
    GET    /api/budgets                     List budgets
    POST   /api/budgets                     Create budget with links
    GET    /api/budgets/{id}                Get budget
    POST   /api/budgets/{id}/recompute      Recompute consumption
    DELETE /api/budgets/{id}                Delete budget

AUTHENTICATION:
  The engine trusts an upstream gateway for identity. Every request must
  carry the owner in the X-Owner-ID header; rows are scoped to that owner
  at the query level.

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Resource not found (or owned by someone else)
  - 409: Pairing conflicts (mutating one leg of a pair directly)
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - engine/: Domain logic these handlers delegate to
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/moneta/finance-engine/engine"
	"github.com/moneta/finance-engine/finance"
)

// ownerHeader carries the gateway-authenticated owner identity.
const ownerHeader = "X-Owner-ID"

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Engine *engine.Engine
}

// NewHandler creates a new handler around the engine.
func NewHandler(eng *engine.Engine) *Handler {
	return &Handler{Engine: eng}
}

func (h *Handler) owner(w http.ResponseWriter, r *http.Request) (finance.OwnerID, bool) {
	owner := r.Header.Get(ownerHeader)
	if owner == "" {
		writeError(w, http.StatusBadRequest, "Missing X-Owner-ID header", nil)
		return "", false
	}
	return finance.OwnerID(owner), true
}

// =============================================================================
// ACCOUNT HANDLERS
// =============================================================================

// ListAccounts returns the owner's non-deleted accounts.
func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}

	accounts, err := h.Engine.Store.ListAccounts(r.Context(), owner)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list accounts", err)
		return
	}

	dtos := make([]AccountDTO, 0, len(accounts))
	for _, a := range accounts {
		dtos = append(dtos, toAccountDTO(a))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateAccount creates an account, optionally seeded with an initial
// balance.
func (h *Handler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}

	var req CreateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	params := engine.CreateAccountParams{
		Name:       req.Name,
		Type:       finance.AccountType(req.Type),
		Currency:   req.Currency,
		IsFavorite: req.IsFavorite,
	}
	if req.InitialBalance != "" {
		amount, err := decimal.NewFromString(req.InitialBalance)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid initial_balance", err)
			return
		}
		params.InitialBalance = amount
	}

	account, err := h.Engine.CreateAccount(r.Context(), owner, params)
	if err != nil {
		writeEngineError(w, "Failed to create account", err)
		return
	}
	writeJSON(w, http.StatusCreated, toAccountDTO(*account))
}

// GetAccount returns one account.
func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}
	id := finance.AccountID(chi.URLParam(r, "id"))

	account, err := h.Engine.Store.GetAccount(r.Context(), owner, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get account", err)
		return
	}
	if account == nil {
		writeError(w, http.StatusNotFound, "Account not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toAccountDTO(*account))
}

// GetAccountTransactions returns the account's non-deleted transactions.
func (h *Handler) GetAccountTransactions(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}
	id := finance.AccountID(chi.URLParam(r, "id"))

	txs, err := h.Engine.Store.ListTransactionsByAccount(r.Context(), owner, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list transactions", err)
		return
	}

	dtos := make([]TransactionDTO, 0, len(txs))
	for _, t := range txs {
		dtos = append(dtos, toTransactionDTO(t))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// SetFavoriteAccount marks one account as the owner's favorite.
func (h *Handler) SetFavoriteAccount(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}
	id := finance.AccountID(chi.URLParam(r, "id"))

	if err := h.Engine.SetFavoriteAccount(r.Context(), owner, id); err != nil {
		writeEngineError(w, "Failed to set favorite", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// SetAccountBalance adjusts the account to a target balance through a
// system-generated adjustment transaction.
func (h *Handler) SetAccountBalance(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}
	id := finance.AccountID(chi.URLParam(r, "id"))

	var req SetBalanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	target, err := decimal.NewFromString(req.Balance)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid balance", err)
		return
	}

	balance, err := h.Engine.SetAccountBalance(r.Context(), owner, id, target)
	if err != nil {
		writeEngineError(w, "Failed to set balance", err)
		return
	}
	writeJSON(w, http.StatusOK, BalanceDTO{AccountID: string(id), Balance: balance.String()})
}

// RecomputeAccountBalance recomputes the cached balance from the ledger.
func (h *Handler) RecomputeAccountBalance(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}
	id := finance.AccountID(chi.URLParam(r, "id"))

	balance, err := h.Engine.RecomputeAccountBalance(r.Context(), owner, id)
	if err != nil {
		writeEngineError(w, "Failed to recompute balance", err)
		return
	}
	writeJSON(w, http.StatusOK, BalanceDTO{AccountID: string(id), Balance: balance.String()})
}

// DeleteAccount deletes an account. The strategy query parameter selects
// reassignment (requires target_id) or cascade.
func (h *Handler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}
	id := finance.AccountID(chi.URLParam(r, "id"))

	switch strategy := r.URL.Query().Get("strategy"); strategy {
	case "", "reassign":
		target := finance.AccountID(r.URL.Query().Get("target_id"))
		if target == "" {
			writeError(w, http.StatusBadRequest, "reassign strategy requires target_id", nil)
			return
		}
		counts, err := h.Engine.DeleteAccountReassign(r.Context(), owner, id, target)
		if err != nil {
			writeEngineError(w, "Failed to delete account", err)
			return
		}
		writeJSON(w, http.StatusOK, AccountDeletionDTO{
			Strategy:               "reassign",
			RulesReassigned:        counts.RulesReassigned,
			TransactionsReassigned: counts.TransactionsReassigned,
		})
	case "cascade":
		counts, err := h.Engine.DeleteAccountCascade(r.Context(), owner, id)
		if err != nil {
			writeEngineError(w, "Failed to delete account", err)
			return
		}
		writeJSON(w, http.StatusOK, AccountDeletionDTO{
			Strategy:            "cascade",
			RulesDeleted:        counts.RulesDeleted,
			TransactionsDeleted: counts.TransactionsDeleted,
			PairRefsCleared:     counts.PairRefsCleared,
		})
	default:
		writeError(w, http.StatusBadRequest, "Unknown strategy (use reassign or cascade)", nil)
	}
}

// =============================================================================
// CATEGORY HANDLERS
// =============================================================================

// ListCategories returns the owner's categories plus the system set.
func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}

	categories, err := h.Engine.Store.ListCategories(r.Context(), owner)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list categories", err)
		return
	}

	dtos := make([]CategoryDTO, 0, len(categories))
	for _, c := range categories {
		dtos = append(dtos, toCategoryDTO(c))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateCategory creates a user category, optionally under a parent.
func (h *Handler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}

	var req CreateCategoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	params := engine.CreateCategoryParams{
		Name: req.Name,
		Flow: finance.FlowType(req.Flow),
	}
	if req.ParentID != nil {
		parent := finance.CategoryID(*req.ParentID)
		params.ParentID = &parent
	}

	category, err := h.Engine.CreateCategory(r.Context(), owner, params)
	if err != nil {
		writeEngineError(w, "Failed to create category", err)
		return
	}
	writeJSON(w, http.StatusCreated, toCategoryDTO(*category))
}

// RenameCategory renames a user category. System categories are immutable.
func (h *Handler) RenameCategory(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}
	id := finance.CategoryID(chi.URLParam(r, "id"))

	var req RenameCategoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	category, err := h.Engine.RenameCategory(r.Context(), owner, id, req.Name)
	if err != nil {
		writeEngineError(w, "Failed to rename category", err)
		return
	}
	writeJSON(w, http.StatusOK, toCategoryDTO(*category))
}

// RecomputeCategoryBudgets recomputes every active budget linked to the
// category.
func (h *Handler) RecomputeCategoryBudgets(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}
	id := finance.CategoryID(chi.URLParam(r, "id"))

	deltas, err := h.Engine.RecomputeBudgetsForCategory(r.Context(), owner, id)
	if err != nil {
		writeEngineError(w, "Failed to recompute budgets", err)
		return
	}
	writeJSON(w, http.StatusOK, toBudgetDeltaDTOs(deltas))
}

// DeleteCategory removes a user category. Transactions are reassigned to
// the flow-matched general category, or soft-deleted when ?cascade=true.
func (h *Handler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}
	id := finance.CategoryID(chi.URLParam(r, "id"))
	cascade := r.URL.Query().Get("cascade") == "true"

	counts, err := h.Engine.DeleteCategoryReassign(r.Context(), owner, id, cascade)
	if err != nil {
		writeEngineError(w, "Failed to delete category", err)
		return
	}
	writeJSON(w, http.StatusOK, CategoryDeletionDTO{
		TransactionsReassigned: counts.TransactionsReassigned,
		TransactionsDeleted:    counts.TransactionsDeleted,
		PairRefsCleared:        counts.PairRefsCleared,
		BudgetLinksRemoved:     counts.BudgetLinksRemoved,
		SubcategoriesDetached:  counts.SubcategoriesDetached,
	})
}

// =============================================================================
// TRANSACTION HANDLERS
// =============================================================================

// CreateTransaction records a manual income or outcome transaction.
func (h *Handler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}

	var req CreateTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return
	}
	date, err := finance.ParseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
		return
	}

	tx, err := h.Engine.CreateTransaction(r.Context(), owner, engine.CreateTransactionParams{
		AccountID:   finance.AccountID(req.AccountID),
		CategoryID:  finance.CategoryID(req.CategoryID),
		Flow:        finance.FlowType(req.Flow),
		Amount:      amount,
		Date:        date,
		Description: req.Description,
	})
	if err != nil {
		writeEngineError(w, "Failed to create transaction", err)
		return
	}
	writeJSON(w, http.StatusCreated, toTransactionDTO(*tx))
}

// UpdateTransaction patches a standalone transaction. Paired legs must go
// through the transfer endpoints.
func (h *Handler) UpdateTransaction(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}
	id := finance.TransactionID(chi.URLParam(r, "id"))

	var req UpdateTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	var patch engine.TransactionPatch
	if req.CategoryID != nil {
		category := finance.CategoryID(*req.CategoryID)
		patch.CategoryID = &category
	}
	if req.Amount != nil {
		amount, err := decimal.NewFromString(*req.Amount)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid amount", err)
			return
		}
		patch.Amount = &amount
	}
	if req.Date != nil {
		date, err := finance.ParseDate(*req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
			return
		}
		patch.Date = &date
	}
	patch.Description = req.Description

	tx, err := h.Engine.UpdateTransaction(r.Context(), owner, id, patch)
	if err != nil {
		writeEngineError(w, "Failed to update transaction", err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionDTO(*tx))
}

// DeleteTransaction soft-deletes a standalone transaction.
func (h *Handler) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}
	id := finance.TransactionID(chi.URLParam(r, "id"))

	if err := h.Engine.DeleteTransaction(r.Context(), owner, id); err != nil {
		writeEngineError(w, "Failed to delete transaction", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// =============================================================================
// TRANSFER HANDLERS
// =============================================================================

// CreateTransfer creates a mutually paired outcome/income pair.
func (h *Handler) CreateTransfer(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}

	var req CreateTransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return
	}
	date, err := finance.ParseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
		return
	}

	outID, inID, err := h.Engine.CreateTransfer(r.Context(), owner,
		finance.AccountID(req.FromAccountID), finance.AccountID(req.ToAccountID),
		amount, date, req.Description)
	if err != nil {
		writeEngineError(w, "Failed to create transfer", err)
		return
	}
	writeJSON(w, http.StatusCreated, TransferDTO{
		OutgoingTransactionID: string(outID),
		IncomingTransactionID: string(inID),
	})
}

// UpdateTransfer patches both legs of a transfer, addressed by either leg.
func (h *Handler) UpdateTransfer(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}
	id := finance.TransactionID(chi.URLParam(r, "id"))

	var req UpdateTransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	var patch engine.TransferPatch
	if req.Amount != nil {
		amount, err := decimal.NewFromString(*req.Amount)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid amount", err)
			return
		}
		patch.Amount = &amount
	}
	if req.Date != nil {
		date, err := finance.ParseDate(*req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
			return
		}
		patch.Date = &date
	}
	patch.Description = req.Description

	outID, inID, err := h.Engine.UpdateTransfer(r.Context(), owner, id, patch)
	if err != nil {
		writeEngineError(w, "Failed to update transfer", err)
		return
	}
	writeJSON(w, http.StatusOK, TransferDTO{
		OutgoingTransactionID: string(outID),
		IncomingTransactionID: string(inID),
	})
}

// DeleteTransfer soft-deletes both legs of a transfer.
func (h *Handler) DeleteTransfer(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}
	id := finance.TransactionID(chi.URLParam(r, "id"))

	outID, inID, err := h.Engine.DeleteTransfer(r.Context(), owner, id)
	if err != nil {
		writeEngineError(w, "Failed to delete transfer", err)
		return
	}
	writeJSON(w, http.StatusOK, TransferDTO{
		OutgoingTransactionID: string(outID),
		IncomingTransactionID: string(inID),
	})
}

// =============================================================================
// RECURRING HANDLERS
// =============================================================================

// CreateRecurringRule creates a standalone rule template.
func (h *Handler) CreateRecurringRule(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}

	var req CreateRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return
	}
	start, err := finance.ParseDate(req.StartDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid start_date (use YYYY-MM-DD)", err)
		return
	}
	end, err := parseEndDate(req.EndDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid end_date (use YYYY-MM-DD)", err)
		return
	}

	rule, err := h.Engine.CreateRecurringRule(r.Context(), owner, engine.CreateRuleParams{
		AccountID:   finance.AccountID(req.AccountID),
		CategoryID:  finance.CategoryID(req.CategoryID),
		Flow:        finance.FlowType(req.Flow),
		Amount:      amount,
		Description: req.Description,
		Schedule:    toSchedule(req.Schedule),
		StartDate:   start,
		EndDate:     end,
	})
	if err != nil {
		writeEngineError(w, "Failed to create recurring rule", err)
		return
	}
	writeJSON(w, http.StatusCreated, toRuleDTO(*rule))
}

// CreateRecurringTransfer creates two mutually paired rule templates.
func (h *Handler) CreateRecurringTransfer(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}

	var req CreateRecurringTransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return
	}
	start, err := finance.ParseDate(req.StartDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid start_date (use YYYY-MM-DD)", err)
		return
	}
	end, err := parseEndDate(req.EndDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid end_date (use YYYY-MM-DD)", err)
		return
	}

	outID, inID, err := h.Engine.CreateRecurringTransfer(r.Context(), owner, engine.RecurringTransferParams{
		FromAccount: finance.AccountID(req.FromAccountID),
		ToAccount:   finance.AccountID(req.ToAccountID),
		Amount:      amount,
		Description: req.Description,
		Schedule:    toSchedule(req.Schedule),
		StartDate:   start,
		EndDate:     end,
	})
	if err != nil {
		writeEngineError(w, "Failed to create recurring transfer", err)
		return
	}
	writeJSON(w, http.StatusCreated, RulePairDTO{
		OutgoingRuleID: string(outID),
		IncomingRuleID: string(inID),
	})
}

// GetRecurringRule returns one rule.
func (h *Handler) GetRecurringRule(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}
	id := finance.RuleID(chi.URLParam(r, "id"))

	rule, err := h.Engine.Store.GetRule(r.Context(), owner, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get rule", err)
		return
	}
	if rule == nil {
		writeError(w, http.StatusNotFound, "Rule not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toRuleDTO(*rule))
}

// DeleteRecurringRule soft-deletes a standalone rule. Paired rules must be
// deleted through the pair endpoint.
func (h *Handler) DeleteRecurringRule(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}
	id := finance.RuleID(chi.URLParam(r, "id"))

	if err := h.Engine.DeleteRecurringRule(r.Context(), owner, id); err != nil {
		writeEngineError(w, "Failed to delete rule", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// DeleteRecurringPair soft-deletes a rule and its paired rule together.
func (h *Handler) DeleteRecurringPair(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}
	id := finance.RuleID(chi.URLParam(r, "id"))

	outID, inID, err := h.Engine.DeleteRecurringAndPair(r.Context(), owner, id)
	if err != nil {
		writeEngineError(w, "Failed to delete rule pair", err)
		return
	}
	writeJSON(w, http.StatusOK, RulePairDTO{
		OutgoingRuleID: string(outID),
		IncomingRuleID: string(inID),
	})
}

// Materialize runs rule materialization for the owner up to as_of
// (defaults to today).
func (h *Handler) Materialize(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}

	asOf := h.Engine.Now()
	if r.Body != nil && r.ContentLength != 0 {
		var req MaterializeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body", err)
			return
		}
		if req.AsOf != "" {
			parsed, err := finance.ParseDate(req.AsOf)
			if err != nil {
				writeError(w, http.StatusBadRequest, "Invalid as_of (use YYYY-MM-DD)", err)
				return
			}
			asOf = parsed
		}
	}

	summary, err := h.Engine.Materialize(r.Context(), owner, asOf)
	if err != nil {
		writeEngineError(w, "Materialization failed", err)
		return
	}
	writeJSON(w, http.StatusOK, MaterializeResultDTO{
		TransactionsGenerated: summary.TransactionsGenerated,
		RulesProcessed:        summary.RulesProcessed,
		AccountsTouched:       summary.AccountsTouched,
		BudgetsTouched:        summary.BudgetsTouched,
	})
}

// =============================================================================
// BUDGET HANDLERS
// =============================================================================

// ListBudgets returns the owner's budgets.
func (h *Handler) ListBudgets(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}

	budgets, err := h.Engine.Store.ListBudgets(r.Context(), owner)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list budgets", err)
		return
	}

	dtos := make([]BudgetDTO, 0, len(budgets))
	for _, b := range budgets {
		dtos = append(dtos, toBudgetDTO(b))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateBudget creates a budget with its category links.
func (h *Handler) CreateBudget(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}

	var req CreateBudgetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	limit, err := decimal.NewFromString(req.LimitAmount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid limit_amount", err)
		return
	}
	start, err := finance.ParseDate(req.StartDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid start_date (use YYYY-MM-DD)", err)
		return
	}
	end, err := parseEndDate(req.EndDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid end_date (use YYYY-MM-DD)", err)
		return
	}

	categoryIDs := make([]finance.CategoryID, 0, len(req.CategoryIDs))
	for _, id := range req.CategoryIDs {
		categoryIDs = append(categoryIDs, finance.CategoryID(id))
	}

	budget, err := h.Engine.CreateBudget(r.Context(), owner, engine.CreateBudgetParams{
		Name:        req.Name,
		LimitAmount: limit,
		Schedule:    toSchedule(req.Schedule),
		StartDate:   start,
		EndDate:     end,
		CategoryIDs: categoryIDs,
	})
	if err != nil {
		writeEngineError(w, "Failed to create budget", err)
		return
	}
	writeJSON(w, http.StatusCreated, toBudgetDTO(*budget))
}

// GetBudget returns one budget.
func (h *Handler) GetBudget(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}
	id := finance.BudgetID(chi.URLParam(r, "id"))

	budget, err := h.Engine.Store.GetBudget(r.Context(), owner, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get budget", err)
		return
	}
	if budget == nil {
		writeError(w, http.StatusNotFound, "Budget not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toBudgetDTO(*budget))
}

// RecomputeBudget recomputes the budget's consumption for its current
// period.
func (h *Handler) RecomputeBudget(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}
	id := finance.BudgetID(chi.URLParam(r, "id"))

	budget, err := h.Engine.Store.GetBudget(r.Context(), owner, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get budget", err)
		return
	}
	if budget == nil {
		writeError(w, http.StatusNotFound, "Budget not found", nil)
		return
	}

	period := budget.CurrentPeriod(h.Engine.Now())
	consumption, err := h.Engine.RecomputeBudgetConsumption(r.Context(), owner, id, period)
	if err != nil {
		writeEngineError(w, "Failed to recompute budget", err)
		return
	}
	writeJSON(w, http.StatusOK, BudgetDeltaDTO{
		BudgetID: string(id),
		Old:      budget.CachedConsumption.String(),
		New:      consumption.String(),
	})
}

// DeleteBudget soft-deletes the budget and removes its links.
func (h *Handler) DeleteBudget(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}
	id := finance.BudgetID(chi.URLParam(r, "id"))

	if err := h.Engine.DeleteBudget(r.Context(), owner, id); err != nil {
		writeEngineError(w, "Failed to delete budget", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// =============================================================================
// HELPERS
// =============================================================================

func toSchedule(dto ScheduleDTO) finance.Schedule {
	s := finance.NewSchedule(finance.Frequency(dto.Frequency), dto.Interval)
	s.ByWeekday = dto.ByWeekday
	s.ByMonthday = dto.ByMonthday
	return s
}

func parseEndDate(s *string) (*finance.Date, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	d, err := finance.ParseDate(*s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeEngineError maps domain errors to HTTP status codes.
func writeEngineError(w http.ResponseWriter, message string, err error) {
	switch {
	case finance.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case errors.Is(err, finance.ErrInvalidPairing):
		writeError(w, http.StatusConflict, message, err)
	case finance.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}
