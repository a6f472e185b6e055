package engine

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/moneta/finance-engine/finance"
)

// =============================================================================
// ACCOUNT OPERATIONS
// =============================================================================

// CreateAccountParams describes a new account. A non-zero InitialBalance
// seeds the ledger with a system initial_balance transaction so the
// cached balance stays derived rather than asserted.
type CreateAccountParams struct {
	Name           string
	Type           finance.AccountType
	Currency       string
	InitialBalance decimal.Decimal
	IsFavorite     bool
}

var accountTypes = map[finance.AccountType]bool{
	finance.AccountCash:       true,
	finance.AccountBank:       true,
	finance.AccountCreditCard: true,
	finance.AccountLoan:       true,
	finance.AccountRemittance: true,
	finance.AccountCrypto:     true,
	finance.AccountInvestment: true,
}

// CreateAccount creates an account, optionally with an initial-balance
// transaction. At most one account per owner can be the favorite.
func (e *Engine) CreateAccount(ctx context.Context, owner finance.OwnerID, p CreateAccountParams) (*finance.Account, error) {
	if p.Name == "" || !accountTypes[p.Type] {
		return nil, finance.ErrInvalidInput
	}
	if p.Currency == "" {
		p.Currency = "USD"
	}

	account := finance.Account{
		ID:            newAccountID(),
		OwnerID:       owner,
		Name:          p.Name,
		Type:          p.Type,
		Currency:      p.Currency,
		CachedBalance: decimal.Zero,
		IsFavorite:    p.IsFavorite,
	}

	err := e.Store.WithTx(ctx, func(s finance.Store) error {
		if p.IsFavorite {
			if err := s.ClearFavorite(ctx, owner); err != nil {
				return err
			}
		}
		if err := s.SaveAccount(ctx, account); err != nil {
			return err
		}

		if !p.InitialBalance.IsZero() {
			flow := finance.FlowIncome
			if p.InitialBalance.IsNegative() {
				flow = finance.FlowOutcome
			}
			category, err := s.GetSystemCategory(ctx, finance.SystemCategoryInitialBalance, flow)
			if err != nil {
				return err
			}
			if category == nil {
				return &finance.NotFoundError{Entity: "category", ID: finance.SystemCategoryInitialBalance}
			}

			if err := s.InsertTransaction(ctx, finance.Transaction{
				ID:                 newTransactionID(),
				OwnerID:            owner,
				AccountID:          account.ID,
				CategoryID:         category.ID,
				Flow:               flow,
				Amount:             p.InitialBalance.Abs(),
				Date:               e.Now(),
				Description:        "initial balance",
				SystemGeneratedKey: finance.GeneratedKeyInitialBalance,
			}); err != nil {
				return err
			}

			balance, err := recomputeAccountBalance(ctx, s, account.ID)
			if err != nil {
				return err
			}
			account.CachedBalance = balance
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// SetFavoriteAccount makes the account the owner's single favorite.
func (e *Engine) SetFavoriteAccount(ctx context.Context, owner finance.OwnerID, id finance.AccountID) error {
	return e.Store.WithTx(ctx, func(s finance.Store) error {
		account, err := s.GetAccount(ctx, owner, id)
		if err != nil {
			return err
		}
		if account == nil {
			return &finance.NotFoundError{Entity: "account", ID: string(id), Owner: owner}
		}

		if err := s.ClearFavorite(ctx, owner); err != nil {
			return err
		}
		account.IsFavorite = true
		return s.SaveAccount(ctx, *account)
	})
}

// SetAccountBalance adjusts an account to an explicit balance by writing
// a system balance_update transaction for the difference, keeping the
// cache derived from the ledger.
func (e *Engine) SetAccountBalance(ctx context.Context, owner finance.OwnerID, id finance.AccountID, target decimal.Decimal) (decimal.Decimal, error) {
	var balance decimal.Decimal

	err := e.Store.WithTx(ctx, func(s finance.Store) error {
		if err := requireAccount(ctx, s, owner, id); err != nil {
			return err
		}

		current, err := s.SumAccountBalance(ctx, id)
		if err != nil {
			return err
		}
		diff := target.Sub(current)
		if diff.IsZero() {
			balance = current
			return s.UpdateAccountBalance(ctx, id, current)
		}

		flow := finance.FlowIncome
		if diff.IsNegative() {
			flow = finance.FlowOutcome
		}
		category, err := s.GetSystemCategory(ctx, finance.SystemCategoryBalanceUpdate, flow)
		if err != nil {
			return err
		}
		if category == nil {
			return &finance.NotFoundError{Entity: "category", ID: finance.SystemCategoryBalanceUpdate}
		}

		if err := s.InsertTransaction(ctx, finance.Transaction{
			ID:                 newTransactionID(),
			OwnerID:            owner,
			AccountID:          id,
			CategoryID:         category.ID,
			Flow:               flow,
			Amount:             diff.Abs(),
			Date:               e.Now(),
			Description:        "balance update",
			SystemGeneratedKey: finance.GeneratedKeyBalanceUpdate,
		}); err != nil {
			return err
		}

		balance, err = recomputeAccountBalance(ctx, s, id)
		return err
	})
	if err != nil {
		return decimal.Zero, err
	}
	return balance, nil
}
