package sqlite

import (
	"context"
	"database/sql"

	"github.com/shopspring/decimal"

	"github.com/moneta/finance-engine/finance"
)

// =============================================================================
// ACCOUNT STORE (finance.AccountStore interface)
// =============================================================================

const accountColumns = `id, owner_id, name, account_type, currency, cached_balance, is_favorite, deleted_at`

// GetAccount returns the non-deleted account, or nil if missing or owned
// by someone else.
func (s *queries) GetAccount(ctx context.Context, owner finance.OwnerID, id finance.AccountID) (*finance.Account, error) {
	row := s.q.QueryRowContext(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE id = ? AND owner_id = ? AND deleted_at IS NULL`,
		id, owner,
	)

	a, err := scanAccount(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// SaveAccount inserts or updates an account row.
func (s *queries) SaveAccount(ctx context.Context, a finance.Account) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO accounts (id, owner_id, name, account_type, currency, cached_balance, is_favorite, deleted_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			account_type = excluded.account_type,
			currency = excluded.currency,
			is_favorite = excluded.is_favorite`,
		a.ID, a.OwnerID, a.Name, string(a.Type), a.Currency,
		a.CachedBalance.String(), a.IsFavorite, nullDate(a.DeletedAt), nowStamp(),
	)
	return err
}

// ListAccounts returns the owner's non-deleted accounts.
func (s *queries) ListAccounts(ctx context.Context, owner finance.OwnerID) ([]finance.Account, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE owner_id = ? AND deleted_at IS NULL
		ORDER BY name`,
		owner,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []finance.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, *a)
	}
	return accounts, rows.Err()
}

// UpdateAccountBalance writes the derived balance cache.
func (s *queries) UpdateAccountBalance(ctx context.Context, id finance.AccountID, balance decimal.Decimal) error {
	_, err := s.q.ExecContext(ctx,
		`UPDATE accounts SET cached_balance = ? WHERE id = ?`,
		balance.String(), id,
	)
	return err
}

// ClearFavorite unsets is_favorite on every account of the owner.
func (s *queries) ClearFavorite(ctx context.Context, owner finance.OwnerID) error {
	_, err := s.q.ExecContext(ctx,
		`UPDATE accounts SET is_favorite = 0 WHERE owner_id = ? AND is_favorite = 1`,
		owner,
	)
	return err
}

// SoftDeleteAccount marks the account deleted.
func (s *queries) SoftDeleteAccount(ctx context.Context, id finance.AccountID, when finance.Date) error {
	_, err := s.q.ExecContext(ctx,
		`UPDATE accounts SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`,
		when.String(), id,
	)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*finance.Account, error) {
	var (
		a         finance.Account
		balance   string
		deletedAt sql.NullString
	)
	err := row.Scan(&a.ID, &a.OwnerID, &a.Name, &a.Type, &a.Currency, &balance, &a.IsFavorite, &deletedAt)
	if err != nil {
		return nil, err
	}
	a.CachedBalance = finance.MustDecimal(balance)
	a.DeletedAt = parseNullDate(deletedAt)
	return &a, nil
}
