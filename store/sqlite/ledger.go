package sqlite

import (
	"context"
	"database/sql"

	"github.com/shopspring/decimal"

	"github.com/moneta/finance-engine/finance"
)

// =============================================================================
// LEDGER STORE (finance.LedgerStore interface)
// =============================================================================

const transactionColumns = `id, owner_id, account_id, category_id, flow_type, amount, tx_date,
	description, paired_transaction_id, recurring_rule_id, system_generated_key, deleted_at`

// InsertTransaction appends one ledger row.
func (s *queries) InsertTransaction(ctx context.Context, t finance.Transaction) error {
	var paired, ruleID sql.NullString
	if t.PairedTransactionID != nil {
		paired = sql.NullString{String: string(*t.PairedTransactionID), Valid: true}
	}
	if t.RecurringRuleID != nil {
		ruleID = sql.NullString{String: string(*t.RecurringRuleID), Valid: true}
	}

	_, err := s.q.ExecContext(ctx, `
		INSERT INTO transactions
		(id, owner_id, account_id, category_id, flow_type, amount, tx_date,
		 description, paired_transaction_id, recurring_rule_id, system_generated_key, deleted_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.OwnerID, t.AccountID, t.CategoryID, string(t.Flow),
		t.Amount.String(), t.Date.String(), t.Description,
		paired, ruleID, nullString(t.SystemGeneratedKey), nullDate(t.DeletedAt), nowStamp(),
	)
	return err
}

// GetTransaction returns the non-deleted transaction, or nil if missing
// or foreign.
func (s *queries) GetTransaction(ctx context.Context, owner finance.OwnerID, id finance.TransactionID) (*finance.Transaction, error) {
	row := s.q.QueryRowContext(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE id = ? AND owner_id = ? AND deleted_at IS NULL`,
		id, owner,
	)

	t, err := scanTransaction(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

// UpdateTransaction rewrites the mutable fields of a ledger row.
func (s *queries) UpdateTransaction(ctx context.Context, t finance.Transaction) error {
	var paired sql.NullString
	if t.PairedTransactionID != nil {
		paired = sql.NullString{String: string(*t.PairedTransactionID), Valid: true}
	}

	_, err := s.q.ExecContext(ctx, `
		UPDATE transactions
		SET account_id = ?, category_id = ?, flow_type = ?, amount = ?, tx_date = ?,
		    description = ?, paired_transaction_id = ?, deleted_at = ?
		WHERE id = ?`,
		t.AccountID, t.CategoryID, string(t.Flow), t.Amount.String(), t.Date.String(),
		t.Description, paired, nullDate(t.DeletedAt), t.ID,
	)
	return err
}

// ListTransactionsByAccount returns the account's non-deleted rows,
// chronologically.
func (s *queries) ListTransactionsByAccount(ctx context.Context, owner finance.OwnerID, account finance.AccountID) ([]finance.Transaction, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE owner_id = ? AND account_id = ? AND deleted_at IS NULL
		ORDER BY tx_date ASC, created_at ASC`,
		owner, account,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txs []finance.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, *t)
	}
	return txs, rows.Err()
}

// SoftDeleteTransaction marks one row deleted.
func (s *queries) SoftDeleteTransaction(ctx context.Context, id finance.TransactionID, when finance.Date) error {
	_, err := s.q.ExecContext(ctx,
		`UPDATE transactions SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`,
		when.String(), id,
	)
	return err
}

// ClearTransactionPair nulls the pair pointer on one row.
func (s *queries) ClearTransactionPair(ctx context.Context, id finance.TransactionID) error {
	_, err := s.q.ExecContext(ctx,
		`UPDATE transactions SET paired_transaction_id = NULL WHERE id = ?`,
		id,
	)
	return err
}

// =============================================================================
// AGGREGATES - The authoritative sources for both caches
// =============================================================================

// SumAccountBalance computes the signed sum of the account's non-deleted
// transactions: income positive, outcome negative.
func (s *queries) SumAccountBalance(ctx context.Context, account finance.AccountID) (decimal.Decimal, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT flow_type, amount
		FROM transactions
		WHERE account_id = ? AND deleted_at IS NULL`,
		account,
	)
	if err != nil {
		return decimal.Zero, err
	}
	defer rows.Close()

	// Decimal amounts are stored as strings, so the sum happens here
	// rather than in SQL to avoid float drift.
	total := decimal.Zero
	for rows.Next() {
		var flow, amount string
		if err := rows.Scan(&flow, &amount); err != nil {
			return decimal.Zero, err
		}
		total = total.Add(finance.MustDecimal(amount).Mul(finance.FlowType(flow).Sign()))
	}
	return total, rows.Err()
}

// SumBudgetConsumption sums outcome-only, non-deleted amounts whose
// category is linked to the budget, within [p.Start, p.End]. The join
// is owner-scoped through the junction's owner id: budgets linked to a
// shared system category must never see another owner's spending.
func (s *queries) SumBudgetConsumption(ctx context.Context, budget finance.BudgetID, p finance.Period) (decimal.Decimal, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT t.amount
		FROM transactions t
		JOIN budget_categories bc ON bc.category_id = t.category_id AND bc.owner_id = t.owner_id
		WHERE bc.budget_id = ?
		  AND t.flow_type = ?
		  AND t.deleted_at IS NULL
		  AND t.tx_date >= ? AND t.tx_date <= ?`,
		budget, string(finance.FlowOutcome), p.Start.String(), p.End.String(),
	)
	if err != nil {
		return decimal.Zero, err
	}
	defer rows.Close()

	total := decimal.Zero
	for rows.Next() {
		var amount string
		if err := rows.Scan(&amount); err != nil {
			return decimal.Zero, err
		}
		total = total.Add(finance.MustDecimal(amount))
	}
	return total, rows.Err()
}

// =============================================================================
// BULK MUTATIONS - Reassignment and cascade support
// =============================================================================

// ReassignTransactionsByAccount moves all non-deleted rows from one
// account to another, returning how many moved.
func (s *queries) ReassignTransactionsByAccount(ctx context.Context, owner finance.OwnerID, from, to finance.AccountID) (int, error) {
	res, err := s.q.ExecContext(ctx, `
		UPDATE transactions SET account_id = ?
		WHERE owner_id = ? AND account_id = ? AND deleted_at IS NULL`,
		to, owner, from,
	)
	if err != nil {
		return 0, err
	}
	return rowsAffected(res), nil
}

// ReassignTransactionsByCategory relabels all non-deleted rows from one
// category to another.
func (s *queries) ReassignTransactionsByCategory(ctx context.Context, owner finance.OwnerID, from, to finance.CategoryID) (int, error) {
	res, err := s.q.ExecContext(ctx, `
		UPDATE transactions SET category_id = ?
		WHERE owner_id = ? AND category_id = ? AND deleted_at IS NULL`,
		to, owner, from,
	)
	if err != nil {
		return 0, err
	}
	return rowsAffected(res), nil
}

// ClearPairRefsByAccount nulls paired_transaction_id on any row whose
// counterpart lives in the given account. Run before a cascade so no
// surviving row points at a deleted one.
func (s *queries) ClearPairRefsByAccount(ctx context.Context, owner finance.OwnerID, account finance.AccountID) (int, error) {
	res, err := s.q.ExecContext(ctx, `
		UPDATE transactions SET paired_transaction_id = NULL
		WHERE owner_id = ? AND paired_transaction_id IN (
			SELECT id FROM transactions WHERE account_id = ? AND owner_id = ?
		)`,
		owner, account, owner,
	)
	if err != nil {
		return 0, err
	}
	return rowsAffected(res), nil
}

// SoftDeleteTransactionsByAccount marks all of the account's non-deleted
// rows deleted.
func (s *queries) SoftDeleteTransactionsByAccount(ctx context.Context, owner finance.OwnerID, account finance.AccountID, when finance.Date) (int, error) {
	res, err := s.q.ExecContext(ctx, `
		UPDATE transactions SET deleted_at = ?
		WHERE owner_id = ? AND account_id = ? AND deleted_at IS NULL`,
		when.String(), owner, account,
	)
	if err != nil {
		return 0, err
	}
	return rowsAffected(res), nil
}

// ClearPairRefsByCategory nulls pair pointers whose counterpart carries
// the given category.
func (s *queries) ClearPairRefsByCategory(ctx context.Context, owner finance.OwnerID, category finance.CategoryID) (int, error) {
	res, err := s.q.ExecContext(ctx, `
		UPDATE transactions SET paired_transaction_id = NULL
		WHERE owner_id = ? AND paired_transaction_id IN (
			SELECT id FROM transactions WHERE category_id = ? AND owner_id = ?
		)`,
		owner, category, owner,
	)
	if err != nil {
		return 0, err
	}
	return rowsAffected(res), nil
}

// SoftDeleteTransactionsByCategory marks all rows carrying the category
// deleted.
func (s *queries) SoftDeleteTransactionsByCategory(ctx context.Context, owner finance.OwnerID, category finance.CategoryID, when finance.Date) (int, error) {
	res, err := s.q.ExecContext(ctx, `
		UPDATE transactions SET deleted_at = ?
		WHERE owner_id = ? AND category_id = ? AND deleted_at IS NULL`,
		when.String(), owner, category,
	)
	if err != nil {
		return 0, err
	}
	return rowsAffected(res), nil
}

// OutcomeCategoryIDsByAccount returns the distinct categories of the
// account's non-deleted outcome transactions.
func (s *queries) OutcomeCategoryIDsByAccount(ctx context.Context, owner finance.OwnerID, account finance.AccountID) ([]finance.CategoryID, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT DISTINCT category_id
		FROM transactions
		WHERE owner_id = ? AND account_id = ? AND flow_type = ? AND deleted_at IS NULL
		ORDER BY category_id`,
		owner, account, string(finance.FlowOutcome),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []finance.CategoryID
	for rows.Next() {
		var id finance.CategoryID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// AccountIDsByCategory returns the distinct accounts holding non-deleted
// transactions in the category.
func (s *queries) AccountIDsByCategory(ctx context.Context, owner finance.OwnerID, category finance.CategoryID) ([]finance.AccountID, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT DISTINCT account_id
		FROM transactions
		WHERE owner_id = ? AND category_id = ? AND deleted_at IS NULL
		ORDER BY account_id`,
		owner, category,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []finance.AccountID
	for rows.Next() {
		var id finance.AccountID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func scanTransaction(row rowScanner) (*finance.Transaction, error) {
	var (
		t           finance.Transaction
		amount      string
		txDate      string
		paired      sql.NullString
		ruleID      sql.NullString
		genKey      sql.NullString
		deletedAt   sql.NullString
	)
	err := row.Scan(&t.ID, &t.OwnerID, &t.AccountID, &t.CategoryID, &t.Flow,
		&amount, &txDate, &t.Description, &paired, &ruleID, &genKey, &deletedAt)
	if err != nil {
		return nil, err
	}

	t.Amount = finance.MustDecimal(amount)
	t.Date = parseDate(txDate)
	if paired.Valid {
		p := finance.TransactionID(paired.String)
		t.PairedTransactionID = &p
	}
	if ruleID.Valid {
		r := finance.RuleID(ruleID.String)
		t.RecurringRuleID = &r
	}
	t.SystemGeneratedKey = genKey.String
	t.DeletedAt = parseNullDate(deletedAt)
	return &t, nil
}
