package sqlite

import (
	"context"
	"database/sql"

	"github.com/shopspring/decimal"

	"github.com/moneta/finance-engine/finance"
)

// =============================================================================
// BUDGET STORE (finance.BudgetStore interface)
// =============================================================================

const budgetColumns = `id, owner_id, name, limit_amount, frequency, interval_count,
	start_date, end_date, cached_consumption, is_active, deleted_at`

// InsertBudget appends a budget row. Category links go through
// LinkBudgetCategory.
func (s *queries) InsertBudget(ctx context.Context, b finance.Budget) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO budgets
		(id, owner_id, name, limit_amount, frequency, interval_count,
		 start_date, end_date, cached_consumption, is_active, deleted_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.OwnerID, b.Name, b.LimitAmount.String(),
		string(b.Schedule.Frequency), b.Schedule.Interval,
		b.StartDate.String(), nullDate(b.EndDate),
		b.CachedConsumption.String(), b.IsActive, nullDate(b.DeletedAt), nowStamp(),
	)
	return err
}

// GetBudget returns the non-deleted budget, or nil if missing or foreign.
func (s *queries) GetBudget(ctx context.Context, owner finance.OwnerID, id finance.BudgetID) (*finance.Budget, error) {
	row := s.q.QueryRowContext(ctx, `
		SELECT `+budgetColumns+`
		FROM budgets
		WHERE id = ? AND owner_id = ? AND deleted_at IS NULL`,
		id, owner,
	)

	b, err := scanBudget(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

// ListBudgets returns the owner's non-deleted budgets.
func (s *queries) ListBudgets(ctx context.Context, owner finance.OwnerID) ([]finance.Budget, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT `+budgetColumns+`
		FROM budgets
		WHERE owner_id = ? AND deleted_at IS NULL
		ORDER BY name`,
		owner,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectBudgets(rows)
}

// ListBudgetsByCategory returns the owner's active, non-deleted budgets
// linked to the category. This is the batched recompute entry point's
// working set.
func (s *queries) ListBudgetsByCategory(ctx context.Context, owner finance.OwnerID, category finance.CategoryID) ([]finance.Budget, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT `+prefixedBudgetColumns+`
		FROM budgets b
		JOIN budget_categories bc ON bc.budget_id = b.id
		WHERE bc.category_id = ? AND b.owner_id = ?
		  AND b.deleted_at IS NULL AND b.is_active = 1
		ORDER BY b.id`,
		category, owner,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectBudgets(rows)
}

const prefixedBudgetColumns = `b.id, b.owner_id, b.name, b.limit_amount, b.frequency, b.interval_count,
	b.start_date, b.end_date, b.cached_consumption, b.is_active, b.deleted_at`

// UpdateBudgetConsumption writes the derived consumption cache.
func (s *queries) UpdateBudgetConsumption(ctx context.Context, id finance.BudgetID, consumption decimal.Decimal) error {
	_, err := s.q.ExecContext(ctx,
		`UPDATE budgets SET cached_consumption = ? WHERE id = ?`,
		consumption.String(), id,
	)
	return err
}

// LinkBudgetCategory adds one junction row. Idempotent.
func (s *queries) LinkBudgetCategory(ctx context.Context, link finance.BudgetCategory) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT OR IGNORE INTO budget_categories (budget_id, category_id, owner_id)
		VALUES (?, ?, ?)`,
		link.BudgetID, link.CategoryID, link.OwnerID,
	)
	return err
}

// RemoveBudgetLinksByCategory deletes every junction row referencing the
// category. Used by category deletion.
func (s *queries) RemoveBudgetLinksByCategory(ctx context.Context, category finance.CategoryID) (int, error) {
	res, err := s.q.ExecContext(ctx,
		`DELETE FROM budget_categories WHERE category_id = ?`,
		category,
	)
	if err != nil {
		return 0, err
	}
	return rowsAffected(res), nil
}

// SoftDeleteBudget marks the budget deleted and removes its links.
func (s *queries) SoftDeleteBudget(ctx context.Context, id finance.BudgetID, when finance.Date) error {
	if _, err := s.q.ExecContext(ctx,
		`UPDATE budgets SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`,
		when.String(), id,
	); err != nil {
		return err
	}
	_, err := s.q.ExecContext(ctx,
		`DELETE FROM budget_categories WHERE budget_id = ?`, id)
	return err
}

func collectBudgets(rows *sql.Rows) ([]finance.Budget, error) {
	var budgets []finance.Budget
	for rows.Next() {
		b, err := scanBudget(rows)
		if err != nil {
			return nil, err
		}
		budgets = append(budgets, *b)
	}
	return budgets, rows.Err()
}

func scanBudget(row rowScanner) (*finance.Budget, error) {
	var (
		b           finance.Budget
		limit       string
		frequency   string
		startDate   string
		endDate     sql.NullString
		consumption string
		deletedAt   sql.NullString
	)
	err := row.Scan(&b.ID, &b.OwnerID, &b.Name, &limit, &frequency, &b.Schedule.Interval,
		&startDate, &endDate, &consumption, &b.IsActive, &deletedAt)
	if err != nil {
		return nil, err
	}

	b.LimitAmount = finance.MustDecimal(limit)
	b.Schedule.Frequency = finance.Frequency(frequency)
	b.StartDate = parseDate(startDate)
	b.EndDate = parseNullDate(endDate)
	b.CachedConsumption = finance.MustDecimal(consumption)
	b.DeletedAt = parseNullDate(deletedAt)
	return &b, nil
}
