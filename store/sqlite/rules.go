package sqlite

import (
	"context"
	"database/sql"

	"github.com/moneta/finance-engine/finance"
)

// =============================================================================
// RULE STORE (finance.RuleStore interface)
// =============================================================================

const ruleColumns = `id, owner_id, account_id, category_id, flow_type, amount, description,
	frequency, interval_count, by_weekday, by_monthday, start_date, next_run_date,
	end_date, is_active, paired_rule_id, deleted_at`

// InsertRule appends a recurring rule template.
func (s *queries) InsertRule(ctx context.Context, r finance.RecurringRule) error {
	var paired sql.NullString
	if r.PairedRuleID != nil {
		paired = sql.NullString{String: string(*r.PairedRuleID), Valid: true}
	}

	_, err := s.q.ExecContext(ctx, `
		INSERT INTO recurring_rules
		(id, owner_id, account_id, category_id, flow_type, amount, description,
		 frequency, interval_count, by_weekday, by_monthday, start_date, next_run_date,
		 end_date, is_active, paired_rule_id, deleted_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.OwnerID, r.AccountID, r.CategoryID, string(r.Flow),
		r.Amount.String(), r.Description,
		string(r.Schedule.Frequency), r.Schedule.Interval,
		intsToCSV(r.Schedule.ByWeekday), intsToCSV(r.Schedule.ByMonthday),
		r.StartDate.String(), r.NextRunDate.String(),
		nullDate(r.EndDate), r.IsActive, paired, nullDate(r.DeletedAt), nowStamp(),
	)
	return err
}

// GetRule returns the non-deleted rule, or nil if missing or foreign.
func (s *queries) GetRule(ctx context.Context, owner finance.OwnerID, id finance.RuleID) (*finance.RecurringRule, error) {
	row := s.q.QueryRowContext(ctx, `
		SELECT `+ruleColumns+`
		FROM recurring_rules
		WHERE id = ? AND owner_id = ? AND deleted_at IS NULL`,
		id, owner,
	)

	r, err := scanRule(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

// ListDueRules returns active, non-deleted rules due at or before asOf,
// ordered by next_run_date ascending.
func (s *queries) ListDueRules(ctx context.Context, owner finance.OwnerID, asOf finance.Date) ([]finance.RecurringRule, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT `+ruleColumns+`
		FROM recurring_rules
		WHERE owner_id = ? AND deleted_at IS NULL AND is_active = 1
		  AND next_run_date <= ?
		ORDER BY next_run_date ASC, id ASC`,
		owner, asOf.String(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []finance.RecurringRule
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, *r)
	}
	return rules, rows.Err()
}

// DueRuleOwners returns the distinct owners with at least one due rule.
func (s *queries) DueRuleOwners(ctx context.Context, asOf finance.Date) ([]finance.OwnerID, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT DISTINCT owner_id
		FROM recurring_rules
		WHERE deleted_at IS NULL AND is_active = 1 AND next_run_date <= ?
		ORDER BY owner_id ASC`,
		asOf.String(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var owners []finance.OwnerID
	for rows.Next() {
		var owner finance.OwnerID
		if err := rows.Scan(&owner); err != nil {
			return nil, err
		}
		owners = append(owners, owner)
	}
	return owners, rows.Err()
}

// UpdateRuleNextRun advances the rule's schedule cursor.
func (s *queries) UpdateRuleNextRun(ctx context.Context, id finance.RuleID, next finance.Date) error {
	_, err := s.q.ExecContext(ctx,
		`UPDATE recurring_rules SET next_run_date = ? WHERE id = ?`,
		next.String(), id,
	)
	return err
}

// SoftDeleteRule marks the rule deleted.
func (s *queries) SoftDeleteRule(ctx context.Context, id finance.RuleID, when finance.Date) error {
	_, err := s.q.ExecContext(ctx,
		`UPDATE recurring_rules SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`,
		when.String(), id,
	)
	return err
}

// ClearRulePair nulls the pair pointer on one rule.
func (s *queries) ClearRulePair(ctx context.Context, id finance.RuleID) error {
	_, err := s.q.ExecContext(ctx,
		`UPDATE recurring_rules SET paired_rule_id = NULL WHERE id = ?`,
		id,
	)
	return err
}

// ReassignRulesByAccount moves all non-deleted rules from one account to
// another.
func (s *queries) ReassignRulesByAccount(ctx context.Context, owner finance.OwnerID, from, to finance.AccountID) (int, error) {
	res, err := s.q.ExecContext(ctx, `
		UPDATE recurring_rules SET account_id = ?
		WHERE owner_id = ? AND account_id = ? AND deleted_at IS NULL`,
		to, owner, from,
	)
	if err != nil {
		return 0, err
	}
	return rowsAffected(res), nil
}

// ClearRulePairRefsByAccount nulls paired_rule_id on any rule whose
// counterpart lives in the given account.
func (s *queries) ClearRulePairRefsByAccount(ctx context.Context, owner finance.OwnerID, account finance.AccountID) (int, error) {
	res, err := s.q.ExecContext(ctx, `
		UPDATE recurring_rules SET paired_rule_id = NULL
		WHERE owner_id = ? AND paired_rule_id IN (
			SELECT id FROM recurring_rules WHERE account_id = ? AND owner_id = ?
		)`,
		owner, account, owner,
	)
	if err != nil {
		return 0, err
	}
	return rowsAffected(res), nil
}

// SoftDeleteRulesByAccount marks all of the account's rules deleted.
func (s *queries) SoftDeleteRulesByAccount(ctx context.Context, owner finance.OwnerID, account finance.AccountID, when finance.Date) (int, error) {
	res, err := s.q.ExecContext(ctx, `
		UPDATE recurring_rules SET deleted_at = ?
		WHERE owner_id = ? AND account_id = ? AND deleted_at IS NULL`,
		when.String(), owner, account,
	)
	if err != nil {
		return 0, err
	}
	return rowsAffected(res), nil
}

func scanRule(row rowScanner) (*finance.RecurringRule, error) {
	var (
		r          finance.RecurringRule
		amount     string
		frequency  string
		byWeekday  sql.NullString
		byMonthday sql.NullString
		startDate  string
		nextRun    string
		endDate    sql.NullString
		paired     sql.NullString
		deletedAt  sql.NullString
	)
	err := row.Scan(&r.ID, &r.OwnerID, &r.AccountID, &r.CategoryID, &r.Flow,
		&amount, &r.Description, &frequency, &r.Schedule.Interval,
		&byWeekday, &byMonthday, &startDate, &nextRun, &endDate,
		&r.IsActive, &paired, &deletedAt)
	if err != nil {
		return nil, err
	}

	r.Amount = finance.MustDecimal(amount)
	r.Schedule.Frequency = finance.Frequency(frequency)
	r.Schedule.ByWeekday = csvToInts(byWeekday)
	r.Schedule.ByMonthday = csvToInts(byMonthday)
	r.StartDate = parseDate(startDate)
	r.NextRunDate = parseDate(nextRun)
	r.EndDate = parseNullDate(endDate)
	if paired.Valid {
		p := finance.RuleID(paired.String)
		r.PairedRuleID = &p
	}
	r.DeletedAt = parseNullDate(deletedAt)
	return &r, nil
}
