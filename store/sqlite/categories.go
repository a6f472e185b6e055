package sqlite

import (
	"context"
	"database/sql"

	"github.com/moneta/finance-engine/finance"
)

// =============================================================================
// CATEGORY STORE (finance.CategoryStore interface)
// =============================================================================

const categoryColumns = `id, owner_id, name, flow_type, parent_id, system_key`

// GetCategory returns the category if it is a system category or belongs
// to the owner; nil otherwise.
func (s *queries) GetCategory(ctx context.Context, owner finance.OwnerID, id finance.CategoryID) (*finance.Category, error) {
	row := s.q.QueryRowContext(ctx, `
		SELECT `+categoryColumns+`
		FROM categories
		WHERE id = ? AND (owner_id = ? OR system_key IS NOT NULL)`,
		id, owner,
	)

	c, err := scanCategory(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// GetSystemCategory looks up a system category by stable key and flow
// direction.
func (s *queries) GetSystemCategory(ctx context.Context, key string, flow finance.FlowType) (*finance.Category, error) {
	row := s.q.QueryRowContext(ctx, `
		SELECT `+categoryColumns+`
		FROM categories
		WHERE system_key = ? AND flow_type = ?`,
		key, string(flow),
	)

	c, err := scanCategory(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// SaveCategory inserts or updates a user category.
func (s *queries) SaveCategory(ctx context.Context, c finance.Category) error {
	var parent sql.NullString
	if c.ParentID != nil {
		parent = sql.NullString{String: string(*c.ParentID), Valid: true}
	}

	_, err := s.q.ExecContext(ctx, `
		INSERT INTO categories (id, owner_id, name, flow_type, parent_id, system_key, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			parent_id = excluded.parent_id`,
		c.ID, nullString(string(c.OwnerID)), c.Name, string(c.Flow),
		parent, nullString(c.SystemKey), nowStamp(),
	)
	return err
}

// ListCategories returns system categories plus the owner's categories.
func (s *queries) ListCategories(ctx context.Context, owner finance.OwnerID) ([]finance.Category, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT `+categoryColumns+`
		FROM categories
		WHERE owner_id = ? OR system_key IS NOT NULL
		ORDER BY system_key IS NULL, name`,
		owner,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var categories []finance.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		categories = append(categories, *c)
	}
	return categories, rows.Err()
}

// DeleteCategory hard-deletes the row. Caller has already reassigned or
// cascaded the referencing transactions.
func (s *queries) DeleteCategory(ctx context.Context, id finance.CategoryID) error {
	_, err := s.q.ExecContext(ctx, `DELETE FROM categories WHERE id = ?`, id)
	return err
}

// ClearCategoryParent orphans all sub-categories of parent.
func (s *queries) ClearCategoryParent(ctx context.Context, parent finance.CategoryID) (int, error) {
	res, err := s.q.ExecContext(ctx,
		`UPDATE categories SET parent_id = NULL WHERE parent_id = ?`,
		parent,
	)
	if err != nil {
		return 0, err
	}
	return rowsAffected(res), nil
}

func scanCategory(row rowScanner) (*finance.Category, error) {
	var (
		c         finance.Category
		ownerID   sql.NullString
		parentID  sql.NullString
		systemKey sql.NullString
	)
	err := row.Scan(&c.ID, &ownerID, &c.Name, &c.Flow, &parentID, &systemKey)
	if err != nil {
		return nil, err
	}
	c.OwnerID = finance.OwnerID(ownerID.String)
	if parentID.Valid {
		p := finance.CategoryID(parentID.String)
		c.ParentID = &p
	}
	c.SystemKey = systemKey.String
	return &c, nil
}
