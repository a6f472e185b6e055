package engine

import (
	"context"

	"github.com/moneta/finance-engine/finance"
)

// =============================================================================
// CATEGORY OPERATIONS
// =============================================================================
// Deletion lives in deletion.go with the other reassignment logic.

// CreateCategoryParams describes a user category. ParentID, when set,
// must reference a top-level user category with the same flow direction:
// nesting is at most one level deep.
type CreateCategoryParams struct {
	Name     string
	Flow     finance.FlowType
	ParentID *finance.CategoryID
}

// CreateCategory creates a user category.
func (e *Engine) CreateCategory(ctx context.Context, owner finance.OwnerID, p CreateCategoryParams) (*finance.Category, error) {
	if p.Name == "" {
		return nil, finance.ErrInvalidInput
	}
	if p.Flow != finance.FlowIncome && p.Flow != finance.FlowOutcome {
		return nil, finance.ErrInvalidInput
	}

	category := finance.Category{
		ID:       newCategoryID(),
		OwnerID:  owner,
		Name:     p.Name,
		Flow:     p.Flow,
		ParentID: p.ParentID,
	}

	err := e.Store.WithTx(ctx, func(s finance.Store) error {
		if p.ParentID != nil {
			parent, err := s.GetCategory(ctx, owner, *p.ParentID)
			if err != nil {
				return err
			}
			if parent == nil || parent.OwnerID != owner {
				return &finance.NotFoundError{Entity: "category", ID: string(*p.ParentID), Owner: owner}
			}
			if parent.ParentID != nil || parent.Flow != p.Flow {
				return finance.ErrInvalidInput
			}
		}
		return s.SaveCategory(ctx, category)
	})
	if err != nil {
		return nil, err
	}
	return &category, nil
}

// RenameCategory renames a user category. System categories are immutable.
func (e *Engine) RenameCategory(ctx context.Context, owner finance.OwnerID, id finance.CategoryID, name string) (*finance.Category, error) {
	if name == "" {
		return nil, finance.ErrInvalidInput
	}

	var renamed finance.Category

	err := e.Store.WithTx(ctx, func(s finance.Store) error {
		category, err := s.GetCategory(ctx, owner, id)
		if err != nil {
			return err
		}
		if category == nil {
			return &finance.NotFoundError{Entity: "category", ID: string(id), Owner: owner}
		}
		if category.IsSystem() {
			return finance.ErrImmutableCategory
		}
		if category.OwnerID != owner {
			return &finance.NotFoundError{Entity: "category", ID: string(id), Owner: owner}
		}

		category.Name = name
		renamed = *category
		return s.SaveCategory(ctx, *category)
	})
	if err != nil {
		return nil, err
	}
	return &renamed, nil
}
