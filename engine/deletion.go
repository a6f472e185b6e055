/*
deletion.go - Account deletion strategies and category reassignment

PURPOSE:
  Implements the two account-deletion strategies (reassign everything to
  a target account vs. cascade soft-delete) and category deletion with
  mandatory reassignment to the flow-matched system "general" category
  (or cascade). Cache recomputation runs inside the same atomic unit.

ORDERING:
  Reassignment moves rules before transactions. Cascades clear incoming
  pair references before soft-deleting, so no surviving row ever points
  at a deleted one.

HARD VS SOFT:
  Accounts, transactions, rules, and budgets are soft-deleted for audit;
  categories carry no audit requirement and are hard-deleted after their
  references are reassigned or cascaded.
*/
package engine

import (
	"context"

	"github.com/moneta/finance-engine/finance"
)

// ReassignCounts reports what DeleteAccountReassign moved.
type ReassignCounts struct {
	RulesReassigned        int
	TransactionsReassigned int
}

// CascadeCounts reports what DeleteAccountCascade soft-deleted.
type CascadeCounts struct {
	RulesDeleted        int
	TransactionsDeleted int
	PairRefsCleared     int
}

// CategoryDeletionCounts reports what DeleteCategoryReassign touched.
type CategoryDeletionCounts struct {
	TransactionsReassigned int
	TransactionsDeleted    int
	PairRefsCleared        int
	BudgetLinksRemoved     int
	SubcategoriesDetached  int
}

// DeleteAccountReassign moves every non-deleted rule and transaction from
// the account to target, soft-deletes the account, and recomputes the
// target's balance.
func (e *Engine) DeleteAccountReassign(ctx context.Context, owner finance.OwnerID, accountID, targetID finance.AccountID) (ReassignCounts, error) {
	if accountID == targetID {
		return ReassignCounts{}, finance.ErrSelfReference
	}

	var counts ReassignCounts
	when := e.Now()

	err := e.Store.WithTx(ctx, func(s finance.Store) error {
		if err := requireAccount(ctx, s, owner, accountID); err != nil {
			return err
		}
		if err := requireAccount(ctx, s, owner, targetID); err != nil {
			return err
		}

		// Rules move before transactions to respect referential ordering.
		rules, err := s.ReassignRulesByAccount(ctx, owner, accountID, targetID)
		if err != nil {
			return err
		}
		txs, err := s.ReassignTransactionsByAccount(ctx, owner, accountID, targetID)
		if err != nil {
			return err
		}
		counts = ReassignCounts{RulesReassigned: rules, TransactionsReassigned: txs}

		if err := s.SoftDeleteAccount(ctx, accountID, when); err != nil {
			return err
		}

		_, err = recomputeAccountBalance(ctx, s, targetID)
		return err
	})
	if err != nil {
		return ReassignCounts{}, err
	}
	return counts, nil
}

// DeleteAccountCascade soft-deletes the account with everything in it.
// Pair references pointing into the account are cleared first, on both
// rules and transactions, so no dangling pairs survive.
func (e *Engine) DeleteAccountCascade(ctx context.Context, owner finance.OwnerID, accountID finance.AccountID) (CascadeCounts, error) {
	var counts CascadeCounts
	when := e.Now()

	err := e.Store.WithTx(ctx, func(s finance.Store) error {
		if err := requireAccount(ctx, s, owner, accountID); err != nil {
			return err
		}

		// Captured before the soft-deletes below empty the working set:
		// budgets linked to these categories lose consumption and must
		// be recomputed within the same atomic unit.
		categories, err := s.OutcomeCategoryIDsByAccount(ctx, owner, accountID)
		if err != nil {
			return err
		}

		rulePairs, err := s.ClearRulePairRefsByAccount(ctx, owner, accountID)
		if err != nil {
			return err
		}
		rules, err := s.SoftDeleteRulesByAccount(ctx, owner, accountID, when)
		if err != nil {
			return err
		}

		txPairs, err := s.ClearPairRefsByAccount(ctx, owner, accountID)
		if err != nil {
			return err
		}
		txs, err := s.SoftDeleteTransactionsByAccount(ctx, owner, accountID, when)
		if err != nil {
			return err
		}

		counts = CascadeCounts{
			RulesDeleted:        rules,
			TransactionsDeleted: txs,
			PairRefsCleared:     rulePairs + txPairs,
		}

		if err := s.SoftDeleteAccount(ctx, accountID, when); err != nil {
			return err
		}

		for _, categoryID := range categories {
			if _, err := recomputeBudgetsForCategory(ctx, s, owner, categoryID, when); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return CascadeCounts{}, err
	}
	return counts, nil
}

// DeleteCategoryReassign removes a user category. Default mode reassigns
// its transactions to the flow-matched system "general" category; cascade
// mode soft-deletes them instead. Budget links are removed, sub-categories
// orphaned, and the category row hard-deleted, all in one atomic unit.
func (e *Engine) DeleteCategoryReassign(ctx context.Context, owner finance.OwnerID, categoryID finance.CategoryID, cascade bool) (CategoryDeletionCounts, error) {
	var counts CategoryDeletionCounts
	today := e.Now()

	err := e.Store.WithTx(ctx, func(s finance.Store) error {
		category, err := s.GetCategory(ctx, owner, categoryID)
		if err != nil {
			return err
		}
		if category == nil {
			return &finance.NotFoundError{Entity: "category", ID: string(categoryID), Owner: owner}
		}
		if category.IsSystem() {
			return finance.ErrImmutableCategory
		}

		// Capture the working sets that disappear below: budgets whose
		// consumption must be refreshed and accounts whose balances a
		// cascade will change.
		budgets, err := s.ListBudgetsByCategory(ctx, owner, categoryID)
		if err != nil {
			return err
		}
		var accounts []finance.AccountID
		if cascade {
			accounts, err = s.AccountIDsByCategory(ctx, owner, categoryID)
			if err != nil {
				return err
			}
		}

		var generalID finance.CategoryID
		if cascade {
			pairs, err := s.ClearPairRefsByCategory(ctx, owner, categoryID)
			if err != nil {
				return err
			}
			counts.PairRefsCleared = pairs
			deleted, err := s.SoftDeleteTransactionsByCategory(ctx, owner, categoryID, today)
			if err != nil {
				return err
			}
			counts.TransactionsDeleted = deleted
		} else {
			general, err := s.GetSystemCategory(ctx, finance.SystemCategoryGeneral, category.Flow)
			if err != nil {
				return err
			}
			if general == nil {
				return &finance.NotFoundError{Entity: "category", ID: finance.SystemCategoryGeneral}
			}
			generalID = general.ID

			moved, err := s.ReassignTransactionsByCategory(ctx, owner, categoryID, general.ID)
			if err != nil {
				return err
			}
			counts.TransactionsReassigned = moved
		}

		links, err := s.RemoveBudgetLinksByCategory(ctx, categoryID)
		if err != nil {
			return err
		}
		counts.BudgetLinksRemoved = links

		detached, err := s.ClearCategoryParent(ctx, categoryID)
		if err != nil {
			return err
		}
		counts.SubcategoriesDetached = detached

		if err := s.DeleteCategory(ctx, categoryID); err != nil {
			return err
		}

		// Cache recomputation for everything the deletion moved.
		if err := recomputeBudgets(ctx, s, budgets, today); err != nil {
			return err
		}
		if generalID != "" {
			if _, err := recomputeBudgetsForCategory(ctx, s, owner, generalID, today); err != nil {
				return err
			}
		}
		for _, accountID := range accounts {
			if _, err := recomputeAccountBalance(ctx, s, accountID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return CategoryDeletionCounts{}, err
	}
	return counts, nil
}
