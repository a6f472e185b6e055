/*
Package engine implements the finance services over finance.Store.

PURPOSE:
  Four coordinated services drive the system:

    Materializer        - walks due recurring rules forward and emits
                          concrete ledger transactions (materialize.go)
    Cache recomputation - keeps cached_balance and cached_consumption
                          equal to what the ledger says (recompute.go)
    Transfer coordinator- creates/updates/deletes paired rows as one
                          atomic unit (transfer.go)
    Deletion coordinator- account deletion strategies and category
                          reassignment (deletion.go)

  Plus the account/category/transaction/budget/rule operations needed to
  feed them (accounts.go, categories.go, transactions.go, budgets.go,
  rules.go).

CONCURRENCY MODEL:
  The engine is stateless between calls; all state lives in the store.
  Every operation runs as one atomic unit via Store.WithTx. Materialize
  calls for the same owner are serialized through an owner-keyed lock so
  two concurrent calls can never both read a stale next_run_date and
  double-generate; different owners proceed in parallel.

CACHES:
  cached_balance and cached_consumption are only ever written by full
  recomputation from the ledger, inside the same transaction as the
  ledger writes that triggered them. No incremental arithmetic.

SEE ALSO:
  - finance: Domain types, schedule/period arithmetic, error taxonomy
  - store/sqlite: The persistence implementation
*/
package engine

import (
	"sync"

	"github.com/google/uuid"

	"github.com/moneta/finance-engine/finance"
)

// Engine exposes every operation the HTTP layer and scheduler call.
type Engine struct {
	Store finance.Store

	// Now supplies the engine's notion of "today" (budget periods,
	// soft-delete stamps). Overridable in tests.
	Now func() finance.Date

	mu         sync.Mutex
	ownerLocks map[finance.OwnerID]*sync.Mutex
}

// New creates an Engine over the given store.
func New(store finance.Store) *Engine {
	return &Engine{
		Store:      store,
		Now:        finance.Today,
		ownerLocks: make(map[finance.OwnerID]*sync.Mutex),
	}
}

// ownerLock returns the serialization lock for one owner, creating it on
// first use.
func (e *Engine) ownerLock(owner finance.OwnerID) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()

	lock, ok := e.ownerLocks[owner]
	if !ok {
		lock = &sync.Mutex{}
		e.ownerLocks[owner] = lock
	}
	return lock
}

// =============================================================================
// ID GENERATION
// =============================================================================

func newAccountID() finance.AccountID {
	return finance.AccountID("acc-" + uuid.NewString())
}

func newCategoryID() finance.CategoryID {
	return finance.CategoryID("cat-" + uuid.NewString())
}

func newTransactionID() finance.TransactionID {
	return finance.TransactionID("txn-" + uuid.NewString())
}

func newRuleID() finance.RuleID {
	return finance.RuleID("rule-" + uuid.NewString())
}

func newBudgetID() finance.BudgetID {
	return finance.BudgetID("bud-" + uuid.NewString())
}
