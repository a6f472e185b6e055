/*
Package sqlite provides the SQLite-backed implementation of finance.Store.

PURPOSE:
  Implements every persistence interface the engine depends on. In
  production the same patterns apply to PostgreSQL - only minor SQL
  dialect differences.

KEY TABLES:
  accounts:          Money containers with a derived cached_balance
  categories:        System + user categories (flow-directed labels)
  transactions:      The ledger; soft-deleted, never erased
  recurring_rules:   Materialization templates
  budgets:           Spending ceilings with a derived cached_consumption
  budget_categories: Budget-to-category junction (carries owner id)

SOFT-DELETE:
  Every read and aggregate filters deleted_at IS NULL. Deletions set the
  marker; only categories are hard-deleted (no audit requirement).

ATOMIC UNITS:
  WithTx wraps a function in one database transaction. The engine runs
  every multi-row operation through it, so ledger writes and their cache
  updates always commit together.

INDEXES:
  - idx_transactions_account: Balance recompute (hot path)
  - idx_transactions_category_date: Budget consumption recompute
  - idx_rules_due: Due-rule selection for materialization
  - idx_budget_categories_category: Budget lookup by touched category

WAL MODE:
  SQLite is opened with WAL for better concurrency: readers don't block,
  single writer at a time, better crash recovery.

USAGE:
  store, err := sqlite.New("./data/finance.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New(), and the system categories (general,
  transfer, initial_balance, balance_update - one per flow direction)
  are seeded idempotently. For production, use a proper migration tool
  (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - finance/store.go: Interface definitions
  - engine: Services composed on top of this store
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/moneta/finance-engine/finance"
)

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// queries implements every entity store over a dbtx. Store and txStore
// embed it so the same method set works inside and outside a transaction.
type queries struct {
	q dbtx
}

// Store implements finance.Store using SQLite.
type Store struct {
	queries
	db *sql.DB
	mu sync.Mutex
}

var (
	_ finance.Store = (*Store)(nil)
	_ finance.Store = (*txStore)(nil)
)

// New opens (or creates) a SQLite store at the given path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{queries: queries{q: db}, db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	if err := s.seedSystemCategories(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to seed system categories: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS accounts (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		name TEXT NOT NULL,
		account_type TEXT NOT NULL,
		currency TEXT NOT NULL DEFAULT 'USD',
		cached_balance TEXT NOT NULL DEFAULT '0',
		is_favorite INTEGER NOT NULL DEFAULT 0,
		deleted_at TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_accounts_owner
		ON accounts(owner_id) WHERE deleted_at IS NULL;

	CREATE TABLE IF NOT EXISTS categories (
		id TEXT PRIMARY KEY,
		owner_id TEXT,
		name TEXT NOT NULL,
		flow_type TEXT NOT NULL,
		parent_id TEXT,
		system_key TEXT,
		created_at TEXT NOT NULL
	);

	-- One system category per (key, flow direction)
	CREATE UNIQUE INDEX IF NOT EXISTS idx_categories_system
		ON categories(system_key, flow_type) WHERE system_key IS NOT NULL;
	CREATE INDEX IF NOT EXISTS idx_categories_owner
		ON categories(owner_id) WHERE owner_id IS NOT NULL;

	CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		account_id TEXT NOT NULL,
		category_id TEXT NOT NULL,
		flow_type TEXT NOT NULL,
		amount TEXT NOT NULL,
		tx_date TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		paired_transaction_id TEXT,
		recurring_rule_id TEXT,
		system_generated_key TEXT,
		deleted_at TEXT,
		created_at TEXT NOT NULL
	);

	-- Balance recompute (hot path)
	CREATE INDEX IF NOT EXISTS idx_transactions_account
		ON transactions(account_id) WHERE deleted_at IS NULL;
	-- Budget consumption recompute
	CREATE INDEX IF NOT EXISTS idx_transactions_category_date
		ON transactions(category_id, tx_date) WHERE deleted_at IS NULL;
	CREATE INDEX IF NOT EXISTS idx_transactions_owner
		ON transactions(owner_id);
	CREATE INDEX IF NOT EXISTS idx_transactions_paired
		ON transactions(paired_transaction_id) WHERE paired_transaction_id IS NOT NULL;

	CREATE TABLE IF NOT EXISTS recurring_rules (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		account_id TEXT NOT NULL,
		category_id TEXT NOT NULL,
		flow_type TEXT NOT NULL,
		amount TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		frequency TEXT NOT NULL,
		interval_count INTEGER NOT NULL DEFAULT 1,
		by_weekday TEXT,
		by_monthday TEXT,
		start_date TEXT NOT NULL,
		next_run_date TEXT NOT NULL,
		end_date TEXT,
		is_active INTEGER NOT NULL DEFAULT 1,
		paired_rule_id TEXT,
		deleted_at TEXT,
		created_at TEXT NOT NULL
	);

	-- Due-rule selection for materialization
	CREATE INDEX IF NOT EXISTS idx_rules_due
		ON recurring_rules(owner_id, next_run_date)
		WHERE deleted_at IS NULL AND is_active = 1;
	CREATE INDEX IF NOT EXISTS idx_rules_account
		ON recurring_rules(account_id) WHERE deleted_at IS NULL;

	CREATE TABLE IF NOT EXISTS budgets (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		name TEXT NOT NULL,
		limit_amount TEXT NOT NULL,
		frequency TEXT NOT NULL,
		interval_count INTEGER NOT NULL DEFAULT 1,
		start_date TEXT NOT NULL,
		end_date TEXT,
		cached_consumption TEXT NOT NULL DEFAULT '0',
		is_active INTEGER NOT NULL DEFAULT 1,
		deleted_at TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_budgets_owner
		ON budgets(owner_id) WHERE deleted_at IS NULL;

	CREATE TABLE IF NOT EXISTS budget_categories (
		budget_id TEXT NOT NULL,
		category_id TEXT NOT NULL,
		owner_id TEXT NOT NULL,
		PRIMARY KEY (budget_id, category_id)
	);

	CREATE INDEX IF NOT EXISTS idx_budget_categories_category
		ON budget_categories(category_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// seedSystemCategories inserts the immutable system categories, one per
// (key, flow direction), with stable ids. Idempotent via INSERT OR IGNORE.
func (s *Store) seedSystemCategories() error {
	keys := []string{
		finance.SystemCategoryGeneral,
		finance.SystemCategoryTransfer,
		finance.SystemCategoryInitialBalance,
		finance.SystemCategoryBalanceUpdate,
	}
	flows := []finance.FlowType{finance.FlowIncome, finance.FlowOutcome}

	for _, key := range keys {
		for _, flow := range flows {
			id := fmt.Sprintf("cat-sys-%s-%s", key, flow)
			name := strings.ReplaceAll(key, "_", " ")
			_, err := s.db.Exec(`
				INSERT OR IGNORE INTO categories (id, owner_id, name, flow_type, system_key, created_at)
				VALUES (?, NULL, ?, ?, ?, ?)`,
				id, name, string(flow), key, nowStamp(),
			)
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// =============================================================================
// ATOMIC UNITS (finance.Store WithTx)
// =============================================================================

// WithTx executes fn within one database transaction. Any error rolls the
// whole unit back. The mutex serializes writers; SQLite allows only one
// write transaction at a time anyway.
func (s *Store) WithTx(ctx context.Context, fn func(finance.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{queries{q: sqlTx}}); err != nil {
		return err
	}
	return sqlTx.Commit()
}

// txStore is a Store bound to an open transaction.
type txStore struct {
	queries
}

// WithTx on an already-transactional store joins the open transaction.
func (ts *txStore) WithTx(_ context.Context, fn func(finance.Store) error) error {
	return fn(ts)
}

// =============================================================================
// SCAN/FORMAT HELPERS
// =============================================================================

func nowStamp() string {
	return finance.Today().String()
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullDate(d *finance.Date) sql.NullString {
	if d == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}

func parseDate(s string) finance.Date {
	d, _ := finance.ParseDate(s)
	return d
}

func parseNullDate(ns sql.NullString) *finance.Date {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	d := parseDate(ns.String)
	return &d
}

// intsToCSV/csvToInts encode the declared by_weekday/by_monthday lists.
func intsToCSV(vals []int) sql.NullString {
	if len(vals) == 0 {
		return sql.NullString{}
	}
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = fmt.Sprintf("%d", v)
	}
	return sql.NullString{String: strings.Join(parts, ","), Valid: true}
}

func csvToInts(ns sql.NullString) []int {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	var vals []int
	for _, p := range strings.Split(ns.String, ",") {
		var v int
		if _, err := fmt.Sscanf(p, "%d", &v); err == nil {
			vals = append(vals, v)
		}
	}
	return vals
}

func rowsAffected(res sql.Result) int {
	n, _ := res.RowsAffected()
	return int(n)
}
