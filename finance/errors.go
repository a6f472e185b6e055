/*
errors.go - Centralized error taxonomy for the engine

PURPOSE:
  All error types in one place. Services raise these before any mutation
  begins; every multi-row operation aborts whole on the first error, so a
  caller never observes partial work.

ERROR CATEGORIES:
  1. Not-found errors - Entity missing or owned by someone else
  2. Pairing errors - Transfer invariant violations
  3. Input errors - Self-reference, immutable system rows

USAGE:
  The HTTP layer translates these with errors.Is:

    if finance.IsNotFound(err) { ... 404 ... }
    if finance.IsClientError(err) { ... 4xx ... }

SEE ALSO:
  - engine: Raises these at operation boundaries
  - api/handlers.go: Translates them into status codes
*/
package finance

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNotFound is returned when a referenced entity does not exist, is
	// soft-deleted, or belongs to a different owner. Ownership mismatches
	// are deliberately indistinguishable from absence.
	ErrNotFound = errors.New("entity not found")

	// ErrInvalidPairing is returned when an operation requiring a paired
	// counterpart is invoked on an unpaired row, or when a pairing-only
	// mutation is attempted through a single-row path.
	ErrInvalidPairing = errors.New("transaction is not part of a transfer pair")

	// ErrSelfReference is returned when a reassignment target equals the
	// source being deleted or reassigned.
	ErrSelfReference = errors.New("target must differ from source")

	// ErrImmutableCategory is returned on any attempt to modify or delete
	// a system category.
	ErrImmutableCategory = errors.New("system categories are immutable")

	// ErrInvalidInput is returned for malformed operation parameters
	// (non-positive amounts, unknown frequencies, bad flow types).
	ErrInvalidInput = errors.New("invalid input")
)

// =============================================================================
// STRUCTURED ERRORS - Carry identifying context
// =============================================================================

// NotFoundError identifies which entity was missing or foreign.
type NotFoundError struct {
	Entity string // "account", "category", "transaction", "rule", "budget"
	ID     string
	Owner  OwnerID
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found for owner %s", e.Entity, e.ID, e.Owner)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// PairingError identifies the row that violated the transfer invariant.
type PairingError struct {
	Entity string // "transaction" or "rule"
	ID     string
}

func (e *PairingError) Error() string {
	return fmt.Sprintf("%s %s has no paired counterpart", e.Entity, e.ID)
}

func (e *PairingError) Unwrap() error { return ErrInvalidPairing }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound returns true if the error indicates a missing or foreign entity.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsClientError returns true if the error is due to invalid caller input
// rather than a storage failure.
func IsClientError(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrInvalidPairing) ||
		errors.Is(err, ErrSelfReference) ||
		errors.Is(err, ErrImmutableCategory) ||
		errors.Is(err, ErrInvalidInput)
}
