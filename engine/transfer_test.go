package engine_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moneta/finance-engine/engine"
	"github.com/moneta/finance-engine/finance"
)

// =============================================================================
// TRANSFER CREATION
// =============================================================================

func TestCreateTransfer_PairedLegsAndBalances(t *testing.T) {
	// GIVEN: Two accounts
	// WHEN: Transferring $300 between them
	// THEN: Two mutually paired legs exist under the system transfer
	//       category and both balances reflect the move

	eng := newTestEngine(t)
	ctx := context.Background()

	checking := newAccount(t, eng, "Checking")
	savings := newAccount(t, eng, "Savings")

	date := finance.NewDate(2025, time.December, 1)
	outID, inID, err := eng.CreateTransfer(ctx, testOwner, checking.ID, savings.ID, amt("300"), date, "to savings")
	require.NoError(t, err)

	out, err := eng.Store.GetTransaction(ctx, testOwner, outID)
	require.NoError(t, err)
	require.NotNil(t, out)
	in, err := eng.Store.GetTransaction(ctx, testOwner, inID)
	require.NoError(t, err)
	require.NotNil(t, in)

	assert.Equal(t, finance.FlowOutcome, out.Flow)
	assert.Equal(t, finance.FlowIncome, in.Flow)
	assert.Equal(t, checking.ID, out.AccountID)
	assert.Equal(t, savings.ID, in.AccountID)

	require.NotNil(t, out.PairedTransactionID)
	require.NotNil(t, in.PairedTransactionID)
	assert.Equal(t, inID, *out.PairedTransactionID)
	assert.Equal(t, outID, *in.PairedTransactionID)

	// Both legs sit under the flow-matched system transfer category.
	outCat, err := eng.Store.GetCategory(ctx, testOwner, out.CategoryID)
	require.NoError(t, err)
	require.NotNil(t, outCat)
	assert.Equal(t, finance.SystemCategoryTransfer, outCat.SystemKey)
	assert.Equal(t, finance.FlowOutcome, outCat.Flow)

	assert.True(t, amt("-300").Equal(getAccount(t, eng, checking.ID).CachedBalance))
	assert.True(t, amt("300").Equal(getAccount(t, eng, savings.ID).CachedBalance))
}

func TestCreateTransfer_SameAccount_Rejected(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	checking := newAccount(t, eng, "Checking")

	_, _, err := eng.CreateTransfer(ctx, testOwner, checking.ID, checking.ID, amt("300"), testToday, "")
	assert.ErrorIs(t, err, finance.ErrSelfReference)
}

func TestCreateTransfer_NonPositiveAmount_Rejected(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	checking := newAccount(t, eng, "Checking")
	savings := newAccount(t, eng, "Savings")

	_, _, err := eng.CreateTransfer(ctx, testOwner, checking.ID, savings.ID, amt("0"), testToday, "")
	assert.ErrorIs(t, err, finance.ErrInvalidInput)

	_, _, err = eng.CreateTransfer(ctx, testOwner, checking.ID, savings.ID, amt("-5"), testToday, "")
	assert.ErrorIs(t, err, finance.ErrInvalidInput)
}

func TestCreateTransfer_MissingAccount_NotFound(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	checking := newAccount(t, eng, "Checking")

	_, _, err := eng.CreateTransfer(ctx, testOwner, checking.ID, "acc-nope", amt("10"), testToday, "")
	assert.True(t, finance.IsNotFound(err))
}

// insertFaultStore fails the nth insert, letting earlier ones through.
// WithTx re-wraps the transactional store so the fault fires inside the
// transaction, where a real write error would.
type insertFaultStore struct {
	finance.Store
	remaining *int
}

func (f *insertFaultStore) WithTx(ctx context.Context, fn func(finance.Store) error) error {
	return f.Store.WithTx(ctx, func(s finance.Store) error {
		return fn(&insertFaultStore{Store: s, remaining: f.remaining})
	})
}

func (f *insertFaultStore) InsertTransaction(ctx context.Context, tx finance.Transaction) error {
	if *f.remaining <= 0 {
		return errors.New("write failed")
	}
	*f.remaining--
	return f.Store.InsertTransaction(ctx, tx)
}

func TestCreateTransfer_SecondInsertFails_NoOrphanLeg(t *testing.T) {
	// GIVEN: A store that fails the second insert of the pair
	// WHEN: Creating a transfer
	// THEN: The transaction rolls back and neither leg exists afterward

	eng := newTestEngine(t)
	ctx := context.Background()

	checking := newAccount(t, eng, "Checking")
	savings := newAccount(t, eng, "Savings")

	remaining := 1
	eng.Store = &insertFaultStore{Store: eng.Store, remaining: &remaining}

	_, _, err := eng.CreateTransfer(ctx, testOwner, checking.ID, savings.ID, amt("300"), testToday, "to savings")
	require.Error(t, err)

	assert.Empty(t, accountTransactions(t, eng, checking.ID))
	assert.Empty(t, accountTransactions(t, eng, savings.ID))
	assert.True(t, getAccount(t, eng, checking.ID).CachedBalance.IsZero())
	assert.True(t, getAccount(t, eng, savings.ID).CachedBalance.IsZero())
}

// =============================================================================
// MIRRORED UPDATE
// =============================================================================

func TestUpdateTransfer_MirrorsBothLegs(t *testing.T) {
	// GIVEN: A $300 transfer
	// WHEN: Updating the amount through the incoming leg
	// THEN: Both legs carry the new amount and both balances move

	eng := newTestEngine(t)
	ctx := context.Background()

	checking := newAccount(t, eng, "Checking")
	savings := newAccount(t, eng, "Savings")

	outID, inID, err := eng.CreateTransfer(ctx, testOwner, checking.ID, savings.ID, amt("300"), testToday, "")
	require.NoError(t, err)

	newAmount := amt("450")
	newDate := finance.NewDate(2025, time.December, 2)
	_, _, err = eng.UpdateTransfer(ctx, testOwner, inID, engine.TransferPatch{
		Amount: &newAmount,
		Date:   &newDate,
	})
	require.NoError(t, err)

	for _, id := range []finance.TransactionID{outID, inID} {
		leg, err := eng.Store.GetTransaction(ctx, testOwner, id)
		require.NoError(t, err)
		require.NotNil(t, leg)
		assert.True(t, newAmount.Equal(leg.Amount))
		assert.Equal(t, newDate, leg.Date)
	}

	assert.True(t, amt("-450").Equal(getAccount(t, eng, checking.ID).CachedBalance))
	assert.True(t, amt("450").Equal(getAccount(t, eng, savings.ID).CachedBalance))
}

func TestUpdateTransfer_UnpairedTransaction_Rejected(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	account := newAccount(t, eng, "Checking")
	groceries := newOutcomeCategory(t, eng, "Groceries")

	tx, err := eng.CreateTransaction(ctx, testOwner, engine.CreateTransactionParams{
		AccountID:  account.ID,
		CategoryID: groceries.ID,
		Flow:       finance.FlowOutcome,
		Amount:     amt("45"),
		Date:       testToday,
	})
	require.NoError(t, err)

	newAmount := amt("60")
	_, _, err = eng.UpdateTransfer(ctx, testOwner, tx.ID, engine.TransferPatch{Amount: &newAmount})
	assert.ErrorIs(t, err, finance.ErrInvalidPairing)
}

func TestUpdateTransaction_PairedLeg_Rejected(t *testing.T) {
	// Single-row mutation of a transfer leg would break the symmetry
	// invariant; the single-transaction path refuses it.

	eng := newTestEngine(t)
	ctx := context.Background()

	checking := newAccount(t, eng, "Checking")
	savings := newAccount(t, eng, "Savings")

	outID, _, err := eng.CreateTransfer(ctx, testOwner, checking.ID, savings.ID, amt("300"), testToday, "")
	require.NoError(t, err)

	newAmount := amt("100")
	_, err = eng.UpdateTransaction(ctx, testOwner, outID, engine.TransactionPatch{Amount: &newAmount})
	assert.ErrorIs(t, err, finance.ErrInvalidPairing)

	err = eng.DeleteTransaction(ctx, testOwner, outID)
	assert.ErrorIs(t, err, finance.ErrInvalidPairing)
}

// =============================================================================
// PAIRED DELETE
// =============================================================================

func TestDeleteTransfer_RemovesBothLegs(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	checking := newAccount(t, eng, "Checking")
	savings := newAccount(t, eng, "Savings")

	outID, inID, err := eng.CreateTransfer(ctx, testOwner, checking.ID, savings.ID, amt("300"), testToday, "")
	require.NoError(t, err)

	gotOut, gotIn, err := eng.DeleteTransfer(ctx, testOwner, inID)
	require.NoError(t, err)
	assert.Equal(t, inID, gotOut)
	assert.Equal(t, outID, gotIn)

	for _, id := range []finance.TransactionID{outID, inID} {
		leg, err := eng.Store.GetTransaction(ctx, testOwner, id)
		require.NoError(t, err)
		assert.Nil(t, leg, "both legs must be soft-deleted")
	}

	assert.True(t, getAccount(t, eng, checking.ID).CachedBalance.IsZero())
	assert.True(t, getAccount(t, eng, savings.ID).CachedBalance.IsZero())
}

func TestDeleteTransfer_UnpairedTransaction_Rejected(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	account := newAccount(t, eng, "Checking")
	groceries := newOutcomeCategory(t, eng, "Groceries")

	tx, err := eng.CreateTransaction(ctx, testOwner, engine.CreateTransactionParams{
		AccountID:  account.ID,
		CategoryID: groceries.ID,
		Flow:       finance.FlowOutcome,
		Amount:     amt("45"),
		Date:       testToday,
	})
	require.NoError(t, err)

	_, _, err = eng.DeleteTransfer(ctx, testOwner, tx.ID)
	assert.ErrorIs(t, err, finance.ErrInvalidPairing)
}

// =============================================================================
// RECURRING TRANSFER PAIR DELETE
// =============================================================================

func TestDeleteRecurringAndPair_RemovesBothRules(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	checking := newAccount(t, eng, "Checking")
	savings := newAccount(t, eng, "Savings")

	outRule, inRule, err := eng.CreateRecurringTransfer(ctx, testOwner, engine.RecurringTransferParams{
		FromAccount: checking.ID,
		ToAccount:   savings.ID,
		Amount:      amt("500"),
		Schedule:    finance.NewSchedule(finance.FreqWeekly, 1),
		StartDate:   testToday,
	})
	require.NoError(t, err)

	_, _, err = eng.DeleteRecurringAndPair(ctx, testOwner, outRule)
	require.NoError(t, err)

	for _, id := range []finance.RuleID{outRule, inRule} {
		rule, err := eng.Store.GetRule(ctx, testOwner, id)
		require.NoError(t, err)
		assert.Nil(t, rule)
	}
}

func TestDeleteRecurringRule_PairedRule_Rejected(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	checking := newAccount(t, eng, "Checking")
	savings := newAccount(t, eng, "Savings")

	outRule, _, err := eng.CreateRecurringTransfer(ctx, testOwner, engine.RecurringTransferParams{
		FromAccount: checking.ID,
		ToAccount:   savings.ID,
		Amount:      amt("500"),
		Schedule:    finance.NewSchedule(finance.FreqWeekly, 1),
		StartDate:   testToday,
	})
	require.NoError(t, err)

	err = eng.DeleteRecurringRule(ctx, testOwner, outRule)
	assert.ErrorIs(t, err, finance.ErrInvalidPairing)
}
