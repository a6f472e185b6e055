package engine_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moneta/finance-engine/engine"
	"github.com/moneta/finance-engine/finance"
)

// =============================================================================
// SCHEDULE CONSTRAINT PERSISTENCE
// =============================================================================
// ByWeekday/ByMonthday do not participate in advancement, but they are
// part of the rule and must survive the create-and-reread round trip.

func TestCreateRecurringRule_KeepsScheduleConstraints(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	account := newAccount(t, eng, "Checking")
	rent := newOutcomeCategory(t, eng, "Rent")

	schedule := finance.NewSchedule(finance.FreqWeekly, 1)
	schedule.ByWeekday = []int{1, 3}
	schedule.ByMonthday = []int{15}

	rule, err := eng.CreateRecurringRule(ctx, testOwner, engine.CreateRuleParams{
		AccountID:  account.ID,
		CategoryID: rent.ID,
		Flow:       finance.FlowOutcome,
		Amount:     amt("50"),
		Schedule:   schedule,
		StartDate:  finance.NewDate(2026, time.January, 1),
	})
	require.NoError(t, err)

	stored, err := eng.Store.GetRule(ctx, testOwner, rule.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, []int{1, 3}, stored.Schedule.ByWeekday)
	assert.Equal(t, []int{15}, stored.Schedule.ByMonthday)
}

func TestCreateRecurringTransfer_KeepsScheduleConstraints(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	checking := newAccount(t, eng, "Checking")
	savings := newAccount(t, eng, "Savings")

	schedule := finance.NewSchedule(finance.FreqWeekly, 2)
	schedule.ByWeekday = []int{5}

	outRule, inRule, err := eng.CreateRecurringTransfer(ctx, testOwner, engine.RecurringTransferParams{
		FromAccount: checking.ID,
		ToAccount:   savings.ID,
		Amount:      amt("500"),
		Schedule:    schedule,
		StartDate:   finance.NewDate(2026, time.January, 1),
	})
	require.NoError(t, err)

	for _, id := range []finance.RuleID{outRule, inRule} {
		stored, err := eng.Store.GetRule(ctx, testOwner, id)
		require.NoError(t, err)
		require.NotNil(t, stored)
		assert.Equal(t, []int{5}, stored.Schedule.ByWeekday)
	}
}
