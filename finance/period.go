package finance

// =============================================================================
// PERIOD - Inclusive date window for budget consumption
// =============================================================================

// Period is an inclusive [Start, End] date window. Budget consumption is
// always computed for a period, never "since forever" (except one-time
// budgets, whose period spans start date to end date or open-ended).
type Period struct {
	Start Date
	End   Date
}

// Contains returns true if d falls within [Start, End].
func (p Period) Contains(d Date) bool {
	return d.AfterOrEqual(p.Start) && d.BeforeOrEqual(p.End)
}

func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}

// =============================================================================
// BUDGET PERIOD CALCULATOR
// =============================================================================

// CurrentPeriod returns the consumption window for the budget as of the
// given day, anchored to the budget's start date:
//
//   once:    start date through end date (or open-ended)
//   daily:   the single day `today`
//   weekly/monthly/yearly: the interval-stepped period containing `today`
//
// Stepping is calendar-native (months and years step by calendar units,
// not day-count approximations); periods remain aligned to the start
// date. The end is clamped to the budget's end date when set.
func (b Budget) CurrentPeriod(today Date) Period {
	var p Period

	switch b.Schedule.Frequency {
	case FreqOnce:
		p = Period{Start: b.StartDate, End: MaxDate()}

	case FreqDaily:
		p = Period{Start: today, End: today}

	default:
		start := b.StartDate
		// Walk whole periods forward until the one containing today.
		// A date before the anchor falls in the first period.
		for {
			next := b.Schedule.Advance(start)
			if next.After(today) || !next.After(start) {
				break
			}
			start = next
		}
		p = Period{Start: start, End: b.Schedule.Advance(start).AddDays(-1)}
	}

	if b.EndDate != nil && b.EndDate.Before(p.End) {
		p.End = *b.EndDate
	}
	return p
}
