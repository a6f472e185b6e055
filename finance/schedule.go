/*
schedule.go - Frequency advancement for recurring rules and budgets

PURPOSE:
  A Schedule describes how a recurring rule or budget steps through time:
  a frequency (daily/weekly/monthly/yearly, plus one-time for budgets)
  multiplied by an interval. Advancement is plain calendar arithmetic.

KNOWN GAP:
  ByWeekday/ByMonthday constraint lists are stored and surfaced but do NOT
  participate in advancement; occurrence expansion stays simple interval
  stepping. Honoring the constraint arrays would change already-observed
  materialization output, so the behavior is kept as-is.

SEE ALSO:
  - period.go: Uses Schedule to compute budget period windows
  - engine/materialize.go: Walks NextRunDate forward with Advance
*/
package finance

// =============================================================================
// FREQUENCY
// =============================================================================

type Frequency string

const (
	FreqDaily   Frequency = "daily"
	FreqWeekly  Frequency = "weekly"
	FreqMonthly Frequency = "monthly"
	FreqYearly  Frequency = "yearly"
	FreqOnce    Frequency = "once" // budgets only
)

// Valid reports whether f is a known frequency. allowOnce admits the
// budget-only one-time frequency.
func (f Frequency) Valid(allowOnce bool) bool {
	switch f {
	case FreqDaily, FreqWeekly, FreqMonthly, FreqYearly:
		return true
	case FreqOnce:
		return allowOnce
	}
	return false
}

// =============================================================================
// SCHEDULE - Frequency with interval multiplier and declared constraints
// =============================================================================

type Schedule struct {
	Frequency Frequency
	Interval  int

	// Declared but not expanded during advancement. See file header.
	ByWeekday  []int
	ByMonthday []int
}

// NewSchedule normalizes a schedule; a non-positive interval becomes 1.
func NewSchedule(freq Frequency, interval int) Schedule {
	if interval < 1 {
		interval = 1
	}
	return Schedule{Frequency: freq, Interval: interval}
}

// Advance returns the next occurrence after d: daily adds N days, weekly
// adds 7N days, monthly adds N calendar months, yearly adds N years.
// A one-time schedule never advances.
func (s Schedule) Advance(d Date) Date {
	n := s.Interval
	if n < 1 {
		n = 1
	}
	switch s.Frequency {
	case FreqDaily:
		return d.AddDays(n)
	case FreqWeekly:
		return d.AddDays(7 * n)
	case FreqMonthly:
		return d.AddMonths(n)
	case FreqYearly:
		return d.AddYears(n)
	default:
		return d
	}
}
