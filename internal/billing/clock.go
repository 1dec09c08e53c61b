// Package billing implements the plan entitlement engine: the plan record
// store, the monthly billing-period policy, the two-phase consumption gate,
// topup/upgrade mutations, the profile mirror projection and the
// reconciliation sweep.
package billing

import "time"

// Clock supplies the current instant. All billing-period math runs against
// it so tests can pin time.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock backed by time.Now in UTC.
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

// FixedClock is a Clock pinned to a single instant, for tests.
type FixedClock struct {
	Instant time.Time
}

func (c FixedClock) Now() time.Time {
	return c.Instant
}
