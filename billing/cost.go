// Package billing turns elapsed table time into billed minutes and cost.
//
// Everything here is pure: no clock reads, no storage. Callers pass the
// instants they want to bill between.
package billing

import (
	"time"

	"github.com/shopspring/decimal"
)

var minutesPerHour = decimal.NewFromInt(60)

// Compute returns the whole minutes between start and now and their cost at
// hourlyRate, rounded to two decimal places. A now before start bills zero.
func Compute(start, now time.Time, hourlyRate decimal.Decimal) (int, decimal.Decimal) {
	minutes := ElapsedMinutes(start, now)
	if minutes == 0 || !hourlyRate.IsPositive() {
		return minutes, decimal.Zero
	}
	cost := decimal.NewFromInt(int64(minutes)).
		Mul(hourlyRate).
		Div(minutesPerHour).
		Round(2)
	return minutes, cost
}

// ElapsedMinutes truncates now-start to whole minutes, clamped at zero.
func ElapsedMinutes(start, now time.Time) int {
	d := now.Sub(start)
	if d <= 0 {
		return 0
	}
	return int(d / time.Minute)
}

// Window maps a session's stored timestamps onto the (start, now) pair that
// Compute should bill. Closed pauses push the start forward by pausedFor and
// an open pause stops the clock at pausedAt, so paused time never accrues.
func Window(start time.Time, pausedFor time.Duration, pausedAt *time.Time, now time.Time) (time.Time, time.Time) {
	if pausedFor < 0 {
		pausedFor = 0
	}
	end := now
	if pausedAt != nil && pausedAt.Before(end) {
		end = *pausedAt
	}
	return start.Add(pausedFor), end
}
