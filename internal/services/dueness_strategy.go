// Package services provides business logic and orchestration services.
//
// This file implements the dueness rule used to gate recurring obligations.
// A checker decides, for a month being processed and the current time,
// whether an obligation falling on a given day of the month is due.

package services

import (
	"time"

	"budget/internal/core"
)

// DuenessChecker is the strategy interface for deciding whether an obligation is due.
type DuenessChecker interface {
	// IsDue returns true if an obligation falling on dayOfMonth should be
	// materialized for month when observed at now.
	IsDue(month core.MonthKey, dayOfMonth int, now time.Time) bool
}

// MonthlyChecker implements DuenessChecker for monthly obligations.
//
// Months before now's month have fully elapsed, so everything in them is due.
// In the current month an obligation is due once the clamped due day has been
// reached. Months after now are never due.
type MonthlyChecker struct{}

func (MonthlyChecker) IsDue(month core.MonthKey, dayOfMonth int, now time.Time) bool {
	current := core.MonthKeyOf(now)
	switch {
	case month.Before(current):
		return true
	case month.After(current):
		return false
	}

	// Handle days that don't exist in this month (e.g., the 31st in February)
	targetDayThisMonth := dayOfMonth
	lastDayOfMonth := core.LastDayOfMonth(now.Year(), now.Month())
	if targetDayThisMonth > lastDayOfMonth {
		targetDayThisMonth = lastDayOfMonth
	}

	return now.Day() >= targetDayThisMonth
}
