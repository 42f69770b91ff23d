// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package timeaccount implements the per-user daily time budget
// arithmetic described in spec §4.6: daily reset, bank top-up,
// available-minutes computation, and end-of-session settlement.
package timeaccount

import (
	"time"

	"github.com/ocgully/construct/internal/store"
)

// Policy carries the per-level daily budget and bank cap, resolved
// from configuration.
type Policy struct {
	DailyMinutesMax int
	BankCap         int
}

// Location is the single reference timezone all datetime fields are
// anchored to, so that daily-reset comparisons are simple string/date
// comparisons (spec §6).
var Location = time.UTC

// today returns the reference-timezone calendar date for t, formatted
// as YYYY-MM-DD.
func today(t time.Time) string {
	return t.In(Location).Format("2006-01-02")
}

// RolloverIfNeeded applies the daily-reset rule in place on u, given
// the current time. If the user's last reset date is before today, it
// zeroes daily_minutes_used, banks whatever of yesterday's budget went
// unused (capped at BankCap), and advances last_daily_reset to today.
// Returns true if a rollover was applied.
func RolloverIfNeeded(u *store.User, pol Policy, now time.Time) bool {
	if today(u.LastDailyReset) >= today(now) {
		return false
	}

	unused := pol.DailyMinutesMax - u.DailyMinutesUsed
	if unused > 0 {
		u.BankedMinutes += unused
		if u.BankedMinutes > pol.BankCap {
			u.BankedMinutes = pol.BankCap
		}
	}
	u.DailyMinutesUsed = 0
	u.LastDailyReset = now
	return true
}

// Available computes the minutes available to spend this session:
// remaining daily budget plus whatever is banked.
func Available(u *store.User, pol Policy) int {
	remaining := pol.DailyMinutesMax - u.DailyMinutesUsed
	if remaining < 0 {
		remaining = 0
	}
	return remaining + u.BankedMinutes
}

// Settle charges elapsed minutes against the user's ledger at session
// end: first against the remaining daily budget, overflow against the
// bank, which never goes negative. Runs on every termination path
// (clean quit, forced timeout, dirty disconnect) per spec §4.6.
func Settle(u *store.User, pol Policy, elapsedMinutes int) {
	if elapsedMinutes <= 0 {
		return
	}

	dailyRemaining := pol.DailyMinutesMax - u.DailyMinutesUsed
	if dailyRemaining < 0 {
		dailyRemaining = 0
	}

	chargedToDaily := elapsedMinutes
	if chargedToDaily > dailyRemaining {
		chargedToDaily = dailyRemaining
	}
	u.DailyMinutesUsed += chargedToDaily

	overflow := elapsedMinutes - chargedToDaily
	if overflow > 0 {
		u.BankedMinutes -= overflow
		if u.BankedMinutes < 0 {
			u.BankedMinutes = 0
		}
	}
}

// WithdrawQuantum is the fixed amount moved from bank to available
// budget when a user accepts the low-time withdrawal prompt.
const WithdrawQuantum = 30

// Withdraw moves WithdrawQuantum minutes from the bank into the daily
// budget (by reducing daily_minutes_used), capped at what is actually
// banked. Returns the amount actually withdrawn.
func Withdraw(u *store.User) int {
	amount := WithdrawQuantum
	if amount > u.BankedMinutes {
		amount = u.BankedMinutes
	}
	if amount <= 0 {
		return 0
	}
	u.BankedMinutes -= amount
	u.DailyMinutesUsed -= amount
	if u.DailyMinutesUsed < 0 {
		u.DailyMinutesUsed = 0
	}
	return amount
}

// LowTimeThreshold is the remaining-minutes mark at which the Session
// offers a bank withdrawal, once per crossing.
const LowTimeThreshold = 5
