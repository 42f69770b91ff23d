// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package timeaccount

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ocgully/construct/internal/store"
)

func TestRolloverIfNeeded_BanksUnusedBudget(t *testing.T) {
	yesterday := time.Date(2026, 7, 29, 10, 0, 0, 0, time.UTC)
	today := time.Date(2026, 7, 30, 9, 0, 0, 0, time.UTC)

	u := &store.User{DailyMinutesUsed: 20, BankedMinutes: 100, LastDailyReset: yesterday}
	pol := Policy{DailyMinutesMax: 60, BankCap: 150}

	rolled := RolloverIfNeeded(u, pol, today)

	assert.True(t, rolled)
	assert.Equal(t, 0, u.DailyMinutesUsed)
	assert.Equal(t, 140, u.BankedMinutes) // 100 + (60-20) unused
}

func TestRolloverIfNeeded_CapsAtBankCap(t *testing.T) {
	yesterday := time.Date(2026, 7, 29, 10, 0, 0, 0, time.UTC)
	today := time.Date(2026, 7, 30, 9, 0, 0, 0, time.UTC)

	u := &store.User{DailyMinutesUsed: 0, BankedMinutes: 140, LastDailyReset: yesterday}
	pol := Policy{DailyMinutesMax: 60, BankCap: 150}

	RolloverIfNeeded(u, pol, today)
	assert.Equal(t, 150, u.BankedMinutes)
}

func TestRolloverIfNeeded_SameDayIsNoOp(t *testing.T) {
	now := time.Date(2026, 7, 30, 9, 0, 0, 0, time.UTC)
	u := &store.User{DailyMinutesUsed: 10, BankedMinutes: 5, LastDailyReset: now}
	pol := Policy{DailyMinutesMax: 60, BankCap: 150}

	rolled := RolloverIfNeeded(u, pol, now.Add(time.Hour))
	assert.False(t, rolled)
	assert.Equal(t, 10, u.DailyMinutesUsed)
}

func TestAvailable(t *testing.T) {
	u := &store.User{DailyMinutesUsed: 55, BankedMinutes: 120}
	pol := Policy{DailyMinutesMax: 60, BankCap: 150}
	assert.Equal(t, 125, Available(u, pol)) // (60-55) + 120
}

func TestSettle_ChargesDailyThenBank(t *testing.T) {
	u := &store.User{DailyMinutesUsed: 55, BankedMinutes: 120}
	pol := Policy{DailyMinutesMax: 60, BankCap: 150}

	Settle(u, pol, 10) // 5 minutes left in daily budget, 5 overflow to bank

	assert.Equal(t, 60, u.DailyMinutesUsed)
	assert.Equal(t, 115, u.BankedMinutes)
}

func TestSettle_NeverGoesNegative(t *testing.T) {
	u := &store.User{DailyMinutesUsed: 60, BankedMinutes: 2}
	pol := Policy{DailyMinutesMax: 60, BankCap: 150}

	Settle(u, pol, 10) // all 10 minutes overflow, but only 2 banked

	assert.Equal(t, 60, u.DailyMinutesUsed)
	assert.Equal(t, 0, u.BankedMinutes)
}

func TestWithdraw_MovesQuantumFromBankToAvailable(t *testing.T) {
	u := &store.User{DailyMinutesUsed: 55, BankedMinutes: 120}
	pol := Policy{DailyMinutesMax: 60, BankCap: 150}

	before := Available(u, pol)
	amount := Withdraw(u)

	assert.Equal(t, 30, amount)
	assert.Equal(t, 90, u.BankedMinutes)
	assert.Equal(t, before+30, Available(u, pol))
}

func TestWithdraw_CappedByBankedMinutes(t *testing.T) {
	u := &store.User{DailyMinutesUsed: 0, BankedMinutes: 10}
	amount := Withdraw(u)
	assert.Equal(t, 10, amount)
	assert.Equal(t, 0, u.BankedMinutes)
}
