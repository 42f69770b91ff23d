// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package node

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_ClaimLowestFreeID(t *testing.T) {
	m := New(3)

	id1, ok := m.Claim()
	require.True(t, ok)
	assert.Equal(t, 1, id1)

	id2, ok := m.Claim()
	require.True(t, ok)
	assert.Equal(t, 2, id2)

	m.Release(id1)

	id3, ok := m.Claim()
	require.True(t, ok)
	assert.Equal(t, 1, id3, "released slot 1 should be reused before claiming a new one")
}

func TestManager_ClaimFullReturnsFalse(t *testing.T) {
	m := New(2)
	_, ok := m.Claim()
	require.True(t, ok)
	_, ok = m.Claim()
	require.True(t, ok)

	_, ok = m.Claim()
	assert.False(t, ok, "all lines busy")
}

func TestManager_BindAndSnapshot(t *testing.T) {
	m := New(1)
	id, _ := m.Claim()
	m.Bind(id, 42, "Wintermute")

	views := m.Snapshot()
	require.Len(t, views, 1)
	assert.Equal(t, "Wintermute", views[0].Handle)
	assert.Equal(t, id, views[0].ID)
}

func TestManager_ReleaseIsIdempotent(t *testing.T) {
	m := New(1)
	id, _ := m.Claim()
	m.Release(id)
	m.Release(id) // must not panic or corrupt state

	total, occupied := m.Count()
	assert.Equal(t, 1, total)
	assert.Equal(t, 0, occupied)

	// slot is free again
	newID, ok := m.Claim()
	require.True(t, ok)
	assert.Equal(t, id, newID)
}

func TestManager_SnapshotOnlyIncludesOccupiedSlots(t *testing.T) {
	m := New(5)
	m.Claim()
	m.Claim()

	views := m.Snapshot()
	assert.Len(t, views, 2)

	total, occupied := m.Count()
	assert.Equal(t, 5, total)
	assert.Equal(t, 2, occupied)
}

func TestManager_SetActivityAndTouch(t *testing.T) {
	m := New(1)
	id, _ := m.Claim()
	m.SetActivity(id, "reading mail")
	m.Touch(id)

	views := m.Snapshot()
	require.Len(t, views, 1)
	assert.Equal(t, "reading mail", views[0].Activity)
	assert.GreaterOrEqual(t, views[0].IdleSecs, 0)
}
