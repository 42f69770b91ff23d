// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package menu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ocgully/construct/internal/config"
)

var levelOf = map[string]int{"": 0, "Guest": 0, "User": 1, "Sysop": 2}

func lvl(name string) int { return levelOf[name] }

func testMenu() []config.MenuItemConfig {
	return []config.MenuItemConfig{
		{Type: "submenu", Hotkey: "G", Name: "Games", Items: []config.MenuItemConfig{
			{Type: "service", Hotkey: "1", Name: "First Game", ServiceID: "game1"},
			{Type: "service", Hotkey: "2", Name: "Sysop Game", ServiceID: "game2", MinLevel: "Sysop"},
		}},
		{Type: "command", Hotkey: "Q", Name: "Quit", CommandID: "quit"},
	}
}

func TestMenu_TypeAheadSequenceLaunchesNestedService(t *testing.T) {
	s := Build(testMenu(), lvl)

	a1 := s.Dispatch("G", 0)
	assert.Equal(t, EnterSubmenu, a1.Kind)

	a2 := s.Dispatch("1", 0)
	assert.Equal(t, LaunchService, a2.Kind)
	assert.Equal(t, "game1", a2.ID)
}

func TestMenu_CommandDispatch(t *testing.T) {
	s := Build(testMenu(), lvl)
	a := s.Dispatch("Q", 0)
	assert.Equal(t, ExecuteCommand, a.Kind)
	assert.Equal(t, "quit", a.ID)
}

func TestMenu_LevelGatingHidesItem(t *testing.T) {
	s := Build(testMenu(), lvl)
	s.Dispatch("G", 0)

	a := s.Dispatch("2", 0) // guest level, sysop-only item
	assert.Equal(t, NoMatch, a.Kind)
}

func TestMenu_LevelGatingAllowsSysop(t *testing.T) {
	s := Build(testMenu(), lvl)
	s.Dispatch("G", 2)
	a := s.Dispatch("2", 2)
	assert.Equal(t, LaunchService, a.Kind)
}

func TestMenu_BackToMainFromSubmenu(t *testing.T) {
	s := Build(testMenu(), lvl)
	s.Dispatch("G", 0)

	a := s.Dispatch("0", 0)
	assert.Equal(t, BackToMain, a.Kind)

	// back at root, Q should work again
	a2 := s.Dispatch("Q", 0)
	assert.Equal(t, ExecuteCommand, a2.Kind)
}

func TestMenu_VisibleItemsFiltersByLevel(t *testing.T) {
	s := Build(testMenu(), lvl)
	s.Dispatch("G", 0)

	items := s.VisibleItems(0)
	require.Len(t, items, 1)
	assert.Equal(t, "game1", items[0].ServiceID)

	items = s.VisibleItems(2)
	require.Len(t, items, 2)
}

func TestMenu_ResetReturnsToRoot(t *testing.T) {
	s := Build(testMenu(), lvl)
	s.Dispatch("G", 0)
	s.Reset()

	a := s.Dispatch("Q", 0)
	assert.Equal(t, ExecuteCommand, a.Kind)
}

func TestMenu_UnknownHotkeyIsNoMatch(t *testing.T) {
	s := Build(testMenu(), lvl)
	a := s.Dispatch("Z", 0)
	assert.Equal(t, NoMatch, a.Kind)
}
