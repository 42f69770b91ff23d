// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package menu builds a hotkey-dispatched MenuState tree from
// configuration (spec §6 "Menu items", §4.10 input routing). Nested up
// to two levels: Submenu, Service, and Command items.
package menu

import (
	"strings"

	"github.com/ocgully/construct/internal/config"
)

// ItemKind mirrors the three menu item variants.
type ItemKind int

const (
	KindSubmenu ItemKind = iota
	KindService
	KindCommand
)

// Item is one resolved menu entry.
type Item struct {
	Kind     ItemKind
	Hotkey   string
	Name     string
	Order    int
	MinLevel int
	ServiceID string
	CommandID string
	Items    []Item // for KindSubmenu
}

// State is a position within the menu tree: the current level's items
// plus a pointer back to the root, so BackToMain can reset.
type State struct {
	root    []Item
	current []Item
}

// Build constructs a State from validated menu configuration. levelOf
// maps a level name ("Guest", "User", "Sysop") to its ordinal, so
// MinLevel comparisons are numeric.
func Build(items []config.MenuItemConfig, levelOf func(string) int) *State {
	root := buildItems(items, levelOf)
	return &State{root: root, current: root}
}

func buildItems(items []config.MenuItemConfig, levelOf func(string) int) []Item {
	out := make([]Item, 0, len(items))
	for _, it := range items {
		resolved := Item{
			Hotkey:    it.Hotkey,
			Name:      it.Name,
			Order:     it.Order,
			MinLevel:  levelOf(it.MinLevel),
			ServiceID: it.ServiceID,
			CommandID: it.CommandID,
		}
		switch it.Type {
		case "submenu":
			resolved.Kind = KindSubmenu
			resolved.Items = buildItems(it.Items, levelOf)
		case "command":
			resolved.Kind = KindCommand
		default:
			resolved.Kind = KindService
		}
		out = append(out, resolved)
	}
	return out
}

// ActionKind is the result of routing a hotkey through MenuState.
type ActionKind int

const (
	NoMatch ActionKind = iota
	EnterSubmenu
	BackToMain
	LaunchService
	ExecuteCommand
)

// Action is what the Session does next after a hotkey is routed.
type Action struct {
	Kind ActionKind
	ID   string // service id or command id, when applicable
}

// Dispatch matches a single keypress against the current level's
// hotkeys, filtered by the caller's level. "0" returns to the main
// menu from a submenu.
func (s *State) Dispatch(key string, userLevel int) Action {
	if key == "0" {
		if len(s.current) > 0 && !s.atRoot() {
			s.current = s.root
			return Action{Kind: BackToMain}
		}
		return Action{Kind: NoMatch}
	}

	for _, item := range s.current {
		if item.MinLevel > userLevel {
			continue
		}
		if !strings.EqualFold(item.Hotkey, key) {
			continue
		}
		switch item.Kind {
		case KindSubmenu:
			s.current = item.Items
			return Action{Kind: EnterSubmenu}
		case KindService:
			return Action{Kind: LaunchService, ID: item.ServiceID}
		case KindCommand:
			return Action{Kind: ExecuteCommand, ID: item.CommandID}
		}
	}
	return Action{Kind: NoMatch}
}

func (s *State) atRoot() bool {
	if len(s.current) != len(s.root) {
		return false
	}
	for i := range s.current {
		if s.current[i].Hotkey != s.root[i].Hotkey {
			return false
		}
	}
	return true
}

// VisibleItems returns the current level's items visible to userLevel,
// for rendering the menu screen.
func (s *State) VisibleItems(userLevel int) []Item {
	var out []Item
	for _, item := range s.current {
		if item.MinLevel <= userLevel {
			out = append(out, item)
		}
	}
	return out
}

// Reset returns State to the root level. The Session calls it when a
// service fails to start, so the menu it redraws is the root menu.
func (s *State) Reset() {
	s.current = s.root
}
