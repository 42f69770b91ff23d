// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"strings"
	"time"
)

// ValidationError collects multiple validation failures.
type ValidationError struct {
	Errors []FieldError
}

// FieldError is a single field validation failure.
type FieldError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	var msgs []string
	for _, fe := range e.Errors {
		msgs = append(msgs, fmt.Sprintf("%s: %s", fe.Field, fe.Message))
	}
	return strings.Join(msgs, "; ")
}

// IsEmpty reports whether there are no validation errors.
func (e *ValidationError) IsEmpty() bool {
	return len(e.Errors) == 0
}

// Add appends a field error.
func (e *ValidationError) Add(field, message string) {
	e.Errors = append(e.Errors, FieldError{Field: field, Message: message})
}

// sentinelCommands are the closed set of command ids a menu Command item may
// name, per spec §6 "Menu items".
var sentinelCommands = map[string]bool{
	"quit":         true,
	"profile":      true,
	"whos_online":  true,
	"last_callers": true,
	"user_lookup":  true,
	"mail":         true,
	"chat":         true,
	"news":         true,
}

// Validate checks configuration validity, refusing startup on any error
// per spec §7 ("Configuration errors refuse startup").
func Validate(cfg *Config) error {
	errs := &ValidationError{}

	validateServer(cfg, errs)
	validateDurations(cfg, errs)
	validateLevels(cfg, errs)
	serviceIDs := validateServices(cfg, errs)
	validateMenu(cfg.Menu.Items, serviceIDs, errs, "menu")

	if errs.IsEmpty() {
		return nil
	}
	return errs
}

func validateServer(cfg *Config, errs *ValidationError) {
	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		errs.Add("server.port", "must be between 0 and 65535")
	}
	if cfg.Nodes.Count < 0 {
		errs.Add("nodes.count", "must be >= 0")
	}
}

func validateDurations(cfg *Config, errs *ValidationError) {
	checkDuration(cfg.Auth.SessionExpiry, "auth.session_expiry", errs)
	checkDuration(cfg.Auth.LockoutWindow, "auth.lockout_window", errs)
	checkDuration(cfg.Auth.VerificationExpiry, "auth.verification_expiry", errs)
	checkDuration(cfg.Storage.SweepInterval, "storage.sweep_interval", errs)
}

func checkDuration(s, field string, errs *ValidationError) {
	if s == "" {
		return
	}
	if _, err := time.ParseDuration(s); err != nil {
		errs.Add(field, fmt.Sprintf("invalid duration %q: %v", s, err))
	}
}

func validateLevels(cfg *Config, errs *ValidationError) {
	for i, lvl := range cfg.Levels {
		if lvl.Name == "" {
			errs.Add(fmt.Sprintf("levels[%d].name", i), "is required")
		}
		if lvl.DailyMinutes < 0 {
			errs.Add(fmt.Sprintf("levels[%d].daily_minutes", i), "must be >= 0")
		}
		if lvl.BankCap < 0 {
			errs.Add(fmt.Sprintf("levels[%d].bank_cap", i), "must be >= 0")
		}
	}
}

// validateServices checks service id uniqueness and returns the set of
// declared ids for menu cross-reference validation.
func validateServices(cfg *Config, errs *ValidationError) map[string]bool {
	seen := make(map[string]bool)
	for i, svc := range cfg.Services {
		if svc.ID == "" {
			errs.Add(fmt.Sprintf("services[%d].id", i), "is required")
			continue
		}
		if seen[svc.ID] {
			errs.Add(fmt.Sprintf("services[%d].id", i), fmt.Sprintf("duplicate service id %q", svc.ID))
		}
		seen[svc.ID] = true
	}
	return seen
}

// validateMenu walks the (at most two-level) menu tree, checking that every
// Service item names a known service id and every Command item names a
// known sentinel command. Unknown service ids are a Configuration error
// reported at load time, per spec §4.9.
func validateMenu(items []MenuItemConfig, serviceIDs map[string]bool, errs *ValidationError, path string) {
	for i, item := range items {
		field := fmt.Sprintf("%s[%d]", path, i)
		switch item.Type {
		case "submenu":
			validateMenu(item.Items, serviceIDs, errs, field+".items")
		case "service":
			if !serviceIDs[item.ServiceID] {
				errs.Add(field+".service_id", fmt.Sprintf("unknown service id %q", item.ServiceID))
			}
		case "command":
			if !sentinelCommands[item.CommandID] {
				errs.Add(field+".command_id", fmt.Sprintf("unknown command id %q", item.CommandID))
			}
		case "":
			errs.Add(field+".type", "is required")
		default:
			errs.Add(field+".type", fmt.Sprintf("unknown menu item type %q", item.Type))
		}
	}
}
