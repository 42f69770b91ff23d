// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package service is the Service Registry & Dispatcher: the
// polymorphic unit of application logic behind every door and menu
// destination, per spec §4.9. Grounded on the teacher's
// config-driven, lifecycle-state-machine shape in
// internal/service/manager.go, generalized from process start/stop to
// on_enter/on_input/on_exit.
package service

import (
	"fmt"

	"github.com/ocgully/construct/internal/bbserr"
)

// ActionKind is the closed set of transitions a Service may request.
type ActionKind int

const (
	// Continue means stay on the current Service; no transition.
	Continue ActionKind = iota
	// Switch moves the Dispatcher to a different Service by id.
	Switch
	// Disconnect tears the session down.
	Disconnect
)

// Action is returned by OnInput, optionally paired with a Render side
// effect (bytes to write before acting on the transition).
type Action struct {
	Kind      ActionKind
	TargetID  string // set when Kind == Switch
	Render    []byte
}

// Context is the per-invocation handle a Service's callbacks receive.
// It is intentionally small — session-scoped state a Service needs
// (user id, handle, level, node id) without exposing the whole
// SessionContext.
type Context struct {
	UserID int64
	Handle string
	Level  int
	NodeID int
}

// Service is the capability set every door/menu destination
// implements.
type Service interface {
	OnEnter(ctx Context) ([]byte, error)
	OnInput(ctx Context, input []byte) Action
	OnExit(ctx Context)
}

// Metadata is a Service's static registry entry.
type Metadata struct {
	ID        string
	Name      string
	MinLevel  int
	Enabled   bool
}

// Factory constructs a fresh Service instance for one session's use.
type Factory func() Service

// Registry is constructed at startup from configuration and is
// immutable thereafter.
type Registry struct {
	meta     []Metadata
	byID     map[string]Metadata
	factories map[string]Factory
}

// NewRegistry builds a Registry from metadata plus matching factories.
// Every metadata entry must have a factory; unknown ids are a
// Configuration error reported at load time, per spec §4.9 — callers
// should check this before starting the process.
func NewRegistry(entries []Metadata, factories map[string]Factory) (*Registry, error) {
	r := &Registry{byID: make(map[string]Metadata), factories: factories}
	for _, m := range entries {
		if _, ok := factories[m.ID]; !ok {
			return nil, bbserr.New(bbserr.Configuration, fmt.Sprintf("service %q has no registered factory", m.ID))
		}
		r.meta = append(r.meta, m)
		r.byID[m.ID] = m
	}
	return r, nil
}

// ListEnabledForLevel returns metadata for every enabled service whose
// MinLevel is at or below level, for menu rendering.
func (r *Registry) ListEnabledForLevel(level int) []Metadata {
	var out []Metadata
	for _, m := range r.meta {
		if m.Enabled && m.MinLevel <= level {
			out = append(out, m)
		}
	}
	return out
}

// Create constructs a new Service instance for id.
func (r *Registry) Create(id string) (Service, error) {
	f, ok := r.factories[id]
	if !ok {
		return nil, bbserr.New(bbserr.NotFound, fmt.Sprintf("no such service %q", id))
	}
	return f(), nil
}

// Metadata looks up a service's static metadata by id.
func (r *Registry) Metadata(id string) (Metadata, bool) {
	m, ok := r.byID[id]
	return m, ok
}

// Dispatcher is owned by the Session and holds at most one active
// Service at a time.
type Dispatcher struct {
	registry *Registry
	active   Service
	activeID string
}

// NewDispatcher builds a Dispatcher bound to registry.
func NewDispatcher(registry *Registry) *Dispatcher {
	return &Dispatcher{registry: registry}
}

// ActiveID returns the id of the currently active service, or "" if none.
func (d *Dispatcher) ActiveID() string { return d.activeID }

// Switch performs the transition semantics from spec §4.9: exit the
// current service (if any), construct the new one, and enter it. If
// OnEnter errors, the Dispatcher falls back to no active service (the
// Session routes to the root menu) and returns the render bytes and
// error for the Session to surface as a formatted line.
func (d *Dispatcher) Switch(ctx Context, id string) (render []byte, err error) {
	if d.active != nil {
		d.active.OnExit(ctx)
		d.active = nil
		d.activeID = ""
	}

	svc, err := d.registry.Create(id)
	if err != nil {
		return nil, err
	}

	render, err = svc.OnEnter(ctx)
	if err != nil {
		return render, err
	}

	d.active = svc
	d.activeID = id
	return render, nil
}

// Dispatch routes input to the active service and applies the
// resulting transition, except Switch transitions — the caller (the
// Session) must call Switch itself, since Switch needs the Context
// and may need to render a fallback. Dispatch returns the raw Action
// so the Session can decide.
func (d *Dispatcher) Dispatch(ctx Context, input []byte) Action {
	if d.active == nil {
		return Action{Kind: Continue}
	}
	return d.active.OnInput(ctx, input)
}

// ExitActive calls OnExit on the active service, if any, and clears
// it — used by the Session's finalize() path.
func (d *Dispatcher) ExitActive(ctx Context) {
	if d.active == nil {
		return
	}
	d.active.OnExit(ctx)
	d.active = nil
	d.activeID = ""
}
