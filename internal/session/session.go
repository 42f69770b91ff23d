// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package session is the Session State Machine: the hardest single
// component, owning one connection's SessionContext end to end, per
// spec §4.10. Grounded on the teacher's per-connection goroutine
// structure (internal/api/handlers/terminal.go) and on the explicit
// AuthState enum pattern from the MUD-Engine reference example,
// generalized to the full state graph below.
package session

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/ocgully/construct/internal/auth"
	"github.com/ocgully/construct/internal/bbserr"
	"github.com/ocgully/construct/internal/chat"
	"github.com/ocgully/construct/internal/config"
	"github.com/ocgully/construct/internal/menu"
	"github.com/ocgully/construct/internal/newsfeed"
	"github.com/ocgully/construct/internal/node"
	"github.com/ocgully/construct/internal/service"
	"github.com/ocgully/construct/internal/sessiontimer"
	"github.com/ocgully/construct/internal/store"
	"github.com/ocgully/construct/internal/termwriter"
	"github.com/ocgully/construct/internal/timeaccount"
	"github.com/ocgully/construct/internal/transport"
)

// State is one of the mutually exclusive states in the session graph.
type State int

const (
	StateConnected State = iota
	StateCeremony
	StateLoginPrompt
	StateLogin
	StateRegistration
	StateAuthenticated
	StateQuitting
	StateTimeout
	StateDirtyDisconnect
)

// MaxLoginAttempts bounds how many failed logins a connection may make
// before it is disconnected, per spec §4.10.
const MaxLoginAttempts = 3

// Shared is the process-wide collaborator set every Session reads
// through: Data Store, Node Manager, Chat Hub, Service Registry. Spec
// §9: these are the only process-wide globals, constructed once at
// startup and passed by reference.
type Shared struct {
	Store      *store.Store
	Nodes      *node.Manager
	Chat       *chat.Hub
	Registry   *service.Registry
	Config     *config.Config
	News       *newsfeed.Poller
	Policies   map[store.Level]timeaccount.Policy
	Limiter    *auth.Limiter
	HashParams auth.Params
	Now        func() time.Time
}

// Session owns one connection's full lifecycle.
type Session struct {
	shared  *Shared
	adapter *transport.Adapter
	writer  *termwriter.Writer

	state      State
	user       *store.User
	authToken  string
	nodeID     int
	historyID  int64
	timer      *sessiontimer.Timer
	dispatcher *service.Dispatcher
	menu       *menu.State
	inChat     bool

	loginAttempts int
	typeahead     []byte
	transitioning bool

	lowTimeAcked  bool
	budgetAtLogin int

	// inbound/readErr are the same channels Run's read-loop goroutine
	// feeds; views (mail, chat, news, user lookup) read from them
	// directly for their own sub-loops, the same way runLogin and
	// runRegistration do.
	inbound <-chan transport.Message
	readErr <-chan error
}

// New builds a Session bound to an already-upgraded transport.
func New(shared *Shared, adapter *transport.Adapter) *Session {
	return &Session{
		shared:     shared,
		adapter:    adapter,
		writer:     termwriter.New(),
		state:      StateConnected,
		dispatcher: service.NewDispatcher(shared.Registry),
	}
}

func (s *Session) now() time.Time {
	if s.shared.Now != nil {
		return s.shared.Now()
	}
	return time.Now()
}

// claimNode eagerly claims a node slot, entering Ceremony. Returns
// false when the node table is full — the caller must render "line
// busy" and disconnect without ever creating an AuthSession.
func (s *Session) claimNode() bool {
	id, ok := s.shared.Nodes.Claim()
	if !ok {
		return false
	}
	s.nodeID = id
	return true
}

// attemptLogin performs the full Login-state transition described in
// spec §4.10: credential check, duplicate-session guard, AuthSession
// creation, node bind, history open, and daily rollover. Returns the
// authenticated user plus the available minutes computed for the
// Timer (which the caller starts), or an error classified per the
// bbserr taxonomy.
func (s *Session) attemptLogin(handle, password string) (*store.User, int, error) {
	handleLower := strings.ToLower(handle)
	if !s.shared.Limiter.Allowed(handleLower) {
		return nil, 0, bbserr.Wrap(bbserr.Auth, "too many attempts", bbserr.ErrLockedOut)
	}

	ctx := context.Background()
	u, err := s.shared.Store.UserByHandle(ctx, handle)
	if err != nil {
		s.shared.Limiter.RecordFailure(handleLower)
		return nil, 0, bbserr.Wrap(bbserr.Auth, "unknown handle", bbserr.ErrInvalidCredentials)
	}

	ok, verr := auth.VerifyPassword(u.PasswordHash, password)
	if verr != nil {
		return nil, 0, verr
	}
	if !ok {
		s.shared.Limiter.RecordFailure(handleLower)
		return nil, 0, bbserr.Wrap(bbserr.Auth, "bad password", bbserr.ErrInvalidCredentials)
	}

	// Duplicate-session guard: reject if a live (unexpired) session
	// already exists for this user (spec §4.10).
	existing, err := s.shared.Store.ListSessionsByUser(ctx, u.ID)
	if err != nil {
		return nil, 0, bbserr.Wrap(bbserr.Storage, "check existing sessions", err)
	}
	now := s.now()
	for _, sess := range existing {
		if sess.ExpiresAt.After(now) {
			return nil, 0, bbserr.Wrap(bbserr.Auth, "duplicate login", bbserr.ErrDuplicateSession)
		}
	}

	s.shared.Limiter.Reset(handleLower)

	pol := s.shared.Policies[u.Level]
	rolled := timeaccount.RolloverIfNeeded(u, pol, now)
	if rolled {
		if err := s.shared.Store.UpdateUserCounters(ctx, u); err != nil {
			return nil, 0, bbserr.Wrap(bbserr.Storage, "persist daily rollover", err)
		}
	}
	available := timeaccount.Available(u, pol)

	expiry, _ := time.ParseDuration(s.shared.Config.Auth.SessionExpiry)
	if expiry <= 0 {
		expiry = 12 * time.Hour
	}
	token, err := store.NewSessionToken()
	if err != nil {
		return nil, 0, err
	}
	as := &store.AuthSession{
		Token: token, UserID: u.ID, CreatedAt: now, LastActivity: now, ExpiresAt: now.Add(expiry),
	}
	if err := s.shared.Store.CreateSession(ctx, as); err != nil {
		return nil, 0, bbserr.Wrap(bbserr.Storage, "create auth session", err)
	}

	s.shared.Nodes.Bind(s.nodeID, u.ID, u.Handle)
	if err := s.shared.Store.BindSessionNode(ctx, token, s.nodeID); err != nil {
		log.Printf("session: bind session node: %v", err)
	}

	histID, err := s.shared.Store.AppendHistory(ctx, u.ID, u.Handle, now)
	if err != nil {
		log.Printf("session: append history: %v", err)
	}

	u.TotalLogins++
	if err := s.shared.Store.UpdateUserCounters(ctx, u); err != nil {
		log.Printf("session: update login counter: %v", err)
	}

	s.user = u
	s.authToken = token
	s.historyID = histID
	return u, available, nil
}

// routeAuthenticatedInput implements the single-keypress semantics
// from spec §4.10's "Input routing within Authenticated": MenuState
// hotkeys when the Dispatcher has no active service, otherwise the
// active Service's own input handler. Type-ahead bytes that arrive
// mid-transition are buffered by the caller and replayed here; the
// buffer is drained on LaunchService/ExecuteCommand.
func (s *Session) routeAuthenticatedInput(b byte) service.Action {
	key := string(b)

	if s.dispatcher.ActiveID() == "" {
		action := s.menu.Dispatch(key, int(s.user.Level))
		switch action.Kind {
		case menu.EnterSubmenu, menu.BackToMain, menu.NoMatch:
			return service.Action{Kind: service.Continue, Render: s.renderMenu()}
		case menu.LaunchService:
			s.typeahead = nil // drain on LaunchService, per spec §4.10
			render, err := s.dispatcher.Switch(service.Context{
				UserID: s.user.ID, Handle: s.user.Handle, Level: int(s.user.Level), NodeID: s.nodeID,
			}, action.ID)
			if err != nil {
				s.menu.Reset()
				render = append(render, s.renderMenu()...)
				s.writer.ErrorBox([]string{err.Error()}, termwriter.LightRed)
				render = append(render, s.writer.Flush()...)
			}
			return service.Action{Kind: service.Continue, Render: render}
		case menu.ExecuteCommand:
			s.typeahead = nil // drain on ExecuteCommand, per spec §4.10
			return s.executeCommand(action.ID)
		}
	}

	sctx := service.Context{
		UserID: s.user.ID, Handle: s.user.Handle, Level: int(s.user.Level), NodeID: s.nodeID,
	}
	action := s.dispatcher.Dispatch(sctx, []byte{b})
	if action.Kind == service.Switch {
		render, err := s.dispatcher.Switch(sctx, action.TargetID)
		if err != nil {
			s.menu.Reset()
			render = append(render, s.renderMenu()...)
			s.writer.ErrorBox([]string{err.Error()}, termwriter.LightRed)
			render = append(render, s.writer.Flush()...)
		}
		action = service.Action{Kind: service.Continue, Render: append(action.Render, render...)}
	}
	return action
}

// executeCommand resolves the small closed set of sentinel command
// ids named in spec §6 ("Menu items"). Each non-quit id is a
// lightweight view (views.go) owned directly by the Session rather
// than a full Service, since none of them need the enter/input/exit
// lifecycle a door does — they render a screen (or a short sub-loop)
// and hand control back to the menu.
func (s *Session) executeCommand(id string) service.Action {
	alive := true
	switch id {
	case "quit":
		return service.Action{Kind: service.Disconnect}
	case "profile":
		alive = s.viewProfile()
	case "whos_online":
		alive = s.viewWhosOnline()
	case "last_callers":
		alive = s.viewLastCallers()
	case "user_lookup":
		alive = s.viewUserLookup()
	case "mail":
		alive = s.viewMail()
	case "chat":
		alive = s.viewChat()
	case "news":
		alive = s.viewNews()
	}
	if !alive {
		return service.Action{Kind: service.Disconnect}
	}
	return service.Action{Kind: service.Continue, Render: s.renderMenu()}
}

// finalize runs exactly once on every terminating path (Quitting,
// Timeout, DirtyDisconnect). Spec §4.10/§8: node released, timer
// cancelled, AuthSession deleted, SessionHistoryEntry closed — all
// four hold or none do, so each step is best-effort logged rather than
// aborting partway. elapsedMinutes settles the time ledger before the
// user row is persisted.
func (s *Session) finalize(elapsedMinutes int) {
	ctx := context.Background()

	s.dispatcher.ExitActive(service.Context{UserID: s.userID(), Handle: s.handle(), NodeID: s.nodeID})

	if s.timer != nil {
		s.timer.Cancel()
	}

	if s.inChat && s.user != nil {
		s.shared.Chat.Leave(s.user.ID)
		s.inChat = false
	}

	if s.user != nil {
		s.SettleSession(elapsedMinutes)
		if err := s.shared.Store.UpdateUserCounters(ctx, s.user); err != nil {
			log.Printf("session: finalize: persist user counters: %v", err)
		}

		if s.historyID != 0 {
			if err := s.shared.Store.CloseHistory(ctx, s.historyID, s.now(), elapsedMinutes); err != nil {
				log.Printf("session: finalize: close history: %v", err)
			}
		}

		if s.authToken != "" {
			if err := s.shared.Store.DeleteSession(ctx, s.authToken); err != nil {
				log.Printf("session: finalize: delete auth session: %v", err)
			}
		}
	}

	if s.nodeID != 0 {
		s.shared.Nodes.Release(s.nodeID)
	}
}

func (s *Session) userID() int64 {
	if s.user == nil {
		return 0
	}
	return s.user.ID
}

func (s *Session) handle() string {
	if s.user == nil {
		return ""
	}
	return s.user.Handle
}

// SettleSession charges elapsed minutes against the user's time
// ledger at a termination boundary, per spec §4.6. Exposed separately
// from finalize so Run can compute elapsed precisely from the Timer's
// own bookkeeping before tearing down.
func (s *Session) SettleSession(elapsedMinutes int) {
	if s.user == nil {
		return
	}
	pol := s.shared.Policies[s.user.Level]
	timeaccount.Settle(s.user, pol, elapsedMinutes)
}
