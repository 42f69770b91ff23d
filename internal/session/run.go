// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"net/smtp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ocgully/construct/internal/auth"
	"github.com/ocgully/construct/internal/bbserr"
	"github.com/ocgully/construct/internal/config"
	"github.com/ocgully/construct/internal/menu"
	"github.com/ocgully/construct/internal/service"
	"github.com/ocgully/construct/internal/sessiontimer"
	"github.com/ocgully/construct/internal/store"
	"github.com/ocgully/construct/internal/termwriter"
	"github.com/ocgully/construct/internal/timeaccount"
	"github.com/ocgully/construct/internal/transport"
)

// lineCollector accumulates input bytes into newline-terminated lines
// for the ceremony/login/registration prompts, which are line-oriented
// rather than single-keypress, unlike Authenticated.
type lineCollector struct {
	buf bytes.Buffer
}

func (c *lineCollector) feed(b byte) (line string, complete bool) {
	if b == '\r' || b == '\n' {
		line = c.buf.String()
		c.buf.Reset()
		return line, true
	}
	if b == 127 || b == 8 { // backspace/delete
		s := c.buf.String()
		if len(s) > 0 {
			c.buf.Truncate(len(s) - 1)
		}
		return "", false
	}
	c.buf.WriteByte(b)
	return "", false
}

// Run drives the full connection lifecycle: Connected → Ceremony (or
// straight to Authenticated on a valid token) → LoginPrompt/Login or
// Registration → Authenticated → a terminating state → finalize.
// It owns the read loop's consumer side; the Transport Adapter owns
// the read half itself.
func (s *Session) Run(ctx context.Context) {
	inbound := make(chan transport.Message, 16)
	readErr := make(chan error, 1)
	go func() { readErr <- s.adapter.ReadLoop(inbound) }()
	s.inbound = inbound
	s.readErr = readErr

	startedAt := s.now()
	elapsedMinutes := 0

	defer func() {
		s.finalize(elapsedMinutes)
		s.writer.Release()
		s.adapter.Close()
	}()

	first := s.waitFirstMessage(ctx, inbound, readErr)
	if first == nil {
		s.state = StateDirtyDisconnect
		return
	}

	if first.Token != nil && s.tryResumeToken(first.Token.Value) {
		s.state = StateAuthenticated
	} else {
		if !s.runCeremony() {
			s.state = StateDirtyDisconnect
			return
		}
		if !s.runLoginOrRegistration(inbound, readErr) {
			s.state = StateDirtyDisconnect
			return
		}
		s.state = StateAuthenticated
	}

	s.startTimerAndEnterMenu()
	s.adapter.WriteTerminal(s.renderMenu())
	s.runAuthenticatedLoop(ctx, inbound, readErr)

	elapsedMinutes = int(s.now().Sub(startedAt).Minutes())
	if s.timer != nil {
		// Prefer the Timer's own bookkeeping (it counts down the
		// budget directly) over wall-clock if the Timer ran at all.
		if consumed := s.budgetAtLogin - s.timer.Remaining(); consumed >= 0 {
			elapsedMinutes = consumed
		}
	}
}

// waitFirstMessage blocks for the first client message, a read error,
// or process shutdown, whichever comes first.
func (s *Session) waitFirstMessage(ctx context.Context, inbound <-chan transport.Message, readErr <-chan error) *transport.Message {
	select {
	case m, ok := <-inbound:
		if !ok {
			return nil
		}
		return &m
	case <-readErr:
		return nil
	case <-ctx.Done():
		return nil
	}
}

// tryResumeToken looks up a persisted auth token and, if live, bypasses
// ceremony entirely (spec §4.10 "Token present and valid").
func (s *Session) tryResumeToken(token string) bool {
	ctx := context.Background()
	as, err := s.shared.Store.SessionByToken(ctx, token)
	if err != nil {
		return false
	}
	if as.ExpiresAt.Before(s.now()) {
		return false
	}
	u, err := s.shared.Store.UserByID(ctx, as.UserID)
	if err != nil {
		return false
	}
	if !s.claimNode() {
		s.writer.ErrorBox([]string{"ALL LINES BUSY"}, termwriter.LightRed)
		s.adapter.WriteTerminal(s.writer.Flush())
		return false
	}
	s.shared.Nodes.Bind(s.nodeID, u.ID, u.Handle)
	s.shared.Store.BindSessionNode(ctx, token, s.nodeID)

	s.user = u
	s.authToken = token
	histID, err := s.shared.Store.AppendHistory(ctx, u.ID, u.Handle, s.now())
	if err == nil {
		s.historyID = histID
	}

	s.writer.WriteLine("Welcome back, " + u.Handle + ".")
	s.adapter.WriteTerminal(s.writer.Flush())
	return true
}

// runCeremony claims a node and paces the splash bytes directly onto
// the outbound channel, bypassing the buffered Terminal Writer since
// the pacing itself is the effect (spec §4.10, §9).
func (s *Session) runCeremony() bool {
	if !s.claimNode() {
		s.writer.ErrorBox([]string{"ALL LINES BUSY"}, termwriter.LightRed)
		s.adapter.WriteTerminal(s.writer.Flush())
		return false
	}

	for _, frame := range splashFrames {
		if err := s.adapter.WriteTerminal([]byte(frame)); err != nil {
			return false
		}
		time.Sleep(ceremonyFrameDelay)
	}
	return true
}

// splashFrames are the time-paced splash screen lines shown during
// Ceremony.
var splashFrames = []string{
	"\x1b[2J\x1b[H",
	"T H E   C O N S T R U C T\r\n",
	"a place between places\r\n\r\n",
}

var ceremonyFrameDelay = 150 * time.Millisecond

// runLoginOrRegistration collects a handle at LoginPrompt, then
// dispatches to Login or Registration per spec §4.10.
func (s *Session) runLoginOrRegistration(inbound <-chan transport.Message, readErr <-chan error) bool {
	s.writer.WriteLine("Handle (or 'new'):")
	s.adapter.WriteTerminal(s.writer.Flush())

	line, _, alive := s.readLine(&lineCollector{}, inbound, readErr)
	if !alive {
		return false
	}
	if strings.EqualFold(line, "new") {
		return s.runRegistration(inbound, readErr)
	}
	return s.runLogin(line, inbound, readErr)
}

// readLine feeds bytes into collector until a full line is produced,
// or the connection dies.
func (s *Session) readLine(collector *lineCollector, inbound <-chan transport.Message, readErr <-chan error) (line string, complete bool, alive bool) {
	for {
		select {
		case m, ok := <-inbound:
			if !ok {
				return "", false, false
			}
			for _, b := range m.Input {
				if l, done := collector.feed(b); done {
					return l, true, true
				}
			}
		case <-readErr:
			return "", false, false
		}
	}
}

// runLogin collects a masked password and consults Auth Core, up to
// MaxLoginAttempts within the same Connected-derived state, per spec
// §4.10.
func (s *Session) runLogin(handle string, inbound <-chan transport.Message, readErr <-chan error) bool {
	s.writer.WriteLine("Password:")
	s.adapter.WriteTerminal(s.writer.Flush())

	collector := &lineCollector{}
	password, _, alive := s.readLine(collector, inbound, readErr)
	if !alive {
		return false
	}

	_, available, err := s.attemptLogin(handle, password)
	if err != nil {
		s.loginAttempts++
		s.writer.ErrorBox([]string{errorMessage(err)}, termwriter.LightRed)
		s.adapter.WriteTerminal(s.writer.Flush())
		if s.loginAttempts >= MaxLoginAttempts {
			return false
		}
		return s.runLoginOrRegistration(inbound, readErr)
	}

	s.budgetAtLogin = available
	return true
}

// runRegistration collects handle → email → password → verification
// code → creates the user, then auto-logs in as with Login (spec §4.10).
func (s *Session) runRegistration(inbound <-chan transport.Message, readErr <-chan error) bool {
	s.writer.WriteLine("Choose a handle:")
	s.adapter.WriteTerminal(s.writer.Flush())
	handle, _, alive := s.readLine(&lineCollector{}, inbound, readErr)
	if !alive {
		return false
	}

	s.writer.WriteLine("Email address:")
	s.adapter.WriteTerminal(s.writer.Flush())
	email, _, alive := s.readLine(&lineCollector{}, inbound, readErr)
	if !alive {
		return false
	}

	s.writer.WriteLine("Choose a password:")
	s.adapter.WriteTerminal(s.writer.Flush())
	password, _, alive := s.readLine(&lineCollector{}, inbound, readErr)
	if !alive {
		return false
	}

	code, err := auth.GenerateVerificationCode()
	if err != nil {
		return false
	}
	expiry, _ := time.ParseDuration(s.shared.Config.Auth.VerificationExpiry)
	if expiry <= 0 {
		expiry = 10 * time.Minute
	}
	ctx := context.Background()
	vc := &store.VerificationCode{CorrelationID: uuid.NewString(), Code: code, Purpose: "register", Target: email, ExpiresAt: s.now().Add(expiry)}
	if err := s.shared.Store.InsertVerificationCode(ctx, vc); err != nil {
		return false
	}
	deliverVerificationCode(s.shared.Config, email, code)

	s.writer.WriteLine("Enter the verification code we sent you:")
	s.adapter.WriteTerminal(s.writer.Flush())
	entered, _, alive := s.readLine(&lineCollector{}, inbound, readErr)
	if !alive {
		return false
	}
	if entered != code {
		s.writer.ErrorBox([]string{"invalid verification code"}, termwriter.LightRed)
		s.adapter.WriteTerminal(s.writer.Flush())
		return false
	}
	s.shared.Store.DeleteVerificationCode(ctx, vc.ID)

	hash, err := auth.HashPassword(password, s.shared.HashParams)
	if err != nil {
		return false
	}
	u := &store.User{Handle: handle, Email: email, PasswordHash: hash, Level: store.LevelUser}
	if err := s.shared.Store.CreateUser(ctx, u); err != nil {
		s.writer.ErrorBox([]string{"that handle or email is taken"}, termwriter.LightRed)
		s.adapter.WriteTerminal(s.writer.Flush())
		return false
	}

	return s.runLogin(handle, inbound, readErr)
}

// deliverVerificationCode sends the code over the configured SMTP
// channel, or falls back to a logged line when SMTP isn't configured
// (spec §4.10 "SMTP when configured, otherwise a logged fallback").
func deliverVerificationCode(cfg *config.Config, email, code string) {
	if cfg != nil && cfg.Auth.SMTP != nil {
		if err := sendVerificationEmail(cfg.Auth.SMTP, email, code); err != nil {
			log.Printf("verification code for %s: smtp send failed, logging instead: %v", email, err)
			log.Printf("verification code for %s: %s", email, code)
		}
		return
	}
	log.Printf("verification code for %s: %s (SMTP not configured, logging instead)", email, code)
}

// sendVerificationEmail delivers the code via net/smtp, PLAIN-auth'ing
// against the configured relay when a username is set.
func sendVerificationEmail(cfg *config.SMTPConfig, email, code string) error {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	var a smtp.Auth
	if cfg.Username != "" {
		a = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	msg := fmt.Appendf(nil, "From: %s\r\nTo: %s\r\nSubject: Your Construct verification code\r\n\r\nYour verification code is %s\r\n",
		cfg.From, email, code)
	return smtp.SendMail(addr, a, cfg.From, []string{email}, msg)
}

// startTimerAndEnterMenu builds the MenuState and starts the Timer
// once a user is Authenticated.
func (s *Session) startTimerAndEnterMenu() {
	s.menu = menu.Build(s.shared.Config.Menu.Items, levelOrdinal)

	hasMail := func() bool {
		ctx := context.Background()
		n, err := s.shared.Store.CountUnread(ctx, s.user.ID)
		if err != nil {
			return false // auxiliary path, swallowed per spec §7
		}
		return n > 0
	}
	emit := func(tk sessiontimer.Tick) {
		s.adapter.WriteControl(transport.Control{Type: "timer", Remaining: tk.Remaining, HasMail: tk.HasMail})
	}
	s.timer = sessiontimer.New(s.budgetAtLogin, timeaccount.LowTimeThreshold, emit, hasMail)
	go s.timer.Run()
}

// levelOrdinal maps a configured level name to its numeric ordinal.
func levelOrdinal(name string) int {
	return int(store.ParseLevel(name))
}

// runAuthenticatedLoop implements the Authenticated state's per-input
// contract from spec §4.10: check timer.expired and timer.low_time
// before each dispatch, route the byte, flush the writer. Also exits
// on process shutdown so a restart doesn't wait on idle connections.
func (s *Session) runAuthenticatedLoop(ctx context.Context, inbound <-chan transport.Message, readErr <-chan error) {
	for {
		if s.timer.Expired() {
			s.renderTimeoutGoodbye()
			return
		}
		if !s.timer.LowTime() {
			s.lowTimeAcked = false
		}
		if s.timer.LowTime() && !s.lowTimeAcked {
			s.offerWithdrawal(inbound, readErr)
		}

		select {
		case m, ok := <-inbound:
			if !ok {
				return
			}
			s.typeahead = append(s.typeahead, m.Input...)
			for len(s.typeahead) > 0 {
				b := s.typeahead[0]
				s.typeahead = s.typeahead[1:]
				action := s.routeAuthenticatedInput(b)
				if len(action.Render) > 0 {
					s.adapter.WriteTerminal(action.Render)
				}
				switch action.Kind {
				case service.Disconnect:
					s.renderGoodbye()
					return
				}
			}
		case <-readErr:
			return
		case <-ctx.Done():
			return
		}
	}
}

// offerWithdrawal shows the bank-withdrawal prompt once per crossing
// (spec §4.6).
func (s *Session) offerWithdrawal(inbound <-chan transport.Message, readErr <-chan error) {
	s.lowTimeAcked = true
	s.writer.WriteLine("Low on time. Withdraw 30 minutes from your bank? (y/n)")
	s.adapter.WriteTerminal(s.writer.Flush())

	select {
	case m, ok := <-inbound:
		if !ok || len(m.Input) == 0 {
			return
		}
		if m.Input[0] == 'y' || m.Input[0] == 'Y' {
			amount := timeaccount.Withdraw(s.user)
			s.timer.AddMinutes(amount)
			s.budgetAtLogin += amount
		}
	case <-readErr:
	}
}

func (s *Session) renderGoodbye() {
	s.writer.SetColour(termwriter.LightGreen)
	s.writer.WriteLine("Goodbye.")
	s.writer.ResetColour()
	s.adapter.WriteTerminal(s.writer.Flush())
	s.adapter.WriteControl(transport.Control{Type: "logout"})
	time.Sleep(300 * time.Millisecond)
}

func (s *Session) renderTimeoutGoodbye() {
	s.writer.SetColour(termwriter.LightRed)
	s.writer.WriteLine("Your time is up for today.")
	s.writer.ResetColour()
	s.adapter.WriteTerminal(s.writer.Flush())
	s.adapter.WriteControl(transport.Control{Type: "logout"})
	time.Sleep(300 * time.Millisecond)
}

func errorMessage(err error) string {
	switch {
	case errors.Is(err, bbserr.ErrLockedOut):
		return "too many attempts, try again later"
	case errors.Is(err, bbserr.ErrDuplicateSession):
		return "already logged in elsewhere"
	case bbserr.Is(err, bbserr.Auth):
		return "invalid handle or password"
	default:
		return "login failed"
	}
}
