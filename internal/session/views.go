// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/ocgully/construct/internal/chat"
	"github.com/ocgully/construct/internal/newsfeed"
	"github.com/ocgully/construct/internal/store"
	"github.com/ocgully/construct/internal/termwriter"
	"github.com/ocgully/construct/internal/transport"
)

// renderMenu draws the current menu level for the authenticated user,
// the primary authenticated screen (spec §4.10). Built from s.writer
// only — it is returned as an Action.Render so the caller decides when
// to flush it, the same contract every other menu-routing Action uses.
func (s *Session) renderMenu() []byte {
	s.writer.ClearScreen()
	s.writer.SetColour(termwriter.LightCyan)
	s.writer.WriteLine("THE CONSTRUCT")
	s.writer.ResetColour()

	for _, item := range s.menu.VisibleItems(int(s.user.Level)) {
		s.writer.WriteLine(fmt.Sprintf("[%s] %s", item.Hotkey, item.Name))
	}
	s.writer.WriteLine("")
	s.writer.WriteRaw("> ")
	return s.writer.Flush()
}

// waitAnyKey blocks for a single inbound message (any bytes) before a
// view returns to the menu. Reports false if the connection died.
func (s *Session) waitAnyKey() bool {
	select {
	case _, ok := <-s.inbound:
		return ok
	case <-s.readErr:
		return false
	}
}

// viewProfile renders the authenticated user's own profile card
// (spec §4.9 "profile card").
func (s *Session) viewProfile() bool {
	u := s.user
	s.writer.ClearScreen()
	s.writer.SetColour(termwriter.LightCyan).WriteLine("PROFILE").ResetColour()
	s.writer.WriteLine(fmt.Sprintf("Handle: %s", u.Handle))
	s.writer.WriteLine(fmt.Sprintf("Level: %s", u.Level))
	s.writer.WriteLine(fmt.Sprintf("Total logins: %d", u.TotalLogins))
	s.writer.WriteLine(fmt.Sprintf("Messages sent: %d", u.MessagesSent))
	s.writer.WriteLine(fmt.Sprintf("Games played: %d", u.GamesPlayed))
	s.writer.WriteLine(fmt.Sprintf("Total minutes online: %d", u.TotalMinutes))
	s.writer.WriteLine(fmt.Sprintf("Minutes used today: %d", u.DailyMinutesUsed))
	s.writer.WriteLine(fmt.Sprintf("Banked minutes: %d", u.BankedMinutes))
	s.writer.WriteLine("")
	s.writer.WriteLine("Press any key to return to the menu.")
	s.adapter.WriteTerminal(s.writer.Flush())
	return s.waitAnyKey()
}

// viewWhosOnline renders the live Node Manager snapshot (spec §4.9
// "who's-online").
func (s *Session) viewWhosOnline() bool {
	views := s.shared.Nodes.Snapshot()

	s.writer.ClearScreen()
	s.writer.SetColour(termwriter.LightCyan).WriteLine("WHO'S ONLINE").ResetColour()
	if len(views) == 0 {
		s.writer.WriteLine("No one else is online.")
	}
	for _, v := range views {
		s.writer.WriteLine(fmt.Sprintf("Node %d: %-16s %-20s idle %ds", v.ID, v.Handle, v.Activity, v.IdleSecs))
	}
	s.writer.WriteLine("")
	s.writer.WriteLine("Press any key to return to the menu.")
	s.adapter.WriteTerminal(s.writer.Flush())
	return s.waitAnyKey()
}

// viewLastCallers renders the most recent closed session_history
// entries (spec §4.9 "last-callers").
func (s *Session) viewLastCallers() bool {
	ctx := context.Background()
	entries, err := s.shared.Store.RecentHistory(ctx, 10)

	s.writer.ClearScreen()
	s.writer.SetColour(termwriter.LightCyan).WriteLine("LAST CALLERS").ResetColour()
	switch {
	case err != nil:
		s.writer.ErrorBox([]string{"could not load caller history"}, termwriter.LightRed)
	case len(entries) == 0:
		s.writer.WriteLine("No callers yet.")
	default:
		for _, e := range entries {
			s.writer.WriteLine(fmt.Sprintf("%-16s %s  (%d min)", e.Handle, e.LoginTime.Format("2006-01-02 15:04"), e.DurationMinutes))
		}
	}
	s.writer.WriteLine("")
	s.writer.WriteLine("Press any key to return to the menu.")
	s.adapter.WriteTerminal(s.writer.Flush())
	return s.waitAnyKey()
}

// viewUserLookup prompts for a handle and renders that user's public
// profile fields (spec §4.9 "user lookup").
func (s *Session) viewUserLookup() bool {
	s.writer.WriteLine("Look up handle:")
	s.adapter.WriteTerminal(s.writer.Flush())

	handle, _, alive := s.readLine(&lineCollector{}, s.inbound, s.readErr)
	if !alive {
		return false
	}

	ctx := context.Background()
	u, err := s.shared.Store.UserByHandle(ctx, handle)

	s.writer.ClearScreen()
	if err != nil {
		s.writer.ErrorBox([]string{"no such user"}, termwriter.LightRed)
	} else {
		s.writer.SetColour(termwriter.LightCyan).WriteLine("USER LOOKUP").ResetColour()
		s.writer.WriteLine(fmt.Sprintf("Handle: %s", u.Handle))
		s.writer.WriteLine(fmt.Sprintf("Level: %s", u.Level))
		s.writer.WriteLine(fmt.Sprintf("Total logins: %d", u.TotalLogins))
		s.writer.WriteLine(fmt.Sprintf("Total minutes online: %d", u.TotalMinutes))
	}
	s.writer.WriteLine("")
	s.writer.WriteLine("Press any key to return to the menu.")
	s.adapter.WriteTerminal(s.writer.Flush())
	return s.waitAnyKey()
}

// viewMail is the inbox/read/compose/delete sub-loop (spec §4.9
// "mail inbox/read/compose").
func (s *Session) viewMail() bool {
	ctx := context.Background()
	pageSize := s.shared.Config.Mail.PageSize
	if pageSize <= 0 {
		pageSize = 10
	}

	for {
		msgs, err := s.shared.Store.ListInboxPage(ctx, s.user.ID, 1, pageSize)

		s.writer.ClearScreen()
		s.writer.SetColour(termwriter.LightCyan).WriteLine("MAIL").ResetColour()
		switch {
		case err != nil:
			s.writer.ErrorBox([]string{"could not load inbox"}, termwriter.LightRed)
		case len(msgs) == 0:
			s.writer.WriteLine("Your inbox is empty.")
		default:
			for _, m := range msgs {
				flag := " "
				if !m.IsRead {
					flag = "*"
				}
				s.writer.WriteLine(fmt.Sprintf("%s #%-4d %-20s %s", flag, m.ID, m.Subject, m.SentAt.Format("2006-01-02 15:04")))
			}
		}
		s.writer.WriteLine("")
		s.writer.WriteLine("[R]ead <#>  [C]ompose  [D]elete <#>  [Q]uit")
		s.adapter.WriteTerminal(s.writer.Flush())

		line, _, alive := s.readLine(&lineCollector{}, s.inbound, s.readErr)
		if !alive {
			return false
		}

		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		switch strings.ToUpper(fields[0]) {
		case "Q":
			return true
		case "R":
			if len(fields) < 2 {
				continue
			}
			id, err := strconv.ParseInt(fields[1], 10, 64)
			if err != nil {
				continue
			}
			if !s.renderMailMessage(ctx, id) {
				return false
			}
		case "C":
			if !s.composeMail(ctx) {
				return false
			}
		case "D":
			if len(fields) < 2 {
				continue
			}
			id, err := strconv.ParseInt(fields[1], 10, 64)
			if err == nil {
				s.shared.Store.DeleteMessage(ctx, id, s.user.ID)
			}
		}
	}
}

func (s *Session) renderMailMessage(ctx context.Context, id int64) bool {
	m, err := s.shared.Store.MessageByID(ctx, id, s.user.ID)

	s.writer.ClearScreen()
	if err != nil {
		s.writer.ErrorBox([]string{"no such message"}, termwriter.LightRed)
	} else {
		s.shared.Store.MarkMessageRead(ctx, m.ID, s.user.ID)
		s.writer.WriteLine(fmt.Sprintf("Subject: %s", m.Subject))
		s.writer.WriteLine(fmt.Sprintf("Sent: %s", m.SentAt.Format("2006-01-02 15:04")))
		s.writer.WriteLine("")
		s.writer.WriteLine(m.Body)
	}
	s.writer.WriteLine("")
	s.writer.WriteLine("Press any key to continue.")
	s.adapter.WriteTerminal(s.writer.Flush())
	return s.waitAnyKey()
}

func (s *Session) composeMail(ctx context.Context) bool {
	s.writer.WriteLine("To (handle):")
	s.adapter.WriteTerminal(s.writer.Flush())
	to, _, alive := s.readLine(&lineCollector{}, s.inbound, s.readErr)
	if !alive {
		return false
	}

	recipient, err := s.shared.Store.UserByHandle(ctx, to)
	if err != nil {
		s.writer.ErrorBox([]string{"no such user"}, termwriter.LightRed)
		s.adapter.WriteTerminal(s.writer.Flush())
		return true
	}

	s.writer.WriteLine("Subject:")
	s.adapter.WriteTerminal(s.writer.Flush())
	subject, _, alive := s.readLine(&lineCollector{}, s.inbound, s.readErr)
	if !alive {
		return false
	}

	s.writer.WriteLine("Message:")
	s.adapter.WriteTerminal(s.writer.Flush())
	body, _, alive := s.readLine(&lineCollector{}, s.inbound, s.readErr)
	if !alive {
		return false
	}

	msg := &store.Message{SenderID: s.user.ID, RecipientID: recipient.ID, Subject: subject, Body: body, SentAt: s.now()}
	if err := s.shared.Store.InsertMessage(ctx, msg); err != nil {
		s.writer.ErrorBox([]string{"could not send message"}, termwriter.LightRed)
	} else {
		s.user.MessagesSent++
		if err := s.shared.Store.UpdateUserCounters(ctx, s.user); err != nil {
			log.Printf("session: compose mail: persist sent counter: %v", err)
		}
		s.writer.WriteLine("Sent.")
	}
	s.adapter.WriteTerminal(s.writer.Flush())
	return true
}

// viewChat enters the Chat Hub room (spec §4.8, §4.9 "chat room") and
// interleaves broadcast messages from other participants with the
// user's own input until they leave.
func (s *Session) viewChat() bool {
	sub := s.shared.Chat.Enter(s.user.ID, s.user.Handle)
	s.inChat = true
	defer func() {
		s.shared.Chat.Leave(s.user.ID)
		s.inChat = false
	}()

	s.writer.WriteLine("Entering chat. /who lists who's here, /msg <handle> <text> is private, /page <handle> <text> rings a bell, /quit leaves.")
	s.adapter.WriteTerminal(s.writer.Flush())

	collector := &lineCollector{}
	for {
		select {
		case msg, ok := <-sub.Ch:
			if !ok {
				return true
			}
			s.renderChatMessage(msg)
		case m, ok := <-s.inbound:
			if !ok {
				return false
			}
			for _, b := range m.Input {
				line, done := collector.feed(b)
				if !done {
					continue
				}
				if s.handleChatLine(line) {
					return true
				}
			}
		case <-s.readErr:
			return false
		}
	}
}

func (s *Session) renderChatMessage(msg chat.Message) {
	switch msg.Variant {
	case chat.Join:
		s.writer.SetColour(termwriter.DarkGray).WriteLine(msg.SenderName + " has entered chat.").ResetColour()
	case chat.Leave:
		s.writer.SetColour(termwriter.DarkGray).WriteLine(msg.SenderName + " has left chat.").ResetColour()
	case chat.Direct:
		s.writer.SetColour(termwriter.LightMagenta).WriteLine(fmt.Sprintf("(private) %s: %s", msg.SenderName, msg.Body)).ResetColour()
	case chat.Page:
		s.writer.SetColour(termwriter.Yellow).WriteLine(fmt.Sprintf("*** PAGE from %s: %s", msg.SenderName, msg.Body)).ResetColour()
		if msg.RecipientID == s.user.ID {
			s.adapter.WriteControl(transport.Control{Type: "bell"})
		}
	default:
		s.writer.WriteLine(fmt.Sprintf("%s: %s", msg.SenderName, msg.Body))
	}
	s.adapter.WriteTerminal(s.writer.Flush())
}

// handleChatLine applies one collected line of chat input, returning
// true when the participant has asked to leave.
func (s *Session) handleChatLine(line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}

	switch {
	case line == "/quit":
		return true
	case line == "/who":
		s.writer.WriteLine("In chat: " + strings.Join(s.shared.Chat.Participants(), ", "))
		s.adapter.WriteTerminal(s.writer.Flush())
	case strings.HasPrefix(line, "/msg "), strings.HasPrefix(line, "/page "):
		page := strings.HasPrefix(line, "/page ")
		rest := strings.TrimPrefix(strings.TrimPrefix(line, "/msg "), "/page ")
		fields := strings.SplitN(rest, " ", 2)
		if len(fields) < 2 {
			s.writer.ErrorBox([]string{"usage: /msg <handle> <text>"}, termwriter.LightRed)
			s.adapter.WriteTerminal(s.writer.Flush())
			return false
		}
		recipientID, ok := s.shared.Chat.ResolveHandle(fields[0])
		if !ok {
			s.writer.ErrorBox([]string{"no such user in chat"}, termwriter.LightRed)
			s.adapter.WriteTerminal(s.writer.Flush())
			return false
		}
		variant := chat.Direct
		if page {
			variant = chat.Page
		}
		s.shared.Chat.Broadcast(chat.Message{Variant: variant, SenderID: s.user.ID, SenderName: s.user.Handle, RecipientID: recipientID, Body: fields[1]})
	default:
		s.shared.Chat.Broadcast(chat.Message{Variant: chat.Room, SenderID: s.user.ID, SenderName: s.user.Handle, Body: line})
	}
	return false
}

// viewNews renders the polled news feeds and lets the user drill into
// one article at a time (spec §4.9 "news list/article").
func (s *Session) viewNews() bool {
	if s.shared.News == nil {
		s.writer.WriteLine("News is not configured.")
		s.adapter.WriteTerminal(s.writer.Flush())
		return true
	}

	type entry struct {
		feedTitle string
		item      newsfeed.Item
	}
	var all []entry
	for _, f := range s.shared.News.Snapshot() {
		for _, it := range f.Items {
			all = append(all, entry{feedTitle: f.Title, item: it})
		}
	}

	for {
		s.writer.ClearScreen()
		s.writer.SetColour(termwriter.LightCyan).WriteLine("NEWS").ResetColour()
		if len(all) == 0 {
			s.writer.WriteLine("No news right now.")
		}
		for i, e := range all {
			s.writer.WriteLine(fmt.Sprintf("%2d. [%s] %s", i+1, e.feedTitle, e.item.Title))
		}
		s.writer.WriteLine("")
		s.writer.WriteLine("Enter article # to read, or [Q]uit:")
		s.adapter.WriteTerminal(s.writer.Flush())

		line, _, alive := s.readLine(&lineCollector{}, s.inbound, s.readErr)
		if !alive {
			return false
		}
		line = strings.TrimSpace(line)
		if strings.EqualFold(line, "Q") {
			return true
		}
		if line == "" {
			continue
		}

		idx, err := strconv.Atoi(line)
		if err != nil || idx < 1 || idx > len(all) {
			continue
		}

		e := all[idx-1]
		s.writer.ClearScreen()
		s.writer.SetColour(termwriter.LightCyan).WriteLine(e.item.Title).ResetColour()
		s.writer.WriteLine(e.item.Link)
		s.writer.WriteLine("")
		s.writer.WriteLine(e.item.Description)
		s.writer.WriteLine("")
		s.writer.WriteLine("Press any key to return to the list.")
		s.adapter.WriteTerminal(s.writer.Flush())
		if !s.waitAnyKey() {
			return false
		}
	}
}
