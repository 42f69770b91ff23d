// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package chat is the process-wide Chat Hub: a single-producer,
// many-consumer broadcast of ChatMessage values plus a participant
// registry, grounded on the teacher's MemoryEventBus
// (internal/events/memory.go) subscription-map-behind-RWMutex shape,
// generalized here to per-subscriber buffered channels with
// drop-on-lag backpressure (spec §4.8).
package chat

import (
	"log"
	"strings"
	"sync"
)

// Variant distinguishes the five kinds of chat traffic.
type Variant int

const (
	// Room is heard by every subscriber.
	Room Variant = iota
	// Direct carries an explicit recipient; only sender and
	// recipient render it.
	Direct
	// Page is like Direct but also rings a bell on the recipient's
	// session.
	Page
	// Join/Leave are presence notices, rendered by everyone.
	Join
	Leave
)

// Message is one unit of chat traffic published to the Hub.
type Message struct {
	Variant     Variant
	SenderID    int64
	SenderName  string
	RecipientID int64
	Body        string
}

// VisibleTo reports whether a subscriber with the given user id should
// render this message, per spec §4.8: sender, recipient, or any
// non-directed variant.
func (m Message) VisibleTo(userID int64) bool {
	switch m.Variant {
	case Direct, Page:
		return userID == m.SenderID || userID == m.RecipientID
	default:
		return true
	}
}

// Subscription is a participant's receive endpoint.
type Subscription struct {
	UserID int64
	Ch     <-chan Message
}

type subscriber struct {
	userID int64
	handle string
	ch     chan Message
}

// Hub is the Chat Hub singleton.
type Hub struct {
	mu       sync.RWMutex
	subs     map[int64]*subscriber
	bufSize  int
}

// New builds a Hub whose per-subscriber channel buffer holds bufSize
// messages before a slow subscriber is dropped.
func New(bufSize int) *Hub {
	if bufSize <= 0 {
		bufSize = 32
	}
	return &Hub{subs: make(map[int64]*subscriber), bufSize: bufSize}
}

// Enter registers a participant and emits a Join notice to everyone,
// including the new subscriber itself.
func (h *Hub) Enter(userID int64, handle string) Subscription {
	h.mu.Lock()
	ch := make(chan Message, h.bufSize)
	h.subs[userID] = &subscriber{userID: userID, handle: handle, ch: ch}
	h.mu.Unlock()

	h.broadcastLocked(Message{Variant: Join, SenderID: userID, SenderName: handle})
	return Subscription{UserID: userID, Ch: ch}
}

// Leave unregisters a participant and emits a Leave notice. Idempotent.
func (h *Hub) Leave(userID int64) {
	h.mu.Lock()
	sub, ok := h.subs[userID]
	if !ok {
		h.mu.Unlock()
		return
	}
	delete(h.subs, userID)
	h.mu.Unlock()

	close(sub.ch)
	h.broadcastLocked(Message{Variant: Leave, SenderID: userID, SenderName: sub.handle})
}

// Broadcast publishes msg to every subscriber for whom it is visible.
// Slow subscribers whose buffer is full are dropped from the channel
// entirely — spec §4.8 treats this as a disconnect from chat, not from
// the session, so the subscriber must call Enter again to rejoin.
func (h *Hub) Broadcast(msg Message) {
	h.broadcastLocked(msg)
}

func (h *Hub) broadcastLocked(msg Message) {
	h.mu.RLock()
	targets := make([]*subscriber, 0, len(h.subs))
	for _, s := range h.subs {
		targets = append(targets, s)
	}
	h.mu.RUnlock()

	var dropped []int64
	for _, s := range targets {
		if !msg.VisibleTo(s.userID) {
			continue
		}
		select {
		case s.ch <- msg:
		default:
			dropped = append(dropped, s.userID)
		}
	}

	for _, id := range dropped {
		log.Printf("chat: dropped subscriber %d, buffer full", id)
		h.Leave(id)
	}
}

// ResolveHandle performs a case-insensitive lookup of a participant's
// user id by handle, for /who and /msg resolution.
func (h *Hub) ResolveHandle(name string) (int64, bool) {
	lower := strings.ToLower(name)
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, s := range h.subs {
		if strings.ToLower(s.handle) == lower {
			return s.userID, true
		}
	}
	return 0, false
}

// Participants returns the handles of everyone currently in chat, for
// /who rendering.
func (h *Hub) Participants() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]string, 0, len(h.subs))
	for _, s := range h.subs {
		out = append(out, s.handle)
	}
	return out
}
