// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package transport is the Transport Adapter: it wraps a
// *websocket.Conn and presents the Session with an inbound byte
// stream and two outbound paths — terminal bytes and control
// messages — per spec §4.1. Grounded on the teacher's WebSocket
// handler (internal/api/handlers/terminal.go): single write mutex
// (gorilla requires one writer), ping/pong keepalive loop.
package transport

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ocgully/construct/internal/bbserr"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	writeWait  = 10 * time.Second
)

// Control is a control-message frame: {"type":"timer",...},
// {"type":"bell"}, {"type":"logout"}.
type Control struct {
	Type      string `json:"type"`
	Remaining int    `json:"remaining,omitempty"`
	HasMail   bool   `json:"has_mail,omitempty"`
}

// ClientToken is the one-shot {"type":"token","value":"..."} frame a
// client may send immediately after connecting to bypass ceremony.
type ClientToken struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// Adapter multiplexes binary terminal frames and JSON control frames
// onto a single websocket connection.
type Adapter struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
	stopPing chan struct{}
	pingWG   sync.WaitGroup
}

// New wraps an already-upgraded connection and starts its ping loop.
func New(conn *websocket.Conn) *Adapter {
	a := &Adapter{conn: conn, stopPing: make(chan struct{})}
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	a.startPing()
	return a
}

func (a *Adapter) startPing() {
	a.pingWG.Add(1)
	go func() {
		defer a.pingWG.Done()
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-a.stopPing:
				return
			case <-ticker.C:
				a.writeMu.Lock()
				err := a.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
				a.writeMu.Unlock()
				if err != nil {
					return
				}
			}
		}
	}()
}

// WriteTerminal sends a binary frame of terminal output bytes.
func (a *Adapter) WriteTerminal(b []byte) error {
	a.writeMu.Lock()
	defer a.writeMu.Unlock()
	a.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := a.conn.WriteMessage(websocket.BinaryMessage, b); err != nil {
		return bbserr.Wrap(bbserr.Transport, "write terminal frame", err)
	}
	return nil
}

// WriteControl sends a JSON text frame carrying a control message.
func (a *Adapter) WriteControl(c Control) error {
	var v any = c
	if c.Type == "timer" {
		// Timer frames always carry both fields, including remaining 0.
		v = struct {
			Type      string `json:"type"`
			Remaining int    `json:"remaining"`
			HasMail   bool   `json:"has_mail"`
		}{c.Type, c.Remaining, c.HasMail}
	}
	payload, err := json.Marshal(v)
	if err != nil {
		return bbserr.Wrap(bbserr.Protocol, "encode control message", err)
	}
	a.writeMu.Lock()
	defer a.writeMu.Unlock()
	a.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if werr := a.conn.WriteMessage(websocket.TextMessage, payload); werr != nil {
		return bbserr.Wrap(bbserr.Transport, "write control frame", werr)
	}
	return nil
}

// Message is one decoded inbound unit: either terminal input bytes,
// or a parsed token control frame sent once at connect time.
type Message struct {
	Input []byte
	Token *ClientToken
}

// ReadLoop owns the read half. It pushes decoded Messages onto out
// until the connection errors or closes, then closes out and returns.
// Binary frames become Input; short JSON text frames with
// {"type":"token",...} become Token; any other text frame is ignored
// as a malformed control message (Protocol-class, non-fatal).
func (a *Adapter) ReadLoop(out chan<- Message) error {
	defer close(out)
	for {
		a.conn.SetReadDeadline(time.Now().Add(pongWait))
		msgType, data, err := a.conn.ReadMessage()
		if err != nil {
			return bbserr.Wrap(bbserr.Transport, "read frame", err)
		}

		switch msgType {
		case websocket.BinaryMessage:
			out <- Message{Input: data}
		case websocket.TextMessage:
			var tok ClientToken
			if jerr := json.Unmarshal(data, &tok); jerr == nil && tok.Type == "token" {
				out <- Message{Token: &tok}
			}
			// Anything else on a text frame that isn't a known
			// control type is dropped; clients only ever send "token".
		}
	}
}

// Close stops the ping loop and closes the underlying connection.
func (a *Adapter) Close() error {
	select {
	case <-a.stopPing:
	default:
		close(a.stopPing)
	}
	a.pingWG.Wait()
	return a.conn.Close()
}
