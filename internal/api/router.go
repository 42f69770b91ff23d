// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package api wires the Construct's single WebSocket route and a
// health-check endpoint onto a gorilla/mux router, grounded on the
// teacher's internal/api/router.go shape (global middleware chain,
// tracked connections for graceful shutdown).
package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/ocgully/construct/internal/api/middleware"
	"github.com/ocgully/construct/internal/session"
	"github.com/ocgully/construct/internal/transport"
)

// Dependencies holds what the router needs to serve requests.
type Dependencies struct {
	Shared  *session.Shared
	Version string
}

// Handler owns the live WebSocket connection set, so Shutdown can force
// every open session to observe a closed connection and finalize.
type Handler struct {
	deps     Dependencies
	upgrader websocket.Upgrader

	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
}

// NewHandler builds a Handler bound to deps.
func NewHandler(deps Dependencies) *Handler {
	return &Handler{
		deps: deps,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		conns: make(map[*websocket.Conn]struct{}),
	}
}

// NewRouter builds the mux.Router serving /ws and /healthz.
func NewRouter(h *Handler) *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.Logging)
	r.Use(middleware.Recovery)

	r.HandleFunc("/ws", h.serveWS).Methods(http.MethodGet)
	r.HandleFunc("/healthz", h.serveHealthz).Methods(http.MethodGet)
	return r
}

func (h *Handler) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("api: websocket upgrade: %v", err)
		return
	}

	connID := uuid.NewString()
	h.track(conn)
	defer h.untrack(conn)

	adapter := transport.New(conn)
	sess := session.New(h.deps.Shared, adapter)

	log.Printf("api: connection %s opened from %s", connID, r.RemoteAddr)
	sess.Run(r.Context())
	log.Printf("api: connection %s closed", connID)
}

type healthPayload struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Nodes    int    `json:"nodes_total"`
	Occupied int    `json:"nodes_occupied"`
}

func (h *Handler) serveHealthz(w http.ResponseWriter, r *http.Request) {
	total, occupied := h.deps.Shared.Nodes.Count()
	payload := healthPayload{Status: "ok", Version: h.deps.Version, Nodes: total, Occupied: occupied}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(payload)
}

func (h *Handler) track(conn *websocket.Conn) {
	h.mu.Lock()
	h.conns[conn] = struct{}{}
	h.mu.Unlock()
}

func (h *Handler) untrack(conn *websocket.Conn) {
	h.mu.Lock()
	delete(h.conns, conn)
	h.mu.Unlock()
}

// Shutdown closes every tracked connection so each Session's blocked
// read returns an error and its Run goroutine finalizes, rather than
// hanging until the client eventually disconnects.
func (h *Handler) Shutdown(ctx context.Context) {
	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.conns))
	for c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	for _, c := range conns {
		c.Close()
	}
}
