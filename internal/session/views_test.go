// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ocgully/construct/internal/config"
	"github.com/ocgully/construct/internal/menu"
	"github.com/ocgully/construct/internal/service"
	"github.com/ocgully/construct/internal/store"
	"github.com/ocgully/construct/internal/transport"
)

var viewTestUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// newTestConnectedSession wires a Session to a real transport.Adapter
// backed by a live websocket pair, the way newTestPair does for the
// transport package itself — views write through the adapter directly,
// so a nil adapter won't do.
func newTestConnectedSession(t *testing.T, shared *Shared, u *store.User) (*Session, *websocket.Conn) {
	t.Helper()
	serverCh := make(chan *transport.Adapter, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := viewTestUpgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		serverCh <- transport.New(conn)
	}))
	t.Cleanup(srv.Close)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	adapter := <-serverCh
	t.Cleanup(func() { adapter.Close() })

	s := New(shared, adapter)
	s.user = u
	s.nodeID, _ = shared.Nodes.Claim()
	s.menu = menu.Build([]config.MenuItemConfig{
		{Type: "command", Hotkey: "M", Name: "Mail", CommandID: "mail"},
	}, func(string) int { return 0 })

	inbound := make(chan transport.Message, 16)
	readErr := make(chan error, 1)
	go func() { readErr <- adapter.ReadLoop(inbound) }()
	s.inbound = inbound
	s.readErr = readErr

	return s, client
}

func readFrame(t *testing.T, client *websocket.Conn) string {
	t.Helper()
	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := client.ReadMessage()
	require.NoError(t, err)
	return string(data)
}

func sendLine(t *testing.T, client *websocket.Conn, line string) {
	t.Helper()
	require.NoError(t, client.WriteMessage(websocket.BinaryMessage, []byte(line+"\r\n")))
}

func TestExecuteCommand_RendersMenuAfterProfileView(t *testing.T) {
	shared := newTestShared(t)
	u := newTestUser(t, shared, "armitage", "screaming-fist")
	s, client := newTestConnectedSession(t, shared, u)

	done := make(chan service.Action, 1)
	go func() {
		done <- s.executeCommand("profile")
	}()

	profileFrame := readFrame(t, client)
	assert.Contains(t, profileFrame, "PROFILE")
	assert.Contains(t, profileFrame, "armitage")

	sendLine(t, client, "x")

	res := <-done
	assert.Equal(t, service.Continue, res.Kind)
	assert.Contains(t, string(res.Render), "THE CONSTRUCT")
	assert.Contains(t, string(res.Render), "Mail")
}

func TestViewMail_ComposeDeliversToRecipientInbox(t *testing.T) {
	shared := newTestShared(t)
	sender := newTestUser(t, shared, "molly", "razorgirl")
	recipient := newTestUser(t, shared, "case", "wintermute")

	s, client := newTestConnectedSession(t, shared, sender)

	aliveCh := make(chan bool, 1)
	go func() { aliveCh <- s.viewMail() }()

	readFrame(t, client) // initial empty outbound-view inbox screen
	sendLine(t, client, "C")
	readFrame(t, client) // "To (handle):"
	sendLine(t, client, "case")
	readFrame(t, client) // "Subject:"
	sendLine(t, client, "hello")
	readFrame(t, client) // "Message:"
	sendLine(t, client, "meet me at the bridge")

	sentFrame := readFrame(t, client)
	assert.Contains(t, sentFrame, "Sent.")

	readFrame(t, client) // redrawn inbox screen
	sendLine(t, client, "Q")
	assert.True(t, <-aliveCh)

	msgs, err := shared.Store.ListInboxPage(context.Background(), recipient.ID, 1, 10)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "hello", msgs[0].Subject)
	assert.Equal(t, "meet me at the bridge", msgs[0].Body)
}

func TestViewChat_DirectMessageIsPrivateBetweenParticipants(t *testing.T) {
	shared := newTestShared(t)
	alice := newTestUser(t, shared, "alice", "wonderland")
	bob := newTestUser(t, shared, "bob", "builder")
	carol := newTestUser(t, shared, "carol", "singer")

	aliceSession, aliceClient := newTestConnectedSession(t, shared, alice)
	bobSession, bobClient := newTestConnectedSession(t, shared, bob)
	carolSession, carolClient := newTestConnectedSession(t, shared, carol)

	aliceDone := make(chan bool, 1)
	bobDone := make(chan bool, 1)
	carolDone := make(chan bool, 1)

	// Entrants are started one at a time, each one fully drained on
	// every existing client's wire before the next enters, so the
	// welcome/join frame sequence on each socket stays deterministic.
	go func() { aliceDone <- aliceSession.viewChat() }()
	readFrame(t, aliceClient) // welcome
	readFrame(t, aliceClient) // join: alice

	go func() { bobDone <- bobSession.viewChat() }()
	readFrame(t, bobClient) // welcome
	readFrame(t, bobClient) // join: bob
	readFrame(t, aliceClient) // join: bob

	go func() { carolDone <- carolSession.viewChat() }()
	readFrame(t, carolClient) // welcome
	readFrame(t, carolClient) // join: carol
	readFrame(t, aliceClient) // join: carol
	readFrame(t, bobClient)   // join: carol

	sendLine(t, aliceClient, "/msg bob meet me on the bridge")

	bobFrame := readFrame(t, bobClient)
	assert.Contains(t, bobFrame, "private")
	assert.Contains(t, bobFrame, "meet me on the bridge")

	// carol must never see the direct message; the next thing on her
	// wire is either nothing or an unrelated frame, never this body.
	carolClient.SetReadDeadline(time.Now().Add(300 * time.Millisecond))
	_, data, err := carolClient.ReadMessage()
	if err == nil {
		assert.NotContains(t, string(data), "meet me on the bridge")
	}

	sendLine(t, aliceClient, "/quit")
	sendLine(t, bobClient, "/quit")
	sendLine(t, carolClient, "/quit")

	assert.True(t, <-aliceDone)
	assert.True(t, <-bobDone)
	assert.True(t, <-carolDone)
}
