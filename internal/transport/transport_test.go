// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

func newTestPair(t *testing.T) (server *Adapter, client *websocket.Conn) {
	t.Helper()
	serverCh := make(chan *Adapter, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		serverCh <- New(conn)
	}))
	t.Cleanup(srv.Close)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	clientConn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { clientConn.Close() })

	server = <-serverCh
	t.Cleanup(func() { server.Close() })
	return server, clientConn
}

func TestAdapter_WriteTerminalDeliversBinaryFrame(t *testing.T) {
	server, client := newTestPair(t)

	require.NoError(t, server.WriteTerminal([]byte("hello terminal")))

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	msgType, data, err := client.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.BinaryMessage, msgType)
	assert.Equal(t, "hello terminal", string(data))
}

func TestAdapter_WriteControlDeliversJSONTextFrame(t *testing.T) {
	server, client := newTestPair(t)

	require.NoError(t, server.WriteControl(Control{Type: "timer", Remaining: 5, HasMail: true}))

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	msgType, data, err := client.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.TextMessage, msgType)
	assert.Contains(t, string(data), `"type":"timer"`)
	assert.Contains(t, string(data), `"remaining":5`)
}

func TestAdapter_ReadLoopDecodesBinaryAsInput(t *testing.T) {
	server, client := newTestPair(t)
	out := make(chan Message, 4)
	go server.ReadLoop(out)

	require.NoError(t, client.WriteMessage(websocket.BinaryMessage, []byte("keystroke")))

	select {
	case m := <-out:
		assert.Equal(t, "keystroke", string(m.Input))
		assert.Nil(t, m.Token)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for decoded message")
	}
}

func TestAdapter_ReadLoopDecodesTokenFrame(t *testing.T) {
	server, client := newTestPair(t)
	out := make(chan Message, 4)
	go server.ReadLoop(out)

	require.NoError(t, client.WriteMessage(websocket.TextMessage, []byte(`{"type":"token","value":"abc123"}`)))

	select {
	case m := <-out:
		require.NotNil(t, m.Token)
		assert.Equal(t, "abc123", m.Token.Value)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for decoded token")
	}
}

func TestAdapter_ReadLoopClosesOutOnDisconnect(t *testing.T) {
	server, client := newTestPair(t)
	out := make(chan Message, 4)
	done := make(chan struct{})
	go func() {
		server.ReadLoop(out)
		close(done)
	}()

	client.Close()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("ReadLoop did not exit after client disconnect")
	}
	_, ok := <-out
	assert.False(t, ok, "out channel must be closed once ReadLoop returns")
}
