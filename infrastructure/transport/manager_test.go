package transport_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omnidesk/channeledge/config"
	"github.com/omnidesk/channeledge/infrastructure/transport"
)

type wsServer struct {
	*httptest.Server

	mu       sync.Mutex
	conns    []*websocket.Conn
	received []transport.Frame
	headers  []http.Header
}

func newWSServer(t *testing.T) *wsServer {
	t.Helper()
	upgrader := websocket.Upgrader{}

	s := &wsServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		s.mu.Lock()
		s.conns = append(s.conns, conn)
		s.headers = append(s.headers, r.Header.Clone())
		s.mu.Unlock()

		for {
			var frame transport.Frame
			if err := conn.ReadJSON(&frame); err != nil {
				return
			}
			s.mu.Lock()
			s.received = append(s.received, frame)
			s.mu.Unlock()
		}
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *wsServer) wsURL() string {
	return "ws" + strings.TrimPrefix(s.URL, "http")
}

func (s *wsServer) push(t *testing.T, frame transport.Frame) {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	require.NotEmpty(t, s.conns)
	require.NoError(t, s.conns[len(s.conns)-1].WriteJSON(frame))
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func testTransportConfig() config.TransportConfig {
	return config.TransportConfig{
		ReconnectAttempts: 3,
		ReconnectDelay:    20 * time.Millisecond,
		HandshakeTimeout:  time.Second,
	}
}

func TestConnectIsIdempotentPerNamespace(t *testing.T) {
	server := newWSServer(t)
	manager := transport.NewManager(server.wsURL(), nil, testTransportConfig())
	defer manager.CloseAll()

	first := manager.Connect(context.Background(), transport.NamespaceChannel)
	second := manager.Connect(context.Background(), transport.NamespaceChannel)

	assert.Same(t, first, second, "one live connection object per namespace")

	other := manager.Connect(context.Background(), transport.NamespaceMessage)
	assert.NotSame(t, first, other)
}

func TestConnectSendsBearerToken(t *testing.T) {
	server := newWSServer(t)
	token := func(context.Context) (string, error) { return "transport-token", nil }
	manager := transport.NewManager(server.wsURL(), token, testTransportConfig())
	defer manager.CloseAll()

	manager.Connect(context.Background(), transport.NamespaceChannel)
	waitFor(t, func() bool { return manager.IsConnected(transport.NamespaceChannel) })

	server.mu.Lock()
	defer server.mu.Unlock()
	require.Len(t, server.headers, 1)
	assert.Equal(t, "Bearer transport-token", server.headers[0].Get("Authorization"))
}

func TestEmitAndDispatch(t *testing.T) {
	server := newWSServer(t)
	manager := transport.NewManager(server.wsURL(), nil, testTransportConfig())
	defer manager.CloseAll()

	conn := manager.Connect(context.Background(), transport.NamespaceChannel)

	var mu sync.Mutex
	var inbound []string
	conn.Handle("channel.started", func(data json.RawMessage) {
		mu.Lock()
		inbound = append(inbound, string(data))
		mu.Unlock()
	})

	waitFor(t, func() bool { return conn.IsConnected() })

	require.NoError(t, conn.Emit("channel.join", map[string]string{"channelId": "c1"}))
	waitFor(t, func() bool {
		server.mu.Lock()
		defer server.mu.Unlock()
		return len(server.received) == 1
	})
	server.mu.Lock()
	assert.Equal(t, "channel.join", server.received[0].Event)
	server.mu.Unlock()

	server.push(t, transport.Frame{Event: "channel.started", Data: json.RawMessage(`{"channelId":"c1"}`)})
	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(inbound) == 1
	})
	assert.JSONEq(t, `{"channelId":"c1"}`, inbound[0])
}

func TestDisconnectRemovesAndAllowsFreshConnect(t *testing.T) {
	server := newWSServer(t)
	manager := transport.NewManager(server.wsURL(), nil, testTransportConfig())
	defer manager.CloseAll()

	first := manager.Connect(context.Background(), transport.NamespaceChannel)
	waitFor(t, func() bool { return first.IsConnected() })

	manager.Disconnect(transport.NamespaceChannel)
	assert.False(t, manager.IsConnected(transport.NamespaceChannel))
	_, ok := manager.Get(transport.NamespaceChannel)
	assert.False(t, ok)

	second := manager.Connect(context.Background(), transport.NamespaceChannel)
	assert.NotSame(t, first, second)
	waitFor(t, func() bool { return second.IsConnected() })
}

func TestEmitWhileDownReturnsError(t *testing.T) {
	conn := transport.NewManager("ws://127.0.0.1:1", nil, config.TransportConfig{
		ReconnectAttempts: 1,
		ReconnectDelay:    10 * time.Millisecond,
		HandshakeTimeout:  100 * time.Millisecond,
	}).Connect(context.Background(), transport.NamespaceSystem)

	err := conn.Emit("channel.join", map[string]string{"channelId": "c1"})
	assert.ErrorIs(t, err, transport.ErrNotConnected)
}

func TestTokenFetchFailureIsNonFatal(t *testing.T) {
	server := newWSServer(t)
	token := func(context.Context) (string, error) { return "", assert.AnError }
	manager := transport.NewManager(server.wsURL(), token, testTransportConfig())
	defer manager.CloseAll()

	manager.Connect(context.Background(), transport.NamespaceChannel)
	waitFor(t, func() bool { return manager.IsConnected(transport.NamespaceChannel) })

	server.mu.Lock()
	defer server.mu.Unlock()
	require.Len(t, server.headers, 1)
	assert.Empty(t, server.headers[0].Get("Authorization"), "connects without auth and lets the server decide")
}

func TestReconnectAfterServerDrop(t *testing.T) {
	server := newWSServer(t)
	manager := transport.NewManager(server.wsURL(), nil, testTransportConfig())
	defer manager.CloseAll()

	conn := manager.Connect(context.Background(), transport.NamespaceChannel)
	waitFor(t, func() bool { return conn.IsConnected() })

	server.mu.Lock()
	_ = server.conns[0].Close()
	server.mu.Unlock()

	waitFor(t, func() bool {
		server.mu.Lock()
		defer server.mu.Unlock()
		return len(server.conns) == 2
	})
	waitFor(t, func() bool { return conn.IsConnected() })
}
