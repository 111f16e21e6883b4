package transport

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/omnidesk/channeledge/config"
)

// ErrNotConnected is returned by Emit while the socket is down.
var ErrNotConnected = errors.New("transport: not connected")

// Namespaces carried by the backend transport.
const (
	NamespaceAuth    = "auth"
	NamespaceChannel = "channel"
	NamespaceMessage = "message"
	NamespaceSystem  = "system"
)

// TokenFunc mints a transport token for a connection handshake.
type TokenFunc func(ctx context.Context) (string, error)

// Manager owns at most one live connection per namespace. Only the manager
// creates and destroys connections; everything else borrows them.
type Manager struct {
	mu    sync.Mutex
	conns map[string]*Conn

	baseURL string
	token   TokenFunc
	cfg     config.TransportConfig
}

func NewManager(baseURL string, token TokenFunc, cfg config.TransportConfig) *Manager {
	return &Manager{
		conns:   make(map[string]*Conn),
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		cfg:     cfg,
	}
}

// Connect returns the existing connection for namespace or creates one.
// The token fetch completes before the connection is handed back; a failed
// fetch yields an unauthenticated connection the server will reject, which
// is non-fatal so a later Disconnect/Connect cycle can retry with auth.
func (m *Manager) Connect(ctx context.Context, namespace string) *Conn {
	m.mu.Lock()
	defer m.mu.Unlock()

	if conn, ok := m.conns[namespace]; ok {
		return conn
	}

	token := ""
	if m.token != nil {
		t, err := m.token(ctx)
		if err != nil {
			logrus.Errorf("[TRANSPORT] Token fetch for %s failed, connecting without auth: %v", namespace, err)
		} else {
			token = t
		}
	}

	conn := newConn(m.baseURL+"/"+namespace, namespace, token,
		m.cfg.ReconnectAttempts, m.cfg.ReconnectDelay, m.cfg.HandshakeTimeout)
	m.conns[namespace] = conn

	go conn.run()
	return conn
}

// Disconnect closes and removes the namespace connection. A subsequent
// Connect creates a fresh connection with a fresh token.
func (m *Manager) Disconnect(namespace string) {
	m.mu.Lock()
	conn, ok := m.conns[namespace]
	delete(m.conns, namespace)
	m.mu.Unlock()

	if ok {
		conn.Close()
		logrus.Infof("[TRANSPORT] Namespace %s closed", namespace)
	}
}

// IsConnected reports whether a live socket exists for namespace.
func (m *Manager) IsConnected(namespace string) bool {
	m.mu.Lock()
	conn, ok := m.conns[namespace]
	m.mu.Unlock()
	return ok && conn.IsConnected()
}

// Get returns the registered connection without creating one.
func (m *Manager) Get(namespace string) (*Conn, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	conn, ok := m.conns[namespace]
	return conn, ok
}

// CloseAll tears down every namespace connection.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	conns := m.conns
	m.conns = make(map[string]*Conn)
	m.mu.Unlock()

	for ns, conn := range conns {
		conn.Close()
		logrus.Infof("[TRANSPORT] Namespace %s closed", ns)
	}
}
