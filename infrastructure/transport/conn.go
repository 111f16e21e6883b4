package transport

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// Frame is one protocol message on a namespace connection.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Handler receives the decoded payload of one inbound event.
type Handler = func(data json.RawMessage)

// Conn is a persistent websocket connection for one namespace. It redials
// on failure up to a bounded attempt count with a fixed delay; read and
// connect errors are logged, never surfaced to callers.
type Conn struct {
	Namespace string

	url              string
	token            string
	attempts         int
	delay            time.Duration
	handshakeTimeout time.Duration

	mu       sync.Mutex
	ws       *websocket.Conn
	handlers map[string][]Handler

	closeOnce sync.Once
	closed    chan struct{}
}

func newConn(url, namespace, token string, attempts int, delay, handshakeTimeout time.Duration) *Conn {
	return &Conn{
		Namespace:        namespace,
		url:              url,
		token:            token,
		attempts:         attempts,
		delay:            delay,
		handshakeTimeout: handshakeTimeout,
		handlers:         make(map[string][]Handler),
		closed:           make(chan struct{}),
	}
}

// Handle registers fn for inbound frames named event. Registration order is
// preserved per event.
func (c *Conn) Handle(event string, fn Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[event] = append(c.handlers[event], fn)
}

// Emit sends an outbound frame. Returns an error only when the connection
// is currently down; the frame is not queued.
func (c *Conn) Emit(event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	frame, err := json.Marshal(Frame{Event: event, Data: data})
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ws == nil {
		return ErrNotConnected
	}
	return c.ws.WriteMessage(websocket.TextMessage, frame)
}

// IsConnected reports whether the websocket is currently open.
func (c *Conn) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws != nil
}

// Close stops the reconnect loop and closes the socket.
func (c *Conn) Close() {
	c.closeOnce.Do(func() { close(c.closed) })

	c.mu.Lock()
	ws := c.ws
	c.ws = nil
	c.mu.Unlock()

	if ws != nil {
		_ = ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		_ = ws.Close()
	}
}

func (c *Conn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

// run dials and reads until the bounded attempt budget is spent or Close
// is called. One run consumes one attempt per failed dial; a successful
// session resets the budget.
func (c *Conn) run() {
	remaining := c.attempts
	for remaining > 0 && !c.isClosed() {
		if err := c.dial(); err != nil {
			remaining--
			logrus.Errorf("[TRANSPORT] Connect %s failed (%d attempts left): %v", c.Namespace, remaining, err)
			if remaining == 0 || c.isClosed() {
				break
			}
			c.sleep()
			continue
		}

		logrus.Infof("[TRANSPORT] Namespace %s connected", c.Namespace)
		remaining = c.attempts
		c.readLoop()

		if c.isClosed() {
			return
		}
		logrus.Warnf("[TRANSPORT] Namespace %s disconnected, reconnecting", c.Namespace)
		c.sleep()
	}
	logrus.Errorf("[TRANSPORT] Namespace %s gave up reconnecting", c.Namespace)
}

func (c *Conn) sleep() {
	select {
	case <-time.After(c.delay):
	case <-c.closed:
	}
}

func (c *Conn) dial() error {
	dialer := &websocket.Dialer{HandshakeTimeout: c.handshakeTimeout}

	header := http.Header{}
	if c.token != "" {
		header.Set("Authorization", "Bearer "+c.token)
	}

	ws, _, err := dialer.Dial(c.url, header)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.ws = ws
	c.mu.Unlock()
	return nil
}

func (c *Conn) readLoop() {
	c.mu.Lock()
	ws := c.ws
	c.mu.Unlock()
	if ws == nil {
		return
	}

	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			if !c.isClosed() && websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logrus.Errorf("[TRANSPORT] Read error on %s: %v", c.Namespace, err)
			}
			break
		}
		c.dispatch(raw)
	}

	c.mu.Lock()
	if c.ws == ws {
		c.ws = nil
	}
	c.mu.Unlock()
	_ = ws.Close()
}

// dispatch decodes one frame and fans it out. Handler panics are isolated
// so a bad consumer cannot kill the read loop.
func (c *Conn) dispatch(raw []byte) {
	var frame Frame
	if err := json.Unmarshal(raw, &frame); err != nil {
		logrus.Errorf("[TRANSPORT] Bad frame on %s: %v", c.Namespace, err)
		return
	}

	c.mu.Lock()
	list := make([]Handler, len(c.handlers[frame.Event]))
	copy(list, c.handlers[frame.Event])
	c.mu.Unlock()

	for _, fn := range list {
		func() {
			defer func() {
				if r := recover(); r != nil {
					logrus.Errorf("[TRANSPORT] Handler panic on %s/%s: %v", c.Namespace, frame.Event, r)
				}
			}()
			fn(frame.Data)
		}()
	}
}
