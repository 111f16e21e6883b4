package websocket

import (
	"context"
	"encoding/json"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"

	domainChannel "github.com/omnidesk/channeledge/domains/channel"
	"github.com/omnidesk/channeledge/pkg/eventbus"
	"github.com/omnidesk/channeledge/usecase"
)

type client struct{}

// BroadcastMessage is one frame pushed to admin consoles.
type BroadcastMessage struct {
	Code      string `json:"code"`
	Message   string `json:"message,omitempty"`
	ChannelID string `json:"channel_id,omitempty"`
	Result    any    `json:"result,omitempty"`
}

// Hub fans registry mutations out to every connected admin console. It is
// an explicit object so tests can run independent instances.
type Hub struct {
	clients    map[*websocket.Conn]client
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	broadcast  chan BroadcastMessage

	bus      *eventbus.Bus
	registry *usecase.ChannelRegistry
	subs     []*eventbus.Subscription
}

func NewHub(bus *eventbus.Bus, registry *usecase.ChannelRegistry) *Hub {
	return &Hub{
		clients:    make(map[*websocket.Conn]client),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		broadcast:  make(chan BroadcastMessage, 64),
		bus:        bus,
		registry:   registry,
	}
}

// Run pumps hub events until ctx is cancelled. Bus subscriptions are
// removed on exit rather than cancelling anything in flight.
func (h *Hub) Run(ctx context.Context) {
	h.subs = append(h.subs,
		h.bus.On(domainChannel.TopicUpdated, func(payload any) {
			h.enqueue(BroadcastMessage{Code: "CHANNEL_UPDATE", Result: payload})
		}),
		h.bus.On(domainChannel.TopicAuthenticated, func(payload any) {
			id, _ := payload.(string)
			h.enqueue(BroadcastMessage{Code: "CHANNEL_AUTHENTICATED", ChannelID: id})
		}),
		h.bus.On(domainChannel.TopicMessageReceived, func(payload any) {
			h.enqueue(BroadcastMessage{Code: "MESSAGE_RECEIVED", Result: payload})
		}),
	)
	defer func() {
		for _, s := range h.subs {
			s.Off()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case conn := <-h.register:
			h.clients[conn] = client{}
			logrus.Debug("[WS] Connection registered")

		case conn := <-h.unregister:
			delete(h.clients, conn)
			logrus.Debug("[WS] Connection unregistered")

		case message := <-h.broadcast:
			h.broadcastToLocal(message)
		}
	}
}

// enqueue drops frames when the hub is saturated; the fan-out is a
// convenience, not a guarantee.
func (h *Hub) enqueue(message BroadcastMessage) {
	select {
	case h.broadcast <- message:
	default:
		logrus.Warn("[WS] Broadcast queue full, frame dropped")
	}
}

func (h *Hub) broadcastToLocal(message BroadcastMessage) {
	marshalMessage, err := json.Marshal(message)
	if err != nil {
		logrus.Errorf("[WS] Marshal error: %v", err)
		return
	}

	for conn := range h.clients {
		if err := conn.WriteMessage(websocket.TextMessage, marshalMessage); err != nil {
			logrus.Errorf("[WS] Write error: %v", err)
			h.closeConnection(conn)
		}
	}
}

func (h *Hub) closeConnection(conn *websocket.Conn) {
	_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
	_ = conn.Close()
	delete(h.clients, conn)
}

func (h *Hub) RegisterRoutes(app fiber.Router) {
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return c.SendStatus(fiber.StatusUpgradeRequired)
	})

	app.Get("/ws", websocket.New(func(conn *websocket.Conn) {
		defer func() {
			h.unregister <- conn
			_ = conn.Close()
		}()

		h.register <- conn

		for {
			messageType, message, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					logrus.Println("read error:", err)
				}
				return
			}

			if messageType != websocket.TextMessage {
				logrus.Println("unsupported message type:", messageType)
				continue
			}

			var messageData BroadcastMessage
			if err := json.Unmarshal(message, &messageData); err != nil {
				logrus.Println("unmarshal error:", err)
				return
			}

			if messageData.Code == "FETCH_CHANNELS" {
				h.enqueue(BroadcastMessage{
					Code:    "CHANNEL_UPDATE",
					Message: "Current registry view",
					Result:  h.registry.Snapshot(),
				})
			}
		}
	}))
}
