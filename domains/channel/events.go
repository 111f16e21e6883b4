package channel

// Outbound protocol events (edge -> backend), channel namespace.
const (
	EventJoin        = "channel.join"
	EventLeave       = "channel.leave"
	EventStatusQuery = "channel.status"
)

// Inbound protocol events (backend -> edge).
const (
	EventJoined         = "channel.joined"
	EventStarted        = "channel.started"
	EventAuthenticated  = "channel.authenticated"
	EventStatusResponse = "channel.status_response"
	EventDisconnected   = "channel.disconnected"
	EventMessage        = "message.received"
)

// Bus topics fanned out to unrelated in-process consumers.
const (
	TopicAuthenticated   = "channel:authenticated"
	TopicUpdated         = "channel:updated"
	TopicMessageReceived = "message:received"
)

// JoinPayload is the body for join, leave and status query events.
type JoinPayload struct {
	ChannelID string `json:"channelId"`
}

// StatusInfo is the connectivity snapshot inside a status_response.
type StatusInfo struct {
	IsActive        bool   `json:"isActive"`
	IsConnected     bool   `json:"isConnected"`
	IsAuthenticated bool   `json:"isAuthenticated"`
	LastActivity    string `json:"lastActivity,omitempty"`
}

// Event is one inbound protocol frame for a channel.
type Event struct {
	Name         string      `json:"event"`
	ChannelID    string      `json:"channelId"`
	Status       *StatusInfo `json:"status,omitempty"`
	Reason       string      `json:"reason,omitempty"`
	LastActivity string      `json:"lastActivity,omitempty"`
	Timestamp    int64       `json:"timestamp,omitempty"`
	Data         any         `json:"data,omitempty"`
}

// MessageReceived is the payload published on TopicMessageReceived.
type MessageReceived struct {
	ChannelID string `json:"channelId"`
	Timestamp int64  `json:"timestamp"`
	Data      any    `json:"data"`
}
