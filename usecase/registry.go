package usecase

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	domainChannel "github.com/omnidesk/channeledge/domains/channel"
	"github.com/omnidesk/channeledge/pkg/eventbus"
)

// ChannelLister abstracts the backend channel list source.
type ChannelLister interface {
	ListChannels(ctx context.Context, filter domainChannel.ListFilter) (*domainChannel.ListResult, error)
}

// Emitter sends outbound protocol events on the channel namespace.
type Emitter interface {
	Emit(event string, payload any) error
}

// ChannelRegistry is the live-view cache of the tenant's channels: the list
// hydrated over REST merged with state from inbound transport events. It is
// the sole object UI consumers observe.
type ChannelRegistry struct {
	mu      sync.Mutex
	entries []*domainChannel.Channel
	index   map[string]*domainChannel.Channel
	total   int

	lister  ChannelLister
	bus     *eventbus.Bus
	emitter Emitter
}

func NewChannelRegistry(lister ChannelLister, bus *eventbus.Bus) *ChannelRegistry {
	return &ChannelRegistry{
		index:  make(map[string]*domainChannel.Channel),
		lister: lister,
		bus:    bus,
	}
}

// AttachEmitter wires the outbound side. Join, leave and the status query
// side effect are no-ops with an error until a transport is attached.
func (r *ChannelRegistry) AttachEmitter(e Emitter) {
	r.mu.Lock()
	r.emitter = e
	r.mu.Unlock()
}

// FetchChannels hydrates the entry set over REST and replaces it wholesale.
// Live state attached to entries still present is preserved by id so a
// background refresh can never drop a channel's status. On error the
// previous list stays in place.
func (r *ChannelRegistry) FetchChannels(ctx context.Context, filter domainChannel.ListFilter) ([]domainChannel.Channel, error) {
	result, err := r.lister.ListChannels(ctx, filter)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	prev := r.index
	entries := make([]*domainChannel.Channel, 0, len(result.Channels))
	index := make(map[string]*domainChannel.Channel, len(result.Channels))
	for i := range result.Channels {
		ch := result.Channels[i]
		if old, ok := prev[ch.ID]; ok && old.State != nil {
			ch.State = old.State.Clone()
		}
		entry := &ch
		entries = append(entries, entry)
		index[ch.ID] = entry
	}
	r.entries = entries
	r.index = index
	r.total = result.Total
	snapshot := r.snapshotLocked()
	r.mu.Unlock()

	r.notify(snapshot)
	return snapshot, nil
}

// SetChannelState merges a partial update into the entry's state. Unknown
// ids are a no-op; a later full refetch reconciles.
func (r *ChannelRegistry) SetChannelState(id string, update domainChannel.StateUpdate) {
	r.mu.Lock()
	entry, ok := r.index[id]
	if !ok {
		r.mu.Unlock()
		return
	}
	if entry.State == nil {
		entry.State = &domainChannel.State{}
	}
	entry.State.Apply(update)
	snapshot := r.snapshotLocked()
	r.mu.Unlock()

	r.notify(snapshot)
}

// JoinChannel requests membership for id on the channel namespace. It does
// not mutate state; status changes only via inbound events.
func (r *ChannelRegistry) JoinChannel(id string) error {
	return r.emit(domainChannel.EventJoin, id)
}

// LeaveChannel requests leaving id on the channel namespace.
func (r *ChannelRegistry) LeaveChannel(id string) error {
	return r.emit(domainChannel.EventLeave, id)
}

// QueryStatus asks the backend for id's connectivity snapshot.
func (r *ChannelRegistry) QueryStatus(id string) error {
	return r.emit(domainChannel.EventStatusQuery, id)
}

func (r *ChannelRegistry) emit(event, id string) error {
	r.mu.Lock()
	e := r.emitter
	r.mu.Unlock()

	if e == nil {
		return ErrNoTransport
	}
	return e.Emit(event, domainChannel.JoinPayload{ChannelID: id})
}

// Snapshot returns a stable copy of the entry list in fetch order.
func (r *ChannelRegistry) Snapshot() []domainChannel.Channel {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

// Get returns a copy of one entry.
func (r *ChannelRegistry) Get(id string) (domainChannel.Channel, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.index[id]
	if !ok {
		return domainChannel.Channel{}, false
	}
	cp := *entry
	cp.State = entry.State.Clone()
	return cp, true
}

// Total returns the backend-reported total for the last fetch.
func (r *ChannelRegistry) Total() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.total
}

func (r *ChannelRegistry) snapshotLocked() []domainChannel.Channel {
	return lo.Map(r.entries, func(entry *domainChannel.Channel, _ int) domainChannel.Channel {
		cp := *entry
		cp.State = entry.State.Clone()
		return cp
	})
}

// Subscribe registers fn for every registry mutation. The callback receives
// a snapshot; callers unmount by calling Off on the returned subscription.
func (r *ChannelRegistry) Subscribe(fn func([]domainChannel.Channel)) *eventbus.Subscription {
	return r.bus.On(domainChannel.TopicUpdated, func(payload any) {
		if snapshot, ok := payload.([]domainChannel.Channel); ok {
			fn(snapshot)
		}
	})
}

func (r *ChannelRegistry) notify(snapshot []domainChannel.Channel) {
	r.bus.Emit(domainChannel.TopicUpdated, snapshot)
}

// Apply walks one channel through the connectivity lifecycle. Transitions
// are driven only by inbound events; events for ids absent from the
// registry are dropped, not queued.
func (r *ChannelRegistry) Apply(evt domainChannel.Event) {
	if !r.knows(evt.ChannelID) {
		logrus.Debugf("[REGISTRY] Dropping %s for unknown channel %s", evt.Name, evt.ChannelID)
		return
	}

	switch evt.Name {
	case domainChannel.EventJoined:
		// The ack alone is not informative enough; poll status right away
		// so the UI never sits on a stale readiness view.
		r.SetChannelState(evt.ChannelID, domainChannel.UpdateJoined(true))
		if err := r.QueryStatus(evt.ChannelID); err != nil {
			logrus.Warnf("[REGISTRY] Status query for %s failed: %v", evt.ChannelID, err)
		}

	case domainChannel.EventStarted:
		r.SetChannelState(evt.ChannelID, domainChannel.UpdateStatus(domainChannel.StatusConnecting))

	case domainChannel.EventAuthenticated:
		r.SetChannelState(evt.ChannelID, domainChannel.UpdateStatus(domainChannel.StatusAuthenticated))
		r.bus.Emit(domainChannel.TopicAuthenticated, evt.ChannelID)

	case domainChannel.EventStatusResponse:
		if evt.Status == nil {
			return
		}
		update := domainChannel.UpdateStatus(statusFrom(evt.Status))
		if evt.Status.LastActivity != "" {
			update.Metadata = map[string]any{"lastActivity": evt.Status.LastActivity}
		}
		r.SetChannelState(evt.ChannelID, update)

	case domainChannel.EventDisconnected:
		update := domainChannel.UpdateStatus(domainChannel.StatusDisconnected)
		joined := false
		update.HasJoined = &joined
		r.SetChannelState(evt.ChannelID, update)

	case domainChannel.EventMessage:
		r.bus.Emit(domainChannel.TopicMessageReceived, domainChannel.MessageReceived{
			ChannelID: evt.ChannelID,
			Timestamp: evt.Timestamp,
			Data:      evt.Data,
		})
	}
}

// statusFrom maps a status_response snapshot to a connectivity status. The
// result depends only on the latest {isConnected, isAuthenticated} pair.
func statusFrom(info *domainChannel.StatusInfo) domainChannel.Status {
	switch {
	case info.IsAuthenticated:
		return domainChannel.StatusAuthenticated
	case info.IsConnected:
		return domainChannel.StatusConnected
	default:
		return domainChannel.StatusDisconnected
	}
}

func (r *ChannelRegistry) knows(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.index[id]
	return ok
}

// BindHandlers registers Apply for every inbound channel event on a
// transport connection.
func (r *ChannelRegistry) BindHandlers(conn interface {
	Handle(event string, fn func(data json.RawMessage))
}) {
	for _, name := range []string{
		domainChannel.EventJoined,
		domainChannel.EventStarted,
		domainChannel.EventAuthenticated,
		domainChannel.EventStatusResponse,
		domainChannel.EventDisconnected,
		domainChannel.EventMessage,
	} {
		event := name
		conn.Handle(event, func(data json.RawMessage) {
			var evt domainChannel.Event
			if len(data) > 0 {
				if err := json.Unmarshal(data, &evt); err != nil {
					logrus.Errorf("[REGISTRY] Bad %s payload: %v", event, err)
					return
				}
			}
			evt.Name = event
			r.Apply(evt)
		})
	}
}
