package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/omnidesk/channeledge/config"
	domainChannel "github.com/omnidesk/channeledge/domains/channel"
	"github.com/omnidesk/channeledge/infrastructure/transport"
)

// ChannelWatcher is the consuming loop over the registry: it opens the
// channel namespace, hydrates the list and joins every channel that has
// never been observed live. Join deduplication lives here, not in the
// registry, so a reconnect tick cannot produce a join storm.
type ChannelWatcher struct {
	registry *ChannelRegistry
	manager  *transport.Manager
	interval time.Duration

	mu        sync.Mutex
	requested map[string]bool
}

func NewChannelWatcher(registry *ChannelRegistry, manager *transport.Manager, cfg config.WatchConfig) *ChannelWatcher {
	return &ChannelWatcher{
		registry:  registry,
		manager:   manager,
		interval:  cfg.Interval,
		requested: make(map[string]bool),
	}
}

// Start opens the channel namespace, binds the registry to it and runs the
// join loop until ctx is cancelled. In-flight requests are not cancelled on
// stop; the watcher simply stops listening.
func (w *ChannelWatcher) Start(ctx context.Context) {
	conn := w.manager.Connect(ctx, transport.NamespaceChannel)
	w.registry.AttachEmitter(conn)
	w.registry.BindHandlers(conn)

	if _, err := w.registry.FetchChannels(ctx, domainChannel.ListFilter{}); err != nil {
		logrus.Errorf("[WATCHER] Initial channel fetch failed: %v", err)
	}

	go w.loop(ctx)
}

func (w *ChannelWatcher) loop(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.Tick()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.Tick()
		}
	}
}

// Tick joins every registry channel whose live status is still unset. A
// join request is issued at most once per channel until the entry leaves
// the registry; the request itself never mutates state.
func (w *ChannelWatcher) Tick() {
	snapshot := w.registry.Snapshot()

	w.mu.Lock()
	seen := make(map[string]bool, len(snapshot))
	var due []string
	for _, ch := range snapshot {
		seen[ch.ID] = true
		if ch.State != nil && ch.State.Status != "" {
			continue
		}
		if w.requested[ch.ID] {
			continue
		}
		due = append(due, ch.ID)
		w.requested[ch.ID] = true
	}
	// Forget channels a refetch removed so they rejoin if they come back.
	for id := range w.requested {
		if !seen[id] {
			delete(w.requested, id)
		}
	}
	w.mu.Unlock()

	for _, id := range due {
		if err := w.registry.JoinChannel(id); err != nil {
			logrus.Warnf("[WATCHER] Join %s failed: %v", id, err)
			w.mu.Lock()
			delete(w.requested, id)
			w.mu.Unlock()
		}
	}
}
