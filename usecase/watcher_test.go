package usecase_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omnidesk/channeledge/config"
	domainChannel "github.com/omnidesk/channeledge/domains/channel"
	"github.com/omnidesk/channeledge/usecase"
)

func newWatcher(registry *usecase.ChannelRegistry) *usecase.ChannelWatcher {
	return usecase.NewChannelWatcher(registry, nil, config.WatchConfig{Interval: time.Minute})
}

func TestTickJoinsOnlyStatuslessChannels(t *testing.T) {
	registry, _ := newRegistry(&fakeLister{result: twoChannels()})
	_, err := registry.FetchChannels(context.Background(), domainChannel.ListFilter{})
	require.NoError(t, err)

	emitter := &fakeEmitter{}
	registry.AttachEmitter(emitter)
	registry.SetChannelState("c2", domainChannel.UpdateStatus(domainChannel.StatusConnected))

	newWatcher(registry).Tick()

	assert.Equal(t, []string{domainChannel.EventJoin}, emitter.events)
	assert.Equal(t, []string{"c1"}, emitter.ids, "channel with a live status must not be rejoined")
}

func TestTickDeduplicatesJoinsBeforeAnyInboundEvent(t *testing.T) {
	registry, _ := newRegistry(&fakeLister{result: twoChannels()})
	_, _ = registry.FetchChannels(context.Background(), domainChannel.ListFilter{})

	emitter := &fakeEmitter{}
	registry.AttachEmitter(emitter)

	watcher := newWatcher(registry)
	watcher.Tick()
	watcher.Tick()

	assert.Len(t, emitter.ids, 2, "one join per channel, not per tick")
	assert.ElementsMatch(t, []string{"c1", "c2"}, emitter.ids)
}

func TestTickRetriesAfterEmitFailure(t *testing.T) {
	registry, _ := newRegistry(&fakeLister{result: twoChannels()})
	_, _ = registry.FetchChannels(context.Background(), domainChannel.ListFilter{})

	emitter := &fakeEmitter{err: assert.AnError}
	registry.AttachEmitter(emitter)

	watcher := newWatcher(registry)
	watcher.Tick()
	assert.Empty(t, emitter.ids)

	emitter.err = nil
	watcher.Tick()
	assert.Len(t, emitter.ids, 2, "failed joins are retried on the next tick")
}

func TestTickForgetsChannelsRemovedByRefetch(t *testing.T) {
	lister := &fakeLister{result: twoChannels()}
	registry, _ := newRegistry(lister)
	_, _ = registry.FetchChannels(context.Background(), domainChannel.ListFilter{})

	emitter := &fakeEmitter{}
	registry.AttachEmitter(emitter)

	watcher := newWatcher(registry)
	watcher.Tick()
	require.Len(t, emitter.ids, 2)

	// c2 disappears, then comes back on a later fetch.
	lister.result = &domainChannel.ListResult{
		Channels: []domainChannel.Channel{{ID: "c1", Name: "Support WhatsApp"}},
		Total:    1,
	}
	_, _ = registry.FetchChannels(context.Background(), domainChannel.ListFilter{})
	watcher.Tick()

	lister.result = twoChannels()
	_, _ = registry.FetchChannels(context.Background(), domainChannel.ListFilter{})
	watcher.Tick()

	joins := 0
	for _, id := range emitter.ids {
		if id == "c2" {
			joins++
		}
	}
	assert.Equal(t, 2, joins, "a channel that left and returned is joined again")
}
