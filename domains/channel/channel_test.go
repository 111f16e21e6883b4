package channel_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/omnidesk/channeledge/domains/channel"
)

func TestStateApplyIsStrictMerge(t *testing.T) {
	state := &channel.State{}

	state.Apply(channel.UpdateStatus(channel.StatusConnected))
	state.Apply(channel.StateUpdate{Metadata: map[string]any{"lastActivity": "2026-08-29T10:00:00Z"}})

	assert.Equal(t, channel.StatusConnected, state.Status, "metadata update must not erase status")
	assert.Equal(t, "2026-08-29T10:00:00Z", state.Metadata["lastActivity"])

	state.Apply(channel.UpdateJoined(true))
	assert.Equal(t, channel.StatusConnected, state.Status)
	assert.True(t, state.HasJoined)
	assert.Equal(t, "2026-08-29T10:00:00Z", state.Metadata["lastActivity"], "joined update must not erase metadata")
}

func TestStateApplyMergesMetadataKeys(t *testing.T) {
	state := &channel.State{Metadata: map[string]any{"battery": 80}}

	state.Apply(channel.StateUpdate{Metadata: map[string]any{"lastActivity": "now"}})

	assert.Equal(t, 80, state.Metadata["battery"])
	assert.Equal(t, "now", state.Metadata["lastActivity"])
}

func TestStateClone(t *testing.T) {
	var nilState *channel.State
	assert.Nil(t, nilState.Clone())

	state := &channel.State{Status: channel.StatusReady, Metadata: map[string]any{"k": "v"}}
	cp := state.Clone()
	cp.Metadata["k"] = "changed"

	assert.Equal(t, "v", state.Metadata["k"], "clone must not share metadata")
}

func TestListFilterValidate(t *testing.T) {
	assert.NoError(t, channel.ListFilter{}.Validate())
	assert.NoError(t, channel.ListFilter{Type: "WHATSAPP", Provider: "META", Limit: 50, SortDir: "asc"}.Validate())
	assert.Error(t, channel.ListFilter{Type: "PIGEON"}.Validate())
	assert.Error(t, channel.ListFilter{SortDir: "sideways"}.Validate())
	assert.Error(t, channel.ListFilter{Limit: 10000}.Validate())
}
