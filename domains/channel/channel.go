package channel

import "time"

// Channel is a configured communication endpoint owned by a tenant.
type Channel struct {
	ID              string         `json:"id"`
	Name            string         `json:"name"`
	Type            ChannelType    `json:"type"`
	Provider        Provider       `json:"provider"`
	ProviderAccount string         `json:"provider_account"`
	IsActive        bool           `json:"is_active"`
	DefaultAgentID  string         `json:"default_agent_id,omitempty"`
	CompanyID       string         `json:"company_id"`
	Config          map[string]any `json:"config,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`

	// State is attached only once live data exists; nil means the channel
	// was never observed on the transport.
	State *State `json:"state,omitempty"`
}

type ChannelType string

const (
	ChannelTypeCall      ChannelType = "CALL"
	ChannelTypeEmail     ChannelType = "EMAIL"
	ChannelTypeWhatsApp  ChannelType = "WHATSAPP"
	ChannelTypeTelegram  ChannelType = "TELEGRAM"
	ChannelTypeInstagram ChannelType = "INSTAGRAM"
	ChannelTypeMessenger ChannelType = "MESSENGER"
)

type Provider string

const (
	ProviderMeta    Provider = "META"
	ProviderTwilio  Provider = "TWILIO"
	ProviderCustom  Provider = "CUSTOM"
	ProviderDefault Provider = "DEFAULT"
)

type Status string

const (
	StatusDisconnected  Status = "disconnected"
	StatusConnecting    Status = "connecting"
	StatusConnected     Status = "connected"
	StatusAuthenticated Status = "authenticated"
	StatusReady         Status = "ready"
)

// State is the live connectivity view of a channel.
type State struct {
	Status    Status         `json:"status,omitempty"`
	HasJoined bool           `json:"has_joined"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// StateUpdate is a partial change merged into an existing State. Nil fields
// leave the current value untouched, so an update to one field can never
// erase another.
type StateUpdate struct {
	Status    *Status
	HasJoined *bool
	Metadata  map[string]any
}

// Apply merges u into s field by field. Metadata keys are merged, not
// replaced wholesale.
func (s *State) Apply(u StateUpdate) {
	if u.Status != nil {
		s.Status = *u.Status
	}
	if u.HasJoined != nil {
		s.HasJoined = *u.HasJoined
	}
	if len(u.Metadata) > 0 {
		if s.Metadata == nil {
			s.Metadata = make(map[string]any, len(u.Metadata))
		}
		for k, v := range u.Metadata {
			s.Metadata[k] = v
		}
	}
}

// Clone returns a deep copy so registry snapshots stay immutable.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	cp := &State{Status: s.Status, HasJoined: s.HasJoined}
	if s.Metadata != nil {
		cp.Metadata = make(map[string]any, len(s.Metadata))
		for k, v := range s.Metadata {
			cp.Metadata[k] = v
		}
	}
	return cp
}

func statusPtr(s Status) *Status { return &s }

func boolPtr(b bool) *bool { return &b }

// UpdateStatus builds a StateUpdate that only changes the status.
func UpdateStatus(s Status) StateUpdate {
	return StateUpdate{Status: statusPtr(s)}
}

// UpdateJoined builds a StateUpdate that only changes the joined flag.
func UpdateJoined(joined bool) StateUpdate {
	return StateUpdate{HasJoined: boolPtr(joined)}
}
