package channel

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// ListFilter narrows and pages the channel list fetch.
type ListFilter struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Provider string `json:"provider"`
	IsActive *bool  `json:"is_active"`
	Limit    int    `json:"limit"`
	Offset   int    `json:"offset"`
	SortBy   string `json:"sortBy"`
	SortDir  string `json:"sortDir"`
}

func (f ListFilter) Validate() error {
	return validation.ValidateStruct(&f,
		validation.Field(&f.Type, validation.In(
			string(ChannelTypeCall), string(ChannelTypeEmail),
			string(ChannelTypeWhatsApp), string(ChannelTypeTelegram),
			string(ChannelTypeInstagram), string(ChannelTypeMessenger),
		)),
		validation.Field(&f.Provider, validation.In(
			string(ProviderMeta), string(ProviderTwilio),
			string(ProviderCustom), string(ProviderDefault),
		)),
		validation.Field(&f.Limit, validation.Min(0), validation.Max(500)),
		validation.Field(&f.Offset, validation.Min(0)),
		validation.Field(&f.SortDir, validation.In("asc", "desc")),
	)
}

// ListResult is the backend response for a channel list fetch.
type ListResult struct {
	Channels []Channel `json:"channels"`
	Total    int       `json:"total"`
	Limit    int       `json:"limit"`
	Offset   int       `json:"offset"`
}
