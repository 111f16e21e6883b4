package rest

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	domainChannel "github.com/omnidesk/channeledge/domains/channel"
	"github.com/omnidesk/channeledge/infrastructure/backend"
	"github.com/omnidesk/channeledge/pkg/utils"
	"github.com/omnidesk/channeledge/usecase"
)

// Channels exposes the live registry view to admin consoles.
type Channels struct {
	Registry *usecase.ChannelRegistry
	Backend  *backend.Client
}

func InitRestChannels(app fiber.Router, registry *usecase.ChannelRegistry, client *backend.Client) Channels {
	handler := Channels{Registry: registry, Backend: client}

	app.Get("/channels", handler.List)
	app.Get("/channels/live", handler.Live)
	app.Get("/channels/:id/qr", handler.QR)
	app.Post("/channels/:id/join", handler.Join)
	app.Post("/channels/:id/leave", handler.Leave)

	return handler
}

func filterFromQuery(c *fiber.Ctx) domainChannel.ListFilter {
	filter := domainChannel.ListFilter{
		Name:     c.Query("name"),
		Type:     c.Query("type"),
		Provider: c.Query("provider"),
		Limit:    c.QueryInt("limit"),
		Offset:   c.QueryInt("offset"),
		SortBy:   c.Query("sortBy"),
		SortDir:  c.Query("sortDir"),
	}
	if v := c.Query("is_active"); v != "" {
		if active, err := strconv.ParseBool(v); err == nil {
			filter.IsActive = &active
		}
	}
	return filter
}

// List refetches the channel list from the backend. Live state attached to
// entries still present survives the replace; on failure the previous list
// stays usable and the error is surfaced as recoverable.
func (handler *Channels) List(c *fiber.Ctx) error {
	channels, err := handler.Registry.FetchChannels(c.UserContext(), filterFromQuery(c))
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Channels fetched",
		Results: fiber.Map{
			"channels": channels,
			"total":    handler.Registry.Total(),
		},
	})
}

// Live returns the current registry snapshot without touching the backend.
func (handler *Channels) Live(c *fiber.Ctx) error {
	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Live channel view",
		Results: handler.Registry.Snapshot(),
	})
}

// QR passes the provider pairing payload through for out-of-band channel
// (re)authentication.
func (handler *Channels) QR(c *fiber.Ctx) error {
	body, contentType, err := handler.Backend.ChannelQR(c.UserContext(), c.Params("id"))
	utils.PanicIfNeeded(err)

	c.Set(fiber.HeaderContentType, contentType)
	return c.Send(body)
}

func (handler *Channels) Join(c *fiber.Ctx) error {
	utils.PanicIfNeeded(handler.Registry.JoinChannel(c.Params("id")))

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Join requested",
	})
}

func (handler *Channels) Leave(c *fiber.Ctx) error {
	utils.PanicIfNeeded(handler.Registry.LeaveChannel(c.Params("id")))

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Leave requested",
	})
}
