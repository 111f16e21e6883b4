package rest

import (
	"github.com/gofiber/fiber/v2"

	"github.com/omnidesk/channeledge/config"
	domainSession "github.com/omnidesk/channeledge/domains/session"
	"github.com/omnidesk/channeledge/infrastructure/transport"
	"github.com/omnidesk/channeledge/pkg/utils"
)

type Health struct {
	Manager *transport.Manager
	Store   domainSession.IStore
}

func InitRestHealth(app fiber.Router, manager *transport.Manager, store domainSession.IStore) Health {
	handler := Health{Manager: manager, Store: store}
	app.Get("/health", handler.GetStatus)
	return handler
}

func (handler *Health) GetStatus(c *fiber.Ctx) error {
	namespaces := map[string]bool{}
	for _, ns := range []string{
		transport.NamespaceAuth,
		transport.NamespaceChannel,
		transport.NamespaceMessage,
		transport.NamespaceSystem,
	} {
		namespaces[ns] = handler.Manager.IsConnected(ns)
	}

	_, serviceSession := handler.Store.Get("service")

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Health status retrieved",
		Results: fiber.Map{
			"version":         config.Global.App.Version,
			"server_id":       config.Global.App.ServerID,
			"namespaces":      namespaces,
			"service_session": serviceSession,
		},
	})
}
