package rest

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/valyala/fasthttp"

	"github.com/omnidesk/channeledge/config"
	domainSession "github.com/omnidesk/channeledge/domains/session"
	"github.com/omnidesk/channeledge/pkg/utils"
)

// Gateway fronts the backend API for browser clients: it injects bearer
// credentials on proxied calls and mints transport tokens for websocket
// bootstrap. Raw credentials never leave the edge.
type Gateway struct {
	Tokens domainSession.ITokenUsecase
	Store  domainSession.IStore
	Cfg    *config.Config

	proxy *fasthttp.Client
}

func InitRestGateway(app fiber.Router, tokens domainSession.ITokenUsecase, store domainSession.IStore, cfg *config.Config) Gateway {
	handler := Gateway{
		Tokens: tokens,
		Store:  store,
		Cfg:    cfg,
		proxy:  &fasthttp.Client{ReadTimeout: 60 * time.Second, WriteTimeout: 60 * time.Second},
	}

	app.All("/proxy/*", handler.Proxy)
	app.Get("/auth/token", handler.TransportToken)
	app.Post("/auth/session", handler.CreateSession)
	app.Delete("/auth/session", handler.DestroySession)

	return handler
}

func (handler *Gateway) sessionID(c *fiber.Ctx) string {
	return c.Cookies(handler.Cfg.Auth.SessionCookie)
}

func unauthorized(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(utils.ResponseData{
		Status:  fiber.StatusUnauthorized,
		Code:    "UNAUTHORIZED_ERROR",
		Message: message,
	})
}

// Proxy forwards the request to the backend with a fresh bearer token. The
// backend's status, headers and body come back verbatim; any internal
// failure (missing session, refresh error, network error) collapses to 401
// so no internal state leaks.
func (handler *Gateway) Proxy(c *fiber.Ctx) error {
	sessionID := handler.sessionID(c)
	if sessionID == "" {
		return unauthorized(c, "missing session")
	}

	token, err := handler.Tokens.EnsureAccessToken(c.UserContext(), sessionID)
	if err != nil {
		logrus.Warnf("[GATEWAY] Proxy token unavailable: %v", err)
		return unauthorized(c, "credentials unavailable")
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	c.Request().CopyTo(req)
	uri := handler.Cfg.Backend.APIBaseURL + "/" + c.Params("*")
	if qs := string(c.Request().URI().QueryString()); qs != "" {
		uri += "?" + qs
	}
	req.SetRequestURI(uri)
	// Edge cookies are for this gateway only, never the backend.
	req.Header.Del(fasthttp.HeaderCookie)
	req.Header.Set(fasthttp.HeaderAuthorization, "Bearer "+token)

	if err := handler.proxy.Do(req, resp); err != nil {
		logrus.Errorf("[GATEWAY] Proxy upstream error: %v", err)
		return unauthorized(c, "upstream unavailable")
	}

	resp.Header.CopyTo(&c.Response().Header)
	c.Response().SetStatusCode(resp.StatusCode())
	c.Response().SetBody(resp.Body())
	return nil
}

// TransportToken returns the current access token for a websocket
// handshake. Callers must treat it as already-expiring and not cache it
// beyond connection bootstrap.
func (handler *Gateway) TransportToken(c *fiber.Ctx) error {
	sessionID := handler.sessionID(c)
	if sessionID == "" {
		return unauthorized(c, "missing session")
	}

	token, err := handler.Tokens.IssueTransportToken(c.UserContext(), sessionID)
	if err != nil {
		return unauthorized(c, "no valid session")
	}

	return c.JSON(fiber.Map{"accessToken": token})
}

type createSessionRequest struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// CreateSession stores backend credentials obtained at login and hands the
// browser an opaque HTTP-only session cookie.
func (handler *Gateway) CreateSession(c *fiber.Ctx) error {
	var request createSessionRequest
	if err := c.BodyParser(&request); err != nil || request.AccessToken == "" || request.RefreshToken == "" {
		return c.Status(fiber.StatusBadRequest).JSON(utils.ResponseData{
			Status:  fiber.StatusBadRequest,
			Code:    "VALIDATION_ERROR",
			Message: "accessToken and refreshToken are required",
		})
	}

	sess := &domainSession.CredentialSession{
		ID:           uuid.NewString(),
		AccessToken:  request.AccessToken,
		RefreshToken: request.RefreshToken,
	}
	handler.Store.Put(sess)

	c.Cookie(&fiber.Cookie{
		Name:     handler.Cfg.Auth.SessionCookie,
		Value:    sess.ID,
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteStrictMode,
		Path:     "/",
	})

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Session created",
	})
}

// DestroySession drops the credential session and expires the cookie.
func (handler *Gateway) DestroySession(c *fiber.Ctx) error {
	if sessionID := handler.sessionID(c); sessionID != "" {
		handler.Store.Delete(sessionID)
	}

	c.Cookie(&fiber.Cookie{
		Name:     handler.Cfg.Auth.SessionCookie,
		Value:    "",
		HTTPOnly: true,
		Expires:  time.Now().Add(-time.Hour),
		Path:     "/",
	})

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Session destroyed",
	})
}
