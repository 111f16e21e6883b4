package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
	"github.com/valyala/fasthttp"
	"golang.org/x/sync/singleflight"

	"github.com/omnidesk/channeledge/config"
	domainSession "github.com/omnidesk/channeledge/domains/session"
	pkgError "github.com/omnidesk/channeledge/pkg/error"
)

type tokenService struct {
	store      domainSession.IStore
	cfg        *config.Config
	client     *fasthttp.Client
	flight     singleflight.Group
	refreshURL string
}

type refreshResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

func NewTokenService(store domainSession.IStore, cfg *config.Config) domainSession.ITokenUsecase {
	return &tokenService{
		store:      store,
		cfg:        cfg,
		client:     &fasthttp.Client{ReadTimeout: 15 * time.Second, WriteTimeout: 15 * time.Second},
		refreshURL: cfg.Backend.APIBaseURL + cfg.Backend.RefreshPath,
	}
}

func (s *tokenService) EnsureAccessToken(ctx context.Context, sessionID string) (string, error) {
	sess, ok := s.store.Get(sessionID)
	if !ok {
		return "", pkgError.UnauthorizedError("no credential session")
	}

	if s.isFresh(sess.AccessToken) {
		return sess.AccessToken, nil
	}

	// Single-flight per session: backend refresh tokens are one-time-use,
	// so concurrent near-expiry observers must share one refresh.
	v, err, _ := s.flight.Do(sessionID, func() (any, error) {
		cur, ok := s.store.Get(sessionID)
		if !ok {
			return "", pkgError.UnauthorizedError("no credential session")
		}
		// A caller that queued behind the winning refresh sees the new token.
		if s.isFresh(cur.AccessToken) {
			return cur.AccessToken, nil
		}
		return s.refresh(ctx, cur)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (s *tokenService) IssueTransportToken(ctx context.Context, sessionID string) (string, error) {
	sess, ok := s.store.Get(sessionID)
	if !ok {
		return "", pkgError.UnauthorizedError("no credential session")
	}
	return sess.AccessToken, nil
}

// isFresh reports whether raw carries an exp claim more than the configured
// skew away. The decode is structural only, not a trust boundary; signature
// validation happens at the backend.
func (s *tokenService) isFresh(raw string) bool {
	if raw == "" {
		return false
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return time.Until(exp.Time) > s.cfg.Auth.ExpirySkew
}

func (s *tokenService) refresh(ctx context.Context, sess *domainSession.CredentialSession) (string, error) {
	body, err := json.Marshal(map[string]string{"refreshToken": sess.RefreshToken})
	if err != nil {
		return "", err
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(s.refreshURL)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.SetBody(body)

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(15 * time.Second)
	}
	if err := s.client.DoDeadline(req, resp, deadline); err != nil {
		return "", fmt.Errorf("token refresh: %w", err)
	}
	if resp.StatusCode() != fasthttp.StatusOK {
		return "", pkgError.UnauthorizedError(fmt.Sprintf("token refresh rejected: %d", resp.StatusCode()))
	}

	var parsed refreshResponse
	if err := json.Unmarshal(resp.Body(), &parsed); err != nil {
		return "", fmt.Errorf("token refresh decode: %w", err)
	}
	if parsed.AccessToken == "" {
		return "", pkgError.UnauthorizedError("token refresh returned no access token")
	}

	sess.AccessToken = parsed.AccessToken
	if parsed.RefreshToken != "" {
		sess.RefreshToken = parsed.RefreshToken
	}
	if exp := tokenExpiry(parsed.AccessToken); !exp.IsZero() {
		sess.ExpiresAt = exp
	}
	s.store.Put(sess)

	logrus.Debugf("[GATEWAY] Refreshed access token for session %s", sess.ID)
	return parsed.AccessToken, nil
}

func tokenExpiry(raw string) time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}
