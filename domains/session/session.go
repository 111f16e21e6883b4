package session

import (
	"context"
	"time"
)

// CredentialSession holds the backend credentials for one logged-in console
// session. It lives server-side only; the UI never sees the refresh token.
type CredentialSession struct {
	ID           string
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// IStore keeps credential sessions keyed by session id.
type IStore interface {
	Get(id string) (*CredentialSession, bool)
	Put(s *CredentialSession)
	Delete(id string)
}

// ITokenUsecase is the single point of truth for credential injection.
type ITokenUsecase interface {
	// EnsureAccessToken returns an access token valid for at least the
	// configured expiry skew, refreshing first when needed. Concurrent
	// callers for the same session share one refresh.
	EnsureAccessToken(ctx context.Context, sessionID string) (string, error)
	// IssueTransportToken returns the current access token for a transport
	// handshake only; callers must not cache it beyond bootstrap.
	IssueTransportToken(ctx context.Context, sessionID string) (string, error)
}
