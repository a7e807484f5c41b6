// Package auth implements the connection auth gate.
//
// Login issues an opaque token, stores it in the external auth session store,
// and hands the client a signed cookie. The gate validates the cookie against
// the store exactly once per connection, during the handshake; a session that
// was valid at connect time stays authorized for the life of the connection.
// Mid-session re-validation is a known gap of this design, not an oversight.
package auth

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/sessions"

	"github.com/andresfernandez89/livestore/internal/domain"
	apperrors "github.com/andresfernandez89/livestore/internal/errors"
)

const (
	sessionName     = "livestore_session"
	sessionKeyToken = "token"
	cookieMaxAge    = 86400 * 7
)

// Gate validates inbound handshakes against the auth session store.
type Gate struct {
	cookies *sessions.CookieStore
	store   domain.AuthSessionStore
}

var _ domain.Gate = (*Gate)(nil)

func NewGate(secret string, store domain.AuthSessionStore, secureCookies bool) *Gate {
	cookieStore := sessions.NewCookieStore([]byte(secret))
	cookieStore.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   cookieMaxAge,
		HttpOnly: true,
		Secure:   secureCookies,
		SameSite: http.SameSiteLaxMode,
	}
	return &Gate{cookies: cookieStore, store: store}
}

// Authorize checks the handshake's session cookie and resolves the identity
// behind it. Returns an unauthorized error for missing, tampered, or expired
// credentials.
func (g *Gate) Authorize(r *http.Request) (domain.Identity, error) {
	session, err := g.cookies.Get(r, sessionName)
	if err != nil {
		return domain.Identity{}, apperrors.UnauthorizedError("invalid session cookie")
	}

	token, ok := session.Values[sessionKeyToken].(string)
	if !ok || token == "" {
		return domain.Identity{}, apperrors.UnauthorizedError("no session")
	}

	identity, err := g.store.Get(r.Context(), token)
	if errors.Is(err, domain.ErrSessionNotFound) {
		return domain.Identity{}, apperrors.UnauthorizedError("session expired")
	}
	if err != nil {
		return domain.Identity{}, apperrors.UnavailableError("session store unreachable", err)
	}
	return identity, nil
}

// Login creates an auth session for the identity and sets the session cookie
// on the response.
func (g *Gate) Login(w http.ResponseWriter, r *http.Request, identity domain.Identity) error {
	token := uuid.NewString()
	if err := g.store.Put(r.Context(), token, identity); err != nil {
		return apperrors.UnavailableError("failed to create session", err)
	}

	session, _ := g.cookies.New(r, sessionName)
	session.Values[sessionKeyToken] = token
	if err := session.Save(r, w); err != nil {
		return apperrors.InternalError("failed to save session cookie", err)
	}
	return nil
}

// Logout deletes the auth session and expires the cookie. Safe to call for a
// request without a valid session.
func (g *Gate) Logout(w http.ResponseWriter, r *http.Request) error {
	session, err := g.cookies.Get(r, sessionName)
	if err == nil {
		if token, ok := session.Values[sessionKeyToken].(string); ok && token != "" {
			_ = g.store.Delete(r.Context(), token)
		}
	}
	if session == nil {
		session, _ = g.cookies.New(r, sessionName)
	}

	session.Options.MaxAge = -1
	if err := session.Save(r, w); err != nil {
		return apperrors.InternalError("failed to expire session cookie", err)
	}
	return nil
}
