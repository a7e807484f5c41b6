package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresfernandez89/livestore/internal/domain"
	apperrors "github.com/andresfernandez89/livestore/internal/errors"
	"github.com/andresfernandez89/livestore/internal/memstore"
)

func newTestGate(t *testing.T) (*Gate, *memstore.AuthSessionStore) {
	t.Helper()
	store := memstore.NewAuthSessionStore()
	return NewGate("test-secret", store, false), store
}

// login performs a login round-trip and returns a request carrying the
// resulting session cookie.
func login(t *testing.T, gate *Gate, email string) *http.Request {
	t.Helper()

	rec := httptest.NewRecorder()
	loginReq := httptest.NewRequest(http.MethodPost, "/login", nil)
	require.NoError(t, gate.Login(rec, loginReq, domain.Identity{Email: email}))

	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)

	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	return req
}

func TestGate_AuthorizeAfterLogin(t *testing.T) {
	gate, _ := newTestGate(t)

	req := login(t, gate, "a@x.com")

	identity, err := gate.Authorize(req)
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", identity.Email)
}

func TestGate_RejectsMissingCookie(t *testing.T) {
	gate, _ := newTestGate(t)

	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	_, err := gate.Authorize(req)
	require.Error(t, err)

	var structured *apperrors.Error
	require.True(t, errors.As(err, &structured))
	assert.Equal(t, apperrors.TypeUnauthorized, structured.Type)
}

func TestGate_RejectsTamperedCookie(t *testing.T) {
	gate, _ := newTestGate(t)

	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.AddCookie(&http.Cookie{Name: "livestore_session", Value: "forged"})

	_, err := gate.Authorize(req)
	require.Error(t, err)
}

func TestGate_RejectsExpiredSession(t *testing.T) {
	gate, store := newTestGate(t)

	req := login(t, gate, "a@x.com")

	// Expire every token server-side; the cookie is still
	// well-formed but its session is gone.
	require.NoError(t, store.Delete(context.Background(), tokenOf(t, gate, req)))

	_, err := gate.Authorize(req)
	require.Error(t, err)

	var structured *apperrors.Error
	require.True(t, errors.As(err, &structured))
	assert.Equal(t, apperrors.TypeUnauthorized, structured.Type)
}

func TestGate_LogoutInvalidatesSession(t *testing.T) {
	gate, _ := newTestGate(t)

	req := login(t, gate, "a@x.com")

	rec := httptest.NewRecorder()
	require.NoError(t, gate.Logout(rec, req))

	_, err := gate.Authorize(req)
	require.Error(t, err)
}

// tokenOf decodes the session cookie on req and returns the stored token.
func tokenOf(t *testing.T, gate *Gate, req *http.Request) string {
	t.Helper()
	session, err := gate.cookies.Get(req, sessionName)
	require.NoError(t, err)
	token, ok := session.Values[sessionKeyToken].(string)
	require.True(t, ok)
	return token
}
