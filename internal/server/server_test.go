package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresfernandez89/livestore/internal/auth"
	"github.com/andresfernandez89/livestore/internal/config"
	"github.com/andresfernandez89/livestore/internal/coordinator"
	"github.com/andresfernandez89/livestore/internal/domain"
	apperrors "github.com/andresfernandez89/livestore/internal/errors"
	"github.com/andresfernandez89/livestore/internal/hub"
	"github.com/andresfernandez89/livestore/internal/memstore"
)

const testReadTimeout = 2 * time.Second

type testEnv struct {
	server   *Server
	ts       *httptest.Server
	hub      *hub.Hub
	coord    *coordinator.Coordinator
	products *memstore.ProductStore
	messages *memstore.MessageStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	clock := clockwork.NewRealClock()
	products := memstore.NewProductStore()
	messages := memstore.NewMessageStore()
	gate := auth.NewGate("0123456789abcdef0123456789abcdef", memstore.NewAuthSessionStore(), false)

	// Same wiring as the worker: the last disconnect clears the ephemeral
	// chat through the hub's empty callback.
	var coord *coordinator.Coordinator
	h := hub.NewHub(clock, func() {
		_ = coord.ClearChat(context.Background())
	})
	t.Cleanup(h.Stop)

	coord = coordinator.New(products, messages, h, clock)

	cfg := &config.Config{
		AppEnv: "development",
		Port:   "0",
		Mode:   config.ModeFork,
	}

	srv := NewServer(cfg, gate, coord, h, clock)
	ts := httptest.NewServer(srv.echo)
	t.Cleanup(ts.Close)

	return &testEnv{server: srv, ts: ts, hub: h, coord: coord, products: products, messages: messages}
}

// login performs the form login and returns the resulting session cookie.
func (env *testEnv) login(t *testing.T, email string) *http.Cookie {
	t.Helper()

	client := &http.Client{
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	resp, err := client.PostForm(env.ts.URL+"/login", url.Values{"email": {email}})
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, 302, resp.StatusCode)

	for _, cookie := range resp.Cookies() {
		if cookie.Name == "livestore_session" {
			return cookie
		}
	}
	t.Fatal("login response did not set a session cookie")
	return nil
}

// connect dials the realtime endpoint with the given session cookie.
func (env *testEnv) connect(t *testing.T, cookie *http.Cookie) *websocket.Conn {
	t.Helper()

	wsURL := "ws" + strings.TrimPrefix(env.ts.URL, "http") + "/ws"
	header := http.Header{}
	header.Set("Cookie", cookie.String())

	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func loginAndConnect(t *testing.T, env *testEnv, email string) *websocket.Conn {
	t.Helper()
	return env.connect(t, env.login(t, email))
}

type receivedEvent struct {
	Name string          `json:"event"`
	Data json.RawMessage `json:"data"`
}

func readEvent(t *testing.T, conn *websocket.Conn) receivedEvent {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(testReadTimeout)))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)

	var event receivedEvent
	require.NoError(t, json.Unmarshal(payload, &event))
	return event
}

// waitForEvent reads frames until one with the wanted name arrives.
func waitForEvent(t *testing.T, conn *websocket.Conn, name string) receivedEvent {
	t.Helper()

	deadline := time.Now().Add(testReadTimeout)
	for time.Now().Before(deadline) {
		event := readEvent(t, conn)
		if event.Name == name {
			return event
		}
	}
	t.Fatalf("no %q event arrived within %v", name, testReadTimeout)
	return receivedEvent{}
}

func assertNoEvent(t *testing.T, conn *websocket.Conn) {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(300*time.Millisecond)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err, "expected silence but received a frame")
}

func sendEvent(t *testing.T, conn *websocket.Conn, name string, data any) {
	t.Helper()

	payload, err := json.Marshal(map[string]any{"event": name, "data": data})
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, payload))
}

func TestWebSocketRejectsUnauthenticated(t *testing.T) {
	env := newTestEnv(t)

	wsURL := "ws" + strings.TrimPrefix(env.ts.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)

	require.Error(t, err)
	require.Nil(t, conn)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestJoinSyncSendsProductSnapshot(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.coord.AddProduct(t.Context(), domain.Product{Title: "keyboard", Price: 49.90})
	require.NoError(t, err)

	conn := loginAndConnect(t, env, "ana@example.com")

	event := readEvent(t, conn)
	require.Equal(t, domain.EventProductsList, event.Name)

	var products []domain.Product
	require.NoError(t, json.Unmarshal(event.Data, &products))
	require.Len(t, products, 1)
	assert.Equal(t, "keyboard", products[0].Title)

	// Chat is empty, so the join sync sends nothing else.
	assertNoEvent(t, conn)
}

func TestJoinSyncIncludesChatWhenNonEmpty(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.coord.PostMessage(t.Context(), domain.Message{Email: "bea@example.com", Text: "hello"})
	require.NoError(t, err)

	conn := loginAndConnect(t, env, "ana@example.com")

	first := readEvent(t, conn)
	require.Equal(t, domain.EventProductsList, first.Name)

	second := readEvent(t, conn)
	require.Equal(t, domain.EventChat, second.Name)

	var messages []domain.Message
	require.NoError(t, json.Unmarshal(second.Data, &messages))
	require.Len(t, messages, 1)
	assert.Equal(t, "hello", messages[0].Text)
}

func TestAddProductBroadcastsToAllSessions(t *testing.T) {
	env := newTestEnv(t)
	writer := loginAndConnect(t, env, "ana@example.com")
	reader := loginAndConnect(t, env, "bea@example.com")

	// Drain the join snapshots.
	readEvent(t, writer)
	readEvent(t, reader)

	sendEvent(t, writer, domain.EventAddProduct, domain.Product{Title: "mouse", Price: 19.90})

	for _, conn := range []*websocket.Conn{writer, reader} {
		event := waitForEvent(t, conn, domain.EventProductsList)

		var products []domain.Product
		require.NoError(t, json.Unmarshal(event.Data, &products))
		require.Len(t, products, 1)
		assert.Equal(t, "mouse", products[0].Title)
		assert.NotZero(t, products[0].ID)
	}
}

func TestEditUnknownProductSendsErrorAckOnly(t *testing.T) {
	env := newTestEnv(t)
	writer := loginAndConnect(t, env, "ana@example.com")
	bystander := loginAndConnect(t, env, "bea@example.com")

	readEvent(t, writer)
	readEvent(t, bystander)

	sendEvent(t, writer, domain.EventEditProduct, domain.Product{ID: 999, Title: "ghost", Price: 1})

	ack := waitForEvent(t, writer, domain.EventError)
	var response map[string]any
	require.NoError(t, json.Unmarshal(ack.Data, &response))
	assert.Equal(t, "not_found", response["type"])

	// The no-op mutation must not broadcast anything.
	assertNoEvent(t, bystander)
}

func TestChatMessagePublishesSenderThenSnapshot(t *testing.T) {
	env := newTestEnv(t)
	sender := loginAndConnect(t, env, "ana@example.com")
	reader := loginAndConnect(t, env, "bea@example.com")

	readEvent(t, sender)
	readEvent(t, reader)

	// The payload email is spoofed; the server must use the login identity.
	sendEvent(t, sender, domain.EventChatMessage, map[string]string{"email": "mallory@example.com", "message": "hi all"})

	first := readEvent(t, reader)
	require.Equal(t, domain.EventSender, first.Name)
	var announced string
	require.NoError(t, json.Unmarshal(first.Data, &announced))
	assert.Equal(t, "ana@example.com", announced)

	second := readEvent(t, reader)
	require.Equal(t, domain.EventChat, second.Name)
	var messages []domain.Message
	require.NoError(t, json.Unmarshal(second.Data, &messages))
	require.Len(t, messages, 1)
	assert.Equal(t, "ana@example.com", messages[0].Email)
	assert.Equal(t, "hi all", messages[0].Text)
}

func TestMalformedFrameGetsErrorAck(t *testing.T) {
	env := newTestEnv(t)
	conn := loginAndConnect(t, env, "ana@example.com")
	readEvent(t, conn)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))

	ack := waitForEvent(t, conn, domain.EventError)
	var response map[string]any
	require.NoError(t, json.Unmarshal(ack.Data, &response))
	assert.Equal(t, "validation", response["type"])
}

func TestUnknownEventGetsErrorAck(t *testing.T) {
	env := newTestEnv(t)
	conn := loginAndConnect(t, env, "ana@example.com")
	readEvent(t, conn)

	sendEvent(t, conn, "selfDestruct", nil)

	ack := waitForEvent(t, conn, domain.EventError)
	var response map[string]any
	require.NoError(t, json.Unmarshal(ack.Data, &response))
	assert.Equal(t, "validation", response["type"])
}

func TestChatClearedAfterLastDisconnect(t *testing.T) {
	env := newTestEnv(t)

	first := loginAndConnect(t, env, "ana@example.com")
	readEvent(t, first)

	sendEvent(t, first, domain.EventChatMessage, map[string]string{"message": "ephemeral"})
	waitForEvent(t, first, domain.EventChat)

	// Last session leaves; the empty-room callback purges the chat.
	require.NoError(t, first.Close())
	require.Eventually(t, func() bool {
		messages, err := env.coord.Messages(context.Background())
		return err == nil && len(messages) == 0
	}, 2*time.Second, 20*time.Millisecond)

	// A fresh joiner gets the catalog snapshot and no chat history.
	second := loginAndConnect(t, env, "bea@example.com")
	event := readEvent(t, second)
	require.Equal(t, domain.EventProductsList, event.Name)
	assertNoEvent(t, second)
}

// stubGate swaps the real cookie gate for a canned outcome, exercising the
// server's dependency on the gate contract rather than a concrete type.
type stubGate struct {
	identity domain.Identity
	err      error
}

func (g stubGate) Authorize(*http.Request) (domain.Identity, error) {
	return g.identity, g.err
}

func (g stubGate) Login(http.ResponseWriter, *http.Request, domain.Identity) error {
	return nil
}

func (g stubGate) Logout(http.ResponseWriter, *http.Request) error {
	return nil
}

func TestWebSocketRejectsWhenSessionStoreDown(t *testing.T) {
	clock := clockwork.NewRealClock()
	h := hub.NewHub(clock, nil)
	t.Cleanup(h.Stop)
	coord := coordinator.New(memstore.NewProductStore(), memstore.NewMessageStore(), h, clock)
	cfg := &config.Config{AppEnv: "development", Port: "0", Mode: config.ModeFork}

	gate := stubGate{err: apperrors.UnavailableError("session store unreachable", nil)}
	srv := NewServer(cfg, gate, coord, h, clock)
	ts := httptest.NewServer(srv.echo)
	t.Cleanup(ts.Close)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)

	require.Error(t, err)
	require.Nil(t, conn)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestHomeRedirectsWithoutSession(t *testing.T) {
	env := newTestEnv(t)

	client := &http.Client{
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	resp, err := client.Get(env.ts.URL + "/home")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, 302, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))
}

func TestHomeRendersForLoggedInUser(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.login(t, "ana@example.com")

	req, err := http.NewRequest(http.MethodGet, env.ts.URL+"/home", nil)
	require.NoError(t, err)
	req.AddCookie(cookie)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, 200, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
}

func TestProductsAPI(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.coord.AddProduct(t.Context(), domain.Product{Title: "monitor", Price: 199})
	require.NoError(t, err)

	resp, err := http.Get(env.ts.URL + "/api/products")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, 200, resp.StatusCode)

	var products []domain.Product
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&products))
	require.Len(t, products, 1)
	assert.Equal(t, "monitor", products[0].Title)
}

func TestCreateProductAPIValidation(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.login(t, "ana@example.com")

	body := strings.NewReader(`{"title": "", "price": 10}`)
	req, err := http.NewRequest(http.MethodPost, env.ts.URL+"/api/products", body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.AddCookie(cookie)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHealthEndpoints(t *testing.T) {
	env := newTestEnv(t)

	for _, path := range []string{"/health/live", "/health/ready"} {
		resp, err := http.Get(env.ts.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, 200, resp.StatusCode, path)
	}
}

func TestInfoReportsProcessDetails(t *testing.T) {
	env := newTestEnv(t)

	resp, err := http.Get(env.ts.URL + "/info")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, 200, resp.StatusCode)

	var info map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&info))
	assert.NotZero(t, info["pid"])
	assert.Equal(t, "FORK", info["mode"])
}
