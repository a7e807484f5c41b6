package server

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/andresfernandez89/livestore/internal/domain"
	"github.com/andresfernandez89/livestore/internal/hub"
	"github.com/andresfernandez89/livestore/internal/logging"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// handleWebSocket runs the full session lifecycle: gate, upgrade, register,
// subscribe, join sync, read pump, deregister. The gate runs before the
// upgrade so rejected clients get a plain 401 instead of a dead socket.
func (s *Server) handleWebSocket(c echo.Context) error {
	identity, err := s.gate.Authorize(c.Request())
	if err != nil {
		return err
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgrade already wrote the error response.
		return nil
	}

	session, err := s.hub.Register(conn, identity)
	if err != nil {
		_ = conn.Close()
		return nil
	}
	defer s.hub.Deregister(session)

	s.hub.Subscribe(session, domain.ChannelProducts)
	s.hub.Subscribe(session, domain.ChannelChat)
	s.hub.Subscribe(session, domain.ChannelChatSenders)

	logger := logging.WithSession(session.ID.String())
	logger.Info("session connected", "email", identity.Email)

	sendDirect := func(event domain.Event) error {
		return s.hub.SendTo(session, event)
	}
	if err := s.coordinator.SyncSession(c.Request().Context(), sendDirect); err != nil {
		logger.Warn("join sync incomplete", "error", err)
	}

	s.readPump(session)
	logger.Info("session disconnected")
	return nil
}

// readPump drains inbound frames until the connection dies. Malformed frames
// and handler failures are answered with an error event on the same session;
// they never terminate the connection.
func (s *Server) readPump(session *hub.Session) {
	conn := session.Conn()
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return
		}
		s.dispatch(session, payload)
	}
}
