package hub

import (
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/andresfernandez89/livestore/internal/domain"
)

// Session is one live client connection plus its authorization state. The
// identity is set once at registration and never changes for the life of the
// connection.
type Session struct {
	ID       uuid.UUID
	Identity domain.Identity

	conn   *websocket.Conn
	writer *clientWriter
}

// Conn exposes the underlying connection for the read pump.
func (s *Session) Conn() *websocket.Conn {
	return s.conn
}
