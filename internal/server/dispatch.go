package server

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/andresfernandez89/livestore/internal/domain"
	apperrors "github.com/andresfernandez89/livestore/internal/errors"
	"github.com/andresfernandez89/livestore/internal/hub"
)

// inboundEvent defers payload decoding until the handler knows its shape.
type inboundEvent struct {
	Name string          `json:"event"`
	Data json.RawMessage `json:"data"`
}

type eventHandler func(ctx context.Context, session *hub.Session, data json.RawMessage) error

// dispatch routes one inbound frame to its handler. Mutations run on a
// background context so a client that fires a mutation and immediately
// disconnects still gets its write applied and broadcast.
func (s *Server) dispatch(session *hub.Session, payload []byte) {
	var event inboundEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		s.sendError(session, apperrors.ValidationError("malformed event envelope"))
		return
	}

	handler, ok := s.handlers[event.Name]
	if !ok {
		s.sendError(session, apperrors.ValidationError("unknown event").WithContext("event", event.Name))
		return
	}

	if err := handler(context.Background(), session, event.Data); err != nil {
		structured := apperrors.AsStructuredError(err)
		slog.Warn("event handler failed",
			"event", event.Name,
			"session_id", session.ID.String(),
			"error_type", string(structured.Type),
			"error", structured.Message,
		)
		s.sendError(session, structured)
	}
}

func (s *Server) eventHandlers() map[string]eventHandler {
	return map[string]eventHandler{
		domain.EventAddProduct:    s.onAddProduct,
		domain.EventEditProduct:   s.onEditProduct,
		domain.EventDeleteProduct: s.onDeleteProduct,
		domain.EventChatMessage:   s.onChatMessage,
	}
}

func (s *Server) onAddProduct(ctx context.Context, _ *hub.Session, data json.RawMessage) error {
	var product domain.Product
	if err := json.Unmarshal(data, &product); err != nil {
		return apperrors.ValidationError("malformed product payload")
	}
	_, err := s.coordinator.AddProduct(ctx, product)
	return err
}

func (s *Server) onEditProduct(ctx context.Context, _ *hub.Session, data json.RawMessage) error {
	var product domain.Product
	if err := json.Unmarshal(data, &product); err != nil {
		return apperrors.ValidationError("malformed product payload")
	}
	_, err := s.coordinator.EditProduct(ctx, product.ID, product)
	return err
}

func (s *Server) onDeleteProduct(ctx context.Context, _ *hub.Session, data json.RawMessage) error {
	var ref struct {
		ID int64 `json:"id"`
	}
	if err := json.Unmarshal(data, &ref); err != nil {
		return apperrors.ValidationError("malformed delete payload")
	}
	return s.coordinator.DeleteProduct(ctx, ref.ID)
}

// onChatMessage stamps the message with the connection's identity. The email
// a client writes into the payload is ignored; spoofing a sender is not
// possible from the wire.
func (s *Server) onChatMessage(ctx context.Context, session *hub.Session, data json.RawMessage) error {
	var message domain.Message
	if err := json.Unmarshal(data, &message); err != nil {
		return apperrors.ValidationError("malformed chat payload")
	}
	message.Email = session.Identity.Email
	_, err := s.coordinator.PostMessage(ctx, message)
	return err
}

// sendError delivers an error acknowledgment to the offending session only.
func (s *Server) sendError(session *hub.Session, err *apperrors.Error) {
	event := domain.Event{Name: domain.EventError, Data: err.ToResponse()}
	_ = s.hub.SendTo(session, event)
}
