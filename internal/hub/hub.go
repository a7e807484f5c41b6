package hub

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/andresfernandez89/livestore/internal/domain"
	"github.com/andresfernandez89/livestore/internal/metrics"
)

const (
	maxSessions    = 1024
	commandTimeout = 5 * time.Second
	stopTimeout    = 10 * time.Second
)

// --- Command types ---

type hubCmd interface{ isHubCmd() }

type baseHubCmd struct{}

func (baseHubCmd) isHubCmd() {}

type registerCmd struct {
	baseHubCmd
	connection   *websocket.Conn
	identity     domain.Identity
	replyChannel chan registerReply
}

type registerReply struct {
	session *Session
	err     error
}

type deregisterCmd struct {
	baseHubCmd
	session *Session
}

type subscribeCmd struct {
	baseHubCmd
	session *Session
	channel domain.Channel
}

type unsubscribeCmd struct {
	baseHubCmd
	session *Session
	channel domain.Channel
}

type unsubscribeAllCmd struct {
	baseHubCmd
	session *Session
}

type publishCmd struct {
	baseHubCmd
	channel domain.Channel
	data    []byte
}

type sendToCmd struct {
	baseHubCmd
	session      *Session
	data         []byte
	errorChannel chan error
}

type subscriberCountCmd struct {
	baseHubCmd
	channel      domain.Channel
	replyChannel chan int
}

type stopCmd struct {
	baseHubCmd
}

// Hub is the per-worker broadcast registry. All state is owned by the run
// goroutine; the exported methods communicate with it over the command
// channel.
type Hub struct {
	cmdCh    chan hubCmd
	clock    clockwork.Clock
	sessions map[uuid.UUID]*Session
	channels map[domain.Channel]map[uuid.UUID]*Session
	onEmpty  func()
	done     chan struct{}
}

// NewHub creates and starts a hub. onEmpty, if non-nil, is called after the
// last registered session deregisters; the worker wires it to the
// ephemeral-chat cleanup policy.
func NewHub(clock clockwork.Clock, onEmpty func()) *Hub {
	h := &Hub{
		cmdCh:    make(chan hubCmd, 256),
		clock:    clock,
		sessions: make(map[uuid.UUID]*Session),
		channels: make(map[domain.Channel]map[uuid.UUID]*Session),
		onEmpty:  onEmpty,
		done:     make(chan struct{}),
	}
	go h.run()
	return h
}

// --- Public API ---

// Register promotes an authorized connection to a live session. The returned
// session is already eligible for Subscribe/SendTo.
func (h *Hub) Register(conn *websocket.Conn, identity domain.Identity) (*Session, error) {
	replyCh := make(chan registerReply, 1)
	h.cmdCh <- registerCmd{connection: conn, identity: identity, replyChannel: replyCh}

	timer := h.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case reply := <-replyCh:
		return reply.session, reply.err
	case <-timer.Chan():
		return nil, fmt.Errorf("register command timed out after %v", commandTimeout)
	}
}

// Deregister removes a session, stops its writer, and drops every channel
// membership. Safe to call for a session that was already removed.
func (h *Hub) Deregister(session *Session) {
	h.cmdCh <- deregisterCmd{session: session}
}

// Subscribe adds the session to a channel's member set. Idempotent.
func (h *Hub) Subscribe(session *Session, channel domain.Channel) {
	h.cmdCh <- subscribeCmd{session: session, channel: channel}
}

// Unsubscribe removes the session from one channel. Safe to call even if the
// session was never subscribed.
func (h *Hub) Unsubscribe(session *Session, channel domain.Channel) {
	h.cmdCh <- unsubscribeCmd{session: session, channel: channel}
}

// UnsubscribeAll removes the session from every channel. Idempotent and safe
// for unknown sessions.
func (h *Hub) UnsubscribeAll(session *Session) {
	h.cmdCh <- unsubscribeAllCmd{session: session}
}

// Publish fans an event out to every current subscriber of the channel.
// Best-effort: sessions that disconnect mid-publish are skipped, slow
// sessions are evicted, and no error is reported to the publisher.
func (h *Hub) Publish(channel domain.Channel, event domain.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		slog.Error("Failed to marshal broadcast event", "channel", channel, "error", err)
		return
	}
	metrics.HubBroadcastsTotal.WithLabelValues(string(channel)).Inc()
	h.cmdCh <- publishCmd{channel: channel, data: data}
}

// SendTo delivers an event to a single session (per-connection sync on join).
func (h *Hub) SendTo(session *Session, event domain.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	errCh := make(chan error, 1)
	h.cmdCh <- sendToCmd{session: session, data: data, errorChannel: errCh}

	timer := h.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case err := <-errCh:
		return err
	case <-timer.Chan():
		return fmt.Errorf("send command timed out after %v", commandTimeout)
	}
}

// SubscriberCount returns the number of sessions subscribed to a channel.
// Returns -1 if the command times out.
func (h *Hub) SubscriberCount(channel domain.Channel) int {
	replyCh := make(chan int, 1)
	h.cmdCh <- subscriberCountCmd{channel: channel, replyChannel: replyCh}

	timer := h.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case count := <-replyCh:
		return count
	case <-timer.Chan():
		slog.Warn("SubscriberCount timed out", "timeout", commandTimeout)
		return -1
	}
}

// Stop shuts down the hub, closing all client connections. Blocks until the
// run goroutine has exited or the stop timeout is reached.
func (h *Hub) Stop() {
	h.cmdCh <- stopCmd{}

	timer := h.clock.NewTimer(stopTimeout)
	defer timer.Stop()

	select {
	case <-h.done:
		slog.Info("Hub stopped gracefully")
	case <-timer.Chan():
		slog.Warn("Hub stop timeout exceeded", "timeout", stopTimeout)
	}
}

// --- Actor loop ---

func (h *Hub) run() {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Hub panic recovered", "panic", r)
			h.closeAllSessions("hub panic")
		}
	}()
	defer close(h.done)

	for cmd := range h.cmdCh {
		metrics.HubCommandChannelDepth.Set(float64(len(h.cmdCh)))

		switch c := cmd.(type) {
		case registerCmd:
			h.handleRegister(c)
		case deregisterCmd:
			h.handleDeregister(c.session)
		case subscribeCmd:
			h.handleSubscribe(c.session, c.channel)
		case unsubscribeCmd:
			h.removeFromChannel(c.session, c.channel)
		case unsubscribeAllCmd:
			h.removeFromAllChannels(c.session)
		case publishCmd:
			h.handlePublish(c)
		case sendToCmd:
			c.errorChannel <- h.handleSendTo(c)
		case subscriberCountCmd:
			c.replyChannel <- len(h.channels[c.channel])
		case stopCmd:
			h.handleStop()
			return
		default:
			slog.Warn("Hub received unknown command type", "command_type", fmt.Sprintf("%T", cmd))
		}
	}
}

func (h *Hub) handleRegister(c registerCmd) {
	if len(h.sessions) >= maxSessions {
		slog.Warn("Rejecting client: max sessions reached", "max_sessions", maxSessions)
		c.connection.Close()
		c.replyChannel <- registerReply{err: fmt.Errorf("max sessions (%d) reached", maxSessions)}
		return
	}

	session := &Session{
		ID:       uuid.New(),
		Identity: c.identity,
		conn:     c.connection,
		writer:   newClientWriter(c.connection, h.clock),
	}
	h.sessions[session.ID] = session

	metrics.HubConnectedSessions.Set(float64(len(h.sessions)))
	slog.Debug("Session registered", "session_id", session.ID.String(), "total_sessions", len(h.sessions))

	c.replyChannel <- registerReply{session: session}
}

func (h *Hub) handleDeregister(session *Session) {
	if _, exists := h.sessions[session.ID]; !exists {
		return
	}

	h.removeFromAllChannels(session)
	session.writer.stop()
	delete(h.sessions, session.ID)

	metrics.HubConnectedSessions.Set(float64(len(h.sessions)))
	slog.Debug("Session deregistered", "session_id", session.ID.String(), "remaining_sessions", len(h.sessions))

	if len(h.sessions) == 0 && h.onEmpty != nil {
		// Run outside the actor goroutine: the policy callback may issue
		// store calls that must not stall command processing.
		go h.onEmpty()
		slog.Info("Last session disconnected")
	}
}

func (h *Hub) handleSubscribe(session *Session, channel domain.Channel) {
	if _, exists := h.sessions[session.ID]; !exists {
		return
	}

	members, exists := h.channels[channel]
	if !exists {
		members = make(map[uuid.UUID]*Session)
		h.channels[channel] = members
	}
	members[session.ID] = session
}

func (h *Hub) removeFromChannel(session *Session, channel domain.Channel) {
	members, exists := h.channels[channel]
	if !exists {
		return
	}
	delete(members, session.ID)
	if len(members) == 0 {
		delete(h.channels, channel)
	}
}

func (h *Hub) removeFromAllChannels(session *Session) {
	for channel := range h.channels {
		h.removeFromChannel(session, channel)
	}
}

func (h *Hub) handlePublish(c publishCmd) {
	members, exists := h.channels[c.channel]
	if !exists {
		return
	}

	var slow []*Session
	for _, session := range members {
		select {
		case session.writer.sendChannel <- c.data:
		default:
			slow = append(slow, session)
		}
	}

	for _, session := range slow {
		slog.Warn("Disconnecting slow client", "session_id", session.ID.String(), "channel", c.channel)
		metrics.HubSlowClientsEvicted.Inc()
		h.handleDeregister(session)
	}
}

func (h *Hub) handleSendTo(c sendToCmd) error {
	if _, exists := h.sessions[c.session.ID]; !exists {
		return domain.ErrSessionNotFound
	}

	select {
	case c.session.writer.sendChannel <- c.data:
		return nil
	default:
		return fmt.Errorf("session %s send buffer full", c.session.ID)
	}
}

func (h *Hub) handleStop() {
	slog.Info("Hub shutting down", "sessions", len(h.sessions))
	h.closeAllSessions("Server shutting down")
}

// closeAllSessions closes every client connection with the given reason.
// Used during panic recovery and graceful shutdown.
func (h *Hub) closeAllSessions(reason string) {
	for id, session := range h.sessions {
		session.writer.stopGraceful(reason)
		delete(h.sessions, id)
	}
	h.channels = make(map[domain.Channel]map[uuid.UUID]*Session)
	metrics.HubConnectedSessions.Set(0)
}
