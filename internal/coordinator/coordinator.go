// Package coordinator implements the mutation coordinator: the sole writer
// path into the record stores on behalf of the realtime core.
//
// Every successful mutation re-reads the authoritative collection and
// republishes the full snapshot. Correctness over efficiency: the full
// refresh sidesteps ordering and merge logic between concurrent writers at
// the cost of bandwidth.
package coordinator

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/jonboulle/clockwork"

	"github.com/andresfernandez89/livestore/internal/domain"
	apperrors "github.com/andresfernandez89/livestore/internal/errors"
	"github.com/andresfernandez89/livestore/internal/metrics"
)

// Publisher is the broadcast surface the coordinator drives.
type Publisher interface {
	Publish(channel domain.Channel, event domain.Event)
}

// Coordinator owns all mutations for the catalog and chat collections of one
// worker. Operations for a single collection are not mutually exclusive;
// concurrent writers interleave and the snapshot-after-write policy keeps the
// final broadcast state consistent (last snapshot read wins).
type Coordinator struct {
	products  domain.ProductStore
	messages  domain.MessageStore
	publisher Publisher
	clock     clockwork.Clock
}

func New(products domain.ProductStore, messages domain.MessageStore, publisher Publisher, clock clockwork.Clock) *Coordinator {
	return &Coordinator{
		products:  products,
		messages:  messages,
		publisher: publisher,
		clock:     clock,
	}
}

// --- Catalog operations ---

func validateProduct(product domain.Product) *apperrors.Error {
	if strings.TrimSpace(product.Title) == "" {
		return apperrors.ValidationError("product title is required")
	}
	if product.Price <= 0 {
		return apperrors.ValidationError("product price must be positive")
	}
	return nil
}

// AddProduct creates a catalog record and republishes the catalog snapshot.
func (c *Coordinator) AddProduct(ctx context.Context, product domain.Product) (domain.Product, error) {
	if err := validateProduct(product); err != nil {
		metrics.MutationsTotal.WithLabelValues("products", "create", "error").Inc()
		return domain.Product{}, err
	}

	created, err := c.products.Create(ctx, product)
	if err != nil {
		metrics.MutationsTotal.WithLabelValues("products", "create", "error").Inc()
		return domain.Product{}, apperrors.UnavailableError("failed to create product", err)
	}

	if err := c.publishProducts(ctx); err != nil {
		metrics.MutationsTotal.WithLabelValues("products", "create", "error").Inc()
		return domain.Product{}, err
	}

	metrics.MutationsTotal.WithLabelValues("products", "create", "ok").Inc()
	return created, nil
}

// EditProduct updates an existing record. An unknown id is a no-op that does
// not publish: broadcasting an unchanged snapshot would present stale state
// as new.
func (c *Coordinator) EditProduct(ctx context.Context, id int64, product domain.Product) (domain.Product, error) {
	if err := validateProduct(product); err != nil {
		metrics.MutationsTotal.WithLabelValues("products", "update", "error").Inc()
		return domain.Product{}, err
	}

	updated, err := c.products.Update(ctx, id, product)
	if errors.Is(err, domain.ErrProductNotFound) {
		metrics.MutationsTotal.WithLabelValues("products", "update", "not_found").Inc()
		return domain.Product{}, apperrors.NotFoundError("product not found").WithContext("id", id)
	}
	if err != nil {
		metrics.MutationsTotal.WithLabelValues("products", "update", "error").Inc()
		return domain.Product{}, apperrors.UnavailableError("failed to update product", err)
	}

	if err := c.publishProducts(ctx); err != nil {
		metrics.MutationsTotal.WithLabelValues("products", "update", "error").Inc()
		return domain.Product{}, err
	}

	metrics.MutationsTotal.WithLabelValues("products", "update", "ok").Inc()
	return updated, nil
}

// DeleteProduct removes a record. An unknown id is a no-op that does not
// publish.
func (c *Coordinator) DeleteProduct(ctx context.Context, id int64) error {
	err := c.products.Delete(ctx, id)
	if errors.Is(err, domain.ErrProductNotFound) {
		metrics.MutationsTotal.WithLabelValues("products", "delete", "not_found").Inc()
		return apperrors.NotFoundError("product not found").WithContext("id", id)
	}
	if err != nil {
		metrics.MutationsTotal.WithLabelValues("products", "delete", "error").Inc()
		return apperrors.UnavailableError("failed to delete product", err)
	}

	if err := c.publishProducts(ctx); err != nil {
		metrics.MutationsTotal.WithLabelValues("products", "delete", "error").Inc()
		return err
	}

	metrics.MutationsTotal.WithLabelValues("products", "delete", "ok").Inc()
	return nil
}

// Products returns the ordered catalog snapshot.
func (c *Coordinator) Products(ctx context.Context) ([]domain.Product, error) {
	products, err := c.products.GetAll(ctx)
	if err != nil {
		return nil, apperrors.UnavailableError("failed to read products", err)
	}
	if products == nil {
		products = []domain.Product{}
	}
	return products, nil
}

func (c *Coordinator) publishProducts(ctx context.Context) error {
	products, err := c.Products(ctx)
	if err != nil {
		slog.Error("Skipping broadcast: snapshot re-read failed", "channel", domain.ChannelProducts, "error", err)
		return err
	}
	c.publisher.Publish(domain.ChannelProducts, domain.Event{Name: domain.EventProductsList, Data: products})
	return nil
}

// --- Chat operations ---

// PostMessage appends a chat message, announces the sender's identity on the
// chat-senders channel, then republishes the full message snapshot. The
// announcement lets clients render presence without waiting for the
// snapshot.
func (c *Coordinator) PostMessage(ctx context.Context, message domain.Message) (domain.Message, error) {
	if strings.TrimSpace(message.Email) == "" {
		metrics.MutationsTotal.WithLabelValues("chat", "create", "error").Inc()
		return domain.Message{}, apperrors.ValidationError("sender email is required")
	}
	if strings.TrimSpace(message.Text) == "" {
		metrics.MutationsTotal.WithLabelValues("chat", "create", "error").Inc()
		return domain.Message{}, apperrors.ValidationError("message text is required")
	}

	message.SentAt = c.clock.Now().UTC()
	created, err := c.messages.Append(ctx, message)
	if err != nil {
		metrics.MutationsTotal.WithLabelValues("chat", "create", "error").Inc()
		return domain.Message{}, apperrors.UnavailableError("failed to store message", err)
	}

	messages, err := c.Messages(ctx)
	if err != nil {
		metrics.MutationsTotal.WithLabelValues("chat", "create", "error").Inc()
		slog.Error("Skipping broadcast: snapshot re-read failed", "channel", domain.ChannelChat, "error", err)
		return domain.Message{}, err
	}

	c.publisher.Publish(domain.ChannelChatSenders, domain.Event{Name: domain.EventSender, Data: created.Email})
	c.publisher.Publish(domain.ChannelChat, domain.Event{Name: domain.EventChat, Data: messages})

	metrics.MutationsTotal.WithLabelValues("chat", "create", "ok").Inc()
	return created, nil
}

// Messages returns the ordered chat snapshot.
func (c *Coordinator) Messages(ctx context.Context) ([]domain.Message, error) {
	messages, err := c.messages.GetAll(ctx)
	if err != nil {
		return nil, apperrors.UnavailableError("failed to read messages", err)
	}
	if messages == nil {
		messages = []domain.Message{}
	}
	return messages, nil
}

// ClearChat is the ephemeral-chat policy operation: it purges the chat
// collection without broadcasting. The worker invokes it when the last
// session disconnects, so a later joiner starts from an empty room.
func (c *Coordinator) ClearChat(ctx context.Context) error {
	if err := c.messages.DeleteAll(ctx); err != nil {
		metrics.MutationsTotal.WithLabelValues("chat", "delete_all", "error").Inc()
		return apperrors.UnavailableError("failed to clear chat", err)
	}
	metrics.MutationsTotal.WithLabelValues("chat", "delete_all", "ok").Inc()
	slog.Info("Chat collection cleared")
	return nil
}

// SyncSession pushes the current snapshots to one newly joined session:
// the catalog always, the chat history only when non-empty. Store
// unavailability degrades to an empty catalog rather than failing the join.
func (c *Coordinator) SyncSession(ctx context.Context, send func(domain.Event) error) error {
	products, err := c.Products(ctx)
	if err != nil {
		slog.Error("Snapshot load failed on join, sending empty catalog", "error", err)
		products = []domain.Product{}
	}
	if err := send(domain.Event{Name: domain.EventProductsList, Data: products}); err != nil {
		return err
	}

	messages, err := c.Messages(ctx)
	if err != nil {
		slog.Error("Chat snapshot load failed on join", "error", err)
		return nil
	}
	if len(messages) == 0 {
		return nil
	}
	return send(domain.Event{Name: domain.EventChat, Data: messages})
}
