package domain

import (
	"context"
	"net/http"
	"time"
)

// --- Model types ---

// Product is a catalog record. The ID is assigned by the record store on
// create and never changes afterwards.
type Product struct {
	ID        int64   `json:"id"`
	Title     string  `json:"title"`
	Price     float64 `json:"price"`
	Thumbnail string  `json:"thumbnail,omitempty"`
}

// Message is a chat record. Insertion order is the canonical display order.
type Message struct {
	ID     int64     `json:"id"`
	Email  string    `json:"email"`
	Text   string    `json:"message"`
	SentAt time.Time `json:"sentAt"`
}

// --- Broadcast channels ---

// Channel is a named broadcast scope. Sessions subscribe to channels and
// receive only events published on them. The products and chat channels carry
// full snapshots; chat-senders carries lightweight presence announcements.
type Channel string

const (
	ChannelProducts    Channel = "products"
	ChannelChat        Channel = "chat"
	ChannelChatSenders Channel = "chat-senders"
)

// --- Wire protocol ---

// Event is the wire envelope for the persistent-connection protocol.
type Event struct {
	Name string `json:"event"`
	Data any    `json:"data"`
}

// Event names exchanged over the persistent connection.
const (
	EventProductsList  = "productsList"
	EventAddProduct    = "addProduct"
	EventEditProduct   = "editProduct"
	EventDeleteProduct = "deleteProduct"
	EventChat          = "chat"
	EventChatMessage   = "msn"
	EventSender        = "email"
	EventError         = "error"
)

// --- Store contracts ---

// ProductStore abstracts catalog persistence. Update and Delete return
// ErrProductNotFound when the id does not exist; callers rely on that to
// suppress broadcasts for no-op mutations.
type ProductStore interface {
	Create(ctx context.Context, product Product) (Product, error)
	Update(ctx context.Context, id int64, product Product) (Product, error)
	Delete(ctx context.Context, id int64) error
	GetAll(ctx context.Context) ([]Product, error)
}

// MessageStore abstracts chat persistence. Append assigns the id and
// preserves arrival order for GetAll.
type MessageStore interface {
	Append(ctx context.Context, message Message) (Message, error)
	GetAll(ctx context.Context) ([]Message, error)
	DeleteAll(ctx context.Context) error
}

// --- Auth contracts ---

// Identity is the authenticated principal attached to a connection for its
// whole lifetime.
type Identity struct {
	Email string
}

// Gate is the auth capability the serving layer consumes. Authorize is
// consulted exactly once per connection; a session that was valid at connect
// time stays authorized until disconnect. Login and Logout manage the
// credential the browser presents.
type Gate interface {
	Authorize(r *http.Request) (Identity, error)
	Login(w http.ResponseWriter, r *http.Request, identity Identity) error
	Logout(w http.ResponseWriter, r *http.Request) error
}

// AuthSessionStore is the external session store behind the Gate. Tokens are
// opaque; the store maps them to the identity established at login.
type AuthSessionStore interface {
	Put(ctx context.Context, token string, identity Identity) error
	Get(ctx context.Context, token string) (Identity, error)
	Delete(ctx context.Context, token string) error
}
