// Package memstore provides in-memory record stores.
//
// Used in development when no external store is configured and as the store
// implementation in tests. Ids are never reused within a process lifetime,
// matching the record-store contract.
package memstore

import (
	"context"
	"sync"

	"github.com/andresfernandez89/livestore/internal/domain"
)

// ProductStore is an in-memory domain.ProductStore. Safe for concurrent use.
type ProductStore struct {
	mu     sync.Mutex
	nextID int64
	order  []int64
	items  map[int64]domain.Product
}

func NewProductStore() *ProductStore {
	return &ProductStore{
		nextID: 1,
		items:  make(map[int64]domain.Product),
	}
}

func (s *ProductStore) Create(_ context.Context, product domain.Product) (domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	product.ID = s.nextID
	s.nextID++
	s.items[product.ID] = product
	s.order = append(s.order, product.ID)
	return product, nil
}

func (s *ProductStore) Update(_ context.Context, id int64, product domain.Product) (domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.items[id]; !exists {
		return domain.Product{}, domain.ErrProductNotFound
	}
	product.ID = id
	s.items[id] = product
	return product, nil
}

func (s *ProductStore) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.items[id]; !exists {
		return domain.ErrProductNotFound
	}
	delete(s.items, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

func (s *ProductStore) GetAll(_ context.Context) ([]domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	products := make([]domain.Product, 0, len(s.order))
	for _, id := range s.order {
		products = append(products, s.items[id])
	}
	return products, nil
}

// MessageStore is an in-memory domain.MessageStore. Safe for concurrent use.
type MessageStore struct {
	mu       sync.Mutex
	nextID   int64
	messages []domain.Message
}

func NewMessageStore() *MessageStore {
	return &MessageStore{nextID: 1}
}

func (s *MessageStore) Append(_ context.Context, message domain.Message) (domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	message.ID = s.nextID
	s.nextID++
	s.messages = append(s.messages, message)
	return message, nil
}

func (s *MessageStore) GetAll(_ context.Context) ([]domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	messages := make([]domain.Message, len(s.messages))
	copy(messages, s.messages)
	return messages, nil
}

func (s *MessageStore) DeleteAll(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Keep nextID: ids are not reused after a purge.
	s.messages = nil
	return nil
}
