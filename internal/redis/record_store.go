package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	goredis "github.com/redis/go-redis/v9"

	"github.com/andresfernandez89/livestore/internal/domain"
)

// Redis keys for the two collection namespaces.
const (
	keyProducts       = "livestore:products"
	keyProductsOrder  = "livestore:products:order"
	keyProductsNextID = "livestore:products:next_id"
	keyMessages       = "livestore:chat:messages"
	keyMessagesNextID = "livestore:chat:next_id"
)

// ProductStore implements domain.ProductStore on Redis. Products live in a
// hash keyed by id with a separate order list so insertion order survives
// updates. Ids come from an INCR counter and are never reused after deletion.
type ProductStore struct {
	rdb *goredis.Client
}

func NewProductStore(rdb *goredis.Client) *ProductStore {
	return &ProductStore{rdb: rdb}
}

func (s *ProductStore) Create(ctx context.Context, product domain.Product) (domain.Product, error) {
	id, err := s.rdb.Incr(ctx, keyProductsNextID).Result()
	if err != nil {
		return domain.Product{}, fmt.Errorf("failed to allocate product id: %w", err)
	}
	product.ID = id

	data, err := json.Marshal(product)
	if err != nil {
		return domain.Product{}, fmt.Errorf("failed to marshal product: %w", err)
	}

	field := strconv.FormatInt(id, 10)
	pipe := s.rdb.TxPipeline()
	pipe.HSet(ctx, keyProducts, field, data)
	pipe.RPush(ctx, keyProductsOrder, field)
	if _, err := pipe.Exec(ctx); err != nil {
		return domain.Product{}, fmt.Errorf("failed to store product: %w", err)
	}
	return product, nil
}

func (s *ProductStore) Update(ctx context.Context, id int64, product domain.Product) (domain.Product, error) {
	field := strconv.FormatInt(id, 10)

	exists, err := s.rdb.HExists(ctx, keyProducts, field).Result()
	if err != nil {
		return domain.Product{}, fmt.Errorf("failed to check product existence: %w", err)
	}
	if !exists {
		return domain.Product{}, domain.ErrProductNotFound
	}

	product.ID = id
	data, err := json.Marshal(product)
	if err != nil {
		return domain.Product{}, fmt.Errorf("failed to marshal product: %w", err)
	}
	if err := s.rdb.HSet(ctx, keyProducts, field, data).Err(); err != nil {
		return domain.Product{}, fmt.Errorf("failed to update product: %w", err)
	}
	return product, nil
}

func (s *ProductStore) Delete(ctx context.Context, id int64) error {
	field := strconv.FormatInt(id, 10)

	removed, err := s.rdb.HDel(ctx, keyProducts, field).Result()
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}
	if removed == 0 {
		return domain.ErrProductNotFound
	}
	if err := s.rdb.LRem(ctx, keyProductsOrder, 1, field).Err(); err != nil {
		return fmt.Errorf("failed to unlink product order entry: %w", err)
	}
	return nil
}

func (s *ProductStore) GetAll(ctx context.Context) ([]domain.Product, error) {
	ids, err := s.rdb.LRange(ctx, keyProductsOrder, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read product order: %w", err)
	}
	if len(ids) == 0 {
		return []domain.Product{}, nil
	}

	values, err := s.rdb.HMGet(ctx, keyProducts, ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read products: %w", err)
	}

	products := make([]domain.Product, 0, len(values))
	for _, value := range values {
		raw, ok := value.(string)
		if !ok {
			// Order entry without a hash record: a concurrent delete raced us.
			continue
		}
		var product domain.Product
		if err := json.Unmarshal([]byte(raw), &product); err != nil {
			return nil, fmt.Errorf("failed to unmarshal product: %w", err)
		}
		products = append(products, product)
	}
	return products, nil
}

// MessageStore implements domain.MessageStore on Redis as an append-only
// list, preserving arrival order.
type MessageStore struct {
	rdb *goredis.Client
}

func NewMessageStore(rdb *goredis.Client) *MessageStore {
	return &MessageStore{rdb: rdb}
}

func (s *MessageStore) Append(ctx context.Context, message domain.Message) (domain.Message, error) {
	id, err := s.rdb.Incr(ctx, keyMessagesNextID).Result()
	if err != nil {
		return domain.Message{}, fmt.Errorf("failed to allocate message id: %w", err)
	}
	message.ID = id

	data, err := json.Marshal(message)
	if err != nil {
		return domain.Message{}, fmt.Errorf("failed to marshal message: %w", err)
	}
	if err := s.rdb.RPush(ctx, keyMessages, data).Err(); err != nil {
		return domain.Message{}, fmt.Errorf("failed to store message: %w", err)
	}
	return message, nil
}

func (s *MessageStore) GetAll(ctx context.Context) ([]domain.Message, error) {
	values, err := s.rdb.LRange(ctx, keyMessages, 0, -1).Result()
	if err != nil && !errors.Is(err, goredis.Nil) {
		return nil, fmt.Errorf("failed to read messages: %w", err)
	}

	messages := make([]domain.Message, 0, len(values))
	for _, raw := range values {
		var message domain.Message
		if err := json.Unmarshal([]byte(raw), &message); err != nil {
			return nil, fmt.Errorf("failed to unmarshal message: %w", err)
		}
		messages = append(messages, message)
	}
	return messages, nil
}

func (s *MessageStore) DeleteAll(ctx context.Context) error {
	// The id counter stays: ids are not reused after a purge.
	if err := s.rdb.Del(ctx, keyMessages).Err(); err != nil {
		return fmt.Errorf("failed to clear messages: %w", err)
	}
	return nil
}
