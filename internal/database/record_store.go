package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/andresfernandez89/livestore/internal/domain"
)

// ProductRepo implements domain.ProductStore backed by PostgreSQL. Identity
// columns assign ids; insertion order is the id order.
type ProductRepo struct {
	pool *pgxpool.Pool
}

func NewProductRepo(pool *pgxpool.Pool) *ProductRepo {
	return &ProductRepo{pool: pool}
}

func (r *ProductRepo) Create(ctx context.Context, product domain.Product) (domain.Product, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO products (title, price, thumbnail) VALUES ($1, $2, $3) RETURNING id`,
		product.Title, product.Price, product.Thumbnail,
	)
	if err := row.Scan(&product.ID); err != nil {
		return domain.Product{}, fmt.Errorf("failed to insert product: %w", err)
	}
	return product, nil
}

func (r *ProductRepo) Update(ctx context.Context, id int64, product domain.Product) (domain.Product, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE products SET title = $2, price = $3, thumbnail = $4 WHERE id = $1`,
		id, product.Title, product.Price, product.Thumbnail,
	)
	if err != nil {
		return domain.Product{}, fmt.Errorf("failed to update product: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.Product{}, domain.ErrProductNotFound
	}
	product.ID = id
	return product, nil
}

func (r *ProductRepo) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrProductNotFound
	}
	return nil
}

func (r *ProductRepo) GetAll(ctx context.Context) ([]domain.Product, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, title, price, thumbnail FROM products ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	products := make([]domain.Product, 0)
	for rows.Next() {
		var product domain.Product
		if err := rows.Scan(&product.ID, &product.Title, &product.Price, &product.Thumbnail); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, product)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read products: %w", err)
	}
	return products, nil
}

// MessageRepo implements domain.MessageStore backed by PostgreSQL.
type MessageRepo struct {
	pool *pgxpool.Pool
}

func NewMessageRepo(pool *pgxpool.Pool) *MessageRepo {
	return &MessageRepo{pool: pool}
}

func (r *MessageRepo) Append(ctx context.Context, message domain.Message) (domain.Message, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO messages (email, message, sent_at) VALUES ($1, $2, $3) RETURNING id`,
		message.Email, message.Text, message.SentAt,
	)
	if err := row.Scan(&message.ID); err != nil {
		return domain.Message{}, fmt.Errorf("failed to insert message: %w", err)
	}
	return message, nil
}

func (r *MessageRepo) GetAll(ctx context.Context) ([]domain.Message, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, email, message, sent_at FROM messages ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	messages := make([]domain.Message, 0)
	for rows.Next() {
		var message domain.Message
		if err := rows.Scan(&message.ID, &message.Email, &message.Text, &message.SentAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, message)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read messages: %w", err)
	}
	return messages, nil
}

func (r *MessageRepo) DeleteAll(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM messages`); err != nil {
		return fmt.Errorf("failed to clear messages: %w", err)
	}
	return nil
}
