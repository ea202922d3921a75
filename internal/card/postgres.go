package card

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore reads card documents from PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS cards (
			id TEXT PRIMARY KEY,
			sender_name TEXT NOT NULL,
			recipient_name TEXT NOT NULL,
			message TEXT NOT NULL,
			template_image_url TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (Payload, error) {
	var p Payload
	err := s.pool.QueryRow(ctx,
		`SELECT sender_name, recipient_name, message, template_image_url
		 FROM cards WHERE id=$1`,
		id,
	).Scan(&p.SenderName, &p.RecipientName, &p.Message, &p.TemplateImageURL)
	if errors.Is(err, pgx.ErrNoRows) {
		return Payload{}, ErrNotFound
	}
	if err != nil {
		return Payload{}, fmt.Errorf("query card: %w", err)
	}
	return p, nil
}

// Put upserts a card.
func (s *PostgresStore) Put(ctx context.Context, id string, p Payload) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO cards (id, sender_name, recipient_name, message, template_image_url)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (id) DO UPDATE SET
			sender_name = EXCLUDED.sender_name,
			recipient_name = EXCLUDED.recipient_name,
			message = EXCLUDED.message,
			template_image_url = EXCLUDED.template_image_url`,
		id, p.SenderName, p.RecipientName, p.Message, p.TemplateImageURL,
	)
	if err != nil {
		return fmt.Errorf("save card: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// NewStore returns a Postgres-backed store when databaseURL is set and an
// in-memory store otherwise.
func NewStore(ctx context.Context, databaseURL string) (Store, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return NewInMemoryStore(), nil
	}
	return NewPostgresStore(ctx, databaseURL)
}
