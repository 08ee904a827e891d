package repository

import (
	"context"
	"fmt"

	"github.com/rpattn/crmql/internal/db"

	"github.com/jackc/pgx/v5"
)

type pgStore struct {
	conn *db.Connection
	exec db.DBTX
	tx   pgx.Tx
}

// NewStore creates a Store backed by the connection pool
func NewStore(conn *db.Connection) Store {
	return &pgStore{conn: conn, exec: conn.Pool}
}

func (s *pgStore) Customers() CustomerRepository { return NewCustomerRepository(s.exec) }

func (s *pgStore) Products() ProductRepository { return NewProductRepository(s.exec) }

func (s *pgStore) Orders() OrderRepository { return NewOrderRepository(s.exec) }

// WithinTx opens a transaction, or a savepoint when already inside one. A
// failed fn rolls back only its own statements.
func (s *pgStore) WithinTx(ctx context.Context, fn func(Store) error) error {
	if s.tx == nil {
		return s.conn.WithTx(ctx, func(tx pgx.Tx) error {
			return fn(&pgStore{conn: s.conn, exec: tx, tx: tx})
		})
	}

	sp, err := s.tx.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to create savepoint: %w", err)
	}
	if err := fn(&pgStore{conn: s.conn, exec: sp, tx: sp}); err != nil {
		_ = sp.Rollback(ctx)
		return err
	}
	if err := sp.Commit(ctx); err != nil {
		return fmt.Errorf("failed to release savepoint: %w", err)
	}
	return nil
}
