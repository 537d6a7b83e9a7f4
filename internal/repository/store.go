package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog/log"
)

var (
	// ErrNotFound indicates a record does not exist
	ErrNotFound = errors.New("record not found")
	// ErrAlreadyExists indicates a uniqueness conflict
	ErrAlreadyExists = errors.New("record already exists")
)

const uniqueViolation = "23505"

// Querier is the subset of pgx shared by pools, connections and transactions
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// DB is satisfied by *pgxpool.Pool and by pgxmock pools in tests
type DB interface {
	Querier
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
}

// Store groups the repositories behind one unit of work.
// Repositories obtained from the Store passed to WithTx's callback
// share a single database transaction.
type Store interface {
	Users() UserRepository
	Admins() AdminRepository
	Transactions() TransactionRepository
	AdminLogs() AdminLogRepository
	WithTx(ctx context.Context, fn func(tx Store) error) error
	Ping(ctx context.Context) error
}

type pgStore struct {
	db DB // nil inside a transaction
	q  Querier
}

// NewPostgresStore creates a Store backed by PostgreSQL
func NewPostgresStore(db DB) Store {
	return &pgStore{db: db, q: db}
}

func (s *pgStore) Users() UserRepository               { return NewUserRepository(s.q) }
func (s *pgStore) Admins() AdminRepository             { return NewAdminRepository(s.q) }
func (s *pgStore) Transactions() TransactionRepository { return NewTransactionRepository(s.q) }
func (s *pgStore) AdminLogs() AdminLogRepository       { return NewAdminLogRepository(s.q) }

// WithTx runs fn inside a database transaction. Nested calls reuse the
// outer transaction.
func (s *pgStore) WithTx(ctx context.Context, fn func(tx Store) error) error {
	if s.db == nil {
		return fn(s)
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(&pgStore{q: tx}); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			log.Ctx(ctx).Error().Err(rbErr).Msg("failed to roll back transaction")
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *pgStore) Ping(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	return s.db.Ping(ctx)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// rowScanner is implemented by pgx.Row and pgx.Rows
type rowScanner interface {
	Scan(dest ...any) error
}
