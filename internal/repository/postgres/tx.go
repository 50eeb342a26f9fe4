package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"eventlisting/internal/domain"
)

type transactor struct {
	DB *sql.DB
}

// NewTransactor returns a Transactor that takes a row lock on the event with
// SELECT ... FOR UPDATE. Concurrent writers to the same event queue on that lock.
func NewTransactor(db *sql.DB) domain.Transactor {
	return &transactor{DB: db}
}

type lockedStore struct {
	tx *sql.Tx
}

func (s lockedStore) Events() domain.EventRepository     { return NewEventRepository(s.tx) }
func (s lockedStore) Requests() domain.RequestRepository { return NewRequestRepository(s.tx) }

func (t *transactor) WithEventLock(ctx context.Context, eventID string, fn func(ctx context.Context, event *domain.Event, store domain.LockedStore) error) (err error) {
	tx, err := t.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	query := `SELECT ` + eventColumns + ` FROM events e WHERE e.id = $1 FOR UPDATE`
	event, err := scanEvent(tx.QueryRowContext(ctx, query, eventID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.NotFoundf("event %s not found", eventID)
		}
		return fmt.Errorf("lock event: %w", err)
	}

	if err = fn(ctx, event, lockedStore{tx: tx}); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
