package postgres

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/veloralabs/liqlock/internal/domain"
)

// EventStore implements domain.EventStore using PostgreSQL.
type EventStore struct {
	pool *pgxpool.Pool
}

// NewEventStore creates an EventStore backed by the given connection pool.
func NewEventStore(pool *pgxpool.Pool) *EventStore {
	return &EventStore{pool: pool}
}

// Append inserts a new event row.
func (s *EventStore) Append(ctx context.Context, evt domain.Event) error {
	var amount *string
	if evt.Amount != nil {
		v := evt.Amount.String()
		amount = &v
	}

	const query = `
		INSERT INTO lock_events (id, event_type, claim_id, position_id, recipient, amount, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := s.pool.Exec(ctx, query,
		evt.ID,
		string(evt.Type),
		int64(evt.ClaimID),
		int64(evt.PositionID),
		evt.Recipient.Hex(),
		amount,
		evt.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: append event %s: %w", evt.Type, err)
	}
	return nil
}

// List returns events with pagination and optional time filtering, newest
// first.
func (s *EventStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.Event, error) {
	query := `SELECT id, event_type, claim_id, position_id, recipient, amount, created_at
		FROM lock_events WHERE 1=1`
	args := []any{}
	argIdx := 1

	if opts.Since != nil {
		query += fmt.Sprintf(" AND created_at >= $%d", argIdx)
		args = append(args, *opts.Since)
		argIdx++
	}
	if opts.Until != nil {
		query += fmt.Sprintf(" AND created_at <= $%d", argIdx)
		args = append(args, *opts.Until)
		argIdx++
	}

	query += " ORDER BY created_at DESC"

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	return s.query(ctx, query, args...)
}

// ListBefore returns events created strictly before the cutoff, oldest first,
// for archival.
func (s *EventStore) ListBefore(ctx context.Context, before time.Time) ([]domain.Event, error) {
	const query = `SELECT id, event_type, claim_id, position_id, recipient, amount, created_at
		FROM lock_events WHERE created_at < $1 ORDER BY created_at`
	return s.query(ctx, query, before)
}

func (s *EventStore) query(ctx context.Context, query string, args ...any) ([]domain.Event, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list events: %w", err)
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		evt, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan event: %w", err)
		}
		events = append(events, evt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list events rows: %w", err)
	}
	return events, nil
}

func scanEvent(row pgx.Row) (domain.Event, error) {
	var (
		evt                 domain.Event
		eventType           string
		claimID, positionID int64
		recipient           string
		amountStr           *string
	)

	if err := row.Scan(&evt.ID, &eventType, &claimID, &positionID, &recipient, &amountStr, &evt.CreatedAt); err != nil {
		return domain.Event{}, err
	}

	evt.Type = domain.EventType(eventType)
	evt.ClaimID = domain.ClaimID(claimID)
	evt.PositionID = domain.PositionID(positionID)
	evt.Recipient = common.HexToAddress(recipient)
	if amountStr != nil {
		amount, ok := new(big.Int).SetString(*amountStr, 10)
		if !ok {
			return domain.Event{}, fmt.Errorf("invalid amount %q", *amountStr)
		}
		evt.Amount = amount
	}
	return evt, nil
}

var _ domain.EventStore = (*EventStore)(nil)
