package postgres

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/veloralabs/liqlock/internal/domain"
)

// LockStore implements domain.LockStore using PostgreSQL. Amounts are stored
// as decimal strings to preserve arbitrary precision.
type LockStore struct {
	pool *pgxpool.Pool
}

// NewLockStore creates a LockStore backed by the given connection pool.
func NewLockStore(pool *pgxpool.Pool) *LockStore {
	return &LockStore{pool: pool}
}

// Put inserts or fully replaces the record for its claim identifier.
func (s *LockStore) Put(ctx context.Context, pos domain.LockedPosition) error {
	const query = `
		INSERT INTO locked_positions (
			claim_id, custodian, position_id, depositor,
			asset_a, asset_b, initial_amount, withdrawn_amount,
			unlock_start, unlock_end, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (claim_id) DO UPDATE SET
			withdrawn_amount = EXCLUDED.withdrawn_amount`

	_, err := s.pool.Exec(ctx, query,
		int64(pos.ClaimID),
		pos.Custodian.Hex(),
		int64(pos.PositionID),
		pos.Depositor.Hex(),
		pos.AssetA.Hex(),
		pos.AssetB.Hex(),
		pos.InitialAmount.String(),
		pos.WithdrawnAmount.String(),
		int64(pos.UnlockStart),
		int64(pos.UnlockEnd),
		pos.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: put locked position %d: %w", pos.ClaimID, err)
	}
	return nil
}

// Delete removes the record for the claim identifier.
func (s *LockStore) Delete(ctx context.Context, id domain.ClaimID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM locked_positions WHERE claim_id = $1`, int64(id))
	if err != nil {
		return fmt.Errorf("postgres: delete locked position %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: locked position %d: %w", id, domain.ErrNotFound)
	}
	return nil
}

// Get returns the record for the claim identifier.
func (s *LockStore) Get(ctx context.Context, id domain.ClaimID) (domain.LockedPosition, error) {
	const query = `
		SELECT claim_id, custodian, position_id, depositor,
		       asset_a, asset_b, initial_amount, withdrawn_amount,
		       unlock_start, unlock_end, created_at
		FROM locked_positions WHERE claim_id = $1`

	pos, err := scanLockedPosition(s.pool.QueryRow(ctx, query, int64(id)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.LockedPosition{}, fmt.Errorf("postgres: locked position %d: %w", id, domain.ErrNotFound)
		}
		return domain.LockedPosition{}, fmt.Errorf("postgres: get locked position %d: %w", id, err)
	}
	return pos, nil
}

// LoadAll returns every persisted record, used for startup hydration.
func (s *LockStore) LoadAll(ctx context.Context) ([]domain.LockedPosition, error) {
	const query = `
		SELECT claim_id, custodian, position_id, depositor,
		       asset_a, asset_b, initial_amount, withdrawn_amount,
		       unlock_start, unlock_end, created_at
		FROM locked_positions ORDER BY claim_id`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("postgres: load locked positions: %w", err)
	}
	defer rows.Close()

	var positions []domain.LockedPosition
	for rows.Next() {
		pos, err := scanLockedPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan locked position: %w", err)
		}
		positions = append(positions, pos)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: load locked positions rows: %w", err)
	}
	return positions, nil
}

// scanLockedPosition maps one row onto the domain record.
func scanLockedPosition(row pgx.Row) (domain.LockedPosition, error) {
	var (
		pos                      domain.LockedPosition
		claimID, positionID      int64
		unlockStart, unlockEnd   int64
		custodian, depositor     string
		assetA, assetB           string
		initialStr, withdrawnStr string
	)

	if err := row.Scan(
		&claimID, &custodian, &positionID, &depositor,
		&assetA, &assetB, &initialStr, &withdrawnStr,
		&unlockStart, &unlockEnd, &pos.CreatedAt,
	); err != nil {
		return domain.LockedPosition{}, err
	}

	initial, ok := new(big.Int).SetString(initialStr, 10)
	if !ok {
		return domain.LockedPosition{}, fmt.Errorf("invalid initial_amount %q", initialStr)
	}
	withdrawn, ok := new(big.Int).SetString(withdrawnStr, 10)
	if !ok {
		return domain.LockedPosition{}, fmt.Errorf("invalid withdrawn_amount %q", withdrawnStr)
	}

	pos.ClaimID = domain.ClaimID(claimID)
	pos.Custodian = common.HexToAddress(custodian)
	pos.PositionID = domain.PositionID(positionID)
	pos.Depositor = common.HexToAddress(depositor)
	pos.AssetA = common.HexToAddress(assetA)
	pos.AssetB = common.HexToAddress(assetB)
	pos.InitialAmount = initial
	pos.WithdrawnAmount = withdrawn
	pos.UnlockStart = uint64(unlockStart)
	pos.UnlockEnd = uint64(unlockEnd)
	return pos, nil
}

var _ domain.LockStore = (*LockStore)(nil)
