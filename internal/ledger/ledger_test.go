package ledger

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veloralabs/liqlock/internal/domain"
)

func newRecord(position domain.PositionID, initial int64) domain.LockedPosition {
	return domain.LockedPosition{
		Custodian:       common.HexToAddress("0x00000000000000000000000000000000000000c1"),
		PositionID:      position,
		Depositor:       common.HexToAddress("0x00000000000000000000000000000000000000d1"),
		AssetA:          common.HexToAddress("0x00000000000000000000000000000000000000a1"),
		AssetB:          common.HexToAddress("0x00000000000000000000000000000000000000a2"),
		InitialAmount:   big.NewInt(initial),
		WithdrawnAmount: big.NewInt(0),
		UnlockStart:     1_700_000_000,
		UnlockEnd:       1_700_864_000,
	}
}

func TestCreateAssignsFreshIdentifiers(t *testing.T) {
	l := New(NewCounterSequence())

	first, err := l.Create(newRecord(100, 1000))
	require.NoError(t, err)
	second, err := l.Create(newRecord(101, 1000))
	require.NoError(t, err)

	assert.Equal(t, domain.ClaimID(1), first)
	assert.Equal(t, domain.ClaimID(2), second)
	assert.NotEqual(t, domain.NilClaimID, first)

	// Identifiers are not recycled after removal.
	require.NoError(t, l.Remove(first))
	third, err := l.Create(newRecord(100, 1000))
	require.NoError(t, err)
	assert.Equal(t, domain.ClaimID(3), third)
}

func TestCreateRejectsDuplicateUnderlying(t *testing.T) {
	l := New(NewCounterSequence())

	_, err := l.Create(newRecord(100, 1000))
	require.NoError(t, err)

	_, err = l.Create(newRecord(100, 500))
	require.ErrorIs(t, err, domain.ErrAlreadyExists)
}

func TestGetReturnsIsolatedCopy(t *testing.T) {
	l := New(NewCounterSequence())
	id, err := l.Create(newRecord(100, 1000))
	require.NoError(t, err)

	got, err := l.Get(id)
	require.NoError(t, err)
	got.WithdrawnAmount.SetInt64(999)

	again, err := l.Get(id)
	require.NoError(t, err)
	assert.Equal(t, int64(0), again.WithdrawnAmount.Int64())
}

func TestGetUnknownClaim(t *testing.T) {
	l := New(NewCounterSequence())
	_, err := l.Get(42)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRecordWithdrawal(t *testing.T) {
	l := New(NewCounterSequence())
	id, err := l.Create(newRecord(100, 1000))
	require.NoError(t, err)

	pos, err := l.RecordWithdrawal(id, big.NewInt(400))
	require.NoError(t, err)
	assert.Equal(t, int64(400), pos.WithdrawnAmount.Int64())

	pos, err = l.RecordWithdrawal(id, big.NewInt(600))
	require.NoError(t, err)
	assert.Equal(t, int64(1000), pos.WithdrawnAmount.Int64())

	// One unit past the initial amount trips the overflow guard and leaves
	// the record untouched.
	_, err = l.RecordWithdrawal(id, big.NewInt(1))
	require.ErrorIs(t, err, domain.ErrOverflow)

	pos, err = l.Get(id)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), pos.WithdrawnAmount.Int64())
}

func TestRemoveKeepsIndexesInSync(t *testing.T) {
	l := New(NewCounterSequence())
	id, err := l.Create(newRecord(100, 1000))
	require.NoError(t, err)

	mapped, err := l.ClaimForPosition(100)
	require.NoError(t, err)
	assert.Equal(t, id, mapped)

	require.NoError(t, l.Remove(id))

	_, err = l.Get(id)
	require.ErrorIs(t, err, domain.ErrNotFound)
	_, err = l.ClaimForPosition(100)
	require.ErrorIs(t, err, domain.ErrNotFound)

	require.ErrorIs(t, l.Remove(id), domain.ErrNotFound)
}

func TestSnapshotRestore(t *testing.T) {
	l := New(NewCounterSequence())
	id, err := l.Create(newRecord(100, 1000))
	require.NoError(t, err)

	snap := l.Snapshot()

	_, err = l.RecordWithdrawal(id, big.NewInt(700))
	require.NoError(t, err)
	_, err = l.Create(newRecord(200, 50))
	require.NoError(t, err)

	l.Restore(snap)

	pos, err := l.Get(id)
	require.NoError(t, err)
	assert.Equal(t, int64(0), pos.WithdrawnAmount.Int64())

	_, err = l.ClaimForPosition(200)
	require.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, 1, l.Len())

	// The sequence is not rolled back with the state: identifiers burned in
	// the rolled-back window stay burned.
	next, err := l.Create(newRecord(300, 10))
	require.NoError(t, err)
	assert.Equal(t, domain.ClaimID(3), next)
}

func TestHydrateSeedsSequence(t *testing.T) {
	l := New(NewCounterSequence())

	a := newRecord(100, 1000)
	a.ClaimID = 7
	b := newRecord(200, 500)
	b.ClaimID = 3

	require.NoError(t, l.Hydrate([]domain.LockedPosition{a, b}))

	got, err := l.Get(7)
	require.NoError(t, err)
	assert.Equal(t, domain.PositionID(100), got.PositionID)

	mapped, err := l.ClaimForPosition(200)
	require.NoError(t, err)
	assert.Equal(t, domain.ClaimID(3), mapped)

	id, err := l.Create(newRecord(300, 10))
	require.NoError(t, err)
	assert.Equal(t, domain.ClaimID(8), id)
}
