package service

import (
	"context"
	"errors"
	"log/slog"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veloralabs/liqlock/internal/domain"
	"github.com/veloralabs/liqlock/internal/ledger"
	"github.com/veloralabs/liqlock/internal/store/memory"
	"github.com/veloralabs/liqlock/internal/token"
)

var (
	assetA    = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	assetB    = common.HexToAddress("0x00000000000000000000000000000000000000bb")
	wrapper   = common.HexToAddress("0x000000000000000000000000000000000000c0de")
	custodian = common.HexToAddress("0x0000000000000000000000000000000000000c05")
	holding   = common.HexToAddress("0x000000000000000000000000000000000000401d")
	depositor = common.HexToAddress("0x0000000000000000000000000000000000000d01")
	stranger  = common.HexToAddress("0x0000000000000000000000000000000000000bad")
)

// fakeCustodian is a scripted PositionCustodian. onDecrease runs inside
// DecreaseLiquidity to model a collaborator calling back into the engine.
type fakeCustodian struct {
	info        domain.PositionInfo
	infoErr     error
	decreaseErr error
	collectErr  error
	transferErr error
	collectA    *big.Int
	collectB    *big.Int

	onDecrease func()

	decreaseCalls int
	collectCalls  int
	transferredTo common.Address
	lastDecrease  *big.Int
	lastDeadline  uint64
}

func (f *fakeCustodian) PositionInfo(context.Context, domain.PositionID) (domain.PositionInfo, error) {
	return f.info, f.infoErr
}

func (f *fakeCustodian) DecreaseLiquidity(_ context.Context, _ domain.PositionID, amount, _, _ *big.Int, deadline uint64) (*big.Int, *big.Int, error) {
	f.decreaseCalls++
	f.lastDecrease = new(big.Int).Set(amount)
	f.lastDeadline = deadline
	if f.onDecrease != nil {
		f.onDecrease()
	}
	if f.decreaseErr != nil {
		return nil, nil, f.decreaseErr
	}
	return new(big.Int).Set(amount), new(big.Int).Set(amount), nil
}

func (f *fakeCustodian) Collect(_ context.Context, _ domain.PositionID, _ common.Address, maxA, maxB *big.Int) (*big.Int, *big.Int, error) {
	f.collectCalls++
	if f.collectErr != nil {
		return nil, nil, f.collectErr
	}
	a, b := f.collectA, f.collectB
	if a == nil {
		a = new(big.Int).Set(maxA)
	}
	if b == nil {
		b = new(big.Int).Set(maxB)
	}
	return new(big.Int).Set(a), new(big.Int).Set(b), nil
}

func (f *fakeCustodian) TransferOwnership(_ context.Context, _ domain.PositionID, to common.Address) error {
	if f.transferErr != nil {
		return f.transferErr
	}
	f.transferredTo = to
	return nil
}

func (f *fakeCustodian) NativeWrapper(context.Context) (common.Address, error) {
	return wrapper, nil
}

// fakeTransfer records disbursements.
type fakeTransfer struct {
	transfers []string
	unwraps   []string
}

func (f *fakeTransfer) Transfer(_ context.Context, asset, to common.Address, amount *big.Int) error {
	f.transfers = append(f.transfers, asset.Hex()+":"+to.Hex()+":"+amount.String())
	return nil
}

func (f *fakeTransfer) UnwrapNative(_ context.Context, _, to common.Address, amount *big.Int) error {
	f.unwraps = append(f.unwraps, to.Hex()+":"+amount.String())
	return nil
}

// failingLockStore fails Put after a configurable number of successes.
type failingLockStore struct {
	*memory.LockStore
	failAfter int
	puts      int
}

func (s *failingLockStore) Put(ctx context.Context, pos domain.LockedPosition) error {
	s.puts++
	if s.puts > s.failAfter {
		return errors.New("disk full")
	}
	return s.LockStore.Put(ctx, pos)
}

func fixedClock(sec uint64) domain.Clock {
	return func() time.Time { return time.Unix(int64(sec), 0) }
}

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

type fixture struct {
	ledger    *ledger.Ledger
	registry  *token.Registry
	custodian *fakeCustodian
	transfer  *fakeTransfer
	locks     *memory.LockStore
	events    *memory.EventStore
}

func newFixture(liquidity int64) *fixture {
	return &fixture{
		ledger:   ledger.New(ledger.NewCounterSequence()),
		registry: token.NewRegistry(),
		custodian: &fakeCustodian{
			info: domain.PositionInfo{
				AssetA:    assetA,
				AssetB:    assetB,
				Liquidity: big.NewInt(liquidity),
			},
		},
		transfer: &fakeTransfer{},
		locks:    memory.NewLockStore(),
		events:   memory.NewEventStore(),
	}
}

func (f *fixture) intake(clock domain.Clock) *IntakeService {
	return NewIntakeService(f.ledger, f.registry, f.custodian, f.locks, nil, f.events, nil, clock, testLogger())
}

func (f *fixture) withdraw(clock domain.Clock) *WithdrawService {
	return NewWithdrawService(f.ledger, f.registry, f.custodian, f.transfer, f.locks, f.events, nil, clock, holding, testLogger())
}

func (f *fixture) release(clock domain.Clock) *ReleaseService {
	return NewReleaseService(f.ledger, f.registry, f.custodian, f.locks, nil, f.events, nil, clock, testLogger())
}

func notice(pos domain.PositionID, start, end uint64) DepositNotice {
	return DepositNotice{
		Custodian:  custodian,
		PositionID: pos,
		Depositor:  depositor,
		Payload:    domain.EncodeSchedule(domain.Schedule{UnlockStart: start, UnlockEnd: end}),
	}
}

func TestIntakeLock(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		f := newFixture(1_000_000)
		svc := f.intake(fixedClock(100))

		rec, err := svc.Lock(ctx, notice(42, 100, 964_100))
		require.NoError(t, err)

		assert.Equal(t, domain.ClaimID(1), rec.ClaimID)
		assert.Equal(t, "1000000", rec.InitialAmount.String())
		assert.Equal(t, "0", rec.WithdrawnAmount.String())
		assert.Equal(t, assetA, rec.AssetA)
		assert.Equal(t, assetB, rec.AssetB)

		owner, err := f.registry.OwnerOf(rec.ClaimID)
		require.NoError(t, err)
		assert.Equal(t, depositor, owner)

		persisted, err := f.locks.Get(ctx, rec.ClaimID)
		require.NoError(t, err)
		assert.Equal(t, rec.PositionID, persisted.PositionID)

		evts, err := f.events.List(ctx, domain.ListOpts{})
		require.NoError(t, err)
		require.Len(t, evts, 1)
		assert.Equal(t, domain.EventPositionLocked, evts[0].Type)
	})

	t.Run("malformed payload", func(t *testing.T) {
		f := newFixture(1_000_000)
		svc := f.intake(fixedClock(100))

		n := notice(42, 100, 200)
		n.Payload = n.Payload[:15]
		_, err := svc.Lock(ctx, n)
		assert.ErrorIs(t, err, domain.ErrInvalidSchedule)
	})

	t.Run("start in the past", func(t *testing.T) {
		f := newFixture(1_000_000)
		svc := f.intake(fixedClock(100))

		_, err := svc.Lock(ctx, notice(42, 99, 200))
		assert.ErrorIs(t, err, domain.ErrInvalidSchedule)
	})

	t.Run("end not after start", func(t *testing.T) {
		f := newFixture(1_000_000)
		svc := f.intake(fixedClock(100))

		_, err := svc.Lock(ctx, notice(42, 100, 100))
		assert.ErrorIs(t, err, domain.ErrInvalidSchedule)
	})

	t.Run("empty position", func(t *testing.T) {
		f := newFixture(0)
		svc := f.intake(fixedClock(100))

		_, err := svc.Lock(ctx, notice(42, 100, 200))
		assert.ErrorIs(t, err, domain.ErrEmptyPosition)
		assert.Equal(t, 0, f.ledger.Len())
	})

	t.Run("zero asset identity", func(t *testing.T) {
		f := newFixture(1_000_000)
		f.custodian.info.AssetB = common.Address{}
		svc := f.intake(fixedClock(100))

		_, err := svc.Lock(ctx, notice(42, 100, 200))
		assert.ErrorIs(t, err, domain.ErrInvalidAsset)
	})

	t.Run("persistence failure rolls back mint", func(t *testing.T) {
		f := newFixture(1_000_000)
		locks := &failingLockStore{LockStore: f.locks, failAfter: 0}
		svc := NewIntakeService(f.ledger, f.registry, f.custodian, locks, nil, f.events, nil, fixedClock(100), testLogger())

		_, err := svc.Lock(ctx, notice(42, 100, 200))
		require.Error(t, err)

		assert.Equal(t, 0, f.ledger.Len())
		_, err = f.registry.OwnerOf(domain.ClaimID(1))
		assert.ErrorIs(t, err, domain.ErrNotFound)

		// The burned identifier is not recycled by the next intake.
		rec, err := svc.Lock(ctx, notice(43, 100, 200))
		require.Error(t, err) // store still failing
		svc2 := f.intake(fixedClock(100))
		rec, err = svc2.Lock(ctx, notice(43, 100, 200))
		require.NoError(t, err)
		assert.Greater(t, uint64(rec.ClaimID), uint64(1))
	})

	t.Run("same underlying again after release is a new claim", func(t *testing.T) {
		f := newFixture(1_000_000)
		intake := f.intake(fixedClock(100))
		rel := f.release(fixedClock(1000))

		first, err := intake.Lock(ctx, notice(42, 100, 200))
		require.NoError(t, err)
		require.NoError(t, rel.ReturnUnderlying(ctx, first.ClaimID, depositor))

		second, err := intake.Lock(ctx, notice(42, 100, 200))
		require.NoError(t, err)
		assert.Greater(t, uint64(second.ClaimID), uint64(first.ClaimID))
	})
}

func TestWithdraw(t *testing.T) {
	ctx := context.Background()

	// Schedule 100..1000, initial 1,000,000. At t=550 half is vested.
	setup := func(t *testing.T, f *fixture) domain.ClaimID {
		t.Helper()
		rec, err := f.intake(fixedClock(100)).Lock(ctx, notice(42, 100, 1000))
		require.NoError(t, err)
		return rec.ClaimID
	}

	t.Run("success updates ledger and disburses", func(t *testing.T) {
		f := newFixture(1_000_000)
		id := setup(t, f)
		svc := f.withdraw(fixedClock(550))

		f.custodian.collectA = big.NewInt(200_000)
		f.custodian.collectB = big.NewInt(300_000)

		err := svc.Withdraw(ctx, WithdrawRequest{
			ClaimID:   id,
			Caller:    depositor,
			Recipient: depositor,
			Amount:    big.NewInt(200_000),
			MinA:      big.NewInt(1),
			MinB:      big.NewInt(1),
			Deadline:  600,
		})
		require.NoError(t, err)

		rec, err := f.ledger.Get(id)
		require.NoError(t, err)
		assert.Equal(t, "200000", rec.WithdrawnAmount.String())

		assert.Equal(t, 1, f.custodian.decreaseCalls)
		assert.Equal(t, "200000", f.custodian.lastDecrease.String())
		assert.Equal(t, uint64(600), f.custodian.lastDeadline)
		assert.Equal(t, 1, f.custodian.collectCalls)
		require.Len(t, f.transfer.transfers, 2)
		assert.Empty(t, f.transfer.unwraps)

		persisted, err := f.locks.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "200000", persisted.WithdrawnAmount.String())

		evts, err := f.events.List(ctx, domain.ListOpts{})
		require.NoError(t, err)
		require.Len(t, evts, 2)
		assert.Equal(t, domain.EventWithdrawal, evts[0].Type)
		require.NotNil(t, evts[0].Amount)
		assert.Equal(t, "200000", evts[0].Amount.String())
	})

	t.Run("native wrapper side is unwrapped", func(t *testing.T) {
		f := newFixture(1_000_000)
		f.custodian.info.AssetA = wrapper
		id := setup(t, f)
		svc := f.withdraw(fixedClock(550))

		f.custodian.collectA = big.NewInt(5)
		f.custodian.collectB = big.NewInt(7)

		err := svc.Withdraw(ctx, WithdrawRequest{
			ClaimID:   id,
			Caller:    depositor,
			Recipient: stranger,
			Amount:    big.NewInt(1),
			Deadline:  600,
		})
		require.NoError(t, err)

		require.Len(t, f.transfer.unwraps, 1)
		assert.Equal(t, stranger.Hex()+":5", f.transfer.unwraps[0])
		require.Len(t, f.transfer.transfers, 1)
	})

	t.Run("not the holder", func(t *testing.T) {
		f := newFixture(1_000_000)
		id := setup(t, f)
		svc := f.withdraw(fixedClock(550))

		err := svc.Withdraw(ctx, WithdrawRequest{
			ClaimID: id, Caller: stranger, Recipient: stranger,
			Amount: big.NewInt(1), Deadline: 600,
		})
		assert.ErrorIs(t, err, domain.ErrNotAuthorized)
		assert.Equal(t, 0, f.custodian.decreaseCalls)
	})

	t.Run("unknown claim", func(t *testing.T) {
		f := newFixture(1_000_000)
		svc := f.withdraw(fixedClock(550))

		err := svc.Withdraw(ctx, WithdrawRequest{
			ClaimID: 99, Caller: depositor, Recipient: depositor,
			Amount: big.NewInt(1), Deadline: 600,
		})
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("requested above available", func(t *testing.T) {
		f := newFixture(1_000_000)
		id := setup(t, f)
		svc := f.withdraw(fixedClock(550))

		err := svc.Withdraw(ctx, WithdrawRequest{
			ClaimID: id, Caller: depositor, Recipient: depositor,
			Amount: big.NewInt(500_001), Deadline: 600,
		})
		assert.ErrorIs(t, err, domain.ErrUnavailable)
		assert.Equal(t, 0, f.custodian.decreaseCalls)
	})

	t.Run("custodian failure restores ledger and mirror", func(t *testing.T) {
		f := newFixture(1_000_000)
		id := setup(t, f)
		f.custodian.decreaseErr = errors.New("deadline expired")
		svc := f.withdraw(fixedClock(550))

		err := svc.Withdraw(ctx, WithdrawRequest{
			ClaimID: id, Caller: depositor, Recipient: depositor,
			Amount: big.NewInt(100), Deadline: 1,
		})
		require.Error(t, err)

		rec, err := f.ledger.Get(id)
		require.NoError(t, err)
		assert.Equal(t, "0", rec.WithdrawnAmount.String())

		persisted, err := f.locks.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "0", persisted.WithdrawnAmount.String())
	})

	t.Run("reentrant callback cannot double-spend", func(t *testing.T) {
		f := newFixture(1_000_000)
		id := setup(t, f)
		svc := f.withdraw(fixedClock(550))

		// Available at t=550 is 500,000. The callback re-enters Withdraw for
		// the same 500,000 while the outer call is mid-flight; the ledger has
		// already recorded the outer withdrawal, so the inner one must fail.
		var inner error
		reentered := false
		f.custodian.onDecrease = func() {
			if reentered {
				return
			}
			reentered = true
			inner = svc.Withdraw(ctx, WithdrawRequest{
				ClaimID: id, Caller: depositor, Recipient: stranger,
				Amount: big.NewInt(500_000), Deadline: 600,
			})
		}

		err := svc.Withdraw(ctx, WithdrawRequest{
			ClaimID: id, Caller: depositor, Recipient: depositor,
			Amount: big.NewInt(500_000), Deadline: 600,
		})
		require.NoError(t, err)
		require.True(t, reentered)
		assert.ErrorIs(t, inner, domain.ErrUnavailable)

		rec, err := f.ledger.Get(id)
		require.NoError(t, err)
		assert.Equal(t, "500000", rec.WithdrawnAmount.String())
	})
}

func TestCollectAndWithdraw(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T, f *fixture) domain.ClaimID {
		t.Helper()
		rec, err := f.intake(fixedClock(100)).Lock(ctx, notice(42, 100, 1000))
		require.NoError(t, err)
		return rec.ClaimID
	}

	t.Run("sweeps yield without touching principal", func(t *testing.T) {
		f := newFixture(1_000_000)
		id := setup(t, f)
		svc := f.withdraw(fixedClock(550))

		f.custodian.collectA = big.NewInt(111)
		f.custodian.collectB = big.NewInt(222)

		err := svc.CollectAndWithdraw(ctx, CollectRequest{
			ClaimID: id, Caller: depositor, Recipient: depositor,
			MinA: big.NewInt(100), MinB: big.NewInt(200),
		})
		require.NoError(t, err)

		rec, err := f.ledger.Get(id)
		require.NoError(t, err)
		assert.Equal(t, "0", rec.WithdrawnAmount.String())
		assert.Equal(t, 0, f.custodian.decreaseCalls)
		require.Len(t, f.transfer.transfers, 2)

		evts, err := f.events.List(ctx, domain.ListOpts{})
		require.NoError(t, err)
		require.Len(t, evts, 2)
		assert.Equal(t, domain.EventProceedsCollected, evts[0].Type)
	})

	t.Run("under minimum", func(t *testing.T) {
		f := newFixture(1_000_000)
		id := setup(t, f)
		svc := f.withdraw(fixedClock(550))

		f.custodian.collectA = big.NewInt(99)
		f.custodian.collectB = big.NewInt(222)

		err := svc.CollectAndWithdraw(ctx, CollectRequest{
			ClaimID: id, Caller: depositor, Recipient: depositor,
			MinA: big.NewInt(100), MinB: big.NewInt(200),
		})
		assert.ErrorIs(t, err, domain.ErrUnavailable)
		assert.Empty(t, f.transfer.transfers)
	})

	t.Run("not the holder", func(t *testing.T) {
		f := newFixture(1_000_000)
		id := setup(t, f)
		svc := f.withdraw(fixedClock(550))

		err := svc.CollectAndWithdraw(ctx, CollectRequest{
			ClaimID: id, Caller: stranger, Recipient: stranger,
		})
		assert.ErrorIs(t, err, domain.ErrNotAuthorized)
		assert.Equal(t, 0, f.custodian.collectCalls)
	})
}

func TestReturnUnderlying(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T, f *fixture) domain.ClaimID {
		t.Helper()
		rec, err := f.intake(fixedClock(100)).Lock(ctx, notice(42, 100, 1000))
		require.NoError(t, err)
		return rec.ClaimID
	}

	t.Run("before unlock end", func(t *testing.T) {
		f := newFixture(1_000_000)
		id := setup(t, f)

		err := f.release(fixedClock(999)).ReturnUnderlying(ctx, id, depositor)
		assert.ErrorIs(t, err, domain.ErrNotFullyVested)
	})

	t.Run("terminal release", func(t *testing.T) {
		f := newFixture(1_000_000)
		id := setup(t, f)

		err := f.release(fixedClock(1000)).ReturnUnderlying(ctx, id, depositor)
		require.NoError(t, err)

		assert.Equal(t, depositor, f.custodian.transferredTo)

		_, err = f.ledger.Get(id)
		assert.ErrorIs(t, err, domain.ErrNotFound)
		_, err = f.ledger.ClaimForPosition(42)
		assert.ErrorIs(t, err, domain.ErrNotFound)
		_, err = f.registry.OwnerOf(id)
		assert.ErrorIs(t, err, domain.ErrNotFound)
		_, err = f.locks.Get(ctx, id)
		assert.ErrorIs(t, err, domain.ErrNotFound)

		evts, err := f.events.List(ctx, domain.ListOpts{})
		require.NoError(t, err)
		require.Len(t, evts, 2)
		assert.Equal(t, domain.EventUnderlyingReturned, evts[0].Type)
	})

	t.Run("release gate ignores remaining principal", func(t *testing.T) {
		f := newFixture(1_000_000)
		id := setup(t, f)

		// Nothing withdrawn, schedule elapsed: release still succeeds.
		err := f.release(fixedClock(5000)).ReturnUnderlying(ctx, id, depositor)
		require.NoError(t, err)
	})

	t.Run("not the holder", func(t *testing.T) {
		f := newFixture(1_000_000)
		id := setup(t, f)

		err := f.release(fixedClock(1000)).ReturnUnderlying(ctx, id, stranger)
		assert.ErrorIs(t, err, domain.ErrNotAuthorized)
	})

	t.Run("transfer of claim token moves release rights", func(t *testing.T) {
		f := newFixture(1_000_000)
		id := setup(t, f)

		require.NoError(t, f.registry.Transfer(id, depositor, stranger))

		err := f.release(fixedClock(1000)).ReturnUnderlying(ctx, id, depositor)
		assert.ErrorIs(t, err, domain.ErrNotAuthorized)
		require.NoError(t, f.release(fixedClock(1000)).ReturnUnderlying(ctx, id, stranger))
		assert.Equal(t, stranger, f.custodian.transferredTo)
	})

	t.Run("custodian failure restores everything", func(t *testing.T) {
		f := newFixture(1_000_000)
		id := setup(t, f)
		f.custodian.transferErr = errors.New("custodian down")

		err := f.release(fixedClock(1000)).ReturnUnderlying(ctx, id, depositor)
		require.Error(t, err)

		_, err = f.ledger.Get(id)
		assert.NoError(t, err)
		owner, err := f.registry.OwnerOf(id)
		require.NoError(t, err)
		assert.Equal(t, depositor, owner)
		_, err = f.locks.Get(ctx, id)
		assert.NoError(t, err)
	})
}

func TestLookupService(t *testing.T) {
	ctx := context.Background()

	f := newFixture(1_000_000)
	rec, err := f.intake(fixedClock(100)).Lock(ctx, notice(42, 100, 1000))
	require.NoError(t, err)

	svc := NewLookupService(f.ledger, f.registry, nil, testLogger())

	id, err := svc.ClaimForUnderlying(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, rec.ClaimID, id)

	pos, err := svc.UnderlyingForClaim(ctx, rec.ClaimID)
	require.NoError(t, err)
	assert.Equal(t, domain.PositionID(42), pos)

	holder, err := svc.HolderOfUnderlying(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, depositor, holder)

	_, err = svc.ClaimForUnderlying(ctx, 77)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
