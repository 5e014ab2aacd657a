package ledger

import (
	"context"
	"errors"
	"math"
	"testing"

	"OpenMint-Vault/internal/authority"
	xerrors "OpenMint-Vault/internal/errors"
	"OpenMint-Vault/internal/identity"
	"OpenMint-Vault/internal/notify"
)

var (
	ownerID    = identity.MustParse("0x00000000000000000000000000000000000000a1")
	holderID   = identity.MustParse("0x00000000000000000000000000000000000000b2")
	strangerID = identity.MustParse("0x00000000000000000000000000000000000000c3")
)

func newTestLedger(t *testing.T) (*Ledger, *notify.MemorySink) {
	t.Helper()
	guard, err := authority.NewGuard(ownerID, nil)
	if err != nil {
		t.Fatalf("new guard: %v", err)
	}
	sink := notify.NewMemorySink()
	return New("GOLD", guard, notify.NewEmitter(notify.NewFanout(sink))), sink
}

func checkConservation(t *testing.T, l *Ledger) {
	t.Helper()
	l.mu.Lock()
	defer l.mu.Unlock()
	var sum uint64
	for _, balance := range l.balances {
		sum += balance
	}
	if sum != l.totalSupply {
		t.Fatalf("conservation broken: sum=%d totalSupply=%d", sum, l.totalSupply)
	}
	if l.cap != 0 && l.totalSupply > l.cap {
		t.Fatalf("cap invariant broken: totalSupply=%d cap=%d", l.totalSupply, l.cap)
	}
}

func TestLedgerInitializeOnce(t *testing.T) {
	l, sink := newTestLedger(t)
	ctx := context.Background()

	if err := l.Initialize(ctx, 1000, 100, holderID); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if !l.Initialized() {
		t.Fatal("ledger not marked initialized")
	}
	if l.TotalSupply() != 100 || l.BalanceOf(holderID) != 100 {
		t.Fatalf("unexpected state: supply=%d balance=%d", l.TotalSupply(), l.BalanceOf(holderID))
	}
	if l.Cap() != 1000 {
		t.Fatalf("unexpected cap: %d", l.Cap())
	}

	if err := l.Initialize(ctx, 500, 1, holderID); !errors.Is(err, ErrAlreadyInitialized) {
		t.Fatalf("expected ErrAlreadyInitialized, got %v", err)
	}
	if l.TotalSupply() != 100 || l.Cap() != 1000 {
		t.Fatal("rejected re-initialize changed state")
	}

	events := sink.Events()
	if len(events) != 1 || events[0].Kind != notify.KindLedgerInitialized {
		t.Fatalf("unexpected events: %+v", events)
	}
	if events[0].OldValue != "0" || events[0].NewValue != "100" {
		t.Fatalf("unexpected payload: %s -> %s", events[0].OldValue, events[0].NewValue)
	}
	if events[0].Metadata["cap"] != "1000" {
		t.Fatalf("missing cap metadata: %+v", events[0].Metadata)
	}
	checkConservation(t, l)
}

func TestLedgerInitializeValidation(t *testing.T) {
	ctx := context.Background()

	l, sink := newTestLedger(t)
	err := l.Initialize(ctx, 10, 11, holderID)
	if xerrors.CodeOf(err) != xerrors.CodeInvalidArgument {
		t.Fatalf("expected INVALID_ARGUMENT for cap below supply, got %v", err)
	}
	if l.Initialized() {
		t.Fatal("failed initialize must leave ledger uninitialized")
	}
	if len(sink.Events()) != 0 {
		t.Fatal("failed initialize must not emit events")
	}

	err = l.Initialize(ctx, 0, 5, identity.Null)
	if xerrors.CodeOf(err) != xerrors.CodeInvalidArgument {
		t.Fatalf("expected INVALID_ARGUMENT for null holder, got %v", err)
	}

	// 初始供应为零时允许空持有人。
	if err := l.Initialize(ctx, 0, 0, identity.Null); err != nil {
		t.Fatalf("zero-supply initialize: %v", err)
	}
	if l.Cap() != math.MaxUint64 {
		t.Fatalf("uncapped ledger must report max cap, got %d", l.Cap())
	}
}

func TestLedgerMint(t *testing.T) {
	l, sink := newTestLedger(t)
	ctx := context.Background()

	if err := l.Mint(ctx, ownerID, holderID, 1); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}
	if err := l.Initialize(ctx, 100, 90, holderID); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	sink.Reset()

	if err := l.Mint(ctx, strangerID, holderID, 1); !errors.Is(err, authority.ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}
	if err := l.Mint(ctx, ownerID, identity.Null, 1); xerrors.CodeOf(err) != xerrors.CodeInvalidArgument {
		t.Fatalf("expected INVALID_ARGUMENT for null recipient, got %v", err)
	}
	if err := l.Mint(ctx, ownerID, holderID, 0); xerrors.CodeOf(err) != xerrors.CodeInvalidArgument {
		t.Fatalf("expected INVALID_ARGUMENT for zero amount, got %v", err)
	}
	if err := l.Mint(ctx, ownerID, holderID, 11); !errors.Is(err, ErrCapExceeded) {
		t.Fatalf("expected ErrCapExceeded, got %v", err)
	}
	if l.TotalSupply() != 90 {
		t.Fatalf("rejected mints changed supply: %d", l.TotalSupply())
	}
	if len(sink.Events()) != 0 {
		t.Fatalf("rejected mints must not emit events, got %d", len(sink.Events()))
	}

	if err := l.Mint(ctx, ownerID, strangerID, 10); err != nil {
		t.Fatalf("mint to boundary: %v", err)
	}
	if l.TotalSupply() != 100 || l.BalanceOf(strangerID) != 10 {
		t.Fatalf("unexpected state: supply=%d balance=%d", l.TotalSupply(), l.BalanceOf(strangerID))
	}
	checkConservation(t, l)

	events := sink.Events()
	if len(events) != 1 || events[0].Kind != notify.KindLedgerMinted {
		t.Fatalf("unexpected events: %+v", events)
	}
	if events[0].OldValue != "90" || events[0].NewValue != "100" || events[0].Amount != 10 {
		t.Fatalf("unexpected payload: %s -> %s amount=%d", events[0].OldValue, events[0].NewValue, events[0].Amount)
	}
	if events[0].Subject != strangerID {
		t.Fatalf("unexpected subject: %s", events[0].Subject.Hex())
	}
}

func TestLedgerMintOverflow(t *testing.T) {
	l, sink := newTestLedger(t)
	ctx := context.Background()

	if err := l.Initialize(ctx, 0, math.MaxUint64-5, holderID); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	sink.Reset()

	if err := l.Mint(ctx, ownerID, holderID, 6); !errors.Is(err, ErrSupplyOverflow) {
		t.Fatalf("expected ErrSupplyOverflow, got %v", err)
	}
	if l.TotalSupply() != math.MaxUint64-5 {
		t.Fatalf("rejected mint changed supply: %d", l.TotalSupply())
	}
	if err := l.Mint(ctx, ownerID, holderID, 5); err != nil {
		t.Fatalf("mint to representable limit: %v", err)
	}
	if l.TotalSupply() != math.MaxUint64 {
		t.Fatalf("unexpected supply: %d", l.TotalSupply())
	}
	checkConservation(t, l)
}

func TestLedgerBurn(t *testing.T) {
	l, sink := newTestLedger(t)
	ctx := context.Background()

	if err := l.Initialize(ctx, 0, 50, ownerID); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	sink.Reset()

	if err := l.Burn(ctx, strangerID, 1); !errors.Is(err, authority.ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}
	if err := l.Burn(ctx, ownerID, 0); xerrors.CodeOf(err) != xerrors.CodeInvalidArgument {
		t.Fatalf("expected INVALID_ARGUMENT for zero amount, got %v", err)
	}
	if err := l.Burn(ctx, ownerID, 51); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	if l.TotalSupply() != 50 {
		t.Fatalf("rejected burns changed supply: %d", l.TotalSupply())
	}

	if err := l.Burn(ctx, ownerID, 20); err != nil {
		t.Fatalf("burn: %v", err)
	}
	if l.TotalSupply() != 30 || l.BalanceOf(ownerID) != 30 {
		t.Fatalf("unexpected state: supply=%d balance=%d", l.TotalSupply(), l.BalanceOf(ownerID))
	}
	checkConservation(t, l)

	events := sink.Events()
	if len(events) != 1 || events[0].Kind != notify.KindLedgerBurned {
		t.Fatalf("unexpected events: %+v", events)
	}
	if events[0].OldValue != "50" || events[0].NewValue != "30" {
		t.Fatalf("unexpected payload: %s -> %s", events[0].OldValue, events[0].NewValue)
	}

	// 烧光余额后持有人应从映射中移除。
	if err := l.Burn(ctx, ownerID, 30); err != nil {
		t.Fatalf("burn remainder: %v", err)
	}
	if l.HolderCount() != 0 || l.TotalSupply() != 0 {
		t.Fatalf("unexpected state after full burn: holders=%d supply=%d", l.HolderCount(), l.TotalSupply())
	}
	checkConservation(t, l)
}

func TestLedgerBurnFromAlwaysDisabled(t *testing.T) {
	l, sink := newTestLedger(t)
	ctx := context.Background()

	if err := l.BurnFrom(ctx, ownerID, holderID, 1); !errors.Is(err, ErrDelegatedBurnDisabled) {
		t.Fatalf("expected ErrDelegatedBurnDisabled before init, got %v", err)
	}
	if err := l.Initialize(ctx, 0, 50, holderID); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	sink.Reset()

	for _, caller := range []identity.Identity{ownerID, holderID, strangerID} {
		if err := l.BurnFrom(ctx, caller, holderID, 10); !errors.Is(err, ErrDelegatedBurnDisabled) {
			t.Fatalf("expected ErrDelegatedBurnDisabled for %s, got %v", caller.Hex(), err)
		}
	}
	if l.TotalSupply() != 50 || l.BalanceOf(holderID) != 50 {
		t.Fatal("disabled operation changed state")
	}
	if len(sink.Events()) != 0 {
		t.Fatal("disabled operation emitted events")
	}
}

func TestLedgerConservationUnderSequence(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()

	if err := l.Initialize(ctx, 10_000, 1_000, ownerID); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	recipients := []identity.Identity{ownerID, holderID, strangerID}
	for i := 0; i < 60; i++ {
		to := recipients[i%len(recipients)]
		if err := l.Mint(ctx, ownerID, to, uint64(i%7+1)); err != nil {
			t.Fatalf("mint %d: %v", i, err)
		}
		if i%5 == 0 {
			if err := l.Burn(ctx, ownerID, 2); err != nil {
				t.Fatalf("burn %d: %v", i, err)
			}
		}
		checkConservation(t, l)
	}
}
