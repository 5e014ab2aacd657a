package journal

import (
	"context"
	stdErrors "errors"
	"fmt"
	"testing"
	"time"

	"OpenMint-Vault/internal/identity"
	"OpenMint-Vault/internal/notify"
)

var (
	recorderOwner  = identity.MustParse("0x00000000000000000000000000000000000000a1")
	recorderHolder = identity.MustParse("0x00000000000000000000000000000000000000b2")
)

func mintedEvent(id string, seq uint64, amount uint64) notify.Event {
	return notify.Event{
		ID:         id,
		Kind:       notify.KindLedgerMinted,
		Asset:      "GOLD",
		Actor:      recorderOwner,
		Subject:    recorderHolder,
		Amount:     amount,
		NewValue:   "100",
		Sequence:   seq,
		OccurredAt: time.Now().UTC(),
	}
}

func TestRecorderChainsDigests(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	recorder, err := NewRecorder(ctx, store)
	if err != nil {
		t.Fatalf("new recorder: %v", err)
	}

	pauseEvent := notify.Event{
		ID:         "evt-2",
		Kind:       notify.KindGatePaused,
		Actor:      recorderOwner,
		OldValue:   "active",
		NewValue:   "paused",
		Sequence:   2,
		OccurredAt: time.Now().UTC(),
	}
	events := []notify.Event{mintedEvent("evt-1", 1, 100), pauseEvent, mintedEvent("evt-3", 3, 50)}
	for _, event := range events {
		if err := recorder.Deliver(ctx, event); err != nil {
			t.Fatalf("deliver %s: %v", event.ID, err)
		}
	}

	records, err := recorder.List(ctx, WithSortOrder(SortBySequenceAsc))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	if records[0].PrevDigest != "" {
		t.Fatalf("first record should have empty prev digest, got %q", records[0].PrevDigest)
	}
	for i := 1; i < len(records); i++ {
		if records[i].PrevDigest != records[i-1].Digest {
			t.Fatalf("record %s not chained onto %s", records[i].ID, records[i-1].ID)
		}
	}
	if records[0].Actor != recorderOwner.Hex() {
		t.Fatalf("unexpected actor: %s", records[0].Actor)
	}
	if records[0].Subject != recorderHolder.Hex() {
		t.Fatalf("unexpected subject: %s", records[0].Subject)
	}
	if records[1].Subject != "" {
		t.Fatalf("null subject should be stored empty, got %q", records[1].Subject)
	}

	checked, err := recorder.Verify(ctx)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if checked != 3 {
		t.Fatalf("expected 3 verified records, got %d", checked)
	}
}

func TestRecorderResumesChainAcrossRestarts(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	first, err := NewRecorder(ctx, store)
	if err != nil {
		t.Fatalf("new recorder: %v", err)
	}
	if err := first.Deliver(ctx, mintedEvent("evt-1", 1, 100)); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if err := first.Deliver(ctx, mintedEvent("evt-2", 2, 25)); err != nil {
		t.Fatalf("deliver: %v", err)
	}

	// 重启后的 Recorder 必须从存储恢复链尾，而不是重新开链。
	second, err := NewRecorder(ctx, store)
	if err != nil {
		t.Fatalf("reopen recorder: %v", err)
	}
	if err := second.Deliver(ctx, mintedEvent("evt-3", 3, 10)); err != nil {
		t.Fatalf("deliver after reopen: %v", err)
	}

	checked, err := second.Verify(ctx)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if checked != 3 {
		t.Fatalf("expected 3 verified records, got %d", checked)
	}
}

func TestRecorderVerifyDetectsTampering(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	recorder, err := NewRecorder(ctx, store)
	if err != nil {
		t.Fatalf("new recorder: %v", err)
	}
	for i, amount := range []uint64{100, 50, 25} {
		event := mintedEvent(fmt.Sprintf("evt-%d", i+1), uint64(i+1), amount)
		if err := recorder.Deliver(ctx, event); err != nil {
			t.Fatalf("deliver: %v", err)
		}
	}

	store.mu.Lock()
	store.records[1].Amount = 999999
	store.mu.Unlock()

	checked, err := recorder.Verify(ctx)
	if !stdErrors.Is(err, ErrChainBroken) {
		t.Fatalf("expected chain broken, got %v", err)
	}
	if checked != 1 {
		t.Fatalf("expected 1 record verified before break, got %d", checked)
	}
}

func TestRecorderStats(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	recorder, err := NewRecorder(ctx, store)
	if err != nil {
		t.Fatalf("new recorder: %v", err)
	}
	if err := recorder.Deliver(ctx, mintedEvent("evt-1", 1, 100)); err != nil {
		t.Fatalf("deliver: %v", err)
	}

	stats, err := recorder.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Total != 1 || stats.Ledger != 1 || stats.LastSequence != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}
