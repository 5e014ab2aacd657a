package notify

import (
	"context"
	"testing"
	"time"

	"OpenMint-Vault/internal/identity"
)

func TestPluginBridgeDeliversPlainMaps(t *testing.T) {
	bridge := NewPluginBridge(4)
	actor := identity.MustParse("0x1111111111111111111111111111111111111111")
	event := Event{
		ID:         "evt-1",
		Kind:       KindLedgerMinted,
		Asset:      "GOLD",
		Actor:      actor,
		Amount:     42,
		Metadata:   map[string]string{"batch": "genesis"},
		Sequence:   7,
		OccurredAt: time.Unix(1700000000, 0).UTC(),
	}
	if err := bridge.Deliver(context.Background(), event); err != nil {
		t.Fatalf("deliver: %v", err)
	}

	var payload map[string]any
	select {
	case payload = <-bridge.Feed():
	default:
		t.Fatal("expected payload on feed")
	}
	if payload["kind"] != string(KindLedgerMinted) {
		t.Fatalf("unexpected kind: %v", payload["kind"])
	}
	if payload["asset"] != "GOLD" {
		t.Fatalf("unexpected asset: %v", payload["asset"])
	}
	if payload["actor"] != actor.Hex() {
		t.Fatalf("unexpected actor: %v", payload["actor"])
	}
	// JSON 数字解码为 float64
	if payload["amount"] != float64(42) {
		t.Fatalf("unexpected amount: %v", payload["amount"])
	}
	meta, ok := payload["metadata"].(map[string]any)
	if !ok || meta["batch"] != "genesis" {
		t.Fatalf("unexpected metadata: %v", payload["metadata"])
	}
}

func TestPluginBridgeDropsWhenFull(t *testing.T) {
	bridge := NewPluginBridge(1)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if err := bridge.Deliver(ctx, Event{Kind: KindGatePaused}); err != nil {
			t.Fatalf("deliver %d: %v", i, err)
		}
	}
	if got := bridge.Dropped(); got != 2 {
		t.Fatalf("expected 2 dropped events, got %d", got)
	}
	select {
	case <-bridge.Feed():
	default:
		t.Fatal("buffered event missing")
	}
}

func TestPluginBridgeClose(t *testing.T) {
	bridge := NewPluginBridge(1)
	if err := bridge.Deliver(context.Background(), Event{Kind: KindGateUnpaused}); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if err := bridge.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := bridge.Close(); err != nil {
		t.Fatalf("double close: %v", err)
	}
	if err := bridge.Deliver(context.Background(), Event{Kind: KindGatePaused}); err == nil {
		t.Fatal("expected delivery to fail after close")
	}

	// 已缓冲事件仍可读取，随后通道关闭
	if _, ok := <-bridge.Feed(); !ok {
		t.Fatal("buffered event lost on close")
	}
	if _, ok := <-bridge.Feed(); ok {
		t.Fatal("feed channel must be closed")
	}
}
