package vault

import (
	"context"
	"errors"
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

func newTestVault(t *testing.T) (*Vault, *notify.MemorySink) {
	t.Helper()
	sink := notify.NewMemorySink()
	v, err := New(ownerID, notify.NewEmitter(notify.NewFanout(sink)))
	if err != nil {
		t.Fatalf("new vault: %v", err)
	}
	return v, sink
}

func testDefinitions() Definitions {
	return Definitions{
		Ledgers: map[string]LedgerDefinition{
			"GOLD": {
				Cap:           1000,
				InitialSupply: 100,
				InitialHolder: ownerID.Hex(),
			},
		},
		Registries: map[string]RegistryDefinition{
			"RELIC": {
				DisplayName: "Relic",
				URIPrefix:   "https://relics.example/",
				URISuffix:   ".json",
				BaseID:      1,
			},
		},
	}
}

func TestApplyGenesisBootstrapsInstances(t *testing.T) {
	v, sink := newTestVault(t)
	ctx := context.Background()

	if err := v.ApplyGenesis(ctx, testDefinitions()); err != nil {
		t.Fatalf("apply genesis: %v", err)
	}

	gold, err := v.Ledger("GOLD")
	if err != nil {
		t.Fatalf("lookup ledger: %v", err)
	}
	if gold.TotalSupply() != 100 || gold.Cap() != 1000 {
		t.Fatalf("unexpected ledger state: supply=%d cap=%d", gold.TotalSupply(), gold.Cap())
	}
	if gold.BalanceOf(ownerID) != 100 {
		t.Fatalf("initial holder balance = %d, want 100", gold.BalanceOf(ownerID))
	}

	relic, err := v.Registry("RELIC")
	if err != nil {
		t.Fatalf("lookup registry: %v", err)
	}
	if !relic.Initialized() || relic.NextID() != 1 {
		t.Fatalf("unexpected registry state: initialized=%v next=%d", relic.Initialized(), relic.NextID())
	}

	if names := v.LedgerNames(); len(names) != 1 || names[0] != "GOLD" {
		t.Fatalf("unexpected ledger names: %v", names)
	}
	if names := v.RegistryNames(); len(names) != 1 || names[0] != "RELIC" {
		t.Fatalf("unexpected registry names: %v", names)
	}

	kinds := map[notify.Kind]int{}
	for _, event := range sink.Events() {
		kinds[event.Kind]++
	}
	if kinds[notify.KindLedgerInitialized] != 1 || kinds[notify.KindRegistryInitialized] != 1 {
		t.Fatalf("unexpected genesis events: %v", kinds)
	}
}

func TestApplyGenesisRejectsDuplicate(t *testing.T) {
	v, _ := newTestVault(t)
	ctx := context.Background()

	if err := v.ApplyGenesis(ctx, testDefinitions()); err != nil {
		t.Fatalf("apply genesis: %v", err)
	}
	err := v.ApplyGenesis(ctx, testDefinitions())
	if xerrors.CodeOf(err) != CodeGenesisFailure {
		t.Fatalf("expected genesis failure, got %v", err)
	}

	// 第一次引导的实例必须保持可用。
	gold, lookupErr := v.Ledger("GOLD")
	if lookupErr != nil {
		t.Fatalf("ledger gone after failed rebootstrap: %v", lookupErr)
	}
	if gold.TotalSupply() != 100 {
		t.Fatalf("ledger state disturbed: supply=%d", gold.TotalSupply())
	}
}

func TestApplyGenesisRejectsBadHolder(t *testing.T) {
	v, sink := newTestVault(t)
	ctx := context.Background()

	defs := Definitions{
		Ledgers: map[string]LedgerDefinition{
			"BAD": {InitialSupply: 10, InitialHolder: "not-an-address"},
		},
	}
	err := v.ApplyGenesis(ctx, defs)
	if xerrors.CodeOf(err) != CodeGenesisFailure {
		t.Fatalf("expected genesis failure, got %v", err)
	}
	if _, lookupErr := v.Ledger("BAD"); xerrors.CodeOf(lookupErr) != CodeInstanceNotFound {
		t.Fatalf("failed ledger must not be registered, got %v", lookupErr)
	}
	if len(sink.Events()) != 0 {
		t.Fatalf("failed genesis must not emit events, got %d", len(sink.Events()))
	}
}

func TestLookupUnknownAsset(t *testing.T) {
	v, _ := newTestVault(t)

	if _, err := v.Ledger("NOPE"); xerrors.CodeOf(err) != CodeInstanceNotFound {
		t.Fatalf("expected asset not found, got %v", err)
	}
	if _, err := v.Registry("NOPE"); xerrors.CodeOf(err) != CodeInstanceNotFound {
		t.Fatalf("expected asset not found, got %v", err)
	}
}

func TestVaultGovernancePassthroughs(t *testing.T) {
	v, _ := newTestVault(t)
	ctx := context.Background()

	if err := v.Pause(ctx, strangerID); !errors.Is(err, authority.ErrNotOwner) {
		t.Fatalf("stranger pause should be unauthorized, got %v", err)
	}
	if err := v.Pause(ctx, ownerID); err != nil {
		t.Fatalf("owner pause: %v", err)
	}
	if !v.Paused() {
		t.Fatalf("vault should be paused")
	}
	if err := v.Resume(ctx, ownerID); err != nil {
		t.Fatalf("owner resume: %v", err)
	}
	if v.Paused() {
		t.Fatalf("vault should be active")
	}

	if err := v.TransferOwnership(ctx, ownerID, holderID); err != nil {
		t.Fatalf("transfer ownership: %v", err)
	}
	if v.Owner() != holderID {
		t.Fatalf("owner = %s, want %s", v.Owner().Hex(), holderID.Hex())
	}
	// 旧所有者随即失去治理权限。
	if err := v.Pause(ctx, ownerID); !errors.Is(err, authority.ErrNotOwner) {
		t.Fatalf("previous owner should be unauthorized, got %v", err)
	}
}
