// Package authority implements the single privileged identity every state
// mutation must present. There is no quorum, delay, or delegation: one owner
// holds unilateral authority, and the slot moves only by the owner's hand.
package authority

import (
	"context"
	"sync"

	xerrors "OpenMint-Vault/internal/errors"
	"OpenMint-Vault/internal/identity"
	"OpenMint-Vault/internal/notify"
)

// Error codes owned by the authority component.
const (
	CodeNotOwner  xerrors.Code = "AUTHORITY_NOT_OWNER"
	CodeNullOwner xerrors.Code = "AUTHORITY_NULL_OWNER"
)

// Sentinel errors returned by the guard.
var (
	// ErrNotOwner rejects a privileged call made by anyone but the owner.
	ErrNotOwner = xerrors.New(CodeNotOwner, "caller is not the owner")
	// ErrNullOwner rejects the null identity wherever an owner is expected.
	ErrNullOwner = xerrors.New(CodeNullOwner, "owner identity cannot be null")
)

func init() {
	xerrors.Register(CodeNotOwner, xerrors.Attributes{
		Message:   "caller is not the owner",
		Severity:  xerrors.SeverityWarning,
		Retryable: false,
		Alert:     true,
	})
	xerrors.Register(CodeNullOwner, xerrors.Attributes{
		Message:   "owner identity cannot be null",
		Severity:  xerrors.SeverityInfo,
		Retryable: false,
		Alert:     false,
	})
}

// Guard holds the owner slot. It is safe for concurrent use.
type Guard struct {
	mu      sync.RWMutex
	owner   identity.Identity
	emitter *notify.Emitter
}

// NewGuard creates a guard owned by the given identity.
func NewGuard(owner identity.Identity, emitter *notify.Emitter) (*Guard, error) {
	if identity.IsNull(owner) {
		return nil, ErrNullOwner
	}
	return &Guard{owner: owner, emitter: emitter}, nil
}

// Owner returns the current owner identity.
func (g *Guard) Owner() identity.Identity {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.owner
}

// RequireOwner fails unless caller is the current owner. It performs no side
// effects and must be the first check of every privileged operation.
func (g *Guard) RequireOwner(caller identity.Identity) error {
	g.mu.RLock()
	owner := g.owner
	g.mu.RUnlock()
	if identity.IsNull(caller) || caller != owner {
		return ErrNotOwner
	}
	return nil
}

// TransferOwnership reassigns the owner slot. Only the current owner may
// transfer, and the successor must not be the null identity.
func (g *Guard) TransferOwnership(ctx context.Context, caller, next identity.Identity) error {
	if err := g.RequireOwner(caller); err != nil {
		return err
	}
	if identity.IsNull(next) {
		return ErrNullOwner
	}

	g.mu.Lock()
	if caller != g.owner {
		// Owner moved between the check and the write; re-validate under lock.
		g.mu.Unlock()
		return ErrNotOwner
	}
	prev := g.owner
	g.owner = next
	g.mu.Unlock()

	g.emitter.Emit(ctx, notify.Event{
		Kind:     notify.KindOwnershipTransferred,
		Actor:    caller,
		Subject:  next,
		OldValue: prev.Hex(),
		NewValue: next.Hex(),
	})
	return nil
}
