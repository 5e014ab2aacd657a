package gate

import (
	"context"
	"sync"

	"OpenMint-Vault/internal/authority"
	xerrors "OpenMint-Vault/internal/errors"
	"OpenMint-Vault/internal/identity"
	"OpenMint-Vault/internal/notify"
)

// 闸门组件的错误码
const (
	CodePaused         xerrors.Code = "GATE_PAUSED"
	CodeNoopTransition xerrors.Code = "GATE_NOOP_TRANSITION"
)

var (
	// ErrPaused 表示发行操作在暂停状态下被拒绝。
	ErrPaused = xerrors.New(CodePaused, "issuance is paused")
	// ErrNoopTransition 表示暂停开关被设置为当前值，属于被拒绝的空操作。
	ErrNoopTransition = xerrors.New(CodeNoopTransition, "pause state unchanged")
)

func init() {
	xerrors.Register(CodePaused, xerrors.Attributes{
		Message:   "issuance is paused",
		Severity:  xerrors.SeverityInfo,
		Retryable: false,
		Alert:     false,
	})
	xerrors.Register(CodeNoopTransition, xerrors.Attributes{
		Message:   "pause state unchanged",
		Severity:  xerrors.SeverityInfo,
		Retryable: false,
		Alert:     false,
	})
}

// Gate 是控制发行操作是否可用的二元开关。初始状态为放行（未暂停）。
// 每一次成功的切换都必须改变状态：把开关设置为当前值会被拒绝，
// 保证所有写调用都产生可观察的效果。
type Gate struct {
	mu      sync.RWMutex
	paused  bool
	guard   *authority.Guard
	emitter *notify.Emitter
}

// NewGate 创建一个处于放行状态的闸门。
func NewGate(guard *authority.Guard, emitter *notify.Emitter) *Gate {
	return &Gate{guard: guard, emitter: emitter}
}

// Paused 返回当前是否处于暂停状态。
func (g *Gate) Paused() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.paused
}

// EnsureActive 在暂停状态下返回 ErrPaused，作为发行操作的前置检查。
func (g *Gate) EnsureActive() error {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.paused {
		return ErrPaused
	}
	return nil
}

// SetPaused 切换暂停状态。仅限所有者调用，且新值必须与当前值不同。
func (g *Gate) SetPaused(ctx context.Context, caller identity.Identity, next bool) error {
	if err := g.guard.RequireOwner(caller); err != nil {
		return err
	}

	g.mu.Lock()
	if g.paused == next {
		g.mu.Unlock()
		return ErrNoopTransition
	}
	prev := g.paused
	g.paused = next
	g.mu.Unlock()

	kind := notify.KindGatePaused
	if !next {
		kind = notify.KindGateUnpaused
	}
	g.emitter.Emit(ctx, notify.Event{
		Kind:     kind,
		Actor:    caller,
		OldValue: stateLabel(prev),
		NewValue: stateLabel(next),
	})
	return nil
}

func stateLabel(paused bool) string {
	if paused {
		return "paused"
	}
	return "active"
}
