package ledger

import (
	"context"
	"math"
	"strconv"
	"sync"

	"OpenMint-Vault/internal/authority"
	xerrors "OpenMint-Vault/internal/errors"
	"OpenMint-Vault/internal/identity"
	"OpenMint-Vault/internal/notify"
)

// 台账组件的错误码
const (
	CodeAlreadyInitialized   xerrors.Code = "LEDGER_ALREADY_INITIALIZED"
	CodeNotInitialized       xerrors.Code = "LEDGER_NOT_INITIALIZED"
	CodeCapExceeded          xerrors.Code = "LEDGER_CAP_EXCEEDED"
	CodeSupplyOverflow       xerrors.Code = "LEDGER_SUPPLY_OVERFLOW"
	CodeInsufficientBalance  xerrors.Code = "LEDGER_INSUFFICIENT_BALANCE"
	CodeDelegatedBurnBlocked xerrors.Code = "LEDGER_DELEGATED_BURN_DISABLED"
)

var (
	// ErrAlreadyInitialized 表示台账已经完成过初始化。
	ErrAlreadyInitialized = xerrors.New(CodeAlreadyInitialized, "ledger already initialized")
	// ErrNotInitialized 表示台账尚未初始化，写操作被拒绝。
	ErrNotInitialized = xerrors.New(CodeNotInitialized, "ledger not initialized")
	// ErrCapExceeded 表示铸造会突破配置的供应上限。
	ErrCapExceeded = xerrors.New(CodeCapExceeded, "mint exceeds supply cap")
	// ErrSupplyOverflow 表示总供应量将超出可表示范围。
	ErrSupplyOverflow = xerrors.New(CodeSupplyOverflow, "total supply overflow")
	// ErrInsufficientBalance 表示销毁数量超过调用者自身余额。
	ErrInsufficientBalance = xerrors.New(CodeInsufficientBalance, "burn exceeds balance")
	// ErrDelegatedBurnDisabled 表示代销毁能力被永久关闭。
	ErrDelegatedBurnDisabled = xerrors.New(CodeDelegatedBurnBlocked, "delegated burn is disabled")
)

func init() {
	xerrors.Register(CodeAlreadyInitialized, xerrors.Attributes{
		Message:   "ledger already initialized",
		Severity:  xerrors.SeverityWarning,
		Retryable: false,
		Alert:     false,
	})
	xerrors.Register(CodeNotInitialized, xerrors.Attributes{
		Message:   "ledger not initialized",
		Severity:  xerrors.SeverityWarning,
		Retryable: false,
		Alert:     false,
	})
	xerrors.Register(CodeCapExceeded, xerrors.Attributes{
		Message:   "mint exceeds supply cap",
		Severity:  xerrors.SeverityInfo,
		Retryable: false,
		Alert:     false,
	})
	xerrors.Register(CodeSupplyOverflow, xerrors.Attributes{
		Message:   "total supply overflow",
		Severity:  xerrors.SeverityWarning,
		Retryable: false,
		Alert:     true,
	})
	xerrors.Register(CodeInsufficientBalance, xerrors.Attributes{
		Message:   "burn exceeds balance",
		Severity:  xerrors.SeverityInfo,
		Retryable: false,
		Alert:     false,
	})
	xerrors.Register(CodeDelegatedBurnBlocked, xerrors.Attributes{
		Message:   "delegated burn is disabled",
		Severity:  xerrors.SeverityInfo,
		Retryable: false,
		Alert:     false,
	})
}

// Ledger 维护一种同质资产的余额映射与总供应量。
// 不变量：totalSupply 恒等于所有余额之和；cap 非零时 totalSupply 不得超过 cap。
// 所有校验在第一次写入之前完成，任何失败都不留下部分修改。
type Ledger struct {
	mu          sync.Mutex
	asset       string
	cap         uint64
	totalSupply uint64
	balances    map[identity.Identity]uint64
	initialized bool
	guard       *authority.Guard
	emitter     *notify.Emitter
}

// New 创建一个尚未初始化的台账实例。asset 仅用于事件与日志标注。
func New(asset string, guard *authority.Guard, emitter *notify.Emitter) *Ledger {
	return &Ledger{
		asset:    asset,
		balances: make(map[identity.Identity]uint64),
		guard:    guard,
		emitter:  emitter,
	}
}

// Initialize 完成一次性初始化：设置供应上限并把初始供应记入 holder。
// cap 为 0 表示不设上限。每个实例只允许初始化一次。
func (l *Ledger) Initialize(ctx context.Context, cap, initialSupply uint64, holder identity.Identity) error {
	l.mu.Lock()
	if l.initialized {
		l.mu.Unlock()
		return ErrAlreadyInitialized
	}
	if cap != 0 && cap < initialSupply {
		l.mu.Unlock()
		return xerrors.New(xerrors.CodeInvalidArgument, "供应上限低于初始供应量",
			xerrors.WithMetadata("cap", formatAmount(cap)),
			xerrors.WithMetadata("initial_supply", formatAmount(initialSupply)))
	}
	if initialSupply > 0 && identity.IsNull(holder) {
		l.mu.Unlock()
		return xerrors.New(xerrors.CodeInvalidArgument, "初始持有人不能为空标识")
	}
	l.cap = cap
	if initialSupply > 0 {
		l.balances[holder] = initialSupply
	}
	l.totalSupply = initialSupply
	l.initialized = true
	l.mu.Unlock()

	l.emitter.Emit(ctx, notify.Event{
		Kind:     notify.KindLedgerInitialized,
		Asset:    l.asset,
		Actor:    l.guard.Owner(),
		Subject:  holder,
		Amount:   initialSupply,
		OldValue: "0",
		NewValue: formatAmount(initialSupply),
		Metadata: map[string]string{"cap": formatAmount(cap)},
	})
	return nil
}

// Mint 为 to 增发 amount。仅限所有者调用，失败时状态保持不变。
func (l *Ledger) Mint(ctx context.Context, caller, to identity.Identity, amount uint64) error {
	if err := l.guard.RequireOwner(caller); err != nil {
		return err
	}

	l.mu.Lock()
	if !l.initialized {
		l.mu.Unlock()
		return ErrNotInitialized
	}
	if identity.IsNull(to) {
		l.mu.Unlock()
		return xerrors.New(xerrors.CodeInvalidArgument, "接收方不能为空标识")
	}
	if amount == 0 {
		l.mu.Unlock()
		return xerrors.New(xerrors.CodeInvalidArgument, "铸造数量必须大于零")
	}
	if amount > math.MaxUint64-l.totalSupply {
		l.mu.Unlock()
		return ErrSupplyOverflow
	}
	next := l.totalSupply + amount
	if l.cap != 0 && next > l.cap {
		l.mu.Unlock()
		return ErrCapExceeded
	}
	prev := l.totalSupply
	l.balances[to] += amount
	l.totalSupply = next
	l.mu.Unlock()

	l.emitter.Emit(ctx, notify.Event{
		Kind:     notify.KindLedgerMinted,
		Asset:    l.asset,
		Actor:    caller,
		Subject:  to,
		Amount:   amount,
		OldValue: formatAmount(prev),
		NewValue: formatAmount(next),
	})
	return nil
}

// Burn 从调用者自身余额中销毁 amount。仅限所有者调用。
func (l *Ledger) Burn(ctx context.Context, caller identity.Identity, amount uint64) error {
	if err := l.guard.RequireOwner(caller); err != nil {
		return err
	}

	l.mu.Lock()
	if !l.initialized {
		l.mu.Unlock()
		return ErrNotInitialized
	}
	if amount == 0 {
		l.mu.Unlock()
		return xerrors.New(xerrors.CodeInvalidArgument, "销毁数量必须大于零")
	}
	balance := l.balances[caller]
	if amount > balance {
		l.mu.Unlock()
		return ErrInsufficientBalance
	}
	prev := l.totalSupply
	remaining := balance - amount
	if remaining == 0 {
		delete(l.balances, caller)
	} else {
		l.balances[caller] = remaining
	}
	l.totalSupply -= amount
	next := l.totalSupply
	l.mu.Unlock()

	l.emitter.Emit(ctx, notify.Event{
		Kind:     notify.KindLedgerBurned,
		Asset:    l.asset,
		Actor:    caller,
		Subject:  caller,
		Amount:   amount,
		OldValue: formatAmount(prev),
		NewValue: formatAmount(next),
	})
	return nil
}

// BurnFrom 永久不可用：系统不提供任何代销毁能力，调用不产生状态变化。
func (l *Ledger) BurnFrom(_ context.Context, _, _ identity.Identity, _ uint64) error {
	return ErrDelegatedBurnDisabled
}

// Cap 返回供应上限。未设上限时返回可表示的最大供应量。
func (l *Ledger) Cap() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cap == 0 {
		return math.MaxUint64
	}
	return l.cap
}

// TotalSupply 返回当前总供应量。
func (l *Ledger) TotalSupply() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.totalSupply
}

// BalanceOf 返回指定标识的余额，不存在的标识余额为零。
func (l *Ledger) BalanceOf(id identity.Identity) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[id]
}

// Initialized 返回台账是否已完成初始化。
func (l *Ledger) Initialized() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.initialized
}

// Asset 返回实例的资产标注。
func (l *Ledger) Asset() string {
	return l.asset
}

// HolderCount 返回当前持有非零余额的标识数量。
func (l *Ledger) HolderCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.balances)
}

func formatAmount(v uint64) string {
	return strconv.FormatUint(v, 10)
}
