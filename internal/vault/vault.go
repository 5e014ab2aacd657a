package vault

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"OpenMint-Vault/internal/authority"
	xerrors "OpenMint-Vault/internal/errors"
	"OpenMint-Vault/internal/gate"
	"OpenMint-Vault/internal/identity"
	"OpenMint-Vault/internal/ledger"
	"OpenMint-Vault/internal/notify"
	"OpenMint-Vault/internal/registry"
)

// 错误码定义
const (
	// CodeInstanceNotFound 表示按名称查找的资产实例不存在。
	CodeInstanceNotFound xerrors.Code = "VAULT_INSTANCE_NOT_FOUND"
	// CodeGenesisFailure 表示创世引导未能完成。
	CodeGenesisFailure xerrors.Code = "GENESIS_FAILURE"
)

func init() {
	xerrors.Register(CodeInstanceNotFound, xerrors.Attributes{
		Message:   "asset instance not found",
		Severity:  xerrors.SeverityInfo,
		Retryable: false,
		Alert:     false,
	})
	xerrors.Register(CodeGenesisFailure, xerrors.Attributes{
		Message:   "genesis bootstrap failed",
		Severity:  xerrors.SeverityCritical,
		Retryable: false,
		Alert:     true,
	})
}

// Vault 协调治理组件与各资产实例，是系统的业务核心。
// 所有实例共享同一个所有权守卫与暂停闸门。
type Vault struct {
	guard   *authority.Guard
	gate    *gate.Gate
	emitter *notify.Emitter

	mu         sync.RWMutex
	ledgers    map[string]*ledger.Ledger
	registries map[string]*registry.Registry
}

// New 创建 Vault，owner 成为唯一的治理身份。
func New(owner identity.Identity, emitter *notify.Emitter) (*Vault, error) {
	// 初始化共享的治理组件。
	guard, err := authority.NewGuard(owner, emitter)
	if err != nil {
		return nil, err
	}
	return &Vault{
		guard:      guard,
		gate:       gate.NewGate(guard, emitter),
		emitter:    emitter,
		ledgers:    make(map[string]*ledger.Ledger),
		registries: make(map[string]*registry.Registry),
	}, nil
}

// ApplyGenesis 按声明式定义创建并初始化各资产实例。
// 初始化具有一次性语义：同名实例重复引导会失败，且不会影响已就绪的实例。
func (v *Vault) ApplyGenesis(ctx context.Context, defs Definitions) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	// 按名称排序，保证引导顺序与事件序列可复现。
	ledgerNames := make([]string, 0, len(defs.Ledgers))
	for name := range defs.Ledgers {
		ledgerNames = append(ledgerNames, name)
	}
	sort.Strings(ledgerNames)

	for _, name := range ledgerNames {
		def := defs.Ledgers[name]
		if _, ok := v.ledgers[name]; ok {
			return xerrors.New(CodeGenesisFailure, fmt.Sprintf("账本 %s 已存在", name))
		}
		holder := identity.Null
		if strings.TrimSpace(def.InitialHolder) != "" {
			parsed, err := identity.Parse(def.InitialHolder)
			if err != nil {
				return xerrors.Wrap(CodeGenesisFailure, err, fmt.Sprintf("解析账本 %s 的初始持有人失败", name))
			}
			holder = parsed
		}
		instance := ledger.New(name, v.guard, v.emitter)
		if err := instance.Initialize(ctx, def.Cap, def.InitialSupply, holder); err != nil {
			return xerrors.Wrap(CodeGenesisFailure, err, fmt.Sprintf("初始化账本 %s 失败", name))
		}
		v.ledgers[name] = instance
	}

	registryNames := make([]string, 0, len(defs.Registries))
	for name := range defs.Registries {
		registryNames = append(registryNames, name)
	}
	sort.Strings(registryNames)

	for _, name := range registryNames {
		def := defs.Registries[name]
		if _, ok := v.registries[name]; ok {
			return xerrors.New(CodeGenesisFailure, fmt.Sprintf("登记簿 %s 已存在", name))
		}
		var opts []registry.Option
		if def.BaseID > 0 {
			opts = append(opts, registry.WithBaseID(def.BaseID))
		}
		instance := registry.New(name, v.guard, v.gate, v.emitter, opts...)
		if err := instance.Initialize(ctx, def.DisplayName, def.URIPrefix, def.URISuffix); err != nil {
			return xerrors.Wrap(CodeGenesisFailure, err, fmt.Sprintf("初始化登记簿 %s 失败", name))
		}
		v.registries[name] = instance
	}
	return nil
}

// Ledger 返回指定名称的账本。
func (v *Vault) Ledger(name string) (*ledger.Ledger, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	instance, ok := v.ledgers[name]
	if !ok {
		return nil, xerrors.New(CodeInstanceNotFound, fmt.Sprintf("账本 %s 未注册", name))
	}
	return instance, nil
}

// Registry 返回指定名称的登记簿。
func (v *Vault) Registry(name string) (*registry.Registry, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	instance, ok := v.registries[name]
	if !ok {
		return nil, xerrors.New(CodeInstanceNotFound, fmt.Sprintf("登记簿 %s 未注册", name))
	}
	return instance, nil
}

// LedgerNames 返回已注册账本的名称列表。
func (v *Vault) LedgerNames() []string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	names := make([]string, 0, len(v.ledgers))
	for name := range v.ledgers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RegistryNames 返回已注册登记簿的名称列表。
func (v *Vault) RegistryNames() []string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	names := make([]string, 0, len(v.registries))
	for name := range v.registries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Pause 暂停所有受闸门控制的操作。
func (v *Vault) Pause(ctx context.Context, caller identity.Identity) error {
	return v.gate.SetPaused(ctx, caller, true)
}

// Resume 恢复受闸门控制的操作。
func (v *Vault) Resume(ctx context.Context, caller identity.Identity) error {
	return v.gate.SetPaused(ctx, caller, false)
}

// Paused 返回当前闸门状态。
func (v *Vault) Paused() bool {
	return v.gate.Paused()
}

// TransferOwnership 将治理身份移交给 next。
func (v *Vault) TransferOwnership(ctx context.Context, caller, next identity.Identity) error {
	return v.guard.TransferOwnership(ctx, caller, next)
}

// Owner 返回当前治理身份。
func (v *Vault) Owner() identity.Identity {
	return v.guard.Owner()
}
