package registry

import (
	"context"
	"math"
	"strconv"
	"sync"

	"OpenMint-Vault/internal/authority"
	xerrors "OpenMint-Vault/internal/errors"
	"OpenMint-Vault/internal/gate"
	"OpenMint-Vault/internal/identity"
	"OpenMint-Vault/internal/notify"
)

// 资产登记组件的错误码
const (
	CodeAlreadyInitialized xerrors.Code = "REGISTRY_ALREADY_INITIALIZED"
	CodeNotInitialized     xerrors.Code = "REGISTRY_NOT_INITIALIZED"
	CodeAssetNotFound      xerrors.Code = "ASSET_NOT_FOUND"
	CodeIDExhausted        xerrors.Code = "REGISTRY_ID_EXHAUSTED"
)

var (
	// ErrAlreadyInitialized 表示登记表已经完成过初始化。
	ErrAlreadyInitialized = xerrors.New(CodeAlreadyInitialized, "registry already initialized")
	// ErrNotInitialized 表示登记表尚未初始化，写操作被拒绝。
	ErrNotInitialized = xerrors.New(CodeNotInitialized, "registry not initialized")
	// ErrAssetNotFound 表示查询的资产编号从未被分配。
	ErrAssetNotFound = xerrors.New(CodeAssetNotFound, "asset id not found")
	// ErrIDExhausted 表示编号空间不足以完成本次批量分配。
	ErrIDExhausted = xerrors.New(CodeIDExhausted, "asset id space exhausted")
)

func init() {
	xerrors.Register(CodeAlreadyInitialized, xerrors.Attributes{
		Message:   "registry already initialized",
		Severity:  xerrors.SeverityWarning,
		Retryable: false,
		Alert:     false,
	})
	xerrors.Register(CodeNotInitialized, xerrors.Attributes{
		Message:   "registry not initialized",
		Severity:  xerrors.SeverityWarning,
		Retryable: false,
		Alert:     false,
	})
	xerrors.Register(CodeAssetNotFound, xerrors.Attributes{
		Message:   "asset id not found",
		Severity:  xerrors.SeverityInfo,
		Retryable: false,
		Alert:     false,
	})
	xerrors.Register(CodeIDExhausted, xerrors.Attributes{
		Message:   "asset id space exhausted",
		Severity:  xerrors.SeverityWarning,
		Retryable: false,
		Alert:     true,
	})
}

// Registry 维护唯一资产的编号分配与归属。
// 不变量：已分配的编号恰好是 [base, base+totalMinted) 的连续区间，
// 每个编号一经分配即永久存在；发行受暂停闸门控制。
type Registry struct {
	mu          sync.Mutex
	asset       string
	namePrefix  string
	uriPrefix   string
	uriSuffix   string
	baseID      uint64
	nextID      uint64
	totalMinted uint64
	owners      map[uint64]identity.Identity
	holdings    map[identity.Identity]uint64
	initialized bool
	guard       *authority.Guard
	gate        *gate.Gate
	emitter     *notify.Emitter
}

// Option 定义登记表的可选配置。
type Option func(*Registry)

// WithBaseID 指定编号分配的起始值，默认为 1。
func WithBaseID(base uint64) Option {
	return func(r *Registry) {
		r.baseID = base
	}
}

// New 创建一个尚未初始化的登记表实例。asset 仅用于事件与日志标注。
func New(asset string, guard *authority.Guard, issuance *gate.Gate, emitter *notify.Emitter, opts ...Option) *Registry {
	r := &Registry{
		asset:    asset,
		baseID:   1,
		owners:   make(map[uint64]identity.Identity),
		holdings: make(map[identity.Identity]uint64),
		guard:    guard,
		gate:     issuance,
		emitter:  emitter,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	r.nextID = r.baseID
	return r
}

// Initialize 完成一次性初始化：设置名称前缀与外部标识串的前后缀。
// namePrefix 允许为空，URI 前后缀一经设置不得为空。
func (r *Registry) Initialize(ctx context.Context, namePrefix, uriPrefix, uriSuffix string) error {
	r.mu.Lock()
	if r.initialized {
		r.mu.Unlock()
		return ErrAlreadyInitialized
	}
	if uriPrefix == "" || uriSuffix == "" {
		r.mu.Unlock()
		return xerrors.New(xerrors.CodeInvalidArgument, "URI 前缀与后缀不能为空")
	}
	r.namePrefix = namePrefix
	r.uriPrefix = uriPrefix
	r.uriSuffix = uriSuffix
	r.initialized = true
	r.mu.Unlock()

	r.emitter.Emit(ctx, notify.Event{
		Kind:  notify.KindRegistryInitialized,
		Asset: r.asset,
		Actor: r.guard.Owner(),
		Metadata: map[string]string{
			"name_prefix": namePrefix,
			"uri_prefix":  uriPrefix,
			"uri_suffix":  uriSuffix,
			"base_id":     formatID(r.baseID),
		},
	})
	return nil
}

// Mint 为 to 连续分配 quantity 个新编号，返回本批第一个编号。
// 仅限所有者调用，且要求发行闸门处于放行状态。全部校验通过前不做任何写入，
// 保证批量分配要么全部完成要么完全不发生。
func (r *Registry) Mint(ctx context.Context, caller, to identity.Identity, quantity uint64) (uint64, error) {
	if err := r.guard.RequireOwner(caller); err != nil {
		return 0, err
	}
	if err := r.gate.EnsureActive(); err != nil {
		return 0, err
	}

	r.mu.Lock()
	if !r.initialized {
		r.mu.Unlock()
		return 0, ErrNotInitialized
	}
	if identity.IsNull(to) {
		r.mu.Unlock()
		return 0, xerrors.New(xerrors.CodeInvalidArgument, "接收方不能为空标识")
	}
	if quantity == 0 {
		r.mu.Unlock()
		return 0, xerrors.New(xerrors.CodeInvalidArgument, "发行数量必须大于零")
	}
	// nextID 必须在分配后仍可表示，因此编号空间的最大值被保留为哨兵。
	if quantity > math.MaxUint64-r.nextID {
		r.mu.Unlock()
		return 0, ErrIDExhausted
	}
	first := r.nextID
	for offset := uint64(0); offset < quantity; offset++ {
		r.owners[first+offset] = to
	}
	r.nextID += quantity
	prev := r.totalMinted
	r.totalMinted += quantity
	r.holdings[to] += quantity
	last := r.nextID - 1
	next := r.totalMinted
	r.mu.Unlock()

	r.emitter.Emit(ctx, notify.Event{
		Kind:     notify.KindRegistryMinted,
		Asset:    r.asset,
		Actor:    caller,
		Subject:  to,
		Amount:   quantity,
		OldValue: formatID(prev),
		NewValue: formatID(next),
		Metadata: map[string]string{
			"first_id": formatID(first),
			"last_id":  formatID(last),
		},
	})
	return first, nil
}

// ResolveURI 渲染资产的外部标识串。编号未分配时返回 ErrAssetNotFound；
// URI 前缀为空时按约定返回空串。只读，不产生任何状态变化。
func (r *Registry) ResolveURI(id uint64) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.owners[id]; !ok {
		return "", ErrAssetNotFound
	}
	if r.uriPrefix == "" {
		return "", nil
	}
	return r.uriPrefix + formatID(id) + r.uriSuffix, nil
}

// SetURIPrefix 替换 URI 前缀。仅限所有者调用，新值不得为空。
func (r *Registry) SetURIPrefix(ctx context.Context, caller identity.Identity, prefix string) error {
	return r.setURIField(ctx, caller, prefix, true)
}

// SetURISuffix 替换 URI 后缀。仅限所有者调用，新值不得为空。
func (r *Registry) SetURISuffix(ctx context.Context, caller identity.Identity, suffix string) error {
	return r.setURIField(ctx, caller, suffix, false)
}

func (r *Registry) setURIField(ctx context.Context, caller identity.Identity, value string, isPrefix bool) error {
	if err := r.guard.RequireOwner(caller); err != nil {
		return err
	}

	r.mu.Lock()
	if !r.initialized {
		r.mu.Unlock()
		return ErrNotInitialized
	}
	if value == "" {
		r.mu.Unlock()
		return xerrors.New(xerrors.CodeInvalidArgument, "URI 字段不能设置为空")
	}
	var prev string
	kind := notify.KindURIPrefixChanged
	if isPrefix {
		prev = r.uriPrefix
		r.uriPrefix = value
	} else {
		prev = r.uriSuffix
		r.uriSuffix = value
		kind = notify.KindURISuffixChanged
	}
	r.mu.Unlock()

	r.emitter.Emit(ctx, notify.Event{
		Kind:     kind,
		Asset:    r.asset,
		Actor:    caller,
		OldValue: prev,
		NewValue: value,
	})
	return nil
}

// OwnerOf 返回资产编号的归属标识。编号未分配时返回 ErrAssetNotFound。
func (r *Registry) OwnerOf(id uint64) (identity.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	owner, ok := r.owners[id]
	if !ok {
		return identity.Null, ErrAssetNotFound
	}
	return owner, nil
}

// DisplayName 渲染资产的展示名称：namePrefix + 十进制编号。
// namePrefix 为空时直接返回十进制编号。
func (r *Registry) DisplayName(id uint64) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.owners[id]; !ok {
		return "", ErrAssetNotFound
	}
	return r.namePrefix + formatID(id), nil
}

// BalanceOf 返回指定标识持有的资产数量。
func (r *Registry) BalanceOf(owner identity.Identity) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.holdings[owner]
}

// TotalMinted 返回累计发行数量。
func (r *Registry) TotalMinted() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.totalMinted
}

// NextID 返回下一个待分配的编号。
func (r *Registry) NextID() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.nextID
}

// Initialized 返回登记表是否已完成初始化。
func (r *Registry) Initialized() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.initialized
}

// Asset 返回实例的资产标注。
func (r *Registry) Asset() string {
	return r.asset
}

func formatID(v uint64) string {
	return strconv.FormatUint(v, 10)
}
