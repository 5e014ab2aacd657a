package notify

import (
	"time"

	"OpenMint-Vault/internal/identity"
)

// Kind 表示一次状态变更通知的类型，采用 "组件.动作" 的命名方式。
type Kind string

// 目前支持的通知类型
const (
	KindOwnershipTransferred Kind = "authority.ownership_transferred"
	KindGatePaused           Kind = "gate.paused"
	KindGateUnpaused         Kind = "gate.unpaused"
	KindLedgerInitialized    Kind = "ledger.initialized"
	KindLedgerMinted         Kind = "ledger.minted"
	KindLedgerBurned         Kind = "ledger.burned"
	KindRegistryInitialized  Kind = "registry.initialized"
	KindRegistryMinted       Kind = "registry.minted"
	KindURIPrefixChanged     Kind = "registry.uri_prefix_changed"
	KindURISuffixChanged     Kind = "registry.uri_suffix_changed"
)

// Event 描述一次已经提交的状态变更。状态写入完成后才会对外发布，
// 因此订阅方永远不会看到被回滚的操作。
type Event struct {
	ID         string            `json:"id"`
	Kind       Kind              `json:"kind"`
	Asset      string            `json:"asset,omitempty"`
	Actor      identity.Identity `json:"actor"`
	Subject    identity.Identity `json:"subject,omitempty"`
	Amount     uint64            `json:"amount,omitempty"`
	OldValue   string            `json:"old_value,omitempty"`
	NewValue   string            `json:"new_value,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	Sequence   uint64            `json:"sequence"`
	OccurredAt time.Time         `json:"occurred_at"`
}

// Clone 返回事件的深拷贝，避免订阅方修改共享的 Metadata。
func (e Event) Clone() Event {
	clone := e
	clone.Metadata = cloneMetadata(e.Metadata)
	return clone
}

func cloneMetadata(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	dst := make(map[string]string, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
