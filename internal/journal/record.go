package journal

import (
	xerrors "OpenMint-Vault/internal/errors"
)

// Record 是一条状态变更通知在日志中的持久化形态。
// Digest 把记录内容与前一条记录的摘要绑定，形成防篡改的链式结构。
type Record struct {
	ID         string            `json:"id"`
	Sequence   uint64            `json:"sequence"`
	Kind       string            `json:"kind"`
	Asset      string            `json:"asset,omitempty"`
	Actor      string            `json:"actor"`
	Subject    string            `json:"subject,omitempty"`
	Amount     uint64            `json:"amount,omitempty"`
	OldValue   string            `json:"old_value,omitempty"`
	NewValue   string            `json:"new_value,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	Digest     string            `json:"digest"`
	PrevDigest string            `json:"prev_digest,omitempty"`
	OccurredAt int64             `json:"occurred_at"`
	RecordedAt int64             `json:"recorded_at"`
}

var (
	// ErrRecordNotFound 表示指定的日志记录不存在。
	ErrRecordNotFound = xerrors.New(CodeRecordNotFound, "journal record not found")
	// ErrRecordConflict 表示记录编号或序号与已有记录冲突。
	ErrRecordConflict = xerrors.New(CodeRecordConflict, "journal record conflict")
	// ErrChainBroken 表示日志的摘要链校验失败。
	ErrChainBroken = xerrors.New(CodeChainBroken, "journal digest chain broken",
		xerrors.WithSeverity(xerrors.SeverityCritical))
)

const (
	CodeRecordNotFound xerrors.Code = "JOURNAL_RECORD_NOT_FOUND"
	CodeRecordConflict xerrors.Code = "JOURNAL_RECORD_CONFLICT"
	CodeChainBroken    xerrors.Code = "JOURNAL_CHAIN_BROKEN"
)

func init() {
	xerrors.Register(CodeRecordNotFound, xerrors.Attributes{
		Message:   "journal record not found",
		Severity:  xerrors.SeverityInfo,
		Retryable: false,
		Alert:     false,
	})
	xerrors.Register(CodeRecordConflict, xerrors.Attributes{
		Message:   "journal record conflict",
		Severity:  xerrors.SeverityWarning,
		Retryable: false,
		Alert:     false,
	})
	xerrors.Register(CodeChainBroken, xerrors.Attributes{
		Message:   "journal digest chain broken",
		Severity:  xerrors.SeverityCritical,
		Retryable: false,
		Alert:     true,
	})
}

// Component 返回记录所属的组件名，即 Kind 中第一个点号之前的部分。
func (r *Record) Component() string {
	for i := 0; i < len(r.Kind); i++ {
		if r.Kind[i] == '.' {
			return r.Kind[:i]
		}
	}
	return r.Kind
}

func cloneRecord(src *Record) *Record {
	if src == nil {
		return nil
	}
	clone := *src
	clone.Metadata = cloneMetadata(src.Metadata)
	return &clone
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
