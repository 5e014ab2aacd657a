package journal

import (
	"context"
	"encoding/json"
	stdErrors "errors"
	"fmt"
	"sync"

	xerrors "OpenMint-Vault/internal/errors"
	"OpenMint-Vault/internal/identity"
	"OpenMint-Vault/internal/notify"
	"OpenMint-Vault/internal/proofs"
)

// verifyBatchSize 控制校验时每次从存储分页读取的记录数量。
const verifyBatchSize = 200

// Recorder 将状态变更通知写入审计日志，并维护摘要链。
// 它实现 notify.Sink，可直接注册到事件分发器上。
type Recorder struct {
	mu    sync.Mutex
	store Store
	prev  string
}

// NewRecorder 创建 Recorder，并从存储中恢复摘要链的尾部。
func NewRecorder(ctx context.Context, store Store) (*Recorder, error) {
	if store == nil {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "journal store 不能为空")
	}
	recorder := &Recorder{store: store}
	last, err := store.Last(ctx)
	if err != nil {
		if !stdErrors.Is(err, ErrRecordNotFound) {
			return nil, xerrors.Wrap(xerrors.CodeInitializationFailure, err, "恢复日志尾部失败")
		}
	} else if last != nil {
		recorder.prev = last.Digest
	}
	return recorder, nil
}

// Name 实现 notify.Sink 接口。
func (r *Recorder) Name() string { return "journal" }

// Deliver 将事件编码为日志记录并追加到存储。
// 摘要链在锁内推进，保证并发投递时链条不分叉。
func (r *Recorder) Deliver(ctx context.Context, event notify.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	record := recordFromEvent(event)
	record.PrevDigest = r.prev

	payload, err := digestPayload(record)
	if err != nil {
		return xerrors.Wrap(xerrors.CodeInvalidArgument, err, "编码日志记录失败")
	}
	record.Digest = proofs.ChainDigest(r.prev, payload)

	if err := r.store.Append(ctx, record); err != nil {
		return err
	}
	r.prev = record.Digest
	return nil
}

// Close 关闭底层存储。
func (r *Recorder) Close() error {
	if r == nil || r.store == nil {
		return nil
	}
	return r.store.Close()
}

// List 返回符合过滤条件的日志记录。
func (r *Recorder) List(ctx context.Context, opts ...ListOption) ([]*Record, error) {
	return r.store.List(ctx, buildListOptions(opts))
}

// Stats 返回日志的聚合统计。
func (r *Recorder) Stats(ctx context.Context, opts ...ListOption) (Stats, error) {
	return r.store.Stats(ctx, buildListOptions(opts))
}

// Verify 按序号升序重放整条日志并重新计算摘要，返回校验的记录数。
// 任何一条记录被篡改都会使其后所有摘要失配。
func (r *Recorder) Verify(ctx context.Context) (int, error) {
	prev := ""
	checked := 0
	offset := 0
	for {
		records, err := r.store.List(ctx, ListOptions{
			Limit:  verifyBatchSize,
			Offset: offset,
			Order:  SortBySequenceAsc,
		})
		if err != nil {
			return checked, err
		}
		if len(records) == 0 {
			return checked, nil
		}
		for _, record := range records {
			if record.PrevDigest != prev {
				return checked, xerrors.New(CodeChainBroken,
					fmt.Sprintf("记录 %s 的前驱摘要不匹配", record.ID))
			}
			payload, err := digestPayload(record)
			if err != nil {
				return checked, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "编码日志记录失败")
			}
			if !proofs.VerifyChainDigest(prev, payload, record.Digest) {
				return checked, xerrors.New(CodeChainBroken,
					fmt.Sprintf("记录 %s 的摘要校验失败", record.ID))
			}
			prev = record.Digest
			checked++
		}
		offset += len(records)
	}
}

func recordFromEvent(event notify.Event) *Record {
	record := &Record{
		ID:         event.ID,
		Sequence:   event.Sequence,
		Kind:       string(event.Kind),
		Asset:      event.Asset,
		Actor:      event.Actor.Hex(),
		Amount:     event.Amount,
		OldValue:   event.OldValue,
		NewValue:   event.NewValue,
		Metadata:   cloneMetadata(event.Metadata),
		OccurredAt: event.OccurredAt.Unix(),
	}
	if !identity.IsNull(event.Subject) {
		record.Subject = event.Subject.Hex()
	}
	return record
}

// digestPayload 生成参与摘要计算的规范化字节串。
// Digest、PrevDigest 与 RecordedAt 不参与计算：前两者由链式结构承载，
// 后者只是存储层的记账时间。
func digestPayload(record *Record) ([]byte, error) {
	clone := cloneRecord(record)
	clone.Digest = ""
	clone.PrevDigest = ""
	clone.RecordedAt = 0
	return json.Marshal(clone)
}

var _ notify.Sink = (*Recorder)(nil)
