package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"OpenMint-Vault/internal/identity"
	"OpenMint-Vault/internal/observability/metrics"
	"OpenMint-Vault/pkg/logger"
)

// Emitter 为事件补齐编号、序号与时间戳后对外广播。
// 事件发布属于"尽力而为"：投递失败只记录日志与指标，绝不向调用方传播，
// 也绝不回滚已提交的状态变更。
type Emitter struct {
	mu   sync.Mutex
	seq  uint64
	disp Dispatcher
}

// NewEmitter 创建一个事件发布器。disp 为 nil 时所有事件被静默丢弃。
func NewEmitter(disp Dispatcher) *Emitter {
	return &Emitter{disp: disp}
}

// Emit 发布一个事件。调用必须在状态写入完成、锁释放之后进行。
func (e *Emitter) Emit(ctx context.Context, event Event) {
	if e == nil || e.disp == nil {
		return
	}
	e.mu.Lock()
	e.seq++
	event.Sequence = e.seq
	e.mu.Unlock()
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	if err := e.disp.Dispatch(ctx, event); err != nil {
		metrics.IncNotifyFailure(string(event.Kind))
		logger.L().Error("事件投递失败",
			slog.Any("error", err),
			slog.String("event_id", event.ID),
			slog.String("kind", string(event.Kind)),
			slog.Uint64("sequence", event.Sequence),
			slog.String("actor", identity.Short(event.Actor)),
		)
	}
}

// Sequence 返回最近一次发布事件的序号。
func (e *Emitter) Sequence() uint64 {
	if e == nil {
		return 0
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.seq
}
