package notify

import (
	"context"
	"log/slog"

	"OpenMint-Vault/internal/identity"
	"OpenMint-Vault/pkg/logger"
)

// LogSink 将事件写入审计日志，保证每一次状态变更都有持久化的痕迹。
type LogSink struct{}

// NewLogSink 创建一个日志渠道。
func NewLogSink() *LogSink {
	return &LogSink{}
}

// Name 返回渠道名称。
func (s *LogSink) Name() string { return "log" }

// Deliver 将事件输出到审计日志。
func (s *LogSink) Deliver(_ context.Context, event Event) error {
	attrs := []any{
		slog.String("event_id", event.ID),
		slog.String("kind", string(event.Kind)),
		slog.Uint64("sequence", event.Sequence),
		slog.String("actor", event.Actor.Hex()),
		slog.Time("occurred_at", event.OccurredAt),
	}
	if event.Asset != "" {
		attrs = append(attrs, slog.String("asset", event.Asset))
	}
	if !identity.IsNull(event.Subject) {
		attrs = append(attrs, slog.String("subject", event.Subject.Hex()))
	}
	if event.Amount > 0 {
		attrs = append(attrs, slog.Uint64("amount", event.Amount))
	}
	if event.OldValue != "" || event.NewValue != "" {
		attrs = append(attrs,
			slog.String("old_value", event.OldValue),
			slog.String("new_value", event.NewValue),
		)
	}
	for k, v := range event.Metadata {
		attrs = append(attrs, slog.String("meta_"+k, v))
	}
	logger.Audit().Info("状态变更", attrs...)
	return nil
}

// Close 关闭日志渠道。
func (s *LogSink) Close() error { return nil }

var _ Sink = (*LogSink)(nil)
