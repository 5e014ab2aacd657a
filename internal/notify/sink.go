package notify

import (
	"context"
	"errors"
	"fmt"
)

// Sink 负责将事件投递到某个下游渠道。
type Sink interface {
	Name() string
	Deliver(ctx context.Context, event Event) error
	Close() error
}

// Dispatcher 将事件广播给多个投递渠道。
type Dispatcher interface {
	Dispatch(ctx context.Context, event Event) error
}

// Fanout 实现将事件投递到多个 Sink 的逻辑。
type Fanout struct {
	sinks map[string]Sink
}

// NewFanout 创建一个新的 Fanout。
func NewFanout(sinks ...Sink) *Fanout {
	set := make(map[string]Sink, len(sinks))
	for _, s := range sinks {
		if s == nil {
			continue
		}
		set[s.Name()] = s
	}
	return &Fanout{sinks: set}
}

// Dispatch 将事件广播至所有注册渠道，任何一个渠道失败都不影响其他渠道。
func (f *Fanout) Dispatch(ctx context.Context, event Event) error {
	if f == nil {
		return nil
	}
	var errs []error
	for _, sink := range f.sinks {
		if err := sink.Deliver(ctx, event); err != nil {
			errs = append(errs, fmt.Errorf("sink %s: %w", sink.Name(), err))
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Close 关闭所有渠道。
func (f *Fanout) Close() error {
	if f == nil {
		return nil
	}
	var errs []error
	for _, sink := range f.sinks {
		if err := sink.Close(); err != nil {
			errs = append(errs, fmt.Errorf("sink %s: %w", sink.Name(), err))
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
