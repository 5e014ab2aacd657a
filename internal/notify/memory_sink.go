package notify

import (
	"context"
	"errors"
	"sync"
)

// MemorySink 将事件保存在内存中，主要用于测试和本地运行。
type MemorySink struct {
	mu     sync.RWMutex
	events []Event
	closed bool
}

// NewMemorySink 创建一个内存事件接收器。
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// Name 返回渠道名称。
func (s *MemorySink) Name() string { return "memory" }

// Deliver 记录一个事件。
func (s *MemorySink) Deliver(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("内存渠道已关闭")
	}
	s.events = append(s.events, event.Clone())
	return nil
}

// Events 返回已记录事件的副本。
func (s *MemorySink) Events() []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Event, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.Clone())
	}
	return out
}

// Reset 清空已记录的事件。
func (s *MemorySink) Reset() {
	s.mu.Lock()
	s.events = nil
	s.mu.Unlock()
}

// Close 关闭内存渠道。
func (s *MemorySink) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

var _ Sink = (*MemorySink)(nil)
