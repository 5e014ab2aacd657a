package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

// defaultBridgeBuffer 是插件事件通道的默认容量。
const defaultBridgeBuffer = 256

// PluginBridge 将事件转换为普通的 map 结构并写入带缓冲的通道，供进程内
// 插件订阅。核心路径绝不等待插件，通道写满时直接丢弃事件并累计丢弃计数。
type PluginBridge struct {
	mu      sync.RWMutex
	feed    chan map[string]any
	closed  bool
	dropped atomic.Uint64
}

// NewPluginBridge 创建插件事件桥。buffer 小于等于 0 时使用默认容量。
func NewPluginBridge(buffer int) *PluginBridge {
	if buffer <= 0 {
		buffer = defaultBridgeBuffer
	}
	return &PluginBridge{feed: make(chan map[string]any, buffer)}
}

// Name 返回渠道名称。
func (b *PluginBridge) Name() string { return "plugin" }

// Feed 返回插件侧的只读事件通道。通道关闭即表示不再有新事件。
func (b *PluginBridge) Feed() <-chan map[string]any { return b.feed }

// Dropped 返回因通道写满而被丢弃的事件数量。
func (b *PluginBridge) Dropped() uint64 { return b.dropped.Load() }

// Deliver 将事件编码成 map 后尝试投递，投递永不阻塞调用方。
func (b *PluginBridge) Deliver(_ context.Context, event Event) error {
	payload, err := bridgePayload(event)
	if err != nil {
		return err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return errors.New("插件桥已关闭")
	}
	select {
	case b.feed <- payload:
	default:
		b.dropped.Add(1)
	}
	return nil
}

// Close 关闭事件通道。
func (b *PluginBridge) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	close(b.feed)
	return nil
}

// bridgePayload 通过 JSON 往返把事件转换成只含基础类型的 map，
// 插件无需链接核心包即可消费。
func bridgePayload(event Event) (map[string]any, error) {
	raw, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("编码事件失败: %w", err)
	}
	payload := make(map[string]any)
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("解码事件失败: %w", err)
	}
	return payload, nil
}

var _ Sink = (*PluginBridge)(nil)
