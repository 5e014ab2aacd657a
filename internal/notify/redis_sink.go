package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisSinkConfig 描述 Redis 渠道的连接参数。
type RedisSinkConfig struct {
	Address  string
	Password string
	DB       int
	List     string
}

// RedisSink 使用 Redis list 对外发布事件，供外部消费者 BRPOP 订阅。
type RedisSink struct {
	client *redis.Client
	list   string
}

// NewRedisSink 创建 Redis 渠道实例。
func NewRedisSink(cfg RedisSinkConfig) (*RedisSink, error) {
	if cfg.Address == "" {
		return nil, errors.New("Redis address 不能为空")
	}
	list := cfg.List
	if list == "" {
		list = "openmint:events"
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("连接 Redis 失败: %w", err)
	}
	return &RedisSink{client: client, list: list}, nil
}

// Name 返回渠道名称。
func (s *RedisSink) Name() string { return "redis" }

// Deliver 将事件序列化后投递到 Redis。
func (s *RedisSink) Deliver(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("序列化事件失败: %w", err)
	}
	if err := s.client.LPush(ctx, s.list, payload).Err(); err != nil {
		return fmt.Errorf("Redis 发布事件失败: %w", err)
	}
	return nil
}

// Close 关闭 Redis 连接。
func (s *RedisSink) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}

var _ Sink = (*RedisSink)(nil)
