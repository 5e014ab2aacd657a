package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// RabbitMQSinkConfig 描述 RabbitMQ 渠道的连接参数。
type RabbitMQSinkConfig struct {
	URL        string
	Queue      string
	Durable    bool
	AutoDelete bool
}

// RabbitMQSink 使用 RabbitMQ 对外发布事件。
type RabbitMQSink struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string
}

// NewRabbitMQSink 创建 RabbitMQ 渠道实例。
func NewRabbitMQSink(cfg RabbitMQSinkConfig) (*RabbitMQSink, error) {
	if cfg.URL == "" {
		return nil, errors.New("RabbitMQ URL 不能为空")
	}
	queue := cfg.Queue
	if queue == "" {
		queue = "openmint.events"
	}
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("连接 RabbitMQ 失败: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("创建 RabbitMQ channel 失败: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, cfg.Durable, cfg.AutoDelete, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("声明 RabbitMQ 队列失败: %w", err)
	}
	return &RabbitMQSink{conn: conn, ch: ch, queue: queue}, nil
}

// Name 返回渠道名称。
func (s *RabbitMQSink) Name() string { return "rabbitmq" }

// Deliver 将事件序列化后投递到 RabbitMQ。
func (s *RabbitMQSink) Deliver(ctx context.Context, event Event) error {
	if s == nil || s.ch == nil {
		return errors.New("RabbitMQ 渠道未初始化")
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("序列化事件失败: %w", err)
	}
	return s.ch.PublishWithContext(ctx, "", s.queue, false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        payload,
	})
}

// Close 关闭 RabbitMQ 连接。
func (s *RabbitMQSink) Close() error {
	if s == nil {
		return nil
	}
	if s.ch != nil {
		_ = s.ch.Close()
	}
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

var _ Sink = (*RabbitMQSink)(nil)
