package journal

import "context"

// Store 抽象了日志记录的持久化接口。
type Store interface {
	Append(ctx context.Context, record *Record) error
	Get(ctx context.Context, id string) (*Record, error)
	Last(ctx context.Context) (*Record, error)
	List(ctx context.Context, opts ListOptions) ([]*Record, error)
	Stats(ctx context.Context, opts ListOptions) (Stats, error)
	Close() error
}
