package journal

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	xerrors "OpenMint-Vault/internal/errors"
)

// MemoryStore 以内存方式保存日志记录，主要用于测试。
type MemoryStore struct {
	mu      sync.RWMutex
	records []*Record
	index   map[string]*Record
	seqs    map[uint64]struct{}
}

// NewMemoryStore 创建 MemoryStore。
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		index: make(map[string]*Record),
		seqs:  make(map[uint64]struct{}),
	}
}

// Append 实现 Store 接口。
func (m *MemoryStore) Append(_ context.Context, record *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if record == nil {
		return xerrors.New(xerrors.CodeInvalidArgument, "记录不能为空")
	}
	if record.ID == "" {
		return xerrors.New(xerrors.CodeInvalidArgument, "记录 ID 不能为空")
	}
	if _, ok := m.index[record.ID]; ok {
		return ErrRecordConflict
	}
	if _, ok := m.seqs[record.Sequence]; ok {
		return ErrRecordConflict
	}
	if record.RecordedAt == 0 {
		record.RecordedAt = time.Now().Unix()
	}
	clone := cloneRecord(record)
	m.records = append(m.records, clone)
	m.index[clone.ID] = clone
	m.seqs[clone.Sequence] = struct{}{}
	return nil
}

// Get 返回指定记录。
func (m *MemoryStore) Get(_ context.Context, id string) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	record, ok := m.index[id]
	if !ok {
		return nil, ErrRecordNotFound
	}
	return cloneRecord(record), nil
}

// Last 返回序号最大的记录，日志为空时返回 ErrRecordNotFound。
func (m *MemoryStore) Last(_ context.Context) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var last *Record
	for _, record := range m.records {
		if last == nil || record.Sequence > last.Sequence {
			last = record
		}
	}
	if last == nil {
		return nil, ErrRecordNotFound
	}
	return cloneRecord(last), nil
}

// List 返回符合过滤条件的记录。
func (m *MemoryStore) List(_ context.Context, opts ListOptions) ([]*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	opts.applyDefaults()

	results := make([]*Record, 0, len(m.records))
	for _, record := range m.records {
		if !matchesListFilters(record, opts) {
			continue
		}
		results = append(results, cloneRecord(record))
	}

	sort.Slice(results, func(i, j int) bool {
		if opts.Order == SortBySequenceAsc {
			return results[i].Sequence < results[j].Sequence
		}
		return results[i].Sequence > results[j].Sequence
	})

	if opts.Offset >= len(results) {
		return []*Record{}, nil
	}
	results = results[opts.Offset:]
	if len(results) > opts.Limit {
		results = results[:opts.Limit]
	}
	return results, nil
}

// Stats 统计符合过滤条件的记录数量与发生时间范围。
func (m *MemoryStore) Stats(_ context.Context, opts ListOptions) (Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	opts.applyDefaults()

	stats := Stats{}
	for _, record := range m.records {
		if !matchesListFilters(record, opts) {
			continue
		}
		stats.Total++
		switch record.Component() {
		case "authority":
			stats.Authority++
		case "gate":
			stats.Gate++
		case "ledger":
			stats.Ledger++
		case "registry":
			stats.Registry++
		}
		if record.OccurredAt > stats.NewestOccurredAt {
			stats.NewestOccurredAt = record.OccurredAt
		}
		if stats.OldestOccurredAt == 0 || (record.OccurredAt != 0 && record.OccurredAt < stats.OldestOccurredAt) {
			stats.OldestOccurredAt = record.OccurredAt
		}
		if record.Sequence > stats.LastSequence {
			stats.LastSequence = record.Sequence
		}
	}
	if stats.Total == 0 {
		stats.OldestOccurredAt = 0
		stats.NewestOccurredAt = 0
		stats.LastSequence = 0
	}
	return stats, nil
}

// Close 对内存存储无需操作。
func (m *MemoryStore) Close() error {
	return nil
}

func matchesListFilters(record *Record, opts ListOptions) bool {
	if len(opts.Kinds) > 0 {
		matched := false
		for _, kind := range opts.Kinds {
			if record.Kind == kind {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	if opts.Asset != "" && record.Asset != opts.Asset {
		return false
	}
	if opts.Actor != "" && !strings.EqualFold(record.Actor, opts.Actor) {
		return false
	}
	if opts.OccurredGTE > 0 && record.OccurredAt < opts.OccurredGTE {
		return false
	}
	if opts.OccurredLTE > 0 && record.OccurredAt > opts.OccurredLTE {
		return false
	}
	return true
}

// ensure interface compliance at compile time
var _ Store = (*MemoryStore)(nil)
