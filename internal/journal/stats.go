package journal

// Stats 聚合了审计日志的统计信息，常用于巡检或健康检查。
type Stats struct {
	Total            int    `json:"total"`
	Authority        int    `json:"authority"`
	Gate             int    `json:"gate"`
	Ledger           int    `json:"ledger"`
	Registry         int    `json:"registry"`
	OldestOccurredAt int64  `json:"oldest_occurred_at,omitempty"`
	NewestOccurredAt int64  `json:"newest_occurred_at,omitempty"`
	LastSequence     uint64 `json:"last_sequence,omitempty"`
}
