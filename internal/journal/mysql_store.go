package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	stdErrors "errors"
	"fmt"
	"strings"
	"time"

	xerrors "OpenMint-Vault/internal/errors"
	"github.com/go-sql-driver/mysql"
)

// MySQLStore 使用 MySQL 持久化审计日志。
type MySQLStore struct {
	db *sql.DB
}

// NewMySQLStore 创建一个新的 MySQLStore。
func NewMySQLStore(dsn string) (*MySQLStore, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "MySQL DSN 不能为空")
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "连接 MySQL 失败")
	}

	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(10 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "无法连接到 MySQL")
	}

	store := &MySQLStore{db: db}
	if err := store.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *MySQLStore) initSchema() error {
	const schema = `CREATE TABLE IF NOT EXISTS journal_records (
        id VARCHAR(64) PRIMARY KEY,
        seq BIGINT UNSIGNED NOT NULL,
        kind VARCHAR(64) NOT NULL,
        asset VARCHAR(255) DEFAULT '',
        actor VARCHAR(64) DEFAULT '',
        subject VARCHAR(64) DEFAULT '',
        amount BIGINT UNSIGNED NOT NULL DEFAULT 0,
        old_value TEXT,
        new_value TEXT,
        metadata TEXT,
        digest CHAR(64) NOT NULL,
        prev_digest CHAR(64) DEFAULT '',
        occurred_at BIGINT NOT NULL,
        recorded_at BIGINT NOT NULL,
        UNIQUE KEY uniq_journal_seq (seq),
        INDEX idx_journal_kind (kind),
        INDEX idx_journal_occurred (occurred_at)
)`

	if _, err := s.db.Exec(schema); err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "初始化 journal_records 表失败")
	}
	return nil
}

// Append 插入一条新的日志记录。
func (s *MySQLStore) Append(ctx context.Context, record *Record) error {
	if record == nil {
		return xerrors.New(xerrors.CodeInvalidArgument, "记录不能为空")
	}
	if strings.TrimSpace(record.ID) == "" {
		return xerrors.New(xerrors.CodeInvalidArgument, "记录 ID 不能为空")
	}

	if record.RecordedAt == 0 {
		record.RecordedAt = time.Now().Unix()
	}

	metadataValue, err := marshalMetadata(record.Metadata)
	if err != nil {
		return xerrors.Wrap(xerrors.CodeInvalidArgument, err, "编码记录 metadata 失败")
	}

	const stmt = `INSERT INTO journal_records
        (id, seq, kind, asset, actor, subject, amount, old_value, new_value, metadata, digest, prev_digest, occurred_at, recorded_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = s.db.ExecContext(ctx, stmt,
		record.ID,
		record.Sequence,
		record.Kind,
		record.Asset,
		record.Actor,
		record.Subject,
		record.Amount,
		record.OldValue,
		record.NewValue,
		metadataValue,
		record.Digest,
		record.PrevDigest,
		record.OccurredAt,
		record.RecordedAt,
	)
	if err != nil {
		var mysqlErr *mysql.MySQLError
		if stdErrors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
			return ErrRecordConflict
		}
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "插入日志记录失败")
	}
	return nil
}

// Get 查询指定记录。
func (s *MySQLStore) Get(ctx context.Context, id string) (*Record, error) {
	const stmt = `SELECT id, seq, kind, asset, actor, subject, amount, old_value, new_value, metadata,
        digest, prev_digest, occurred_at, recorded_at
        FROM journal_records WHERE id = ?`

	row := s.db.QueryRowContext(ctx, stmt, id)

	record, err := scanRecord(row)
	if err != nil {
		if stdErrors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "查询日志记录失败")
	}
	return record, nil
}

// Last 返回序号最大的记录，日志为空时返回 ErrRecordNotFound。
func (s *MySQLStore) Last(ctx context.Context) (*Record, error) {
	const stmt = `SELECT id, seq, kind, asset, actor, subject, amount, old_value, new_value, metadata,
        digest, prev_digest, occurred_at, recorded_at
        FROM journal_records ORDER BY seq DESC LIMIT 1`

	row := s.db.QueryRowContext(ctx, stmt)

	record, err := scanRecord(row)
	if err != nil {
		if stdErrors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "查询日志尾部失败")
	}
	return record, nil
}

// List 返回符合过滤条件的记录。
func (s *MySQLStore) List(ctx context.Context, opts ListOptions) ([]*Record, error) {
	opts.applyDefaults()

	query := `SELECT id, seq, kind, asset, actor, subject, amount, old_value, new_value, metadata,
        digest, prev_digest, occurred_at, recorded_at FROM journal_records`

	clause, filterArgs := buildFilterClause(opts)
	if clause != "" {
		query += " WHERE " + clause
	}

	order := " ORDER BY seq DESC"
	if opts.Order == SortBySequenceAsc {
		order = " ORDER BY seq ASC"
	}
	query += order + " LIMIT ? OFFSET ?"

	args := append(filterArgs, opts.Limit, opts.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "查询日志列表失败")
	}
	defer rows.Close()

	records := make([]*Record, 0, opts.Limit)
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "解析日志记录失败")
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "遍历日志记录失败")
	}
	return records, nil
}

// Stats 返回符合过滤条件的记录聚合信息。
func (s *MySQLStore) Stats(ctx context.Context, opts ListOptions) (Stats, error) {
	opts.applyDefaults()

	query := `SELECT
        COUNT(*) AS total,
        COALESCE(SUM(CASE WHEN kind LIKE ? THEN 1 ELSE 0 END), 0) AS authority,
        COALESCE(SUM(CASE WHEN kind LIKE ? THEN 1 ELSE 0 END), 0) AS gate,
        COALESCE(SUM(CASE WHEN kind LIKE ? THEN 1 ELSE 0 END), 0) AS ledger,
        COALESCE(SUM(CASE WHEN kind LIKE ? THEN 1 ELSE 0 END), 0) AS registry,
        COALESCE(MIN(occurred_at), 0) AS oldest,
        COALESCE(MAX(occurred_at), 0) AS newest,
        COALESCE(MAX(seq), 0) AS last_seq
        FROM journal_records`

	clause, filterArgs := buildFilterClause(opts)
	if clause != "" {
		query += " WHERE " + clause
	}

	args := []any{"authority.%", "gate.%", "ledger.%", "registry.%"}
	args = append(args, filterArgs...)

	row := s.db.QueryRowContext(ctx, query, args...)

	var stats Stats
	if err := row.Scan(
		&stats.Total,
		&stats.Authority,
		&stats.Gate,
		&stats.Ledger,
		&stats.Registry,
		&stats.OldestOccurredAt,
		&stats.NewestOccurredAt,
		&stats.LastSequence,
	); err != nil {
		return Stats{}, xerrors.Wrap(xerrors.CodeStorageFailure, err, "查询日志统计失败")
	}
	if stats.Total == 0 {
		stats.OldestOccurredAt = 0
		stats.NewestOccurredAt = 0
		stats.LastSequence = 0
	}
	return stats, nil
}

// Close 关闭底层数据库连接。
func (s *MySQLStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var record Record
	var metadata sql.NullString
	if err := row.Scan(
		&record.ID,
		&record.Sequence,
		&record.Kind,
		&record.Asset,
		&record.Actor,
		&record.Subject,
		&record.Amount,
		&record.OldValue,
		&record.NewValue,
		&metadata,
		&record.Digest,
		&record.PrevDigest,
		&record.OccurredAt,
		&record.RecordedAt,
	); err != nil {
		return nil, err
	}
	decoded, err := unmarshalMetadata(metadata)
	if err != nil {
		return nil, err
	}
	record.Metadata = decoded
	return &record, nil
}

func marshalMetadata(metadata map[string]string) (sql.NullString, error) {
	if len(metadata) == 0 {
		return sql.NullString{}, nil
	}
	bytes, err := json.Marshal(metadata)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(bytes), Valid: true}, nil
}

func unmarshalMetadata(raw sql.NullString) (map[string]string, error) {
	if !raw.Valid || strings.TrimSpace(raw.String) == "" {
		return nil, nil
	}
	var metadata map[string]string
	if err := json.Unmarshal([]byte(raw.String), &metadata); err != nil {
		return nil, err
	}
	return metadata, nil
}

func buildFilterClause(opts ListOptions) (string, []any) {
	conditions := make([]string, 0, 4)
	args := make([]any, 0, 6)

	if len(opts.Kinds) > 0 {
		placeholders := make([]string, 0, len(opts.Kinds))
		for range opts.Kinds {
			placeholders = append(placeholders, "?")
		}
		conditions = append(conditions, fmt.Sprintf("kind IN (%s)", strings.Join(placeholders, ",")))
		for _, kind := range opts.Kinds {
			args = append(args, kind)
		}
	}
	if opts.Asset != "" {
		conditions = append(conditions, "asset = ?")
		args = append(args, opts.Asset)
	}
	if opts.Actor != "" {
		conditions = append(conditions, "actor = ?")
		args = append(args, opts.Actor)
	}
	if opts.OccurredGTE > 0 {
		conditions = append(conditions, "occurred_at >= ?")
		args = append(args, opts.OccurredGTE)
	}
	if opts.OccurredLTE > 0 {
		conditions = append(conditions, "occurred_at <= ?")
		args = append(args, opts.OccurredLTE)
	}

	if len(conditions) == 0 {
		return "", nil
	}
	return strings.Join(conditions, " AND "), args
}

var _ Store = (*MySQLStore)(nil)
