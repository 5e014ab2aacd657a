package migrations

import (
	"strings"
	"testing"
)

func TestJournalMigrationMatchesStoreSchema(t *testing.T) {
	raw, err := Files.ReadFile("0001_journal_records.sql")
	if err != nil {
		t.Fatalf("read migration: %v", err)
	}
	ddl := string(raw)

	// 脚本必须与存储层的建表语句保持同一套关键约束
	for _, fragment := range []string{
		"CREATE TABLE IF NOT EXISTS journal_records",
		"UNIQUE KEY uniq_journal_seq (seq)",
		"digest CHAR(64) NOT NULL",
		"INDEX idx_journal_kind (kind)",
		"INDEX idx_journal_occurred (occurred_at)",
	} {
		if !strings.Contains(ddl, fragment) {
			t.Fatalf("migration missing %q", fragment)
		}
	}
}
