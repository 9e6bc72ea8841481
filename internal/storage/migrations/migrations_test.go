package migrations

import (
	"errors"
	"strings"
	"testing"
)

func TestEmbeddedMigrations(t *testing.T) {
	pg, err := load(PostgresFS, "postgres")
	if err != nil {
		t.Fatalf("load postgres: %v", err)
	}
	if len(pg) == 0 {
		t.Fatal("expected postgres migrations")
	}
	for _, table := range []string{"trading_days", "stocks", "backtest_results"} {
		if !strings.Contains(pg[0].SQL, table) {
			t.Errorf("postgres schema missing table %s", table)
		}
	}

	ch, err := load(ClickhouseFS, "clickhouse")
	if err != nil {
		t.Fatalf("load clickhouse: %v", err)
	}
	stmts, err := splitStatements(ch[0].SQL)
	if err != nil {
		t.Fatalf("split clickhouse: %v", err)
	}
	if len(stmts) != 1 || !strings.Contains(stmts[0], "daily_closes") {
		t.Errorf("unexpected clickhouse statements: %q", stmts)
	}
}

func TestSplitStatements(t *testing.T) {
	stmts, err := splitStatements("-- header\nCREATE TABLE a (x String);\n\nCREATE TABLE b (y String) COMMENT 'it''s';\n")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(stmts) != 2 {
		t.Fatalf("expected 2 statements, got %d: %q", len(stmts), stmts)
	}
	if stmts[0] != "CREATE TABLE a (x String)" {
		t.Errorf("unexpected first statement %q", stmts[0])
	}

	if _, err := splitStatements("SELECT 'a;b';"); !errors.Is(err, ErrSemicolonInString) {
		t.Errorf("expected ErrSemicolonInString, got %v", err)
	}
}

func TestDatabaseFromDSN(t *testing.T) {
	db, err := databaseFromDSN("clickhouse://default@localhost:9000/market")
	if err != nil || db != "market" {
		t.Errorf("got %q, %v", db, err)
	}
	if _, err := databaseFromDSN("clickhouse://localhost:9000"); err == nil {
		t.Error("expected error for dsn without database")
	}
}
