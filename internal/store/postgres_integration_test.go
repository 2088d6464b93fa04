package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/compasscal/compass/internal/core"
)

var postgresIntegrationCounter uint64

func TestPostgresIntegrationStore(t *testing.T) {
	dsn := postgresIntegrationDSN(t)

	runStorageContract(t, func(t *testing.T) core.Storage {
		s, err := newSQLStore(dialectPostgres, dsn)
		if err != nil {
			t.Fatalf("new postgres store: %v", err)
		}
		s.eventsTable = postgresIntegrationTableName("compass_events_it")
		s.syncsTable = postgresIntegrationTableName("compass_syncs_it")
		t.Cleanup(func() {
			_ = s.Close()
			postgresIntegrationDropTable(t, dsn, s.eventsTable)
			postgresIntegrationDropTable(t, dsn, s.syncsTable)
		})
		return s
	})
}

func postgresIntegrationDSN(t *testing.T) string {
	t.Helper()
	dsn := strings.TrimSpace(os.Getenv("COMPASS_TEST_POSTGRES_DSN"))
	if dsn == "" {
		t.Skip("set COMPASS_TEST_POSTGRES_DSN to run Postgres integration tests")
	}
	return dsn
}

func postgresIntegrationTableName(prefix string) string {
	n := atomic.AddUint64(&postgresIntegrationCounter, 1)
	return fmt.Sprintf("%s_%d_%d", prefix, time.Now().UnixNano(), n)
}

func postgresIntegrationDropTable(t *testing.T, dsn, table string) {
	t.Helper()
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Logf("drop %s: %v", table, err)
		return
	}
	defer db.Close()
	ctx, cancel := context.WithTimeout(context.Background(), sqlOperationTimeout)
	defer cancel()
	if _, err := db.ExecContext(ctx, "DROP TABLE IF EXISTS "+quoteIdentifier(table)); err != nil {
		t.Logf("drop %s: %v", table, err)
	}
}
