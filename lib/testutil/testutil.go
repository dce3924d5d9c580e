package testutil

import (
	"database/sql"
	"fmt"
	"testing"

	"shortwatch-backend/lib/telemetry"

	_ "modernc.org/sqlite"
)

// SetupDB initializes test telemetry and opens an in-memory sqlite database
// with the given schema applied. Both are torn down via t.Cleanup.
func SetupDB(t testing.TB, name string, schema string) *sql.DB {
	t.Cleanup(telemetry.SetupForTesting(t, fmt.Sprintf("test:%s", name)))

	sqlite, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { sqlite.Close() })

	_, err = sqlite.Exec(schema)
	if err != nil {
		t.Fatal(err)
	}
	return sqlite
}
