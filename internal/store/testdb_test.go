package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// openTestDB connects to WORKHUB_TEST_DATABASE_URL or skips the test.
func openTestDB(t *testing.T) (*sql.DB, context.Context) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	dsn := strings.TrimSpace(os.Getenv("WORKHUB_TEST_DATABASE_URL"))
	if dsn == "" {
		t.Skip("WORKHUB_TEST_DATABASE_URL is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	t.Cleanup(cancel)

	db, err := Open(ctx, dsn)
	if err != nil {
		t.Fatalf("open postgres: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, ctx
}

// newTestStore returns a store over a freshly migrated schema with two users, u_a and u_b.
func newTestStore(t *testing.T) (*PostgresStore, context.Context) {
	t.Helper()
	db, ctx := openTestDB(t)
	if err := resetPublicSchema(ctx, db); err != nil {
		t.Fatalf("reset schema: %v", err)
	}
	if _, err := ApplyMigrations(ctx, db, filepath.Join("..", "..", "db", "migrations")); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}

	s := NewPostgresStore(db)
	for _, user := range []User{
		{ID: "u_a", ExternalID: "ext-a", Email: "a@example.com", DisplayName: "Ada"},
		{ID: "u_b", ExternalID: "ext-b", Email: "b@example.com", DisplayName: "Bo"},
		{ID: "u_admin", ExternalID: "ext-admin", Email: "admin@example.com", DisplayName: "Root", Role: "admin"},
	} {
		if _, err := s.UpsertUserByExternalID(ctx, user); err != nil {
			t.Fatalf("seed user %s: %v", user.ID, err)
		}
	}
	return s, ctx
}

func strPtr(value string) *string {
	return &value
}
