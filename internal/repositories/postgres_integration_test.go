package repositories

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/cockroachdb/cockroach-go/v2/testserver"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/watchparty/backend/internal/models"
)

var testPool *pgxpool.Pool

func TestMain(m *testing.M) {
	server, err := testserver.NewTestServer()
	if err != nil {
		fmt.Fprintf(os.Stderr, "start cockroach test server: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, server.PGURL().String())
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect to cockroach test server: %v\n", err)
		server.Stop()
		os.Exit(1)
	}

	if err := applyMigrations(ctx, pool); err != nil {
		fmt.Fprintf(os.Stderr, "apply migrations: %v\n", err)
		pool.Close()
		server.Stop()
		os.Exit(1)
	}

	testPool = pool

	code := m.Run()

	pool.Close()
	server.Stop()

	os.Exit(code)
}

func TestPostgresConnectionRepository_SaveAndLoad(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	repo := NewPostgresConnectionRepository(testPool)
	userID := uuid.NewString()
	expires := time.Now().UTC().Add(time.Hour).Truncate(time.Millisecond)

	conn := models.DriveConnection{
		UserID:         userID,
		AccessToken:    "access-1",
		RefreshToken:   "refresh-1",
		TokenExpiresAt: expires,
		FolderID:       "folder-1",
		Connected:      true,
		UpdatedAt:      time.Now().UTC(),
	}

	if err := repo.SaveConnection(ctx, conn); err != nil {
		t.Fatalf("save connection: %v", err)
	}

	cred, err := repo.LoadCredential(ctx, userID)
	if err != nil {
		t.Fatalf("load credential: %v", err)
	}

	if cred.AccessToken != "access-1" || cred.RefreshToken != "refresh-1" {
		t.Fatalf("unexpected credential loaded: %+v", cred)
	}
	if !timesClose(cred.ExpiresAt, expires, time.Millisecond) {
		t.Fatalf("expected expiry %v got %v", expires, cred.ExpiresAt)
	}

	// Reconnecting upserts over the existing row.
	conn.AccessToken = "access-2"
	if err := repo.SaveConnection(ctx, conn); err != nil {
		t.Fatalf("resave connection: %v", err)
	}

	cred, err = repo.LoadCredential(ctx, userID)
	if err != nil {
		t.Fatalf("load credential after upsert: %v", err)
	}
	if cred.AccessToken != "access-2" {
		t.Fatalf("upsert did not replace token, got %q", cred.AccessToken)
	}
}

func TestPostgresConnectionRepository_LoadMissingReturnsNotFound(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	repo := NewPostgresConnectionRepository(testPool)

	if _, err := repo.LoadCredential(ctx, uuid.NewString()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound got %v", err)
	}
}

func TestPostgresConnectionRepository_SaveCredential(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	repo := NewPostgresConnectionRepository(testPool)
	userID := createTestConnection(t, repo)

	newExpiry := time.Now().UTC().Add(2 * time.Hour).Truncate(time.Millisecond)
	if err := repo.SaveCredential(ctx, userID, "rotated-access", "rotated-refresh", newExpiry); err != nil {
		t.Fatalf("save credential: %v", err)
	}

	cred, err := repo.LoadCredential(ctx, userID)
	if err != nil {
		t.Fatalf("load credential: %v", err)
	}
	if cred.AccessToken != "rotated-access" || cred.RefreshToken != "rotated-refresh" {
		t.Fatalf("rotation did not persist: %+v", cred)
	}
	if !timesClose(cred.ExpiresAt, newExpiry, time.Millisecond) {
		t.Fatalf("expected expiry %v got %v", newExpiry, cred.ExpiresAt)
	}

	if err := repo.SaveCredential(ctx, uuid.NewString(), "a", "r", newExpiry); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown user, got %v", err)
	}
}

func TestPostgresConnectionRepository_Disconnect(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	repo := NewPostgresConnectionRepository(testPool)
	userID := createTestConnection(t, repo)

	if err := repo.Disconnect(ctx, userID); err != nil {
		t.Fatalf("disconnect: %v", err)
	}

	if _, err := repo.LoadCredential(ctx, userID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("disconnected user must read as not found, got %v", err)
	}

	if err := repo.Disconnect(ctx, uuid.NewString()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown user, got %v", err)
	}
}

func applyMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	migrationsDir := filepath.Join("..", "..", "migrations")
	entries, err := os.ReadDir(migrationsDir)
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		contents, err := os.ReadFile(filepath.Join(migrationsDir, entry.Name()))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}

		if _, err := pool.Exec(ctx, string(contents)); err != nil {
			return fmt.Errorf("apply migration %s: %w", entry.Name(), err)
		}
	}

	return nil
}

func resetDatabase(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	conn, err := testPool.Acquire(ctx)
	if err != nil {
		t.Fatalf("acquire connection: %v", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "TRUNCATE TABLE drive_connections"); err != nil {
		t.Fatalf("truncate tables: %v", err)
	}
}

func createTestConnection(t *testing.T, repo *PostgresConnectionRepository) string {
	t.Helper()
	userID := uuid.NewString()
	conn := models.DriveConnection{
		UserID:         userID,
		AccessToken:    "access-1",
		RefreshToken:   "refresh-1",
		TokenExpiresAt: time.Now().UTC().Add(time.Hour),
		Connected:      true,
		UpdatedAt:      time.Now().UTC(),
	}
	if err := repo.SaveConnection(context.Background(), conn); err != nil {
		t.Fatalf("create test connection: %v", err)
	}
	return userID
}

func timesClose(a, b time.Time, delta time.Duration) bool {
	diff := a.Sub(b)
	if diff < 0 {
		diff = -diff
	}
	return diff <= delta
}
