package postgres

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// One container serves the whole package; tests get emptied tables.
var (
	sharedOnce      sync.Once
	sharedPool      *Pool
	sharedErr       error
	sharedContainer *tcpostgres.PostgresContainer
)

func TestMain(m *testing.M) {
	code := m.Run()
	if sharedPool != nil {
		sharedPool.Close()
	}
	if sharedContainer != nil {
		_ = sharedContainer.Terminate(context.Background())
	}
	os.Exit(code)
}

// setupTestDB returns the shared pool with all wallet tables truncated.
func setupTestDB(t *testing.T) (*Pool, func()) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	sharedOnce.Do(func() { sharedPool, sharedErr = startPostgres() })
	require.NoError(t, sharedErr, "failed to start postgres")

	truncate := func() {
		_, err := sharedPool.Exec(context.Background(),
			`TRUNCATE action_history, token_directory, favorites RESTART IDENTITY`)
		require.NoError(t, err, "failed to truncate tables")
	}
	truncate()
	return sharedPool, truncate
}

func startPostgres() (*Pool, error) {
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:15-alpine",
		tcpostgres.WithDatabase("wallet"),
		tcpostgres.WithUsername("wallet"),
		tcpostgres.WithPassword("wallet"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		return nil, err
	}
	sharedContainer = container

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return nil, err
	}
	pool, err := NewPool(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if err := applySchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// applySchema runs the postgres schema files from disk; the migrations
// package imports this one.
func applySchema(ctx context.Context, pool *Pool) error {
	dir := filepath.Join("..", "migrations", "postgres")
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}

	var files []string
	for _, entry := range entries {
		if filepath.Ext(entry.Name()) == ".sql" {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)

	for _, file := range files {
		sql, err := os.ReadFile(filepath.Join(dir, file))
		if err != nil {
			return err
		}
		if _, err := pool.Exec(ctx, string(sql)); err != nil {
			return err
		}
	}
	return nil
}
