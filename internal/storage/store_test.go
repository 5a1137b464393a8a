package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terra-clan/contest-client/internal/config"
)

// testStore runs the behaviour every backend must share
func testStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	_, err := s.Get(ctx, "missing")
	assert.True(t, errors.Is(err, ErrNotFound))

	require.NoError(t, s.Set(ctx, "code_1_2_JAVA", "class Main {}"))
	v, err := s.Get(ctx, "code_1_2_JAVA")
	require.NoError(t, err)
	assert.Equal(t, "class Main {}", v)

	require.NoError(t, s.Set(ctx, "code_1_2_JAVA", "class Main { }"))
	v, err = s.Get(ctx, "code_1_2_JAVA")
	require.NoError(t, err)
	assert.Equal(t, "class Main { }", v)

	require.NoError(t, s.Delete(ctx, "code_1_2_JAVA"))
	_, err = s.Get(ctx, "code_1_2_JAVA")
	assert.True(t, errors.Is(err, ErrNotFound))

	// Deleting a missing key is not an error
	require.NoError(t, s.Delete(ctx, "code_1_2_JAVA"))

	assert.NoError(t, s.Ping(ctx))
}

func TestMemoryStore(t *testing.T) {
	testStore(t, NewMemoryStore())
}

func TestFileStore(t *testing.T) {
	s, err := NewFileStore(filepath.Join(t.TempDir(), "nested", "state.json"))
	require.NoError(t, err)
	testStore(t, s)
}

func TestFileStore_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	ctx := context.Background()

	s, err := NewFileStore(path)
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, "user", `{"id":1,"username":"alice"}`))
	require.NoError(t, s.Set(ctx, "contestId", "3"))
	require.NoError(t, s.Close())

	reopened, err := NewFileStore(path)
	require.NoError(t, err)

	v, err := reopened.Get(ctx, "user")
	require.NoError(t, err)
	assert.Equal(t, `{"id":1,"username":"alice"}`, v)

	v, err = reopened.Get(ctx, "contestId")
	require.NoError(t, err)
	assert.Equal(t, "3", v)

	// No temp files are left behind
	temps, err := filepath.Glob(filepath.Join(filepath.Dir(path), ".state-*"))
	require.NoError(t, err)
	assert.Empty(t, temps)
}

func TestFileStore_SharedPathKeepsEveryWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	ctx := context.Background()

	a, err := NewFileStore(path)
	require.NoError(t, err)
	defer a.Close()
	b, err := NewFileStore(path)
	require.NoError(t, err)
	defer b.Close()

	require.NoError(t, a.Set(ctx, "code_1_7_PYTHON", "print(1)"))
	require.NoError(t, b.Set(ctx, "code_1_8_JAVA", "class Main {}"))

	// Each store sees the other's write
	v, err := a.Get(ctx, "code_1_8_JAVA")
	require.NoError(t, err)
	assert.Equal(t, "class Main {}", v)

	require.NoError(t, b.Delete(ctx, "code_1_7_PYTHON"))
	_, err = a.Get(ctx, "code_1_7_PYTHON")
	assert.True(t, errors.Is(err, ErrNotFound))

	reopened, err := NewFileStore(path)
	require.NoError(t, err)
	defer reopened.Close()
	v, err = reopened.Get(ctx, "code_1_8_JAVA")
	require.NoError(t, err)
	assert.Equal(t, "class Main {}", v)
}

func TestFileStore_ConcurrentWriters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	ctx := context.Background()

	stores := make([]*FileStore, 4)
	for i := range stores {
		s, err := NewFileStore(path)
		require.NoError(t, err)
		defer s.Close()
		stores[i] = s
	}

	var wg sync.WaitGroup
	for i, s := range stores {
		for j := 0; j < 10; j++ {
			wg.Add(1)
			go func(s *FileStore, key string) {
				defer wg.Done()
				assert.NoError(t, s.Set(ctx, key, key))
			}(s, fmt.Sprintf("code_%d_%d_JAVA", i, j))
		}
	}
	wg.Wait()

	for i := range stores {
		for j := 0; j < 10; j++ {
			key := fmt.Sprintf("code_%d_%d_JAVA", i, j)
			v, err := stores[0].Get(ctx, key)
			require.NoError(t, err, key)
			assert.Equal(t, key, v)
		}
	}
}

func TestFileStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := NewFileStore(path)
	assert.Error(t, err)
}

func TestOpen(t *testing.T) {
	cfg := config.Default()

	cfg.Storage.Backend = config.BackendMemory
	s, err := Open(context.Background(), cfg)
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	cfg.Storage.Backend = config.BackendFile
	cfg.Storage.Path = filepath.Join(t.TempDir(), "state.json")
	s, err = Open(context.Background(), cfg)
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, s)

	cfg.Storage.Backend = "etcd"
	_, err = Open(context.Background(), cfg)
	assert.Error(t, err)
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set, skipping")
	}

	ctx := context.Background()
	s, err := NewRedisStore(ctx, RedisConfig{Address: addr, Prefix: "contest-client-test:"})
	require.NoError(t, err)
	defer s.Close()

	testStore(t, s)
}

func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_DSN")
	if dsn == "" {
		t.Skip("TEST_DATABASE_DSN not set, skipping")
	}

	ctx := context.Background()
	s, err := NewPostgresStore(ctx, PostgresConfig{DSN: dsn})
	require.NoError(t, err)
	defer s.Close()

	testStore(t, s)

	// Migrations are idempotent
	require.NoError(t, RunMigrations(ctx, s.pool))
}
