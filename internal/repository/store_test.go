package repository

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mmeshcher/shawty/internal/models"
	"github.com/mmeshcher/shawty/internal/testutils"
)

var baseTime = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func newLink(slug string, createdAt time.Time) *models.Link {
	return &models.Link{
		ID:        uuid.NewString(),
		Slug:      slug,
		URL:       "https://example.com/" + slug,
		Active:    true,
		CreatedAt: createdAt,
	}
}

// testLinkStore runs the behaviour every backend must share.
func testLinkStore(t *testing.T, newStore func(t *testing.T) LinkStore) {
	ctx := context.Background()

	t.Run("insert and get", func(t *testing.T) {
		store := newStore(t)

		link := newLink("abc1234", baseTime)
		require.NoError(t, store.Insert(ctx, link))

		got, err := store.Get(ctx, "abc1234")
		require.NoError(t, err)
		assert.Equal(t, link.ID, got.ID)
		assert.Equal(t, link.URL, got.URL)
		assert.Equal(t, int64(0), got.Clicks)
		assert.True(t, got.Active)
		assert.True(t, link.CreatedAt.Equal(got.CreatedAt))
		assert.Nil(t, got.ExpiresAt)

		exists, err := store.Exists(ctx, "abc1234")
		require.NoError(t, err)
		assert.True(t, exists)

		exists, err = store.Exists(ctx, "missing")
		require.NoError(t, err)
		assert.False(t, exists)

		_, err = store.Get(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("duplicate slug rejected", func(t *testing.T) {
		store := newStore(t)

		require.NoError(t, store.Insert(ctx, newLink("dup", baseTime)))

		other := newLink("dup", baseTime.Add(time.Second))
		other.URL = "https://other.example.com"
		assert.ErrorIs(t, store.Insert(ctx, other), ErrDuplicateSlug)

		got, err := store.Get(ctx, "dup")
		require.NoError(t, err)
		assert.Equal(t, "https://example.com/dup", got.URL)
	})

	t.Run("concurrent inserts claim a slug once", func(t *testing.T) {
		store := newStore(t)

		const writers = 20
		var (
			wg        sync.WaitGroup
			succeeded atomic.Int32
			dupes     atomic.Int32
		)

		for i := 0; i < writers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				link := newLink("race", baseTime)
				link.URL = fmt.Sprintf("https://example.com/%d", i)

				err := store.Insert(ctx, link)
				switch {
				case err == nil:
					succeeded.Add(1)
				case assert.ErrorIs(t, err, ErrDuplicateSlug):
					dupes.Add(1)
				}
			}(i)
		}
		wg.Wait()

		assert.Equal(t, int32(1), succeeded.Load())
		assert.Equal(t, int32(writers-1), dupes.Load())
	})

	t.Run("find and increment", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.Insert(ctx, newLink("hit", baseTime)))

		got, err := store.FindAndIncrementClicks(ctx, "hit", baseTime)
		require.NoError(t, err)
		assert.Equal(t, int64(1), got.Clicks)
		assert.Equal(t, "https://example.com/hit", got.URL)

		got, err = store.FindAndIncrementClicks(ctx, "hit", baseTime)
		require.NoError(t, err)
		assert.Equal(t, int64(2), got.Clicks)

		_, err = store.FindAndIncrementClicks(ctx, "missing", baseTime)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("inactive links do not resolve", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.Insert(ctx, newLink("off", baseTime)))
		require.NoError(t, store.SetActive(ctx, "off", false))

		_, err := store.FindAndIncrementClicks(ctx, "off", baseTime)
		assert.ErrorIs(t, err, ErrNotFound)

		got, err := store.Get(ctx, "off")
		require.NoError(t, err)
		assert.False(t, got.Active)
		assert.Equal(t, int64(0), got.Clicks)

		require.NoError(t, store.SetActive(ctx, "off", true))
		got, err = store.FindAndIncrementClicks(ctx, "off", baseTime)
		require.NoError(t, err)
		assert.Equal(t, int64(1), got.Clicks)

		assert.ErrorIs(t, store.SetActive(ctx, "missing", false), ErrNotFound)
	})

	t.Run("expired links do not resolve", func(t *testing.T) {
		store := newStore(t)

		link := newLink("ttl", baseTime)
		expires := baseTime.Add(time.Hour)
		link.ExpiresAt = &expires
		require.NoError(t, store.Insert(ctx, link))

		got, err := store.FindAndIncrementClicks(ctx, "ttl", baseTime.Add(time.Minute))
		require.NoError(t, err)
		assert.Equal(t, int64(1), got.Clicks)
		require.NotNil(t, got.ExpiresAt)
		assert.True(t, expires.Equal(*got.ExpiresAt))

		_, err = store.FindAndIncrementClicks(ctx, "ttl", baseTime.Add(time.Hour))
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("concurrent increments are not lost", func(t *testing.T) {
		for _, n := range []int{2, 10, 100} {
			t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
				store := newStore(t)
				slug := fmt.Sprintf("hot%d", n)
				require.NoError(t, store.Insert(ctx, newLink(slug, baseTime)))

				var wg sync.WaitGroup
				for i := 0; i < n; i++ {
					wg.Add(1)
					go func() {
						defer wg.Done()
						_, err := store.FindAndIncrementClicks(ctx, slug, baseTime)
						assert.NoError(t, err)
					}()
				}
				wg.Wait()

				got, err := store.Get(ctx, slug)
				require.NoError(t, err)
				assert.Equal(t, int64(n), got.Clicks)
			})
		}
	})

	t.Run("list newest first", func(t *testing.T) {
		store := newStore(t)

		for i := 0; i < 25; i++ {
			slug := fmt.Sprintf("s%02d", i)
			require.NoError(t, store.Insert(ctx, newLink(slug, baseTime.Add(time.Duration(i)*time.Minute))))
		}

		page, total, err := store.List(ctx, 0, 10)
		require.NoError(t, err)
		assert.Equal(t, int64(25), total)
		require.Len(t, page, 10)
		assert.Equal(t, "s24", page[0].Slug)
		assert.Equal(t, "s15", page[9].Slug)

		page, total, err = store.List(ctx, 20, 10)
		require.NoError(t, err)
		assert.Equal(t, int64(25), total)
		require.Len(t, page, 5)
		assert.Equal(t, "s04", page[0].Slug)
		assert.Equal(t, "s00", page[4].Slug)

		page, _, err = store.List(ctx, 30, 10)
		require.NoError(t, err)
		assert.Empty(t, page)
	})

	t.Run("list ties break by slug", func(t *testing.T) {
		store := newStore(t)

		for _, slug := range []string{"tie-c", "tie-a", "tie-b"} {
			require.NoError(t, store.Insert(ctx, newLink(slug, baseTime)))
		}
		require.NoError(t, store.Insert(ctx, newLink("later", baseTime.Add(time.Millisecond))))

		page, total, err := store.List(ctx, 0, 10)
		require.NoError(t, err)
		assert.Equal(t, int64(4), total)
		require.Len(t, page, 4)

		slugs := make([]string, len(page))
		for i, link := range page {
			slugs[i] = link.Slug
		}
		assert.Equal(t, []string{"later", "tie-a", "tie-b", "tie-c"}, slugs)

		page, _, err = store.List(ctx, 2, 2)
		require.NoError(t, err)
		require.Len(t, page, 2)
		assert.Equal(t, "tie-b", page[0].Slug)
		assert.Equal(t, "tie-c", page[1].Slug)
	})

	t.Run("ping", func(t *testing.T) {
		store := newStore(t)
		assert.NoError(t, store.Ping(ctx))
	})
}

func TestMemoryRepository(t *testing.T) {
	testLinkStore(t, func(t *testing.T) LinkStore {
		store, err := NewMemoryRepository("", zap.NewNop())
		require.NoError(t, err)
		return store
	})
}

func TestMemoryRepositoryFilePersistence(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "links.json")

	store, err := NewMemoryRepository(path, zap.NewNop())
	require.NoError(t, err)

	link := newLink("keep", baseTime)
	require.NoError(t, store.Insert(ctx, link))
	_, err = store.FindAndIncrementClicks(ctx, "keep", baseTime)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	reopened, err := NewMemoryRepository(path, zap.NewNop())
	require.NoError(t, err)

	got, err := reopened.Get(ctx, "keep")
	require.NoError(t, err)
	assert.Equal(t, link.ID, got.ID)
	assert.Equal(t, link.URL, got.URL)
	assert.Equal(t, int64(1), got.Clicks)
	assert.True(t, baseTime.Equal(got.CreatedAt))

	assert.ErrorIs(t, reopened.Insert(ctx, newLink("keep", baseTime)), ErrDuplicateSlug)
}

func TestSQLiteRepository(t *testing.T) {
	testLinkStore(t, func(t *testing.T) LinkStore {
		store, err := NewSQLiteRepository(context.Background(), ":memory:", zap.NewNop())
		require.NoError(t, err)
		t.Cleanup(func() { store.Close() })
		return store
	})
}

func TestSQLiteRepositoryFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "links.db")

	store, err := NewSQLiteRepository(ctx, path, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, store.Insert(ctx, newLink("disk", baseTime)))
	require.NoError(t, store.Close())

	reopened, err := NewSQLiteRepository(ctx, path, zap.NewNop())
	require.NoError(t, err)
	defer reopened.Close()

	exists, err := reopened.Exists(ctx, "disk")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestPostgresRepository(t *testing.T) {
	dsn := testutils.PostgresDSN(t)

	testLinkStore(t, func(t *testing.T) LinkStore {
		store, err := NewPostgresRepository(context.Background(), dsn, zap.NewNop())
		require.NoError(t, err)

		_, err = store.pool.Exec(context.Background(), "TRUNCATE links")
		require.NoError(t, err)

		t.Cleanup(func() { store.Close() })
		return store
	})
}

func TestRedisRepository(t *testing.T) {
	addr := testutils.RedisAddr(t)

	testLinkStore(t, func(t *testing.T) LinkStore {
		store, err := NewRedisRepository(context.Background(), RedisOptions{Addr: addr}, zap.NewNop())
		require.NoError(t, err)

		require.NoError(t, store.client.FlushDB(context.Background()).Err())

		t.Cleanup(func() { store.Close() })
		return store
	})
}

func TestOptionsBackend(t *testing.T) {
	tests := []struct {
		name string
		opts Options
		want string
	}{
		{name: "memory by default", opts: Options{}, want: "memory"},
		{name: "memory with file", opts: Options{FileStoragePath: "/tmp/x.json"}, want: "memory"},
		{name: "sqlite", opts: Options{SQLiteURL: ":memory:", FileStoragePath: "/tmp/x.json"}, want: "sqlite"},
		{name: "redis over sqlite", opts: Options{Redis: RedisOptions{Addr: "localhost:6379"}, SQLiteURL: ":memory:"}, want: "redis"},
		{name: "postgres wins", opts: Options{DatabaseDSN: "postgres://x", Redis: RedisOptions{Addr: "localhost:6379"}}, want: "postgres"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.opts.Backend())
		})
	}
}

func TestOpenMemory(t *testing.T) {
	store, err := Open(context.Background(), Options{}, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &MemoryRepository{}, store)
	assert.NoError(t, store.Close())
}
