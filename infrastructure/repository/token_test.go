package repository

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imagesaver/config"
	"imagesaver/domain/observability/mocks"
	"imagesaver/domain/token"
	"imagesaver/infrastructure/database"
)

func newTestRepository(t *testing.T) *TokenRepository {
	t.Helper()
	logger := mocks.NewNopLogger()
	metrics := mocks.NewNopMetrics()

	db, err := database.Open(context.Background(), config.DatabaseConfig{
		Driver: database.DriverSQLite,
		DSN:    filepath.Join(t.TempDir(), "tokens.db"),
	}, logger, metrics)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewTokenRepository(db, logger, metrics)
}

func TestTokenRepository_CreateAndGet(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	created, err := repo.Create(ctx, "secret-1", "gallery")
	require.NoError(t, err)
	assert.Equal(t, int64(0), created.UsageCount)

	got, err := repo.Get(ctx, "secret-1")
	require.NoError(t, err)
	assert.Equal(t, "gallery", got.ProjectName)
	assert.WithinDuration(t, created.CreatedAt, got.CreatedAt, time.Second)

	_, err = repo.Create(ctx, "secret-1", "other")
	assert.ErrorIs(t, err, token.ErrTokenExists)

	_, err = repo.Get(ctx, "missing")
	assert.ErrorIs(t, err, token.ErrTokenNotFound)
}

func TestTokenRepository_Authorize(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	_, err := repo.Create(ctx, "secret-1", "gallery")
	require.NoError(t, err)

	auth, err := repo.Authorize(ctx, "secret-1")
	require.NoError(t, err)
	assert.True(t, auth.Authorized)
	assert.Equal(t, "gallery", auth.ProjectName)

	auth, err = repo.Authorize(ctx, "unknown")
	require.NoError(t, err)
	assert.False(t, auth.Authorized)

	auth, err = repo.Authorize(ctx, "")
	require.NoError(t, err)
	assert.False(t, auth.Authorized)
}

func TestTokenRepository_RecordUsageIsAtomic(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	_, err := repo.Create(ctx, "secret-1", "gallery")
	require.NoError(t, err)

	const workers, perWorker = 8, 25
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				assert.NoError(t, repo.RecordUsage(ctx, "secret-1"))
			}
		}()
	}
	wg.Wait()

	auth, err := repo.Authorize(ctx, "secret-1")
	require.NoError(t, err)
	assert.Equal(t, int64(workers*perWorker), auth.UsageCount)

	assert.ErrorIs(t, repo.RecordUsage(ctx, "missing"), token.ErrTokenNotFound)
}

func TestTokenRepository_ListAndDelete(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	_, err := repo.Create(ctx, "a", "one")
	require.NoError(t, err)
	_, err = repo.Create(ctx, "b", "two")
	require.NoError(t, err)

	tokens, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, tokens, 2)

	require.NoError(t, repo.Delete(ctx, "a"))
	assert.ErrorIs(t, repo.Delete(ctx, "a"), token.ErrTokenNotFound)

	tokens, err = repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, tokens, 1)
	assert.Equal(t, "b", tokens[0].Token)
}

func TestTokenRepository_Provision(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	_, err := repo.Create(ctx, "existing", "gallery")
	require.NoError(t, err)
	require.NoError(t, repo.RecordUsage(ctx, "existing"))
	_, err = repo.Create(ctx, "retired", "archive")
	require.NoError(t, err)

	result, err := repo.Provision(ctx,
		[]config.TokenSeed{
			{Token: "existing", ProjectName: "renamed"},
			{Token: "fresh", ProjectName: "blog"},
		},
		[]string{"retired", "never-existed"})
	require.NoError(t, err)
	assert.Equal(t, ProvisionResult{Created: 1, Revoked: 1, Registered: 2}, result)

	existing, err := repo.Get(ctx, "existing")
	require.NoError(t, err)
	assert.Equal(t, "gallery", existing.ProjectName)
	assert.Equal(t, int64(1), existing.UsageCount)

	auth, err := repo.Authorize(ctx, "fresh")
	require.NoError(t, err)
	assert.True(t, auth.Authorized)
	assert.Equal(t, "blog", auth.ProjectName)

	_, err = repo.Get(ctx, "retired")
	assert.ErrorIs(t, err, token.ErrTokenNotFound)

	// Running again is a no-op
	result, err = repo.Provision(ctx, []config.TokenSeed{{Token: "fresh", ProjectName: "blog"}}, []string{"retired"})
	require.NoError(t, err)
	assert.Equal(t, ProvisionResult{Registered: 2}, result)
}
