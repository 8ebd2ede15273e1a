//go:build integration

package repositories_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/BradenHooton/gatekeeper/internal/database"
	"github.com/BradenHooton/gatekeeper/internal/models"
	"github.com/BradenHooton/gatekeeper/internal/repositories"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupTestDatabase starts PostgreSQL in a container and applies the migrations
func setupTestDatabase(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:16-alpine"),
		postgres.WithDatabase("gatekeeper"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, database.NewFromPool(pool, nil).Migrate(ctx))

	return pool
}

func TestUserRepository_Postgres(t *testing.T) {
	pool := setupTestDatabase(t)
	r := repositories.NewUserRepository(pool)
	ctx := context.Background()

	for i, name := range []string{"John Smith", "Johnny Walker", "Alice Jones", "Bob_Stone"} {
		_, err := r.Create(ctx, &models.User{
			Email:        fmt.Sprintf("user%d@example.com", i),
			Name:         name,
			PasswordHash: "hash",
		})
		require.NoError(t, err)
	}

	t.Run("get by email ignores case", func(t *testing.T) {
		user, err := r.GetByEmail(ctx, "USER2@example.com")

		require.NoError(t, err)
		assert.Equal(t, "Alice Jones", user.Name)
	})

	t.Run("get by email not found", func(t *testing.T) {
		_, err := r.GetByEmail(ctx, "nobody@example.com")

		assert.ErrorIs(t, err, models.ErrNotFound)
	})

	t.Run("duplicate email conflicts", func(t *testing.T) {
		_, err := r.Create(ctx, &models.User{Email: "User0@example.com", Name: "Dup", PasswordHash: "hash"})

		assert.ErrorIs(t, err, models.ErrConflict)
	})

	t.Run("count with filter", func(t *testing.T) {
		count, err := r.Count(ctx, models.UserFilter{Field: "name", Term: "JOHN"})

		require.NoError(t, err)
		assert.Equal(t, 2, count)
	})

	t.Run("underscore matches literally", func(t *testing.T) {
		count, err := r.Count(ctx, models.UserFilter{Field: "name", Term: "b_s"})

		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})

	t.Run("list page sorted by name", func(t *testing.T) {
		users, err := r.ListPage(ctx, models.UserFilter{}, models.UserSort{Field: "name"}, 1, 2)

		require.NoError(t, err)
		require.Len(t, users, 2)
		assert.Equal(t, "Bob_Stone", users[0].Name)
	})
}
