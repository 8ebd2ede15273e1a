package repositories_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/BradenHooton/gatekeeper/internal/models"
	"github.com/BradenHooton/gatekeeper/internal/repositories"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var columns = []string{"id", "email", "password_hash", "name", "created_at", "updated_at"}

func TestGetByEmail(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	r := repositories.NewUserRepository(mock)
	ctx := context.Background()
	now := time.Now()

	t.Run("success", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, email, password_hash, name").
			WithArgs("john@example.com").
			WillReturnRows(pgxmock.NewRows(columns).
				AddRow("user-123", "john@example.com", "$2a$12$hash", "John", now, now))

		user, err := r.GetByEmail(ctx, "john@example.com")

		require.NoError(t, err)
		assert.Equal(t, "user-123", user.ID)
		assert.Equal(t, "$2a$12$hash", user.PasswordHash)
		assert.Equal(t, "John", user.Name)
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, email, password_hash, name").
			WithArgs("ghost@example.com").
			WillReturnError(pgx.ErrNoRows)

		user, err := r.GetByEmail(ctx, "ghost@example.com")

		assert.ErrorIs(t, err, models.ErrNotFound)
		assert.Nil(t, user)
	})

	t.Run("database error", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, email, password_hash, name").
			WithArgs("john@example.com").
			WillReturnError(errors.New("connection refused"))

		_, err := r.GetByEmail(ctx, "john@example.com")

		assert.Error(t, err)
		assert.NotErrorIs(t, err, models.ErrNotFound)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCount(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	r := repositories.NewUserRepository(mock)
	ctx := context.Background()

	t.Run("no filter", func(t *testing.T) {
		mock.ExpectQuery(`^SELECT COUNT\(\*\) FROM users$`).
			WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(42))

		count, err := r.Count(ctx, models.UserFilter{})

		require.NoError(t, err)
		assert.Equal(t, 42, count)
	})

	t.Run("name filter escapes wildcards", func(t *testing.T) {
		mock.ExpectQuery(`SELECT COUNT\(\*\) FROM users WHERE "name" ILIKE \$1`).
			WithArgs(`%jo\_hn\%%`).
			WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(3))

		count, err := r.Count(ctx, models.UserFilter{Field: "name", Term: "jo_hn%"})

		require.NoError(t, err)
		assert.Equal(t, 3, count)
	})

	t.Run("unknown field matches all", func(t *testing.T) {
		mock.ExpectQuery(`^SELECT COUNT\(\*\) FROM users$`).
			WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(42))

		count, err := r.Count(ctx, models.UserFilter{Field: "password_hash", Term: "x"})

		require.NoError(t, err)
		assert.Equal(t, 42, count)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListPage(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	r := repositories.NewUserRepository(mock)
	ctx := context.Background()
	now := time.Now()

	t.Run("filtered and sorted", func(t *testing.T) {
		mock.ExpectQuery(`FROM users WHERE "name" ILIKE \$1 ORDER BY "name" DESC, id ASC LIMIT 10 OFFSET 10`).
			WithArgs("%john%").
			WillReturnRows(pgxmock.NewRows(columns).
				AddRow("u2", "john2@example.com", "h", "Johnny", now, now).
				AddRow("u1", "john1@example.com", "h", "John", now, now))

		users, err := r.ListPage(ctx,
			models.UserFilter{Field: "name", Term: "john"},
			models.UserSort{Field: "name", Desc: true},
			10, 10)

		require.NoError(t, err)
		require.Len(t, users, 2)
		assert.Equal(t, "u2", users[0].ID)
		assert.Equal(t, "john1@example.com", users[1].Email)
	})

	t.Run("unknown sort falls back to email", func(t *testing.T) {
		mock.ExpectQuery(`FROM users ORDER BY "email" ASC, id ASC LIMIT 5 OFFSET 0`).
			WillReturnRows(pgxmock.NewRows(columns))

		users, err := r.ListPage(ctx, models.UserFilter{}, models.UserSort{Field: "created_at; DROP TABLE users"}, 0, 5)

		require.NoError(t, err)
		assert.Empty(t, users)
	})

	t.Run("zero limit skips the query", func(t *testing.T) {
		users, err := r.ListPage(ctx, models.UserFilter{}, models.UserSort{}, 0, 0)

		require.NoError(t, err)
		assert.Empty(t, users)
	})

	t.Run("query error", func(t *testing.T) {
		mock.ExpectQuery(`FROM users ORDER BY`).
			WillReturnError(errors.New("db error"))

		_, err := r.ListPage(ctx, models.UserFilter{}, models.UserSort{Field: "email"}, 0, 5)

		assert.Error(t, err)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	r := repositories.NewUserRepository(mock)
	ctx := context.Background()
	now := time.Now()

	t.Run("success", func(t *testing.T) {
		mock.ExpectQuery("INSERT INTO users").
			WithArgs(pgxmock.AnyArg(), "admin@example.com", "hash", "Admin", pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnRows(pgxmock.NewRows(columns).
				AddRow("new-id", "admin@example.com", "hash", "Admin", now, now))

		user, err := r.Create(ctx, &models.User{Email: "admin@example.com", Name: "Admin", PasswordHash: "hash"})

		require.NoError(t, err)
		assert.Equal(t, "new-id", user.ID)
	})

	t.Run("duplicate email", func(t *testing.T) {
		mock.ExpectQuery("INSERT INTO users").
			WithArgs(pgxmock.AnyArg(), "admin@example.com", "hash", "Admin", pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnError(&pgconn.PgError{Code: "23505"})

		_, err := r.Create(ctx, &models.User{Email: "admin@example.com", Name: "Admin", PasswordHash: "hash"})

		assert.ErrorIs(t, err, models.ErrConflict)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}
