package repositories

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/BradenHooton/gatekeeper/internal/database"
	"github.com/BradenHooton/gatekeeper/internal/models"
	squirrel "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/lib/pq"
)

// Querier is the subset of pgxpool.Pool the repositories use
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var userColumns = []string{"id", "email", "password_hash", "name", "created_at", "updated_at"}

type UserRepository struct {
	db      Querier
	builder squirrel.StatementBuilderType
}

func NewUserRepository(db Querier) *UserRepository {
	return &UserRepository{
		db:      db,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// rowScanner interface for scanning user rows (supports both single row and multiple rows)
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUserRow(scanner rowScanner) (*models.User, error) {
	var user models.User

	err := scanner.Scan(
		&user.ID, &user.Email, &user.PasswordHash, &user.Name,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &user, nil
}

func scanUserRows(rows pgx.Rows) ([]*models.User, error) {
	defer rows.Close()

	users := make([]*models.User, 0)

	for rows.Next() {
		user, err := scanUserRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return users, nil
}

// GetByEmail returns the user with the given email, compared case-insensitively.
// It returns models.ErrNotFound when there is none.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `
		SELECT id, email, password_hash, name, created_at, updated_at
		FROM users WHERE LOWER(email) = LOWER($1)
	`

	user, err := scanUserRow(r.db.QueryRow(ctx, query, email))
	if err != nil {
		return nil, err
	}

	return user, nil
}

// Count returns how many users match filter
func (r *UserRepository) Count(ctx context.Context, filter models.UserFilter) (int, error) {
	query, args, err := applyUserFilter(r.builder.Select("COUNT(*)").From("users"), filter).ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build count query: %w", err)
	}

	var count int
	if err := r.db.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count users: %w", database.MapPostgresError(err))
	}

	return count, nil
}

// ListPage returns at most limit users matching filter, ordered by sort, skipping offset
func (r *UserRepository) ListPage(ctx context.Context, filter models.UserFilter, sort models.UserSort, offset, limit int) ([]*models.User, error) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		return []*models.User{}, nil
	}

	sortField := sort.Field
	if !models.IsUserListField(sortField) {
		sortField = models.UserFieldEmail
	}
	direction := "ASC"
	if sort.Desc {
		direction = "DESC"
	}

	builder := applyUserFilter(r.builder.Select(userColumns...).From("users"), filter).
		OrderBy(pq.QuoteIdentifier(sortField)+" "+direction, "id ASC").
		Limit(uint64(limit)).
		Offset(uint64(offset))

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build list query: %w", err)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", database.MapPostgresError(err))
	}

	return scanUserRows(rows)
}

// Create inserts user with a fresh ID and timestamps.
// It returns models.ErrConflict when the email is taken.
func (r *UserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	user.ID = uuid.New().String()

	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	query := `
		INSERT INTO users (id, email, password_hash, name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, email, password_hash, name, created_at, updated_at
	`

	createdUser, err := scanUserRow(r.db.QueryRow(ctx, query,
		user.ID, user.Email, user.PasswordHash, user.Name,
		user.CreatedAt, user.UpdatedAt,
	))
	if err != nil {
		return nil, err
	}

	return createdUser, nil
}

// applyUserFilter adds a case-insensitive substring match on a whitelisted column
func applyUserFilter(builder squirrel.SelectBuilder, filter models.UserFilter) squirrel.SelectBuilder {
	if filter.Term == "" || !models.IsUserListField(filter.Field) {
		return builder
	}
	return builder.Where(squirrel.ILike{
		pq.QuoteIdentifier(filter.Field): "%" + escapeLike(filter.Term) + "%",
	})
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike makes LIKE wildcards in term match literally
func escapeLike(term string) string {
	return likeEscaper.Replace(term)
}
