package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/BradenHooton/gatekeeper/internal/models"
	"github.com/BradenHooton/gatekeeper/pkg/auth"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// UserRepository defines the interface for user data access
type UserRepository interface {
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Count(ctx context.Context, filter models.UserFilter) (int, error)
	ListPage(ctx context.Context, filter models.UserFilter, sort models.UserSort, offset, limit int) ([]*models.User, error)
	Create(ctx context.Context, user *models.User) (*models.User, error)
}

// UserService handles user business logic
type UserService struct {
	repo   UserRepository
	hasher auth.Hasher
	logger *slog.Logger
}

// NewUserService creates a new UserService
func NewUserService(repo UserRepository, hasher auth.Hasher, logger *slog.Logger) *UserService {
	return &UserService{
		repo:   repo,
		hasher: hasher,
		logger: logger,
	}
}

// ListUsersParams carries the raw listing query
type ListUsersParams struct {
	PageNumber int
	PageSize   int
	Sort       string // "field:asc" or "field:desc"
	Search     string // "field:term"
}

// UserSummary is the public view of a user
type UserSummary struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// UserPage is one page of users plus pagination metadata
type UserPage struct {
	PageNumber      int           `json:"page_number"`
	PageSize        int           `json:"page_size"`
	Count           int           `json:"count"`
	TotalPages      int           `json:"total_pages"`
	HasPreviousPage bool          `json:"has_previous_page"`
	HasNextPage     bool          `json:"has_next_page"`
	Data            []UserSummary `json:"data"`
}

// ParseUserSort parses "field:order". Unknown fields fall back to email ascending.
func ParseUserSort(raw string) models.UserSort {
	field, order, _ := strings.Cut(raw, ":")
	field = strings.ToLower(strings.TrimSpace(field))
	if !models.IsUserListField(field) {
		return models.UserSort{Field: models.UserFieldEmail}
	}
	return models.UserSort{
		Field: field,
		Desc:  strings.EqualFold(strings.TrimSpace(order), "desc"),
	}
}

// ParseUserFilter parses "field:term". Unknown fields and empty terms match everything.
func ParseUserFilter(raw string) models.UserFilter {
	field, term, ok := strings.Cut(raw, ":")
	field = strings.ToLower(strings.TrimSpace(field))
	term = strings.TrimSpace(term)
	if !ok || term == "" || !models.IsUserListField(field) {
		return models.UserFilter{}
	}
	return models.UserFilter{Field: field, Term: term}
}

// ListUsers returns one page of users matching params
func (s *UserService) ListUsers(ctx context.Context, params ListUsersParams) (*UserPage, error) {
	if params.PageNumber < 1 {
		params.PageNumber = 1
	}
	if params.PageSize < 1 {
		params.PageSize = DefaultPageSize
	}
	if params.PageSize > MaxPageSize {
		params.PageSize = MaxPageSize
	}

	filter := ParseUserFilter(params.Search)
	sort := ParseUserSort(params.Sort)

	total, err := s.repo.Count(ctx, filter)
	if err != nil {
		s.logger.Error("failed to count users", slog.Any("error", err))
		return nil, fmt.Errorf("%w: count users: %v", models.ErrInternalServer, err)
	}

	totalPages := (total + params.PageSize - 1) / params.PageSize

	page := &UserPage{
		PageNumber:      params.PageNumber,
		PageSize:        params.PageSize,
		TotalPages:      totalPages,
		HasPreviousPage: params.PageNumber > 1,
		HasNextPage:     params.PageNumber < totalPages,
		Data:            []UserSummary{},
	}

	// Pages past the end are empty; skipping the query also keeps the offset from overflowing
	if params.PageNumber > 1 && params.PageNumber > totalPages {
		return page, nil
	}

	offset := (params.PageNumber - 1) * params.PageSize
	users, err := s.repo.ListPage(ctx, filter, sort, offset, params.PageSize)
	if err != nil {
		s.logger.Error("failed to list users",
			slog.Int("offset", offset),
			slog.Int("limit", params.PageSize),
			slog.Any("error", err))
		return nil, fmt.Errorf("%w: list users: %v", models.ErrInternalServer, err)
	}

	page.Count = len(users)
	page.Data = make([]UserSummary, 0, len(users))
	for _, u := range users {
		page.Data = append(page.Data, UserSummary{ID: u.ID, Name: u.Name, Email: u.Email})
	}

	return page, nil
}

// EnsureUser creates the user unless the email is already registered.
// It reports whether a new user was created.
func (s *UserService) EnsureUser(ctx context.Context, email, name, password string) (bool, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	_, err := s.repo.GetByEmail(ctx, email)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return false, fmt.Errorf("%w: lookup user: %v", models.ErrInternalServer, err)
	}

	if err := auth.ValidatePassword(password); err != nil {
		return false, fmt.Errorf("invalid password: %w", err)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return false, fmt.Errorf("%w: hash password: %v", models.ErrInternalServer, err)
	}

	created, err := s.repo.Create(ctx, &models.User{
		Email:        email,
		Name:         name,
		PasswordHash: hash,
	})
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			return false, nil
		}
		return false, fmt.Errorf("%w: create user: %v", models.ErrInternalServer, err)
	}

	s.logger.Info("user created", slog.String("user_id", created.ID))
	return true, nil
}
