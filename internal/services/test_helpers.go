package services

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/BradenHooton/gatekeeper/internal/models"
)

// MockUserRepository implements UserRepository for testing
type MockUserRepository struct {
	GetByEmailFunc func(ctx context.Context, email string) (*models.User, error)
	CountFunc      func(ctx context.Context, filter models.UserFilter) (int, error)
	ListPageFunc   func(ctx context.Context, filter models.UserFilter, sort models.UserSort, offset, limit int) ([]*models.User, error)
	CreateFunc     func(ctx context.Context, user *models.User) (*models.User, error)

	lookups atomic.Int64
}

// Lookups returns how many times GetByEmail was called
func (m *MockUserRepository) Lookups() int64 {
	return m.lookups.Load()
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	m.lookups.Add(1)
	if m.GetByEmailFunc != nil {
		return m.GetByEmailFunc(ctx, email)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) Count(ctx context.Context, filter models.UserFilter) (int, error) {
	if m.CountFunc != nil {
		return m.CountFunc(ctx, filter)
	}
	return 0, nil
}

func (m *MockUserRepository) ListPage(ctx context.Context, filter models.UserFilter, sort models.UserSort, offset, limit int) ([]*models.User, error) {
	if m.ListPageFunc != nil {
		return m.ListPageFunc(ctx, filter, sort, offset, limit)
	}
	return []*models.User{}, nil
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, user)
	}
	return nil, models.ErrInternalServer
}

// MockHasher implements auth.Hasher for testing. Hashes are "hashed:" + password.
type MockHasher struct {
	HashFunc   func(password string) (string, error)
	VerifyFunc func(password, encodedHash string) (bool, error)

	verifies atomic.Int64
}

// Verifies returns how many times Verify was called
func (m *MockHasher) Verifies() int64 {
	return m.verifies.Load()
}

func (m *MockHasher) Hash(password string) (string, error) {
	if m.HashFunc != nil {
		return m.HashFunc(password)
	}
	return "hashed:" + password, nil
}

func (m *MockHasher) Verify(password, encodedHash string) (bool, error) {
	m.verifies.Add(1)
	if m.VerifyFunc != nil {
		return m.VerifyFunc(password, encodedHash)
	}
	return encodedHash == "hashed:"+password, nil
}

// MockTokenIssuer implements TokenIssuer for testing
type MockTokenIssuer struct {
	MintFunc func(email, userID string) (string, error)
}

func (m *MockTokenIssuer) Mint(email, userID string) (string, error) {
	if m.MintFunc != nil {
		return m.MintFunc(email, userID)
	}
	return "token-for-" + userID, nil
}

// NewTestUser creates a user whose password hash matches MockHasher for password
func NewTestUser(id, email, name, password string) *models.User {
	now := time.Now()
	return &models.User{
		ID:           id,
		Email:        email,
		Name:         name,
		PasswordHash: "hashed:" + password,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}
