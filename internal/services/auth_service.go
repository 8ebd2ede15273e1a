package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/BradenHooton/gatekeeper/internal/attempts"
	"github.com/BradenHooton/gatekeeper/internal/auth"
	"github.com/BradenHooton/gatekeeper/internal/metrics"
	"github.com/BradenHooton/gatekeeper/internal/models"
	pkgauth "github.com/BradenHooton/gatekeeper/pkg/auth"
	pkglogger "github.com/BradenHooton/gatekeeper/pkg/logger"
)

// CredentialRepository resolves an email to its stored credential record.
// It returns models.ErrNotFound when no user has that email.
type CredentialRepository interface {
	GetByEmail(ctx context.Context, email string) (*models.User, error)
}

// AttemptTracker throttles failed logins per identity
type AttemptTracker interface {
	Reserve(identity string) (*attempts.Reservation, attempts.Decision)
	Count(identity string) int
}

// TokenIssuer mints session tokens
type TokenIssuer interface {
	Mint(email, userID string) (string, error)
}

// AuthService verifies login credentials
type AuthService struct {
	repo            CredentialRepository
	hasher          pkgauth.Hasher
	tracker         AttemptTracker
	tokens          TokenIssuer
	placeholderHash string
	timing          *auth.TimingDelay
	logger          *slog.Logger
	auditLogger     *pkglogger.AuditLogger
	metrics         *metrics.LoginMetrics
}

// NewAuthService creates a new AuthService. placeholderHash must be a valid
// hash for hasher; it stands in for the stored hash of unknown emails.
func NewAuthService(repo CredentialRepository, hasher pkgauth.Hasher, tracker AttemptTracker, tokens TokenIssuer, placeholderHash string, logger *slog.Logger) *AuthService {
	return &AuthService{
		repo:            repo,
		hasher:          hasher,
		tracker:         tracker,
		tokens:          tokens,
		placeholderHash: placeholderHash,
		logger:          logger,
	}
}

// SetTimingDelay pads rejected logins up to the delay's floor
func (s *AuthService) SetTimingDelay(td *auth.TimingDelay) {
	s.timing = td
}

// SetAuditLogger enables audit records for every login attempt
func (s *AuthService) SetAuditLogger(al *pkglogger.AuditLogger) {
	s.auditLogger = al
}

// SetMetrics enables login metrics
func (s *AuthService) SetMetrics(m *metrics.LoginMetrics) {
	s.metrics = m
}

// LoginResult is returned on successful authentication
type LoginResult struct {
	Email  string `json:"email"`
	Name   string `json:"name"`
	UserID string `json:"user_id"`
	Token  string `json:"token"`
}

// Login authenticates email and password.
//
// It returns models.ErrRateLimitExceeded once the email has used up its
// failed attempts, models.ErrInvalidCredentials for an unknown email or a
// wrong password, an error wrapping models.ErrInternalServer when the user
// store or token signing fails, and the context's error when ctx ends before
// an outcome is known. Cancelled and infrastructure-failed attempts are not
// counted against the email.
//
// The password is hashed even when the email is unknown so that the response
// time does not reveal which emails are registered.
func (s *AuthService) Login(ctx context.Context, email, password, ipAddress string) (*LoginResult, error) {
	start := time.Now()
	event := pkglogger.LoginEvent{Email: email, IPAddress: ipAddress}

	// Blocked identities are rejected before any lookup or hashing
	reservation, decision := s.tracker.Reserve(email)
	if decision == attempts.Blocked {
		s.logger.Info("login rejected: attempt limit reached")
		event.Failures = s.tracker.Count(email)
		s.reject(ctx, start, models.LoginRateLimited, event)
		return nil, models.ErrRateLimitExceeded
	}

	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		reservation.Cancel()
		if ctxErr := ctx.Err(); ctxErr != nil {
			s.logger.Info("login cancelled during user lookup", slog.Any("error", ctxErr))
			s.finish(ctx, start, models.LoginCancelled, event)
			return nil, ctxErr
		}
		s.logger.Error("failed to get user by email", slog.Any("error", err))
		s.finish(ctx, start, models.LoginInfrastructure, event)
		return nil, fmt.Errorf("%w: user lookup: %v", models.ErrInternalServer, err)
	}
	found := err == nil && user != nil

	storedHash := s.placeholderHash
	if found {
		storedHash = user.PasswordHash
	}

	matched, err := s.verify(ctx, password, storedHash)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			reservation.Cancel()
			s.logger.Info("login cancelled during password verification", slog.Any("error", err))
			s.finish(ctx, start, models.LoginCancelled, event)
			return nil, err
		}
		// An unusable stored hash is a failed verification, never a distinct error
		s.logger.Warn("password verification error", slog.Bool("user_found", found), slog.Any("error", err))
		matched = false
	}

	if !found || !matched {
		event.Failures = reservation.Fail()
		s.logger.Info("login failed: invalid credentials", slog.Int("failures", event.Failures))
		s.reject(ctx, start, models.LoginInvalidCredentials, event)
		return nil, models.ErrInvalidCredentials
	}

	reservation.Succeed()
	event.UserID = user.ID

	token, err := s.tokens.Mint(user.Email, user.ID)
	if err != nil {
		s.logger.Error("failed to mint session token", slog.String("user_id", user.ID), slog.Any("error", err))
		s.finish(ctx, start, models.LoginInfrastructure, event)
		return nil, fmt.Errorf("%w: mint token: %v", models.ErrInternalServer, err)
	}

	if s.timing != nil {
		_ = s.timing.WaitFrom(ctx, start, true)
	}

	s.logger.Info("user logged in", slog.String("user_id", user.ID))
	s.finish(ctx, start, models.LoginSuccess, event)

	return &LoginResult{
		Email:  user.Email,
		Name:   user.Name,
		UserID: user.ID,
		Token:  token,
	}, nil
}

// verify runs the hasher without tying the caller to it past ctx's end.
// The hash keeps running in the background if ctx ends first; its result is discarded.
func (s *AuthService) verify(ctx context.Context, password, storedHash string) (bool, error) {
	type result struct {
		ok  bool
		err error
	}

	done := make(chan result, 1)
	go func() {
		ok, err := s.hasher.Verify(password, storedHash)
		done <- result{ok: ok, err: err}
	}()

	select {
	case r := <-done:
		return r.ok, r.err
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// reject pads the response to the timing floor, then records the outcome
func (s *AuthService) reject(ctx context.Context, start time.Time, outcome models.LoginOutcome, event pkglogger.LoginEvent) {
	if s.timing != nil {
		_ = s.timing.WaitFrom(ctx, start, false)
	}
	s.finish(ctx, start, outcome, event)
}

func (s *AuthService) finish(ctx context.Context, start time.Time, outcome models.LoginOutcome, event pkglogger.LoginEvent) {
	elapsed := time.Since(start)
	event.Outcome = string(outcome)
	event.Duration = elapsed

	s.auditLogger.LogLoginAttempt(ctx, event)
	s.metrics.Observe(string(outcome), elapsed)
}
