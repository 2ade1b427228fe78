// Package auth verifies credentials and issues and resolves session tokens.
package auth

import (
	"context"
	"crypto/subtle"
	"time"

	"github.com/go-faster/errors"
	"github.com/golang-jwt/jwt/v5"

	"github.com/xenking/quickcart/internal/model"
)

// Sentinel errors for authentication and authorization.
var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("admin required")
)

// Reasons reported with ErrUnauthorized.
const (
	ReasonMissingToken   = "missing token"
	ReasonTokenExpired   = "token expired"
	ReasonInvalidToken   = "invalid token"
	ReasonInvalidPayload = "invalid token payload"
	ReasonUnknownUser    = "invalid token user"
)

// UnauthorizedError describes why a token was rejected. It matches
// ErrUnauthorized with errors.Is.
type UnauthorizedError struct {
	Reason string
}

func (e *UnauthorizedError) Error() string {
	return "unauthorized: " + e.Reason
}

// Is reports whether target is ErrUnauthorized.
func (e *UnauthorizedError) Is(target error) bool {
	return target == ErrUnauthorized
}

// Repository provides read access to the document.
type Repository interface {
	View(ctx context.Context, fn func(doc *model.Document) error) error
}

// Config holds token settings.
type Config struct {
	// Secret signs tokens with HS256. Required.
	Secret []byte
	// TokenTTL is the lifetime of issued tokens.
	TokenTTL time.Duration
}

// Service authenticates users against the document.
type Service struct {
	docs   Repository
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewService creates an auth Service.
func NewService(cfg Config, docs Repository) (*Service, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("token secret is required")
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 24 * time.Hour
	}
	return &Service{
		docs:   docs,
		secret: cfg.Secret,
		ttl:    cfg.TokenTTL,
		now:    time.Now,
	}, nil
}

// Authenticate returns the user with the given email if password matches.
// Unknown emails and wrong passwords are indistinguishable to the caller.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*model.User, error) {
	var found *model.User
	err := s.docs.View(ctx, func(doc *model.Document) error {
		u := doc.UserByEmail(email)
		if u == nil || subtle.ConstantTimeCompare([]byte(u.Password), []byte(password)) != 1 {
			return ErrInvalidCredentials
		}
		found = u
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "authenticate")
	}
	return found, nil
}

// IssueToken returns a signed token whose subject is the username.
func (s *Service) IssueToken(u *model.User) (string, error) {
	now := s.now()
	claims := jwt.RegisteredClaims{
		Subject:   u.Username,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", errors.Wrap(err, "sign token")
	}
	return token, nil
}

// Login authenticates and issues a token in one step.
func (s *Service) Login(ctx context.Context, email, password string) (string, *model.User, error) {
	u, err := s.Authenticate(ctx, email, password)
	if err != nil {
		return "", nil, err
	}
	token, err := s.IssueToken(u)
	if err != nil {
		return "", nil, err
	}
	return token, u, nil
}

// ResolveUser verifies token and loads the user it names.
func (s *Service) ResolveUser(ctx context.Context, token string) (*model.User, error) {
	if token == "" {
		return nil, &UnauthorizedError{Reason: ReasonMissingToken}
	}

	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &claims,
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, &UnauthorizedError{Reason: ReasonTokenExpired}
	case err != nil:
		return nil, &UnauthorizedError{Reason: ReasonInvalidToken}
	case claims.Subject == "":
		return nil, &UnauthorizedError{Reason: ReasonInvalidPayload}
	}

	var found *model.User
	err = s.docs.View(ctx, func(doc *model.Document) error {
		u, ok := doc.Users[claims.Subject]
		if !ok || u == nil {
			return &UnauthorizedError{Reason: ReasonUnknownUser}
		}
		found = u
		return nil
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

// RequireAdmin resolves token and rejects non-admin users with ErrForbidden.
func (s *Service) RequireAdmin(ctx context.Context, token string) (*model.User, error) {
	u, err := s.ResolveUser(ctx, token)
	if err != nil {
		return nil, err
	}
	if !u.IsAdmin {
		return nil, ErrForbidden
	}
	return u, nil
}
