// Package auth issues and verifies access tokens and resolves the caller of a request.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"group-order/internal/apperror"
	"group-order/internal/models"
	"group-order/internal/repository"
)

var errInvalidCredentials = apperror.Unauthorized("invalid phone or password")

// Claims is the payload of an access token
type Claims struct {
	Role string `json:"role"`
	Name string `json:"name"`
	jwt.RegisteredClaims
}

// Token is the result of a successful login
type Token struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	ExpiresAt   time.Time    `json:"expires_at"`
	User        *models.User `json:"user"`
}

// Registration is a self-service sign-up
type Registration struct {
	Name     string
	Phone    string
	Email    *string
	Password string
}

// Registrar creates the account behind a registration
type Registrar interface {
	Register(ctx context.Context, reg Registration) (*models.User, error)
}

// UserReader is the lookup Login needs
type UserReader interface {
	GetUserByPhone(ctx context.Context, phone string) (*models.User, error)
}

type Service struct {
	users  UserReader
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewService(users UserReader, secret string, ttl time.Duration) *Service {
	return &Service{
		users:  users,
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// HashPassword returns the bcrypt hash of a password
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// Login verifies a phone and password and issues an access token
func (s *Service) Login(ctx context.Context, phone, password string) (*Token, error) {
	user, err := s.users.GetUserByPhone(ctx, phone)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, errInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	if user.PasswordHash == "" || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, errInvalidCredentials
	}

	return s.TokenFor(user)
}

// TokenFor issues a bearer token response for an already authenticated user
func (s *Service) TokenFor(user *models.User) (*Token, error) {
	token, expiresAt, err := s.Issue(user)
	if err != nil {
		return nil, err
	}
	return &Token{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresAt:   expiresAt,
		User:        user,
	}, nil
}

// Issue signs an HS256 access token for the user
func (s *Service) Issue(user *models.User) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(s.ttl)

	claims := Claims{
		Role: string(user.Role),
		Name: user.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Parse verifies a token and returns the caller it identifies
func (s *Service) Parse(tokenString string) (models.Caller, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !token.Valid {
		return models.Caller{}, apperror.Unauthorized("invalid or expired token")
	}

	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return models.Caller{}, apperror.Unauthorized("invalid token subject")
	}
	role, err := models.ParseRole(claims.Role)
	if err != nil {
		return models.Caller{}, apperror.Unauthorized("invalid token role")
	}

	return models.Caller{ID: id, Role: role, DisplayName: claims.Name}, nil
}
