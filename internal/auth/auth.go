// Package auth implements account registration and login with bcrypt
// password hashing and HS256 bearer tokens.
package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/ngenesis/ngenesis/internal/store"
)

// tokenTTL is the bearer token lifetime
const tokenTTL = 7 * 24 * time.Hour

// Service issues and verifies tokens against the user store
type Service struct {
	store  *store.Store
	secret []byte
	now    func() time.Time
}

// New creates an auth service signing with the given secret
func New(s *store.Store, secret string) *Service {
	return &Service{store: s, secret: []byte(secret), now: time.Now}
}

// Register creates an account and returns the user with a fresh token
func (a *Service) Register(ctx context.Context, email, password, name string) (*store.User, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, "", fmt.Errorf("email and password are required")
	}
	if len(password) < 6 {
		return nil, "", fmt.Errorf("password must be at least 6 characters")
	}

	existing, err := a.store.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, "", err
	}
	if existing != nil {
		return nil, "", fmt.Errorf("email already registered")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", err
	}

	user, err := a.store.CreateUser(ctx, email, string(hash), name)
	if err != nil {
		return nil, "", err
	}

	token, err := a.issue(user.ID, user.Email)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// Login verifies credentials and returns the user with a fresh token.
// Unknown email and wrong password return the same error.
func (a *Service) Login(ctx context.Context, email, password string) (*store.User, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := a.store.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, "", err
	}
	if user == nil {
		return nil, "", fmt.Errorf("invalid email or password")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, "", fmt.Errorf("invalid email or password")
	}

	if err := a.store.TouchLastLogin(ctx, user.ID); err != nil {
		return nil, "", err
	}

	token, err := a.issue(user.ID, user.Email)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// Verify validates a bearer token and returns the account it names
func (a *Service) Verify(ctx context.Context, token string) (*store.User, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return a.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("invalid token claims")
	}
	sub, ok := claims["sub"].(float64)
	if !ok {
		return nil, fmt.Errorf("invalid token subject")
	}

	user, err := a.store.GetUserByID(ctx, int64(sub))
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("account no longer exists")
	}
	return user, nil
}

func (a *Service) issue(userID int64, email string) (string, error) {
	now := a.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   userID,
		"email": email,
		"iat":   now.Unix(),
		"exp":   now.Add(tokenTTL).Unix(),
	})
	return token.SignedString(a.secret)
}
