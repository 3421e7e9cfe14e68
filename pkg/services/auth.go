package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fluxohq/fluxo/pkg/models"
	"github.com/fluxohq/fluxo/pkg/persistence"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const tokenIssuer = "fluxo"

// Auth handles signup, signin and bearer token verification. The signing
// secret must be provided explicitly; there is no built-in fallback.
type Auth struct {
	users    persistence.UserStore
	secret   []byte
	tokenTTL time.Duration
	logger   *slog.Logger
}

// NewAuth creates a new auth service. Returns an error when the signing
// secret is empty.
func NewAuth(users persistence.UserStore, secret string, tokenTTL time.Duration, logger *slog.Logger) (*Auth, error) {
	if secret == "" {
		return nil, errors.New("JWT signing secret is required")
	}

	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}

	return &Auth{
		users:    users,
		secret:   []byte(secret),
		tokenTTL: tokenTTL,
		logger:   logger,
	}, nil
}

// SignupRequest contains everything needed to register a user.
type SignupRequest struct {
	FirstName string
	LastName  string
	Email     string
	Password  string
}

// Signup registers a new user with a bcrypt password hash. A duplicate email
// yields ErrEmailTaken.
func (a *Auth) Signup(ctx context.Context, req SignupRequest) (*models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Email:        req.Email,
		PasswordHash: string(hash),
	}

	err = a.users.CreateUser(ctx, user)
	if err != nil {
		return nil, err
	}

	return user, nil
}

// Signin checks the credentials and issues a signed bearer token. Unknown
// email and wrong password both yield ErrInvalidCredentials.
func (a *Auth) Signin(ctx context.Context, email, password string) (string, *models.User, error) {
	user, err := a.users.UserByEmail(ctx, email)
	if err != nil {
		return "", nil, fmt.Errorf("failed to load user: %w", err)
	}

	if user == nil {
		return "", nil, ErrInvalidCredentials
	}

	err = bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password))
	if err != nil {
		return "", nil, ErrInvalidCredentials
	}

	now := time.Now().UTC()
	claims := jwt.RegisteredClaims{
		Issuer:    tokenIssuer,
		Subject:   user.ID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(a.tokenTTL)),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", nil, fmt.Errorf("failed to sign token: %w", err)
	}

	return token, user, nil
}

// CurrentUser returns the profile of an authenticated caller.
func (a *Auth) CurrentUser(ctx context.Context, userID string) (*models.User, error) {
	user, err := a.users.UserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	if user == nil {
		return nil, ErrUserNotFound
	}

	return user, nil
}

// VerifyToken validates a bearer token and returns the user id it was issued
// for. Any parse or signature failure yields ErrInvalidToken.
func (a *Auth) VerifyToken(ctx context.Context, tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		_, ok := t.Method.(*jwt.SigningMethodHMAC)
		if !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}

		return a.secret, nil
	}, jwt.WithIssuer(tokenIssuer), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return "", ErrInvalidToken
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return "", ErrInvalidToken
	}

	user, err := a.users.UserByID(ctx, claims.Subject)
	if err != nil {
		return "", fmt.Errorf("failed to load user: %w", err)
	}

	if user == nil {
		return "", ErrInvalidToken
	}

	return user.ID, nil
}
