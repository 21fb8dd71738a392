package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/agropulse/cropalert-go/internal/domain/geo"
	"github.com/agropulse/cropalert-go/internal/domain/user"
	"github.com/agropulse/cropalert-go/internal/infrastructure/observability/logging"
	"github.com/agropulse/cropalert-go/internal/infrastructure/security"
	"github.com/agropulse/cropalert-go/pkg/config"
)

var (
	// ErrEmailTaken reports a registration against an existing email.
	ErrEmailTaken = errors.New("email is already registered")

	// ErrInvalidCredentials covers both unknown email and wrong password,
	// deliberately indistinguishable to the caller.
	ErrInvalidCredentials = errors.New("invalid email or password")
)

// RegisterRequest carries a new account registration.
type RegisterRequest struct {
	Email           string
	Password        string
	FirstName       string
	LastName        string
	Role            user.Role
	SubscribedCrops []string
	Location        *geo.Point
}

// AuthService handles registration, login and token verification.
type AuthService struct {
	users  user.Repository
	logger *logging.ChanneledLogger
}

// NewAuthService creates the authentication service.
func NewAuthService(users user.Repository, logger *logging.ChanneledLogger) *AuthService {
	return &AuthService{users: users, logger: logger}
}

// Register creates a new account. Farmers are approved immediately;
// agronomists start pending and must be cleared by an admin before they
// can author alerts or connect to the realtime channel.
func (s *AuthService) Register(req RegisterRequest) (*user.Identity, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))

	existing, err := s.users.FindByEmail(email)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing email: %w", err)
	}
	if existing != nil {
		return nil, ErrEmailTaken
	}

	hash, err := security.HashPassword(req.Password, config.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	crops := req.SubscribedCrops
	if crops == nil {
		crops = []string{}
	}

	account := &user.Account{
		Identity: user.Identity{
			ID:              security.GenerateULID(),
			Email:           email,
			FirstName:       strings.TrimSpace(req.FirstName),
			LastName:        strings.TrimSpace(req.LastName),
			Role:            req.Role,
			IsApproved:      req.Role == user.RoleFarmer,
			SubscribedCrops: crops,
			Location:        req.Location,
			CreatedAt:       time.Now().UTC(),
		},
		PasswordHash: hash,
	}

	if err := s.users.Store(account); err != nil {
		return nil, fmt.Errorf("failed to store account: %w", err)
	}

	s.logger.Auth().Info("Account registered",
		"userId", account.ID, "role", string(account.Role), "approved", account.IsApproved)

	ident := account.Identity
	return &ident, nil
}

// Login verifies credentials and issues a signed access token.
func (s *AuthService) Login(email, password string) (string, *user.Identity, error) {
	account, err := s.users.FindByEmail(strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return "", nil, fmt.Errorf("failed to look up account: %w", err)
	}
	if account == nil || !security.CheckPassword(account.PasswordHash, password) {
		s.logger.Auth().Warn("Login rejected", "email", email)
		return "", nil, ErrInvalidCredentials
	}

	token, err := security.GenerateAccessToken(account.ID, string(account.Role), config.JWTSecret, config.TokenExpiry)
	if err != nil {
		return "", nil, fmt.Errorf("failed to sign token: %w", err)
	}

	s.logger.Auth().Info("Login succeeded", "userId", account.ID, "role", string(account.Role))

	ident := account.Identity
	return token, &ident, nil
}

// VerifyToken validates a bearer token and resolves it to the current
// account identity. Used by both the HTTP middleware and the websocket
// handshake so that approval state is always read fresh from the store.
func (s *AuthService) VerifyToken(tokenString string) (*user.Identity, error) {
	claims, err := security.ValidateJWT(tokenString, config.JWTSecret)
	if err != nil {
		return nil, security.ErrInvalidToken
	}
	tokenClaims, err := security.TokenClaimsFrom(claims)
	if err != nil {
		return nil, err
	}

	account, err := s.users.FindByID(tokenClaims.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve token subject: %w", err)
	}
	if account == nil {
		return nil, security.ErrInvalidToken
	}

	ident := account.Identity
	return &ident, nil
}
