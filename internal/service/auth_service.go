package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"log/slog"
	"strings"
	"time"

	"artenis/internal/cache"
	"artenis/internal/middleware"
	"artenis/internal/models"
	"artenis/internal/repository"
	"artenis/internal/validation"

	"golang.org/x/crypto/bcrypt"
)

// AuthService registers accounts and issues, rotates and revokes tokens.
type AuthService struct {
	users      repository.UserRepository
	artists    ArtistProfiles
	tokens     cache.TokenStore
	secret     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	bcryptCost int
	now        clock
}

// AuthConfig carries the token settings of AuthService.
type AuthConfig struct {
	Secret     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

type RegisterInput struct {
	Username  string
	Email     string
	Password  string
	FirstName string
	LastName  string
	Role      models.UserRole
}

// AuthResult is returned by register, login and refresh.
type AuthResult struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	TokenType    string       `json:"token_type"`
	ExpiresIn    int64        `json:"expires_in"`
	User         *models.User `json:"user"`
}

func NewAuthService(users repository.UserRepository, artists ArtistProfiles, tokens cache.TokenStore, cfg AuthConfig) *AuthService {
	return &AuthService{
		users:      users,
		artists:    artists,
		tokens:     tokens,
		secret:     cfg.Secret,
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		bcryptCost: bcrypt.DefaultCost,
		now:        utcNow,
	}
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))

	if in.Username == "" || in.Email == "" || in.Password == "" {
		return nil, models.NewValidationError("Username, email, and password are required")
	}
	if err := validation.ValidateUsername(in.Username); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidateEmail(in.Email); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidatePassword(in.Password); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	role := in.Role
	switch role {
	case "":
		role = models.RoleUser
	case models.RoleUser, models.RoleArtist:
	default:
		return nil, models.NewValidationError("Role must be user or artist")
	}

	existing, err := s.users.GetByEmail(ctx, in.Email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, models.NewConflictError("Email already registered")
	}
	existing, err = s.users.GetByUsername(ctx, in.Username)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, models.NewConflictError("Username already taken")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.bcryptCost)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	user := &models.User{
		Username:             in.Username,
		Email:                in.Email,
		Password:             string(hash),
		FirstName:            strings.TrimSpace(in.FirstName),
		LastName:             strings.TrimSpace(in.LastName),
		Role:                 role,
		Status:               models.UserStatusActive,
		NotificationsEnabled: true,
		Interests:            []string{},
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	if role == models.RoleArtist {
		if _, err := s.artists.CreateDefault(ctx, user.ID); err != nil {
			return nil, err
		}
	}

	middleware.Logger.InfoContext(ctx, "user registered",
		slog.Uint64("user_id", uint64(user.ID)), slog.String("role", string(role)))
	return s.issue(ctx, user)
}

// Login accepts an email or a username as identifier.
func (s *AuthService) Login(ctx context.Context, identifier, password string) (*AuthResult, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		return nil, models.NewValidationError("Email and password are required")
	}

	var (
		user *models.User
		err  error
	)
	if strings.Contains(identifier, "@") {
		user, err = s.users.GetByEmail(ctx, identifier)
	} else {
		user, err = s.users.GetByUsername(ctx, identifier)
	}
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, models.NewUnauthorizedError("Invalid credentials")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, models.NewUnauthorizedError("Invalid credentials")
	}
	if err := checkCanSignIn(user); err != nil {
		return nil, err
	}

	now := s.now()
	if err := s.users.TouchLastLogin(ctx, user.ID, now); err != nil {
		middleware.Logger.WarnContext(ctx, "failed to record login", slog.String("error", err.Error()))
	}
	user.LastLoginAt = &now
	return s.issue(ctx, user)
}

// Refresh rotates a refresh token: the presented token is consumed and a new
// pair is issued.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*AuthResult, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return nil, models.NewValidationError("Refresh token is required")
	}
	userID, err := s.tokens.ConsumeRefresh(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, cache.ErrTokenNotFound) {
			return nil, models.NewUnauthorizedError("Invalid or expired refresh token")
		}
		return nil, models.NewInternalError(err)
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if models.IsCode(err, models.CodeNotFound) {
			return nil, models.NewUnauthorizedError("Invalid or expired refresh token")
		}
		return nil, err
	}
	if err := checkCanSignIn(user); err != nil {
		return nil, err
	}
	return s.issue(ctx, user)
}

// Logout drops the refresh token and blacklists the access token until it
// would have expired anyway.
func (s *AuthService) Logout(ctx context.Context, refreshToken string, access *middleware.AccessClaims) error {
	if refreshToken != "" {
		if err := s.tokens.DeleteRefresh(ctx, refreshToken); err != nil {
			return models.NewInternalError(err)
		}
	}
	if access == nil || access.JTI == "" {
		return nil
	}
	ttl := access.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return nil
	}
	if err := s.tokens.Revoke(ctx, access.JTI, ttl); err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (s *AuthService) issue(ctx context.Context, user *models.User) (*AuthResult, error) {
	access, _, err := middleware.IssueAccessToken(s.secret, user.ID, s.accessTTL, s.now())
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	refresh, err := newOpaqueToken()
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	if err := s.tokens.SaveRefresh(ctx, refresh, user.ID, s.refreshTTL); err != nil {
		return nil, models.NewInternalError(err)
	}
	return &AuthResult{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.accessTTL.Seconds()),
		User:         user,
	}, nil
}

func checkCanSignIn(user *models.User) error {
	switch user.Status {
	case models.UserStatusBanned:
		return models.NewForbiddenError("Account is banned")
	case models.UserStatusSuspended:
		return models.NewForbiddenError("Account is suspended")
	}
	return nil
}

func newOpaqueToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
