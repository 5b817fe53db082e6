package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"prepai/internal/auth"
	apperrors "prepai/internal/errors"
	"prepai/internal/model"
	"prepai/internal/repository"
	"prepai/internal/validation"
)

var tracer = otel.Tracer("prepai/internal/service")

// Login lifecycle stages, logged at debug level.
const (
	stageReceived      = "received"
	stageValidated     = "validated"
	stageLookedUp      = "looked_up"
	stageAuthenticated = "authenticated"
	stageRejected      = "rejected"
)

// SignupInput carries the signup form.
type SignupInput struct {
	FirstName       string
	LastName        string
	Email           string
	Password        string
	ConfirmPassword string
}

// AuthService handles authentication operations.
type AuthService interface {
	Signup(ctx context.Context, in SignupInput) (accessToken string, user *model.User, err error)
	Login(ctx context.Context, email, password string) (accessToken, refreshToken string, user *model.User, err error)
	Refresh(ctx context.Context, refreshToken string) (accessToken string, user *model.User, err error)
	Logout(ctx context.Context, refreshToken string) error
	CreateIdentity(ctx context.Context, in SignupInput, role model.Role) (*model.User, error)
	CurrentUser(ctx context.Context, userID string) (*model.User, error)
}

// Option configures the auth service.
type Option func(*authService)

// WithPasswordMinLength overrides the minimum password length.
func WithPasswordMinLength(n int) Option {
	return func(s *authService) { s.passwordMinLength = n }
}

// WithLogger sets the logger used for the login lifecycle.
func WithLogger(log logrus.FieldLogger) Option {
	return func(s *authService) { s.log = log }
}

type authService struct {
	userRepo          repository.UserRepository
	jwtService        *auth.JWTService
	tokenStore        auth.TokenStoreInterface
	hasher            PasswordHasher
	passwordMinLength int
	log               logrus.FieldLogger
}

// NewAuthService creates a new authentication service.
func NewAuthService(
	userRepo repository.UserRepository,
	jwtService *auth.JWTService,
	tokenStore auth.TokenStoreInterface,
	hasher PasswordHasher,
	opts ...Option,
) AuthService {
	s := &authService{
		userRepo:          userRepo,
		jwtService:        jwtService,
		tokenStore:        tokenStore,
		hasher:            hasher,
		passwordMinLength: validation.DefaultPasswordMinLength,
		log:               logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Signup registers a USER identity and returns an access token for it.
func (s *authService) Signup(ctx context.Context, in SignupInput) (string, *model.User, error) {
	ctx, span := tracer.Start(ctx, "auth.signup")
	defer span.End()

	user, err := s.CreateIdentity(ctx, in, model.RoleUser)
	if err != nil {
		recordErr(span, err)
		return "", nil, err
	}

	token, err := s.jwtService.GenerateAccessToken(auth.IdentityFromUser(user))
	if err != nil {
		recordErr(span, err)
		return "", nil, fmt.Errorf("generate access token: %w", err)
	}
	return token, user, nil
}

// CreateIdentity validates the input, hashes the password and persists the user.
func (s *authService) CreateIdentity(ctx context.Context, in SignupInput, role model.Role) (*model.User, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", apperrors.ErrValidation, role)
	}
	if missing := missingFields(in); len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing required fields: %s", apperrors.ErrValidation, strings.Join(missing, ", "))
	}
	if in.Password != in.ConfirmPassword {
		return nil, apperrors.ErrPasswordMismatch
	}
	email, err := validation.NormalizeEmail(in.Email)
	if err != nil {
		return nil, err
	}
	if err := validation.ValidatePassword(in.Password, s.passwordMinLength); err != nil {
		return nil, err
	}

	existing, err := s.userRepo.FindByEmail(ctx, email)
	if err == nil && existing != nil {
		return nil, apperrors.ErrUserAlreadyExists
	}
	if err != nil && !errors.Is(err, repository.ErrUserNotFound) {
		return nil, fmt.Errorf("check user existence: %w", err)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: hash,
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		Role:         role,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		// lost a race with a concurrent signup for the same email
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, apperrors.ErrUserAlreadyExists
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// Login authenticates a user and returns access and refresh tokens. Every
// credential failure collapses into ErrInvalidCredentials.
func (s *authService) Login(ctx context.Context, email, password string) (string, string, *model.User, error) {
	ctx, span := tracer.Start(ctx, "auth.login")
	defer span.End()

	log := s.log.WithField("stage", stageReceived)
	log.Debug("login attempt")

	normalized, err := validation.NormalizeEmail(email)
	if err != nil || password == "" {
		s.reject(log, "malformed credentials")
		return "", "", nil, apperrors.ErrInvalidCredentials
	}
	log = log.WithField("email", normalized)
	log.WithField("stage", stageValidated).Debug("login attempt")

	user, err := s.userRepo.FindByEmail(ctx, normalized)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			s.reject(log, "unknown email")
			return "", "", nil, apperrors.ErrInvalidCredentials
		}
		recordErr(span, err)
		return "", "", nil, fmt.Errorf("find user: %w", err)
	}
	log.WithField("stage", stageLookedUp).Debug("login attempt")

	if err := s.hasher.Compare(user.PasswordHash, password); err != nil {
		s.reject(log, "password mismatch")
		return "", "", nil, apperrors.ErrInvalidCredentials
	}

	accessToken, err := s.jwtService.GenerateAccessToken(auth.IdentityFromUser(user))
	if err != nil {
		recordErr(span, err)
		return "", "", nil, fmt.Errorf("generate access token: %w", err)
	}

	tokenID, refreshToken, err := s.jwtService.GenerateRefreshToken(user.ID.String())
	if err != nil {
		recordErr(span, err)
		return "", "", nil, fmt.Errorf("generate refresh token: %w", err)
	}
	if err := s.tokenStore.StoreRefreshToken(ctx, tokenID, user.ID.String(), s.jwtService.RefreshTTL()); err != nil {
		recordErr(span, err)
		return "", "", nil, fmt.Errorf("store refresh token: %w", err)
	}

	span.SetAttributes(attribute.String("user.role", string(user.Role)))
	log.WithField("stage", stageAuthenticated).Debug("login attempt")
	return accessToken, refreshToken, user, nil
}

// Refresh exchanges a stored refresh token for a new access token carrying the
// user's current claims.
func (s *authService) Refresh(ctx context.Context, refreshToken string) (string, *model.User, error) {
	ctx, span := tracer.Start(ctx, "auth.refresh")
	defer span.End()

	claims, err := s.jwtService.VerifyRefreshToken(refreshToken)
	if err != nil {
		return "", nil, apperrors.ErrAuthenticationRequired
	}

	userID, err := s.tokenStore.GetRefreshToken(ctx, claims.ID)
	if err != nil || userID != claims.Subject {
		return "", nil, apperrors.ErrAuthenticationRequired
	}

	user, err := s.CurrentUser(ctx, userID)
	if err != nil {
		recordErr(span, err)
		return "", nil, err
	}

	accessToken, err := s.jwtService.GenerateAccessToken(auth.IdentityFromUser(user))
	if err != nil {
		recordErr(span, err)
		return "", nil, fmt.Errorf("generate access token: %w", err)
	}
	return accessToken, user, nil
}

// Logout invalidates a refresh token.
func (s *authService) Logout(ctx context.Context, refreshToken string) error {
	claims, err := s.jwtService.VerifyRefreshToken(refreshToken)
	if err != nil {
		return apperrors.ErrAuthenticationRequired
	}
	return s.tokenStore.DeleteRefreshToken(ctx, claims.ID)
}

// CurrentUser loads the identity behind a verified user id.
func (s *authService) CurrentUser(ctx context.Context, userID string) (*model.User, error) {
	id, err := uuid.Parse(userID)
	if err != nil {
		return nil, apperrors.ErrAuthenticationRequired
	}
	user, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, apperrors.ErrAuthenticationRequired
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return user, nil
}

func (s *authService) reject(log logrus.FieldLogger, reason string) {
	log.WithFields(logrus.Fields{"stage": stageRejected, "reason": reason}).Debug("login attempt")
}

func missingFields(in SignupInput) []string {
	var missing []string
	for _, f := range []struct {
		name, value string
	}{
		{"firstName", in.FirstName},
		{"lastName", in.LastName},
		{"email", in.Email},
		{"password", in.Password},
		{"confirmPassword", in.ConfirmPassword},
	} {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	return missing
}

func recordErr(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
