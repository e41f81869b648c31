package services

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"citymemory/application/commands"
	"citymemory/application/ports"
	"citymemory/domain/core/entities"
	"citymemory/domain/core/validators"
	"citymemory/pkg/auth"
	pkgerrors "citymemory/pkg/errors"
	"citymemory/pkg/utils"
)

// AuthService registers accounts, issues session tokens and verifies them
type AuthService struct {
	base
	users     ports.UserRepository
	hasher    *auth.PasswordHasher
	tokens    *auth.JWTService
	validator *validators.MemoryValidator
}

// NewAuthService creates the credential service
func NewAuthService(
	store ports.Store,
	hasher *auth.PasswordHasher,
	tokens *auth.JWTService,
	validator *validators.MemoryValidator,
	publisher ports.EventPublisher,
	metrics ports.Metrics,
	logger *zap.Logger,
) *AuthService {
	return &AuthService{
		base:      newBase(publisher, metrics, logger),
		users:     store.Users(),
		hasher:    hasher,
		tokens:    tokens,
		validator: validator,
	}
}

// Register creates an account. Input and conflict failures use HTTP 400 like
// the login form expects.
func (s *AuthService) Register(ctx context.Context, cmd commands.RegisterCommand) (_ *IdentityView, err error) {
	start := time.Now()
	defer func() { s.observe(ctx, "auth.register", start, err) }()

	if err := utils.ValidateStruct(cmd); err != nil {
		return nil, err
	}
	if err := s.validator.ValidateCredentials(cmd.Username, cmd.Password); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(cmd.Password)
	if err != nil {
		return nil, pkgerrors.NewInternalError("failed to hash password").WithCause(err)
	}
	user, err := entities.NewUser(cmd.Username, hash, cmd.Email, s.now())
	if err != nil {
		return nil, err
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, ports.ErrAlreadyExists) {
			return nil, pkgerrors.NewConflictError("username already exists").
				WithCode("USERNAME_TAKEN").
				WithStatus(http.StatusBadRequest)
		}
		return nil, storeError("register", err)
	}

	s.logger.Info("User registered", zap.String("user_id", user.ID()), zap.String("username", user.Username()))
	s.publishFrom(ctx, user)

	view := newIdentityView(identityOf(user))
	return &view, nil
}

// Login checks credentials, stamps the login and issues a token
func (s *AuthService) Login(ctx context.Context, cmd commands.LoginCommand) (_ *LoginResult, err error) {
	start := time.Now()
	defer func() { s.observe(ctx, "auth.login", start, err) }()

	if err := utils.ValidateStruct(cmd); err != nil {
		return nil, err
	}

	user, err := s.users.GetByUsername(ctx, strings.TrimSpace(cmd.Username))
	if err != nil {
		if isNotFound(err) {
			return nil, pkgerrors.NewNotFoundError("user").WithCode("USER_NOT_FOUND").WithStatus(http.StatusBadRequest)
		}
		return nil, storeError("login", err)
	}

	if err := s.hasher.Compare(user.PasswordHash(), cmd.Password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			s.logger.Info("Login rejected", zap.String("user_id", user.ID()), zap.String("reason", "password_mismatch"))
			return nil, pkgerrors.NewUnauthorizedError("incorrect password").WithCode("INVALID_PASSWORD").WithStatus(http.StatusBadRequest)
		}
		return nil, pkgerrors.NewInternalError("failed to verify password").WithCause(err)
	}

	now := s.now()
	user.RecordLogin(now)
	if err := s.users.UpdateLastLogin(ctx, user.ID(), now); err != nil {
		return nil, storeError("login", err)
	}

	token, err := s.tokens.GenerateToken(user.ID(), user.Username(), user.Email())
	if err != nil {
		return nil, pkgerrors.NewInternalError("failed to issue token").WithCause(err)
	}

	return &LoginResult{
		Token:     token,
		ExpiresAt: utils.FormatTimestamp(now.Add(s.tokens.TTL())),
		User:      newIdentityView(identityOf(user)),
	}, nil
}

// Verify checks a bearer token and yields the identity it carries. No store
// lookup is made.
func (s *AuthService) Verify(token string) (*entities.Identity, error) {
	claims, err := s.tokens.ValidateToken(token)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrMissingToken):
			return nil, pkgerrors.NewUnauthorizedError("missing authentication token")
		case errors.Is(err, auth.ErrExpiredToken):
			return nil, pkgerrors.NewUnauthorizedError("token has expired").WithCode("TOKEN_EXPIRED")
		default:
			return nil, pkgerrors.NewUnauthorizedError("invalid token").WithCause(err)
		}
	}
	return &entities.Identity{UserID: claims.UserID, Username: claims.Username, Email: claims.Email}, nil
}

// Profile returns the caller's identity as carried by the token
func (s *AuthService) Profile(requester *entities.Identity) (*IdentityView, error) {
	if err := requireIdentity(requester); err != nil {
		return nil, err
	}
	view := newIdentityView(*requester)
	return &view, nil
}

func identityOf(u *entities.User) entities.Identity {
	return entities.Identity{UserID: u.ID(), Username: u.Username(), Email: u.Email()}
}
