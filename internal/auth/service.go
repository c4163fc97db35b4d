package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/dvloznov/cheque-tally/internal/domain"
	"github.com/dvloznov/cheque-tally/internal/logger"
	"github.com/dvloznov/cheque-tally/internal/store"
)

// RegisterInput carries a registration request.
type RegisterInput struct {
	Email    string `json:"email" validate:"required,email"`
	Username string `json:"username" validate:"required,min=3,max=50"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// Service owns user registration and login.
type Service struct {
	users    store.UserStore
	tokens   *TokenService
	validate *validator.Validate
	cost     int
	now      func() time.Time
}

// NewService creates a Service backed by users.
func NewService(users store.UserStore, tokens *TokenService) *Service {
	return &Service{
		users:    users,
		tokens:   tokens,
		validate: validator.New(),
		cost:     bcrypt.DefaultCost,
		now:      time.Now,
	}
}

// Tokens exposes the token service used for login.
func (s *Service) Tokens() *TokenService { return s.tokens }

// Register creates an active user with a bcrypt-hashed password.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*domain.User, error) {
	in.Email = strings.TrimSpace(in.Email)
	in.Username = strings.TrimSpace(in.Username)
	if err := s.validate.Struct(in); err != nil {
		return nil, domain.WrapError(domain.KindValidationFailure, validationMessage(err), err)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("Register: hash password: %w", err)
	}

	now := s.now().UTC()
	u := &domain.User{
		UserID:         uuid.NewString(),
		Email:          in.Email,
		Username:       in.Username,
		HashedPassword: string(hashed),
		IsActive:       true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.users.InsertUser(ctx, u); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, domain.WrapError(domain.KindConflict, "username or email already registered", err)
		}
		return nil, fmt.Errorf("Register: %w", err)
	}

	log := logger.FromContext(ctx)
	log.Info().Str("user_id", u.UserID).Str("username", u.Username).Msg("User registered")
	return u, nil
}

// Authenticate checks login (username or email) and password and returns the user.
func (s *Service) Authenticate(ctx context.Context, login, password string) (*domain.User, error) {
	u, err := s.users.GetUserByLogin(ctx, strings.TrimSpace(login))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domain.NewError(domain.KindUnauthenticated, "incorrect username or password")
		}
		return nil, fmt.Errorf("Authenticate: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.HashedPassword), []byte(password)); err != nil {
		return nil, domain.NewError(domain.KindUnauthenticated, "incorrect username or password")
	}
	if !u.IsActive {
		return nil, domain.NewError(domain.KindUnauthenticated, "account is inactive")
	}
	return u, nil
}

// Login authenticates and issues an access token.
func (s *Service) Login(ctx context.Context, login, password string) (string, *domain.User, error) {
	u, err := s.Authenticate(ctx, login, password)
	if err != nil {
		return "", nil, err
	}
	token, err := s.tokens.Issue(u.UserID)
	if err != nil {
		return "", nil, err
	}
	return token, u, nil
}

// CurrentUser resolves an authenticated user id to an active account.
func (s *Service) CurrentUser(ctx context.Context, userID string) (*domain.User, error) {
	u, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domain.NewError(domain.KindUnauthenticated, "user no longer exists")
		}
		return nil, fmt.Errorf("CurrentUser: %w", err)
	}
	if !u.IsActive {
		return nil, domain.NewError(domain.KindUnauthenticated, "account is inactive")
	}
	return u, nil
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "invalid registration"
	}
	fe := verrs[0]
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return "email is not a valid address"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	}
	return field + " is invalid"
}
