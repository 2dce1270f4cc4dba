package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dimpoz/backend/internal/domain"
	"github.com/dimpoz/backend/internal/repository"
	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const tokenTTL = 7 * 24 * time.Hour

// AuthService handles registration, login and JWT verification.
type AuthService struct {
	jwtSecret string
	userRepo  *repository.UserRepository
	policy    *AdminPolicy
	validate  *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewAuthService creates a new AuthService.
func NewAuthService(jwtSecret string, userRepo *repository.UserRepository, policy *AdminPolicy, logger *zap.Logger) *AuthService {
	return &AuthService{
		jwtSecret: jwtSecret,
		userRepo:  userRepo,
		policy:    policy,
		validate:  validator.New(),
		logger:    logger.Named("auth"),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// SeedAdmin creates an account for the given admin email if none exists.
func (s *AuthService) SeedAdmin(ctx context.Context, email, password string) error {
	if email == "" || password == "" {
		return nil
	}
	exists, err := s.userRepo.Exists(ctx, email)
	if err != nil {
		return fmt.Errorf("failed to check admin existence: %w", err)
	}
	if exists {
		s.logger.Info("admin user already exists", zap.String("email", email))
		return nil
	}

	_, err = s.create(ctx, email, password, "Admin", domain.RoleAdmin)
	if errors.Is(err, repository.ErrEmailTaken) {
		s.logger.Info("admin user already exists", zap.String("email", email))
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to create admin user: %w", err)
	}
	s.logger.Info("admin user created", zap.String("email", email))
	return nil
}

// Register creates a viewer account and logs it in.
func (s *AuthService) Register(ctx context.Context, req *domain.RegisterRequest) (*domain.LoginResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, domain.ErrValidation(formatValidationErrors(err))
	}

	exists, err := s.userRepo.Exists(ctx, req.Email)
	if err != nil {
		return nil, domain.ErrInternal("failed to check user", err)
	}
	if exists {
		return nil, domain.ErrConflict("email already registered")
	}

	user, err := s.create(ctx, req.Email, req.Password, req.DisplayName, domain.RoleUser)
	if errors.Is(err, repository.ErrEmailTaken) {
		return nil, domain.ErrConflict("email already registered")
	}
	if err != nil {
		return nil, domain.ErrInternal("failed to create user", err)
	}
	return s.issue(ctx, user)
}

func (s *AuthService) create(ctx context.Context, email, password, displayName, role string) (*domain.User, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	email = normalizeEmail(email)
	if displayName == "" {
		displayName = strings.SplitN(email, "@", 2)[0]
	}

	user := &domain.User{
		ID:           domain.NewUserID(),
		Email:        email,
		DisplayName:  displayName,
		PasswordHash: string(hashed),
		Role:         role,
		CreatedAt:    s.now(),
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Login validates credentials, records the login and returns a JWT token.
func (s *AuthService) Login(ctx context.Context, req *domain.LoginRequest) (*domain.LoginResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, domain.ErrValidation(formatValidationErrors(err))
	}

	user, err := s.userRepo.FindByEmail(ctx, req.Email)
	if err != nil {
		return nil, domain.ErrInternal("failed to find user", err)
	}
	if user == nil {
		return nil, domain.ErrUnauthorized("invalid credentials")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, domain.ErrUnauthorized("invalid credentials")
	}
	return s.issue(ctx, user)
}

func (s *AuthService) issue(ctx context.Context, user *domain.User) (*domain.LoginResponse, error) {
	now := s.now()
	if err := s.userRepo.TouchLogin(ctx, user.ID, now); err != nil {
		s.logger.Warn("failed to record login", zap.String("user_id", user.ID), zap.Error(err))
	} else {
		user.LastLogin = &now
	}

	claims := jwt.MapClaims{
		"sub":   user.ID,
		"email": user.Email,
		"exp":   now.Add(tokenTTL).Unix(),
		"iat":   now.Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.jwtSecret))
	if err != nil {
		return nil, domain.ErrInternal("failed to sign token", err)
	}

	resp, err := s.toResponse(ctx, user)
	if err != nil {
		return nil, err
	}
	return &domain.LoginResponse{Token: signed, User: *resp}, nil
}

// VerifyToken validates a JWT token and returns the claims.
func (s *AuthService) VerifyToken(tokenStr string) (*domain.JWTClaims, error) {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, domain.ErrUnauthorized("invalid or expired token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, domain.ErrUnauthorized("invalid token claims")
	}

	sub := getClaimString(claims, "sub")
	if sub == "" {
		return nil, domain.ErrUnauthorized("invalid token claims")
	}
	return &domain.JWTClaims{
		Sub:   sub,
		Email: getClaimString(claims, "email"),
	}, nil
}

func getClaimString(claims jwt.MapClaims, key string) string {
	if v, ok := claims[key].(string); ok {
		return v
	}
	return ""
}

// Me returns the profile of the authenticated user.
func (s *AuthService) Me(ctx context.Context, userID string) (*domain.UserResponse, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, domain.ErrInternal("failed to find user", err)
	}
	if user == nil {
		return nil, domain.ErrNotFound("user not found")
	}
	return s.toResponse(ctx, user)
}

func (s *AuthService) toResponse(ctx context.Context, user *domain.User) (*domain.UserResponse, error) {
	isAdmin, err := s.policy.IsAdmin(ctx, user.ID, user.Email)
	if err != nil {
		return nil, domain.ErrInternal("failed to check permissions", err)
	}
	return &domain.UserResponse{
		ID:          user.ID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		IsAdmin:     isAdmin,
		CreatedAt:   user.CreatedAt,
		LastLogin:   user.LastLogin,
	}, nil
}
