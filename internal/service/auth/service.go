package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/ashwinyue/next-intent/internal/apperr"
	"github.com/ashwinyue/next-intent/internal/config"
	"github.com/ashwinyue/next-intent/internal/model"
	"github.com/ashwinyue/next-intent/internal/repository"
	"github.com/ashwinyue/next-intent/internal/validation"
)

var (
	// ErrInvalidCredentials 邮箱或密码错误
	ErrInvalidCredentials = apperr.New(apperr.ErrUnauthenticated, "invalid email or password")
	// ErrInvalidToken 令牌无效或已过期
	ErrInvalidToken = apperr.New(apperr.ErrUnauthenticated, "invalid token")
	// ErrAccountDisabled 账户已停用
	ErrAccountDisabled = apperr.New(apperr.ErrPermissionDenied, "account is disabled")
)

// Service 认证服务
type Service struct {
	users  repository.UserRepository
	secret []byte
	ttl    time.Duration
	cfg    config.AuthConfig
	logger *zap.Logger
}

// NewService 创建认证服务，未配置密钥时随机生成（重启后已签发的令牌失效）
func NewService(users repository.UserRepository, cfg config.AuthConfig, logger *zap.Logger) (*Service, error) {
	secret := strings.TrimSpace(cfg.JWTSecret)
	if secret == "" {
		randomBytes := make([]byte, 32)
		if _, err := rand.Read(randomBytes); err != nil {
			return nil, fmt.Errorf("failed to generate JWT secret: %w", err)
		}
		secret = base64.StdEncoding.EncodeToString(randomBytes)
		logger.Warn("auth.jwtSecret not set, using a random secret")
	}
	ttl := cfg.TokenDuration()
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Service{
		users:  users,
		secret: []byte(secret),
		ttl:    ttl,
		cfg:    cfg,
		logger: logger.Named("auth"),
	}, nil
}

// RegisterRequest 注册请求
type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=3,max=50"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

// LoginRequest 登录请求
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse 登录响应
type LoginResponse struct {
	User      *model.User `json:"user"`
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expiresAt"`
}

// Register 注册普通用户，是否自动批准由 auth.autoApprove 决定
func (s *Service) Register(ctx context.Context, req *RegisterRequest) (*model.User, error) {
	return s.create(ctx, req, model.RoleUser, s.cfg.AutoApprove)
}

// CreateAdmin 创建已批准的管理员
func (s *Service) CreateAdmin(ctx context.Context, req *RegisterRequest) (*model.User, error) {
	return s.create(ctx, req, model.RoleAdmin, true)
}

func (s *Service) create(ctx context.Context, req *RegisterRequest, role model.Role, approved bool) (*model.User, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))

	// 检查邮箱与用户名是否已存在
	if existing, _ := s.users.GetByEmail(ctx, email); existing != nil {
		return nil, apperr.New(apperr.ErrConflict, "user with this email already exists")
	}
	if existing, _ := s.users.GetByUsername(ctx, req.Username); existing != nil {
		return nil, apperr.New(apperr.ErrConflict, "user with this username already exists")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &model.User{
		Username:     req.Username,
		Email:        email,
		PasswordHash: string(hashed),
		Role:         role,
		IsApproved:   approved,
		IsActive:     true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info("user registered",
		zap.String("user_id", user.ID),
		zap.String("role", string(role)),
		zap.Bool("approved", approved),
	)
	return user, nil
}

// Login 校验密码并签发令牌
func (s *Service) Login(ctx context.Context, req *LoginRequest) (*LoginResponse, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	user, err := s.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if !user.IsActive {
		return nil, ErrAccountDisabled
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	token, expiresAt, err := s.issueToken(user)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}
	return &LoginResponse{User: user, Token: token, ExpiresAt: expiresAt}, nil
}

// IssueToken 为用户签发访问令牌
func (s *Service) IssueToken(user *model.User) (string, error) {
	token, _, err := s.issueToken(user)
	return token, err
}

func (s *Service) issueToken(user *model.User) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(s.ttl)
	claims := jwt.MapClaims{
		"user_id": user.ID,
		"role":    string(user.Role),
		"exp":     expiresAt.Unix(),
		"iat":     now.Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

// ValidateToken 验证令牌并返回当前用户
func (s *Service) ValidateToken(ctx context.Context, tokenString string) (*model.User, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}
	userID, ok := claims["user_id"].(string)
	if !ok || userID == "" {
		return nil, ErrInvalidToken
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if !user.IsActive {
		return nil, ErrAccountDisabled
	}
	return user, nil
}

// GetUser 获取用户
func (s *Service) GetUser(ctx context.Context, id string) (*model.User, error) {
	return s.users.GetByID(ctx, id)
}

// Approve 批准用户（仅管理员）
func (s *Service) Approve(ctx context.Context, actor model.Actor, userID string) (*model.User, error) {
	if !actor.IsAdmin() {
		return nil, apperr.PermissionDenied("admin role required")
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	user.IsApproved = true
	if err := s.users.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to approve user: %w", err)
	}
	return user, nil
}

// ChangePassword 修改密码
func (s *Service) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	if len(newPassword) < 6 {
		return apperr.Validation("password must be at least 6 characters")
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(oldPassword)); err != nil {
		return apperr.Validation("invalid old password")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	user.PasswordHash = string(hashed)
	return s.users.Update(ctx, user)
}
