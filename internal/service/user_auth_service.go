package service

import (
	"context"
	"net/mail"
	"strings"
	"time"

	"github.com/threadline/storefront/internal/cache"
	"github.com/threadline/storefront/internal/config"
	"github.com/threadline/storefront/internal/logger"
	"github.com/threadline/storefront/internal/models"
	"github.com/threadline/storefront/internal/repository"

	"github.com/golang-jwt/jwt/v5"
)

const userStatusDisabled = "disabled"

// UserAuthService 购物用户 token 服务（token 由外部认证服务签发，共享签名密钥）
type UserAuthService struct {
	cfg      *config.Config
	userRepo repository.UserRepository
}

// NewUserAuthService 创建用户认证服务
func NewUserAuthService(cfg *config.Config, userRepo repository.UserRepository) *UserAuthService {
	return &UserAuthService{
		cfg:      cfg,
		userRepo: userRepo,
	}
}

// UserJWTClaims 用户 JWT 声明
type UserJWTClaims struct {
	UserID       uint   `json:"user_id"`
	Email        string `json:"email"`
	TokenVersion uint64 `json:"token_version"`
	jwt.RegisteredClaims
}

// GenerateUserJWT 生成用户 JWT Token
func (s *UserAuthService) GenerateUserJWT(user *models.User) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(time.Duration(resolveExpireHours(s.cfg.UserJWT.ExpireHours, 168)) * time.Hour)
	claims := UserJWTClaims{
		UserID:       user.ID,
		Email:        user.Email,
		TokenVersion: user.TokenVersion,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.cfg.UserJWT.SecretKey))
	if err != nil {
		return "", time.Time{}, err
	}
	return tokenString, expiresAt, nil
}

// ParseUserJWT 解析用户 JWT Token
func (s *UserAuthService) ParseUserJWT(tokenString string) (*UserJWTClaims, error) {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	claims := &UserJWTClaims{}
	token, err := parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(s.cfg.UserJWT.SecretKey), nil
	})
	if err != nil {
		return nil, ErrTokenInvalid
	}
	if claims, ok := token.Claims.(*UserJWTClaims); ok && token.Valid && claims.UserID > 0 {
		return claims, nil
	}
	return nil, ErrTokenInvalid
}

// ResolveUser 校验 token 对应的用户，首次出现时按 token 中的邮箱建档
func (s *UserAuthService) ResolveUser(ctx context.Context, claims *UserJWTClaims) (*cache.UserAuthState, error) {
	if claims == nil {
		return nil, ErrTokenInvalid
	}
	state, hit, err := cache.GetUserAuthState(ctx, claims.UserID)
	if err != nil {
		logger.Warnw("user_auth_state_cache_read_failed", "user_id", claims.UserID, "error", err)
	}
	if !hit || state == nil {
		user, err := s.loadOrRegister(claims)
		if err != nil {
			return nil, err
		}
		state = cache.BuildUserAuthState(user)
		_ = cache.SetUserAuthState(ctx, state)
	}
	if strings.EqualFold(state.Status, userStatusDisabled) {
		return nil, ErrUserDisabled
	}
	if err := checkTokenFreshness(state.TokenState, claims.TokenVersion, claims.IssuedAt); err != nil {
		return nil, err
	}
	return state, nil
}

func (s *UserAuthService) loadOrRegister(claims *UserJWTClaims) (*models.User, error) {
	user, err := s.userRepo.GetByID(claims.UserID)
	if err != nil {
		return nil, err
	}
	if user != nil {
		return user, nil
	}
	email, err := normalizeEmail(claims.Email)
	if err != nil {
		return nil, ErrTokenInvalid
	}
	user = &models.User{
		ID:     claims.UserID,
		Email:  email,
		Locale: "en",
		Status: "active",
	}
	registered, err := s.userRepo.Register(user)
	if err != nil {
		return nil, err
	}
	if registered == nil {
		return nil, ErrTokenInvalid
	}
	logger.Infow("user_registered_from_token", "user_id", registered.ID)
	return registered, nil
}

func normalizeEmail(email string) (string, error) {
	trimmed := strings.ToLower(strings.TrimSpace(email))
	if trimmed == "" {
		return "", ErrInvalidEmail
	}
	if _, err := mail.ParseAddress(trimmed); err != nil {
		return "", ErrInvalidEmail
	}
	return trimmed, nil
}
