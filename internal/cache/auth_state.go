package cache

import (
	"context"
	"strconv"
	"time"

	"github.com/threadline/storefront/internal/models"
)

const authStateCacheTTL = 10 * time.Minute

// TokenState token 吊销判定所需字段，InvalidBefore 为 Unix 秒，0 表示未设置
type TokenState struct {
	TokenVersion  uint64 `json:"token_version"`
	InvalidBefore int64  `json:"token_invalid_before"`
}

// Accepts 判断给定版本与签发时间的 token 是否仍然有效
func (s TokenState) Accepts(version uint64, issuedAt *time.Time) bool {
	if version != s.TokenVersion {
		return false
	}
	if s.InvalidBefore <= 0 {
		return true
	}
	return issuedAt != nil && issuedAt.Unix() >= s.InvalidBefore
}

func newTokenState(version uint64, invalidBefore *time.Time) TokenState {
	state := TokenState{TokenVersion: version}
	if invalidBefore != nil {
		state.InvalidBefore = invalidBefore.Unix()
	}
	return state
}

// UserAuthState 购物用户鉴权快照
type UserAuthState struct {
	TokenState
	UserID uint   `json:"user_id"`
	Email  string `json:"email"`
	Status string `json:"status"`
}

// AdminAuthState 管理员鉴权快照
type AdminAuthState struct {
	TokenState
	AdminID  uint   `json:"admin_id"`
	Username string `json:"username"`
	IsSuper  bool   `json:"is_super"`
}

// BuildUserAuthState 从用户模型构建鉴权快照
func BuildUserAuthState(user *models.User) *UserAuthState {
	if user == nil {
		return nil
	}
	return &UserAuthState{
		TokenState: newTokenState(user.TokenVersion, user.TokenInvalidBefore),
		UserID:     user.ID,
		Email:      user.Email,
		Status:     user.Status,
	}
}

// BuildAdminAuthState 从管理员模型构建鉴权快照
func BuildAdminAuthState(admin *models.Admin) *AdminAuthState {
	if admin == nil {
		return nil
	}
	return &AdminAuthState{
		TokenState: newTokenState(admin.TokenVersion, admin.TokenInvalidBefore),
		AdminID:    admin.ID,
		Username:   admin.Username,
		IsSuper:    admin.IsSuper,
	}
}

func authStateKey(kind string, id uint) string {
	return "auth:" + kind + ":" + strconv.FormatUint(uint64(id), 10)
}

func getAuthState[T any](ctx context.Context, kind string, id uint) (*T, bool, error) {
	if id == 0 {
		return nil, false, nil
	}
	state := new(T)
	hit, err := GetJSON(ctx, authStateKey(kind, id), state)
	if err != nil || !hit {
		return nil, hit, err
	}
	return state, true, nil
}

// GetUserAuthState 读取用户鉴权快照
func GetUserAuthState(ctx context.Context, userID uint) (*UserAuthState, bool, error) {
	return getAuthState[UserAuthState](ctx, "user", userID)
}

// SetUserAuthState 写入用户鉴权快照
func SetUserAuthState(ctx context.Context, state *UserAuthState) error {
	if state == nil || state.UserID == 0 {
		return nil
	}
	return SetJSON(ctx, authStateKey("user", state.UserID), state, authStateCacheTTL)
}

// GetAdminAuthState 读取管理员鉴权快照
func GetAdminAuthState(ctx context.Context, adminID uint) (*AdminAuthState, bool, error) {
	return getAuthState[AdminAuthState](ctx, "admin", adminID)
}

// SetAdminAuthState 写入管理员鉴权快照
func SetAdminAuthState(ctx context.Context, state *AdminAuthState) error {
	if state == nil || state.AdminID == 0 {
		return nil
	}
	return SetJSON(ctx, authStateKey("admin", state.AdminID), state, authStateCacheTTL)
}
