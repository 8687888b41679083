package admin

import (
	"errors"
	"time"

	"github.com/threadline/storefront/internal/http/response"
	"github.com/threadline/storefront/internal/service"

	"github.com/gin-gonic/gin"
)

// LoginRequest 登录请求
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type adminProfile struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
	IsSuper  bool   `json:"is_super"`
}

// LoginResponse 登录响应
type LoginResponse struct {
	Token     string       `json:"token"`
	Admin     adminProfile `json:"admin"`
	ExpiresAt time.Time    `json:"expires_at"`
}

// AdminLogin 管理员登录
func (h *Handler) AdminLogin(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}

	admin, token, expiresAt, err := h.AuthService.Login(req.Username, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			requestLog(c).Warnw("admin_login_rejected", "username", req.Username, "client_ip", c.ClientIP())
			respondError(c, response.CodeUnauthorized, "error.login_invalid", nil)
			return
		}
		respondError(c, response.CodeInternal, "error.internal", err)
		return
	}
	requestLog(c).Infow("admin_login_succeeded", "admin_id", admin.ID)
	response.Success(c, LoginResponse{
		Token:     token,
		Admin:     adminProfile{ID: admin.ID, Username: admin.Username, IsSuper: admin.IsSuper},
		ExpiresAt: expiresAt.UTC(),
	})
}
