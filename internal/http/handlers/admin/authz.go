package admin

import (
	"encoding/json"
	"net/url"
	"strconv"
	"strings"

	"github.com/threadline/storefront/internal/authz"
	"github.com/threadline/storefront/internal/constants"
	handlershared "github.com/threadline/storefront/internal/http/handlers/shared"
	"github.com/threadline/storefront/internal/http/response"
	"github.com/threadline/storefront/internal/logger"
	"github.com/threadline/storefront/internal/models"
	"github.com/threadline/storefront/internal/repository"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"
)

type authzSetAdminRolesPayload struct {
	Roles []string `json:"roles"`
}

type authzRoleItem struct {
	Role    string `json:"role"`
	Builtin bool   `json:"builtin"`
}

type authzPolicyPayload struct {
	Role   string `json:"role" binding:"required"`
	Object string `json:"object" binding:"required"`
	Action string `json:"action" binding:"required"`
}

// GetAuthzMe 获取当前管理员权限快照
func (h *Handler) GetAuthzMe(c *gin.Context) {
	adminID, ok := getAdminID(c)
	if !ok {
		return
	}
	roles, err := h.AuthzService.GetAdminRoles(adminID)
	if err != nil {
		respondError(c, response.CodeInternal, "error.internal", err)
		return
	}
	policies, err := h.AuthzService.GetAdminPolicies(adminID)
	if err != nil {
		respondError(c, response.CodeInternal, "error.internal", err)
		return
	}
	response.Success(c, gin.H{
		"admin_id": adminID,
		"username": c.GetString(handlershared.ContextAdminName),
		"is_super": isSuperAdmin(c),
		"roles":    roles,
		"policies": policies,
	})
}

// ListAuthzRoles 获取角色列表
func (h *Handler) ListAuthzRoles(c *gin.Context) {
	roles, err := h.AuthzService.ListRoles()
	if err != nil {
		respondAuthzError(c, err)
		return
	}
	items := make([]authzRoleItem, 0, len(roles))
	for _, role := range roles {
		items = append(items, authzRoleItem{Role: role, Builtin: h.AuthzService.IsBuiltinRole(role)})
	}
	response.Success(c, items)
}

// GetAuthzRolePolicies 获取角色策略
func (h *Handler) GetAuthzRolePolicies(c *gin.Context) {
	role := decodeRoleParam(c.Param("role"))
	if role == "" {
		respondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return
	}
	exists, err := h.AuthzService.HasRole(role)
	if err != nil {
		respondAuthzError(c, err)
		return
	}
	if !exists {
		respondAuthzError(c, authz.ErrRoleNotFound)
		return
	}
	policies, err := h.AuthzService.GetRolePolicies(role)
	if err != nil {
		respondAuthzError(c, err)
		return
	}
	response.Success(c, policies)
}

// GrantAuthzPolicy 授予角色策略
func (h *Handler) GrantAuthzPolicy(c *gin.Context) {
	var req authzPolicyPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	if err := h.AuthzService.GrantRolePolicy(req.Role, req.Object, req.Action); err != nil {
		respondAuthzError(c, err)
		return
	}
	h.recordAuthzAudit(c, models.AuthzAuditLog{
		Action: constants.AuthzAuditActionPolicyGrant,
		Role:   auditRole(req.Role),
		Object: authz.NormalizeObject(req.Object),
		Method: authz.NormalizeAction(req.Action),
	}, nil)
	response.Success(c, nil)
}

// RevokeAuthzPolicy 撤销角色策略
func (h *Handler) RevokeAuthzPolicy(c *gin.Context) {
	var req authzPolicyPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	if err := h.AuthzService.RevokeRolePolicy(req.Role, req.Object, req.Action); err != nil {
		respondAuthzError(c, err)
		return
	}
	h.recordAuthzAudit(c, models.AuthzAuditLog{
		Action: constants.AuthzAuditActionPolicyRevoke,
		Role:   auditRole(req.Role),
		Object: authz.NormalizeObject(req.Object),
		Method: authz.NormalizeAction(req.Action),
	}, nil)
	response.Success(c, nil)
}

// SetAuthzAdminRoles 设置管理员角色
func (h *Handler) SetAuthzAdminRoles(c *gin.Context) {
	adminID, ok := handlershared.ParseIDParam(c, "id")
	if !ok {
		return
	}
	target, err := h.AdminRepo.GetByID(adminID)
	if err != nil {
		respondError(c, response.CodeInternal, "error.internal", err)
		return
	}
	if target == nil {
		respondError(c, response.CodeBadRequest, "error.admin_id_invalid", nil)
		return
	}

	var req authzSetAdminRolesPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	previous, err := h.AuthzService.GetAdminRoles(adminID)
	if err != nil {
		respondAuthzError(c, err)
		return
	}
	if err := h.AuthzService.SetAdminRoles(adminID, req.Roles); err != nil {
		respondAuthzError(c, err)
		return
	}
	current, err := h.AuthzService.GetAdminRoles(adminID)
	if err != nil {
		current = req.Roles
	}

	h.recordAuthzAudit(c, models.AuthzAuditLog{
		Action:         constants.AuthzAuditActionAdminRolesSet,
		TargetAdminID:  &adminID,
		TargetUsername: target.Username,
	}, gin.H{"previous_roles": previous, "roles": current})
	response.Success(c, nil)
}

// ListAuthzAuditLogs 权限变更审计日志
func (h *Handler) ListAuthzAuditLogs(c *gin.Context) {
	page, pageSize := handlershared.ParsePagination(c)
	filter := repository.AuthzAuditLogListFilter{
		Page:     page,
		PageSize: pageSize,
		Action:   strings.TrimSpace(c.Query("action")),
		Role:     auditRole(c.Query("role")),
	}
	for key, dst := range map[string]*uint{
		"operator_admin_id": &filter.OperatorAdminID,
		"target_admin_id":   &filter.TargetAdminID,
	} {
		raw := strings.TrimSpace(c.Query(key))
		if raw == "" {
			continue
		}
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			respondError(c, response.CodeBadRequest, "error.bad_request", err)
			return
		}
		*dst = uint(id)
	}
	var err error
	if filter.CreatedFrom, err = parseTimeQuery(c, "created_from"); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	if filter.CreatedTo, err = parseTimeQuery(c, "created_to"); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}

	logs, total, err := h.AuthzAuditRepo.List(filter)
	if err != nil {
		respondError(c, response.CodeInternal, "error.internal", err)
		return
	}
	response.SuccessWithPage(c, logs, handlershared.BuildPagination(page, pageSize, total))
}

// recordAuthzAudit 写审计日志，失败只记录告警不影响主流程
func (h *Handler) recordAuthzAudit(c *gin.Context, entry models.AuthzAuditLog, detail gin.H) {
	entry.OperatorAdminID, _ = handlershared.LookupContextUint(c, handlershared.ContextAdminID)
	entry.OperatorUsername = c.GetString(handlershared.ContextAdminName)
	entry.RequestID = handlershared.RequestID(c)
	if len(detail) > 0 {
		if raw, err := json.Marshal(detail); err == nil {
			entry.Detail = datatypes.JSON(raw)
		}
	}
	logger.Infow("admin_authz_changed",
		"operator_admin_id", entry.OperatorAdminID,
		"action", entry.Action,
		"role", entry.Role,
		"object", entry.Object,
		"method", entry.Method,
		"target_admin_id", entry.TargetAdminID,
		"request_id", entry.RequestID,
	)
	if h.AuthzAuditRepo == nil {
		return
	}
	if err := h.AuthzAuditRepo.Create(&entry); err != nil {
		logger.Warnw("admin_authz_audit_write_failed", "action", entry.Action, "error", err)
	}
}

func auditRole(role string) string {
	if strings.TrimSpace(role) == "" {
		return ""
	}
	normalized, err := authz.NormalizeRole(role)
	if err != nil {
		return strings.TrimSpace(role)
	}
	return normalized
}

func decodeRoleParam(value string) string {
	decoded, err := url.QueryUnescape(value)
	if err != nil {
		return strings.TrimSpace(value)
	}
	return strings.TrimSpace(decoded)
}
