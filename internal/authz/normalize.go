package authz

import "strings"

const (
	apiV1Prefix = "/api/v1"
	rolePrefix  = "role:"
	roleAnchor  = "role:__anchor__"
)

// NormalizeRole 统一角色名称（补齐 role: 前缀，空格转下划线）
func NormalizeRole(role string) (string, error) {
	normalized := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(role), " ", "_"))
	if !strings.HasPrefix(normalized, rolePrefix) {
		normalized = rolePrefix + normalized
	}
	if len(normalized) <= len(rolePrefix) {
		return "", ErrRoleRequired
	}
	if normalized == roleAnchor {
		return "", ErrReservedRole
	}
	return normalized, nil
}

// NormalizeObject 统一授权资源路径，/api/v1 前缀被剥离，运维端点保持原样
func NormalizeObject(object string) string {
	normalized := strings.TrimSpace(object)
	if normalized == "" {
		return "/"
	}
	if !strings.HasPrefix(normalized, "/") {
		normalized = "/" + normalized
	}
	if normalized == apiV1Prefix {
		return "/"
	}
	if strings.HasPrefix(normalized, apiV1Prefix+"/") {
		normalized = strings.TrimPrefix(normalized, apiV1Prefix)
	}
	if len(normalized) > 1 {
		normalized = strings.TrimRight(normalized, "/")
	}
	return normalized
}

// NormalizeAction 统一授权动作
func NormalizeAction(action string) string {
	return strings.ToUpper(strings.TrimSpace(action))
}

func isRoleName(value string) bool {
	return strings.HasPrefix(value, rolePrefix) && value != roleAnchor
}
