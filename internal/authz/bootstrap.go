package authz

import "fmt"

// RoleSeed 预置角色定义
type RoleSeed struct {
	Role      string
	Inherits  []string
	Policies  []Policy
	Immutable bool
}

// BuiltinRoleSeeds 预置角色矩阵
func BuiltinRoleSeeds() []RoleSeed {
	return []RoleSeed{
		{
			Role:      "readonly_auditor",
			Policies:  []Policy{{Object: "/admin/*", Action: "GET"}},
			Immutable: true,
		},
		{
			Role:     "merchandiser",
			Inherits: []string{"readonly_auditor"},
			Policies: []Policy{
				{Object: "/admin/coupons", Action: "*"},
				{Object: "/admin/coupons/:id", Action: "*"},
			},
			Immutable: true,
		},
		{
			Role:     "support",
			Inherits: []string{"readonly_auditor"},
			Policies: []Policy{
				{Object: "/admin/orders/:id", Action: "PATCH"},
				{Object: "/verify-payment", Action: "POST"},
			},
			Immutable: true,
		},
		{
			Role:     "finance",
			Inherits: []string{"readonly_auditor"},
			Policies: []Policy{
				{Object: "/verify-payment", Action: "POST"},
				{Object: "/cleanup", Action: "GET"},
				{Object: "/cleanup", Action: "POST"},
			},
			Immutable: true,
		},
	}
}

// BootstrapBuiltinRoles 同步预置角色：缺失的补齐，只读角色上多余的策略被移除
func (s *Service) BootstrapBuiltinRoles() error {
	if err := s.ready(); err != nil {
		return err
	}
	for _, seed := range BuiltinRoleSeeds() {
		if err := s.syncSeed(seed); err != nil {
			return fmt.Errorf("sync builtin role %s failed: %w", seed.Role, err)
		}
	}
	return nil
}

func (s *Service) syncSeed(seed RoleSeed) error {
	role, err := NormalizeRole(seed.Role)
	if err != nil {
		return err
	}
	if _, err := s.enforcer.AddNamedGroupingPolicy("g", role, roleAnchor); err != nil {
		return err
	}
	for _, parent := range seed.Inherits {
		parentRole, err := NormalizeRole(parent)
		if err != nil {
			return err
		}
		if _, err := s.enforcer.AddNamedGroupingPolicy("g", role, parentRole); err != nil {
			return err
		}
	}

	desired := make(map[string]struct{}, len(seed.Policies))
	for _, policy := range seed.Policies {
		object, action := NormalizeObject(policy.Object), NormalizeAction(policy.Action)
		if action == "" {
			return ErrActionRequired
		}
		desired[object+"|"+action] = struct{}{}
		if _, err := s.enforcer.AddPolicy(role, object, action); err != nil {
			return err
		}
	}
	if !seed.Immutable {
		return nil
	}

	current, err := s.enforcer.GetFilteredPolicy(0, role)
	if err != nil {
		return err
	}
	for _, rule := range current {
		if len(rule) < 3 {
			continue
		}
		if _, ok := desired[rule[1]+"|"+rule[2]]; ok {
			continue
		}
		if _, err := s.enforcer.RemovePolicy(rule[0], rule[1], rule[2]); err != nil {
			return err
		}
	}
	return nil
}
