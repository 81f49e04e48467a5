package rbac

// Permission is a fine-grained capability key.
type Permission string

const (
	PermPostsRead     Permission = "posts.read"
	PermPostsWrite    Permission = "posts.write"
	PermPostsModerate Permission = "posts.moderate"
	PermUsersRead     Permission = "users.read"
	PermUsersManage   Permission = "users.manage"
	PermRolesManage   Permission = "roles.manage"
	PermSystemAdmin   Permission = "system.admin"
)

// minimumRole maps each permission to the least privileged role allowed to
// exercise it.
var minimumRole = map[Permission]Role{
	PermPostsRead:     RoleUser,
	PermPostsWrite:    RoleUser,
	PermPostsModerate: RoleModerator,
	PermUsersRead:     RoleModerator,
	PermUsersManage:   RoleAdmin,
	PermRolesManage:   RoleAdmin,
	PermSystemAdmin:   RoleSuperAdmin,
}

// MinimumRole returns the least role required for the permission.
func MinimumRole(perm Permission) (Role, bool) {
	min, ok := minimumRole[perm]
	return min, ok
}

// Permissions lists every registered permission key.
func Permissions() []Permission {
	out := make([]Permission, 0, len(minimumRole))
	for p := range minimumRole {
		out = append(out, p)
	}
	return out
}
