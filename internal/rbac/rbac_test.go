package rbac

import "testing"

func TestParseRole(t *testing.T) {
	for _, raw := range []string{"user", " moderator ", "ADMIN", "super_admin"} {
		if _, err := ParseRole(raw); err != nil {
			t.Fatalf("ParseRole(%q): %v", raw, err)
		}
	}
	for _, raw := range []string{"", "root", "superadmin", "User Admin"} {
		if _, err := ParseRole(raw); err == nil {
			t.Fatalf("ParseRole(%q): expected error", raw)
		}
	}
}

func TestRoleOrdering(t *testing.T) {
	order := []Role{RoleUser, RoleModerator, RoleAdmin, RoleSuperAdmin}
	for i, lower := range order {
		for j, higher := range order {
			got := higher.AtLeast(lower)
			want := j >= i
			if got != want {
				t.Fatalf("%s.AtLeast(%s)=%v, want %v", higher, lower, got, want)
			}
		}
	}
}

func TestAllow(t *testing.T) {
	cases := []struct {
		role Role
		perm Permission
		want bool
	}{
		{RoleUser, PermPostsRead, true},
		{RoleUser, PermPostsWrite, true},
		{RoleUser, PermPostsModerate, false},
		{RoleUser, PermSystemAdmin, false},
		{RoleModerator, PermPostsModerate, true},
		{RoleModerator, PermUsersRead, true},
		{RoleModerator, PermUsersManage, false},
		{RoleAdmin, PermUsersManage, true},
		{RoleAdmin, PermRolesManage, true},
		{RoleAdmin, PermSystemAdmin, false},
		{RoleSuperAdmin, PermSystemAdmin, true},
		{RoleSuperAdmin, PermPostsRead, true},
	}
	for _, tc := range cases {
		if got := Allow(tc.role, tc.perm); got != tc.want {
			t.Fatalf("Allow(%s, %s)=%v, want %v", tc.role, tc.perm, got, tc.want)
		}
	}
}

func TestAllowUnknownInputs(t *testing.T) {
	if Allow(Role("root"), PermPostsRead) {
		t.Fatal("unknown role must never be allowed")
	}
	if Allow(RoleSuperAdmin, Permission("posts:delete_all")) {
		t.Fatal("unknown permission must never be allowed")
	}
}

func TestMinimumRoleCoversEveryPermission(t *testing.T) {
	for _, perm := range Permissions() {
		role, ok := MinimumRole(perm)
		if !ok {
			t.Fatalf("no minimum role for %s", perm)
		}
		if !role.Valid() {
			t.Fatalf("invalid minimum role %q for %s", role, perm)
		}
		if !Allow(role, perm) {
			t.Fatalf("minimum role %s not allowed its own permission %s", role, perm)
		}
	}
}
