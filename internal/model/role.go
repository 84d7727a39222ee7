package model

import "strings"

// Role is a user's primary role in the school directory.
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleTeacher   Role = "teacher"
	RoleStudent   Role = "student"
	RoleParent    Role = "parent"
	RoleCounselor Role = "counselor"
	RoleRegistrar Role = "registrar"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleTeacher, RoleStudent, RoleParent, RoleCounselor, RoleRegistrar:
		return true
	}
	return false
}

// RoleSet is an explicit set of role tags, used as a broadcast audience.
// Stored as a comma-joined string column so adding roles never collides
// with existing rows the way a numeric bitmask would.
type RoleSet []Role

// AudienceAll targets every account regardless of role.
const AudienceAll = "all"

// ParseRoleSet parses a comma-joined audience column value.
func ParseRoleSet(s string) RoleSet {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	set := make(RoleSet, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		set = append(set, Role(p))
	}
	return set
}

// String joins the set back into its column form.
func (rs RoleSet) String() string {
	parts := make([]string, 0, len(rs))
	for _, r := range rs {
		parts = append(parts, string(r))
	}
	return strings.Join(parts, ",")
}

// Contains reports whether the set includes the given role tag.
func (rs RoleSet) Contains(r Role) bool {
	for _, x := range rs {
		if x == r {
			return true
		}
	}
	return false
}

// IsAll reports whether the audience short-circuits to every user.
func (rs RoleSet) IsAll() bool {
	for _, x := range rs {
		if string(x) == AudienceAll {
			return true
		}
	}
	return false
}
