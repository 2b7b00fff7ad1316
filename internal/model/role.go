package model

import "strings"

// Role is a studio user role.
type Role string

const (
	RoleAdmin   Role = "ADMIN"
	RoleTrainer Role = "TRAINER"
	RoleTrainee Role = "TRAINEE"
)

// ParseRole normalizes a role string case-insensitively. Unknown values are
// kept upper-cased so they still render.
func ParseRole(s string) Role {
	return Role(strings.ToUpper(strings.TrimSpace(s)))
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleTrainer, RoleTrainee:
		return true
	}
	return false
}

// Path returns the lower-case path segment used by role-scoped endpoints.
func (r Role) Path() string {
	return strings.ToLower(string(r))
}
