package session

import (
	"encoding/json"
	"strings"

	"github.com/trezcool/practicehub/core"
)

// Role is the closed set of PracticeHub roles.
type Role uint8

const (
	RoleNone Role = iota
	RoleAdmin
	RoleTeacher
	RoleStudent
)

var AllRoles = []Role{RoleAdmin, RoleTeacher, RoleStudent}

// ParseRole is case-insensitive. Unknown values map to RoleNone.
func ParseRole(s string) Role {
	switch strings.ToLower(core.CleanString(s)) {
	case "admin":
		return RoleAdmin
	case "teacher":
		return RoleTeacher
	case "student":
		return RoleStudent
	default:
		return RoleNone
	}
}

func (r Role) String() string {
	switch r {
	case RoleAdmin:
		return "admin"
	case RoleTeacher:
		return "teacher"
	case RoleStudent:
		return "student"
	case RoleNone:
		return ""
	}
	return ""
}

// HomePath returns the dashboard path of the role; unknown roles land on the root view.
func HomePath(r Role) string {
	switch r {
	case RoleAdmin:
		return core.PathAdmin
	case RoleTeacher:
		return core.PathTeacher
	case RoleStudent:
		return core.PathStudent
	case RoleNone:
		return core.PathRoot
	}
	return core.PathRoot
}

// In reports whether r is one of roles.
func (r Role) In(roles ...Role) bool {
	for _, role := range roles {
		if r == role {
			return true
		}
	}
	return false
}

func (r Role) MarshalJSON() ([]byte, error) {
	if r == RoleNone {
		return []byte("null"), nil
	}
	return json.Marshal(r.String())
}

func (r *Role) UnmarshalJSON(data []byte) error {
	var s *string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == nil {
		*r = RoleNone
		return nil
	}
	*r = ParseRole(*s)
	return nil
}
