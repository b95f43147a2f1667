package validator

import (
	"fmt"
	"strings"
)

// Role is the semantic category of a displayed string. Some roles carry a
// maximum length so translations cannot break the layout.
type Role int

const (
	RoleNone Role = iota
	RoleLabel
	RoleButton
	RoleChip
	RoleTitle
	RoleCaption
	RoleError
)

var roleNames = map[Role]string{
	RoleNone:    "none",
	RoleLabel:   "label",
	RoleButton:  "button",
	RoleChip:    "chip",
	RoleTitle:   "title",
	RoleCaption: "caption",
	RoleError:   "error",
}

var roleLimits = map[Role]int{
	RoleButton:  16,
	RoleChip:    12,
	RoleTitle:   48,
	RoleCaption: 24,
	RoleError:   32,
}

// MaxChars returns the character cap for the role, if any.
func (r Role) MaxChars() (int, bool) {
	n, ok := roleLimits[r]
	return n, ok
}

func (r Role) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return fmt.Sprintf("role(%d)", int(r))
}

// ParseRole maps a role name (case-insensitive) to a Role. The empty string
// is RoleNone.
func ParseRole(s string) (Role, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return RoleNone, nil
	}
	for r, name := range roleNames {
		if name == s {
			return r, nil
		}
	}
	return RoleNone, fmt.Errorf("unknown role %q", s)
}
