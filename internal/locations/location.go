// internal/locations/location.go
package locations

import "strings"

// Location is an immutable entry of the dataset: a place, the theme it belongs
// to, and the roles players may be handed there.
type Location struct {
	Name     string   `json:"name"`
	Category string   `json:"category"`
	Roles    []string `json:"roles"`
}

// Role is a parsed role string. "Captain (gives orders)" becomes
// Role{Name: "Captain", Description: "gives orders"}.
type Role struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// ParseRole splits a role string into its name and optional parenthetical
// description. Text outside a trailing "(...)" group is the name.
func ParseRole(raw string) Role {
	s := strings.TrimSpace(raw)
	if !strings.HasSuffix(s, ")") {
		return Role{Name: s}
	}
	open := strings.LastIndex(s, "(")
	if open <= 0 {
		return Role{Name: s}
	}
	return Role{
		Name:        strings.TrimSpace(s[:open]),
		Description: strings.TrimSpace(s[open+1 : len(s)-1]),
	}
}

// SameName compares two location or role names the way guesses are judged:
// case-insensitive, surrounding whitespace ignored.
func SameName(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
