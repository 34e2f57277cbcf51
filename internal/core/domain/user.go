package domain

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Role is a permission tag held by a user, always in the normalized "ROLE_<NAME>" form.
type Role string

const (
	RoleUser  Role = "ROLE_USER"
	RoleAdmin Role = "ROLE_ADMIN"

	rolePrefix = "ROLE_"
)

var roleNamePattern = regexp.MustCompile(`^[A-Z0-9_]+$`)

// NormalizeRole turns a user supplied role name ("admin", "Admin", "ROLE_ADMIN")
// into its canonical tag. It is the only place role tags are built.
func NormalizeRole(name string) (Role, error) {
	upper := strings.ToUpper(strings.TrimSpace(name))
	upper = strings.TrimPrefix(upper, rolePrefix)
	if upper == "" || !roleNamePattern.MatchString(upper) {
		return "", fmt.Errorf("%w: %q", ErrInvalidRole, name)
	}
	return Role(rolePrefix + upper), nil
}

// User is a registered account.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Roles        []Role    `json:"roles"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// HasRole reports whether the user holds r.
func (u *User) HasRole(r Role) bool {
	for _, held := range u.Roles {
		if held == r {
			return true
		}
	}
	return false
}

// AddRole appends r unless already held. It returns false when nothing changed.
func (u *User) AddRole(r Role) bool {
	if u.HasRole(r) {
		return false
	}
	u.Roles = append(u.Roles, r)
	return true
}

// Public returns the outward projection of the user.
func (u *User) Public() PublicUser {
	roles := make([]Role, len(u.Roles))
	copy(roles, u.Roles)
	return PublicUser{
		ID:    u.ID,
		Name:  u.Name,
		Email: u.Email,
		Roles: roles,
	}
}

// PublicUser is the only user shape that leaves the service. It never carries credential material.
type PublicUser struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Roles []Role `json:"roles"`
}

// NormalizeEmail canonicalizes an email used as a login key.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
