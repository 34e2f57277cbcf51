// Package policy holds the authorization decisions applied by account use cases.
// The checks are pure and never touch the store.
package policy

import (
	"fmt"

	"github.com/99minutos/identity-service/internal/core/domain"
)

// RequireRole allows the call iff required is one of callerRoles.
func RequireRole(callerRoles []domain.Role, required domain.Role) error {
	for _, r := range callerRoles {
		if r == required {
			return nil
		}
	}
	return fmt.Errorf("%w: %s required", domain.ErrForbidden, required)
}

// ForbidSelfTarget denies destructive operations an actor aims at their own record.
func ForbidSelfTarget(callerID, targetID string) error {
	if callerID == targetID {
		return fmt.Errorf("%w: operation not allowed on own account", domain.ErrForbidden)
	}
	return nil
}
