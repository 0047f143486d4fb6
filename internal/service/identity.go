package service

import (
	"errors"

	"github.com/assessly/assess-api/internal/models"
)

// ErrUnauthenticated indicates the caller carries no identity.
var ErrUnauthenticated = errors.New("unauthenticated")

// ErrForbidden indicates the caller lacks the required role or ownership.
var ErrForbidden = errors.New("forbidden")

// Identity is the authenticated caller, passed explicitly into every service
// operation. The zero value is an unauthenticated caller.
type Identity struct {
	ID   uint
	Role string
}

// Authenticated reports whether the identity belongs to a signed-in user.
func (i Identity) Authenticated() bool {
	return i.ID != 0
}

// IsSuperAdmin reports whether the caller holds the super admin role.
func (i Identity) IsSuperAdmin() bool {
	return i.Role == models.RoleSuperAdmin
}

// RequireAuthenticated fails with ErrUnauthenticated for anonymous callers.
func RequireAuthenticated(caller Identity) error {
	if !caller.Authenticated() {
		return ErrUnauthenticated
	}
	return nil
}

// RequireRole ensures the caller is authenticated and holds one of the
// allowed roles.
func RequireRole(caller Identity, allowed ...string) error {
	if err := RequireAuthenticated(caller); err != nil {
		return err
	}
	for _, role := range allowed {
		if caller.Role == role {
			return nil
		}
	}
	return ErrForbidden
}

// RequireAnyAdmin admits super admins and course admins.
func RequireAnyAdmin(caller Identity) error {
	return RequireRole(caller, models.RoleSuperAdmin, models.RoleCourseAdmin)
}

// RequireSuperAdmin admits super admins only.
func RequireSuperAdmin(caller Identity) error {
	return RequireRole(caller, models.RoleSuperAdmin)
}
