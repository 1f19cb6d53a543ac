package identity

import (
	"context"
	"fmt"
)

// Identity is a directory-resolved principal. Immutable once resolved.
type Identity struct {
	Name      string `json:"name"`
	Superuser bool   `json:"superuser"`
}

// Label returns the privilege prefix used in transition audit lines:
// the literal "Superuser " for superusers, empty otherwise.
func (i Identity) Label() string {
	if i.Superuser {
		return "Superuser "
	}
	return ""
}

// Directory resolves principal names. The guard treats it as an external
// collaborator: lookups have no side effects and a miss is a hard error.
type Directory interface {
	Resolve(ctx context.Context, name string) (Identity, error)
}

// UnknownPrincipalError reports a name the directory cannot resolve.
type UnknownPrincipalError struct {
	Name string
}

func (e *UnknownPrincipalError) Error() string {
	return fmt.Sprintf("role %q does not exist", e.Name)
}
