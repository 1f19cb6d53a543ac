package identity

import "context"

// StaticDirectory is an in-memory Directory built from configuration.
type StaticDirectory struct {
	principals map[string]bool
}

// NewStaticDirectory creates a directory from a name → superuser map.
func NewStaticDirectory(principals map[string]bool) *StaticDirectory {
	if principals == nil {
		principals = make(map[string]bool)
	}
	return &StaticDirectory{principals: principals}
}

// Resolve returns the identity for name, or UnknownPrincipalError.
func (d *StaticDirectory) Resolve(_ context.Context, name string) (Identity, error) {
	superuser, ok := d.principals[name]
	if !ok {
		return Identity{}, &UnknownPrincipalError{Name: name}
	}
	return Identity{Name: name, Superuser: superuser}, nil
}
