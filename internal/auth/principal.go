package auth

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrUnauthenticated = errors.New("no authenticated principal")

type Role string

const (
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
	RoleAdmin   Role = "admin"
)

// Principal is the verified identity attached to every request. The core
// never re-validates credentials; it only checks ownership against this.
type Principal struct {
	UserID uuid.UUID
	Name   string
	Role   Role
}

// CanActFor reports whether the principal may mutate resources owned by the
// given patient. Doctors and admins override patient ownership.
func (p Principal) CanActFor(patientID uuid.UUID) bool {
	if p.Role == RoleAdmin || p.Role == RoleDoctor {
		return true
	}
	return p.UserID == patientID
}

type contextKey struct{}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, contextKey{}, p)
}

func PrincipalFrom(ctx context.Context) (Principal, error) {
	p, ok := ctx.Value(contextKey{}).(Principal)
	if !ok {
		return Principal{}, ErrUnauthenticated
	}
	return p, nil
}
