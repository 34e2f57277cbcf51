package ports

import (
	"context"

	"github.com/99minutos/identity-service/internal/core/domain"
)

// RegisterInput carries the data needed to create an account.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

// LoginInput carries login credentials.
type LoginInput struct {
	Email    string
	Password string
}

// UpdateInput replaces a user's profile. Password is only used when ChangePassword is set.
type UpdateInput struct {
	ID             string
	Name           string
	Email          string
	Password       string
	ChangePassword bool
}

// AssignRoleInput grants Role to TargetID on behalf of CallerID.
type AssignRoleInput struct {
	CallerID string
	TargetID string
	Role     string
}

// AccountService defines the account lifecycle use cases.
type AccountService interface {
	Register(ctx context.Context, in RegisterInput) (*domain.User, error)
	Login(ctx context.Context, in LoginInput) (string, *domain.User, error)
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetUser(ctx context.Context, callerID, targetID string) (*domain.User, error)
	Update(ctx context.Context, in UpdateInput) (*domain.User, error)
	AssignRole(ctx context.Context, in AssignRoleInput) (*domain.User, error)
	Delete(ctx context.Context, callerID, targetID string) error
	ListAll(ctx context.Context, callerID string) ([]domain.PublicUser, error)
}
