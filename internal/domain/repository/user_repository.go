package repository

import (
	"context"

	"github.com/jhoicas/nfse-api/internal/domain/entity"
)

// UserRepository define el puerto de persistencia para operadores.
type UserRepository interface {
	// Create ErrDuplicate si el email ya existe.
	Create(ctx context.Context, user *entity.User) error
	// GetByEmail (nil, nil) si no existe.
	GetByEmail(ctx context.Context, email string) (*entity.User, error)
	CountAdmins(ctx context.Context) (int, error)
}
