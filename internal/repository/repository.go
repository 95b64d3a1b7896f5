// Package repository declares the storage interfaces the service layer
// depends on. The sqlite subpackage implements them; tests substitute
// in-memory mocks.
package repository

import (
	"context"

	"github.com/sakif/gallery/internal/model"
)

// UserRepository persists account records. Users are never deleted — no
// Delete method exists on purpose.
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByUsername(ctx context.Context, username string) (*model.User, error)
}

// PostRepository persists upload metadata records.
type PostRepository interface {
	Create(ctx context.Context, post *model.Post) error
	GetByID(ctx context.Context, id string) (*model.Post, error)
	// List returns every post, newest first.
	List(ctx context.Context) ([]model.Post, error)
	// UpdateCaption sets the caption and touches nothing else.
	UpdateCaption(ctx context.Context, id string, caption *string) error
	Delete(ctx context.Context, id string) error
}
