package repository

import (
	"context"

	"seat-marketplace/internal/domain/model"
)

// -----------------------------
// Users and groups
// -----------------------------

type UserRepository interface {
	Save(ctx context.Context, tx Tx, u *model.User) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.User, error)
	FindByTelegramID(ctx context.Context, tx Tx, tgID int64) (*model.User, error)
}

type GroupRepository interface {
	Save(ctx context.Context, tx Tx, g *model.Group) error
	AddMember(ctx context.Context, tx Tx, groupID, userID string, role model.GroupRole) error
	// OwnerOf returns the owner's user id, or ErrNotFound for an unknown group.
	OwnerOf(ctx context.Context, tx Tx, groupID string) (string, error)
	// RoleOf returns the user's role in groupID, or ErrNotFound when they are not a member.
	RoleOf(ctx context.Context, tx Tx, groupID, userID string) (model.GroupRole, error)
}
