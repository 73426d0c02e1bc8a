package postgres

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"

	"seat-marketplace/internal/domain"
	"seat-marketplace/internal/domain/model"
	"seat-marketplace/internal/domain/ports/repository"
)

var _ repository.GroupRepository = (*groupRepo)(nil)

type groupRepo struct {
	pool *pgxpool.Pool
}

func NewGroupRepo(pool *pgxpool.Pool) *groupRepo {
	return &groupRepo{pool: pool}
}

// Save upserts the group and records its owner as a member with the owner role.
func (r *groupRepo) Save(ctx context.Context, tx repository.Tx, g *model.Group) error {
	if g.ID == "" || g.OwnerID == "" {
		return domain.ErrInvalidArgument
	}
	const q = `
INSERT INTO groups (id, owner_id, name) VALUES ($1,$2,$3)
ON CONFLICT (id) DO UPDATE SET owner_id=$2, name=$3;`
	if _, err := execSQL(ctx, r.pool, tx, q, g.ID, g.OwnerID, g.Name); err != nil {
		return err
	}
	return r.AddMember(ctx, tx, g.ID, g.OwnerID, model.GroupRoleOwner)
}

func (r *groupRepo) AddMember(ctx context.Context, tx repository.Tx, groupID, userID string, role model.GroupRole) error {
	const q = `
INSERT INTO group_members (group_id, user_id, role) VALUES ($1,$2,$3)
ON CONFLICT (group_id, user_id) DO UPDATE SET role=$3;`
	_, err := execSQL(ctx, r.pool, tx, q, groupID, userID, string(role))
	return err
}

func (r *groupRepo) OwnerOf(ctx context.Context, tx repository.Tx, groupID string) (string, error) {
	row, err := pickRow(ctx, r.pool, tx, `SELECT owner_id FROM groups WHERE id=$1`, groupID)
	if err != nil {
		return "", err
	}
	var owner string
	if err := row.Scan(&owner); err != nil {
		return "", scanErr(err)
	}
	return owner, nil
}

func (r *groupRepo) RoleOf(ctx context.Context, tx repository.Tx, groupID, userID string) (model.GroupRole, error) {
	row, err := pickRow(ctx, r.pool, tx, `SELECT role FROM group_members WHERE group_id=$1 AND user_id=$2`, groupID, userID)
	if err != nil {
		return "", err
	}
	var role string
	if err := row.Scan(&role); err != nil {
		return "", scanErr(err)
	}
	return model.GroupRole(role), nil
}
