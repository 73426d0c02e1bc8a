package model

type GroupRole string

const (
	GroupRoleOwner  GroupRole = "owner"
	GroupRoleAdmin  GroupRole = "admin"
	GroupRoleMember GroupRole = "member"
)

// CanManage reports whether the role may act on the group's money and subscriptions.
func (r GroupRole) CanManage() bool { return r == GroupRoleOwner || r == GroupRoleAdmin }

// Group is the seller side of a subscription: the owner receives the seller share.
type Group struct {
	ID      string
	OwnerID string
	Name    string
}
