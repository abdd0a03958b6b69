package domain

import (
	"time"

	"github.com/google/uuid"
)

type UserRole string

const (
	UserRoleMember   UserRole = "member"
	UserRoleOperator UserRole = "operator"
)

type UserStatus string

const (
	UserStatusActive   UserStatus = "active"
	UserStatusDisabled UserStatus = "disabled"
)

type User struct {
	ID           uuid.UUID
	Email        string
	Name         string
	PasswordHash string
	Role         UserRole
	Status       UserStatus
	CreatedAt    time.Time
}

// IsActiveOperator gates platform administration: provider, currency and
// rule management.
func (u *User) IsActiveOperator() bool {
	return u.Role == UserRoleOperator && u.Status == UserStatusActive
}

// CanApproveWithdrawals is the capability gate for acting on withdraw
// requests.
func (u *User) CanApproveWithdrawals() bool {
	return u.IsActiveOperator()
}
