package domain

import (
	"time"

	"github.com/google/uuid"
)

type WithdrawStatus string

const (
	WithdrawStatusInReview    WithdrawStatus = "in_review"
	WithdrawStatusApproved    WithdrawStatus = "approved"
	WithdrawStatusRejected    WithdrawStatus = "rejected"
	WithdrawStatusTransferred WithdrawStatus = "transferred"
)

var withdrawTransitions = map[WithdrawStatus][]WithdrawStatus{
	WithdrawStatusInReview:    {WithdrawStatusApproved, WithdrawStatusRejected},
	WithdrawStatusApproved:    {WithdrawStatusTransferred},
	WithdrawStatusRejected:    {},
	WithdrawStatusTransferred: {},
}

func (s WithdrawStatus) CanTransitionTo(next WithdrawStatus) bool {
	for _, allowed := range withdrawTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type WithdrawDecision string

const (
	WithdrawDecisionApprove WithdrawDecision = "approve"
	WithdrawDecisionReject  WithdrawDecision = "reject"
)

func (d WithdrawDecision) IsValid() bool {
	return d == WithdrawDecisionApprove || d == WithdrawDecisionReject
}

// Status returns the withdraw status a decision resolves to.
func (d WithdrawDecision) Status() WithdrawStatus {
	if d == WithdrawDecisionApprove {
		return WithdrawStatusApproved
	}
	return WithdrawStatusRejected
}

type WithdrawRequest struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	ActBy     *uuid.UUID
	Status    WithdrawStatus
	Amount    Money
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time
}
