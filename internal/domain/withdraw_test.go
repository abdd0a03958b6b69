package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWithdrawStatus_Transitions(t *testing.T) {
	tests := []struct {
		from    WithdrawStatus
		to      WithdrawStatus
		allowed bool
	}{
		{WithdrawStatusInReview, WithdrawStatusApproved, true},
		{WithdrawStatusInReview, WithdrawStatusRejected, true},
		{WithdrawStatusInReview, WithdrawStatusTransferred, false},
		{WithdrawStatusApproved, WithdrawStatusTransferred, true},
		{WithdrawStatusApproved, WithdrawStatusRejected, false},
		{WithdrawStatusRejected, WithdrawStatusApproved, false},
		{WithdrawStatusTransferred, WithdrawStatusInReview, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.allowed, tt.from.CanTransitionTo(tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestWithdrawDecision(t *testing.T) {
	assert.Equal(t, WithdrawStatusApproved, WithdrawDecisionApprove.Status())
	assert.Equal(t, WithdrawStatusRejected, WithdrawDecisionReject.Status())
	assert.True(t, WithdrawDecisionApprove.IsValid())
	assert.False(t, WithdrawDecision("escalate").IsValid())
}
