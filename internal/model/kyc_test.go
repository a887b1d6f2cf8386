package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanAdvanceKYC(t *testing.T) {
	tests := []struct {
		name    string
		from    string
		to      string
		allowed bool
	}{
		{"pending到in_progress", KYCStatusPending, KYCStatusInProgress, true},
		{"pending直达approved", KYCStatusPending, KYCStatusApproved, true},
		{"in_progress到approved", KYCStatusInProgress, KYCStatusApproved, true},
		{"in_progress到rejected", KYCStatusInProgress, KYCStatusRejected, true},
		{"in_progress到expired", KYCStatusInProgress, KYCStatusExpired, true},
		{"in_progress不能回退pending", KYCStatusInProgress, KYCStatusPending, false},
		{"approved不能再变更", KYCStatusApproved, KYCStatusRejected, false},
		{"rejected不能翻成approved", KYCStatusRejected, KYCStatusApproved, false},
		{"not_started不落库也不参与流转", KYCStatusNotStarted, KYCStatusPending, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.allowed, CanAdvanceKYC(tt.from, tt.to))
		})
	}
}

func TestIsKYCTerminalStatus(t *testing.T) {
	assert.True(t, IsKYCTerminalStatus(KYCStatusApproved))
	assert.True(t, IsKYCTerminalStatus(KYCStatusRejected))
	assert.True(t, IsKYCTerminalStatus(KYCStatusExpired))
	assert.False(t, IsKYCTerminalStatus(KYCStatusPending))
	assert.False(t, IsKYCTerminalStatus(KYCStatusInProgress))
}
