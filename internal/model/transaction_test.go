package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransitionTo(t *testing.T) {
	tests := []struct {
		name    string
		from    string
		to      string
		allowed bool
	}{
		{"pending到processing", TransactionStatusPending, TransactionStatusProcessing, true},
		{"pending直达completed", TransactionStatusPending, TransactionStatusCompleted, true},
		{"pending直达failed", TransactionStatusPending, TransactionStatusFailed, true},
		{"pending直达cancelled", TransactionStatusPending, TransactionStatusCancelled, true},
		{"processing到completed", TransactionStatusProcessing, TransactionStatusCompleted, true},
		{"processing到failed", TransactionStatusProcessing, TransactionStatusFailed, true},
		{"processing不能回退pending", TransactionStatusProcessing, TransactionStatusPending, false},
		{"completed不能再变更", TransactionStatusCompleted, TransactionStatusFailed, false},
		{"failed不能翻成completed", TransactionStatusFailed, TransactionStatusCompleted, false},
		{"cancelled不能再变更", TransactionStatusCancelled, TransactionStatusCompleted, false},
		{"未知状态不允许任何流转", "unknown", TransactionStatusCompleted, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.allowed, CanTransitionTo(tt.from, tt.to))
		})
	}
}

func TestIsTerminalStatus(t *testing.T) {
	assert.True(t, IsTerminalStatus(TransactionStatusCompleted))
	assert.True(t, IsTerminalStatus(TransactionStatusFailed))
	assert.True(t, IsTerminalStatus(TransactionStatusCancelled))
	assert.False(t, IsTerminalStatus(TransactionStatusPending))
	assert.False(t, IsTerminalStatus(TransactionStatusProcessing))
}
