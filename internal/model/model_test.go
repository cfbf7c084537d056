package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusTransitions(t *testing.T) {
	tests := []struct {
		name string
		fn   func(string, string) bool
		from string
		to   string
		want bool
	}{
		{"topup pending to completed", CanTopupTransitionTo, TopupStatusPending, TopupStatusCompleted, true},
		{"topup completed to failed", CanTopupTransitionTo, TopupStatusCompleted, TopupStatusFailed, false},
		{"payment pending to expired", CanPaymentTransitionTo, PaymentStatusPending, PaymentStatusExpired, true},
		{"payment expired to completed", CanPaymentTransitionTo, PaymentStatusExpired, PaymentStatusCompleted, false},
		{"job printing to canceled", CanJobTransitionTo, JobStatusPrinting, JobStatusCanceled, true},
		{"job completed to canceled", CanJobTransitionTo, JobStatusCompleted, JobStatusCanceled, false},
		{"job canceled to queued", CanJobTransitionTo, JobStatusCanceled, JobStatusQueued, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.fn(tt.from, tt.to))
		})
	}
}

func TestIsJobTerminal(t *testing.T) {
	assert.True(t, IsJobTerminal(JobStatusCompleted))
	assert.True(t, IsJobTerminal(JobStatusCanceled))
	assert.False(t, IsJobTerminal(JobStatusPrinting))
	assert.False(t, IsJobTerminal(JobStatusPendingPayment))
}
