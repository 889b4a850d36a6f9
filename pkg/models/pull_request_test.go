package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRepository_FullName(t *testing.T) {
	repo := Repository{Owner: "acme", Name: "api", Icon: ":rocket:"}
	assert.Equal(t, "acme/api", repo.FullName())
}

func TestParseReviewState(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected ReviewState
	}{
		{"approved", "APPROVED", ReviewStateApproved},
		{"changes requested", "CHANGES_REQUESTED", ReviewStateChangesRequested},
		{"commented", "COMMENTED", ReviewStateCommented},
		{"pending", "PENDING", ReviewStatePending},
		{"dismissed", "DISMISSED", ReviewStateDismissed},
		{"already lowercase", "approved", ReviewStateApproved},
		{"surrounding spaces", "  COMMENTED ", ReviewStateCommented},
		{"unknown value", "SOMETHING_ELSE", ReviewStateUnknown},
		{"empty", "", ReviewStateUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseReviewState(tt.input))
		})
	}
}
