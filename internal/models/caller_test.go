package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValidRole(t *testing.T) {
	tests := []struct {
		role Role
		want bool
	}{
		{RoleStudent, true},
		{RoleLecturer, true},
		{RoleAdmin, true},
		{"", false},
		{"janitor", false},
		{"Admin", false},
	}
	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			assert.Equal(t, tt.want, IsValidRole(tt.role))
		})
	}
}

func TestCallerIsAdmin(t *testing.T) {
	assert.True(t, Caller{UserID: 1, Role: RoleAdmin}.IsAdmin())
	assert.False(t, Caller{UserID: 1, Role: RoleLecturer}.IsAdmin())
}
