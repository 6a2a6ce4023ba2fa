package token

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/island-mesh/island/internal/auth"
)

func TestParsePermissions(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []auth.Permission
		wantErr bool
	}{
		{"single", "read", []auth.Permission{auth.PermissionRead}, false},
		{"several with spaces", "read, write", []auth.Permission{auth.PermissionRead, auth.PermissionWrite}, false},
		{"trailing comma", "admin,", []auth.Permission{auth.PermissionAdmin}, false},
		{"unknown", "read,debug", nil, true},
		{"empty", "", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parsePermissions(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
