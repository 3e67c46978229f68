package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckVersionCompatibility(t *testing.T) {
	tests := []struct {
		name           string
		libraryVersion string
		configVersion  string
		expectError    bool
		errorContains  string
	}{
		{
			name:           "exact match",
			libraryVersion: "1.2.0",
			configVersion:  "1.2.0",
		},
		{
			name:           "config patch higher",
			libraryVersion: "1.2.0",
			configVersion:  "1.2.5",
		},
		{
			name:           "config minor older",
			libraryVersion: "1.3.0",
			configVersion:  "1.2.4",
		},
		{
			name:           "v prefix",
			libraryVersion: "v0.3.0",
			configVersion:  "v0.3.1",
		},
		{
			name:           "config minor newer",
			libraryVersion: "1.2.0",
			configVersion:  "1.3.0",
			expectError:    true,
			errorContains:  "minor version mismatch",
		},
		{
			name:           "major version differs",
			libraryVersion: "2.0.0",
			configVersion:  "1.2.0",
			expectError:    true,
			errorContains:  "major version mismatch",
		},
		{
			name:           "library is main",
			libraryVersion: "main",
			configVersion:  "9.0.0",
		},
		{
			name:           "config without version",
			libraryVersion: "1.2.0",
			configVersion:  "",
		},
		{
			name:           "invalid config version",
			libraryVersion: "1.2.0",
			configVersion:  "latest",
			expectError:    true,
			errorContains:  "invalid config version",
		},
		{
			name:           "invalid library version",
			libraryVersion: "dev-build",
			configVersion:  "1.2.0",
			expectError:    true,
			errorContains:  "invalid library version",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckVersionCompatibility(tt.libraryVersion, tt.configVersion)
			if tt.expectError {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorContains)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestGetVersion(t *testing.T) {
	assert.Equal(t, Version, GetVersion())
	assert.NotEmpty(t, GetVersion())
}
