package versions

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetVersionInfoWithValues(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		version       string
		commit        string
		buildDate     string
		wantVersion   string
		wantBuildDate string
	}{
		{
			name:          "release build",
			version:       "v1.2.0",
			commit:        "0123456789abcdef",
			buildDate:     "2025-03-01T10:00:00Z",
			wantVersion:   "v1.2.0",
			wantBuildDate: "2025-03-01 10:00:00 UTC",
		},
		{
			name:          "dev build named after commit",
			version:       "dev",
			commit:        "0123456789abcdef",
			buildDate:     "not-a-date",
			wantVersion:   "build-01234567",
			wantBuildDate: "not-a-date",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			info := getVersionInfoWithValues(tt.version, tt.commit, tt.buildDate)
			assert.Equal(t, tt.wantVersion, info.Version)
			assert.Equal(t, tt.wantBuildDate, info.BuildDate)
			assert.NotEmpty(t, info.GoVersion)
			assert.Contains(t, info.Platform, "/")
		})
	}
}

func TestUserAgent(t *testing.T) {
	t.Parallel()
	assert.True(t, strings.HasPrefix(UserAgent(), "hass-onboard/"))
}

func TestParseServerVersion(t *testing.T) {
	t.Parallel()

	tests := []struct {
		version string
		want    string
		wantErr bool
	}{
		{version: "2024.10.1", want: "2024.10.1"},
		{version: "2024.10", want: "2024.10.0"},
		{version: "2024.10.0b3", want: "2024.10.0-b3"},
		{version: "2024.11.0.dev20241001", want: "2024.11.0-dev20241001"},
		{version: "0.77.0", want: "0.77.0"},
		{version: " v0.118.5 ", want: "0.118.5"},
		{version: "", wantErr: true},
		{version: "latest", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.version, func(t *testing.T) {
			t.Parallel()

			v, err := ParseServerVersion(tt.version)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, v.String())
		})
	}
}

func TestIsSupportedServer(t *testing.T) {
	t.Parallel()

	tests := []struct {
		version string
		want    bool
		wantErr bool
	}{
		{version: "2024.10.1", want: true},
		{version: "0.77.0", want: true},
		{version: "0.76.2", want: false},
		{version: "0.77.0b1", want: false},
		{version: "garbage", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.version, func(t *testing.T) {
			t.Parallel()

			got, err := IsSupportedServer(tt.version)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
