package discovery

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeInfo(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   any
		want    Info
		wantErr string
	}{
		{
			name: "TXT attributes",
			input: map[string]string{
				"location_name":         "Home",
				"base_url":              "http://192.168.1.10:8123",
				"version":               "2024.10.1",
				"requires_api_password": "True",
				"uuid":                  "0a1b2c",
				"internal_url":          "http://homeassistant.local:8123",
				"external_url":          "",
			},
			want: Info{
				LocationName:        "Home",
				BaseURL:             "http://192.168.1.10:8123",
				Version:             "2024.10.1",
				RequiresAPIPassword: true,
				UUID:                "0a1b2c",
				InternalURL:         "http://homeassistant.local:8123",
			},
		},
		{
			name: "JSON document with native types",
			input: map[string]any{
				"location_name":         "Cabin",
				"base_url":              "https://cabin.example.com",
				"requires_api_password": false,
				"installation_type":     "Home Assistant OS",
			},
			want: Info{
				LocationName: "Cabin",
				BaseURL:      "https://cabin.example.com",
			},
		},
		{
			name:    "missing location name",
			input:   map[string]string{"base_url": "http://ha.local:8123"},
			wantErr: "location_name is required",
		},
		{
			name:    "missing base url",
			input:   map[string]string{"location_name": "Home"},
			wantErr: "base_url is required",
		},
		{
			name:    "relative base url",
			input:   map[string]string{"location_name": "Home", "base_url": "/api"},
			wantErr: "absolute http or https URL",
		},
		{
			name:    "unsupported scheme",
			input:   map[string]string{"location_name": "Home", "base_url": "ftp://ha.local"},
			wantErr: "absolute http or https URL",
		},
		{
			name:    "bad boolean",
			input:   map[string]string{"location_name": "Home", "base_url": "http://ha.local", "requires_api_password": "maybe"},
			wantErr: "requires_api_password",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := DecodeInfo(tt.input)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrPayloadUnparseable)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestInfoFromEvent(t *testing.T) {
	t.Parallel()

	addresses := []string{"192.168.1.10"}
	info, err := infoFromEvent(Event{
		Kind:      EventFound,
		Instance:  "Home",
		Host:      "homeassistant.local",
		Port:      8123,
		Addresses: addresses,
		Attributes: map[string]string{
			"location_name": "Home",
			"base_url":      "http://192.168.1.10:8123",
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "Home", info.Instance)
	assert.Equal(t, "homeassistant.local", info.Host)
	assert.Equal(t, 8123, info.Port)
	assert.Equal(t, addresses, info.Addresses)

	// The event's slice is copied
	addresses[0] = "10.0.0.1"
	assert.Equal(t, "192.168.1.10", info.Addresses[0])
}

func TestPayload(t *testing.T) {
	t.Parallel()

	got := payload(Event{
		Instance:   "Broken",
		Host:       "broken.local",
		Port:       8123,
		Attributes: map[string]string{"version": "1.0"},
	})

	assert.Equal(t, map[string]any{
		"name":    "Broken",
		"host":    "broken.local",
		"port":    "8123",
		"version": "1.0",
	}, got)
}
