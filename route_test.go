package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *Config {
	return &Config{
		StandardMaxBytes: 50 << 20,
		ExtendedMaxBytes: 2 << 30,
		LocalAPIURL:      "http://localhost:8081",
	}
}

func TestRouteForSize(t *testing.T) {
	cfg := testConfig()

	tests := []struct {
		name string
		size int64
		want Route
	}{
		{"tiny", 1 << 20, RouteStandard},
		{"exactly standard limit", 50 << 20, RouteStandard},
		{"just over standard limit", 50<<20 + 1, RouteExtended},
		{"large", 1 << 30, RouteExtended},
		{"exactly extended limit", 2 << 30, RouteExtended},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			route, err := routeForSize(tt.size, cfg)
			require.NoError(t, err)
			assert.Equal(t, tt.want, route)
		})
	}
}

func TestRouteForSizeOverLimit(t *testing.T) {
	cfg := testConfig()

	_, err := routeForSize(2<<30+1, cfg)
	require.Error(t, err)

	var sizeErr *SizeLimitError
	require.ErrorAs(t, err, &sizeErr)
	assert.Equal(t, int64(2<<30+1), sizeErr.Size)
	assert.Equal(t, int64(2<<30), sizeErr.Limit)
}

func TestRouteForSizeExtendedNotConfigured(t *testing.T) {
	cfg := testConfig()
	cfg.LocalAPIURL = ""

	// Standard-tier sizes still work without the gateway.
	route, err := routeForSize(10<<20, cfg)
	require.NoError(t, err)
	assert.Equal(t, RouteStandard, route)

	_, err = routeForSize(100<<20, cfg)
	require.Error(t, err)

	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "TELEGRAM_LOCAL_API_URL", cfgErr.Key)
}
