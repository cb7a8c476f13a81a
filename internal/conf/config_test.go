package conf

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadWritesAndReadsDefaultConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	settings, err := Load(path)
	require.NoError(t, err)
	require.NotNil(t, settings)

	assert.Equal(t, 80, settings.Hub.Port)
	assert.Equal(t, 30*time.Second, settings.Hub.AdInterval)
	assert.Equal(t, 100, settings.Security.RateLimit.Requests)
	assert.Equal(t, 15*time.Minute, settings.Security.RateLimit.Window)
}

func TestValidateFixesOutOfRangePort(t *testing.T) {
	s := &Settings{}
	s.Hub.Port = 99999
	Validate(s)
	assert.Equal(t, 80, s.Hub.Port)
}

func TestValidateKeepsGoodValues(t *testing.T) {
	s := &Settings{}
	s.Hub.Port = 8080
	s.Hub.AdInterval = 10 * time.Second
	s.Hub.RequestDeadline = 2 * time.Second
	s.Hub.ShutdownGrace = 1 * time.Second
	s.Security.RateLimit.Requests = 50
	s.Security.RateLimit.Window = 5 * time.Minute
	s.Security.AllowedOrigins = []string{"https://example.com"}
	s.Security.BodyLimit = "1M"

	Validate(s)

	assert.Equal(t, 8080, s.Hub.Port)
	assert.Equal(t, []string{"https://example.com"}, s.Security.AllowedOrigins)
	assert.Equal(t, "1M", s.Security.BodyLimit)
}

func TestDeriveHubIDIsStable(t *testing.T) {
	id1, err := DeriveHubID()
	if err != nil {
		t.Skipf("no usable network interface in this environment: %v", err)
	}
	id2, err := DeriveHubID()
	require.NoError(t, err)
	assert.Equal(t, id1, id2)
	assert.Len(t, id1, 32)
}
