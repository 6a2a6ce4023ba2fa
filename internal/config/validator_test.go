package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIslandConfig_Validate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*IslandConfig)
		wantField string
	}{
		{name: "defaults are valid"},
		{name: "port zero", mutate: func(c *IslandConfig) { c.Server.Port = 0 }, wantField: "server.port"},
		{name: "port too high", mutate: func(c *IslandConfig) { c.Server.Port = 70000 }, wantField: "server.port"},
		{name: "empty data dir", mutate: func(c *IslandConfig) { c.DataDir = "" }, wantField: "data_dir"},
		{name: "unknown mode", mutate: func(c *IslandConfig) { c.Mode.Initial = "stealth" }, wantField: "mode.initial"},
		{name: "negative index ttl", mutate: func(c *IslandConfig) { c.Plugins.IndexTTL = -time.Second }, wantField: "plugins.index_ttl"},
		{name: "zero jwt ttl", mutate: func(c *IslandConfig) { c.Auth.JWTTTL = 0 }, wantField: "auth.jwt_ttl"},
		{name: "short jwt secret", mutate: func(c *IslandConfig) { c.Auth.JWTSecret = "short" }, wantField: "auth.jwt_secret"},
		{name: "cert without key", mutate: func(c *IslandConfig) { c.Server.TLS.CertFile = "/tls/cert.pem" }, wantField: "server.tls"},
		{name: "repository not a url", mutate: func(c *IslandConfig) { c.Plugins.RepositoryURL = "ftp:/x" }, wantField: "plugins.repository_url"},
		{
			name: "tls pair is valid",
			mutate: func(c *IslandConfig) {
				c.Server.TLS = TLSConfig{CertFile: "/tls/cert.pem", KeyFile: "/tls/key.pem"}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultIslandConfig("/home/op")
			if tt.mutate != nil {
				tt.mutate(cfg)
			}
			err := cfg.Validate()
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			var multi *MultiValidationError
			require.ErrorAs(t, err, &multi)
			require.Len(t, multi.Errors, 1)
			assert.Equal(t, tt.wantField, multi.Errors[0].Field)
		})
	}
}

func TestMultiValidationError_Error(t *testing.T) {
	cfg := DefaultIslandConfig("/home/op")
	cfg.Server.Port = 0
	cfg.Mode.Initial = ""

	err := cfg.Validate()
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "validation failed with 2 errors"))
	assert.Contains(t, err.Error(), "mode must be one of: unset, ransomware, advanced")

	assert.Equal(t, "no validation errors", (&MultiValidationError{}).Error())
}
