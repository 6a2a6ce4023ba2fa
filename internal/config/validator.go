package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/island-mesh/island/internal/island/models"
)

// ValidationError represents a single validation error.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// MultiValidationError represents multiple validation errors.
type MultiValidationError struct {
	Errors []ValidationError
}

// Error implements the error interface.
func (e *MultiValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "no validation errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}

	var builder strings.Builder
	fmt.Fprintf(&builder, "validation failed with %d errors:\n", len(e.Errors))
	for i, err := range e.Errors {
		fmt.Fprintf(&builder, "  %d. %s\n", i+1, err.Error())
	}
	return builder.String()
}

// Validate validates IslandConfig.
func (c *IslandConfig) Validate() error {
	var errs []ValidationError
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if c.Version == "" {
		add("version", "version is required")
	}
	if c.DataDir == "" {
		add("data_dir", "data directory is required")
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		add("server.port", "port must be between 1 and 65535")
	}
	if c.Server.ReadHeaderTimeout <= 0 {
		add("server.read_header_timeout", "read header timeout must be positive")
	}
	if (c.Server.TLS.CertFile == "") != (c.Server.TLS.KeyFile == "") {
		add("server.tls", "cert_file and key_file must be set together")
	}

	if c.Auth.JWTTTL <= 0 {
		add("auth.jwt_ttl", "jwt ttl must be positive")
	}
	if c.Auth.JWTSecret != "" && len(c.Auth.JWTSecret) < 32 {
		add("auth.jwt_secret", "jwt secret must be at least 32 bytes")
	}
	if c.Auth.Require && c.Auth.TokensFile == "" {
		add("auth.tokens_file", "tokens file is required when auth is required")
	}

	if _, err := models.ParseIslandMode(c.Mode.Initial); err != nil {
		add("mode.initial", "mode must be one of: %s", strings.Join(modeNames(), ", "))
	}

	if u, err := url.Parse(c.Plugins.RepositoryURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		add("plugins.repository_url", "repository url must be an http(s) URL")
	}
	if c.Plugins.IndexTTL <= 0 {
		add("plugins.index_ttl", "index ttl must be positive")
	}

	if len(errs) > 0 {
		return &MultiValidationError{Errors: errs}
	}
	return nil
}

func modeNames() []string {
	names := make([]string, 0, len(models.IslandModes))
	for _, m := range models.IslandModes {
		names = append(names, string(m))
	}
	return names
}
