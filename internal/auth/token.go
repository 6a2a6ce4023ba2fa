package auth

import (
	"time"
)

// TokenPrefix marks plaintext island API tokens.
const TokenPrefix = "island_"

// APIToken represents a stored API token configuration.
type APIToken struct {
	// TokenID is the unique identifier for this token.
	TokenID string `yaml:"token_id" json:"token_id" header:"ID"`

	// TokenHash is the bcrypt hash of the token (never store plaintext).
	TokenHash string `yaml:"token_hash" json:"-" header:"-"`

	// Permissions is the list of permissions granted to this token.
	Permissions []Permission `yaml:"permissions" json:"permissions" header:"PERMISSIONS"`

	// CreatedAt is when the token was created.
	CreatedAt time.Time `yaml:"created_at" json:"created_at" header:"CREATED"`

	// LastUsedAt is when the token was last used.
	LastUsedAt *time.Time `yaml:"last_used_at,omitempty" json:"last_used_at,omitempty" header:"LAST USED"`

	// Revoked indicates if the token has been revoked.
	Revoked bool `yaml:"revoked,omitempty" json:"revoked,omitempty" header:"REVOKED"`
}

// TokenInfo is returned after token creation (contains plaintext token once).
type TokenInfo struct {
	// TokenID is the unique identifier for this token.
	TokenID string `json:"token_id" yaml:"token_id" header:"ID"`

	// Token is the plaintext token value (shown only once after creation).
	Token string `json:"token" yaml:"token" header:"TOKEN"`

	// Permissions is the list of permissions granted to this token.
	Permissions []Permission `json:"permissions" yaml:"permissions" header:"PERMISSIONS"`
}

// TokensFile represents the structure of the tokens.yaml file.
type TokensFile struct {
	// Version is the schema version for the tokens file.
	Version string `yaml:"version"`

	// Tokens is the list of API tokens.
	Tokens []APIToken `yaml:"tokens"`
}
