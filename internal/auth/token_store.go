package auth

import (
	"bytes"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"

	"github.com/island-mesh/island/internal/safe"
)

// ErrInvalidToken is returned for unknown, revoked or malformed credentials.
var ErrInvalidToken = errors.New("invalid token")

// TokenStore manages API tokens with in-memory caching and file persistence.
type TokenStore struct {
	mu       sync.RWMutex
	tokens   map[string]*APIToken // tokenID -> token
	filePath string               // Path to tokens.yaml
	logger   zerolog.Logger
}

// NewTokenStore creates a token store. If filePath is set, tokens are loaded
// from and persisted to that file.
func NewTokenStore(filePath string, logger zerolog.Logger) (*TokenStore, error) {
	ts := &TokenStore{
		tokens:   make(map[string]*APIToken),
		filePath: filePath,
		logger:   logger.With().Str("component", "token_store").Logger(),
	}
	if err := ts.loadFromFile(); err != nil {
		return nil, err
	}
	return ts, nil
}

// GenerateToken creates a new API token with the given ID and permissions.
// Returns the token info including the plaintext token (shown only once).
func (ts *TokenStore) GenerateToken(tokenID string, permissions []Permission) (*TokenInfo, error) {
	if tokenID == "" {
		return nil, fmt.Errorf("token ID must not be empty")
	}
	for _, p := range permissions {
		if ParsePermission(string(p)) == "" {
			return nil, fmt.Errorf("unknown permission %q", p)
		}
	}

	ts.mu.Lock()
	defer ts.mu.Unlock()

	if _, exists := ts.tokens[tokenID]; exists {
		return nil, fmt.Errorf("token with ID %q already exists", tokenID)
	}

	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return nil, fmt.Errorf("failed to generate random token: %w", err)
	}
	plainToken := base64.RawURLEncoding.EncodeToString(tokenBytes)

	hash, err := bcrypt.GenerateFromPassword([]byte(plainToken), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash token: %w", err)
	}

	ts.tokens[tokenID] = &APIToken{
		TokenID:     tokenID,
		TokenHash:   string(hash),
		Permissions: permissions,
		CreatedAt:   time.Now().UTC(),
	}

	if err := ts.saveToFile(); err != nil {
		// Remove from memory if persistence fails.
		delete(ts.tokens, tokenID)
		return nil, fmt.Errorf("failed to persist token: %w", err)
	}

	return &TokenInfo{
		TokenID:     tokenID,
		Token:       TokenPrefix + plainToken,
		Permissions: permissions,
	}, nil
}

// ValidateToken checks a plaintext token and returns a copy of the stored token if valid.
func (ts *TokenStore) ValidateToken(token string) (*APIToken, error) {
	plainToken, ok := strings.CutPrefix(token, TokenPrefix)
	if !ok || plainToken == "" {
		return nil, ErrInvalidToken
	}

	ts.mu.RLock()
	var matched *APIToken
	for _, stored := range ts.tokens {
		if stored.Revoked {
			continue
		}
		if err := bcrypt.CompareHashAndPassword([]byte(stored.TokenHash), []byte(plainToken)); err == nil {
			matched = stored
			break
		}
	}
	ts.mu.RUnlock()

	if matched == nil {
		return nil, ErrInvalidToken
	}
	return ts.updateLastUsed(matched.TokenID), nil
}

// GetToken returns a copy of a token by ID (without validation).
func (ts *TokenStore) GetToken(tokenID string) (*APIToken, bool) {
	ts.mu.RLock()
	defer ts.mu.RUnlock()

	token, exists := ts.tokens[tokenID]
	if !exists {
		return nil, false
	}
	c := *token
	return &c, true
}

// ListTokens returns all non-revoked tokens ordered by ID.
func (ts *TokenStore) ListTokens() []*APIToken {
	ts.mu.RLock()
	defer ts.mu.RUnlock()

	result := make([]*APIToken, 0, len(ts.tokens))
	for _, t := range ts.tokens {
		if !t.Revoked {
			c := *t
			result = append(result, &c)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].TokenID < result[j].TokenID })
	return result
}

// RevokeToken marks a token as revoked.
func (ts *TokenStore) RevokeToken(tokenID string) error {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	token, exists := ts.tokens[tokenID]
	if !exists {
		return fmt.Errorf("token with ID %q not found", tokenID)
	}

	token.Revoked = true
	if err := ts.saveToFile(); err != nil {
		token.Revoked = false
		return fmt.Errorf("failed to persist token revocation: %w", err)
	}
	return nil
}

// DeleteToken permanently removes a token.
func (ts *TokenStore) DeleteToken(tokenID string) error {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	token, exists := ts.tokens[tokenID]
	if !exists {
		return fmt.Errorf("token with ID %q not found", tokenID)
	}

	delete(ts.tokens, tokenID)
	if err := ts.saveToFile(); err != nil {
		ts.tokens[tokenID] = token
		return fmt.Errorf("failed to persist token deletion: %w", err)
	}
	return nil
}

func (ts *TokenStore) updateLastUsed(tokenID string) *APIToken {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	token := ts.tokens[tokenID]
	now := time.Now().UTC()
	token.LastUsedAt = &now
	if err := ts.saveToFile(); err != nil {
		ts.logger.Warn().Err(err).Str("token_id", tokenID).Msg("Failed to persist token last use")
	}
	c := *token
	return &c
}

func (ts *TokenStore) loadFromFile() error {
	if ts.filePath == "" {
		return nil
	}

	f, err := safe.OpenFile(ts.filePath, nil)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read tokens file: %w", err)
	}
	defer safe.Close(f, ts.logger, "failed to close tokens file")

	var tokensFile TokensFile
	if err := yaml.NewDecoder(f).Decode(&tokensFile); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to parse tokens file: %w", err)
	}

	for i := range tokensFile.Tokens {
		t := &tokensFile.Tokens[i]
		ts.tokens[t.TokenID] = t
	}
	return nil
}

func (ts *TokenStore) saveToFile() error {
	if ts.filePath == "" {
		return nil
	}

	tokens := make([]APIToken, 0, len(ts.tokens))
	for _, t := range ts.tokens {
		tokens = append(tokens, *t)
	}
	sort.Slice(tokens, func(i, j int) bool { return tokens[i].TokenID < tokens[j].TokenID })

	data, err := yaml.Marshal(TokensFile{
		Version: "1",
		Tokens:  tokens,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal tokens: %w", err)
	}

	if err := safe.WriteFile(ts.filePath, bytes.NewReader(data), nil, ts.logger); err != nil {
		return fmt.Errorf("failed to write tokens file: %w", err)
	}
	return nil
}

// HasPermission checks if a token has a specific permission.
func HasPermission(token *APIToken, required Permission) bool {
	return Grants(token.Permissions, required)
}
