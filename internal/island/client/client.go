// Package client talks to a running island over its HTTPS API.
//
// Every failure is tagged with one of the transport kinds so callers can tell
// an unreachable island from a slow one and from everything else.
package client

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"syscall"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/island-mesh/island/internal/constants"
	"github.com/island-mesh/island/internal/errors"
	"github.com/island-mesh/island/internal/island/models"
	"github.com/island-mesh/island/pkg/version"
)

// maxResponseSize caps the bodies the client reads from the island.
const maxResponseSize = 1 << 20

// Option configures an HTTPIslandAPIClient.
type Option func(*HTTPIslandAPIClient)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *HTTPIslandAPIClient) {
		cl.httpClient = c
	}
}

// WithAccessToken sends token as a bearer access token on every call.
func WithAccessToken(token string) Option {
	return func(cl *HTTPIslandAPIClient) {
		cl.token = token
	}
}

// HTTPIslandAPIClient is a client for the island API.
type HTTPIslandAPIClient struct {
	httpClient *http.Client
	logger     zerolog.Logger

	mu     sync.RWMutex
	server string
	token  string
}

// New creates a client. The island serves a self-signed certificate, so
// verification is skipped unless verifyTLS is set.
func New(verifyTLS bool, logger zerolog.Logger, opts ...Option) *HTTPIslandAPIClient {
	c := &HTTPIslandAPIClient{
		httpClient: &http.Client{
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				TLSClientConfig: &tls.Config{
					MinVersion: tls.VersionTLS12,
					// #nosec G402 - the island certificate is self-signed
					InsecureSkipVerify: !verifyTLS,
				},
			},
			Timeout: constants.DefaultAPIClientTimeout,
		},
		logger: logger.With().Str("component", "island_client").Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect checks that server ("host:port") is up and remembers it for later calls.
func (c *HTTPIslandAPIClient) Connect(ctx context.Context, server string) error {
	const op = "client.Connect"

	var status map[string]bool
	if err := c.do(ctx, op, server, http.MethodGet, "/api?action=is-up", nil, &status); err != nil {
		c.logger.Debug().Err(err).Str("server", server).Msg("Island is not reachable")
		return err
	}
	if !status["is-up"] {
		return errors.E(errors.KindTransportGeneric, op, fmt.Sprintf("island at %s is not up", server), nil)
	}

	c.mu.Lock()
	c.server = server
	c.mu.Unlock()

	c.logger.Debug().Str("server", server).Msg("Connected to island")
	return nil
}

// Server returns the server set by the last successful Connect.
func (c *HTTPIslandAPIClient) Server() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.server
}

// Authenticate exchanges an API token for an access token used by later calls.
func (c *HTTPIslandAPIClient) Authenticate(ctx context.Context, apiToken string) error {
	const op = "client.Authenticate"

	var resp struct {
		AccessToken string `json:"access_token"`
	}
	req := map[string]string{"token": apiToken}
	if err := c.call(ctx, op, http.MethodPost, "/api/auth", req, &resp); err != nil {
		return err
	}
	if resp.AccessToken == "" {
		return errors.E(errors.KindTransportGeneric, op, "island returned no access token", nil)
	}

	c.mu.Lock()
	c.token = resp.AccessToken
	c.mu.Unlock()
	return nil
}

// GetIslandMode returns the island's current mode.
func (c *HTTPIslandAPIClient) GetIslandMode(ctx context.Context) (models.IslandMode, error) {
	const op = "client.GetIslandMode"

	var mode models.IslandMode
	if err := c.call(ctx, op, http.MethodGet, "/api/island/mode", nil, &mode); err != nil {
		return "", err
	}
	return mode, nil
}

// SetIslandMode switches the island to mode.
func (c *HTTPIslandAPIClient) SetIslandMode(ctx context.Context, mode models.IslandMode) error {
	return c.call(ctx, "client.SetIslandMode", http.MethodPut, "/api/island/mode", mode, nil)
}

// ShouldAgentStop asks whether the agent has been told to terminate.
func (c *HTTPIslandAPIClient) ShouldAgentStop(ctx context.Context, agentID uuid.UUID) (bool, error) {
	const op = "client.ShouldAgentStop"

	var resp struct {
		StopAgent bool `json:"stop_agent"`
	}
	if err := c.call(ctx, op, http.MethodGet, "/api/agent-control/needs-to-stop/"+agentID.String(), nil, &resp); err != nil {
		return false, err
	}
	return resp.StopAgent, nil
}

func (c *HTTPIslandAPIClient) call(ctx context.Context, op, method, path string, in, out any) error {
	server := c.Server()
	if server == "" {
		return errors.E(errors.KindTransportGeneric, op, "not connected to an island", nil)
	}
	return c.do(ctx, op, server, method, path, in, out)
}

func (c *HTTPIslandAPIClient) do(ctx context.Context, op, server, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return errors.E(errors.KindTransportGeneric, op, "failed to encode request", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, "https://"+server+path, body)
	if err != nil {
		return errors.E(errors.KindTransportGeneric, op, "failed to build request", err)
	}
	req.Header.Set("User-Agent", version.UserAgent())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.mu.RLock()
	token := c.token
	c.mu.RUnlock()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return classify(op, server, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return classify(op, server, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errors.E(errors.KindTransportGeneric, op,
			fmt.Sprintf("island responded %d: %s", resp.StatusCode, remoteMessage(data)), nil)
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return errors.E(errors.KindTransportGeneric, op, "failed to decode island response", err)
	}
	return nil
}

// remoteMessage extracts the error message the island sends with a failure.
func remoteMessage(data []byte) string {
	var body struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(data, &body) == nil && body.Error != "" {
		return body.Error
	}
	return strings.TrimSpace(string(data))
}

// classify tags a transport failure with its kind.
func classify(op, server string, err error) error {
	switch {
	case isTimeout(err):
		return errors.E(errors.KindTransportTimeout, op, fmt.Sprintf("timed out talking to island at %s", server), err)
	case isUnreachable(err):
		return errors.E(errors.KindTransportConnection, op, fmt.Sprintf("failed to connect to island at %s", server), err)
	default:
		return errors.E(errors.KindTransportGeneric, op, fmt.Sprintf("island API call to %s failed", server), err)
	}
}

func isTimeout(err error) bool {
	if stderrors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return stderrors.As(err, &netErr) && netErr.Timeout()
}

func isUnreachable(err error) bool {
	var dnsErr *net.DNSError
	if stderrors.As(err, &dnsErr) {
		return true
	}
	if stderrors.Is(err, syscall.ECONNREFUSED) ||
		stderrors.Is(err, syscall.EHOSTUNREACH) ||
		stderrors.Is(err, syscall.ENETUNREACH) {
		return true
	}
	var opErr *net.OpError
	return stderrors.As(err, &opErr) && opErr.Op == "dial"
}
