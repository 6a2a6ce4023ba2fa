package plugins

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog"

	"github.com/island-mesh/island/internal/constants"
	"github.com/island-mesh/island/internal/errors"
	"github.com/island-mesh/island/internal/retry"
)

const indexFile = "index.yml"

// maxIndexSize bounds the downloaded index document.
const maxIndexSize = 8 << 20

type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.code)
}

// IndexClient fetches and caches the index of one plugin repository and
// downloads the archives it lists.
type IndexClient struct {
	base       string
	url        string
	httpClient *http.Client
	retry      retry.Config
	cache      *expirable.LRU[string, *RepositoryIndex]
	logger     zerolog.Logger
}

// Option configures an IndexClient.
type Option func(*IndexClient)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(ic *IndexClient) {
		ic.httpClient = c
	}
}

// WithRetry replaces the retry policy for downloads.
func WithRetry(cfg retry.Config) Option {
	return func(ic *IndexClient) {
		ic.retry = cfg
	}
}

// NewIndexClient creates a client for the repository at repositoryURL whose
// index is cached for ttl.
func NewIndexClient(repositoryURL string, ttl time.Duration, logger zerolog.Logger, opts ...Option) *IndexClient {
	if ttl <= 0 {
		ttl = constants.DefaultPluginIndexTTL
	}
	base := strings.TrimRight(repositoryURL, "/")
	ic := &IndexClient{
		base:       base,
		url:        base + "/" + indexFile,
		httpClient: &http.Client{Timeout: constants.DefaultPluginIndexTimeout},
		retry:      retry.Remote,
		cache:      expirable.NewLRU[string, *RepositoryIndex](1, nil, ttl),
		logger:     logger.With().Str("component", "plugins").Logger(),
	}
	for _, opt := range opts {
		opt(ic)
	}
	return ic
}

// URL returns the index location.
func (c *IndexClient) URL() string {
	return c.url
}

// Available returns the repository index, downloading it when the cached copy
// expired or forceRefresh is set.
func (c *IndexClient) Available(ctx context.Context, forceRefresh bool) (*RepositoryIndex, error) {
	if !forceRefresh {
		if index, ok := c.cache.Get(c.url); ok {
			return index, nil
		}
	}

	body, err := c.fetch(ctx, c.url, maxIndexSize)
	if err == nil {
		var index *RepositoryIndex
		if index, err = ParseIndex(body); err == nil {
			c.cache.Add(c.url, index)
			c.logger.Debug().
				Str("url", c.url).
				Time("generated", index.Generated()).
				Msg("Plugin repository index refreshed")
			return index, nil
		}
	}
	return nil, errors.E(errors.KindTransportGeneric, "plugins.Available",
		"failed to retrieve the agent plugin repository index", err)
}

// Find returns the metadata of a plugin. An empty version selects the newest release.
func (c *IndexClient) Find(ctx context.Context, pluginType, name, version string) (PluginMetadata, error) {
	index, err := c.Available(ctx, false)
	if err != nil {
		return PluginMetadata{}, err
	}
	m, ok := index.Lookup(pluginType, name, version)
	if !ok {
		return PluginMetadata{}, errors.NotFound("plugins.Find",
			"plugin %s %s %s not found in repository", pluginType, name, version)
	}
	return m, nil
}

// DownloadArchive fetches the archive of a released plugin and checks it
// against the index checksum when one is published.
func (c *IndexClient) DownloadArchive(ctx context.Context, m PluginMetadata) ([]byte, error) {
	const op = "plugins.DownloadArchive"

	url := c.base + "/" + strings.TrimLeft(m.ResourcePath, "/")
	archive, err := c.fetch(ctx, url, MaxArchiveSize)
	if err != nil {
		return nil, errors.E(errors.KindTransportGeneric, op,
			fmt.Sprintf("failed to download plugin %s %s", m.Name, m.Version), err)
	}

	if m.SHA256 != "" {
		sum := sha256.Sum256(archive)
		if !strings.EqualFold(hex.EncodeToString(sum[:]), m.SHA256) {
			return nil, errors.E(errors.KindTransportGeneric, op,
				fmt.Sprintf("plugin %s %s does not match its published checksum", m.Name, m.Version), nil)
		}
	}

	c.logger.Debug().
		Str("url", url).
		Int("bytes", len(archive)).
		Msg("Plugin archive downloaded")
	return archive, nil
}

func (c *IndexClient) fetch(ctx context.Context, url string, limit int64) ([]byte, error) {
	var body []byte
	err := retry.Do(ctx, c.retry, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer errors.DeferClose(c.logger, resp.Body, "failed to close response body")

		if resp.StatusCode != http.StatusOK {
			return &statusError{code: resp.StatusCode}
		}
		body, err = io.ReadAll(io.LimitReader(resp.Body, limit+1))
		if err == nil && int64(len(body)) > limit {
			return fmt.Errorf("%s exceeds %d bytes", url, limit)
		}
		return err
	}, isRetryable)
	if err != nil {
		return nil, err
	}
	return body, nil
}

func isRetryable(err error) bool {
	var se *statusError
	if stderrors.As(err, &se) {
		return se.code >= http.StatusInternalServerError || se.code == http.StatusTooManyRequests
	}
	return !stderrors.Is(err, context.Canceled)
}
