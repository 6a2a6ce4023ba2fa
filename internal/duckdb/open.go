package duckdb

import (
	"database/sql"
	"net/url"
	"strconv"
	"strings"

	duckdbDriver "github.com/marcboeker/go-duckdb"
)

// Options tunes how a database file is opened.
type Options struct {
	// ReadOnly opens the file with access_mode=READ_ONLY so that offline
	// readers can share it with a running server.
	ReadOnly bool
	// Threads limits DuckDB worker threads. Zero keeps the DuckDB default.
	Threads int
}

// OpenDB opens a DuckDB database. An empty path or ":memory:" opens an in-memory database.
func OpenDB(path string, opts Options) (*sql.DB, error) {
	connector, err := duckdbDriver.NewConnector(buildDSN(path, opts), nil)
	if err != nil {
		return nil, err
	}
	return sql.OpenDB(connector), nil
}

// buildDSN merges opts into the query string of path, keeping any parameters
// the caller already set.
func buildDSN(path string, opts Options) string {
	base, query, _ := strings.Cut(path, "?")

	params, err := url.ParseQuery(query)
	if err != nil {
		return path
	}

	if opts.ReadOnly && !params.Has("access_mode") && base != "" && base != ":memory:" {
		params.Set("access_mode", "READ_ONLY")
	}
	if opts.Threads > 0 && !params.Has("threads") {
		params.Set("threads", strconv.Itoa(opts.Threads))
	}

	if len(params) == 0 {
		return base
	}
	return base + "?" + params.Encode()
}
