// Package constants defines shared configuration constants.
package constants

var (
	ConfigFile = "config.yaml"

	DefaultDir = ".island"

	DefaultDatabaseFile = "island.duckdb"

	// DefaultTokensFile holds hashed API tokens, relative to DefaultDir.
	DefaultTokensFile = "tokens.yaml"

	// DefaultPBADir holds uploaded post-breach action files, relative to the data dir.
	DefaultPBADir = "custom_pbas"

	DefaultServerHost = "0.0.0.0"

	// DefaultServerPort is the island HTTPS port agents call back to.
	DefaultServerPort = 5000

	// DefaultPluginRepositoryURL serves the agent plugin index.
	DefaultPluginRepositoryURL = "https://raw.githubusercontent.com/guardicore/infection-monkey-plugins/main"

	// DefaultIslandMode is the mode a fresh island starts in.
	DefaultIslandMode = "unset"
)
