package vamp

import (
	"io/fs"
	"log/slog"
)

// Option configures an App.
type Option func(*resolvedOptions)

// resolvedOptions holds all extension points after applying defaults.
// Unexported; callers use the With* functions.
type resolvedOptions struct {
	port            int
	databaseURL     string
	corpusManifest  string
	logger          *slog.Logger
	version         string
	hashFunc        HashFunc
	store           CollectionStore
	extraMigrations []fs.FS
}

// WithPort overrides the TCP port from config (VAMP_PORT env var).
func WithPort(port int) Option {
	return func(o *resolvedOptions) { o.port = port }
}

// WithDatabaseURL overrides the database connection string from config
// (DATABASE_URL env var). An empty value disables persistence.
func WithDatabaseURL(url string) Option {
	return func(o *resolvedOptions) { o.databaseURL = url }
}

// WithCorpusManifest overrides the corpus manifest path from config
// (VAMP_CORPUS_MANIFEST env var).
func WithCorpusManifest(path string) Option {
	return func(o *resolvedOptions) { o.corpusManifest = path }
}

// WithLogger sets the structured logger for the App.
// If not set, the default slog logger is used.
func WithLogger(logger *slog.Logger) Option {
	return func(o *resolvedOptions) { o.logger = logger }
}

// WithVersion sets the version string reported in the health endpoint and logs.
func WithVersion(version string) Option {
	return func(o *resolvedOptions) { o.version = version }
}

// WithHashFunc replaces the default SHA-256 content hash used for
// deduplication. Only the last call wins.
func WithHashFunc(fn HashFunc) Option {
	return func(o *resolvedOptions) { o.hashFunc = fn }
}

// WithCollectionStore replaces the built-in Postgres persistence with an
// external store. Only the last call wins; when set, DATABASE_URL is
// ignored and startup rehydration is the consumer's responsibility.
func WithCollectionStore(s CollectionStore) Option {
	return func(o *resolvedOptions) { o.store = s }
}

// WithExtraMigrations adds an additional SQL migration filesystem to run
// after the embedded migrations. Multiple filesystems may be registered;
// they are applied in registration order.
func WithExtraMigrations(dir fs.FS) Option {
	return func(o *resolvedOptions) { o.extraMigrations = append(o.extraMigrations, dir) }
}
