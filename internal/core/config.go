package core

import (
	"net/url"
	"strings"

	"github.com/eteran/bucketd/internal/hooks"
	"github.com/eteran/bucketd/internal/storage"
)

type Config struct {
	Storage storage.Config

	// Engine overrides the client built from Storage.
	Engine storage.StorageEngine

	Hooks *hooks.Registry

	// PublicURL is the base of the URLs GET requests are redirected to. When
	// empty the virtual hosted S3 URL of the bucket is used.
	PublicURL string

	// Mount is the path prefix the bucket is served under.
	Mount string

	// TempDir receives multipart file parts while they are uploaded.
	TempDir string

	// MaxFileSize limits each uploaded file. Zero means unlimited.
	MaxFileSize int64
}

type ConfigOption func(*Config)

func WithStorage(storageCfg storage.Config) ConfigOption {
	return func(cfg *Config) {
		cfg.Storage = storageCfg
	}
}

func WithStorageEngine(engine storage.StorageEngine) ConfigOption {
	return func(cfg *Config) {
		cfg.Engine = engine
	}
}

func WithHooks(registry *hooks.Registry) ConfigOption {
	return func(cfg *Config) {
		cfg.Hooks = registry
	}
}

func WithPublicURL(publicURL string) ConfigOption {
	return func(cfg *Config) {
		cfg.PublicURL = publicURL
	}
}

func WithMount(mount string) ConfigOption {
	return func(cfg *Config) {
		cfg.Mount = mount
	}
}

func WithTempDir(dir string) ConfigOption {
	return func(cfg *Config) {
		cfg.TempDir = dir
	}
}

func WithMaxFileSize(size int64) ConfigOption {
	return func(cfg *Config) {
		cfg.MaxFileSize = size
	}
}

func NewConfig(opts ...ConfigOption) Config {
	cfg := Config{}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// Configured reports whether the bucket and its credentials are set.
func (c Config) Configured() bool {
	return c.Storage.Configured()
}

// ObjectURL returns the public URL of key.
func (c Config) ObjectURL(key string) string {
	escaped := (&url.URL{Path: "/" + key}).EscapedPath()

	if c.PublicURL != "" {
		return strings.TrimRight(c.PublicURL, "/") + escaped
	}

	return "https://" + c.Storage.Bucket + ".s3.amazonaws.com" + escaped
}

// normalizeMount turns "files/", "/files" and "files" into "/files" and "/"
// into "".
func normalizeMount(mount string) string {
	mount = strings.Trim(mount, "/")
	if mount == "" {
		return ""
	}
	return "/" + mount
}
