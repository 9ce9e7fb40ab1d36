package main

import (
	"context"
	"crypto/tls"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/eteran/bucketd/internal/auth"
	"github.com/eteran/bucketd/internal/core"
	"github.com/eteran/bucketd/internal/hooks"
	"github.com/eteran/bucketd/internal/journal"
	"github.com/eteran/bucketd/internal/metrics"
	"github.com/eteran/bucketd/internal/storage"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

// Options holds everything read from flags and the environment.
type Options struct {
	Listen    string
	TLSListen string
	TLSCert   string
	TLSKey    string
	LogLevel  string

	Storage     storage.Config
	PublicURL   string
	Mount       string
	TempDir     string
	MaxFileSize int64

	HookFile    string
	HookTimeout time.Duration
	JournalPath string

	AdminUser     string
	AdminPassword string
	AdminToken    string
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int64) int64 {
	if value, exists := os.LookupEnv(key); exists {
		if n, err := strconv.ParseInt(value, 10, 64); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// ParseOptions reads options from args. Environment variables provide the
// defaults so flags always win.
func ParseOptions(args []string) (Options, error) {
	var opts Options

	fs := flag.NewFlagSet("bucketd", flag.ContinueOnError)

	fs.StringVar(&opts.Listen, "listen", getEnv("BUCKETD_LISTEN", "9000"), "HTTP listen port")
	fs.StringVar(&opts.TLSListen, "tls-listen", getEnv("BUCKETD_TLS_LISTEN", "8443"), "HTTPS listen port")
	fs.StringVar(&opts.TLSCert, "tls-cert", getEnv("BUCKETD_TLS_CERT", ""), "TLS certificate file")
	fs.StringVar(&opts.TLSKey, "tls-key", getEnv("BUCKETD_TLS_KEY", ""), "TLS key file")
	fs.StringVar(&opts.LogLevel, "log-level", getEnv("BUCKETD_LOG_LEVEL", "info"), "log level (debug, info, warn, error)")

	fs.StringVar(&opts.Storage.Driver, "driver", getEnv("BUCKETD_DRIVER", storage.DriverMinio), "storage driver (minio, aws, local)")
	fs.StringVar(&opts.Storage.Endpoint, "endpoint", getEnv("BUCKETD_ENDPOINT", storage.DefaultEndpoint), "object storage endpoint")
	fs.StringVar(&opts.Storage.Region, "region", getEnv("BUCKETD_REGION", storage.DefaultRegion), "object storage region")
	fs.StringVar(&opts.Storage.Bucket, "bucket", getEnv("BUCKETD_BUCKET", ""), "bucket name")
	fs.StringVar(&opts.Storage.AccessKey, "access-key", getEnv("BUCKETD_ACCESS_KEY", ""), "access key")
	fs.StringVar(&opts.Storage.SecretKey, "secret-key", getEnv("BUCKETD_SECRET_KEY", ""), "secret key")
	fs.BoolVar(&opts.Storage.Secure, "secure", getEnvBool("BUCKETD_SECURE", true), "use HTTPS to reach the object store")
	fs.BoolVar(&opts.Storage.PathStyle, "path-style", getEnvBool("BUCKETD_PATH_STYLE", false), "use path style bucket addressing")
	fs.StringVar(&opts.Storage.DataDir, "data-dir", getEnv("BUCKETD_DATA_DIR", "./data"), "directory used by the local driver and the journal")

	fs.StringVar(&opts.PublicURL, "public-url", getEnv("BUCKETD_PUBLIC_URL", ""), "base URL GET requests redirect to")
	fs.StringVar(&opts.Mount, "mount", getEnv("BUCKETD_MOUNT", "/"), "path prefix the bucket is served under")
	fs.StringVar(&opts.TempDir, "temp-dir", getEnv("BUCKETD_TEMP_DIR", os.TempDir()), "directory for multipart file parts")
	fs.Int64Var(&opts.MaxFileSize, "max-file-size", getEnvInt("BUCKETD_MAX_FILE_SIZE", 0), "maximum size of one uploaded file in bytes (0 for unlimited)")

	fs.StringVar(&opts.HookFile, "hooks", getEnv("BUCKETD_HOOKS", ""), "YAML file binding hooks to slots")
	fs.DurationVar(&opts.HookTimeout, "hook-timeout", getEnvDuration("BUCKETD_HOOK_TIMEOUT", hooks.DefaultTimeout), "time limit of one hook invocation")
	fs.StringVar(&opts.JournalPath, "journal", getEnv("BUCKETD_JOURNAL", ""), "SQLite upload journal (default <data-dir>/journal.sqlite when a hook uses it)")

	fs.StringVar(&opts.AdminUser, "admin-user", getEnv("BUCKETD_ADMIN_USER", ""), "basic auth user for /_admin")
	fs.StringVar(&opts.AdminPassword, "admin-password", getEnv("BUCKETD_ADMIN_PASSWORD", ""), "basic auth password for /_admin")
	fs.StringVar(&opts.AdminToken, "admin-token", getEnv("BUCKETD_ADMIN_TOKEN", ""), "bearer token accepted for /_admin")

	if err := fs.Parse(args); err != nil {
		return Options{}, err
	}

	if (opts.AdminUser == "") != (opts.AdminPassword == "") {
		return Options{}, errors.New("admin user and password must be set together")
	}

	return opts, nil
}

// buildHooks loads the hook file and opens the journal when a hook needs it.
func buildHooks(ctx context.Context, opts Options) (*hooks.Registry, *journal.Journal, error) {
	if opts.HookFile == "" {
		j, err := openJournal(ctx, opts, opts.JournalPath != "")
		if err != nil {
			return nil, nil, err
		}
		return hooks.NewRegistry(opts.HookTimeout), j, nil
	}

	hookCfg, err := hooks.LoadConfig(opts.HookFile)
	if err != nil {
		return nil, nil, err
	}

	j, err := openJournal(ctx, opts, hookCfg.UsesJournal() || opts.JournalPath != "")
	if err != nil {
		return nil, nil, err
	}

	var journalHook hooks.Hook
	if j != nil {
		journalHook = j.Hook()
	}

	registry, err := hookCfg.Build(opts.HookTimeout, journalHook)
	if err != nil {
		if j != nil {
			_ = j.Close()
		}
		return nil, nil, err
	}

	for _, slot := range hooks.Slots {
		if registry.Bound(slot) {
			slog.Info("Hook bound", "slot", slot)
		}
	}

	return registry, j, nil
}

func openJournal(ctx context.Context, opts Options, needed bool) (*journal.Journal, error) {
	if !needed {
		return nil, nil
	}

	path := opts.JournalPath
	if path == "" {
		path = filepath.Join(opts.Storage.DataDir, "journal.sqlite")
	}

	j, err := journal.Open(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	j.RequestID = core.RequestIDFromContext
	return j, nil
}

// adminAuthEngine accepts the admin basic credentials or the admin token,
// whichever are configured. It returns nil when neither is.
func adminAuthEngine(opts Options) auth.AuthEngine {
	var engines []auth.AuthEngine
	if opts.AdminUser != "" {
		engines = append(engines, auth.NewBasicAuthEngine(opts.AdminUser, opts.AdminPassword))
	}
	if opts.AdminToken != "" {
		engines = append(engines, auth.NewTokenAuthEngine(opts.AdminToken))
	}

	if len(engines) == 0 {
		return nil
	}
	return auth.NewCompoundAuthEngine(engines...)
}

// NewRouter serves the admin endpoints and hands every other request to the
// bucket.
func NewRouter(srv *core.Server, j *journal.Journal, opts Options) http.Handler {
	admin := core.RequireAuthentication(adminAuthEngine(opts))

	mux := http.NewServeMux()
	mux.HandleFunc("GET /_admin/healthz", srv.Healthz)
	mux.Handle("GET /_admin/metrics", admin(promhttp.Handler()))
	if j != nil {
		mux.Handle("GET /_admin/uploads", admin(j.Handler()))
	}
	mux.Handle("/", srv.Middleware(http.NotFoundHandler()))

	return core.RequestID(core.LogRequest(core.Recoverer(core.SlashFix(mux))))
}

func Run(ctx context.Context, args []string) error {

	opts, err := ParseOptions(args)
	if err != nil {
		return err
	}

	level, err := log.ParseLevel(opts.LogLevel)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", opts.LogLevel, err)
	}

	handler := log.NewWithOptions(os.Stdout, log.Options{
		Level:           level,
		TimeFormat:      time.RFC3339,
		ReportTimestamp: true,
		TimeFunction:    log.NowUTC,
		ReportCaller:    true,
	})

	slog.SetDefault(slog.New(handler))

	if opts.Storage.Driver == storage.DriverLocal {
		absDataDir, err := filepath.Abs(opts.Storage.DataDir)
		if err != nil {
			return fmt.Errorf("failed to resolve data directory: %w", err)
		}
		opts.Storage.DataDir = absDataDir
	}

	if err := os.MkdirAll(opts.TempDir, 0o755); err != nil {
		return fmt.Errorf("failed to create temp directory: %w", err)
	}

	metrics.Register()

	registry, j, err := buildHooks(ctx, opts)
	if err != nil {
		return err
	}

	if j != nil {
		defer j.Close()
	}

	cfg := core.NewConfig(
		core.WithStorage(opts.Storage),
		core.WithHooks(registry),
		core.WithPublicURL(opts.PublicURL),
		core.WithMount(opts.Mount),
		core.WithTempDir(opts.TempDir),
		core.WithMaxFileSize(opts.MaxFileSize),
	)

	server, err := core.NewServer(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to create bucketd server: %w", err)
	}

	router := NewRouter(server, j, opts)

	// uploads may take a long time, so there is no read or write timeout
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%s", opts.Listen),
		Handler:           router,
		ReadHeaderTimeout: 20 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	httpsServer := &http.Server{
		TLSConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
		Addr:              fmt.Sprintf(":%s", opts.TLSListen),
		Handler:           router,
		ReadHeaderTimeout: 20 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		<-ctx.Done()
		return httpsServer.Shutdown(context.WithoutCancel(ctx))
	})

	eg.Go(func() error {
		<-ctx.Done()
		return httpServer.Shutdown(context.WithoutCancel(ctx))
	})

	eg.Go(func() error {
		if opts.TLSCert == "" || opts.TLSKey == "" {
			slog.Debug("Skipping HTTPS service because no certificate was provided")
			return nil
		}

		slog.Info("Starting bucketd HTTPS server", "port", opts.TLSListen)
		err := httpsServer.ListenAndServeTLS(opts.TLSCert, opts.TLSKey)
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}

		return nil
	})

	eg.Go(func() error {
		slog.Info("Starting bucketd HTTP server", "port", opts.Listen, "bucket", opts.Storage.Bucket, "driver", opts.Storage.Driver)
		err := httpServer.ListenAndServe()
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}

		return nil
	})

	slog.Info("bucketd Started")
	return eg.Wait()
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := Run(ctx, os.Args[1:]); err != nil {
		slog.Error("bucketd exited with error", "error", err)
		os.Exit(1)
	}
}
