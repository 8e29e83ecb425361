package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/goschedule/internal/app"
)

// cliFlags mirrors the command line. Only flags the user sets override
// values from the config file and environment.
type cliFlags struct {
	configPath  string
	envFiles    string
	showVersion bool

	source          string
	line            string
	endpoint        string
	userAgent       string
	discover        bool
	outJSON         string
	outPDF          string
	dryRun          bool
	verbose         bool
	cacheDir        string
	cacheMaxAge     time.Duration
	cacheClear      bool
	cacheStrict     bool
	downloadTimeout time.Duration
	deliveryTimeout time.Duration
	attempts        int
}

func main() {
	// Logging setup
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg, showVersion, err := parseConfig(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		log.Error().Err(err).Msg("invalid configuration")
		os.Exit(1)
	}
	if showVersion {
		fmt.Printf("goschedule %s (%s, %s)\n", app.BuildVersion, app.BuildCommit, app.BuildDate)
		return
	}

	if cfg.Verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Error().Err(err).Msg("run failed")
		stop()
		os.Exit(app.ExitCode(err))
	}
}

// parseConfig resolves configuration with precedence
// flags > environment (.env included) > config file > defaults.
func parseConfig(args []string, output io.Writer) (app.Config, bool, error) {
	def := app.DefaultConfig()
	var f cliFlags

	fs := flag.NewFlagSet("goschedule", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.StringVar(&f.configPath, "config", "", "Path to YAML or JSON config file")
	fs.StringVar(&f.envFiles, "env", ".env", "Comma-separated dotenv files to load (missing files are ignored)")
	fs.BoolVar(&f.showVersion, "version", false, "Print version and exit")
	fs.StringVar(&f.source, "source", def.SourceURL, "URL of the timetable PDF or of an index page linking to it")
	fs.StringVar(&f.line, "line", def.LineName, "Line name sent as nombre_linea")
	fs.StringVar(&f.endpoint, "endpoint", "", "Storage endpoint receiving the form POST (env PHP_ENDPOINT)")
	fs.StringVar(&f.userAgent, "ua", def.UserAgent, "User-Agent for the PDF download")
	fs.BoolVar(&f.discover, "discover", false, "Follow the line's PDF link when -source serves an HTML page")
	fs.StringVar(&f.outJSON, "out.json", "", "Also write the record as JSON to this path")
	fs.StringVar(&f.outPDF, "out.pdf", "", "Also render the normalized timetable to this PDF path")
	fs.BoolVar(&f.dryRun, "dry-run", false, "Process the PDF without delivering the record")
	fs.BoolVar(&f.verbose, "v", false, "Verbose logging")
	fs.StringVar(&f.cacheDir, "cache.dir", app.DefaultCacheDir, "Cache directory path; empty disables the download cache")
	fs.DurationVar(&f.cacheMaxAge, "cache.maxAge", 0, "Max age for cache entries before purge (e.g. 24h); 0 disables")
	fs.BoolVar(&f.cacheClear, "cache.clear", false, "Clear cache directory before run")
	fs.BoolVar(&f.cacheStrict, "cache.strictPerms", false, "Restrict cache permissions (0700 dirs, 0600 files)")
	fs.DurationVar(&f.downloadTimeout, "timeout.download", def.DownloadTimeout, "Timeout for the PDF download")
	fs.DurationVar(&f.deliveryTimeout, "timeout.delivery", def.DeliveryTimeout, "Timeout for the delivery POST")
	fs.IntVar(&f.attempts, "attempts", 0, "Download attempts on transient errors (0 or 1 means no retry)")
	if err := fs.Parse(args); err != nil {
		return app.Config{}, false, err
	}
	if f.showVersion {
		return app.Config{}, true, nil
	}

	cfg := def
	cfg.CacheDir = app.DefaultCacheDir

	if err := app.LoadEnvFiles(splitList(f.envFiles)...); err != nil {
		return app.Config{}, false, fmt.Errorf("load env files: %w", err)
	}
	if strings.TrimSpace(f.configPath) != "" {
		fc, err := app.LoadConfigFile(f.configPath)
		if err != nil {
			return app.Config{}, false, fmt.Errorf("load config file: %w", err)
		}
		if err := app.ApplyFileConfig(&cfg, fc); err != nil {
			return app.Config{}, false, err
		}
	}
	app.ApplyEnvOverrides(&cfg)

	fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "source":
			cfg.SourceURL = f.source
		case "line":
			cfg.LineName = f.line
		case "endpoint":
			cfg.Endpoint = f.endpoint
		case "ua":
			cfg.UserAgent = f.userAgent
		case "discover":
			cfg.Discover = f.discover
		case "out.json":
			cfg.OutputJSONPath = f.outJSON
		case "out.pdf":
			cfg.OutputPDFPath = f.outPDF
		case "dry-run":
			cfg.DryRun = f.dryRun
		case "v":
			cfg.Verbose = f.verbose
		case "cache.dir":
			cfg.CacheDir = f.cacheDir
		case "cache.maxAge":
			cfg.CacheMaxAge = f.cacheMaxAge
		case "cache.clear":
			cfg.CacheClear = f.cacheClear
		case "cache.strictPerms":
			cfg.CacheStrictPerms = f.cacheStrict
		case "timeout.download":
			cfg.DownloadTimeout = f.downloadTimeout
		case "timeout.delivery":
			cfg.DeliveryTimeout = f.deliveryTimeout
		case "attempts":
			cfg.MaxAttempts = f.attempts
		}
	})
	return cfg, false, nil
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	list := make([]string, 0, len(parts))
	for _, p := range parts {
		if v := strings.TrimSpace(p); v != "" {
			list = append(list, v)
		}
	}
	return list
}

func run(ctx context.Context, cfg app.Config) error {
	a, err := app.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init app: %w", err)
	}
	defer a.Close()

	return a.Run(ctx)
}
