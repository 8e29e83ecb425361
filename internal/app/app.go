package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/goschedule/internal/cache"
	"github.com/hyperifyio/goschedule/internal/deliver"
	"github.com/hyperifyio/goschedule/internal/discover"
	"github.com/hyperifyio/goschedule/internal/extract"
	"github.com/hyperifyio/goschedule/internal/fetch"
	"github.com/hyperifyio/goschedule/internal/schedule"
)

// Pipeline outcomes mapped to process exit codes by the CLI.
var (
	// ErrFetchFailed means the schedule document could not be downloaded.
	ErrFetchFailed = errors.New("fetch failed")
	// ErrEmptyExtraction means the document yielded no usable table rows.
	ErrEmptyExtraction = errors.New("no schedule data extracted")
	// ErrDeliveryFailed means the endpoint did not accept the record.
	ErrDeliveryFailed = errors.New("delivery failed")
)

// Sender delivers an assembled record.
type Sender interface {
	Send(ctx context.Context, line string, rec *schedule.Record) (*deliver.Result, error)
}

type App struct {
	cfg       Config
	runID     string
	fetcher   *fetch.Client
	extractor extract.Extractor
	sender    Sender
	now       func() time.Time
	source    sourceInfo
}

func New(ctx context.Context, cfg Config) (*App, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	a := &App{
		cfg:       cfg,
		runID:     uuid.NewString(),
		extractor: extract.NewPDFExtractor(),
		now:       time.Now,
	}
	httpClient := newHTTPClient()

	var httpCache *cache.HTTPCache
	if cfg.CacheDir != "" {
		if cfg.CacheClear {
			if err := cache.ClearDir(cfg.CacheDir); err != nil {
				log.Warn().Err(err).Str("dir", cfg.CacheDir).Msg("cache clear failed")
			}
		}
		if cfg.CacheMaxAge > 0 {
			if n, err := cache.PurgeHTTPCacheByAge(cfg.CacheDir, cfg.CacheMaxAge); err != nil {
				log.Warn().Err(err).Msg("cache purge failed")
			} else if n > 0 {
				log.Debug().Int("removed", n).Msg("purged expired cache entries")
			}
		}
		httpCache = &cache.HTTPCache{Dir: cfg.CacheDir, StrictPerms: cfg.CacheStrictPerms}
	}

	allowed := fetch.DefaultContentTypes
	if cfg.Discover {
		allowed = append([]string{"text/html", "application/xhtml+xml"}, allowed...)
	}
	a.fetcher = &fetch.Client{
		HTTPClient:          httpClient,
		UserAgent:           cfg.UserAgent,
		MaxAttempts:         cfg.MaxAttempts,
		PerRequestTimeout:   cfg.DownloadTimeout,
		Cache:               httpCache,
		RedirectMaxHops:     5,
		AllowedContentTypes: allowed,
	}
	if !cfg.DryRun {
		a.sender = &deliver.Client{
			Endpoint:   cfg.Endpoint,
			HTTPClient: httpClient,
			Timeout:    cfg.DeliveryTimeout,
			RunID:      a.runID,
			UserAgent:  UserAgentWithVersion(),
		}
	}
	return a, nil
}

// RunID identifies this run in logs and in the delivery request.
func (a *App) RunID() string { return a.runID }

func (a *App) Close() {
	// nothing yet
}

// Run processes the configured source and delivers the record unless the
// run is a dry run.
func (a *App) Run(ctx context.Context) error {
	logger := log.With().Str("run_id", a.runID).Str("line", a.cfg.LineName).Logger()
	ctx = logger.WithContext(ctx)

	rec, err := a.Process(ctx)
	if err != nil {
		return err
	}
	logger.Info().Int("sentidos", len(rec.Sentidos)).Int("rows", rec.RowCount()).Msg("PDF processed")

	if err := a.writeArtifacts(ctx, rec); err != nil {
		return err
	}

	if a.cfg.DryRun || a.sender == nil {
		logger.Info().Msg("dry run; skipping delivery")
		return nil
	}
	logger.Info().Str("endpoint", a.cfg.Endpoint).Msg("sending schedule to server")
	res, err := a.sender.Send(ctx, a.cfg.LineName, rec)
	if err != nil {
		var se *deliver.StatusError
		if errors.As(err, &se) {
			logger.Warn().Int("status", se.Code).Str("response", se.Body).Msg("server rejected schedule")
		} else {
			logger.Error().Err(err).Msg("connection error while sending schedule")
		}
		return fmt.Errorf("%w: %w", ErrDeliveryFailed, err)
	}
	logger.Info().Int("status", res.StatusCode).Str("response", res.Body).Msg("schedule delivered")
	return nil
}

// Process downloads the source document, extracts its tables and assembles
// the record. It never contacts the delivery endpoint.
func (a *App) Process(ctx context.Context) (*schedule.Record, error) {
	logger := zerolog.Ctx(ctx)

	body, err := a.download(ctx, a.cfg.SourceURL)
	if err != nil {
		return nil, err
	}
	logger.Debug().Int("bytes", len(body)).Msg("PDF downloaded")

	tables, err := a.extractor.ExtractTables(ctx, body)
	if err != nil {
		logger.Error().Err(err).Msg("could not read tables from PDF")
		return nil, fmt.Errorf("%w: %w", ErrEmptyExtraction, err)
	}
	logger.Debug().Int("tables", len(tables)).Msg("tables extracted")
	a.source.SHA256 = computeSHA256Hex(body)
	a.source.Bytes = len(body)
	a.source.Tables = len(tables)

	rec, err := schedule.Assemble(a.cfg.LineName, tables, a.now())
	if err != nil {
		logger.Warn().Msg("no tables found in PDF")
		return nil, fmt.Errorf("%w: %w", ErrEmptyExtraction, err)
	}
	if len(rec.Sentidos) == 0 {
		logger.Warn().Int("tables", len(tables)).Msg("no table produced usable rows")
		return nil, fmt.Errorf("%w: %d tables without usable rows", ErrEmptyExtraction, len(tables))
	}
	return rec, nil
}

// download fetches url and, when it answers with an HTML index page and
// discovery is enabled, follows the line's PDF link once.
func (a *App) download(ctx context.Context, url string) ([]byte, error) {
	logger := zerolog.Ctx(ctx)
	body, ct, err := a.fetcher.Get(ctx, url)
	if err != nil {
		logFetchError(logger, url, err)
		return nil, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	if !fetch.IsHTML(ct) {
		a.source.URL = url
		return body, nil
	}

	link, err := discover.FindPDFLink(body, url, a.cfg.LineName)
	if err != nil {
		logger.Error().Err(err).Str("url", url).Msg("no schedule PDF linked from page")
		return nil, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	logger.Info().Str("pdf", link).Msg("found schedule PDF on index page")
	body, ct, err = a.fetcher.Get(ctx, link)
	if err != nil {
		logFetchError(logger, link, err)
		return nil, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	if fetch.IsHTML(ct) {
		return nil, fmt.Errorf("%w: %s is not a PDF", ErrFetchFailed, link)
	}
	a.source.URL = link
	return body, nil
}

func logFetchError(logger *zerolog.Logger, url string, err error) {
	var se *fetch.StatusError
	if errors.As(err, &se) {
		logger.Error().Int("status", se.Code).Str("url", url).Msg("error downloading PDF")
		return
	}
	logger.Error().Err(err).Str("url", url).Msg("error downloading PDF")
}

// ExitCode maps a Run error to the process exit status.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, context.Canceled):
		return 130
	case errors.Is(err, ErrFetchFailed):
		return 2
	case errors.Is(err, ErrEmptyExtraction):
		return 3
	case errors.Is(err, ErrDeliveryFailed):
		return 4
	default:
		return 1
	}
}
