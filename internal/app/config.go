package app

import "time"

// Defaults for the published L-111 timetable.
const (
	DefaultSourceURL       = "https://ctagr.es/wp-content/uploads/horarios/20250916/L111L.pdf"
	DefaultLineName        = "L-111"
	DefaultUserAgent       = "Mozilla/5.0"
	DefaultDownloadTimeout = 60 * time.Second
	DefaultDeliveryTimeout = 10 * time.Second
	DefaultCacheDir        = ".goschedule-cache"
)

// Config holds runtime configuration for the application.
type Config struct {
	// Source
	SourceURL string `validate:"required,url"`
	LineName  string `validate:"required"`
	UserAgent string
	// Discover follows the line's PDF link when SourceURL serves an HTML page.
	Discover bool

	// Delivery. Endpoint is required unless DryRun is set.
	Endpoint string `validate:"omitempty,url"`

	DownloadTimeout time.Duration `validate:"gt=0"`
	DeliveryTimeout time.Duration `validate:"gt=0"`
	MaxAttempts     int           `validate:"gte=0,lte=5"`

	// Local artifacts
	OutputJSONPath string
	OutputPDFPath  string

	// Cache
	CacheDir         string
	CacheMaxAge      time.Duration `validate:"gte=0"`
	CacheClear       bool
	CacheStrictPerms bool

	// Behavior
	DryRun  bool
	Verbose bool
}

// DefaultConfig returns the configuration used when nothing is overridden.
// The delivery endpoint has no default.
func DefaultConfig() Config {
	return Config{
		SourceURL:       DefaultSourceURL,
		LineName:        DefaultLineName,
		UserAgent:       DefaultUserAgent,
		DownloadTimeout: DefaultDownloadTimeout,
		DeliveryTimeout: DefaultDeliveryTimeout,
	}
}
