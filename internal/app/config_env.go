package app

import (
    "os"
    "strconv"
    "strings"
    "time"
)

// ApplyEnvOverrides overrides cfg fields with environment variables that are
// set. Env takes precedence over the config file; flags are applied after.
func ApplyEnvOverrides(cfg *Config) {
    if cfg == nil { return }

    // PHP_ENDPOINT is the name the storage side documents.
    if v := os.Getenv("PHP_ENDPOINT"); v != "" { cfg.Endpoint = v }
    if v := os.Getenv("DELIVERY_ENDPOINT"); v != "" { cfg.Endpoint = v }
    if v := os.Getenv("SOURCE_URL"); v != "" { cfg.SourceURL = v }
    if v := os.Getenv("LINE_NAME"); v != "" { cfg.LineName = v }
    if v := os.Getenv("USER_AGENT"); v != "" { cfg.UserAgent = v }
    if v := os.Getenv("CACHE_DIR"); v != "" { cfg.CacheDir = v }
    if v := os.Getenv("OUTPUT_JSON"); v != "" { cfg.OutputJSONPath = v }
    if v := os.Getenv("OUTPUT_PDF"); v != "" { cfg.OutputPDFPath = v }

    setDuration := func(dst *time.Duration, envKey string) {
        if s := strings.TrimSpace(os.Getenv(envKey)); s != "" {
            if d, err := time.ParseDuration(s); err == nil {
                *dst = d
            }
        }
    }
    setDuration(&cfg.CacheMaxAge, "CACHE_MAX_AGE")
    setDuration(&cfg.DownloadTimeout, "DOWNLOAD_TIMEOUT")
    setDuration(&cfg.DeliveryTimeout, "DELIVERY_TIMEOUT")

    if s := strings.TrimSpace(os.Getenv("MAX_ATTEMPTS")); s != "" {
        if n, err := strconv.Atoi(s); err == nil {
            cfg.MaxAttempts = n
        }
    }

    // Booleans override when env present and truthy/falsey
    setBool := func(dst *bool, envKey string) {
        if s := strings.ToLower(strings.TrimSpace(os.Getenv(envKey))); s != "" {
            switch s {
            case "1", "true", "yes", "on":
                *dst = true
            case "0", "false", "no", "off":
                *dst = false
            }
        }
    }
    setBool(&cfg.DryRun, "DRY_RUN")
    setBool(&cfg.Verbose, "VERBOSE")
    setBool(&cfg.Discover, "DISCOVER")
    setBool(&cfg.CacheClear, "CACHE_CLEAR")
    setBool(&cfg.CacheStrictPerms, "CACHE_STRICT_PERMS")
}
