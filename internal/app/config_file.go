package app

import (
    "encoding/json"
    "errors"
    "fmt"
    "os"
    "path/filepath"
    "strings"
    "time"

    "github.com/go-playground/validator/v10"
    yaml "gopkg.in/yaml.v3"
)

// FileConfig represents the single-file configuration schema.
type FileConfig struct {
    Source struct {
        URL       string `yaml:"url" json:"url"`
        Line      string `yaml:"line" json:"line"`
        UserAgent string `yaml:"userAgent" json:"userAgent"`
        Discover  bool   `yaml:"discover" json:"discover"`
        Timeout   string `yaml:"timeout" json:"timeout"`
        Attempts  int    `yaml:"attempts" json:"attempts"`
    } `yaml:"source" json:"source"`

    Delivery struct {
        Endpoint string `yaml:"endpoint" json:"endpoint"`
        Timeout  string `yaml:"timeout" json:"timeout"`
    } `yaml:"delivery" json:"delivery"`

    Output struct {
        JSON string `yaml:"json" json:"json"`
        PDF  string `yaml:"pdf" json:"pdf"`
    } `yaml:"output" json:"output"`

    Cache struct {
        Dir         string `yaml:"dir" json:"dir"`
        MaxAge      string `yaml:"maxAge" json:"maxAge"`
        Clear       bool   `yaml:"clear" json:"clear"`
        StrictPerms bool   `yaml:"strictPerms" json:"strictPerms"`
    } `yaml:"cache" json:"cache"`

    DryRun  bool `yaml:"dryRun" json:"dryRun"`
    Verbose bool `yaml:"verbose" json:"verbose"`
}

// LoadConfigFile reads YAML or JSON into FileConfig.
func LoadConfigFile(path string) (FileConfig, error) {
    var fc FileConfig
    b, err := os.ReadFile(path)
    if err != nil {
        return fc, err
    }
    switch ext := filepath.Ext(path); ext {
    case ".yaml", ".yml":
        if err := yaml.Unmarshal(b, &fc); err != nil {
            return fc, fmt.Errorf("parse yaml: %w", err)
        }
    case ".json":
        if err := json.Unmarshal(b, &fc); err != nil {
            return fc, fmt.Errorf("parse json: %w", err)
        }
    default:
        // Try YAML then JSON
        if err := yaml.Unmarshal(b, &fc); err != nil {
            if jerr := json.Unmarshal(b, &fc); jerr != nil {
                return fc, fmt.Errorf("parse config: %v (yaml) / %v (json)", err, jerr)
            }
        }
    }
    return fc, nil
}

// ApplyFileConfig overlays non-zero values from fc onto cfg. Durations use
// Go syntax ("90s", "24h").
func ApplyFileConfig(cfg *Config, fc FileConfig) error {
    if cfg == nil { return nil }

    if fc.Source.URL != "" { cfg.SourceURL = fc.Source.URL }
    if fc.Source.Line != "" { cfg.LineName = fc.Source.Line }
    if fc.Source.UserAgent != "" { cfg.UserAgent = fc.Source.UserAgent }
    if fc.Source.Discover { cfg.Discover = true }
    if fc.Source.Attempts > 0 { cfg.MaxAttempts = fc.Source.Attempts }
    if fc.Delivery.Endpoint != "" { cfg.Endpoint = fc.Delivery.Endpoint }
    if fc.Output.JSON != "" { cfg.OutputJSONPath = fc.Output.JSON }
    if fc.Output.PDF != "" { cfg.OutputPDFPath = fc.Output.PDF }
    if fc.Cache.Dir != "" { cfg.CacheDir = fc.Cache.Dir }
    if fc.Cache.Clear { cfg.CacheClear = true }
    if fc.Cache.StrictPerms { cfg.CacheStrictPerms = true }
    if fc.DryRun { cfg.DryRun = true }
    if fc.Verbose { cfg.Verbose = true }

    durations := []struct {
        name string
        raw  string
        dst  *time.Duration
    }{
        {"source.timeout", fc.Source.Timeout, &cfg.DownloadTimeout},
        {"delivery.timeout", fc.Delivery.Timeout, &cfg.DeliveryTimeout},
        {"cache.maxAge", fc.Cache.MaxAge, &cfg.CacheMaxAge},
    }
    for _, d := range durations {
        if strings.TrimSpace(d.raw) == "" { continue }
        v, err := time.ParseDuration(strings.TrimSpace(d.raw))
        if err != nil {
            return fmt.Errorf("config: %s: %w", d.name, err)
        }
        *d.dst = v
    }
    return nil
}

var validate = validator.New()

// ValidateConfig checks required settings before any network call is made.
func ValidateConfig(cfg Config) error {
    if err := validate.Struct(cfg); err != nil {
        var verrs validator.ValidationErrors
        if errors.As(err, &verrs) && len(verrs) > 0 {
            fe := verrs[0]
            return fmt.Errorf("config: %s fails %q", fe.Field(), fe.Tag())
        }
        return fmt.Errorf("config: %w", err)
    }
    if !cfg.DryRun && strings.TrimSpace(cfg.Endpoint) == "" {
        return errors.New("config: delivery endpoint is required (set PHP_ENDPOINT or -endpoint)")
    }
    return nil
}
