package app

import (
    "encoding/json"
    "errors"
    "fmt"
    "net/url"
    "os"
    "path/filepath"
    "strings"
    "time"

    yaml "gopkg.in/yaml.v3"

    "github.com/hyperifyio/minutewatch/internal/resolve"
)

// ErrConfig marks configuration errors. They are detected before any
// network work and map to exit code 1.
var ErrConfig = errors.New("config")

// FileConfig represents the single-file configuration schema.
// Nested sections map naturally to flags/env.
type FileConfig struct {
    Output    string `yaml:"output" json:"output"`
    OutputPDF string `yaml:"outputPDF" json:"outputPDF"`

    LLM struct {
        BaseURL              string `yaml:"base" json:"base"`
        Model                string `yaml:"model" json:"model"`
        APIKey               string `yaml:"key" json:"key"`
        SystemPrompt         string `yaml:"systemPrompt" json:"systemPrompt"`
        ReservedOutputTokens int    `yaml:"reservedOutputTokens" json:"reservedOutputTokens"`
    } `yaml:"llm" json:"llm"`

    Locator struct {
        Mode         string   `yaml:"mode" json:"mode"`
        ListingURL   string   `yaml:"listingURL" json:"listingURL"`
        Selector     string   `yaml:"selector" json:"selector"`
        Keywords     []string `yaml:"keywords" json:"keywords"`
        IndexURL     string   `yaml:"indexURL" json:"indexURL"`
        Body         string   `yaml:"body" json:"body"`
        DocumentType string   `yaml:"documentType" json:"documentType"`
        LookbackDays int      `yaml:"lookbackDays" json:"lookbackDays"`
        MaxDocuments int      `yaml:"maxDocuments" json:"maxDocuments"`
    } `yaml:"locator" json:"locator"`

    Topic struct {
        Name            string   `yaml:"name" json:"name"`
        Keywords        []string `yaml:"keywords" json:"keywords"`
        MaxExcerptChars int      `yaml:"maxExcerptChars" json:"maxExcerptChars"`
    } `yaml:"topic" json:"topic"`

    Drive struct {
        ServiceAccountBase64 string `yaml:"serviceAccountBase64" json:"serviceAccountBase64"`
        APIKey               string `yaml:"apiKey" json:"apiKey"`
        DownloadURL          string `yaml:"downloadURL" json:"downloadURL"`
    } `yaml:"drive" json:"drive"`

    HTTP struct {
        UserAgent     string        `yaml:"userAgent" json:"userAgent"`
        MaxConcurrent int           `yaml:"maxConcurrent" json:"maxConcurrent"`
        Attempts      int           `yaml:"attempts" json:"attempts"`
        Timeout       time.Duration `yaml:"timeout" json:"timeout"`
    } `yaml:"http" json:"http"`

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

// ApplyFileConfig overlays values from FileConfig into cfg for any fields that
// are currently unset/zero in cfg. Flags should already have been parsed; this
// function lets file config supply defaults while preserving explicit flags.
func ApplyFileConfig(cfg *Config, fc FileConfig) {
    if cfg == nil { return }

    if cfg.OutputPath == "" && fc.Output != "" { cfg.OutputPath = fc.Output }
    if cfg.OutputPDFPath == "" && fc.OutputPDF != "" { cfg.OutputPDFPath = fc.OutputPDF }

    if cfg.LLMBaseURL == "" && fc.LLM.BaseURL != "" { cfg.LLMBaseURL = fc.LLM.BaseURL }
    if cfg.LLMModel == "" && fc.LLM.Model != "" { cfg.LLMModel = fc.LLM.Model }
    if cfg.LLMAPIKey == "" && fc.LLM.APIKey != "" { cfg.LLMAPIKey = fc.LLM.APIKey }
    if cfg.SystemPrompt == "" && fc.LLM.SystemPrompt != "" { cfg.SystemPrompt = fc.LLM.SystemPrompt }
    if cfg.ReservedOutputTokens == 0 && fc.LLM.ReservedOutputTokens > 0 { cfg.ReservedOutputTokens = fc.LLM.ReservedOutputTokens }

    if cfg.LocatorMode == "" && fc.Locator.Mode != "" { cfg.LocatorMode = fc.Locator.Mode }
    if cfg.ListingURL == "" && fc.Locator.ListingURL != "" { cfg.ListingURL = fc.Locator.ListingURL }
    if cfg.ListingSelector == "" && fc.Locator.Selector != "" { cfg.ListingSelector = fc.Locator.Selector }
    if len(cfg.MinutesKeywords) == 0 && len(fc.Locator.Keywords) > 0 { cfg.MinutesKeywords = append([]string{}, fc.Locator.Keywords...) }
    if cfg.IndexURL == "" && fc.Locator.IndexURL != "" { cfg.IndexURL = fc.Locator.IndexURL }
    if cfg.MeetingBody == "" && fc.Locator.Body != "" { cfg.MeetingBody = fc.Locator.Body }
    if cfg.DocumentType == "" && fc.Locator.DocumentType != "" { cfg.DocumentType = fc.Locator.DocumentType }
    if cfg.LookbackDays == 0 && fc.Locator.LookbackDays > 0 { cfg.LookbackDays = fc.Locator.LookbackDays }
    if cfg.MaxDocuments == 0 && fc.Locator.MaxDocuments > 0 { cfg.MaxDocuments = fc.Locator.MaxDocuments }

    if cfg.Topic == "" && fc.Topic.Name != "" { cfg.Topic = fc.Topic.Name }
    if len(cfg.TopicKeywords) == 0 && len(fc.Topic.Keywords) > 0 { cfg.TopicKeywords = append([]string{}, fc.Topic.Keywords...) }
    if cfg.MaxExcerptChars == 0 && fc.Topic.MaxExcerptChars > 0 { cfg.MaxExcerptChars = fc.Topic.MaxExcerptChars }

    if cfg.ServiceAccountB64 == "" && fc.Drive.ServiceAccountBase64 != "" { cfg.ServiceAccountB64 = fc.Drive.ServiceAccountBase64 }
    if cfg.DriveAPIKey == "" && fc.Drive.APIKey != "" { cfg.DriveAPIKey = fc.Drive.APIKey }
    if cfg.DownloadURL == "" && fc.Drive.DownloadURL != "" { cfg.DownloadURL = fc.Drive.DownloadURL }

    if cfg.UserAgent == "" && fc.HTTP.UserAgent != "" { cfg.UserAgent = fc.HTTP.UserAgent }
    if cfg.MaxConcurrent == 0 && fc.HTTP.MaxConcurrent > 0 { cfg.MaxConcurrent = fc.HTTP.MaxConcurrent }
    if cfg.FetchAttempts == 0 && fc.HTTP.Attempts > 0 { cfg.FetchAttempts = fc.HTTP.Attempts }
    if cfg.RequestTimeout == 0 && fc.HTTP.Timeout > 0 { cfg.RequestTimeout = fc.HTTP.Timeout }

    if !cfg.DryRun && fc.DryRun { cfg.DryRun = true }
    if !cfg.Verbose && fc.Verbose { cfg.Verbose = true }
}

// ApplyDefaults fills zero-valued fields with their defaults. An empty
// locator mode is inferred from whichever source URL is set.
func ApplyDefaults(cfg *Config) {
    if cfg == nil { return }
    if cfg.LocatorMode == "" {
        if trim(cfg.ListingURL) == "" && trim(cfg.IndexURL) != "" {
            cfg.LocatorMode = ModeIndex
        } else {
            cfg.LocatorMode = ModeListing
        }
    }
    cfg.LocatorMode = strings.ToLower(trim(cfg.LocatorMode))
    if cfg.LookbackDays == 0 { cfg.LookbackDays = DefaultLookbackDays }
    if cfg.MaxDocuments == 0 { cfg.MaxDocuments = DefaultMaxDocuments }
    if trim(cfg.Topic) == "" { cfg.Topic = DefaultTopic }
    if cfg.MaxExcerptChars == 0 { cfg.MaxExcerptChars = DefaultMaxExcerptChars }
    if cfg.MaxConcurrent == 0 { cfg.MaxConcurrent = DefaultMaxConcurrent }
    if cfg.FetchAttempts == 0 { cfg.FetchAttempts = DefaultFetchAttempts }
    if cfg.RequestTimeout == 0 { cfg.RequestTimeout = DefaultRequestTimeout }
    if cfg.ReservedOutputTokens == 0 { cfg.ReservedOutputTokens = DefaultReservedOutputTokens }
    if trim(cfg.UserAgent) == "" { cfg.UserAgent = DefaultUserAgent() }
}

// ValidateConfig reports the first configuration problem as an ErrConfig.
func ValidateConfig(cfg Config) error {
    if !cfg.DryRun {
        if trim(cfg.LLMModel) == "" {
            return fmt.Errorf("%w: llm.model is required (or set LLM_MODEL)", ErrConfig)
        }
        if trim(cfg.LLMAPIKey) == "" {
            return fmt.Errorf("%w: llm.key is required (or set LLM_API_KEY)", ErrConfig)
        }
    }
    switch cfg.LocatorMode {
    case ModeListing:
        if err := checkHTTPURL("listing url", cfg.ListingURL); err != nil {
            return err
        }
    case ModeIndex:
        if err := checkHTTPURL("index url", cfg.IndexURL); err != nil {
            return err
        }
    default:
        return fmt.Errorf("%w: unknown locator mode %q (want %q or %q)", ErrConfig, cfg.LocatorMode, ModeListing, ModeIndex)
    }
    if trim(cfg.ServiceAccountB64) != "" {
        if _, err := resolve.DecodeCredentials(cfg.ServiceAccountB64); err != nil {
            return fmt.Errorf("%w: service account: %v", ErrConfig, err)
        }
    }
    if cfg.LookbackDays < 0 || cfg.MaxDocuments < 0 || cfg.MaxExcerptChars < 0 || cfg.MaxConcurrent < 0 || cfg.FetchAttempts < 0 || cfg.RequestTimeout < 0 {
        return fmt.Errorf("%w: negative limits are not allowed", ErrConfig)
    }
    return nil
}

func checkHTTPURL(name string, raw string) error {
    if trim(raw) == "" {
        return fmt.Errorf("%w: %s is required", ErrConfig, name)
    }
    // {date} templates are not valid URL syntax until substituted.
    u, err := url.Parse(strings.ReplaceAll(trim(raw), "{date}", "2006-01-02"))
    if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
        return fmt.Errorf("%w: %s must be an absolute http(s) URL: %q", ErrConfig, name, raw)
    }
    return nil
}

func trim(s string) string { return strings.TrimSpace(s) }
