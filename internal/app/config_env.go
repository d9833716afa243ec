package app

import (
    "os"
    "strconv"
    "strings"
    "time"
)

// ApplyEnvToConfig populates unset fields of cfg from environment variables.
// Explicit cfg values take precedence over env.
func ApplyEnvToConfig(cfg *Config) {
    if cfg == nil { return }

    setString := func(dst *string, keys ...string) {
        if *dst != "" { return }
        for _, k := range keys {
            if v := strings.TrimSpace(os.Getenv(k)); v != "" {
                *dst = v
                return
            }
        }
    }
    setString(&cfg.LLMBaseURL, "LLM_BASE_URL")
    setString(&cfg.LLMModel, "LLM_MODEL")
    // GEMINI_API_KEY is accepted for deployments that only set the provider key.
    setString(&cfg.LLMAPIKey, "LLM_API_KEY", "GEMINI_API_KEY")
    setString(&cfg.LocatorMode, "LOCATOR_MODE")
    setString(&cfg.ListingURL, "MINUTES_LISTING_URL")
    setString(&cfg.IndexURL, "MINUTES_INDEX_URL")
    setString(&cfg.MeetingBody, "MEETING_BODY")
    setString(&cfg.Topic, "TOPIC")
    setString(&cfg.ServiceAccountB64, "GOOGLE_SERVICE_ACCOUNT_BASE64")
    setString(&cfg.DriveAPIKey, "GOOGLE_DRIVE_API_KEY")
    setString(&cfg.UserAgent, "USER_AGENT")

    if len(cfg.TopicKeywords) == 0 {
        cfg.TopicKeywords = splitList(os.Getenv("TOPIC_KEYWORDS"))
    }

    setInt := func(dst *int, key string) {
        if *dst != 0 { return }
        if n, ok := envInt(key); ok { *dst = n }
    }
    setInt(&cfg.LookbackDays, "LOOKBACK_DAYS")
    setInt(&cfg.MaxDocuments, "MAX_DOCUMENTS")
    setInt(&cfg.MaxExcerptChars, "MAX_EXCERPT_CHARS")
    setInt(&cfg.MaxConcurrent, "MAX_CONCURRENT")

    if cfg.RequestTimeout == 0 {
        if s := os.Getenv("REQUEST_TIMEOUT"); s != "" {
            if d, err := time.ParseDuration(s); err == nil {
                cfg.RequestTimeout = d
            }
        }
    }

    // Booleans
    setBool := func(dst *bool, envKey string) {
        if *dst { return }
        if s := strings.ToLower(strings.TrimSpace(os.Getenv(envKey))); s != "" {
            if s == "1" || s == "true" || s == "yes" || s == "on" {
                *dst = true
            }
        }
    }
    setBool(&cfg.DryRun, "DRY_RUN")
    setBool(&cfg.Verbose, "VERBOSE")
}

// ApplyEnvOverrides forcefully overrides cfg fields with environment variables
// when the corresponding env vars are set. This is used to let env take
// precedence over values coming from a config file while still allowing flags
// to remain highest precedence.
func ApplyEnvOverrides(cfg *Config) {
    if cfg == nil { return }

    if v := os.Getenv("LLM_BASE_URL"); v != "" { cfg.LLMBaseURL = v }
    if v := os.Getenv("LLM_MODEL"); v != "" { cfg.LLMModel = v }
    if v := os.Getenv("GEMINI_API_KEY"); v != "" { cfg.LLMAPIKey = v }
    if v := os.Getenv("LLM_API_KEY"); v != "" { cfg.LLMAPIKey = v }

    if v := os.Getenv("LOCATOR_MODE"); v != "" { cfg.LocatorMode = v }
    if v := os.Getenv("MINUTES_LISTING_URL"); v != "" { cfg.ListingURL = v }
    if v := os.Getenv("MINUTES_INDEX_URL"); v != "" { cfg.IndexURL = v }
    if v := os.Getenv("MEETING_BODY"); v != "" { cfg.MeetingBody = v }
    if v := os.Getenv("TOPIC"); v != "" { cfg.Topic = v }
    if v := splitList(os.Getenv("TOPIC_KEYWORDS")); len(v) > 0 { cfg.TopicKeywords = v }
    if v := os.Getenv("GOOGLE_SERVICE_ACCOUNT_BASE64"); v != "" { cfg.ServiceAccountB64 = v }
    if v := os.Getenv("GOOGLE_DRIVE_API_KEY"); v != "" { cfg.DriveAPIKey = v }
    if v := os.Getenv("USER_AGENT"); v != "" { cfg.UserAgent = v }

    if n, ok := envInt("LOOKBACK_DAYS"); ok { cfg.LookbackDays = n }
    if n, ok := envInt("MAX_DOCUMENTS"); ok { cfg.MaxDocuments = n }
    if n, ok := envInt("MAX_EXCERPT_CHARS"); ok { cfg.MaxExcerptChars = n }
    if n, ok := envInt("MAX_CONCURRENT"); ok { cfg.MaxConcurrent = n }

    if s := os.Getenv("REQUEST_TIMEOUT"); s != "" {
        if d, err := time.ParseDuration(s); err == nil {
            cfg.RequestTimeout = d
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
}

func envInt(key string) (int, bool) {
    s := strings.TrimSpace(os.Getenv(key))
    if s == "" {
        return 0, false
    }
    n, err := strconv.Atoi(s)
    if err != nil {
        return 0, false
    }
    return n, true
}

// splitList parses a comma-separated list, dropping blanks.
func splitList(s string) []string {
    if strings.TrimSpace(s) == "" {
        return nil
    }
    parts := strings.Split(s, ",")
    out := make([]string, 0, len(parts))
    for _, p := range parts {
        if v := strings.TrimSpace(p); v != "" {
            out = append(out, v)
        }
    }
    return out
}
