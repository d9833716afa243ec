package app

import (
	"context"
	"fmt"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/minutewatch/internal/aggregate"
	"github.com/hyperifyio/minutewatch/internal/budget"
	"github.com/hyperifyio/minutewatch/internal/extract"
	"github.com/hyperifyio/minutewatch/internal/fetch"
	"github.com/hyperifyio/minutewatch/internal/llm"
	"github.com/hyperifyio/minutewatch/internal/locate"
	"github.com/hyperifyio/minutewatch/internal/resolve"
	selecter "github.com/hyperifyio/minutewatch/internal/select"
	"github.com/hyperifyio/minutewatch/internal/summarize"
)

// App wires the locator and the per-document pipeline from a Config.
type App struct {
	cfg      Config
	source   locate.Source
	pipeline *aggregate.Pipeline
	now      func() time.Time
}

// New validates cfg and constructs every collaborator once. Errors are
// configuration errors (ErrConfig); no network work happens here.
func New(ctx context.Context, cfg Config) (*App, error) {
	ApplyDefaults(&cfg)
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}

	// Use a high-throughput HTTP client to avoid client-side throttling
	hc := newHighThroughputHTTPClient()

	fc := &fetch.Client{
		HTTPClient:        hc,
		UserAgent:         cfg.UserAgent,
		MaxAttempts:       cfg.FetchAttempts,
		PerRequestTimeout: cfg.RequestTimeout,
		MaxConcurrent:     cfg.MaxConcurrent,
	}
	r := &resolve.Resolver{Fetcher: fc, DownloadURL: cfg.DownloadURL}
	if trim(cfg.ServiceAccountB64) != "" {
		d, err := resolve.NewServiceAccountDrive(ctx, cfg.ServiceAccountB64)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrConfig, err)
		}
		r.Drive = d
	}
	if trim(cfg.DriveAPIKey) != "" {
		d, err := resolve.NewAPIKeyDrive(ctx, cfg.DriveAPIKey, hc)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrConfig, err)
		}
		r.PublicDrive = d
	}

	var summarizer aggregate.Summarizer = dryRunSummarizer{}
	maxChars := cfg.MaxExcerptChars
	if !cfg.DryRun {
		s := &summarize.Summarizer{
			Client:       llm.NewOpenAIProvider(cfg.LLMBaseURL, cfg.LLMAPIKey, hc),
			Model:        cfg.LLMModel,
			Topic:        cfg.Topic,
			MaxTokens:    cfg.ReservedOutputTokens,
			SystemPrompt: cfg.SystemPrompt,
		}
		system := summarize.SystemMessage(cfg.Topic)
		if trim(cfg.SystemPrompt) != "" {
			system = cfg.SystemPrompt
		}
		maxChars = budget.ExcerptChars(cfg.LLMModel, cfg.ReservedOutputTokens, system, summarize.Instruction(cfg.Topic), cfg.MaxExcerptChars)
		if maxChars <= 0 {
			return nil, fmt.Errorf("%w: model %s has no context left for an excerpt after %d reserved output tokens", ErrConfig, cfg.LLMModel, cfg.ReservedOutputTokens)
		}
		if maxChars < cfg.MaxExcerptChars {
			log.Ctx(ctx).Warn().Int("configured", cfg.MaxExcerptChars).Int("clamped", maxChars).Str("model", cfg.LLMModel).Msg("excerpt budget clamped to model context")
		}
		summarizer = s
	}

	a := &App{
		cfg:    cfg,
		source: newSource(cfg, hc),
		pipeline: &aggregate.Pipeline{
			Resolver:      r,
			Extractor:     extract.PDFExtractor{},
			Select:        selecter.Options{Keywords: topicKeywords(cfg), MaxChars: maxChars},
			Summarizer:    summarizer,
			Topic:         cfg.Topic,
			MaxConcurrent: cfg.MaxConcurrent,
		},
		now: time.Now,
	}
	return a, nil
}

// newSource builds the configured locator. It gets its own fetch client so
// that index fan-out is bounded by the locator, not by the document limiter.
func newSource(cfg Config, hc *http.Client) locate.Source {
	fc := &fetch.Client{
		HTTPClient:        hc,
		UserAgent:         cfg.UserAgent,
		MaxAttempts:       cfg.FetchAttempts,
		PerRequestTimeout: cfg.RequestTimeout,
	}
	if cfg.LocatorMode == ModeIndex {
		return &locate.IndexSource{
			URL:           cfg.IndexURL,
			Fetcher:       fc,
			Body:          cfg.MeetingBody,
			DocumentType:  cfg.DocumentType,
			LookbackDays:  cfg.LookbackDays,
			MaxCount:      cfg.MaxDocuments,
			MaxConcurrent: cfg.MaxConcurrent * 2,
		}
	}
	return &locate.ListingSource{
		URL:      cfg.ListingURL,
		Fetcher:  fc,
		Selector: cfg.ListingSelector,
		Keywords: cfg.MinutesKeywords,
		Lookback: time.Duration(cfg.LookbackDays) * 24 * time.Hour,
		MaxCount: cfg.MaxDocuments,
	}
}

// topicKeywords is the topic name plus its configured synonyms. The built-in
// housing vocabulary applies only to the default topic.
func topicKeywords(cfg Config) []string {
	synonyms := cfg.TopicKeywords
	if len(synonyms) == 0 && cfg.Topic == DefaultTopic {
		synonyms = selecter.DefaultKeywords
	}
	return selecter.KeywordsFor(cfg.Topic, synonyms)
}

// Config returns the effective configuration after defaults.
func (a *App) Config() Config { return a.cfg }

// Locate runs only the configured locator.
func (a *App) Locate(ctx context.Context) ([]locate.CandidateLink, error) {
	return a.source.Locate(ctx, a.now())
}

// Run locates candidate documents and summarizes them. The only error is a
// locator origin failure (wrapping locate.ErrOrigin); an empty result is a
// valid outcome.
func (a *App) Run(ctx context.Context) ([]aggregate.MeetingSummary, error) {
	logger := log.Ctx(ctx).With().Str("run_id", uuid.NewString()).Logger()
	ctx = logger.WithContext(ctx)

	start := time.Now()
	links, err := a.Locate(ctx)
	if err != nil {
		return nil, err
	}
	out := a.pipeline.Run(ctx, links)
	logger.Info().
		Str("source", a.source.Name()).
		Int("candidates", len(links)).
		Int("summaries", len(out)).
		Dur("elapsed", time.Since(start)).
		Msg("run complete")
	return out, nil
}

// dryRunSummarizer stands in for the model when DryRun is set.
type dryRunSummarizer struct{}

func (dryRunSummarizer) Summarize(ctx context.Context, excerpt string) (string, error) {
	return fmt.Sprintf("[dry run] %d characters selected for summarization", utf8.RuneCountInString(excerpt)), nil
}
