package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/minutewatch/internal/app"
	"github.com/hyperifyio/minutewatch/internal/locate"
)

// Exit codes.
const (
	exitOK     = 0
	exitConfig = 1
	exitOrigin = 2
)

func main() {
	// Logging setup
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	zerolog.DefaultContextLogger = &log.Logger

	os.Exit(realMain(os.Args[1:], os.Stdout))
}

// realMain parses args, runs the pipeline, and returns the process exit code.
func realMain(args []string, stdout io.Writer) int {
	opts, err := parseFlags(args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		log.Error().Err(err).Msg("invalid flags")
		return exitConfig
	}
	if opts.showVersion {
		fmt.Fprintf(stdout, "minutewatch %s (%s)\n", app.BuildVersion, app.BuildCommit)
		return exitOK
	}

	if err := app.LoadEnvFiles(opts.envFiles...); err != nil {
		return fail(opts.cfg.OutputPath, fmt.Errorf("%w: env file: %v", app.ErrConfig, err))
	}
	cfg, err := resolveConfig(opts)
	if err != nil {
		return fail(opts.cfg.OutputPath, err)
	}

	if cfg.Verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	if err := run(context.Background(), cfg); err != nil {
		return fail(cfg.OutputPath, err)
	}
	return exitOK
}

func run(ctx context.Context, cfg app.Config) error {
	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	summaries, err := a.Run(ctx)
	if err != nil {
		return err
	}
	return a.WriteResults(summaries)
}

// fail logs err, writes the error object to the output, and maps err to an
// exit code: origin errors exit 2, everything else exits 1.
func fail(outputPath string, err error) int {
	log.Error().Err(err).Msg("run failed")
	if werr := app.WriteOutput(outputPath, app.NewErrorObject(err)); werr != nil {
		log.Error().Err(werr).Msg("write error object")
	}
	if errors.Is(err, locate.ErrOrigin) {
		return exitOrigin
	}
	return exitConfig
}

type options struct {
	configPath  string
	envFiles    []string
	showVersion bool
	cfg         app.Config
	set         map[string]bool
}

func parseFlags(args []string) (options, error) {
	var (
		opts            options
		envFiles        string
		minutesKeywords string
		topicKeywords   string
	)
	c := &opts.cfg
	fs := flag.NewFlagSet("minutewatch", flag.ContinueOnError)
	fs.StringVar(&opts.configPath, "config", "", "Path to YAML or JSON config file")
	fs.StringVar(&envFiles, "env", ".env", "Comma-separated dotenv files; later files override earlier ones")
	fs.BoolVar(&opts.showVersion, "version", false, "Print version and exit")

	fs.StringVar(&c.OutputPath, "output", "", "Path to write the JSON result (default stdout)")
	fs.StringVar(&c.OutputPDFPath, "output.pdf", "", "Optional path to write a PDF digest")

	fs.StringVar(&c.LLMBaseURL, "llm.base", "", "OpenAI-compatible base URL")
	fs.StringVar(&c.LLMModel, "llm.model", "", "Model name")
	fs.StringVar(&c.LLMAPIKey, "llm.key", "", "API key for the OpenAI-compatible server")
	fs.StringVar(&c.SystemPrompt, "llm.systemPrompt", "", "Override the summarizer system prompt")
	fs.IntVar(&c.ReservedOutputTokens, "llm.maxTokens", 0, "Tokens reserved for each summary")

	fs.StringVar(&c.LocatorMode, "locator.mode", "", "Locator mode: listing or index")
	fs.StringVar(&c.ListingURL, "locator.listing", "", "URL of the minutes listing page")
	fs.StringVar(&c.ListingSelector, "locator.selector", "", "CSS selector for candidate anchors (default a[href])")
	fs.StringVar(&minutesKeywords, "locator.keywords", "", "Comma-separated words identifying minutes links (default minutes)")
	fs.StringVar(&c.IndexURL, "locator.index", "", "Per-day meeting index URL; {date} is replaced by YYYY-MM-DD")
	fs.StringVar(&c.MeetingBody, "locator.body", "", "Meeting body filter for the index locator")
	fs.StringVar(&c.DocumentType, "locator.docType", "", "Document type filter for the index locator (default Minutes)")
	fs.IntVar(&c.LookbackDays, "locator.days", 0, "Lookback window in days")
	fs.IntVar(&c.MaxDocuments, "locator.max", 0, "Maximum number of documents")

	fs.StringVar(&c.Topic, "topic", "", "Topic to summarize (default housing)")
	fs.StringVar(&topicKeywords, "topic.keywords", "", "Comma-separated topic synonyms")
	fs.IntVar(&c.MaxExcerptChars, "topic.maxChars", 0, "Excerpt character budget")

	fs.StringVar(&c.ServiceAccountB64, "drive.serviceAccount", "", "Base64 service-account JSON for authenticated downloads")
	fs.StringVar(&c.DriveAPIKey, "drive.key", "", "API key for publicly shared files")

	fs.StringVar(&c.UserAgent, "http.ua", "", "User-Agent for outbound requests")
	fs.IntVar(&c.MaxConcurrent, "http.concurrency", 0, "Documents processed concurrently")
	fs.DurationVar(&c.RequestTimeout, "http.timeout", 0, "Per-request timeout")

	fs.BoolVar(&c.DryRun, "dry-run", false, "Locate, fetch, and select without calling the model")
	fs.BoolVar(&c.Verbose, "v", false, "Verbose logging")

	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	c.MinutesKeywords = splitList(minutesKeywords)
	c.TopicKeywords = splitList(topicKeywords)
	opts.envFiles = splitList(envFiles)
	opts.set = map[string]bool{}
	fs.Visit(func(f *flag.Flag) { opts.set[f.Name] = true })
	return opts, nil
}

// resolveConfig layers the sources: config file, then environment, then
// explicitly set flags.
func resolveConfig(opts options) (app.Config, error) {
	var cfg app.Config
	if strings.TrimSpace(opts.configPath) != "" {
		fc, err := app.LoadConfigFile(opts.configPath)
		if err != nil {
			return cfg, fmt.Errorf("%w: %v", app.ErrConfig, err)
		}
		app.ApplyFileConfig(&cfg, fc)
	}
	app.ApplyEnvOverrides(&cfg)
	overlayFlags(&cfg, opts.cfg, opts.set)
	return cfg, nil
}

var flagFields = map[string]func(dst *app.Config, src app.Config){
	"output":               func(d *app.Config, s app.Config) { d.OutputPath = s.OutputPath },
	"output.pdf":           func(d *app.Config, s app.Config) { d.OutputPDFPath = s.OutputPDFPath },
	"llm.base":             func(d *app.Config, s app.Config) { d.LLMBaseURL = s.LLMBaseURL },
	"llm.model":            func(d *app.Config, s app.Config) { d.LLMModel = s.LLMModel },
	"llm.key":              func(d *app.Config, s app.Config) { d.LLMAPIKey = s.LLMAPIKey },
	"llm.systemPrompt":     func(d *app.Config, s app.Config) { d.SystemPrompt = s.SystemPrompt },
	"llm.maxTokens":        func(d *app.Config, s app.Config) { d.ReservedOutputTokens = s.ReservedOutputTokens },
	"locator.mode":         func(d *app.Config, s app.Config) { d.LocatorMode = s.LocatorMode },
	"locator.listing":      func(d *app.Config, s app.Config) { d.ListingURL = s.ListingURL },
	"locator.selector":     func(d *app.Config, s app.Config) { d.ListingSelector = s.ListingSelector },
	"locator.keywords":     func(d *app.Config, s app.Config) { d.MinutesKeywords = s.MinutesKeywords },
	"locator.index":        func(d *app.Config, s app.Config) { d.IndexURL = s.IndexURL },
	"locator.body":         func(d *app.Config, s app.Config) { d.MeetingBody = s.MeetingBody },
	"locator.docType":      func(d *app.Config, s app.Config) { d.DocumentType = s.DocumentType },
	"locator.days":         func(d *app.Config, s app.Config) { d.LookbackDays = s.LookbackDays },
	"locator.max":          func(d *app.Config, s app.Config) { d.MaxDocuments = s.MaxDocuments },
	"topic":                func(d *app.Config, s app.Config) { d.Topic = s.Topic },
	"topic.keywords":       func(d *app.Config, s app.Config) { d.TopicKeywords = s.TopicKeywords },
	"topic.maxChars":       func(d *app.Config, s app.Config) { d.MaxExcerptChars = s.MaxExcerptChars },
	"drive.serviceAccount": func(d *app.Config, s app.Config) { d.ServiceAccountB64 = s.ServiceAccountB64 },
	"drive.key":            func(d *app.Config, s app.Config) { d.DriveAPIKey = s.DriveAPIKey },
	"http.ua":              func(d *app.Config, s app.Config) { d.UserAgent = s.UserAgent },
	"http.concurrency":     func(d *app.Config, s app.Config) { d.MaxConcurrent = s.MaxConcurrent },
	"http.timeout":         func(d *app.Config, s app.Config) { d.RequestTimeout = s.RequestTimeout },
	"dry-run":              func(d *app.Config, s app.Config) { d.DryRun = s.DryRun },
	"v":                    func(d *app.Config, s app.Config) { d.Verbose = s.Verbose },
}

func overlayFlags(dst *app.Config, src app.Config, set map[string]bool) {
	for name := range set {
		if apply, ok := flagFields[name]; ok {
			apply(dst, src)
		}
	}
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	return out
}
