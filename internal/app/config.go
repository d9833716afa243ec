package app

import "time"

// Locator modes.
const (
	ModeListing = "listing"
	ModeIndex   = "index"
)

// Defaults applied by ValidateConfig to zero-valued fields.
const (
	DefaultLookbackDays         = 90
	DefaultMaxDocuments         = 10
	DefaultTopic                = "housing"
	DefaultMaxExcerptChars      = 12000
	DefaultMaxConcurrent        = 4
	DefaultFetchAttempts        = 2
	DefaultRequestTimeout       = 30 * time.Second
	DefaultReservedOutputTokens = 256
)

// Config holds runtime configuration for the application.
type Config struct {
	OutputPath    string
	OutputPDFPath string

	// LLM
	LLMBaseURL           string
	LLMModel             string
	LLMAPIKey            string
	SystemPrompt         string
	ReservedOutputTokens int

	// Locator
	LocatorMode     string
	ListingURL      string
	ListingSelector string
	MinutesKeywords []string
	IndexURL        string
	MeetingBody     string
	DocumentType    string
	LookbackDays    int
	MaxDocuments    int

	// Selection
	Topic           string
	TopicKeywords   []string
	MaxExcerptChars int

	// Storage access
	ServiceAccountB64 string
	DriveAPIKey       string
	DownloadURL       string

	// HTTP
	UserAgent      string
	MaxConcurrent  int
	FetchAttempts  int
	RequestTimeout time.Duration

	// Behavior
	DryRun  bool
	Verbose bool
}
