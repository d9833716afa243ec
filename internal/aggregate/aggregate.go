package aggregate

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/hyperifyio/minutewatch/internal/extract"
	"github.com/hyperifyio/minutewatch/internal/locate"
	"github.com/hyperifyio/minutewatch/internal/resolve"
	selecter "github.com/hyperifyio/minutewatch/internal/select"
	"github.com/hyperifyio/minutewatch/internal/summarize"
)

// DefaultMaxConcurrent bounds per-link pipelines when Pipeline.MaxConcurrent is zero.
const DefaultMaxConcurrent = 4

// MeetingSummary is one summarized meeting in the final output.
type MeetingSummary struct {
	Date        string `json:"date"`
	Summary     string `json:"summary"`
	OriginalURL string `json:"originalUrl"`
}

// Resolver obtains the document behind a candidate link.
type Resolver interface {
	Resolve(ctx context.Context, link locate.CandidateLink) (resolve.Document, error)
}

// Summarizer turns a non-empty excerpt into a short summary.
type Summarizer interface {
	Summarize(ctx context.Context, excerpt string) (string, error)
}

// Stage names the step at which a per-link pipeline stopped.
type Stage string

const (
	StageResolve   Stage = "resolve"
	StageExtract   Stage = "extract"
	StageSelect    Stage = "select"
	StageSummarize Stage = "summarize"
	StageSentinel  Stage = "sentinel"
	StageDone      Stage = "done"
)

// Outcome is the result of one per-link pipeline. Only outcomes with
// Stage == StageDone produce a MeetingSummary.
type Outcome struct {
	Link    locate.CandidateLink
	Stage   Stage
	Summary string
	Err     error
}

// Pipeline runs resolve, extract, select and summarize for every link.
type Pipeline struct {
	Resolver   Resolver
	Extractor  extract.Extractor
	Select     selecter.Options
	Summarizer Summarizer
	// Topic is used to recognize the "nothing relevant" reply.
	Topic string
	// MaxConcurrent limits per-link pipelines in flight. Zero means DefaultMaxConcurrent.
	MaxConcurrent int
}

// Run processes every link and returns the summaries, newest first. It never
// fails: per-link problems only remove that link from the result. The result
// is non-nil even when empty.
func (p *Pipeline) Run(ctx context.Context, links []locate.CandidateLink) []MeetingSummary {
	return Collect(p.Process(ctx, links))
}

// Process fans out one pipeline per link and waits for all of them. The
// returned slice is index-aligned with links.
func (p *Pipeline) Process(ctx context.Context, links []locate.CandidateLink) []Outcome {
	outcomes := make([]Outcome, len(links))
	if len(links) == 0 {
		return outcomes
	}
	limit := p.MaxConcurrent
	if limit <= 0 {
		limit = DefaultMaxConcurrent
	}
	var g errgroup.Group
	g.SetLimit(limit)
	for i, link := range links {
		g.Go(func() error {
			outcomes[i] = p.processOne(ctx, link)
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

func (p *Pipeline) processOne(ctx context.Context, link locate.CandidateLink) (o Outcome) {
	o = Outcome{Link: link, Stage: StageResolve}
	logger := log.Ctx(ctx).With().Str("url", link.RawURL).Str("date", link.DateString()).Logger()
	defer func() {
		if r := recover(); r != nil {
			o.Err = fmt.Errorf("panic: %v", r)
		}
		switch {
		case o.Stage == StageDone:
			logger.Debug().Msg("summarized")
		case o.Err != nil:
			logger.Warn().Err(o.Err).Str("stage", string(o.Stage)).Msg("link skipped")
		default:
			logger.Info().Str("stage", string(o.Stage)).Msg("nothing relevant")
		}
	}()

	if p.Resolver == nil || p.Extractor == nil || p.Summarizer == nil {
		o.Err = errors.New("pipeline not configured")
		return o
	}
	doc, err := p.Resolver.Resolve(ctx, link)
	if err != nil {
		o.Err = err
		return o
	}

	o.Stage = StageExtract
	text := p.Extractor.Extract(ctx, doc.Body)
	doc.Body = nil
	if text.Empty() {
		return o
	}

	o.Stage = StageSelect
	excerpt := selecter.Select(text.String(), p.Select)
	if excerpt.Empty() {
		return o
	}

	o.Stage = StageSummarize
	summary, err := p.Summarizer.Summarize(ctx, excerpt.Text())
	if err != nil {
		o.Err = err
		return o
	}
	if summarize.IsSentinel(summary, p.topic()) {
		o.Stage = StageSentinel
		return o
	}
	o.Stage = StageDone
	o.Summary = summary
	return o
}

func (p *Pipeline) topic() string {
	if p.Topic != "" {
		return p.Topic
	}
	return summarize.DefaultTopic
}

// Collect keeps the completed outcomes and orders them by date, newest first.
// Links sharing a date keep their input order.
func Collect(outcomes []Outcome) []MeetingSummary {
	done := make([]Outcome, 0, len(outcomes))
	for _, o := range outcomes {
		if o.Stage == StageDone && o.Err == nil && o.Summary != "" {
			done = append(done, o)
		}
	}
	sort.SliceStable(done, func(i, j int) bool {
		return done[i].Link.SourceDate.After(done[j].Link.SourceDate)
	})
	out := make([]MeetingSummary, 0, len(done))
	for _, o := range done {
		out = append(out, MeetingSummary{
			Date:        o.Link.DateString(),
			Summary:     o.Summary,
			OriginalURL: o.Link.RawURL,
		})
	}
	return out
}
