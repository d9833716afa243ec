package summarize

import (
    "context"
    "errors"
    "fmt"
    "strings"
    "time"

    "github.com/rs/zerolog/log"
    openai "github.com/sashabaranov/go-openai"

    "github.com/hyperifyio/minutewatch/internal/llm"
)

// DefaultTopic is used when Summarizer.Topic is empty.
const DefaultTopic = "housing"

// DefaultTemperature keeps summaries close to the source wording.
const DefaultTemperature = 0.2

var (
    // ErrEmptyExcerpt is returned without calling the model.
    ErrEmptyExcerpt = errors.New("empty excerpt")
    // ErrNoSummary indicates the model returned no usable text.
    ErrNoSummary = errors.New("no summary in response")
)

// Summarizer asks a chat model for a short neutral summary of a
// topic-filtered excerpt, or for the sentinel phrase when nothing in the
// excerpt is on topic.
type Summarizer struct {
    Client llm.Client
    Model  string
    Topic  string
    // Temperature zero means DefaultTemperature.
    Temperature float32
    // MaxTokens bounds the reply. Zero leaves it to the service.
    MaxTokens int
    // SystemPrompt, when non-empty, overrides the default system message.
    SystemPrompt string
}

// Summarize returns the trimmed model reply for excerpt. The reply may be the
// sentinel phrase; use IsSentinel to detect it. Service failures (transport,
// non-2xx, malformed or empty responses) are returned as errors after a
// single retry.
func (s *Summarizer) Summarize(ctx context.Context, excerpt string) (string, error) {
    if s.Client == nil || strings.TrimSpace(s.Model) == "" {
        return "", errors.New("summarizer not configured")
    }
    if strings.TrimSpace(excerpt) == "" {
        return "", ErrEmptyExcerpt
    }
    topic := s.topic()
    system := SystemMessage(topic)
    if strings.TrimSpace(s.SystemPrompt) != "" {
        system = s.SystemPrompt
    }
    temp := s.Temperature
    if temp == 0 {
        temp = DefaultTemperature
    }
    req := openai.ChatCompletionRequest{
        Model: s.Model,
        Messages: []openai.ChatCompletionMessage{
            {Role: openai.ChatMessageRoleSystem, Content: system},
            {Role: openai.ChatMessageRoleUser, Content: Instruction(topic) + "\n\nExcerpt:\n\n" + excerpt},
        },
        Temperature: temp,
        MaxTokens:   s.MaxTokens,
        N:           1,
    }
    // Transient-error retry: one short backoff attempt before failing.
    resp, err := s.Client.CreateChatCompletion(ctx, req)
    if err != nil {
        if !isTransient(err) {
            return "", fmt.Errorf("summary call: %w", err)
        }
        log.Ctx(ctx).Debug().Err(err).Msg("summary call failed; retrying once")
        if sleeper := sleepFunc; sleeper != nil {
            sleeper(250)
        } else if err := defaultSleep(ctx, 250); err != nil {
            return "", err
        }
        resp, err = s.Client.CreateChatCompletion(ctx, req)
        if err != nil {
            return "", fmt.Errorf("summary call (after retry): %w", err)
        }
    }
    if len(resp.Choices) == 0 {
        return "", ErrNoSummary
    }
    out := strings.TrimSpace(resp.Choices[0].Message.Content)
    if out == "" {
        return "", ErrNoSummary
    }
    return out, nil
}

func (s *Summarizer) topic() string {
    if t := strings.TrimSpace(s.Topic); t != "" {
        return t
    }
    return DefaultTopic
}

// SystemMessage is the default system prompt for topic.
func SystemMessage(topic string) string {
    return fmt.Sprintf("You summarize municipal meeting minutes for residents who follow %s policy. Report only what the minutes say. Stay neutral and do not speculate.", topic)
}

// Instruction is the fixed user instruction preceding the excerpt.
func Instruction(topic string) string {
    return fmt.Sprintf("Summarize in one to three neutral sentences what the following meeting-minutes excerpt says about %s. "+
        "If nothing in the excerpt concerns %s, reply with exactly: %s", topic, topic, SentinelFor(topic))
}

// SentinelFor is the exact phrase the model is asked to return when the
// excerpt has nothing on topic.
func SentinelFor(topic string) string {
    return fmt.Sprintf("No %s topics found.", strings.TrimSpace(topic))
}

// IsSentinel reports whether reply is the sentinel for topic, ignoring case,
// surrounding quotes, and the trailing period.
func IsSentinel(reply string, topic string) bool {
    return canonicalReply(reply) == canonicalReply(SentinelFor(topic))
}

func canonicalReply(s string) string {
    s = strings.TrimSpace(s)
    s = strings.Trim(s, "\"'`“”‘’*")
    s = strings.TrimSpace(s)
    s = strings.TrimRight(s, ".")
    return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// isTransient reports whether a failed call is worth repeating: server
// errors, rate limiting, deadlines and transport failures. Other client
// errors such as bad credentials fail immediately.
func isTransient(err error) bool {
    if errors.Is(err, context.Canceled) {
        return false
    }
    if errors.Is(err, context.DeadlineExceeded) {
        return true
    }
    var apiErr *openai.APIError
    if errors.As(err, &apiErr) {
        return retryableStatus(apiErr.HTTPStatusCode)
    }
    var reqErr *openai.RequestError
    if errors.As(err, &reqErr) {
        return retryableStatus(reqErr.HTTPStatusCode)
    }
    return true
}

func retryableStatus(code int) bool {
    return code >= 500 || code == 429
}

// sleepFunc allows tests to inject a deterministic sleep hook measured in milliseconds.
// When nil, defaultSleep is used.
var sleepFunc func(ms int)

func defaultSleep(ctx context.Context, ms int) error {
    t := time.NewTimer(time.Duration(ms) * time.Millisecond)
    defer t.Stop()
    select {
    case <-ctx.Done():
        return ctx.Err()
    case <-t.C:
        return nil
    }
}
