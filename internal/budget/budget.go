package budget

import (
    "math"
    "strings"
)

// CharsPerToken is the heuristic ratio used by the estimators below.
const CharsPerToken = 4

// EstimateTokensFromChars converts a character count into an estimated token
// count using a conservative heuristic (~4 chars per token in English). The
// result is always at least 1 when chars > 0.
func EstimateTokensFromChars(charCount int) int {
    if charCount <= 0 {
        return 0
    }
    return int(math.Ceil(float64(charCount) / CharsPerToken))
}

// EstimateTokens returns the estimated token count of a string.
func EstimateTokens(s string) int {
    return EstimateTokensFromChars(len([]rune(s)))
}

// EstimatePromptTokens estimates the total tokens for a prompt composed of
// a system message, an instruction, and the excerpt.
func EstimatePromptTokens(system string, instruction string, excerpt string) int {
    return EstimateTokens(system) + EstimateTokens(instruction) + EstimateTokens(excerpt)
}

// ModelContextTokens returns an estimated maximum context window for a given
// model name. Unknown models fall back to a conservative default.
func ModelContextTokens(modelName string) int {
    name := strings.ToLower(strings.TrimSpace(modelName))
    // OpenAI-compatible gateways often prefix the family, e.g. "models/gemini-2.0-flash".
    if i := strings.LastIndex(name, "/"); i >= 0 && i < len(name)-1 {
        name = name[i+1:]
    }
    if name == "" {
        return 8192
    }
    if v, ok := knownModelMax[name]; ok {
        return v
    }
    switch {
    case strings.HasSuffix(name, "1m"):
        return 1_000_000
    case strings.HasSuffix(name, "200k"):
        return 200_000
    case strings.HasSuffix(name, "128k"):
        return 128_000
    case strings.HasPrefix(name, "gemini-"):
        // Every current Gemini generation accepts at least 1M input tokens.
        return 1_000_000
    case strings.Contains(name, "-mini"):
        return 128_000
    }
    return 8192
}

// RemainingContext computes the remaining input token budget given a model,
// a reservation for output generation, and the estimated prompt tokens.
// The result is never negative.
func RemainingContext(modelName string, reservedForOutput int, promptTokens int) int {
    maxCtx := ModelContextTokens(modelName)
    if reservedForOutput < 0 {
        reservedForOutput = 0
    }
    remaining := maxCtx - reservedForOutput - promptTokens
    if remaining < 0 {
        return 0
    }
    return remaining
}

// HeadroomTokens is the larger of 5% of the model context or 512 tokens.
func HeadroomTokens(modelName string) int {
    max := ModelContextTokens(modelName)
    dyn := int(math.Ceil(float64(max) * 0.05))
    if dyn < 512 {
        return 512
    }
    return dyn
}

// RemainingContextWithHeadroom computes remaining tokens after accounting for
// output reservation and headroom for the given model.
func RemainingContextWithHeadroom(modelName string, reservedForOutput int, promptTokens int) int {
    return RemainingContext(modelName, reservedForOutput+HeadroomTokens(modelName), promptTokens)
}

// ExcerptChars clamps a configured excerpt character budget so that the
// excerpt, together with the fixed prompt text, fits in the model context.
// A non-positive configured value means "as much as fits".
func ExcerptChars(modelName string, reservedForOutput int, system string, instruction string, configured int) int {
    fixed := EstimatePromptTokens(system, instruction, "")
    fits := RemainingContextWithHeadroom(modelName, reservedForOutput, fixed) * CharsPerToken
    if configured <= 0 || configured > fits {
        return fits
    }
    return configured
}

// knownModelMax contains rough context sizes for common model identifiers.
var knownModelMax = map[string]int{
    "gemini-1.5-flash":      1_000_000,
    "gemini-1.5-pro":        2_000_000,
    "gemini-2.0-flash":      1_000_000,
    "gemini-2.0-flash-lite": 1_000_000,
    "gemini-2.5-flash":      1_000_000,
    "gemini-2.5-pro":        1_000_000,

    "gpt-4o":        128_000,
    "gpt-4o-mini":   128_000,
    "gpt-4-turbo":   128_000,
    "gpt-3.5-turbo": 16_384,

    "llama-3":   8_192,
    "llama-3.1": 128_000,

    // Local OpenAI-compatible backends default conservatively.
    "gpt-oss-20b": 4_096,
}
