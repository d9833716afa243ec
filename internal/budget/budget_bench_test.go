package budget

import (
    "fmt"
    "testing"
)

func BenchmarkEstimateTokens(b *testing.B) {
	inputs := []int{64, 256, 1024, 4096, 16384, 65536}
	for _, n := range inputs {
        b.Run(fmt.Sprintf("chars=%d", n), func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				_ = EstimateTokensFromChars(n)
			}
		})
	}
}

func BenchmarkExcerptChars(b *testing.B) {
	cases := []struct{
		name  string
		model string
	}{
		{"gemini 1M", "gemini-2.0-flash"},
		{"local 4k", "gpt-oss-20b"},
		{"unknown default 8k", "mystery-model"},
	}
	for _, cs := range cases {
		b.Run(cs.name, func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				_ = ExcerptChars(cs.model, 256, "system prompt", "instruction", 12000)
			}
		})
	}
}
