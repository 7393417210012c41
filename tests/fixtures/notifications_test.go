package fixtures_test

import (
	"testing"

	"school-notify/internal/utils/text"
	"school-notify/tests/fixtures"
)

// TestGenerateSMSBody tests that SMS body generation fits in a single segment
func TestGenerateSMSBody(t *testing.T) {
	body := fixtures.GenerateSMSBody()

	if body == "" {
		t.Error("Generated body is empty")
	}

	// Japanese content is transported as UCS-2, one segment is 70 characters
	if segments := text.SMSSegments(body); segments != 1 {
		t.Errorf("Expected single SMS segment, got %d (length %d)", segments, text.CountRunes(body))
	}
}

// TestGenerateMediumBody tests that medium body generation produces correct length
func TestGenerateMediumBody(t *testing.T) {
	body := fixtures.GenerateMediumBody()

	length := text.CountRunes(body)
	expectedMin := 450 // 500 - 10%
	expectedMax := 550 // 500 + 10%

	if length < expectedMin || length > expectedMax {
		t.Errorf("Expected length between %d and %d, got %d", expectedMin, expectedMax, length)
	}

	if body == "" {
		t.Error("Generated body is empty")
	}
}

// TestGenerateLongBody tests that long body generation produces correct length
func TestGenerateLongBody(t *testing.T) {
	body := fixtures.GenerateLongBody()

	length := text.CountRunes(body)
	expectedMin := 1800 // 2000 - 10%
	expectedMax := 2200 // 2000 + 10%

	if length < expectedMin || length > expectedMax {
		t.Errorf("Expected length between %d and %d, got %d", expectedMin, expectedMax, length)
	}

	// A long Japanese body must span multiple SMS segments
	if segments := text.SMSSegments(body); segments < 2 {
		t.Errorf("Expected multiple SMS segments, got %d", segments)
	}
}

// TestGenerateBodyWithEmoji tests that emoji body contains emoji characters
func TestGenerateBodyWithEmoji(t *testing.T) {
	body := fixtures.GenerateBodyWithEmoji()

	if body == "" {
		t.Error("Generated body is empty")
	}

	// Check for emoji presence (simple heuristic)
	hasEmoji := false
	for _, r := range body {
		// Emoji ranges (simplified)
		if r >= 0x1F300 && r <= 0x1F9FF { // Miscellaneous Symbols and Pictographs, Emoticons, etc.
			hasEmoji = true
			break
		}
	}

	if !hasEmoji {
		t.Error("Body with emoji should contain at least one emoji character")
	}
}

// TestGenerateBody_Japanese tests Japanese body generation
func TestGenerateBody_Japanese(t *testing.T) {
	body := fixtures.GenerateBody(fixtures.BodyOptions{
		Length:       1000,
		Language:     "japanese",
		IncludeEmoji: false,
	})

	length := text.CountRunes(body)

	if length < 900 || length > 1100 {
		t.Errorf("Expected length around 1000 (±10%%), got %d", length)
	}

	// Check for Japanese characters
	hasJapanese := false
	for _, r := range body {
		if (r >= 0x3040 && r <= 0x309F) || // Hiragana
			(r >= 0x30A0 && r <= 0x30FF) || // Katakana
			(r >= 0x4E00 && r <= 0x9FFF) { // Kanji
			hasJapanese = true
			break
		}
	}

	if !hasJapanese {
		t.Error("Japanese body should contain Japanese characters")
	}
}

// TestGenerateBody_English tests English body generation
func TestGenerateBody_English(t *testing.T) {
	body := fixtures.GenerateBody(fixtures.BodyOptions{
		Length:       1000,
		Language:     "english",
		IncludeEmoji: false,
	})

	length := text.CountRunes(body)

	if length < 900 || length > 1100 {
		t.Errorf("Expected length around 1000 (±10%%), got %d", length)
	}

	if body == "" {
		t.Error("Generated body is empty")
	}
}

// TestGenerateBody_Consistency tests that generated bodies are consistent
func TestGenerateBody_Consistency(t *testing.T) {
	opts := fixtures.BodyOptions{
		Length:       500,
		Language:     "japanese",
		IncludeEmoji: false,
	}

	body1 := fixtures.GenerateBody(opts)
	body2 := fixtures.GenerateBody(opts)

	length1 := text.CountRunes(body1)
	length2 := text.CountRunes(body2)

	// Both should be approximately the same length (within ±10%)
	diff := length1 - length2
	if diff < 0 {
		diff = -diff
	}

	maxDiff := opts.Length / 5 // 20% difference allowed
	if diff > maxDiff {
		t.Errorf("Length difference too large: %d vs %d (diff: %d)", length1, length2, diff)
	}
}

// TestGenerateBody_DifferentLengths tests various target lengths
func TestGenerateBody_DifferentLengths(t *testing.T) {
	tests := []struct {
		name   string
		length int
	}{
		{"Short", 500},
		{"Medium", 2000},
		{"Long", 5000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := fixtures.GenerateBody(fixtures.BodyOptions{
				Length:       tt.length,
				Language:     "japanese",
				IncludeEmoji: false,
			})

			actualLength := text.CountRunes(body)
			minLength := int(float64(tt.length) * 0.9)
			maxLength := int(float64(tt.length) * 1.1)

			if actualLength < minLength || actualLength > maxLength {
				t.Errorf("Length %d not within expected range [%d, %d]", actualLength, minLength, maxLength)
			}
		})
	}
}

// BenchmarkGenerateSMSBody benchmarks SMS body generation
func BenchmarkGenerateSMSBody(b *testing.B) {
	for i := 0; i < b.N; i++ {
		fixtures.GenerateSMSBody()
	}
}

// BenchmarkGenerateLongBody benchmarks long body generation
func BenchmarkGenerateLongBody(b *testing.B) {
	for i := 0; i < b.N; i++ {
		fixtures.GenerateLongBody()
	}
}
