// Package text provides utilities for text processing and analysis.
// This package includes reusable functions for character counting, rune-safe
// truncation and SMS segment estimation that are shared by the channel
// senders and the dispatch-time message rendering.
package text

import "unicode/utf8"

// GSM-7 single-segment and concatenated-segment sizes. Messages containing
// characters outside the basic GSM alphabet are transported as UCS-2, which
// halves the per-segment capacity.
const (
	gsmSingleSegment = 160
	gsmConcatSegment = 153

	ucs2SingleSegment = 70
	ucs2ConcatSegment = 67
)

// CountRunes counts the number of Unicode characters (runes) in the given text.
// This function correctly handles multi-byte characters including Japanese,
// emoji, and other Unicode characters by counting runes instead of bytes.
//
// Examples:
//
//	CountRunes("hello")          // returns 5 (ASCII text)
//	CountRunes("こんにちは")       // returns 5 (Japanese text)
//	CountRunes("")               // returns 0 (empty string)
func CountRunes(text string) int {
	return utf8.RuneCountInString(text)
}

// Truncate truncates text to at most max runes. If truncated, the suffix is
// appended inside the limit to indicate continuation. Truncation is rune
// aligned, so multi-byte characters are never split.
//
// Examples:
//
//	Truncate("hello world", 8, "...")  // returns "hello..."
//	Truncate("short", 10, "...")       // returns "short"
func Truncate(text string, max int, suffix string) string {
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}

	// Reserve space for suffix
	cut := max - len([]rune(suffix))
	if cut < 0 {
		cut = 0
	}
	return string(runes[:cut]) + suffix
}

// SMSSegments estimates how many SMS segments the given text occupies once
// submitted to an SMS gateway. The estimate follows the standard GSM-7 /
// UCS-2 split: plain ASCII text packs 160 characters into a single segment
// (153 each when concatenated), anything with non-ASCII characters drops to
// 70 (67 concatenated).
//
// Gateways bill per segment, so this is logged on every SMS submission.
func SMSSegments(text string) int {
	n := CountRunes(text)
	if n == 0 {
		return 0
	}

	single, concat := gsmSingleSegment, gsmConcatSegment
	if !isASCII(text) {
		single, concat = ucs2SingleSegment, ucs2ConcatSegment
	}

	if n <= single {
		return 1
	}
	return (n + concat - 1) / concat
}

// isASCII reports whether the text contains only 7-bit characters. This is a
// conservative stand-in for full GSM-7 alphabet detection: some ASCII
// characters are GSM extension characters and some non-ASCII ones are in the
// GSM alphabet, but the estimate errs on the cheap side only for rare
// punctuation.
func isASCII(text string) bool {
	for i := 0; i < len(text); i++ {
		if text[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}
