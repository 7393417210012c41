// Package fixtures provides reusable test data generators for integration tests.
// This package eliminates test data duplication and ensures consistent test content
// across different test suites.
package fixtures

import (
	"strings"
)

// BodyOptions configures the generated notification body content.
type BodyOptions struct {
	// Length is the approximate character count (target length, ±10% variance allowed)
	Length int

	// Language specifies the content language ("japanese" or "english")
	Language string

	// IncludeEmoji specifies whether to include emoji characters in the content
	IncludeEmoji bool
}

// GenerateBody generates notification body content based on the provided options.
// The generated content is coherent Japanese or English text suitable for
// rendering and delivery testing.
//
// Example:
//
//	body := GenerateBody(BodyOptions{
//	    Length: 2000,
//	    Language: "japanese",
//	    IncludeEmoji: false,
//	})
func GenerateBody(opts BodyOptions) string {
	if opts.Language == "english" {
		return generateEnglishBody(opts.Length, opts.IncludeEmoji)
	}
	return generateJapaneseBody(opts.Length, opts.IncludeEmoji)
}

// GenerateSMSBody generates a body short enough for a single SMS segment (~120 characters).
// This is useful for testing single-segment SMS delivery.
//
// Example:
//
//	body := GenerateSMSBody()
//	// Returns Japanese body fitting in one SMS segment
func GenerateSMSBody() string {
	return GenerateBody(BodyOptions{
		Length:       60,
		Language:     "japanese",
		IncludeEmoji: false,
	})
}

// GenerateMediumBody generates a medium-length body (~500 characters).
// This is useful for testing typical email and push notification scenarios.
//
// Example:
//
//	body := GenerateMediumBody()
//	// Returns Japanese body with approximately 500 characters
func GenerateMediumBody() string {
	return GenerateBody(BodyOptions{
		Length:       500,
		Language:     "japanese",
		IncludeEmoji: false,
	})
}

// GenerateLongBody generates a long body (~2000 characters).
// This is useful for testing multi-segment SMS estimation and truncation.
//
// Example:
//
//	body := GenerateLongBody()
//	// Returns Japanese body with approximately 2000 characters
func GenerateLongBody() string {
	return GenerateBody(BodyOptions{
		Length:       2000,
		Language:     "japanese",
		IncludeEmoji: false,
	})
}

// GenerateBodyWithEmoji generates a body that includes emoji characters.
// This is useful for testing Unicode character counting and UCS-2 SMS segmentation.
//
// Example:
//
//	body := GenerateBodyWithEmoji()
//	// Returns Japanese body with emoji characters
func GenerateBodyWithEmoji() string {
	return GenerateBody(BodyOptions{
		Length:       500,
		Language:     "japanese",
		IncludeEmoji: true,
	})
}

// generateJapaneseBody generates coherent Japanese announcement content.
func generateJapaneseBody(targetLength int, includeEmoji bool) string {
	// Base sentences for Japanese school announcements
	baseSentences := []string{
		"明日の授業参観は午前10時より各教室にて開始いたします。",
		"保護者の皆様は正面玄関よりお入りいただき、受付をお済ませください。",
		"上履きと筆記用具をご持参くださいますようお願いいたします。",
		"校庭の駐車スペースには限りがありますので、公共交通機関のご利用をお勧めします。",
		"給食費の引き落としは毎月27日に行われます。",
		"残高不足の場合は、翌月5日までに事務室までお申し出ください。",
		"体育祭の開催日は天候により変更となる場合があります。",
		"変更の際は当日午前6時までに改めてお知らせいたします。",
		"インフルエンザ等の感染症が流行しております。",
		"登校前の検温と健康観察にご協力ください。",
		"放課後の課外活動は午後5時までに終了いたします。",
		"お迎えの際は昇降口前でお待ちください。",
		"来週の個人面談の日程表を配布しましたのでご確認ください。",
		"ご都合が悪い場合は担任までご連絡ください。",
		"図書室の本の返却期限は学期末までとなっております。",
	}

	emojiSentences := []string{
		"皆様のご参加をお待ちしております 🏫✨",
		"安全な登下校にご協力ください 🚸🙏",
		"体調管理に気をつけましょう 🌡️😷",
		"楽しい学校生活を送りましょう 📚🌟",
		"ご不明な点はお気軽にご連絡ください 📞💬",
	}

	var builder strings.Builder
	currentLength := 0
	sentenceIndex := 0
	emojiIndex := 0

	for {
		var sentence string
		if includeEmoji && currentLength%(targetLength/5) < 100 && emojiIndex < len(emojiSentences) {
			sentence = emojiSentences[emojiIndex]
			emojiIndex++
		} else {
			sentence = baseSentences[sentenceIndex%len(baseSentences)]
			sentenceIndex++
		}

		// Calculate the length if we add this sentence
		sentenceLength := len([]rune(sentence))
		if currentLength > 0 {
			sentenceLength++ // Account for space
		}
		potentialLength := currentLength + sentenceLength

		// If we've reached or exceeded the minimum target (90%), check if we should stop
		if currentLength >= int(float64(targetLength)*0.9) {
			// Stop if adding this sentence would exceed 110% of target
			if potentialLength > int(float64(targetLength)*1.1) {
				break
			}
		}

		// Add spacing before sentence (except for the first one)
		if currentLength > 0 {
			builder.WriteString(" ")
		}

		builder.WriteString(sentence)
		currentLength = len([]rune(builder.String()))

		// Stop if we've reached the target
		if currentLength >= targetLength {
			break
		}
	}

	return builder.String()
}

// generateEnglishBody generates coherent English announcement content.
func generateEnglishBody(targetLength int, includeEmoji bool) string {
	baseSentences := []string{
		"Tomorrow's open classroom session begins at 10:00 AM in each homeroom.",
		"Parents and guardians should enter through the main entrance and check in at reception.",
		"Please bring indoor shoes and something to write with.",
		"Parking on campus is limited, so we recommend using public transportation.",
		"Lunch fees are withdrawn from registered accounts on the 27th of each month.",
		"If your balance is insufficient, please contact the school office by the 5th of the following month.",
		"The sports day date may change depending on the weather.",
		"Any change will be announced by 6:00 AM on the day of the event.",
		"Seasonal influenza is currently circulating in the area.",
		"Please take your child's temperature before they leave for school.",
		"After-school activities end by 5:00 PM.",
		"When picking up your child, please wait in front of the entrance hall.",
		"The schedule for next week's parent-teacher conferences has been distributed.",
		"If the assigned time does not work for you, please contact the homeroom teacher.",
		"Library books must be returned by the end of the term.",
	}

	emojiSentences := []string{
		"We look forward to seeing you there 🏫✨",
		"Please help keep the school commute safe 🚸🙏",
		"Stay healthy and take care 🌡️😷",
		"Let's make it a great school year 📚🌟",
		"Feel free to contact us with any questions 📞💬",
	}

	var builder strings.Builder
	currentLength := 0
	sentenceIndex := 0
	emojiIndex := 0

	for {
		var sentence string
		if includeEmoji && currentLength%(targetLength/5) < 100 && emojiIndex < len(emojiSentences) {
			sentence = emojiSentences[emojiIndex]
			emojiIndex++
		} else {
			sentence = baseSentences[sentenceIndex%len(baseSentences)]
			sentenceIndex++
		}

		// Calculate the length if we add this sentence
		sentenceLength := len([]rune(sentence))
		if currentLength > 0 {
			sentenceLength++ // Account for space
		}
		potentialLength := currentLength + sentenceLength

		// If we've reached or exceeded the minimum target (90%), check if we should stop
		if currentLength >= int(float64(targetLength)*0.9) {
			// Stop if adding this sentence would exceed 110% of target
			if potentialLength > int(float64(targetLength)*1.1) {
				break
			}
		}

		// Add spacing before sentence (except for the first one)
		if currentLength > 0 {
			builder.WriteString(" ")
		}

		builder.WriteString(sentence)
		currentLength = len([]rune(builder.String()))

		// Stop if we've reached the target
		if currentLength >= targetLength {
			break
		}
	}

	return builder.String()
}
