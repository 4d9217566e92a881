// Package preprocess normalizes raw post text and extracts the structured
// signals (hashtags, cashtags, mentions, entities) the later stages use.
// All functions are deterministic and free of I/O.
package preprocess

import (
	"regexp"
	"strings"

	"pulse/internal/core"
)

// MentionPlaceholder replaces every @-mention so the identity of the
// mentioned account does not bias semantic similarity.
const MentionPlaceholder = "@USER"

var (
	urlPattern     = regexp.MustCompile(`https?://\S+|t\.co/\S+`)
	rtPrefix       = regexp.MustCompile(`^RT\s+`)
	viaCredit      = regexp.MustCompile(`\bvia\s+@\w+`)
	mentionPattern = regexp.MustCompile(`@(\w+)`)
	hashtagPattern = regexp.MustCompile(`#(\w+)`)
	cashtagPattern = regexp.MustCompile(`\$([A-Z]{2,5})\b`)
	nonWord        = regexp.MustCompile(`[^\w]`)
)

// commonWords are capitalized tokens that are almost never entities.
var commonWords = map[string]bool{
	"The": true, "This": true, "That": true, "What": true, "When": true,
	"Where": true, "Why": true, "How": true, "I": true, "We": true,
	"They": true, "You": true, "It": true, "A": true, "An": true,
	"And": true, "Or": true, "But": true, "Just": true, "Now": true,
	"New": true, "Today": true, "Here": true, "So": true, "If": true,
	"My": true, "Your": true,
}

// Clean normalizes one record's text and extracts its signals. The output is
// a pure function of the input: running Clean on a record whose text is
// already normalized yields the same normalized text again.
func Clean(record core.Record) core.CleanedRecord {
	original := record.Text

	// Extract before any rewriting so signals survive normalization.
	hashtags := captures(hashtagPattern, original)
	cashtags := captures(cashtagPattern, original)
	mentions := captures(mentionPattern, original)

	text := urlPattern.ReplaceAllString(original, "")
	text = rtPrefix.ReplaceAllString(text, "")
	text = viaCredit.ReplaceAllString(text, "")

	// Generalize mentions, then drop hashtag markers but keep the tag word.
	text = mentionPattern.ReplaceAllString(text, MentionPlaceholder)
	text = hashtagPattern.ReplaceAllString(text, "$1")
	text = strings.Join(strings.Fields(text), " ")

	entities := extractEntities(original)
	entities = append(entities, hashtags...)
	entities = append(entities, cashtags...)

	return core.CleanedRecord{
		RecordID: record.ID,
		Text:     text,
		Hashtags: hashtags,
		Cashtags: cashtags,
		Mentions: mentions,
		Entities: dedupe(entities),
	}
}

// CleanBatch preprocesses all records, order-preserving, one output per input.
// Empty-text records still produce a CleanedRecord with an empty string.
func CleanBatch(records []core.Record) []core.CleanedRecord {
	cleaned := make([]core.CleanedRecord, len(records))
	for i, r := range records {
		cleaned[i] = Clean(r)
	}
	return cleaned
}

// extractEntities finds capitalized spans in the raw text. Consecutive
// capitalized words collapse into one multi-word entity.
func extractEntities(text string) []string {
	words := strings.Fields(text)
	var entities []string
	var span []string

	flush := func() {
		if len(span) > 0 {
			entities = append(entities, strings.Join(span, " "))
			span = nil
		}
	}

	for _, word := range words {
		clean := nonWord.ReplaceAllString(word, "")
		if isEntityWord(clean) {
			span = append(span, clean)
			continue
		}
		flush()
	}
	flush()

	return entities
}

func isEntityWord(word string) bool {
	if len(word) < 2 || commonWords[word] {
		return false
	}
	first := rune(word[0])
	return first >= 'A' && first <= 'Z'
}

func captures(re *regexp.Regexp, text string) []string {
	matches := re.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m[1])
	}
	return out
}

// dedupe removes duplicates keeping first occurrence order.
func dedupe(items []string) []string {
	if len(items) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		if !seen[item] {
			seen[item] = true
			out = append(out, item)
		}
	}
	return out
}
