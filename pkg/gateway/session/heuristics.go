package session

import (
	"regexp"
	"sort"
	"strings"

	"github.com/conversai-app/conversai/pkg/core/types"
)

// Local fallback keyword scorer for environments where the gateway
// classifier is unavailable. Ties or no hits resolve to neutral.
var (
	positiveKeywords = map[string]struct{}{
		"happy": {}, "great": {}, "excellent": {}, "good": {}, "love": {}, "like": {}, "thank": {}, "thanks": {},
	}
	negativeKeywords = map[string]struct{}{
		"bad": {}, "terrible": {}, "awful": {}, "hate": {}, "dislike": {}, "angry": {}, "upset": {},
	}
	wordSplit = regexp.MustCompile(`\W+`)
)

// FallbackSentiment scores text by counting positive vs negative keyword hits.
func FallbackSentiment(text string) types.Sentiment {
	var positive, negative int
	for _, word := range wordSplit.Split(strings.ToLower(text), -1) {
		if _, ok := positiveKeywords[word]; ok {
			positive++
		}
		if _, ok := negativeKeywords[word]; ok {
			negative++
		}
	}
	switch {
	case positive > negative:
		return types.SentimentPositive
	case negative > positive:
		return types.SentimentNegative
	default:
		return types.SentimentNeutral
	}
}

// Intent tags form a fixed vocabulary; "general" is the catch-all.
const (
	IntentQuestion     = "question"
	IntentSupport      = "support"
	IntentPurchase     = "purchase"
	IntentAppointment  = "appointment"
	IntentCancellation = "cancellation"
	IntentEmergency    = "emergency"
	IntentMedical      = "medical"
	IntentGeneral      = "general"
)

var intentPatterns = []struct {
	tag string
	re  *regexp.Regexp
}{
	{IntentQuestion, regexp.MustCompile(`(?i)\b(how|what|where|when|why|who)\b`)},
	{IntentSupport, regexp.MustCompile(`(?i)\b(help|assist|support)\b`)},
	{IntentPurchase, regexp.MustCompile(`(?i)\b(buy|purchase|order|book)\b`)},
	{IntentAppointment, regexp.MustCompile(`(?i)\b(appointment|schedule|reschedule|booking)\b`)},
	{IntentCancellation, regexp.MustCompile(`(?i)\b(cancel|refund|return)\b`)},
	{IntentEmergency, regexp.MustCompile(`(?i)\b(emergency|urgent|immediately|asap)\b`)},
	{IntentMedical, regexp.MustCompile(`(?i)\b(doctor|prescription|symptom|symptoms|insurance|medication)\b`)},
}

// ExtractIntents classifies a user message into zero or more tags from the
// fixed vocabulary. A message matching nothing is tagged "general".
func ExtractIntents(text string) []string {
	var tags []string
	for _, p := range intentPatterns {
		if p.re.MatchString(text) {
			tags = append(tags, p.tag)
		}
	}
	if len(tags) == 0 {
		tags = []string{IntentGeneral}
	}
	return tags
}

// CompanyDetector heuristically detects which company a transcript is about.
// Swappable so the vocabulary can be extended without touching session logic.
type CompanyDetector func(messages []types.Message) string

var knownCompanies = []string{"amazon", "netflix", "pizza hut", "apple"}

// DetectCompany is the default CompanyDetector: keyword search over message
// content, "general" when nothing matches.
func DetectCompany(messages []types.Message) string {
	var b strings.Builder
	for _, m := range messages {
		b.WriteString(strings.ToLower(m.Content))
		b.WriteByte(' ')
	}
	text := b.String()
	for _, company := range knownCompanies {
		if strings.Contains(text, company) {
			return company
		}
	}
	return "general"
}

// sortedCompanies returns a stable, sorted company set for stats output.
func sortedCompanies(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}
