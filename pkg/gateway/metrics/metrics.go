// Package metrics exposes gateway counters on the default prometheus
// registry; the HTTP server serves them at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TurnsProcessed counts completed user turns (user append + assistant reply).
	TurnsProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "conversai_turns_processed_total",
		Help: "Completed conversation turns.",
	})

	// CompletionFallbacks counts gateway completion failures answered with
	// the fixed apology string.
	CompletionFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "conversai_completion_fallbacks_total",
		Help: "Gateway completion failures recovered with the fallback reply.",
	})

	// SentimentFallbacks counts gateway classifier failures resolved by the
	// local keyword scorer.
	SentimentFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "conversai_sentiment_fallbacks_total",
		Help: "Sentiment classifier failures resolved locally.",
	})

	// TitleFallbacks counts title generation failures that retained the
	// previous title.
	TitleFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "conversai_title_fallbacks_total",
		Help: "Title generation failures that kept the previous title.",
	})

	// SynthesisFailures counts speech synthesis failures; the affected
	// message is delivered without audio.
	SynthesisFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "conversai_speech_synthesis_failures_total",
		Help: "Speech synthesis failures degraded to text-only replies.",
	})
)
