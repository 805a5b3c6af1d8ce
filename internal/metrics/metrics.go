package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	IntentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tvvoice_intents_total",
			Help: "Resolved voice intents by kind and origin",
		},
		[]string{"kind", "origin"},
	)

	PhaseTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tvvoice_phase_transitions_total",
			Help: "Dialogue phase transitions by target phase and reason",
		},
		[]string{"phase", "reason"},
	)

	RecognizerRestarts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tvvoice_recognizer_restarts_total",
			Help: "Scheduled recognition session restarts by listener and cause",
		},
		[]string{"listener", "cause"},
	)

	StaleEvents = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tvvoice_stale_events_total",
			Help: "Events dropped because their session or utterance was superseded",
		},
	)

	SynthesisOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tvvoice_synthesis_total",
			Help: "Speech synthesis requests by outcome",
		},
		[]string{"outcome"},
	)

	Fetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tvvoice_fetches_total",
			Help: "Listings fetches by outcome",
		},
		[]string{"outcome"},
	)

	FetchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "tvvoice_fetch_duration_seconds",
			Help: "Listings fetch latency in seconds",
		},
	)

	ListingsLoaded = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tvvoice_listings_loaded",
			Help: "Number of listings in the current date",
		},
	)
)
