// Package metrics exposes the service's Prometheus collectors.
//
// A nil *Metrics is valid and records nothing, so components can be built
// without a registry in tests.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	completions    *prometheus.CounterVec
	fallbacks      *prometheus.CounterVec
	searches       *prometheus.CounterVec
	imageLookups   *prometheus.CounterVec
	purged         *prometheus.CounterVec
	turnsAppended  prometheus.Counter
	actionsTracked *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		completions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shopassist",
			Name:      "completions_total",
			Help:      "Completion service calls by caller and outcome.",
		}, []string{"caller", "outcome"}),
		fallbacks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shopassist",
			Name:      "fallbacks_total",
			Help:      "Degraded responses served because an upstream failed.",
		}, []string{"component"}),
		searches: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shopassist",
			Name:      "searches_total",
			Help:      "Document search calls by outcome.",
		}, []string{"outcome"}),
		imageLookups: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shopassist",
			Name:      "image_cache_lookups_total",
			Help:      "Image cache lookups by result.",
		}, []string{"result"}),
		purged: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shopassist",
			Name:      "purged_total",
			Help:      "Stale entries removed by the sweep.",
		}, []string{"kind"}),
		turnsAppended: f.NewCounter(prometheus.CounterOpts{
			Namespace: "shopassist",
			Name:      "turns_appended_total",
			Help:      "Conversation turns appended to sessions.",
		}),
		actionsTracked: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shopassist",
			Name:      "behavior_actions_total",
			Help:      "Behavior actions tracked by type.",
		}, []string{"action"}),
	}
}

func (m *Metrics) Completion(caller, outcome string) {
	if m == nil {
		return
	}
	m.completions.WithLabelValues(caller, outcome).Inc()
}

func (m *Metrics) Fallback(component string) {
	if m == nil {
		return
	}
	m.fallbacks.WithLabelValues(component).Inc()
}

func (m *Metrics) Search(outcome string) {
	if m == nil {
		return
	}
	m.searches.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ImageLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.imageLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) Purged(kind string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.purged.WithLabelValues(kind).Add(float64(n))
}

func (m *Metrics) TurnAppended() {
	if m == nil {
		return
	}
	m.turnsAppended.Inc()
}

func (m *Metrics) ActionTracked(action string) {
	if m == nil {
		return
	}
	m.actionsTracked.WithLabelValues(action).Inc()
}
