// Package metrics exposes Prometheus counters for the receipt review workflow.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Scan outcomes
const (
	OutcomeItems = "items"
	OutcomeEmpty = "empty"
	OutcomeError = "error"
)

// Reasons a staged list is dropped without saving
const (
	ReasonCancel     = "cancel"
	ReasonMenu       = "menu"
	ReasonSuperseded = "superseded"
	ReasonEmpty      = "empty"
	ReasonStale      = "stale"
)

// Metrics holds the workflow counters
type Metrics struct {
	receiptsScanned   *prometheus.CounterVec
	itemsCommitted    prometheus.Counter
	sessionsDiscarded *prometheus.CounterVec
	commitFailures    prometheus.Counter
}

// New registers the counters on reg
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		receiptsScanned: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "expense_bot",
			Name:      "receipts_scanned_total",
			Help:      "Receipt photos sent to the scanner, by outcome.",
		}, []string{"outcome"}),
		itemsCommitted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "expense_bot",
			Name:      "items_committed_total",
			Help:      "Expense line items written to the database.",
		}),
		sessionsDiscarded: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "expense_bot",
			Name:      "sessions_discarded_total",
			Help:      "Staged receipt lists dropped without saving, by reason.",
		}, []string{"reason"}),
		commitFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "expense_bot",
			Name:      "commit_failures_total",
			Help:      "Staged lists that failed to persist.",
		}),
	}
}

func (m *Metrics) ReceiptScanned(outcome string) {
	if m == nil {
		return
	}
	m.receiptsScanned.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ItemsCommitted(n int) {
	if m == nil {
		return
	}
	m.itemsCommitted.Add(float64(n))
}

func (m *Metrics) SessionDiscarded(reason string) {
	if m == nil {
		return
	}
	m.sessionsDiscarded.WithLabelValues(reason).Inc()
}

func (m *Metrics) CommitFailed() {
	if m == nil {
		return
	}
	m.commitFailures.Inc()
}
