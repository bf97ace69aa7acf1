package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics covers issuance, claims, the custody ledger and reconciliation.
// All methods are safe on a nil receiver so services can run without metrics.
type Metrics struct {
	CredentialsIssued    prometheus.Counter
	IssueFailures        *prometheus.CounterVec
	IssueDuration        prometheus.Histogram
	ClaimOutcomes        *prometheus.CounterVec
	ClaimDuration        prometheus.Histogram
	LedgerSubmissions    *prometheus.CounterVec
	LedgerConfirmLatency *prometheus.HistogramVec
	LedgerCircuitOpen    *prometheus.GaugeVec
	ReconcileActions     *prometheus.CounterVec
	OpenClaimIntents     prometheus.Gauge
	StalledIssuances     prometheus.Gauge
}

// New registers the credential metrics with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		CredentialsIssued: f.NewCounter(prometheus.CounterOpts{
			Name: "verichain_credentials_issued_total",
			Help: "Total number of credentials issued and persisted",
		}),
		IssueFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "verichain_credential_issue_failures_total",
			Help: "Issuance failures by stage",
		}, []string{"stage"}),
		IssueDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "verichain_credential_issue_duration_seconds",
			Help:    "End-to-end issuance duration including ledger confirmation",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		ClaimOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "verichain_credential_claims_total",
			Help: "Claim attempts by outcome",
		}, []string{"outcome"}),
		ClaimDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "verichain_credential_claim_duration_seconds",
			Help:    "End-to-end claim duration including ledger confirmation",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		LedgerSubmissions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "verichain_ledger_submissions_total",
			Help: "Custody ledger submissions by operation and result",
		}, []string{"op", "result"}),
		LedgerConfirmLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "verichain_ledger_confirm_duration_seconds",
			Help:    "Time spent awaiting ledger confirmation",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80, 160},
		}, []string{"op"}),
		LedgerCircuitOpen: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "verichain_ledger_circuit_open",
			Help: "1 when the ledger circuit breaker is open",
		}, []string{"path"}),
		ReconcileActions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "verichain_reconcile_actions_total",
			Help: "Reconciliation decisions by action",
		}, []string{"action"}),
		OpenClaimIntents: f.NewGauge(prometheus.GaugeOpts{
			Name: "verichain_open_claim_intents",
			Help: "Claim intents awaiting reconciliation at last scan",
		}),
		StalledIssuances: f.NewGauge(prometheus.GaugeOpts{
			Name: "verichain_stalled_issuances",
			Help: "Issuance journals minted or submitted but not completed at last scan",
		}),
	}
}

func (m *Metrics) IncrementIssued() {
	if m == nil {
		return
	}
	m.CredentialsIssued.Inc()
}

func (m *Metrics) IncrementIssueFailure(stage string) {
	if m == nil {
		return
	}
	m.IssueFailures.WithLabelValues(stage).Inc()
}

func (m *Metrics) ObserveIssue(start time.Time) {
	if m == nil {
		return
	}
	m.IssueDuration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) IncrementClaim(outcome string) {
	if m == nil {
		return
	}
	m.ClaimOutcomes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveClaim(start time.Time) {
	if m == nil {
		return
	}
	m.ClaimDuration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) IncrementLedgerSubmission(op, result string) {
	if m == nil {
		return
	}
	m.LedgerSubmissions.WithLabelValues(op, result).Inc()
}

func (m *Metrics) ObserveLedgerConfirm(op string, start time.Time) {
	if m == nil {
		return
	}
	m.LedgerConfirmLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func (m *Metrics) SetCircuitOpen(path string, open bool) {
	if m == nil {
		return
	}
	v := 0.0
	if open {
		v = 1
	}
	m.LedgerCircuitOpen.WithLabelValues(path).Set(v)
}

func (m *Metrics) IncrementReconcile(action string) {
	if m == nil {
		return
	}
	m.ReconcileActions.WithLabelValues(action).Inc()
}

func (m *Metrics) SetOpenClaimIntents(n int) {
	if m == nil {
		return
	}
	m.OpenClaimIntents.Set(float64(n))
}

func (m *Metrics) SetStalledIssuances(n int) {
	if m == nil {
		return
	}
	m.StalledIssuances.Set(float64(n))
}
