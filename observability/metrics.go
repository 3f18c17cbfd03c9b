package observability

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type moduleMetrics struct {
	requests  *prometheus.CounterVec
	errors    *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	throttles *prometheus.CounterVec
}

var (
	moduleMetricsOnce sync.Once
	moduleRegistry    *moduleMetrics

	queueMetricsOnce sync.Once
	queueRegistry    *QueueMetrics

	meshMetricsOnce sync.Once
	meshRegistry    *MeshMetrics

	issuanceMetricsOnce sync.Once
	issuanceRegistry    *IssuanceMetrics

	paymentsMetricsOnce sync.Once
	paymentsRegistry    *PaymentsMetrics
)

// ModuleMetrics returns the lazily-initialised module metrics registry used to
// record HTTP boundary request activity.
func ModuleMetrics() *moduleMetrics {
	moduleMetricsOnce.Do(func() {
		moduleRegistry = &moduleMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "coord",
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total HTTP requests segmented by route and outcome.",
			}, []string{"route", "method", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "coord",
				Subsystem: "http",
				Name:      "errors_total",
				Help:      "Total HTTP errors segmented by route, method, and status code.",
			}, []string{"route", "method", "status"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "coord",
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for HTTP handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"route", "method"}),
			throttles: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "coord",
				Subsystem: "http",
				Name:      "throttles_total",
				Help:      "Count of requests rejected due to throttling policies.",
			}, []string{"route", "reason"}),
		}
		prometheus.MustRegister(
			moduleRegistry.requests,
			moduleRegistry.errors,
			moduleRegistry.latency,
			moduleRegistry.throttles,
		)
	})
	return moduleRegistry
}

// Observe records the outcome of an HTTP request. The status code should be
// the HTTP status that was ultimately written to the response writer.
func (m *moduleMetrics) Observe(route, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unknown"
	}
	if method == "" {
		method = "unknown"
	}
	outcome := "success"
	if status >= 400 {
		outcome = "error"
	}
	m.requests.WithLabelValues(route, method, outcome).Inc()
	if status >= 400 {
		m.errors.WithLabelValues(route, method, fmt.Sprintf("%d", status)).Inc()
	}
	m.latency.WithLabelValues(route, method).Observe(duration.Seconds())
}

// RecordThrottle increments the throttle counter for the supplied route and
// reason. Reasons should be stable taxonomy strings such as
// "peer_rate_limited" so dashboards and alerts remain consistent.
func (m *moduleMetrics) RecordThrottle(route, reason string) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unknown"
	}
	if reason == "" {
		reason = "unspecified"
	}
	m.throttles.WithLabelValues(route, reason).Inc()
}

// QueueMetrics tracks subtask queue depth, claim latency, and fair-share
// behaviour.
type QueueMetrics struct {
	queued    prometheus.Gauge
	claims    *prometheus.CounterVec
	completes *prometheus.CounterVec
	requeues  prometheus.Counter
	claimWait *prometheus.HistogramVec
}

// Queue returns the singleton queue metrics registry.
func Queue() *QueueMetrics {
	queueMetricsOnce.Do(func() {
		queueRegistry = &QueueMetrics{
			queued: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "coord",
				Subsystem: "queue",
				Name:      "queued_subtasks",
				Help:      "Current count of unclaimed subtasks.",
			}),
			claims: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "coord",
				Subsystem: "queue",
				Name:      "claims_total",
				Help:      "Count of subtask claims segmented by project.",
			}, []string{"project"}),
			completes: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "coord",
				Subsystem: "queue",
				Name:      "completions_total",
				Help:      "Count of completed subtasks segmented by project.",
			}, []string{"project"}),
			requeues: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "coord",
				Subsystem: "queue",
				Name:      "requeues_total",
				Help:      "Count of subtasks requeued after stale claims.",
			}),
			claimWait: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "coord",
				Subsystem: "queue",
				Name:      "claim_wait_seconds",
				Help:      "Time a subtask spent unclaimed before being picked up.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"project"}),
		}
		prometheus.MustRegister(
			queueRegistry.queued,
			queueRegistry.claims,
			queueRegistry.completes,
			queueRegistry.requeues,
			queueRegistry.claimWait,
		)
	})
	return queueRegistry
}

// SetQueued records the current depth of unclaimed subtasks.
func (m *QueueMetrics) SetQueued(n int) {
	if m == nil {
		return
	}
	m.queued.Set(float64(n))
}

// RecordClaim records a successful claim for the given project.
func (m *QueueMetrics) RecordClaim(projectID string, wait time.Duration) {
	if m == nil {
		return
	}
	projectID = orUnknown(projectID)
	m.claims.WithLabelValues(projectID).Inc()
	m.claimWait.WithLabelValues(projectID).Observe(wait.Seconds())
}

// RecordComplete records a subtask completion for the given project.
func (m *QueueMetrics) RecordComplete(projectID string) {
	if m == nil {
		return
	}
	m.completes.WithLabelValues(orUnknown(projectID)).Inc()
}

// RecordRequeue increments the stale-claim requeue counter.
func (m *QueueMetrics) RecordRequeue(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.requeues.Add(float64(n))
}

// MeshMetrics tracks gossip ingest outcomes and peer reputation.
type MeshMetrics struct {
	ingested   *prometheus.CounterVec
	reputation *prometheus.GaugeVec
	peers      prometheus.Gauge
}

// Mesh returns the singleton gossip-mesh metrics registry.
func Mesh() *MeshMetrics {
	meshMetricsOnce.Do(func() {
		meshRegistry = &MeshMetrics{
			ingested: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "coord",
				Subsystem: "mesh",
				Name:      "ingested_total",
				Help:      "Count of gossip messages ingested segmented by type and outcome.",
			}, []string{"type", "outcome"}),
			reputation: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "coord",
				Subsystem: "mesh",
				Name:      "peer_reputation",
				Help:      "Current reputation score for a known peer.",
			}, []string{"peer_id"}),
			peers: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "coord",
				Subsystem: "mesh",
				Name:      "known_peers",
				Help:      "Current count of known peer coordinators.",
			}),
		}
		prometheus.MustRegister(meshRegistry.ingested, meshRegistry.reputation, meshRegistry.peers)
	})
	return meshRegistry
}

// RecordIngest records the outcome of a gossip ingest attempt.
func (m *MeshMetrics) RecordIngest(msgType, outcome string) {
	if m == nil {
		return
	}
	m.ingested.WithLabelValues(orUnknown(msgType), orUnknown(outcome)).Inc()
}

// SetReputation records the current reputation score for a peer.
func (m *MeshMetrics) SetReputation(peerID string, score int) {
	if m == nil {
		return
	}
	m.reputation.WithLabelValues(orUnknown(peerID)).Set(float64(score))
}

// SetPeerCount records the current known-peer count.
func (m *MeshMetrics) SetPeerCount(n int) {
	if m == nil {
		return
	}
	m.peers.Set(float64(n))
}

// IssuanceMetrics tracks issuance epoch lifecycle.
type IssuanceMetrics struct {
	loadIndex     prometheus.Gauge
	dailyPool     prometheus.Gauge
	votes         *prometheus.CounterVec
	anchorsWrites prometheus.Counter
}

// Issuance returns the singleton issuance metrics registry.
func Issuance() *IssuanceMetrics {
	issuanceMetricsOnce.Do(func() {
		issuanceRegistry = &IssuanceMetrics{
			loadIndex: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "coord",
				Subsystem: "issuance",
				Name:      "smoothed_load_index",
				Help:      "Current smoothed load index feeding the issuance curve.",
			}),
			dailyPool: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "coord",
				Subsystem: "issuance",
				Name:      "daily_pool_tokens",
				Help:      "Current daily issuance pool size in tokens.",
			}),
			votes: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "coord",
				Subsystem: "issuance",
				Name:      "quorum_votes_total",
				Help:      "Count of quorum votes cast segmented by vote kind.",
			}, []string{"vote"}),
			anchorsWrites: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "coord",
				Subsystem: "issuance",
				Name:      "anchors_committed_total",
				Help:      "Count of anchor commits written to the external immutable store.",
			}),
		}
		prometheus.MustRegister(
			issuanceRegistry.loadIndex,
			issuanceRegistry.dailyPool,
			issuanceRegistry.votes,
			issuanceRegistry.anchorsWrites,
		)
	})
	return issuanceRegistry
}

// SetLoadIndex records the current smoothed load index.
func (m *IssuanceMetrics) SetLoadIndex(v float64) {
	if m == nil {
		return
	}
	m.loadIndex.Set(v)
}

// SetDailyPool records the current daily pool size.
func (m *IssuanceMetrics) SetDailyPool(v float64) {
	if m == nil {
		return
	}
	m.dailyPool.Set(v)
}

// RecordVote increments the quorum vote counter for the supplied vote kind.
func (m *IssuanceMetrics) RecordVote(kind string) {
	if m == nil {
		return
	}
	m.votes.WithLabelValues(orUnknown(kind)).Inc()
}

// RecordAnchor increments the anchor-commit counter.
func (m *IssuanceMetrics) RecordAnchor() {
	if m == nil {
		return
	}
	m.anchorsWrites.Inc()
}

// PaymentsMetrics tracks payment intent lifecycle and settlement outcomes.
type PaymentsMetrics struct {
	intents  *prometheus.CounterVec
	settled  *prometheus.CounterVec
	rejected *prometheus.CounterVec
}

// Payments returns the singleton payments metrics registry.
func Payments() *PaymentsMetrics {
	paymentsMetricsOnce.Do(func() {
		paymentsRegistry = &PaymentsMetrics{
			intents: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "coord",
				Subsystem: "payments",
				Name:      "intents_total",
				Help:      "Count of payment intents created segmented by wallet type.",
			}, []string{"wallet_type"}),
			settled: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "coord",
				Subsystem: "payments",
				Name:      "settled_total",
				Help:      "Count of settled payment intents segmented by wallet type.",
			}, []string{"wallet_type"}),
			rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "coord",
				Subsystem: "payments",
				Name:      "rejected_total",
				Help:      "Count of rejected settlement attempts segmented by reason.",
			}, []string{"reason"}),
		}
		prometheus.MustRegister(paymentsRegistry.intents, paymentsRegistry.settled, paymentsRegistry.rejected)
	})
	return paymentsRegistry
}

// RecordIntent records creation of a payment intent.
func (m *PaymentsMetrics) RecordIntent(walletType string) {
	if m == nil {
		return
	}
	m.intents.WithLabelValues(orUnknown(walletType)).Inc()
}

// RecordSettled records a successful settlement.
func (m *PaymentsMetrics) RecordSettled(walletType string) {
	if m == nil {
		return
	}
	m.settled.WithLabelValues(orUnknown(walletType)).Inc()
}

// RecordRejected records a rejected settlement attempt.
func (m *PaymentsMetrics) RecordRejected(reason string) {
	if m == nil {
		return
	}
	m.rejected.WithLabelValues(orUnknown(reason)).Inc()
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return "unknown"
	}
	return s
}
