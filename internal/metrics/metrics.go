// Package metrics holds the prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ─── HTTP ───────────────────────────────────────────────────────────────────

// HTTPRequests counts served requests by route template and status.
var HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "lanparty",
	Subsystem: "http",
	Name:      "requests_total",
	Help:      "Total HTTP requests by method, route and status code.",
}, []string{"method", "route", "status"})

// HTTPLatency observes request latency by route template.
var HTTPLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "lanparty",
	Subsystem: "http",
	Name:      "request_duration_seconds",
	Help:      "HTTP request latency in seconds.",
	Buckets:   prometheus.DefBuckets,
}, []string{"method", "route"})

// RateLimited counts requests rejected by the token bucket.
var RateLimited = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "lanparty",
	Subsystem: "http",
	Name:      "rate_limited_total",
	Help:      "Requests rejected with 429, by route.",
}, []string{"route"})

// ─── Settlements ────────────────────────────────────────────────────────────

// SettlementCommands counts executed settlement commands by action and outcome.
var SettlementCommands = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "lanparty",
	Subsystem: "settlement",
	Name:      "commands_total",
	Help:      "Settlement commands executed, by action and result.",
}, []string{"action", "result"})

// QRImageFetches counts calls to the payment QR image API.
var QRImageFetches = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "lanparty",
	Subsystem: "payment",
	Name:      "qr_image_fetches_total",
	Help:      "QR image API calls, by result (ok, error, open).",
}, []string{"result"})

// ─── Consumption sync ───────────────────────────────────────────────────────

// SyncFetches counts reconciliation fetches by outcome: issued, applied,
// discarded (superseded by a newer fetch) and failed.
var SyncFetches = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "lanparty",
	Subsystem: "sync",
	Name:      "reconcile_fetches_total",
	Help:      "Reconciliation fetches by outcome.",
}, []string{"outcome"})

// SyncWriteFailures counts consumption writes that failed and were left to
// the next reconciliation.
var SyncWriteFailures = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "lanparty",
	Subsystem: "sync",
	Name:      "write_failures_total",
	Help:      "Failed optimistic consumption writes by operation.",
}, []string{"op"})

// ─── Queue ──────────────────────────────────────────────────────────────────

// EventsPublished counts broker publishes by routing key and result.
var EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "lanparty",
	Subsystem: "queue",
	Name:      "events_published_total",
	Help:      "Domain events published to RabbitMQ.",
}, []string{"queue", "result"})

// EventsConsumed counts consumed broker messages by queue.
var EventsConsumed = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "lanparty",
	Subsystem: "queue",
	Name:      "events_consumed_total",
	Help:      "Domain events consumed from RabbitMQ.",
}, []string{"queue"})
