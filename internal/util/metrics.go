package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CheckoutSessionsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "checkout_sessions_created_total",
		Help: "Total number of hosted checkout sessions created",
	})

	CheckoutSessionsFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_sessions_failed_total",
		Help: "Total number of failed checkout session creations",
	}, []string{"reason"})

	WebhookEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_total",
		Help: "Webhook events received, by event type and outcome",
	}, []string{"type", "outcome"})

	PurchasesReconciledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "purchases_reconciled_total",
		Help: "Total number of purchases durably reconciled",
	})

	PurchasesDuplicateTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "purchases_duplicate_total",
		Help: "Total number of redelivered completed-session events absorbed as no-ops",
	})

	ReconcileAmountMismatchTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reconcile_amount_mismatch_total",
		Help: "Completed sessions whose charged amount differed from the catalog price",
	})

	ReconcileLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "reconcile_latency_seconds",
		Help:    "Latency of webhook reconciliation",
		Buckets: prometheus.DefBuckets,
	})

	LessonsCompletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lessons_completed_total",
		Help: "Total number of lesson completion records written",
	})

	CatalogCacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_cache_hits_total",
		Help: "Catalog reads served from the cache",
	})

	CatalogCacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_cache_misses_total",
		Help: "Catalog reads that fell through to the database",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
