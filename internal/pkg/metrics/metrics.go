package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FlashLoansTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pegvault_flash_loans_total",
		Help: "The total number of flash loan invocations",
	}, []string{"status"})

	SupplyOpsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pegvault_supply_ops_total",
		Help: "The total number of supply increase/decrease operations",
	}, []string{"op", "status"})

	LatencyBucket = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pegvault_latency_bucket",
		Help:    "Request latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint"})

	AuthRejects = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pegvault_auth_rejects_total",
		Help: "Total identity proof rejections",
	}, []string{"reason"})

	UpstreamErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pegvault_upstream_errors_total",
		Help: "Total pool/issuer/borrower upstream call failures",
	}, []string{"upstream"})
)
