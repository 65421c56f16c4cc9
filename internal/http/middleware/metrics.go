// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file exposes Prometheus instrumentation for HTTP traffic plus two
// domain counters for the analyze pipeline (cache hits and LLM calls),
// which are the two numbers that matter for upstream cost tracking.
//
// Label cardinality stays bounded: "path" uses the registered Gin route
// (falling back to the raw URL path only for unmatched requests) and the
// latency histogram omits status.
package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// httpReqs counts requests by method, route path, and status code.
	httpReqs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	// httpLat records request duration in seconds by method and route path.
	httpLat = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// httpInflight gauges currently processing requests.
	httpInflight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_inflight",
			Help: "Current number of in-flight HTTP requests.",
		},
	)

	// analysisCacheHits counts analyze requests served from the cache.
	analysisCacheHits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "analysis_cache_hits_total",
			Help: "Analyze requests answered from the stored analysis cache.",
		},
	)

	// analysisLLMCalls counts billable LLM completions.
	analysisLLMCalls = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "analysis_llm_calls_total",
			Help: "Analyze requests that invoked the LLM provider.",
		},
	)
)

func init() {
	prometheus.MustRegister(httpReqs, httpLat, httpInflight, analysisCacheHits, analysisLLMCalls)
}

// CountAnalysisOutcome records whether an analyze request hit the cache or
// paid for an LLM call. Called by the analyze handler after the pipeline
// resolves.
func CountAnalysisOutcome(cached bool) {
	if cached {
		analysisCacheHits.Inc()
	} else {
		analysisLLMCalls.Inc()
	}
}

// Metrics returns a Gin middleware that instruments requests with
// Prometheus: http_requests_total(method, path, status),
// http_request_duration_seconds(method, path), and the in-flight gauge.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		httpInflight.Inc()
		defer httpInflight.Dec()

		c.Next()

		dur := time.Since(start).Seconds()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		method := c.Request.Method
		status := strconv.Itoa(c.Writer.Status())

		httpReqs.WithLabelValues(method, path, status).Inc()
		httpLat.WithLabelValues(method, path).Observe(dur)
	}
}
