package middleware

import (
	"encoding/json"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"
)

// Metrics stores application counters
type Metrics struct {
	RequestsTotal      uint64
	RequestsInProgress uint64
	RequestsSuccess    uint64
	RequestsFailed     uint64
	JobsSubmitted      uint64
	JobsCompleted      uint64
	JobsBlocked        uint64
	JobsFailed         uint64
	DeliveriesTotal    uint64
	DeliveriesNacked   uint64
	FirewallBlocks     uint64
	StartTime          time.Time
}

var globalMetrics = &Metrics{
	StartTime: time.Now(),
}

func IncrementRequests()   { atomic.AddUint64(&globalMetrics.RequestsTotal, 1) }
func IncrementInProgress() { atomic.AddUint64(&globalMetrics.RequestsInProgress, 1) }
func DecrementInProgress() { atomic.AddUint64(&globalMetrics.RequestsInProgress, ^uint64(0)) }
func IncrementSuccess()    { atomic.AddUint64(&globalMetrics.RequestsSuccess, 1) }
func IncrementFailed()     { atomic.AddUint64(&globalMetrics.RequestsFailed, 1) }

func IncrementJobsSubmitted()    { atomic.AddUint64(&globalMetrics.JobsSubmitted, 1) }
func IncrementJobsCompleted()    { atomic.AddUint64(&globalMetrics.JobsCompleted, 1) }
func IncrementJobsBlocked()      { atomic.AddUint64(&globalMetrics.JobsBlocked, 1) }
func IncrementJobsFailed()       { atomic.AddUint64(&globalMetrics.JobsFailed, 1) }
func IncrementDeliveries()       { atomic.AddUint64(&globalMetrics.DeliveriesTotal, 1) }
func IncrementDeliveriesNacked() { atomic.AddUint64(&globalMetrics.DeliveriesNacked, 1) }
func IncrementFirewallBlocks()   { atomic.AddUint64(&globalMetrics.FirewallBlocks, 1) }

// GetMetrics returns current metrics
func GetMetrics() map[string]interface{} {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return map[string]interface{}{
		"requests_total":       atomic.LoadUint64(&globalMetrics.RequestsTotal),
		"requests_in_progress": atomic.LoadUint64(&globalMetrics.RequestsInProgress),
		"requests_success":     atomic.LoadUint64(&globalMetrics.RequestsSuccess),
		"requests_failed":      atomic.LoadUint64(&globalMetrics.RequestsFailed),
		"jobs_submitted":       atomic.LoadUint64(&globalMetrics.JobsSubmitted),
		"jobs_completed":       atomic.LoadUint64(&globalMetrics.JobsCompleted),
		"jobs_blocked":         atomic.LoadUint64(&globalMetrics.JobsBlocked),
		"jobs_failed":          atomic.LoadUint64(&globalMetrics.JobsFailed),
		"deliveries_total":     atomic.LoadUint64(&globalMetrics.DeliveriesTotal),
		"deliveries_nacked":    atomic.LoadUint64(&globalMetrics.DeliveriesNacked),
		"firewall_blocks":      atomic.LoadUint64(&globalMetrics.FirewallBlocks),
		"uptime_seconds":       time.Since(globalMetrics.StartTime).Seconds(),
		"memory": map[string]interface{}{
			"alloc_bytes":       m.Alloc,
			"total_alloc_bytes": m.TotalAlloc,
			"sys_bytes":         m.Sys,
			"num_gc":            m.NumGC,
		},
		"goroutines": runtime.NumGoroutine(),
	}
}

// MetricsMiddleware tracks request metrics
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		IncrementRequests()
		IncrementInProgress()
		defer DecrementInProgress()

		wrapped := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(wrapped, r)

		if wrapped.statusCode >= 200 && wrapped.statusCode < 400 {
			IncrementSuccess()
		} else {
			IncrementFailed()
		}
	})
}

// MetricsHandler returns metrics as JSON
func MetricsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(GetMetrics())
}
