package middleware

import (
	"encoding/json"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"
)

// Metrics stores application metrics
type Metrics struct {
	RequestsTotal        uint64
	RequestsInProgress   uint64
	RequestsSuccess      uint64
	RequestsFailed       uint64
	EventsTotal          uint64
	EventsIgnored        uint64
	TasksSubmitted       uint64
	TasksCompleted       uint64
	TasksFailed          uint64
	TasksSuspended       uint64
	NotificationsPosted  uint64
	NotificationsDropped uint64
	StartTime            time.Time
}

var globalMetrics = &Metrics{
	StartTime: time.Now(),
}

// IncrementRequests increments total request counter
func IncrementRequests() {
	atomic.AddUint64(&globalMetrics.RequestsTotal, 1)
}

// IncrementInProgress increments in-progress request counter
func IncrementInProgress() {
	atomic.AddUint64(&globalMetrics.RequestsInProgress, 1)
}

// DecrementInProgress decrements in-progress request counter
func DecrementInProgress() {
	atomic.AddUint64(&globalMetrics.RequestsInProgress, ^uint64(0))
}

// IncrementSuccess increments successful request counter
func IncrementSuccess() {
	atomic.AddUint64(&globalMetrics.RequestsSuccess, 1)
}

// IncrementFailed increments failed request counter
func IncrementFailed() {
	atomic.AddUint64(&globalMetrics.RequestsFailed, 1)
}

// IncrementEvents counts every inbound webhook event handed to triage
func IncrementEvents() {
	atomic.AddUint64(&globalMetrics.EventsTotal, 1)
}

// IncrementEventsIgnored counts non-actionable or unsupported events
func IncrementEventsIgnored() {
	atomic.AddUint64(&globalMetrics.EventsIgnored, 1)
}

// IncrementTasksSubmitted counts tasks dispatched to the agent
func IncrementTasksSubmitted() {
	atomic.AddUint64(&globalMetrics.TasksSubmitted, 1)
}

// IncrementTasksCompleted counts tasks that reached Completed
func IncrementTasksCompleted() {
	atomic.AddUint64(&globalMetrics.TasksCompleted, 1)
}

// IncrementTasksFailed counts tasks that reached Failed
func IncrementTasksFailed() {
	atomic.AddUint64(&globalMetrics.TasksFailed, 1)
}

// IncrementTasksSuspended counts tasks that reached Suspended
func IncrementTasksSuspended() {
	atomic.AddUint64(&globalMetrics.TasksSuspended, 1)
}

// IncrementNotificationsPosted counts comments posted back to GitHub
func IncrementNotificationsPosted() {
	atomic.AddUint64(&globalMetrics.NotificationsPosted, 1)
}

// IncrementNotificationsDropped counts undeliverable or failed notifications
func IncrementNotificationsDropped() {
	atomic.AddUint64(&globalMetrics.NotificationsDropped, 1)
}

// GetMetrics returns current metrics
func GetMetrics() map[string]interface{} {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return map[string]interface{}{
		"requests_total":        atomic.LoadUint64(&globalMetrics.RequestsTotal),
		"requests_in_progress":  atomic.LoadUint64(&globalMetrics.RequestsInProgress),
		"requests_success":      atomic.LoadUint64(&globalMetrics.RequestsSuccess),
		"requests_failed":       atomic.LoadUint64(&globalMetrics.RequestsFailed),
		"events_total":          atomic.LoadUint64(&globalMetrics.EventsTotal),
		"events_ignored":        atomic.LoadUint64(&globalMetrics.EventsIgnored),
		"tasks_submitted":       atomic.LoadUint64(&globalMetrics.TasksSubmitted),
		"tasks_completed":       atomic.LoadUint64(&globalMetrics.TasksCompleted),
		"tasks_failed":          atomic.LoadUint64(&globalMetrics.TasksFailed),
		"tasks_suspended":       atomic.LoadUint64(&globalMetrics.TasksSuspended),
		"notifications_posted":  atomic.LoadUint64(&globalMetrics.NotificationsPosted),
		"notifications_dropped": atomic.LoadUint64(&globalMetrics.NotificationsDropped),
		"uptime_seconds":        time.Since(globalMetrics.StartTime).Seconds(),
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

		// Wrap response writer to capture status
		wrapped := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(wrapped, r)

		// Track success/failure based on status code
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
