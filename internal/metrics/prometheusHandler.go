package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var HttpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "http_requests_total",
	Help: "Total number of requests labelled by path and status",
}, []string{"path", "status"})

var countJobsInQueue = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "count_jobs_in_queue",
	Help: "Number of jobs in queue",
})

var dispatcherSignalCount = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "dispatcher_signal_count",
	Help: "How often the dispatcher has signaled to start worker",
})

var activeWorkerCount = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "active_worker_count",
	Help: "Number of active workers",
})

var ingestionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "document_ingestions_total",
	Help: "Ingestion attempts labelled by result",
}, []string{"result"})

var ingestedChunks = promauto.NewCounter(prometheus.CounterOpts{
	Name: "document_chunks_ingested_total",
	Help: "Chunks written to the vector store",
})

var toolCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "agent_tool_calls_total",
	Help: "Tool calls made by the agent loop, labelled by tool and result",
}, []string{"tool", "result"})

var agentOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "agent_outcomes_total",
	Help: "Terminal states of the agent loop",
}, []string{"status"})

type HttpStatusRecorder struct {
	http.ResponseWriter
	Status int
}

// WriteHeader records the status before forwarding it.
func (r *HttpStatusRecorder) WriteHeader(code int) {
	r.Status = code
	r.ResponseWriter.WriteHeader(code)
}

func IncrementJobsInQueue() {
	countJobsInQueue.Inc()
}

func DecrementJobsInQueue() {
	countJobsInQueue.Dec()
}

func StartDispatcherSignalCount() {
	dispatcherSignalCount.Inc()
}

func IncrementActiveWorkerCount() {
	activeWorkerCount.Inc()
}
func DecrementActiveWorkerCount() {
	activeWorkerCount.Dec()
}

// CaptureIngestion records one pipeline run. result is ingested, already_processed or error.
func CaptureIngestion(result string, chunks int) {
	ingestionsTotal.WithLabelValues(result).Inc()
	if chunks > 0 {
		ingestedChunks.Add(float64(chunks))
	}
}

func CaptureToolCall(tool string, ok bool) {
	result := "ok"
	if !ok {
		result = "error"
	}
	toolCallsTotal.WithLabelValues(tool, result).Inc()
}

func CaptureAgentOutcome(status string) {
	agentOutcomes.WithLabelValues(status).Inc()
}

var requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "process_request_duration_seconds",
	Help:    "Total time spent processing a job.",
	Buckets: []float64{.1, .5, 1, 2, 5, 10, 30, 60, 300},
}, []string{"status"})

var dependencyLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "dependency_latency_seconds",
	Help:    "Latency of external service calls.",
	Buckets: []float64{.05, .1, .25, .5, 1, 2, 5, 10},
}, []string{"service"})

func CaptureExecutionMetrics(label string, timeElapsed time.Duration) {
	dependencyLatency.WithLabelValues(label).Observe(timeElapsed.Seconds())
}

func CaptureJobMetrics(label string, timeElapsed time.Duration) {
	requestDuration.WithLabelValues(label).Observe(timeElapsed.Seconds())
}
