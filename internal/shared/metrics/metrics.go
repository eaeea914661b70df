package metrics

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/gin-gonic/gin"
)

var (
	uploadsTotal        atomic.Uint64
	uploadsFailedTotal  atomic.Uint64
	questionsTotal      atomic.Uint64
	questionsFailedTotal atomic.Uint64
	keysIssuedTotal     atomic.Uint64

	llmDuration = newHistogram([]float64{100, 250, 500, 1000, 2000, 5000, 10000, 30000})
)

// IncUpload increments the processed-upload counter.
func IncUpload() {
	uploadsTotal.Add(1)
}

// IncUploadFailed increments the failed-upload counter.
func IncUploadFailed() {
	uploadsFailedTotal.Add(1)
}

// IncQuestion increments the answered-question counter.
func IncQuestion() {
	questionsTotal.Add(1)
}

// IncQuestionFailed increments the failed-question counter.
func IncQuestionFailed() {
	questionsFailedTotal.Add(1)
}

// IncKeyIssued increments the issued-credential counter.
func IncKeyIssued() {
	keysIssuedTotal.Add(1)
}

// ObserveLLMDurationMs records an LLM call duration in milliseconds.
func ObserveLLMDurationMs(value float64) {
	if value < 0 {
		value = 0
	}
	llmDuration.Observe(value)
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/plain; version=0.0.4")
		c.String(http.StatusOK, Render())
	}
}

// Render renders metrics in Prometheus text format.
func Render() string {
	var buf bytes.Buffer
	writeCounter(&buf, "pdf_uploads_total", "Total PDF uploads processed", uploadsTotal.Load())
	writeCounter(&buf, "pdf_uploads_failed_total", "Total PDF uploads failed", uploadsFailedTotal.Load())
	writeCounter(&buf, "questions_total", "Total questions answered", questionsTotal.Load())
	writeCounter(&buf, "questions_failed_total", "Total questions failed", questionsFailedTotal.Load())
	writeCounter(&buf, "api_keys_issued_total", "Total API keys issued", keysIssuedTotal.Load())
	writeHistogram(&buf, "llm_duration_ms", "LLM call duration in milliseconds", llmDuration.Snapshot())
	return buf.String()
}

type histogram struct {
	mu      sync.Mutex
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

type histogramSnapshot struct {
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

func newHistogram(buckets []float64) *histogram {
	return &histogram{
		buckets: buckets,
		counts:  make([]uint64, len(buckets)),
	}
}

func (h *histogram) Observe(value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += value
	for i, bound := range h.buckets {
		if value <= bound {
			h.counts[i]++
			break
		}
	}
}

func (h *histogram) Snapshot() histogramSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return histogramSnapshot{
		buckets: append([]float64(nil), h.buckets...),
		counts:  append([]uint64(nil), h.counts...),
		sum:     h.sum,
		count:   h.count,
	}
}

func writeCounter(buf *bytes.Buffer, name, help string, value uint64) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s counter\n", name)
	fmt.Fprintf(buf, "%s %d\n", name, value)
}

func writeHistogram(buf *bytes.Buffer, name, help string, snap histogramSnapshot) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s histogram\n", name)
	var cumulative uint64
	for i, bound := range snap.buckets {
		cumulative += snap.counts[i]
		fmt.Fprintf(buf, "%s_bucket{le=\"%s\"} %d\n", name, formatFloat(bound), cumulative)
	}
	fmt.Fprintf(buf, "%s_bucket{le=\"+Inf\"} %d\n", name, snap.count)
	fmt.Fprintf(buf, "%s_sum %s\n", name, formatFloat(snap.sum))
	fmt.Fprintf(buf, "%s_count %d\n", name, snap.count)
}

func formatFloat(value float64) string {
	if value == float64(int64(value)) {
		return strconv.FormatInt(int64(value), 10)
	}
	return strconv.FormatFloat(value, 'f', -1, 64)
}
