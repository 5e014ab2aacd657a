package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

type opKey struct {
	component string
	op        string
	code      string
}

type rejectKey struct {
	component string
	op        string
}

type latencyKey struct {
	component string
	op        string
}

type histogram struct {
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

type collector struct {
	mu             sync.Mutex
	operations     map[opKey]uint64
	rejections     map[rejectKey]uint64
	latency        map[latencyKey]*histogram
	notifyFailures map[string]uint64
}

var opsCollector = &collector{
	operations:     make(map[opKey]uint64),
	rejections:     make(map[rejectKey]uint64),
	latency:        make(map[latencyKey]*histogram),
	notifyFailures: make(map[string]uint64),
}

// CodeOK labels operations that completed without an error.
const CodeOK = "OK"

// ObserveOperation records the outcome and latency of a state operation.
// code carries the rejection code, or CodeOK for accepted operations.
func ObserveOperation(component, op, code string, duration time.Duration) {
	opsCollector.observe(component, op, code, duration)
}

// IncNotifyFailure counts a failed notification delivery per event kind.
func IncNotifyFailure(kind string) {
	opsCollector.mu.Lock()
	opsCollector.notifyFailures[kind]++
	opsCollector.mu.Unlock()
}

func (c *collector) observe(component, op, code string, duration time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if code == "" {
		code = CodeOK
	}
	c.operations[opKey{component: component, op: op, code: code}]++
	if code != CodeOK {
		c.rejections[rejectKey{component: component, op: op}]++
	}

	latKey := latencyKey{component: component, op: op}
	hist := c.latency[latKey]
	if hist == nil {
		hist = newHistogram()
		c.latency[latKey] = hist
	}
	hist.observe(duration.Seconds())
}

func newHistogram() *histogram {
	// State operations are in-memory; the buckets sit well below HTTP scale.
	buckets := []float64{0.000005, 0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.01, 0.1}
	return &histogram{
		buckets: buckets,
		counts:  make([]uint64, len(buckets)),
	}
}

func (h *histogram) observe(value float64) {
	h.count++
	h.sum += value
	for idx, bound := range h.buckets {
		if value <= bound {
			for i := idx; i < len(h.counts); i++ {
				h.counts[i]++
			}
			break
		}
	}
	// Values above the last bucket only show up in the +Inf bucket via h.count.
}

// Handler exposes the metrics in Prometheus text exposition format.
func Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		_, _ = fmt.Fprint(w, opsCollector.render())
	})
}

func (c *collector) render() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	type opMetric struct {
		opKey
		value uint64
	}
	type rejectMetric struct {
		rejectKey
		value uint64
	}
	type latencyMetric struct {
		latencyKey
		buckets []float64
		counts  []uint64
		sum     float64
		count   uint64
	}

	ops := make([]opMetric, 0, len(c.operations))
	for key, value := range c.operations {
		ops = append(ops, opMetric{opKey: key, value: value})
	}
	rejects := make([]rejectMetric, 0, len(c.rejections))
	for key, value := range c.rejections {
		rejects = append(rejects, rejectMetric{rejectKey: key, value: value})
	}
	lats := make([]latencyMetric, 0, len(c.latency))
	for key, hist := range c.latency {
		lats = append(lats, latencyMetric{
			latencyKey: key,
			buckets:    append([]float64(nil), hist.buckets...),
			counts:     append([]uint64(nil), hist.counts...),
			sum:        hist.sum,
			count:      hist.count,
		})
	}
	kinds := make([]string, 0, len(c.notifyFailures))
	for kind := range c.notifyFailures {
		kinds = append(kinds, kind)
	}

	sort.Slice(ops, func(i, j int) bool {
		if ops[i].component == ops[j].component {
			if ops[i].op == ops[j].op {
				return ops[i].code < ops[j].code
			}
			return ops[i].op < ops[j].op
		}
		return ops[i].component < ops[j].component
	})
	sort.Slice(rejects, func(i, j int) bool {
		if rejects[i].component == rejects[j].component {
			return rejects[i].op < rejects[j].op
		}
		return rejects[i].component < rejects[j].component
	})
	sort.Slice(lats, func(i, j int) bool {
		if lats[i].component == lats[j].component {
			return lats[i].op < lats[j].op
		}
		return lats[i].component < lats[j].component
	})
	sort.Strings(kinds)

	var builder strings.Builder
	builder.Grow(1024)

	builder.WriteString("# HELP openmint_operations_total Total number of state operations processed.\n")
	builder.WriteString("# TYPE openmint_operations_total counter\n")
	for _, metric := range ops {
		builder.WriteString(fmt.Sprintf("openmint_operations_total{component=\"%s\",op=\"%s\",code=\"%s\"} %d\n",
			escape(metric.component), escape(metric.op), escape(metric.code), metric.value))
	}

	builder.WriteString("# HELP openmint_operation_rejections_total Total number of state operations rejected without effect.\n")
	builder.WriteString("# TYPE openmint_operation_rejections_total counter\n")
	for _, metric := range rejects {
		builder.WriteString(fmt.Sprintf("openmint_operation_rejections_total{component=\"%s\",op=\"%s\"} %d\n",
			escape(metric.component), escape(metric.op), metric.value))
	}

	builder.WriteString("# HELP openmint_operation_duration_seconds State operation duration in seconds.\n")
	builder.WriteString("# TYPE openmint_operation_duration_seconds histogram\n")
	for _, metric := range lats {
		for idx, bound := range metric.buckets {
			builder.WriteString(fmt.Sprintf("openmint_operation_duration_seconds_bucket{component=\"%s\",op=\"%s\",le=\"%s\"} %d\n",
				escape(metric.component), escape(metric.op), formatFloat(bound), metric.counts[idx]))
		}
		builder.WriteString(fmt.Sprintf("openmint_operation_duration_seconds_bucket{component=\"%s\",op=\"%s\",le=\"+Inf\"} %d\n",
			escape(metric.component), escape(metric.op), metric.count))
		builder.WriteString(fmt.Sprintf("openmint_operation_duration_seconds_sum{component=\"%s\",op=\"%s\"} %s\n",
			escape(metric.component), escape(metric.op), formatFloat(metric.sum)))
		builder.WriteString(fmt.Sprintf("openmint_operation_duration_seconds_count{component=\"%s\",op=\"%s\"} %d\n",
			escape(metric.component), escape(metric.op), metric.count))
	}

	builder.WriteString("# HELP openmint_notify_failures_total Total number of failed notification deliveries.\n")
	builder.WriteString("# TYPE openmint_notify_failures_total counter\n")
	for _, kind := range kinds {
		builder.WriteString(fmt.Sprintf("openmint_notify_failures_total{kind=\"%s\"} %d\n",
			escape(kind), c.notifyFailures[kind]))
	}

	return builder.String()
}

func escape(value string) string {
	value = strings.ReplaceAll(value, "\\", "\\\\")
	value = strings.ReplaceAll(value, "\"", "\\\"")
	value = strings.ReplaceAll(value, "\n", "")
	return value
}

func formatFloat(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}

// StartServer launches a standalone HTTP server exposing the /metrics endpoint.
func StartServer(ctx context.Context, addr string) error {
	if addr == "" {
		return errors.New("metrics address is empty")
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())

	srv := &http.Server{Addr: addr, Handler: mux}
	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err, ok := <-errCh:
		if !ok {
			return nil
		}
		return err
	}
}
