package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MimeLyc/ygo-judge/internal/agent"
)

const namespace = "ygo_judge"

// Collector records inquiry activity on its own registry. It satisfies
// agent.Recorder.
type Collector struct {
	registry *prometheus.Registry

	inquiries  *prometheus.CounterVec
	turns      prometheus.Histogram
	modelCalls *prometheus.CounterVec
	modelTime  *prometheus.HistogramVec
	toolCalls  *prometheus.CounterVec
}

var _ agent.Recorder = (*Collector)(nil)

func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		inquiries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inquiries_total",
			Help:      "Finished inquiries by outcome.",
		}, []string{"outcome"}),
		turns: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "inquiry_turns",
			Help:      "Acting turns used per inquiry.",
			Buckets:   prometheus.LinearBuckets(1, 2, 8),
		}),
		modelCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "model_calls_total",
			Help:      "Model completions by loop phase and result.",
		}, []string{"phase", "result"}),
		modelTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "model_call_seconds",
			Help:      "Model completion latency by loop phase.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"phase"}),
		toolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_calls_total",
			Help:      "Tool executions by tool and whether the observation was an error.",
		}, []string{"tool", "error"}),
	}
	c.registry.MustRegister(
		c.inquiries,
		c.turns,
		c.modelCalls,
		c.modelTime,
		c.toolCalls,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

func (c *Collector) ModelCall(phase agent.Phase, elapsed time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.modelCalls.WithLabelValues(phase.String(), result).Inc()
	c.modelTime.WithLabelValues(phase.String()).Observe(elapsed.Seconds())
}

func (c *Collector) ToolCall(tool string, isError bool) {
	label := "false"
	if isError {
		label = "true"
	}
	c.toolCalls.WithLabelValues(tool, label).Inc()
}

func (c *Collector) InquiryFinished(outcome agent.Outcome, turns int) {
	c.inquiries.WithLabelValues(string(outcome)).Inc()
	c.turns.Observe(float64(turns))
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}
