// Package metrics2 provides gauges, counters and summaries backed by
// Prometheus, keyed by a measurement name and a set of tags.
package metrics2

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.perfhook.dev/infra/go/sklog"
)

// Int64Metric is a metric which reports an int64 value.
type Int64Metric interface {
	Get() int64
	Update(v int64)
}

// Counter is a metric which tracks a running total.
type Counter interface {
	Inc(i int64)
	Get() int64
	Reset()
}

// Float64SummaryMetric is a metric which reports a summary of many float64 values.
type Float64SummaryMetric interface {
	Observe(v float64)
}

// Client represents a set of metrics.
type Client interface {
	GetInt64Metric(name string, tags ...map[string]string) Int64Metric
	GetCounter(name string, tags ...map[string]string) Counter
	GetFloat64SummaryMetric(name string, tags ...map[string]string) Float64SummaryMetric
}

var defaultClient Client = newPromClient()

// GetInt64Metric returns an Int64Metric from the default client.
func GetInt64Metric(name string, tags ...map[string]string) Int64Metric {
	return defaultClient.GetInt64Metric(name, tags...)
}

// GetCounter returns a Counter from the default client.
func GetCounter(name string, tags ...map[string]string) Counter {
	return defaultClient.GetCounter(name, tags...)
}

// GetFloat64SummaryMetric returns a Float64SummaryMetric from the default client.
func GetFloat64SummaryMetric(name string, tags ...map[string]string) Float64SummaryMetric {
	return defaultClient.GetFloat64SummaryMetric(name, tags...)
}

// InitPrometheus serves the default Prometheus registry at /metrics on the
// given port, e.g. ":20000". Does not block.
func InitPrometheus(port string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	go func() {
		sklog.Infof("Serving metrics on %s", port)
		sklog.Fatal(http.ListenAndServe(port, mux))
	}()
}
