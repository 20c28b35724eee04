package metrics2

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"go.perfhook.dev/infra/go/sklog"
	"go.perfhook.dev/infra/go/util"
)

var (
	// invalidChar is used to force metric and tag names to conform to Prometheus's restrictions.
	invalidChar = regexp.MustCompile("([^a-zA-Z0-9_:])")
)

func clean(s string) string {
	return invalidChar.ReplaceAllLiteralString(s, "_")
}

// promInt64 implements Int64Metric and Counter.
type promInt64 struct {
	// i tracks the value of the gauge, because prometheus client lib doesn't
	// support get on Gauge values.
	i     int64
	gauge prometheus.Gauge
}

func (m *promInt64) Get() int64 {
	return atomic.LoadInt64(&m.i)
}

func (m *promInt64) Update(v int64) {
	atomic.StoreInt64(&m.i, v)
	m.gauge.Set(float64(v))
}

func (m *promInt64) Inc(i int64) {
	m.gauge.Set(float64(atomic.AddInt64(&m.i, i)))
}

func (m *promInt64) Reset() {
	m.Update(0)
}

// promFloat64Summary implements Float64SummaryMetric.
type promFloat64Summary struct {
	summary prometheus.Observer
}

func (m *promFloat64Summary) Observe(v float64) {
	m.summary.Observe(v)
}

// promClient implements Client.
type promClient struct {
	registerer prometheus.Registerer

	int64Mutex     sync.Mutex
	int64GaugeVecs map[string]*prometheus.GaugeVec
	int64Gauges    map[string]*promInt64

	summaryMutex sync.Mutex
	summaryVecs  map[string]*prometheus.SummaryVec
	summaries    map[string]*promFloat64Summary
}

func newPromClient() *promClient {
	return newPromClientWithRegisterer(prometheus.DefaultRegisterer)
}

func newPromClientWithRegisterer(r prometheus.Registerer) *promClient {
	return &promClient{
		registerer:     r,
		int64GaugeVecs: map[string]*prometheus.GaugeVec{},
		int64Gauges:    map[string]*promInt64{},
		summaryVecs:    map[string]*prometheus.SummaryVec{},
		summaries:      map[string]*promFloat64Summary{},
	}
}

// commonGet does the common work for each of the Get* funcs.
//
// It returns:
//
//	measurement - A clean measurement name.
//	cleanTags   - A clean set of tags.
//	keys        - A slice of the keys of cleanTags, sorted.
//	metricKey   - A name to uniquely identify the metric.
//	vecKey      - A name to uniquely identify the collection of metrics.
func commonGet(measurement string, tags ...map[string]string) (string, map[string]string, []string, string, string) {
	measurement = clean(measurement)
	rawTags := util.AddParams(map[string]string{}, tags...)

	cleanTags := map[string]string{}
	keys := []string{}
	for k, v := range rawTags {
		key := clean(k)
		cleanTags[key] = v
		keys = append(keys, key)
	}
	sort.Strings(keys)

	metricKeySrc := []string{measurement}
	for _, key := range keys {
		metricKeySrc = append(metricKeySrc, key, cleanTags[key])
	}
	metricKey := strings.Join(metricKeySrc, "-")
	vecKey := fmt.Sprintf("%s %v", measurement, keys)

	return measurement, cleanTags, keys, metricKey, vecKey
}

func (p *promClient) GetInt64Metric(name string, tags ...map[string]string) Int64Metric {
	return p.getInt64(name, tags...)
}

func (p *promClient) GetCounter(name string, tags ...map[string]string) Counter {
	return p.getInt64(name, tags...)
}

func (p *promClient) getInt64(name string, tags ...map[string]string) *promInt64 {
	measurement, cleanTags, keys, gaugeKey, gaugeVecKey := commonGet(name, tags...)

	p.int64Mutex.Lock()
	defer p.int64Mutex.Unlock()
	if ret, ok := p.int64Gauges[gaugeKey]; ok {
		return ret
	}

	gaugeVec, ok := p.int64GaugeVecs[gaugeVecKey]
	if !ok {
		gaugeVec = prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: measurement,
				Help: measurement,
			},
			keys,
		)
		if err := p.registerer.Register(gaugeVec); err != nil {
			sklog.Fatalf("Failed to register %q: %s", measurement, err)
		}
		p.int64GaugeVecs[gaugeVecKey] = gaugeVec
	}
	gauge, err := gaugeVec.GetMetricWith(prometheus.Labels(cleanTags))
	if err != nil {
		sklog.Fatalf("Failed to get gauge: %s", err)
	}
	ret := &promInt64{
		gauge: gauge,
	}
	p.int64Gauges[gaugeKey] = ret
	return ret
}

func (p *promClient) GetFloat64SummaryMetric(name string, tags ...map[string]string) Float64SummaryMetric {
	measurement, cleanTags, keys, summaryKey, summaryVecKey := commonGet(name, tags...)

	p.summaryMutex.Lock()
	defer p.summaryMutex.Unlock()
	if ret, ok := p.summaries[summaryKey]; ok {
		return ret
	}

	summaryVec, ok := p.summaryVecs[summaryVecKey]
	if !ok {
		summaryVec = prometheus.NewSummaryVec(
			prometheus.SummaryOpts{
				Name:       measurement,
				Help:       measurement,
				Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
			},
			keys,
		)
		if err := p.registerer.Register(summaryVec); err != nil {
			sklog.Fatalf("Failed to register %q %v: %s", measurement, cleanTags, err)
		}
		p.summaryVecs[summaryVecKey] = summaryVec
	}
	summary, err := summaryVec.GetMetricWith(prometheus.Labels(cleanTags))
	if err != nil {
		sklog.Fatalf("Failed to get summary: %s", err)
	}
	ret := &promFloat64Summary{
		summary: summary,
	}
	p.summaries[summaryKey] = ret
	return ret
}

// Validate that the concrete structs faithfully implement their respective interfaces.
var _ Int64Metric = (*promInt64)(nil)
var _ Counter = (*promInt64)(nil)
var _ Float64SummaryMetric = (*promFloat64Summary)(nil)
var _ Client = (*promClient)(nil)
