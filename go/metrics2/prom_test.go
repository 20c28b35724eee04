package metrics2

import (
	"io"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClean(t *testing.T) {
	assert.Equal(t, "a_b_c", clean("a.b-c"))
}

func newTestClient() (*promClient, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	return newPromClientWithRegisterer(reg), reg
}

func get(t *testing.T, reg *prometheus.Registry, metric string) string {
	req := httptest.NewRequest("GET", "/metrics", nil)
	rw := httptest.NewRecorder()
	promhttp.HandlerFor(reg, promhttp.HandlerOpts{
		ErrorHandling:      promhttp.PanicOnError,
		DisableCompression: true,
	}).ServeHTTP(rw, req)
	b, err := io.ReadAll(rw.Result().Body)
	require.NoError(t, err)
	for _, s := range strings.Split(string(b), "\n") {
		if strings.HasPrefix(s, metric) {
			return strings.Split(s, " ")[1]
		}
	}
	return ""
}

func TestInt64_TagsSelectSeparateSeries(t *testing.T) {
	c, reg := newTestClient()
	check := func(m Int64Metric, metric string, expect int64) {
		actual, err := strconv.ParseInt(get(t, reg, metric), 10, 64)
		require.NoError(t, err)
		assert.Equal(t, expect, actual)
		assert.Equal(t, expect, m.Get())
	}
	g := c.GetInt64Metric("a.b", map[string]string{"some_key": "some-value"})
	check(g, `a_b{some_key="some-value"}`, 0)
	g.Update(3)
	check(g, `a_b{some_key="some-value"}`, 3)

	g2 := c.GetInt64Metric("a.b", map[string]string{"some_key": "other"})
	g2.Update(4)
	check(g, `a_b{some_key="some-value"}`, 3)
	check(g2, `a_b{some_key="other"}`, 4)
}

func TestCounter_SameNameAndTags_SharesValue(t *testing.T) {
	c, reg := newTestClient()
	tags := map[string]string{"result": "ok"}
	c.GetCounter("requests", tags).Inc(1)
	c.GetCounter("requests", tags).Inc(2)
	assert.Equal(t, int64(3), c.GetCounter("requests", tags).Get())
	assert.Equal(t, "3", get(t, reg, `requests{result="ok"}`))

	c.GetCounter("requests", tags).Reset()
	assert.Equal(t, int64(0), c.GetCounter("requests", tags).Get())
}

func TestSummary_Observe_CountIncrements(t *testing.T) {
	c, reg := newTestClient()
	s := c.GetFloat64SummaryMetric("latency", map[string]string{"op": "scan"})
	s.Observe(0.5)
	s.Observe(1.5)
	assert.Equal(t, "2", get(t, reg, `latency_count{op="scan"}`))
	assert.Equal(t, "2", get(t, reg, `latency_sum{op="scan"}`))
}
