// Package timer makes timing operations easier.
package timer

import (
	"time"

	"go.perfhook.dev/infra/go/metrics2"
	"go.perfhook.dev/infra/go/sklog"
)

// Timer is for timing events. When finished the duration is reported via
// sklog and, if a metric was attached, recorded there in seconds.
//
// The standard way to use Timer is at the top of the func you want to
// measure:
//
//	defer timer.New("scan results dir").Stop()
type Timer struct {
	Begin  time.Time
	Name   string
	metric metrics2.Float64SummaryMetric
}

func New(name string) *Timer {
	return &Timer{
		Begin: time.Now(),
		Name:  name,
	}
}

// NewWithSummary is like New but also observes the elapsed seconds in the
// given summary metric when stopped.
func NewWithSummary(name string, m metrics2.Float64SummaryMetric) *Timer {
	t := New(name)
	t.metric = m
	return t
}

// Stop logs and returns the elapsed time.
func (t *Timer) Stop() time.Duration {
	d := time.Since(t.Begin)
	sklog.Infof("%s %v", t.Name, d)
	if t.metric != nil {
		t.metric.Observe(d.Seconds())
	}
	return d
}
