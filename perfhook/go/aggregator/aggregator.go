// Package aggregator builds the benchmark history from the measurement files
// in a resultstore.Store.
package aggregator

import (
	"context"
	"errors"
	"sort"

	"go.perfhook.dev/infra/go/metrics2"
	"go.perfhook.dev/infra/go/skerr"
	"go.perfhook.dev/infra/go/sklog"
	"go.perfhook.dev/infra/go/timer"
	"go.perfhook.dev/infra/perfhook/go/measurement"
	"go.perfhook.dev/infra/perfhook/go/resultstore"
	"go.perfhook.dev/infra/perfhook/go/types"
)

// ErrSkipEntry wraps the reason a single measurement file was left out of the
// aggregate.
var ErrSkipEntry = errors.New("skipping result entry")

// Aggregator loads the history of all benchmarks from a Store.
type Aggregator struct {
	store  resultstore.Store
	format measurement.Format

	skipped metrics2.Counter
	loaded  metrics2.Counter
	latency metrics2.Float64SummaryMetric
}

// New returns an Aggregator that parses files in store as format.
func New(store resultstore.Store, format measurement.Format) *Aggregator {
	return &Aggregator{
		store:   store,
		format:  format,
		skipped: metrics2.GetCounter("perfhook_aggregate_skipped_entries"),
		loaded:  metrics2.GetCounter("perfhook_aggregate_loaded_entries"),
		latency: metrics2.GetFloat64SummaryMetric("perfhook_aggregate_latency_s"),
	}
}

// Load scans the whole store and returns every benchmark, sorted by name.
// Within each Branch the results are ordered by timestamp. Entries that can't
// be parsed are logged and skipped.
func (a *Aggregator) Load(ctx context.Context) ([]types.Bench, error) {
	defer timer.NewWithSummary("aggregate", a.latency).Stop()
	entries, err := a.store.ScanAll(ctx)
	if err != nil {
		return nil, skerr.Wrapf(err, "scanning results")
	}
	benches := map[string]*types.Bench{}
	for _, entry := range entries {
		bench, err := toBench(entry, a.format)
		if err != nil {
			sklog.Warning(err)
			a.skipped.Inc(1)
			continue
		}
		a.loaded.Inc(1)
		Merge(benches, bench)
	}
	return sorted(benches), nil
}

// toBench converts a single entry into a Bench with one Branch holding one
// Result.
func toBench(entry resultstore.Entry, format measurement.Format) (types.Bench, error) {
	p, err := types.ParseResultPath(entry.Path)
	if err != nil {
		return types.Bench{}, skerr.Wrapf(ErrSkipEntry, "%s", err)
	}
	m, err := measurement.Parse(format, entry.Content)
	if err != nil {
		return types.Bench{}, skerr.Wrapf(ErrSkipEntry, "%q: %s", entry.Path, err)
	}
	return types.Bench{
		Name: p.Name,
		Branches: []types.Branch{
			{
				Name: p.Label,
				Results: []types.Result{
					{
						Timestamp:   p.Timestamp,
						Measurement: m,
					},
				},
			},
		},
	}, nil
}

// Merge adds the single-result bench into benches.
//
// If the bench is new it is inserted as is. If it already has a branch of the
// same name the result is appended and the branch is re-sorted by timestamp,
// keeping insertion order for equal timestamps. Otherwise the branch is
// appended to the bench. A bench without branches is ignored.
func Merge(benches map[string]*types.Bench, bench types.Bench) {
	if len(bench.Branches) == 0 {
		return
	}
	existing, ok := benches[bench.Name]
	if !ok {
		benches[bench.Name] = &bench
		return
	}
	incoming := bench.Branches[0]
	for i := range existing.Branches {
		branch := &existing.Branches[i]
		if branch.Name != incoming.Name {
			continue
		}
		branch.Results = append(branch.Results, incoming.Results...)
		sort.SliceStable(branch.Results, func(i, j int) bool {
			return branch.Results[i].Timestamp < branch.Results[j].Timestamp
		})
		return
	}
	existing.Branches = append(existing.Branches, incoming)
}

func sorted(benches map[string]*types.Bench) []types.Bench {
	ret := make([]types.Bench, 0, len(benches))
	for _, b := range benches {
		ret = append(ret, *b)
	}
	sort.Slice(ret, func(i, j int) bool {
		return ret[i].Name < ret[j].Name
	})
	return ret
}
