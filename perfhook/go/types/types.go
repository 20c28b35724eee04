// Package types holds the layout of the results tree and the aggregated
// benchmark history served to clients.
package types

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"go.perfhook.dev/infra/go/skerr"
	"go.perfhook.dev/infra/perfhook/go/measurement"
)

// TimestampFormat is the format of the timestamp that prefixes the second
// segment of every ResultPath. Lexical order of timestamps in this format is
// chronological order.
const TimestampFormat = "2006-01-02T15:04:05Z"

// TimestampLen is the length of a timestamp in TimestampFormat.
const TimestampLen = len(TimestampFormat)

// ErrInvalidResultPath is returned when a path does not have the
// <label>/<timestamp>-<commit>/<name> shape.
var ErrInvalidResultPath = errors.New("invalid result path")

// FormatTimestamp formats ts as a UTC timestamp in TimestampFormat.
func FormatTimestamp(ts time.Time) string {
	return ts.UTC().Format(TimestampFormat)
}

// ResultPath is the location of a single measurement file relative to the
// results root:
//
//	<Label>/<Timestamp>-<Commit>/<Name>
type ResultPath struct {
	// Label is the branch label, e.g. "Master" or "Fix parser (#12)".
	Label string

	// Timestamp in TimestampFormat.
	Timestamp string

	// Commit is the commit that was benchmarked.
	Commit string

	// Name of the benchmark.
	Name string
}

// Dir returns the slash separated directory the runner writes into.
func (p ResultPath) Dir() string {
	return p.Label + "/" + p.Timestamp + "-" + p.Commit
}

// Rel returns the slash separated path of the measurement file.
func (p ResultPath) Rel() string {
	return p.Dir() + "/" + p.Name
}

func validSegment(s string) bool {
	return s != "" && s != "." && s != ".." && !strings.ContainsAny(s, "/\\\x00")
}

// Validate returns an error if p can't be stored as a single file at depth
// three of the results tree.
func (p ResultPath) Validate() error {
	if !validSegment(p.Label) {
		return skerr.Wrapf(ErrInvalidResultPath, "bad label %q", p.Label)
	}
	if _, err := time.Parse(TimestampFormat, p.Timestamp); err != nil || len(p.Timestamp) != TimestampLen {
		return skerr.Wrapf(ErrInvalidResultPath, "bad timestamp %q", p.Timestamp)
	}
	if p.Commit == "" || strings.ContainsAny(p.Commit, "/\\\x00") {
		return skerr.Wrapf(ErrInvalidResultPath, "bad commit %q", p.Commit)
	}
	if !validSegment(p.Name) {
		return skerr.Wrapf(ErrInvalidResultPath, "bad name %q", p.Name)
	}
	return nil
}

// ParseResultPath parses a slash separated path relative to the results root.
//
// The first TimestampLen characters of the middle segment must be a valid
// timestamp. Whatever follows, minus a leading '-', is the commit.
func ParseResultPath(rel string) (ResultPath, error) {
	parts := strings.Split(rel, "/")
	if len(parts) != 3 {
		return ResultPath{}, skerr.Wrapf(ErrInvalidResultPath, "%q has %d segments, want 3", rel, len(parts))
	}
	label, dir, name := parts[0], parts[1], parts[2]
	if label == "" || name == "" {
		return ResultPath{}, skerr.Wrapf(ErrInvalidResultPath, "%q has an empty segment", rel)
	}
	if len(dir) < TimestampLen {
		return ResultPath{}, skerr.Wrapf(ErrInvalidResultPath, "%q: directory %q is too short for a timestamp", rel, dir)
	}
	ts := dir[:TimestampLen]
	if _, err := time.Parse(TimestampFormat, ts); err != nil {
		return ResultPath{}, skerr.Wrapf(ErrInvalidResultPath, "%q: %q is not a timestamp", rel, ts)
	}
	return ResultPath{
		Label:     label,
		Timestamp: ts,
		Commit:    strings.TrimPrefix(dir[TimestampLen:], "-"),
		Name:      name,
	}, nil
}

// Result is a single measurement of a benchmark.
type Result struct {
	Timestamp   string
	Measurement measurement.Measurement
}

type estimatesResult struct {
	Timestamp string `json:"timestamp"`
	measurement.Estimates
}

type meanResult struct {
	Timestamp string  `json:"timestamp"`
	Mean      float64 `json:"mean"`
}

// MarshalJSON implements json.Marshaler. The measurement fields are flattened
// next to the timestamp.
func (r Result) MarshalJSON() ([]byte, error) {
	switch r.Measurement.Format {
	case measurement.FormatEstimates:
		return json.Marshal(estimatesResult{Timestamp: r.Timestamp, Estimates: r.Measurement.Estimates})
	case measurement.FormatMean:
		return json.Marshal(meanResult{Timestamp: r.Timestamp, Mean: r.Measurement.ScalarMean})
	default:
		return nil, skerr.Wrapf(measurement.ErrUnknownFormat, "%q", r.Measurement.Format)
	}
}

// UnmarshalJSON implements json.Unmarshaler. A "mean" key selects the flat
// format, otherwise the object must hold a complete set of estimates.
func (r *Result) UnmarshalJSON(b []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(b, &fields); err != nil {
		return skerr.Wrap(err)
	}
	rawTimestamp, ok := fields["timestamp"]
	if !ok {
		return skerr.Fmt("result is missing a timestamp")
	}
	var ts string
	if err := json.Unmarshal(rawTimestamp, &ts); err != nil {
		return skerr.Wrapf(err, "parsing timestamp")
	}
	if rawMean, ok := fields["mean"]; ok {
		var mean float64
		if err := json.Unmarshal(rawMean, &mean); err != nil {
			return skerr.Wrapf(err, "parsing mean")
		}
		*r = Result{Timestamp: ts, Measurement: measurement.NewScalarMean(mean)}
		return nil
	}
	m, err := measurement.Parse(measurement.FormatEstimates, b)
	if err != nil {
		return err
	}
	*r = Result{Timestamp: ts, Measurement: m}
	return nil
}

// Branch holds the results for one branch label, ordered by Timestamp.
type Branch struct {
	Name    string   `json:"name"`
	Results []Result `json:"results"`
}

// Bench is the history of one benchmark across all branches.
type Bench struct {
	Name     string   `json:"name"`
	Branches []Branch `json:"branches"`
}
