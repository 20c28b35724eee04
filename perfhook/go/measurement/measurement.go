// Package measurement parses the content of a single benchmark result file.
//
// Two file formats exist. Criterion estimates documents carry five statistics,
// each with a point estimate, standard error and confidence interval. Legacy
// runners write a flat file whose leading numeric token is the mean. A
// deployment uses exactly one of them, see Format.
package measurement

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"
	"unicode"

	"go.perfhook.dev/infra/go/skerr"
)

// Format identifies the on-disk format of measurement files.
type Format string

const (
	// FormatEstimates is a criterion estimates JSON document.
	FormatEstimates Format = "estimates"

	// FormatMean is a flat text file whose leading numeric token is the mean.
	FormatMean Format = "mean"
)

// AllFormats is the list of all supported formats.
var AllFormats = []Format{FormatEstimates, FormatMean}

// ErrUnknownFormat is returned for a Format not in AllFormats.
var ErrUnknownFormat = errors.New("unknown measurement format")

// ToFormat converts s to a Format, returning ErrUnknownFormat if it isn't one.
func ToFormat(s string) (Format, error) {
	for _, f := range AllFormats {
		if string(f) == s {
			return f, nil
		}
	}
	return "", skerr.Wrapf(ErrUnknownFormat, "%q", s)
}

// ConfidenceInterval of a single statistic.
type ConfidenceInterval struct {
	ConfidenceLevel float64 `json:"confidence_level"`
	LowerBound      float64 `json:"lower_bound"`
	UpperBound      float64 `json:"upper_bound"`
}

// Metric is the estimate of a single statistic.
type Metric struct {
	ConfidenceInterval ConfidenceInterval `json:"confidence_interval"`
	PointEstimate      float64            `json:"point_estimate"`
	StandardError      float64            `json:"standard_error"`
}

// Estimates is the content of a criterion estimates file.
type Estimates struct {
	Mean         Metric `json:"Mean"`
	Median       Metric `json:"Median"`
	MedianAbsDev Metric `json:"MedianAbsDev"`
	Slope        Metric `json:"Slope"`
	StdDev       Metric `json:"StdDev"`
}

// Measurement is either an Estimates or a ScalarMean, selected by Format.
type Measurement struct {
	Format Format

	// Estimates is only valid if Format is FormatEstimates.
	Estimates Estimates

	// ScalarMean is only valid if Format is FormatMean.
	ScalarMean float64
}

// NewEstimates returns a Measurement holding e.
func NewEstimates(e Estimates) Measurement {
	return Measurement{Format: FormatEstimates, Estimates: e}
}

// NewScalarMean returns a Measurement holding mean.
func NewScalarMean(mean float64) Measurement {
	return Measurement{Format: FormatMean, ScalarMean: mean}
}

// Mean returns the mean point estimate regardless of format.
func (m Measurement) Mean() float64 {
	if m.Format == FormatEstimates {
		return m.Estimates.Mean.PointEstimate
	}
	return m.ScalarMean
}

// Parse content as a measurement file of the given format.
func Parse(format Format, content []byte) (Measurement, error) {
	switch format {
	case FormatEstimates:
		e, err := ParseEstimates(content)
		if err != nil {
			return Measurement{}, err
		}
		return NewEstimates(e), nil
	case FormatMean:
		mean, err := ParseMean(content)
		if err != nil {
			return Measurement{}, err
		}
		return NewScalarMean(mean), nil
	default:
		return Measurement{}, skerr.Wrapf(ErrUnknownFormat, "%q", format)
	}
}

// estimatesPresence is used to detect missing statistics, which
// encoding/json would otherwise leave as zero values.
type estimatesPresence struct {
	Mean         *json.RawMessage `json:"Mean"`
	Median       *json.RawMessage `json:"Median"`
	MedianAbsDev *json.RawMessage `json:"MedianAbsDev"`
	Slope        *json.RawMessage `json:"Slope"`
	StdDev       *json.RawMessage `json:"StdDev"`
}

// ParseEstimates parses a criterion estimates document. All five statistics
// must be present.
func ParseEstimates(content []byte) (Estimates, error) {
	var presence estimatesPresence
	if err := json.Unmarshal(content, &presence); err != nil {
		return Estimates{}, skerr.Wrapf(err, "parsing estimates")
	}
	for name, v := range map[string]*json.RawMessage{
		"Mean":         presence.Mean,
		"Median":       presence.Median,
		"MedianAbsDev": presence.MedianAbsDev,
		"Slope":        presence.Slope,
		"StdDev":       presence.StdDev,
	} {
		if v == nil || bytes.Equal(bytes.TrimSpace(*v), []byte("null")) {
			return Estimates{}, skerr.Fmt("estimates missing %q", name)
		}
	}
	var e Estimates
	if err := json.Unmarshal(content, &e); err != nil {
		return Estimates{}, skerr.Wrapf(err, "parsing estimates")
	}
	return e, nil
}

func isDelimiter(r rune) bool {
	return unicode.IsSpace(r) || r == ',' || r == ';'
}

// ParseMean parses the leading numeric token of a flat measurement file. The
// token ends at the first whitespace, ',' or ';'.
func ParseMean(content []byte) (float64, error) {
	s := strings.TrimLeftFunc(string(content), unicode.IsSpace)
	if i := strings.IndexFunc(s, isDelimiter); i >= 0 {
		s = s[:i]
	}
	if s == "" {
		return 0, skerr.Fmt("no mean value found")
	}
	mean, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, skerr.Wrapf(err, "parsing mean %q", s)
	}
	if math.IsNaN(mean) || math.IsInf(mean, 0) {
		return 0, skerr.Fmt("mean is not a finite number: %q", s)
	}
	return mean, nil
}
