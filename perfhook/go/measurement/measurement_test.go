package measurement

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const estimatesJSON = `{
  "Mean": {"confidence_interval": {"confidence_level": 0.95, "lower_bound": 1.5, "upper_bound": 2.5}, "point_estimate": 2.0, "standard_error": 0.1},
  "Median": {"confidence_interval": {"confidence_level": 0.95, "lower_bound": 1.4, "upper_bound": 2.4}, "point_estimate": 1.9, "standard_error": 0.2},
  "MedianAbsDev": {"confidence_interval": {"confidence_level": 0.95, "lower_bound": 0.1, "upper_bound": 0.3}, "point_estimate": 0.2, "standard_error": 0.01},
  "Slope": {"confidence_interval": {"confidence_level": 0.95, "lower_bound": 1.6, "upper_bound": 2.6}, "point_estimate": 2.1, "standard_error": 0.05},
  "StdDev": {"confidence_interval": {"confidence_level": 0.95, "lower_bound": 0.2, "upper_bound": 0.4}, "point_estimate": 0.3, "standard_error": 0.02}
}`

func TestParse_Estimates_Success(t *testing.T) {
	m, err := Parse(FormatEstimates, []byte(estimatesJSON))
	require.NoError(t, err)
	assert.Equal(t, FormatEstimates, m.Format)
	assert.Equal(t, 2.0, m.Mean())
	assert.Equal(t, 0.95, m.Estimates.StdDev.ConfidenceInterval.ConfidenceLevel)
	assert.Equal(t, 0.4, m.Estimates.StdDev.ConfidenceInterval.UpperBound)
	assert.Equal(t, 0.05, m.Estimates.Slope.StandardError)
}

func TestParse_EstimatesMissingStatistic_ReturnsError(t *testing.T) {
	_, err := Parse(FormatEstimates, []byte(`{"Mean": {"point_estimate": 1}}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "estimates missing")
}

func TestParse_EstimatesNotJSON_ReturnsError(t *testing.T) {
	_, err := Parse(FormatEstimates, []byte(`{"Mean": `))
	require.Error(t, err)
}

func TestParse_EstimatesMistypedField_ReturnsError(t *testing.T) {
	doc := `{"Mean": {"point_estimate": "fast"}, "Median": {}, "MedianAbsDev": {}, "Slope": {}, "StdDev": {}}`
	_, err := Parse(FormatEstimates, []byte(doc))
	require.Error(t, err)
}

func TestParse_Mean_Success(t *testing.T) {
	for content, expected := range map[string]float64{
		"12.5":                 12.5,
		"  12.5\n":             12.5,
		"12.5 ns/iter":         12.5,
		"12.5,3.1,4":           12.5,
		"7;ms":                 7,
		"1e3":                  1000,
		"0.30000000000000004 ": 0.30000000000000004,
	} {
		m, err := Parse(FormatMean, []byte(content))
		require.NoError(t, err, content)
		assert.Equal(t, FormatMean, m.Format)
		assert.Equal(t, expected, m.Mean(), content)
	}
}

func TestParse_MeanInvalid_ReturnsError(t *testing.T) {
	for _, content := range []string{"", "   ", "fast", ",12", "NaN", "+Inf"} {
		_, err := Parse(FormatMean, []byte(content))
		assert.Error(t, err, content)
	}
}

func TestParse_UnknownFormat_ReturnsError(t *testing.T) {
	_, err := Parse(Format("csv"), []byte("1"))
	require.ErrorIs(t, err, ErrUnknownFormat)
}

func TestToFormat(t *testing.T) {
	f, err := ToFormat("mean")
	require.NoError(t, err)
	assert.Equal(t, FormatMean, f)

	_, err = ToFormat("median")
	require.ErrorIs(t, err, ErrUnknownFormat)
}
