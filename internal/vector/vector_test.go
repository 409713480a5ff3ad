package vector

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsInvalid(t *testing.T) {
	_, err := New(nil)
	require.ErrorIs(t, err, ErrEmpty)

	_, err = New([]float32{})
	require.ErrorIs(t, err, ErrEmpty)

	_, err = New([]float32{1, float32(math.NaN()), 3})
	require.ErrorIs(t, err, ErrNonFinite)

	_, err = New([]float32{1, float32(math.Inf(1)), 3})
	require.ErrorIs(t, err, ErrNonFinite)

	v, err := New([]float32{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, Vector{1, 2, 3}, v)
}

func TestNewCopiesInput(t *testing.T) {
	src := []float32{1, 2, 3}
	v, err := New(src)
	require.NoError(t, err)
	src[0] = 99
	assert.Equal(t, float32(1), v[0])
}

func TestEuclideanDistance(t *testing.T) {
	a := Vector{1, 0, 0}
	b := Vector{0, 1, 0}
	d, err := Euclidean.Distance(a, b)
	require.NoError(t, err)
	assert.InDelta(t, math.Sqrt2, d, 1e-9)

	d, err = Euclidean.Distance(a, a)
	require.NoError(t, err)
	assert.InDelta(t, 0, d, 1e-9)
}

func TestCosineDistance(t *testing.T) {
	tests := []struct {
		name     string
		a, b     Vector
		expected float64
	}{
		{"identical", Vector{1, 0, 0}, Vector{1, 0, 0}, 0},
		{"orthogonal", Vector{1, 0}, Vector{0, 1}, 1},
		{"opposite", Vector{1, 0}, Vector{-1, 0}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := Cosine.Distance(tt.a, tt.b)
			require.NoError(t, err)
			assert.InDelta(t, tt.expected, d, 1e-9)
		})
	}
}

func TestDotProductReportedRaw(t *testing.T) {
	a := Vector{1, 2, 3}
	b := Vector{4, 5, 6}
	d, err := Dot.Distance(a, b)
	require.NoError(t, err)
	assert.InDelta(t, 32.0, d, 1e-9)
}

func TestComparatorNegatesDot(t *testing.T) {
	a := Vector{1, 2, 3}
	b := Vector{4, 5, 6}
	c, err := Dot.Comparator(a, b)
	require.NoError(t, err)
	assert.InDelta(t, -32.0, c, 1e-9)

	// Euclidean and Cosine comparator equals distance.
	c, err = Euclidean.Comparator(a, b)
	require.NoError(t, err)
	d, _ := Euclidean.Distance(a, b)
	assert.Equal(t, d, c)
}

func TestDimensionMismatch(t *testing.T) {
	_, err := Euclidean.Distance(Vector{1, 2}, Vector{1, 2, 3})
	var mismatch *DimensionMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, 2, mismatch.Want)
	assert.Equal(t, 3, mismatch.Got)
}

func TestMetricAscending(t *testing.T) {
	assert.True(t, Euclidean.Ascending())
	assert.True(t, Cosine.Ascending())
	assert.False(t, Dot.Ascending())
}

func TestParseMetric(t *testing.T) {
	for _, tt := range []struct {
		in   string
		want Metric
	}{
		{"euclidean", Euclidean},
		{"", Euclidean},
		{"cosine", Cosine},
		{"dot", Dot},
	} {
		m, err := ParseMetric(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, m)
	}

	_, err := ParseMetric("manhattan")
	require.Error(t, err)
}
