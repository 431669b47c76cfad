package cluster

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"segweaver/internal/core"
)

func TestMetrics_OnBlobs(t *testing.T) {
	x, truth := blobs(10)

	sil, err := Silhouette.Score(x, truth, 3)
	require.NoError(t, err)
	assert.Greater(t, sil, 0.9)

	ch3, err := CalinskiHarabasz.Score(x, truth, 3)
	require.NoError(t, err)
	two := make([]int, len(truth))
	for i, l := range truth {
		two[i] = min(l, 1)
	}
	ch2, err := CalinskiHarabasz.Score(x, two, 2)
	require.NoError(t, err)
	assert.Greater(t, ch3, ch2)

	d3, err := Distortion.Score(x, truth, 3)
	require.NoError(t, err)
	d2, err := Distortion.Score(x, two, 2)
	require.NoError(t, err)
	assert.Less(t, d3, d2)
}

func TestMetrics_Direction(t *testing.T) {
	assert.False(t, Distortion.HigherIsBetter())
	assert.True(t, Silhouette.HigherIsBetter())
	assert.True(t, CalinskiHarabasz.HigherIsBetter())
	assert.Equal(t, 1, Distortion.MinK())
	assert.Equal(t, 2, Silhouette.MinK())
}

func TestMetrics_RejectSingleCluster(t *testing.T) {
	x, _ := blobs(4)
	ones := make([]int, len(x))
	for _, m := range []Metric{Silhouette, CalinskiHarabasz} {
		_, err := m.Score(x, ones, 1)
		assert.ErrorIs(t, err, core.ErrInvalidParameter, string(m))
	}
	d, err := Distortion.Score(x, ones, 1)
	require.NoError(t, err)
	assert.Greater(t, d, 0.0)
}

func TestMetrics_ValidateLabels(t *testing.T) {
	x, _ := blobs(2)
	_, err := Distortion.Score(x, []int{0}, 1)
	assert.ErrorIs(t, err, core.ErrShapeMismatch)
	_, err = Distortion.Score(x, make([]int, len(x)-1), 1)
	assert.ErrorIs(t, err, core.ErrShapeMismatch)
	bad := make([]int, len(x))
	bad[0] = 5
	_, err = Silhouette.Score(x, bad, 2)
	assert.ErrorIs(t, err, core.ErrInvalidParameter)
}

func TestParseMetric(t *testing.T) {
	m, err := ParseMetric("calinski_harabasz")
	require.NoError(t, err)
	assert.Equal(t, CalinskiHarabasz, m)
	_, err = ParseMetric("davies_bouldin")
	assert.ErrorIs(t, err, core.ErrInvalidParameter)
}
