package graph

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestInverseDistance(t *testing.T) {
	assert.InDelta(t, 0.2, InverseDistance([2]float64{0, 0}, [2]float64{3, 4}), 1e-12)
	assert.Equal(t, 0.0, InverseDistance([2]float64{1, 1}, [2]float64{1, 1}))
}

func TestBuild_Unnormalized(t *testing.T) {
	rel := [][][2]float64{
		{{0, 0}, {1, 0}, {1, 1}, {0, 0}},
		{{3, 4}, {1, 0}, {0, 1}, {2, 0}},
		{{0, 0}, {0, 2}, {5, 5}, {-1, 0}},
	}
	g, err := Build(rel, false)
	require.NoError(t, err)
	assert.Equal(t, []int{4, 3, 2}, g.V.Shape)
	assert.Equal(t, []int{4, 3, 3}, g.A.Shape)
	assert.Equal(t, 4, g.Steps())
	assert.Equal(t, 3, g.Nodes())

	for s := 0; s < g.Steps(); s++ {
		for h := 0; h < 3; h++ {
			assert.Equal(t, [2]float32{float32(rel[h][s][0]), float32(rel[h][s][1])}, g.Feature(s, h))
			assert.Equal(t, float32(1), g.Weight(s, h, h))
			for k := 0; k < 3; k++ {
				assert.Equal(t, g.Weight(s, h, k), g.Weight(s, k, h))
			}
		}
	}
	assert.InDelta(t, 0.2, g.Weight(0, 0, 1), 1e-7)
	// agents 0 and 2 coincide at step 0
	assert.Equal(t, float32(0), g.Weight(0, 0, 2))
	assert.Equal(t, float32(0), g.Weight(1, 0, 1))
	assert.InDelta(t, 1/math.Sqrt(5), g.Weight(1, 0, 2), 1e-7)
}

func TestBuild_NormalizedTwoNodes(t *testing.T) {
	rel := [][][2]float64{{{0, 0}}, {{3, 4}}}
	g, err := Build(rel, true)
	require.NoError(t, err)
	// degrees are 1.2: L = [[.2,-.2],[-.2,.2]] / 1.2
	assert.InDelta(t, 1.0/6, g.Weight(0, 0, 0), 1e-6)
	assert.InDelta(t, -1.0/6, g.Weight(0, 0, 1), 1e-6)
	assert.InDelta(t, -1.0/6, g.Weight(0, 1, 0), 1e-6)
	assert.InDelta(t, 1.0/6, g.Weight(0, 1, 1), 1e-6)
}

func TestBuild_NormalizedMatchesLaplacianOfRaw(t *testing.T) {
	rel := [][][2]float64{
		{{0, 0}, {0.1, 0.2}},
		{{0.3, 0}, {0.1, 0.2}},
		{{0, 0.5}, {-0.2, 0.1}},
	}
	raw, err := Build(rel, false)
	require.NoError(t, err)
	norm, err := Build(rel, true)
	require.NoError(t, err)
	assert.Equal(t, raw.V.Data, norm.V.Data)

	for s := 0; s < raw.Steps(); s++ {
		want := NormalizedLaplacian(raw.Step(s))
		got := norm.Step(s)
		assert.True(t, mat.EqualApprox(want, got, 1e-5), "step %d:\n%v\n%v", s, mat.Formatted(want), mat.Formatted(got))
	}
}

func TestNormalizedLaplacian_IsolatedNode(t *testing.T) {
	a := mat.NewDense(3, 3, []float64{
		0, 0, 0,
		0, 1, 0.5,
		0, 0.5, 1,
	})
	l := NormalizedLaplacian(a)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			v := l.At(i, j)
			assert.False(t, math.IsNaN(v) || math.IsInf(v, 0), "entry (%d,%d) = %v", i, j, v)
			if i == 0 || j == 0 {
				assert.Equal(t, 0.0, v)
			}
		}
	}
	assert.InDelta(t, 1.0/3, l.At(1, 1), 1e-12)
	assert.InDelta(t, -1.0/3, l.At(1, 2), 1e-12)
}

func TestBuild_SelfLoopsOnly(t *testing.T) {
	rel := [][][2]float64{{{1, 1}}, {{1, 1}}}
	g, err := Build(rel, true)
	require.NoError(t, err)
	for _, v := range g.A.Data {
		assert.Equal(t, float32(0), v)
	}
}

func TestBuild_Errors(t *testing.T) {
	_, err := Build([][][2]float64{{{0, 0}, {1, 1}}, {{0, 0}}}, false)
	assert.Error(t, err)

	g, err := Build(nil, true)
	require.NoError(t, err)
	assert.Empty(t, g.A.Data)
}

func TestTensorAt(t *testing.T) {
	tt := NewTensor(2, 3)
	tt.Data[4] = 7
	assert.Equal(t, float32(7), tt.At(1, 1))
}
