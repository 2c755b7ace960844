// Package graph turns a window of relative displacements into per-step node
// features and inverse-distance adjacency matrices.
package graph

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Tensor is a dense row-major float32 tensor.
type Tensor struct {
	Shape []int
	Data  []float32
}

// NewTensor allocates a zeroed tensor of the given shape.
func NewTensor(shape ...int) *Tensor {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return &Tensor{Shape: append([]int(nil), shape...), Data: make([]float32, n)}
}

// At returns the element at idx, which must have one entry per dimension.
func (t *Tensor) At(idx ...int) float32 {
	off := 0
	for i, v := range idx {
		off = off*t.Shape[i] + v
	}
	return t.Data[off]
}

// Graph is the graph of one window span: V is steps x nodes x 2 node
// features and A is steps x nodes x nodes adjacency.
type Graph struct {
	V *Tensor
	A *Tensor
}

// Steps returns the number of time steps.
func (g *Graph) Steps() int { return g.V.Shape[0] }

// Nodes returns the number of agents.
func (g *Graph) Nodes() int { return g.V.Shape[1] }

// Feature returns the node feature of node h at step t.
func (g *Graph) Feature(t, h int) [2]float32 {
	return [2]float32{g.V.At(t, h, 0), g.V.At(t, h, 1)}
}

// Weight returns adjacency entry (h, k) at step t.
func (g *Graph) Weight(t, h, k int) float32 {
	return g.A.At(t, h, k)
}

// Step returns the adjacency matrix of step t as a dense matrix.
func (g *Graph) Step(t int) *mat.Dense {
	n := g.Nodes()
	data := make([]float64, n*n)
	for i, w := range g.A.Data[t*n*n : (t+1)*n*n] {
		data[i] = float64(w)
	}
	return mat.NewDense(n, n, data)
}

// Build computes the graph of a span. rel is indexed [agent][step]; every
// agent must have the same number of steps. Steps are independent of each
// other. An empty rel yields an empty graph.
func Build(rel [][][2]float64, normalize bool) (*Graph, error) {
	nodes := len(rel)
	steps := 0
	if nodes > 0 {
		steps = len(rel[0])
	}
	for h, r := range rel {
		if len(r) != steps {
			return nil, fmt.Errorf("agent %d has %d steps, want %d", h, len(r), steps)
		}
	}

	g := &Graph{V: NewTensor(steps, nodes, 2), A: NewTensor(steps, nodes, nodes)}
	for t := 0; t < steps; t++ {
		a := mat.NewDense(nodes, nodes, nil)
		for h := 0; h < nodes; h++ {
			vi := (t*nodes + h) * 2
			g.V.Data[vi] = float32(rel[h][t][0])
			g.V.Data[vi+1] = float32(rel[h][t][1])

			a.Set(h, h, 1)
			for k := h + 1; k < nodes; k++ {
				w := InverseDistance(rel[h][t], rel[k][t])
				a.Set(h, k, w)
				a.Set(k, h, w)
			}
		}
		if normalize {
			a = NormalizedLaplacian(a)
		}
		off := t * nodes * nodes
		for h := 0; h < nodes; h++ {
			for k := 0; k < nodes; k++ {
				g.A.Data[off+h*nodes+k] = float32(a.At(h, k))
			}
		}
	}
	return g, nil
}

// InverseDistance is 1/|p-q|, or 0 when the points coincide.
func InverseDistance(p, q [2]float64) float64 {
	d := math.Hypot(p[0]-q[0], p[1]-q[1])
	if d == 0 {
		return 0
	}
	return 1 / d
}

// NormalizedLaplacian returns D^-1/2 (D - A) D^-1/2 for the weighted graph a,
// self-loops included in the degree. Nodes of zero degree get a zero row and
// column.
func NormalizedLaplacian(a mat.Matrix) *mat.Dense {
	n, _ := a.Dims()

	deg := make([]float64, n)
	invSqrt := make([]float64, n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			deg[i] += a.At(i, j)
		}
		if deg[i] != 0 {
			invSqrt[i] = 1 / math.Sqrt(deg[i])
		}
	}

	var lap mat.Dense
	lap.Sub(mat.NewDiagDense(n, deg), a)

	d := mat.NewDiagDense(n, invSqrt)
	var left, out mat.Dense
	left.Mul(d, &lap)
	out.Mul(&left, d)
	return &out
}
