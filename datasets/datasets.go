// Package datasets prepares multi-agent trajectory datasets for graph-based
// trajectory forecasting.
//
// A TrajectoryDataset reads one log per scene, slices each scene into
// observation/prediction windows, and precomputes for every window:
//   - absolute and relative positions plus loss masks per agent
//   - a linear / non-linear label for every agent's future
//   - per-step node features and (optionally Laplacian-normalized)
//     inverse-distance adjacency for the observed and predicted spans
//   - per-agent safety labels from densified ground-truth futures
//
// The graphs are the slow part and are cached through a graphcache.Store.
//
// Records are returned as flat float32 buffers with shape metadata and can
// be converted to gomlx tensors with Record.Tensors. The dataset also yields
// one window per call through Yield so a gomlx training loop can consume it.
package datasets

import "github.com/gomlx/gomlx/pkg/core/tensors"

// Dataset is implemented by TrajectoryDataset.
type Dataset interface {
	Len() int
	Window(i int) (*Record, error)

	// To implement gomlx's train.Dataset interface
	Name() string
	Yield() (any, []*tensors.Tensor, []*tensors.Tensor, error)
	Reset()
}

var _ Dataset = (*TrajectoryDataset)(nil)
