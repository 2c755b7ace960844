package datasets

import (
	"fmt"
	"io"

	"github.com/gomlx/gomlx/pkg/core/tensors"

	"github.com/Noofbiz/trajgraph/graph"
)

// Record is everything exposed for one window. Trajectory buffers are
// NumAgents x 2 x ObsLen (or PredLen), LossMask is NumAgents x
// (ObsLen+PredLen) and NonLinear is NumAgents. Safety is nil outside a
// training context. Buffers alias the dataset and must not be modified.
type Record struct {
	NumAgents int
	ObsLen    int
	PredLen   int

	ObsTraj   []float32
	PredTraj  []float32
	ObsRel    []float32
	PredRel   []float32
	NonLinear []float32
	LossMask  []float32

	VObs  *graph.Tensor
	AObs  *graph.Tensor
	VPred *graph.Tensor
	APred *graph.Tensor

	Safety []bool
}

// Window returns the record of window i.
func (d *TrajectoryDataset) Window(i int) (*Record, error) {
	if i < 0 || i >= d.Len() {
		return nil, fmt.Errorf("%w: %d not in [0, %d)", ErrIndexOutOfRange, i, d.Len())
	}
	se := d.seqStartEnd[i]
	obsLen, predLen := d.cfg.ObsLen, d.cfg.PredLen
	seqLen := obsLen + predLen
	r := &Record{
		NumAgents: se.End - se.Start,
		ObsLen:    obsLen,
		PredLen:   predLen,
		ObsTraj:   d.obsTraj[se.Start*2*obsLen : se.End*2*obsLen],
		PredTraj:  d.predTraj[se.Start*2*predLen : se.End*2*predLen],
		ObsRel:    d.obsRel[se.Start*2*obsLen : se.End*2*obsLen],
		PredRel:   d.predRel[se.Start*2*predLen : se.End*2*predLen],
		NonLinear: d.nonLinear[se.Start:se.End],
		LossMask:  d.lossMask[se.Start*seqLen : se.End*seqLen],
		VObs:      d.vObs[i],
		AObs:      d.aObs[i],
		VPred:     d.vPred[i],
		APred:     d.aPred[i],
	}
	if d.training {
		r.Safety = d.safety[i]
	}
	return r, nil
}

// Tensors converts the record into gomlx tensors. Inputs are obs_traj,
// obs_rel, v_obs, a_obs, loss_mask and non_linear; labels are pred_traj,
// pred_rel, v_pred, a_pred and, in a training context, safety.
func (r *Record) Tensors() (inputs, labels []*tensors.Tensor) {
	n := r.NumAgents
	inputs = []*tensors.Tensor{
		tensors.FromFlatDataAndDimensions(r.ObsTraj, n, 2, r.ObsLen),
		tensors.FromFlatDataAndDimensions(r.ObsRel, n, 2, r.ObsLen),
		fromTensor(r.VObs),
		fromTensor(r.AObs),
		tensors.FromFlatDataAndDimensions(r.LossMask, n, r.ObsLen+r.PredLen),
		tensors.FromFlatDataAndDimensions(r.NonLinear, n),
	}
	labels = []*tensors.Tensor{
		tensors.FromFlatDataAndDimensions(r.PredTraj, n, 2, r.PredLen),
		tensors.FromFlatDataAndDimensions(r.PredRel, n, 2, r.PredLen),
		fromTensor(r.VPred),
		fromTensor(r.APred),
	}
	if r.Safety != nil {
		labels = append(labels, tensors.FromFlatDataAndDimensions(r.Safety, n))
	}
	return inputs, labels
}

func fromTensor(t *graph.Tensor) *tensors.Tensor {
	return tensors.FromFlatDataAndDimensions(t.Data, t.Shape...)
}

// Name returns the name of the dataset
func (d *TrajectoryDataset) Name() string {
	return "TrajectoryDataset"
}

// Yield returns the next window as gomlx tensors, or io.EOF after the last
// window of the epoch.
func (d *TrajectoryDataset) Yield() (spec any, inputs []*tensors.Tensor, labels []*tensors.Tensor, err error) {
	if d.next >= d.Len() {
		return nil, nil, nil, io.EOF
	}
	r, err := d.Window(d.next)
	if err != nil {
		return nil, nil, nil, err
	}
	d.next++
	inputs, labels = r.Tensors()
	return nil, inputs, labels, nil
}

// Reset starts a new epoch.
func (d *TrajectoryDataset) Reset() {
	d.next = 0
}
