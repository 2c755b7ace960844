package datasets

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/Noofbiz/trajgraph/collision"
	"github.com/Noofbiz/trajgraph/graph"
	"github.com/Noofbiz/trajgraph/graphcache"
	"github.com/Noofbiz/trajgraph/scene"
	"github.com/Noofbiz/trajgraph/trajclass"
	"github.com/Noofbiz/trajgraph/window"
)

var (
	// ErrNoWindows is returned when no scene yields a valid window.
	ErrNoWindows = errors.New("no valid windows in dataset")
	// ErrIndexOutOfRange is returned for a window index outside [0, Len()).
	ErrIndexOutOfRange = errors.New("window index out of range")
)

// StatusFile is the name of the status line file written under StatusDir.
const StatusFile = "-info.txt"

// TrajectoryDataset holds every valid window of a set of scenes. Per-agent
// data is flattened across windows; SeqStartEnd maps window i to its rows.
// Window data is never mutated after NewTrajectoryDataset returns; only the
// Yield cursor moves.
//
// Per-agent layouts (row = agent):
//   - obs/pred absolute and relative: rows x 2 x ObsLen (or PredLen)
//   - loss mask: rows x (ObsLen+PredLen)
//   - non-linear label: rows
type TrajectoryDataset struct {
	cfg      Config
	training bool

	seqStartEnd    []window.StartEnd
	maxPedsInFrame int
	numAgents      int

	obsTraj   []float32
	predTraj  []float32
	obsRel    []float32
	predRel   []float32
	lossMask  []float32
	nonLinear []float32

	vObs  []*graph.Tensor
	aObs  []*graph.Tensor
	vPred []*graph.Tensor
	aPred []*graph.Tensor

	safety [][]bool

	cacheKey graphcache.Key
	buildID  string
	next     int
}

// NewTrajectoryDataset windows every scene, labels non-linear futures,
// builds or loads the window graphs and computes safety labels. It fails
// fast; no partial dataset is returned on error.
func NewTrajectoryDataset(cfg Config) (*TrajectoryDataset, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	d := &TrajectoryDataset{cfg: cfg, training: cfg.IsTraining()}

	scenes := cfg.Scenes
	if scenes == nil {
		var err error
		scenes, err = scene.LoadDir(cfg.DataDir, cfg.Delim, graphcache.FileName, StatusFile)
		if err != nil {
			return nil, err
		}
	}
	if err := d.slice(scenes); err != nil {
		return nil, err
	}
	if err := d.prepareGraphs(scenes); err != nil {
		return nil, err
	}
	if err := d.prepareSafety(); err != nil {
		return nil, err
	}
	return d, nil
}

// slice runs the windowing engine and the trajectory classifier over every
// scene and fills the flattened tensors.
func (d *TrajectoryDataset) slice(scenes []*scene.Scene) error {
	p := d.cfg.Params()
	var counts []int
	for _, s := range scenes {
		res, err := window.Slide(s, p)
		if err != nil {
			return fmt.Errorf("scene %s: %w", s.Name, err)
		}
		d.maxPedsInFrame = max(d.maxPedsInFrame, res.MaxSeen)
		for _, w := range res.Windows {
			counts = append(counts, w.NumAgents())
			for _, t := range w.Tracks {
				d.appendTrack(t)
			}
		}
	}
	if len(counts) == 0 {
		return ErrNoWindows
	}
	d.seqStartEnd = window.Index(counts)
	d.numAgents = d.seqStartEnd[len(d.seqStartEnd)-1].End
	return nil
}

func (d *TrajectoryDataset) appendTrack(t window.Track) {
	obsLen, predLen := d.cfg.ObsLen, d.cfg.PredLen
	d.obsTraj = appendChannels(d.obsTraj, t.Abs[:obsLen])
	d.predTraj = appendChannels(d.predTraj, t.Abs[obsLen:])
	d.obsRel = appendChannels(d.obsRel, t.Rel[:obsLen])
	d.predRel = appendChannels(d.predRel, t.Rel[obsLen:])
	for _, m := range t.Mask {
		d.lossMask = append(d.lossMask, float32(m))
	}
	label := trajclass.Classify(trajclass.Tail(t.Abs, predLen), d.cfg.Threshold)
	d.nonLinear = append(d.nonLinear, float32(label))
}

// appendChannels appends pts in 2 x len(pts) layout: all x, then all y.
func appendChannels(dst []float32, pts [][2]float64) []float32 {
	for c := 0; c < 2; c++ {
		for _, p := range pts {
			dst = append(dst, float32(p[c]))
		}
	}
	return dst
}

// agentSteps reads rows [start, end) of a 2 x steps flattened tensor back
// into [agent][step] points.
func agentSteps(buf []float32, start, end, steps int) [][][2]float64 {
	out := make([][][2]float64, end-start)
	for a := range out {
		row := buf[(start+a)*2*steps : (start+a+1)*2*steps]
		pts := make([][2]float64, steps)
		for t := range pts {
			pts[t] = [2]float64{float64(row[t]), float64(row[steps+t])}
		}
		out[a] = pts
	}
	return out
}

func (d *TrajectoryDataset) meta() graphcache.Meta {
	return graphcache.Meta{
		ObsLen:     d.cfg.ObsLen,
		PredLen:    d.cfg.PredLen,
		Skip:       d.cfg.Skip,
		MinPed:     d.cfg.MinPed,
		NormLap:    d.cfg.NormLap,
		NumWindows: len(d.seqStartEnd),
		NumAgents:  d.numAgents,
	}
}

func (d *TrajectoryDataset) store(scenes []*scene.Scene) (graphcache.Store, graphcache.Key, error) {
	if d.cfg.NoCache {
		return nil, "", nil
	}
	st := d.cfg.Cache
	if st == nil && d.cfg.DataDir != "" {
		st = graphcache.FileStore{}
	}
	if st == nil {
		return nil, "", nil
	}
	key := d.cfg.CacheKey
	switch {
	case key != "":
	case d.cfg.DataDir != "":
		key = graphcache.PathKey(d.cfg.DataDir)
	default:
		k, err := graphcache.ContentKey(struct {
			Meta   graphcache.Meta
			Scenes []*scene.Scene
		}{d.meta(), scenes})
		if err != nil {
			return nil, "", err
		}
		key = k
	}
	return st, key, nil
}

// prepareGraphs loads the window graphs from the cache when a matching
// artifact exists and builds (then saves) them otherwise.
func (d *TrajectoryDataset) prepareGraphs(scenes []*scene.Scene) error {
	logger := d.cfg.logger()
	st, key, err := d.store(scenes)
	if err != nil {
		return err
	}
	d.cacheKey = key

	if st != nil && !d.cfg.Force {
		a, err := st.Load(key)
		switch {
		case err == nil:
			if verr := a.Validate(d.meta(), d.agentCounts()); verr != nil {
				logger.Printf("[GraphCache] ignoring %s: %v", key, verr)
				break
			}
			d.vObs, d.aObs, d.vPred, d.aPred = a.VObs, a.AObs, a.VPred, a.APred
			d.buildID = a.BuildID
			d.writeStatus(fmt.Sprintf("Loaded pre-processed graph data at %s.", key))
			return nil
		case errors.Is(err, graphcache.ErrNotFound):
		default:
			logger.Printf("[GraphCache] rebuilding %s: %v", key, err)
		}
	}

	d.writeStatus("Processing Data .....")
	if err := d.buildGraphs(); err != nil {
		return err
	}
	d.buildID = uuid.NewString()
	if st == nil {
		return nil
	}
	a := &graphcache.Artifact{
		Version:   graphcache.FormatVersion,
		BuildID:   d.buildID,
		CreatedAt: time.Now().Unix(),
		Meta:      d.meta(),
		VObs:      d.vObs,
		AObs:      d.aObs,
		VPred:     d.vPred,
		APred:     d.aPred,
	}
	if err := st.Save(key, a); err != nil {
		return fmt.Errorf("save graph cache: %w", err)
	}
	logger.Printf("[GraphCache] saved %d windows to %s", len(d.seqStartEnd), key)
	return nil
}

// agentCounts returns the number of agents in each window.
func (d *TrajectoryDataset) agentCounts() []int {
	out := make([]int, len(d.seqStartEnd))
	for i, se := range d.seqStartEnd {
		out[i] = se.End - se.Start
	}
	return out
}

func (d *TrajectoryDataset) buildGraphs() error {
	n := len(d.seqStartEnd)
	d.vObs = make([]*graph.Tensor, n)
	d.aObs = make([]*graph.Tensor, n)
	d.vPred = make([]*graph.Tensor, n)
	d.aPred = make([]*graph.Tensor, n)
	return parallelFor(n, d.cfg.Workers, d.cfg.ProgressInterval, d.cfg.logger(), "Graphs", func(i int) error {
		se := d.seqStartEnd[i]
		obs, err := graph.Build(agentSteps(d.obsRel, se.Start, se.End, d.cfg.ObsLen), d.cfg.NormLap)
		if err != nil {
			return fmt.Errorf("observation graph: %w", err)
		}
		pred, err := graph.Build(agentSteps(d.predRel, se.Start, se.End, d.cfg.PredLen), d.cfg.NormLap)
		if err != nil {
			return fmt.Errorf("prediction graph: %w", err)
		}
		d.vObs[i], d.aObs[i] = obs.V, obs.A
		d.vPred[i], d.aPred[i] = pred.V, pred.A
		return nil
	})
}

// prepareSafety labels every agent of every window. Windows with a single
// agent have nobody to collide with and are labeled safe.
func (d *TrajectoryDataset) prepareSafety() error {
	labeler := d.cfg.Labeler()
	d.safety = make([][]bool, len(d.seqStartEnd))
	return parallelFor(len(d.seqStartEnd), d.cfg.Workers, d.cfg.ProgressInterval, d.cfg.logger(), "Safety", func(i int) error {
		se := d.seqStartEnd[i]
		if se.End-se.Start < 2 {
			safe := make([]bool, se.End-se.Start)
			for j := range safe {
				safe[j] = true
			}
			d.safety[i] = safe
			return nil
		}
		safe, err := labeler.Label(agentSteps(d.predTraj, se.Start, se.End, d.cfg.PredLen))
		if err != nil {
			return err
		}
		d.safety[i] = safe
		return nil
	})
}

func (d *TrajectoryDataset) writeStatus(msg string) {
	if d.cfg.StatusDir == "" {
		return
	}
	p := filepath.Join(d.cfg.StatusDir, StatusFile)
	if err := os.WriteFile(p, []byte(msg), 0644); err != nil {
		d.cfg.logger().Printf("warning: write status %s: %v", p, err)
	}
}

// Len returns the number of windows.
func (d *TrajectoryDataset) Len() int { return len(d.seqStartEnd) }

// NumAgents returns the total number of agent rows across all windows.
func (d *TrajectoryDataset) NumAgents() int { return d.numAgents }

// MaxPedsInFrame returns the most distinct agents seen in any window span.
func (d *TrajectoryDataset) MaxPedsInFrame() int { return d.maxPedsInFrame }

// SeqStartEnd returns a copy of the window to row index.
func (d *TrajectoryDataset) SeqStartEnd() []window.StartEnd {
	return append([]window.StartEnd(nil), d.seqStartEnd...)
}

// Training reports whether records carry safety labels.
func (d *TrajectoryDataset) Training() bool { return d.training }

// CacheKey returns the key the graphs were loaded from or saved to.
func (d *TrajectoryDataset) CacheKey() graphcache.Key { return d.cacheKey }

// BuildID identifies the graph build this dataset uses.
func (d *TrajectoryDataset) BuildID() string { return d.buildID }

// Safety returns the safety labels of window i whether or not the dataset
// is in a training context.
func (d *TrajectoryDataset) Safety(i int) ([]bool, error) {
	if i < 0 || i >= d.Len() {
		return nil, fmt.Errorf("%w: %d not in [0, %d)", ErrIndexOutOfRange, i, d.Len())
	}
	return d.safety[i], nil
}

// Labeler exposes the collision labeler used for the safety labels.
func (d *TrajectoryDataset) Labeler() collision.Labeler { return d.cfg.Labeler() }
