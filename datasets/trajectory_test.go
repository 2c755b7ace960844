package datasets

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Noofbiz/trajgraph/graph"
	"github.com/Noofbiz/trajgraph/graphcache"
)

// writeScene writes a tab-delimited log of numFrames frames. Agent positions
// are produced by pos(agent, step); frame ids step by 10 as in the public
// pedestrian datasets.
func writeScene(t *testing.T, path string, numFrames int, agents []int, pos func(agent, step int) (float64, float64)) {
	t.Helper()
	var b strings.Builder
	for step := 0; step < numFrames; step++ {
		for _, a := range agents {
			x, y := pos(a, step)
			fmt.Fprintf(&b, "%d\t%d\t%.4f\t%.4f\n", step*10, a, x, y)
		}
	}
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0644))
}

// corridor places agents 1, 2 and 4 walking in +x on y = 0, 1 and 0.1, and
// agent 3 walking in +y at x = 5. Agents 1 and 4 are always 0.1 apart.
func corridor(agent, step int) (float64, float64) {
	s := float64(step) * 0.1
	switch agent {
	case 1:
		return s, 0
	case 2:
		return s, 1
	case 3:
		return 5, s
	default:
		return s, 0.1
	}
}

func quietLogger() *log.Logger { return log.New(io.Discard, "", 0) }

func testConfig(dir string) Config {
	cfg := DefaultConfig(dir)
	cfg.Logger = quietLogger()
	cfg.Workers = 2
	cfg.ProgressInterval = time.Hour
	return cfg
}

func newCorridorDir(t *testing.T) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "train")
	require.NoError(t, os.MkdirAll(dir, 0755))
	writeScene(t, filepath.Join(dir, "corridor.txt"), 25, []int{1, 2, 3, 4}, corridor)
	return dir
}

func TestNewTrajectoryDataset_Windows(t *testing.T) {
	dir := newCorridorDir(t)
	cfg := testConfig(dir)
	cfg.NoCache = true

	ds, err := NewTrajectoryDataset(cfg)
	require.NoError(t, err)

	// 25 frames, seq_len 20: starts 0..6, the last one is too short
	assert.Equal(t, 6, ds.Len())
	assert.Equal(t, 24, ds.NumAgents())
	assert.Equal(t, 4, ds.MaxPedsInFrame())
	for i, se := range ds.SeqStartEnd() {
		assert.Equal(t, 4*i, se.Start, "window %d", i)
		assert.Equal(t, 4*i+4, se.End, "window %d", i)
	}
	assert.True(t, ds.Training(), "training context from directory name")
	assert.NotEmpty(t, ds.BuildID())
}

func TestWindow_Record(t *testing.T) {
	cfg := testConfig(newCorridorDir(t))
	cfg.NoCache = true
	ds, err := NewTrajectoryDataset(cfg)
	require.NoError(t, err)

	r, err := ds.Window(2)
	require.NoError(t, err)
	require.Equal(t, 4, r.NumAgents)
	require.Len(t, r.ObsTraj, 4*2*8)
	require.Len(t, r.PredTraj, 4*2*12)
	require.Len(t, r.LossMask, 4*20)

	// agent 1 starts at frame index 2: x = 0.2 + 0.1*step, y = 0
	assert.InDelta(t, 0.5, r.ObsTraj[3], 1e-6, "obs x of agent 1 at step 3")
	assert.Zero(t, r.ObsTraj[8+3], "obs y of agent 1 at step 3")
	// agent 3 moves in +y only; its y channel starts at offset 2*2*12 + 12
	assert.InDelta(t, 1.0, r.PredTraj[2*2*12+12], 1e-6, "pred y of agent 3 at step 0")
	assert.Zero(t, r.ObsRel[0], "first relative step")
	assert.Zero(t, r.ObsRel[8], "first relative step")
	assert.InDelta(t, 0.1, r.PredRel[0], 1e-6, "first predicted displacement")

	for a := 0; a < r.NumAgents; a++ {
		var sum float32
		for _, m := range r.LossMask[a*20 : (a+1)*20] {
			sum += m
		}
		assert.Equal(t, float32(20), sum, "agent %d loss mask", a)
		assert.Zero(t, r.NonLinear[a], "agent %d walks a straight line", a)
	}

	want := []bool{false, true, true, false}
	if diff := cmp.Diff(want, r.Safety); diff != "" {
		t.Fatalf("safety mismatch (-want +got):\n%s", diff)
	}

	assert.Equal(t, []int{8, 4, 2}, r.VObs.Shape)
	assert.Equal(t, []int{8, 4, 4}, r.AObs.Shape)
	assert.Equal(t, []int{12, 4, 4}, r.APred.Shape)

	_, err = ds.Window(ds.Len())
	require.ErrorIs(t, err, ErrIndexOutOfRange)
}

func TestWindow_NoSafetyOutsideTraining(t *testing.T) {
	cfg := testConfig(newCorridorDir(t))
	cfg.NoCache = true
	cfg.Training = Bool(false)
	ds, err := NewTrajectoryDataset(cfg)
	require.NoError(t, err)

	r, err := ds.Window(0)
	require.NoError(t, err)
	assert.Nil(t, r.Safety, "no safety labels outside training")

	safe, err := ds.Safety(0)
	require.NoError(t, err)
	assert.Len(t, safe, 4)

	_, labels := r.Tensors()
	assert.Len(t, labels, 4)
}

func TestNewTrajectoryDataset_GraphCache(t *testing.T) {
	dir := newCorridorDir(t)
	statusDir := t.TempDir()
	store := graphcache.NewMemStore()

	cfg := testConfig(dir)
	cfg.Cache = store
	cfg.StatusDir = statusDir

	first, err := NewTrajectoryDataset(cfg)
	require.NoError(t, err)
	require.Equal(t, 1, store.Saves(), "graphs saved once")
	status, err := os.ReadFile(filepath.Join(statusDir, StatusFile))
	require.NoError(t, err)
	assert.Equal(t, "Processing Data .....", string(status))

	second, err := NewTrajectoryDataset(cfg)
	require.NoError(t, err)
	require.Equal(t, 1, store.Saves(), "cached graphs reused")
	status, _ = os.ReadFile(filepath.Join(statusDir, StatusFile))
	assert.Equal(t, fmt.Sprintf("Loaded pre-processed graph data at %s.", graphcache.PathKey(dir)), string(status))
	assert.Equal(t, first.BuildID(), second.BuildID(), "loaded dataset keeps build id")

	for i := 0; i < first.Len(); i++ {
		a, _ := first.Window(i)
		b, _ := second.Window(i)
		if diff := cmp.Diff(a, b, cmpopts.EquateEmpty()); diff != "" {
			t.Fatalf("window %d differs after cache load (-built +loaded):\n%s", i, diff)
		}
	}

	cfg.Force = true
	_, err = NewTrajectoryDataset(cfg)
	require.NoError(t, err)
	assert.Equal(t, 2, store.Saves(), "forced rebuild saves")
}

func TestNewTrajectoryDataset_RebuildsBadCache(t *testing.T) {
	dir := newCorridorDir(t)
	store := graphcache.NewMemStore()
	store.Put(graphcache.PathKey(dir), []byte("truncated"))

	cfg := testConfig(dir)
	cfg.Cache = store
	_, err := NewTrajectoryDataset(cfg)
	require.NoError(t, err)
	require.Equal(t, 1, store.Saves(), "corrupt cache rebuilt")

	// cached graphs are normalized; a raw build must not reuse them
	cfg.NormLap = false
	ds, err := NewTrajectoryDataset(cfg)
	require.NoError(t, err)
	require.Equal(t, 2, store.Saves(), "parameter change rebuilds")
	r, err := ds.Window(0)
	require.NoError(t, err)
	assert.Equal(t, float32(1), r.AObs.At(0, 0, 0), "self-loop weight without normalization")
}

func TestNewTrajectoryDataset_RebuildsTruncatedTensors(t *testing.T) {
	dir := newCorridorDir(t)
	store := graphcache.NewMemStore()
	cfg := testConfig(dir)
	cfg.Cache = store
	_, err := NewTrajectoryDataset(cfg)
	require.NoError(t, err)

	key := graphcache.PathKey(dir)
	a, err := store.Load(key)
	require.NoError(t, err)
	a.VObs[0] = &graph.Tensor{Shape: a.VObs[0].Shape, Data: []float32{1}}
	a.AObs[1] = graph.NewTensor(cfg.ObsLen, 3, 3)
	require.NoError(t, store.Save(key, a))

	ds, err := NewTrajectoryDataset(cfg)
	require.NoError(t, err)
	require.Equal(t, 3, store.Saves(), "damaged cache rebuilt")

	for i := 0; i < ds.Len(); i++ {
		r, err := ds.Window(i)
		require.NoError(t, err)
		n := r.NumAgents
		assert.Equal(t, []int{cfg.ObsLen, n, 2}, r.VObs.Shape, "window %d", i)
		assert.Len(t, r.VObs.Data, cfg.ObsLen*n*2, "window %d", i)
		assert.Equal(t, []int{cfg.ObsLen, n, n}, r.AObs.Shape, "window %d", i)
		require.NotPanics(t, func() { r.Tensors() }, "window %d", i)
	}
}

func TestNewTrajectoryDataset_FileCacheNextToLogs(t *testing.T) {
	dir := newCorridorDir(t)
	cfg := testConfig(dir)

	_, err := NewTrajectoryDataset(cfg)
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, graphcache.FileName))
	require.NoError(t, err, "cache artifact in data dir")

	// the artifact must not be read back as a scene log
	ds, err := NewTrajectoryDataset(cfg)
	require.NoError(t, err)
	assert.Equal(t, 6, ds.Len())
}

func TestNewTrajectoryDataset_Errors(t *testing.T) {
	dir := t.TempDir()
	writeScene(t, filepath.Join(dir, "lonely.txt"), 25, []int{1}, corridor)
	cfg := testConfig(dir)
	cfg.NoCache = true
	_, err := NewTrajectoryDataset(cfg)
	require.ErrorIs(t, err, ErrNoWindows)

	_, err = NewTrajectoryDataset(Config{})
	require.Error(t, err, "invalid config")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.txt"), []byte("1\t2\tx\t4\n"), 0644))
	_, err = NewTrajectoryDataset(cfg)
	require.Error(t, err, "malformed log fails the build")
}

func TestNewTrajectoryDataset_SingleAgentWindowsAreSafe(t *testing.T) {
	dir := t.TempDir()
	writeScene(t, filepath.Join(dir, "lonely.txt"), 20, []int{1}, corridor)
	cfg := testConfig(dir)
	cfg.NoCache = true
	cfg.MinPed = 0
	cfg.Training = Bool(true)
	ds, err := NewTrajectoryDataset(cfg)
	require.NoError(t, err)

	r, err := ds.Window(0)
	require.NoError(t, err)
	assert.Equal(t, []bool{true}, r.Safety)
}

func TestYield(t *testing.T) {
	cfg := testConfig(newCorridorDir(t))
	cfg.NoCache = true
	ds, err := NewTrajectoryDataset(cfg)
	require.NoError(t, err)

	for epoch := 0; epoch < 2; epoch++ {
		n := 0
		for {
			_, inputs, labels, err := ds.Yield()
			if err == io.EOF {
				break
			}
			require.NoError(t, err)
			require.Len(t, inputs, 6)
			require.Len(t, labels, 5)
			assert.Equal(t, []int{4, 2, 8}, inputs[0].Shape().Dimensions, "obs_traj dims")
			assert.Equal(t, []int{8, 4, 4}, inputs[3].Shape().Dimensions, "a_obs dims")
			n++
		}
		assert.Equal(t, ds.Len(), n, "epoch %d", epoch)
		ds.Reset()
	}
}

func TestParallelFor_ReportsError(t *testing.T) {
	boom := errors.New("boom")
	seen := make([]bool, 50)
	err := parallelFor(len(seen), 4, time.Hour, quietLogger(), "Test", func(i int) error {
		if i == 17 {
			return boom
		}
		seen[i] = true
		return nil
	})
	require.ErrorIs(t, err, boom)

	err = parallelFor(len(seen), 0, time.Hour, quietLogger(), "Test", func(i int) error {
		seen[i] = true
		return nil
	})
	require.NoError(t, err)
	for i, ok := range seen {
		assert.True(t, ok, "index %d visited", i)
	}
}
