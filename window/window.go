// Package window slices a scene into fixed-length observation/prediction
// windows and assembles the per-agent tracks for each of them.
package window

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/Noofbiz/trajgraph/scene"
)

// ErrInvalidParams is returned by Params.Validate.
var ErrInvalidParams = errors.New("invalid window parameters")

// Params controls how scenes are sliced.
type Params struct {
	ObsLen  int // observed steps
	PredLen int // predicted steps
	Skip    int // stride between window starts, in frames
	MinPed  int // a window needs strictly more than MinPed complete agents
}

// SeqLen is the total number of frames in a window.
func (p Params) SeqLen() int { return p.ObsLen + p.PredLen }

// Validate reports parameter combinations that cannot produce windows.
func (p Params) Validate() error {
	switch {
	case p.ObsLen < 1:
		return fmt.Errorf("%w: obs_len must be >= 1, got %d", ErrInvalidParams, p.ObsLen)
	case p.PredLen < 1:
		return fmt.Errorf("%w: pred_len must be >= 1, got %d", ErrInvalidParams, p.PredLen)
	case p.Skip < 1:
		return fmt.Errorf("%w: skip must be >= 1, got %d", ErrInvalidParams, p.Skip)
	case p.MinPed < 0:
		return fmt.Errorf("%w: min_ped must be >= 0, got %d", ErrInvalidParams, p.MinPed)
	}
	return nil
}

// Track is one agent inside one window. Abs, Rel and Mask all have SeqLen
// entries; steps outside [First, Last) stay zero and are masked out.
type Track struct {
	AgentID float64
	First   int // first frame offset inside the window
	Last    int // one past the last frame offset
	Abs     [][2]float64
	Rel     [][2]float64
	Mask    []float64
}

// Window is a contiguous run of SeqLen frames with the agents that are
// present for all of it.
type Window struct {
	Scene string
	// Start is the index of the first frame in the scene's frame list.
	Start int
	// Seen is the number of distinct agents anywhere in the span, before
	// incomplete agents are dropped.
	Seen   int
	Tracks []Track
}

// NumAgents returns the number of retained agents.
func (w *Window) NumAgents() int { return len(w.Tracks) }

// Positions returns the absolute positions of every agent for steps
// [from, to), shaped agents x steps.
func (w *Window) Positions(from, to int) [][][2]float64 {
	out := make([][][2]float64, len(w.Tracks))
	for i, t := range w.Tracks {
		out[i] = t.Abs[from:to]
	}
	return out
}

// Displacements is Positions for the relative displacement sequences.
func (w *Window) Displacements(from, to int) [][][2]float64 {
	out := make([][][2]float64, len(w.Tracks))
	for i, t := range w.Tracks {
		out[i] = t.Rel[from:to]
	}
	return out
}

// NumWindows returns how many window starts are tried for a scene with
// numFrames frames. The count may be zero or negative for short scenes.
func NumWindows(numFrames int, p Params) int {
	return int(math.Ceil(float64(numFrames-p.SeqLen()+1) / float64(p.Skip)))
}

// Starts lists the frame indices at which windows begin. The bound is
// inclusive of NumWindows*Skip, so one extra tail start is tried; it only
// yields a window when enough complete agents fit in the frames left.
func Starts(numFrames int, p Params) []int {
	limit := NumWindows(numFrames, p)*p.Skip + 1
	var out []int
	for start := 0; start < limit; start += p.Skip {
		if start >= numFrames {
			break
		}
		out = append(out, start)
	}
	return out
}

// Result is the outcome of sliding over one scene.
type Result struct {
	Windows []Window
	// MaxSeen is the largest Seen over every tried window, kept or not.
	MaxSeen int
}

// Slide cuts s into windows. Windows with MinPed or fewer complete agents are
// dropped silently, as are agents with gaps inside a window.
func Slide(s *scene.Scene, p Params) (Result, error) {
	if err := p.Validate(); err != nil {
		return Result{}, err
	}
	var res Result
	for _, start := range Starts(s.NumFrames(), p) {
		w := build(s, start, p.SeqLen())
		res.MaxSeen = max(res.MaxSeen, w.Seen)
		if len(w.Tracks) > p.MinPed {
			res.Windows = append(res.Windows, w)
		}
	}
	return res, nil
}

// Build assembles the window starting at frame index start without applying
// the MinPed filter.
func Build(s *scene.Scene, start int, p Params) (Window, error) {
	if err := p.Validate(); err != nil {
		return Window{}, err
	}
	if start < 0 || start >= s.NumFrames() {
		return Window{}, fmt.Errorf("%w: start %d outside [0, %d)", ErrInvalidParams, start, s.NumFrames())
	}
	return build(s, start, p.SeqLen()), nil
}

type sample struct {
	offset int
	x, y   float64
}

func build(s *scene.Scene, start, seqLen int) Window {
	end := min(start+seqLen, s.NumFrames())
	w := Window{Scene: s.Name, Start: start}

	// samples per agent, in frame order
	byAgent := make(map[float64][]sample)
	for off, fr := range s.Frames[start:end] {
		for _, o := range fr.Obs {
			byAgent[o.AgentID] = append(byAgent[o.AgentID], sample{offset: off, x: round4(o.X), y: round4(o.Y)})
		}
	}
	ids := make([]float64, 0, len(byAgent))
	for id := range byAgent {
		ids = append(ids, id)
	}
	sort.Float64s(ids)
	w.Seen = len(ids)

	for _, id := range ids {
		samples := byAgent[id]
		first := samples[0].offset
		last := samples[len(samples)-1].offset + 1
		if last-first != seqLen || len(samples) != seqLen {
			continue
		}
		w.Tracks = append(w.Tracks, newTrack(id, first, last, samples, seqLen))
	}
	return w
}

func newTrack(id float64, first, last int, samples []sample, seqLen int) Track {
	t := Track{
		AgentID: id,
		First:   first,
		Last:    last,
		Abs:     make([][2]float64, seqLen),
		Rel:     make([][2]float64, seqLen),
		Mask:    make([]float64, seqLen),
	}
	for i, sm := range samples {
		step := first + i
		t.Abs[step] = [2]float64{sm.x, sm.y}
		if i > 0 {
			prev := samples[i-1]
			t.Rel[step] = [2]float64{sm.x - prev.x, sm.y - prev.y}
		}
		t.Mask[step] = 1
	}
	return t
}

// round4 rounds half to even at four decimals.
func round4(v float64) float64 {
	return math.RoundToEven(v*1e4) / 1e4
}

// StartEnd is a half-open [Start, End) range of rows in the flattened
// per-agent tensors that belong to one window.
type StartEnd struct {
	Start int
	End   int
}

// Index turns per-window agent counts into consecutive StartEnd ranges.
func Index(counts []int) []StartEnd {
	out := make([]StartEnd, len(counts))
	cum := 0
	for i, c := range counts {
		out[i] = StartEnd{Start: cum, End: cum + c}
		cum += c
	}
	return out
}
