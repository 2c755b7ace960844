// Package collision labels each agent's ground-truth future as safe or
// unsafe by checking its separation from every other agent on temporally
// densified trajectories.
package collision

import (
	"errors"
	"fmt"
	"math"
)

const (
	// DefaultThreshold is the separation below which two agents collide.
	DefaultThreshold = 0.2
	// DefaultNumInterp is the number of points inserted between steps.
	DefaultNumInterp = 4
)

// ErrTooFewAgents is returned when a scene has fewer than two agents.
// Callers are expected to check NumAgents before labeling.
var ErrTooFewAgents = errors.New("collision labeling needs at least two agents")

// Exclusion decides how the primary agent is left out of its own comparison.
type Exclusion int

const (
	// ExcludeByIdentity skips the primary agent by index.
	ExcludeByIdentity Exclusion = iota
	// ExcludeByDistance skips every agent whose distance to the primary at
	// the first densified step is exactly zero. The primary always matches,
	// but so does a distinct agent that starts at the same point.
	ExcludeByDistance
)

func (e Exclusion) String() string {
	switch e {
	case ExcludeByIdentity:
		return "identity"
	case ExcludeByDistance:
		return "distance"
	}
	return fmt.Sprintf("Exclusion(%d)", int(e))
}

// ParseExclusion parses the String form of an Exclusion.
func ParseExclusion(s string) (Exclusion, error) {
	switch s {
	case "", "identity":
		return ExcludeByIdentity, nil
	case "distance":
		return ExcludeByDistance, nil
	}
	return 0, fmt.Errorf("unknown exclusion strategy %q", s)
}

// Labeler holds the labeling parameters. The zero value is not useful; use
// NewLabeler or set Threshold explicitly.
type Labeler struct {
	Threshold float64
	NumInterp int
	Exclusion Exclusion
}

// NewLabeler returns a Labeler with the default threshold and densification
// that excludes the primary by identity.
func NewLabeler() Labeler {
	return Labeler{Threshold: DefaultThreshold, NumInterp: DefaultNumInterp, Exclusion: ExcludeByIdentity}
}

// DenseLen is the length of a densified trajectory of the given length.
func DenseLen(steps, numInterp int) int {
	if steps == 0 {
		return 0
	}
	return (steps-1)*(numInterp+1) + 1
}

// Densify inserts numInterp evenly spaced points between every pair of
// consecutive points. Input points keep their order, and the first and
// last points are copied exactly.
func Densify(traj [][2]float64, numInterp int) [][2]float64 {
	if len(traj) == 0 {
		return nil
	}
	step := numInterp + 1
	dense := make([][2]float64, DenseLen(len(traj), numInterp))
	dense[0] = traj[0]
	for k := 0; k+1 < len(traj); k++ {
		a, b := traj[k], traj[k+1]
		for i := 0; i < step; i++ {
			r := float64(i+1) / float64(step)
			dense[k*step+i+1] = [2]float64{
				a[0]*(1-r) + b[0]*r,
				a[1]*(1-r) + b[1]*r,
			}
		}
	}
	return dense
}

// DensifyAll densifies every trajectory in trajs.
func DensifyAll(trajs [][][2]float64, numInterp int) [][][2]float64 {
	out := make([][][2]float64, len(trajs))
	for i, t := range trajs {
		out[i] = Densify(t, numInterp)
	}
	return out
}

// Distances returns the Euclidean distance between a and b at every index.
func Distances(a, b [][2]float64) []float64 {
	out := make([]float64, len(a))
	for i := range a {
		out[i] = math.Hypot(a[i][0]-b[i][0], a[i][1]-b[i][1])
	}
	return out
}

// MinSeparation returns, for every densified index, the smallest distance
// between the primary agent and the agents left after exclusion. The second
// result is false when exclusion leaves no agent to compare against.
func (l Labeler) MinSeparation(primary int, dense [][][2]float64) ([]float64, bool) {
	ego := dense[primary]
	var minDist []float64
	for j, other := range dense {
		d := Distances(ego, other)
		if l.excluded(primary, j, d) {
			continue
		}
		if minDist == nil {
			minDist = d
			continue
		}
		for i, v := range d {
			if v < minDist[i] {
				minDist[i] = v
			}
		}
	}
	return minDist, minDist != nil
}

func (l Labeler) excluded(primary, other int, d []float64) bool {
	if l.Exclusion == ExcludeByDistance {
		return len(d) == 0 || !(d[0] > 0)
	}
	return other == primary
}

// Collides reports, per densified index, whether the primary agent is closer
// than the threshold to any compared agent.
func (l Labeler) Collides(primary int, trajs [][][2]float64) ([]bool, error) {
	if err := checkScene(primary, trajs); err != nil {
		return nil, err
	}
	minDist, ok := l.MinSeparation(primary, DensifyAll(trajs, l.NumInterp))
	out := make([]bool, DenseLen(len(trajs[primary]), l.NumInterp))
	if !ok {
		return out, nil
	}
	for i, d := range minDist {
		out[i] = d < l.Threshold
	}
	return out, nil
}

// Safe reports whether the primary agent keeps at least Threshold from
// every compared agent at every densified index.
func (l Labeler) Safe(primary int, trajs [][][2]float64) (bool, error) {
	if err := checkScene(primary, trajs); err != nil {
		return false, err
	}
	return l.safe(primary, DensifyAll(trajs, l.NumInterp)), nil
}

// Label returns the safety of every agent in the scene, each taking the
// primary role in turn. trajs is indexed [agent][step].
func (l Labeler) Label(trajs [][][2]float64) ([]bool, error) {
	if err := checkScene(0, trajs); err != nil {
		return nil, err
	}
	dense := DensifyAll(trajs, l.NumInterp)
	out := make([]bool, len(trajs))
	for p := range trajs {
		out[p] = l.safe(p, dense)
	}
	return out, nil
}

func (l Labeler) safe(primary int, dense [][][2]float64) bool {
	minDist, ok := l.MinSeparation(primary, dense)
	if !ok {
		return true
	}
	for _, d := range minDist {
		if d < l.Threshold {
			return false
		}
	}
	return true
}

func checkScene(primary int, trajs [][][2]float64) error {
	if len(trajs) < 2 {
		return fmt.Errorf("%w: got %d", ErrTooFewAgents, len(trajs))
	}
	if primary < 0 || primary >= len(trajs) {
		return fmt.Errorf("primary %d outside [0, %d)", primary, len(trajs))
	}
	steps := len(trajs[0])
	for i, t := range trajs {
		if len(t) != steps {
			return fmt.Errorf("agent %d has %d steps, want %d", i, len(t), steps)
		}
	}
	return nil
}
