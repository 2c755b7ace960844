// Package scene reads raw positional logs into per-scene frame lists.
//
// Each input file holds one scene. Every line is
//
//	<frame_id> <agent_id> <x> <y>
//
// separated by a single delimiter. Frames are grouped by frame id and sorted
// ascending; an agent appears at most once per frame in well-formed logs.
package scene

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ErrMalformedLine is returned when a line cannot be parsed as four numbers.
var ErrMalformedLine = errors.New("malformed line")

// Observation is one agent position at one frame.
type Observation struct {
	Frame   float64
	AgentID float64
	X       float64
	Y       float64
}

// Frame holds every observation recorded at a single frame id.
type Frame struct {
	ID  float64
	Obs []Observation
}

// Scene is one source log split into frames, ordered by frame id.
type Scene struct {
	// Name is the base name of the source file (empty for in-memory scenes).
	Name   string
	Frames []Frame
}

// NumFrames returns the number of distinct frames in the scene.
func (s *Scene) NumFrames() int { return len(s.Frames) }

// ResolveDelim maps the "tab" and "space" aliases to their characters.
// Any other value is used literally; empty means tab.
func ResolveDelim(delim string) string {
	switch delim {
	case "", "tab":
		return "\t"
	case "space":
		return " "
	}
	return delim
}

// Parse reads observations from r. Blank lines are ignored; any other line
// that does not hold exactly four finite numeric fields is an error.
func Parse(r io.Reader, delim string) ([]Observation, error) {
	delim = ResolveDelim(delim)
	whitespace := strings.TrimSpace(delim) == ""

	var out []Observation
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		fields := strings.Split(line, delim)
		if whitespace {
			// runs of the delimiter (aligned columns) collapse to one
			fields = compact(fields)
		}
		if len(fields) != 4 {
			return nil, fmt.Errorf("line %d: %w: want 4 fields, got %d", lineNo, ErrMalformedLine, len(fields))
		}
		var vals [4]float64
		for i := range vals {
			v, err := parseFloat(fields[i])
			if err != nil {
				return nil, fmt.Errorf("line %d field %d: %w: %v", lineNo, i, ErrMalformedLine, err)
			}
			vals[i] = v
		}
		out = append(out, Observation{Frame: vals[0], AgentID: vals[1], X: vals[2], Y: vals[3]})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}
	return out, nil
}

// FromObservations groups observations into frames sorted by frame id. The
// relative order of observations within a frame is preserved.
func FromObservations(name string, obs []Observation) *Scene {
	byFrame := make(map[float64][]Observation)
	for _, o := range obs {
		byFrame[o.Frame] = append(byFrame[o.Frame], o)
	}
	ids := make([]float64, 0, len(byFrame))
	for id := range byFrame {
		ids = append(ids, id)
	}
	sort.Float64s(ids)

	s := &Scene{Name: name, Frames: make([]Frame, len(ids))}
	for i, id := range ids {
		s.Frames[i] = Frame{ID: id, Obs: byFrame[id]}
	}
	return s
}

// ReadFile parses a single scene file.
func ReadFile(path, delim string) (*Scene, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	obs, err := Parse(f, delim)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return FromObservations(filepath.Base(path), obs), nil
}

// LoadDir reads every regular file in dir as a scene, in lexical file order.
// Files whose base name is listed in skip (for example a cache artifact
// stored next to the logs) are ignored.
func LoadDir(dir, delim string, skip ...string) ([]*Scene, error) {
	paths, err := ListSceneFiles(dir, skip...)
	if err != nil {
		return nil, err
	}
	scenes := make([]*Scene, 0, len(paths))
	for _, p := range paths {
		s, err := ReadFile(p, delim)
		if err != nil {
			return nil, err
		}
		scenes = append(scenes, s)
	}
	return scenes, nil
}
