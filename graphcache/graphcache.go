// Package graphcache persists the per-window graphs of a prepared dataset so
// later runs can skip the graph build.
//
// An Artifact is written once and read many times. Stores are addressed by
// Key; PathKey gives the conventional file next to the scene logs and
// ContentKey derives a key from the build inputs.
package graphcache

import (
	"bytes"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"slices"

	"github.com/Noofbiz/trajgraph/graph"
)

// FileName is the artifact name used by PathKey.
const FileName = "graph_data.dat"

// FormatVersion is incremented when the encoded artifact layout changes.
const FormatVersion = 1

var (
	// ErrNotFound is returned by Load when nothing is stored under a key.
	ErrNotFound = errors.New("graph cache entry not found")
	// ErrCorrupt is returned when a stored artifact cannot be decoded.
	ErrCorrupt = errors.New("graph cache entry corrupt")
	// ErrMismatch is returned by Validate when an artifact was built with
	// different parameters.
	ErrMismatch = errors.New("graph cache entry does not match dataset")
)

// Key addresses an artifact within a Store.
type Key string

// PathKey addresses the artifact stored alongside the logs in dir.
func PathKey(dir string) Key {
	return Key(filepath.Join(dir, FileName))
}

// ContentKey hashes v (JSON encoded) into a stable hex key.
func ContentKey(v any) (Key, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("content key: %w", err)
	}
	sum := sha256.Sum256(b)
	return Key(hex.EncodeToString(sum[:])), nil
}

// Meta records what an artifact was built from.
type Meta struct {
	ObsLen     int
	PredLen    int
	Skip       int
	MinPed     int
	NormLap    bool
	NumWindows int
	NumAgents  int
}

// Artifact holds four parallel collections, one entry per window.
type Artifact struct {
	Version   int
	BuildID   string
	CreatedAt int64
	Meta      Meta
	VObs      []*graph.Tensor
	AObs      []*graph.Tensor
	VPred     []*graph.Tensor
	APred     []*graph.Tensor
}

// Validate checks the artifact against the expected build metadata and the
// agent count of every window. Each window must hold V tensors of shape
// (steps, n, 2) and A tensors of shape (steps, n, n) with matching data.
func (a *Artifact) Validate(want Meta, agents []int) error {
	if a.Version != FormatVersion {
		return fmt.Errorf("%w: version %d, expected %d", ErrMismatch, a.Version, FormatVersion)
	}
	if a.Meta != want {
		return fmt.Errorf("%w: built with %+v, expected %+v", ErrMismatch, a.Meta, want)
	}
	n := want.NumWindows
	if len(a.VObs) != n || len(a.AObs) != n || len(a.VPred) != n || len(a.APred) != n {
		return fmt.Errorf("%w: collection sizes %d/%d/%d/%d, expected %d",
			ErrMismatch, len(a.VObs), len(a.AObs), len(a.VPred), len(a.APred), n)
	}
	if len(agents) != n {
		return fmt.Errorf("%w: %d agent counts for %d windows", ErrMismatch, len(agents), n)
	}
	for i, nodes := range agents {
		checks := []struct {
			name string
			t    *graph.Tensor
			want []int
		}{
			{"v_obs", a.VObs[i], []int{want.ObsLen, nodes, 2}},
			{"a_obs", a.AObs[i], []int{want.ObsLen, nodes, nodes}},
			{"v_pred", a.VPred[i], []int{want.PredLen, nodes, 2}},
			{"a_pred", a.APred[i], []int{want.PredLen, nodes, nodes}},
		}
		for _, c := range checks {
			if err := checkTensor(c.t, c.want); err != nil {
				return fmt.Errorf("%w: window %d %s: %v", ErrMismatch, i, c.name, err)
			}
		}
	}
	return nil
}

func checkTensor(t *graph.Tensor, shape []int) error {
	if t == nil {
		return errors.New("missing tensor")
	}
	if !slices.Equal(t.Shape, shape) {
		return fmt.Errorf("shape %v, expected %v", t.Shape, shape)
	}
	size := 1
	for _, d := range shape {
		size *= d
	}
	if len(t.Data) != size {
		return fmt.Errorf("%d values for shape %v", len(t.Data), shape)
	}
	return nil
}

// Store loads and saves artifacts.
type Store interface {
	// Load returns ErrNotFound when the key is absent and an error wrapping
	// ErrCorrupt when the stored bytes cannot be decoded.
	Load(key Key) (*Artifact, error)
	Save(key Key, a *Artifact) error
}

// Encode writes a with encoding/gob.
func Encode(a *Artifact) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(a); err != nil {
		return nil, fmt.Errorf("encode graph cache: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode reads an artifact written by Encode.
func Decode(b []byte) (*Artifact, error) {
	var a Artifact
	if err := gob.NewDecoder(bytes.NewReader(b)).Decode(&a); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return &a, nil
}
