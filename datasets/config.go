package datasets

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/Noofbiz/trajgraph/collision"
	"github.com/Noofbiz/trajgraph/graphcache"
	"github.com/Noofbiz/trajgraph/scene"
	"github.com/Noofbiz/trajgraph/window"
)

// Config holds the dataset preparation parameters. Start from DefaultConfig
// and override fields as needed.
type Config struct {
	// DataDir holds one log file per scene. It is read unless Scenes is set.
	DataDir string
	// Scenes, when non-nil, are used instead of reading DataDir.
	Scenes []*scene.Scene
	// Delim separates fields in the log files ("tab", "space" or a literal).
	Delim string

	ObsLen  int
	PredLen int
	Skip    int
	MinPed  int

	// Threshold is the minimum quadratic fit residual for a future segment
	// to count as non-linear.
	Threshold float64

	// NormLap replaces each adjacency matrix by its normalized Laplacian.
	NormLap bool

	// CollisionThreshold, NumInterp and Exclusion configure safety labels.
	CollisionThreshold float64
	NumInterp          int
	Exclusion          collision.Exclusion

	// Training exposes safety labels in records. Nil means DataDir
	// contains "train".
	Training *bool

	// Cache stores the window graphs. Nil with a DataDir uses a FileStore
	// keyed by graphcache.PathKey(DataDir); nil without one disables caching.
	Cache graphcache.Store
	// CacheKey overrides the default key.
	CacheKey graphcache.Key
	// Force rebuilds and overwrites the cached graphs.
	Force bool
	// NoCache always builds the graphs and never saves them.
	NoCache bool

	// StatusDir receives the plain-text "-info.txt" status line. Empty
	// disables it.
	StatusDir string

	// Workers used for graph and safety precompute (0 = NumCPU).
	Workers int
	// ProgressInterval between precompute progress log lines.
	ProgressInterval time.Duration
	// Logger defaults to log.Default().
	Logger *log.Logger
}

// DefaultConfig returns the standard parameters for dataDir.
func DefaultConfig(dataDir string) Config {
	return Config{
		DataDir:            dataDir,
		Delim:              "\t",
		ObsLen:             8,
		PredLen:            12,
		Skip:               1,
		MinPed:             1,
		Threshold:          0.002,
		NormLap:            true,
		CollisionThreshold: collision.DefaultThreshold,
		NumInterp:          collision.DefaultNumInterp,
		Exclusion:          collision.ExcludeByIdentity,
		ProgressInterval:   3 * time.Second,
	}
}

// Bool returns a pointer to v, for Config.Training.
func Bool(v bool) *bool { return &v }

// Params returns the windowing parameters.
func (c Config) Params() window.Params {
	return window.Params{ObsLen: c.ObsLen, PredLen: c.PredLen, Skip: c.Skip, MinPed: c.MinPed}
}

// Labeler returns the collision labeler described by c.
func (c Config) Labeler() collision.Labeler {
	return collision.Labeler{Threshold: c.CollisionThreshold, NumInterp: c.NumInterp, Exclusion: c.Exclusion}
}

// IsTraining resolves the Training setting.
func (c Config) IsTraining() bool {
	if c.Training != nil {
		return *c.Training
	}
	return strings.Contains(c.DataDir, "train")
}

// Validate reports configurations that cannot be built.
func (c Config) Validate() error {
	if err := c.Params().Validate(); err != nil {
		return err
	}
	if c.DataDir == "" && c.Scenes == nil {
		return fmt.Errorf("either DataDir or Scenes must be set")
	}
	if c.NumInterp < 0 {
		return fmt.Errorf("num_interp must be >= 0, got %d", c.NumInterp)
	}
	if c.CollisionThreshold < 0 {
		return fmt.Errorf("collision threshold must be >= 0, got %v", c.CollisionThreshold)
	}
	return nil
}

func (c Config) logger() *log.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return log.Default()
}
