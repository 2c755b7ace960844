package main

import (
	"fmt"
	"io"

	"github.com/Noofbiz/trajgraph/datasets"
)

// stats aggregates per-window labels over a dataset.
type stats struct {
	Windows        int
	Agents         int
	MaxPedsInFrame int
	NonLinear      int
	Unsafe         int
	MinAgents      int
	MaxAgents      int
}

func collect(ds *datasets.TrajectoryDataset) (stats, error) {
	s := stats{Windows: ds.Len(), Agents: ds.NumAgents(), MaxPedsInFrame: ds.MaxPedsInFrame()}
	for i := 0; i < ds.Len(); i++ {
		r, err := ds.Window(i)
		if err != nil {
			return s, err
		}
		if i == 0 || r.NumAgents < s.MinAgents {
			s.MinAgents = r.NumAgents
		}
		s.MaxAgents = max(s.MaxAgents, r.NumAgents)
		for _, v := range r.NonLinear {
			if v > 0 {
				s.NonLinear++
			}
		}
		safe, err := ds.Safety(i)
		if err != nil {
			return s, err
		}
		for _, ok := range safe {
			if !ok {
				s.Unsafe++
			}
		}
	}
	return s, nil
}

func summarize(w io.Writer, ds *datasets.TrajectoryDataset) error {
	s, err := collect(ds)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "windows: %d\n", s.Windows)
	fmt.Fprintf(w, "agents: %d (per window %d..%d)\n", s.Agents, s.MinAgents, s.MaxAgents)
	fmt.Fprintf(w, "max agents in a window span: %d\n", s.MaxPedsInFrame)
	fmt.Fprintf(w, "non-linear futures: %d\n", s.NonLinear)
	fmt.Fprintf(w, "unsafe futures: %d\n", s.Unsafe)
	fmt.Fprintf(w, "training context: %v\n", ds.Training())
	if ds.CacheKey() != "" {
		fmt.Fprintf(w, "graph cache: %s\n", ds.CacheKey())
	}
	fmt.Fprintf(w, "graph build: %s\n", ds.BuildID())
	return nil
}
