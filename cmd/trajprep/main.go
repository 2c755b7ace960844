// Command trajprep prepares a trajectory dataset directory: it windows the
// scene logs, builds (or loads cached) window graphs, computes safety labels
// and prints a summary.
//
// Usage:
//
//	trajprep -data datasets/eth/train [-config trajprep.yaml] [flags]
//
// Values from -config are applied first; flags given on the command line
// override them.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/Noofbiz/trajgraph/datasets"
	"github.com/Noofbiz/trajgraph/graphcache"
)

func main() {
	def := datasets.DefaultConfig("")
	o := &options{dataset: def}
	c := &o.dataset

	flag.StringVar(&c.DataDir, "data", "", "directory with one log file per scene")
	configPath := flag.String("config", "", "optional JSON or YAML config file")
	flag.StringVar(&c.Delim, "delim", def.Delim, "field delimiter: tab, space or a literal string")
	flag.IntVar(&c.ObsLen, "obs-len", def.ObsLen, "observed steps per window")
	flag.IntVar(&c.PredLen, "pred-len", def.PredLen, "predicted steps per window")
	flag.IntVar(&c.Skip, "skip", def.Skip, "frames between window starts")
	flag.IntVar(&c.MinPed, "min-ped", def.MinPed, "keep windows with more than this many complete agents")
	flag.Float64Var(&c.Threshold, "threshold", def.Threshold, "fit residual at which a future counts as non-linear")
	flag.BoolVar(&c.NormLap, "norm-lap", def.NormLap, "replace adjacency with its normalized Laplacian")
	flag.Float64Var(&c.CollisionThreshold, "collision-threshold", def.CollisionThreshold, "separation below which agents collide")
	flag.IntVar(&c.NumInterp, "num-interp", def.NumInterp, "points inserted between steps for collision checks")
	flag.StringVar(&o.exclusion, "exclusion", "identity", "primary exclusion strategy: identity or distance")
	flag.StringVar(&o.training, "training", "auto", "expose safety labels: auto (data dir contains 'train'), true or false")
	flag.StringVar(&o.cacheBackend, "cache", "file", "graph cache backend: file, sqlite or none")
	flag.StringVar(&o.cachePath, "cache-path", "", "cache file (file backend: defaults to <data>/graph_data.dat; sqlite: database path)")
	flag.BoolVar(&c.Force, "force", false, "rebuild and overwrite cached graphs")
	flag.StringVar(&c.StatusDir, "status-dir", "", "directory for the -info.txt status line (empty disables)")
	flag.IntVar(&c.Workers, "workers", 0, "precompute workers (0 = NumCPU)")
	flag.DurationVar(&c.ProgressInterval, "progress-interval", def.ProgressInterval, "precompute progress logging interval")
	printConfig := flag.Bool("print-effective-config", false, "print the merged configuration and exit")
	flag.Parse()

	explicit := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { explicit[f.Name] = true })

	if *configPath != "" {
		fc, err := loadFileConfig(*configPath)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
		fc.apply(o, explicit)
		log.Printf("Loaded config from %s", *configPath)
	}
	if err := o.resolve(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	if *printConfig {
		printEffective(o)
		os.Exit(0)
	}
	if c.DataDir == "" {
		log.Fatalf("-data is required")
	}

	switch o.cacheBackend {
	case "file":
		c.Cache = graphcache.FileStore{}
		if o.cachePath != "" {
			c.CacheKey = graphcache.Key(o.cachePath)
		}
	case "sqlite":
		st, err := graphcache.OpenSQLite(o.cachePath)
		if err != nil {
			log.Fatalf("failed to open sqlite cache: %v", err)
		}
		defer st.Close()
		c.Cache = st
	case "none":
		c.NoCache = true
	}

	start := time.Now()
	ds, err := datasets.NewTrajectoryDataset(o.dataset)
	if err != nil {
		log.Fatalf("failed to prepare dataset: %v", err)
	}
	log.Printf("Prepared %s in %s", c.DataDir, time.Since(start).Round(time.Millisecond))
	if err := summarize(os.Stdout, ds); err != nil {
		log.Fatalf("failed to summarize dataset: %v", err)
	}
}

func printEffective(o *options) {
	c := o.dataset
	fmt.Printf("Dataset:\n")
	fmt.Printf("  data: %s\n", c.DataDir)
	fmt.Printf("  delim: %q\n", c.Delim)
	fmt.Printf("  obs_len: %d\n", c.ObsLen)
	fmt.Printf("  pred_len: %d\n", c.PredLen)
	fmt.Printf("  skip: %d\n", c.Skip)
	fmt.Printf("  min_ped: %d\n", c.MinPed)
	fmt.Printf("  threshold: %g\n", c.Threshold)
	fmt.Printf("  norm_lap: %v\n", c.NormLap)
	fmt.Printf("Safety:\n")
	fmt.Printf("  collision_threshold: %g\n", c.CollisionThreshold)
	fmt.Printf("  num_interp: %d\n", c.NumInterp)
	fmt.Printf("  exclusion: %s\n", c.Exclusion)
	fmt.Printf("  training: %s\n", o.training)
	fmt.Printf("Cache:\n")
	fmt.Printf("  backend: %s\n", o.cacheBackend)
	fmt.Printf("  path: %s\n", o.cachePath)
	fmt.Printf("  force: %v\n", c.Force)
	fmt.Printf("Precompute:\n")
	fmt.Printf("  workers: %d\n", c.Workers)
	fmt.Printf("  progress_interval: %s\n", c.ProgressInterval)
	fmt.Printf("  status_dir: %s\n", c.StatusDir)
}
