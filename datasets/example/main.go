package main

// Example command that prepares a trajectory dataset directory and walks one
// epoch of it the way a gomlx training loop would, printing the tensor shapes
// of the first few windows.
//
// Usage:
//   go run ./datasets/example -data path/to/eth/train
//
// The graph cache is written next to the logs on the first run and reused
// afterwards.

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"

	"github.com/Noofbiz/trajgraph/datasets"
)

func main() {
	dataDir := flag.String("data", "../assets/eth/train", "directory with one log file per scene")
	show := flag.Int("show", 3, "number of windows to print")
	flag.Parse()

	ds, err := datasets.NewTrajectoryDataset(datasets.DefaultConfig(*dataDir))
	if err != nil {
		log.Fatalf("failed to prepare dataset: %v", err)
	}
	fmt.Printf("Using data directory: %s\n", *dataDir)
	fmt.Printf("Windows: %d, agents: %d, training: %v\n", ds.Len(), ds.NumAgents(), ds.Training())

	n := 0
	for {
		_, inputs, labels, err := ds.Yield()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			log.Fatalf("failed to yield window %d: %v", n, err)
		}
		if n < *show {
			fmt.Printf("window %d:\n", n)
			for i, t := range inputs {
				fmt.Printf("  input[%d]: %s\n", i, t.Shape())
			}
			for i, t := range labels {
				fmt.Printf("  label[%d]: %s\n", i, t.Shape())
			}
		}
		n++
	}
	fmt.Printf("Yielded %d windows\n", n)
}
