package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Noofbiz/trajgraph/collision"
	"github.com/Noofbiz/trajgraph/datasets"
)

// fileConfig mirrors the CLI flags. Omitted fields keep the flag value.
type fileConfig struct {
	DataDir            *string  `json:"data_dir" yaml:"data_dir"`
	Delim              *string  `json:"delim" yaml:"delim"`
	ObsLen             *int     `json:"obs_len" yaml:"obs_len"`
	PredLen            *int     `json:"pred_len" yaml:"pred_len"`
	Skip               *int     `json:"skip" yaml:"skip"`
	MinPed             *int     `json:"min_ped" yaml:"min_ped"`
	Threshold          *float64 `json:"threshold" yaml:"threshold"`
	NormLap            *bool    `json:"norm_lap" yaml:"norm_lap"`
	CollisionThreshold *float64 `json:"collision_threshold" yaml:"collision_threshold"`
	NumInterp          *int     `json:"num_interp" yaml:"num_interp"`
	Exclusion          *string  `json:"exclusion" yaml:"exclusion"`
	Training           *bool    `json:"training" yaml:"training"`

	Cache struct {
		Backend *string `json:"backend" yaml:"backend"`
		Path    *string `json:"path" yaml:"path"`
		Force   *bool   `json:"force" yaml:"force"`
	} `json:"cache" yaml:"cache"`

	StatusDir               *string `json:"status_dir" yaml:"status_dir"`
	Workers                 *int    `json:"workers" yaml:"workers"`
	ProgressIntervalSeconds *int    `json:"progress_interval_seconds" yaml:"progress_interval_seconds"`
}

// options is the merged CLI configuration.
type options struct {
	dataset      datasets.Config
	exclusion    string
	training     string // "auto", "true" or "false"
	cacheBackend string // "file", "sqlite" or "none"
	cachePath    string
}

// loadFileConfig reads a JSON or YAML config file, chosen by extension.
func loadFileConfig(path string) (*fileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	var fc fileConfig
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		err = json.Unmarshal(data, &fc)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &fc)
	default:
		return nil, fmt.Errorf("config file must be .json, .yaml or .yml, got %q", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return &fc, nil
}

// apply copies every field present in fc into o, except those named in
// explicit (flags set on the command line win).
func (fc *fileConfig) apply(o *options, explicit map[string]bool) {
	c := &o.dataset
	setString(&c.DataDir, fc.DataDir, explicit["data"])
	setString(&c.Delim, fc.Delim, explicit["delim"])
	setInt(&c.ObsLen, fc.ObsLen, explicit["obs-len"])
	setInt(&c.PredLen, fc.PredLen, explicit["pred-len"])
	setInt(&c.Skip, fc.Skip, explicit["skip"])
	setInt(&c.MinPed, fc.MinPed, explicit["min-ped"])
	setFloat(&c.Threshold, fc.Threshold, explicit["threshold"])
	setBool(&c.NormLap, fc.NormLap, explicit["norm-lap"])
	setFloat(&c.CollisionThreshold, fc.CollisionThreshold, explicit["collision-threshold"])
	setInt(&c.NumInterp, fc.NumInterp, explicit["num-interp"])
	setString(&o.exclusion, fc.Exclusion, explicit["exclusion"])
	if fc.Training != nil && !explicit["training"] {
		o.training = fmt.Sprint(*fc.Training)
	}
	setString(&o.cacheBackend, fc.Cache.Backend, explicit["cache"])
	setString(&o.cachePath, fc.Cache.Path, explicit["cache-path"])
	setBool(&c.Force, fc.Cache.Force, explicit["force"])
	setString(&c.StatusDir, fc.StatusDir, explicit["status-dir"])
	setInt(&c.Workers, fc.Workers, explicit["workers"])
	if fc.ProgressIntervalSeconds != nil && !explicit["progress-interval"] {
		c.ProgressInterval = time.Duration(*fc.ProgressIntervalSeconds) * time.Second
	}
}

// resolve turns the string-valued options into dataset settings.
func (o *options) resolve() error {
	ex, err := collision.ParseExclusion(o.exclusion)
	if err != nil {
		return err
	}
	o.dataset.Exclusion = ex
	switch o.training {
	case "", "auto":
		o.dataset.Training = nil
	case "true":
		o.dataset.Training = datasets.Bool(true)
	case "false":
		o.dataset.Training = datasets.Bool(false)
	default:
		return fmt.Errorf("training must be auto, true or false, got %q", o.training)
	}
	switch o.cacheBackend {
	case "file", "sqlite", "none":
	default:
		return fmt.Errorf("cache backend must be file, sqlite or none, got %q", o.cacheBackend)
	}
	if o.cacheBackend == "sqlite" && o.cachePath == "" {
		return fmt.Errorf("sqlite cache needs -cache-path")
	}
	return nil
}

func setString(dst *string, v *string, skip bool) {
	if v != nil && !skip {
		*dst = *v
	}
}

func setInt(dst *int, v *int, skip bool) {
	if v != nil && !skip {
		*dst = *v
	}
}

func setFloat(dst *float64, v *float64, skip bool) {
	if v != nil && !skip {
		*dst = *v
	}
}

func setBool(dst *bool, v *bool, skip bool) {
	if v != nil && !skip {
		*dst = *v
	}
}
