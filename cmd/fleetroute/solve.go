package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"fleetroute/internal/config"
	"fleetroute/internal/runner"
)

func newFlagSet(name string, out io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(out)
	return fs
}

// solve runs one instance in process and prints the run record as JSON.
func solve(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("solve", stderr)
	path := fs.String("config", os.Getenv("FLEETROUTE_CONFIG"), "YAML config file")
	level := fs.Int("level", -1, "exploration level, 0 to 5 (default from config)")
	threads := fs.Int("threads", 0, "worker threads (default from config)")
	seed := fs.Int64("seed", 0, "search seed (default from config)")
	timeout := fs.Duration("timeout", 0, "solving time limit (default from config)")
	jobs := fs.Int("jobs", 0, "generated jobs (default from config)")
	vehicles := fs.Int("vehicles", 0, "generated vehicles (default from config)")
	instance := fs.Int64("instance-seed", 0, "seed of the generated instance (default from config)")
	summary := fs.Bool("summary", false, "print the summary only")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := config.Load(*path)
	if err != nil {
		return err
	}
	log := cfg.Logger()
	log.SetOutput(stderr)

	var req runner.Request
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "level":
			req.Level = level
		case "threads":
			req.Threads = threads
		case "seed":
			req.Seed = seed
		case "timeout":
			ms := timeout.Milliseconds()
			req.TimeoutMs = &ms
		case "jobs", "vehicles", "instance-seed":
			if req.Synth == nil {
				o := cfg.Synth
				req.Synth = &o
			}
		}
	})
	if req.Synth != nil {
		if *jobs > 0 {
			req.Synth.Jobs = *jobs
		}
		if *vehicles > 0 {
			req.Synth.Vehicles = *vehicles
		}
		if *instance != 0 {
			req.Synth.Seed = *instance
		}
	}

	d, err := openDeps(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer d.Close()
	start := time.Now()
	run, err := runner.New(d.store, d.broker, cfg, log).Run(ctx, req)
	if err != nil {
		return err
	}
	log.WithField("run_id", run.ID).Infof("[runner] finished in %s", time.Since(start).Round(time.Millisecond))

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if *summary {
		return enc.Encode(run.Solution.Summary)
	}
	if err := enc.Encode(run); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return nil
}
