package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	cprlab "github.com/Skryldev/cpr-lab"
	"github.com/Skryldev/cpr-lab/application/registry"
)

func main() {
	// ── Graceful shutdown via signal ──────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Progress channel ──────────────────────────────────────────────────
	progressCh := make(chan cprlab.ProgressUpdate, 32)
	go func() {
		for upd := range progressCh {
			fmt.Printf("[%s] stage=%-10s %.0f%%  %s\n",
				short(upd.JobID), upd.Stage, upd.Percent, upd.Message)
		}
	}()

	// ── Create parser with one in-house plugin row ────────────────────────
	parser, err := cprlab.New(cprlab.Config{
		Workers:    4,
		ProgressCh: progressCh,
		Entries: []cprlab.RegistryEntry{{
			Name:   "House Glue",
			Vendor: "In-House",
			Compressor: &registry.CompressorKeys{
				Threshold: registry.Keys{"Thresh"},
				Ratio:     registry.Keys{"Ratio"},
			},
		}},
	})
	if err != nil {
		log.Fatalf("failed to create parser: %v", err)
	}
	defer func() {
		close(progressCh)
		parser.Close()
	}()

	dir := os.Getenv("CPRLAB_PROJECTS")
	if dir == "" {
		dir = "."
	}
	paths, _ := filepath.Glob(filepath.Join(dir, "*.cpr"))
	if len(paths) == 0 {
		fmt.Printf("no .cpr files in %s\n", dir)
		return
	}

	// ── Example 1: Single project ─────────────────────────────────────────
	fmt.Println("\n── Example 1: Single Project ──")
	singleExample(ctx, parser, paths[0])

	// ── Example 2: Batch parse ────────────────────────────────────────────
	fmt.Println("\n── Example 2: Batch Parse ──")
	batchExample(ctx, parser, paths)
}

func singleExample(ctx context.Context, p *cprlab.Parser, path string) {
	proj, err := p.ParseFile(ctx, path)
	if err != nil {
		fmt.Printf("parse failed: %v\n", err)
		return
	}

	fmt.Printf("%s: %s, %d tracks, %d plugins, status=%s\n",
		proj.Name, proj.Version, proj.TrackCount(), proj.PluginCount(), proj.Status())
	for _, tp := range proj.AllPlugins() {
		fmt.Printf("  %-20s slot %-2d %s (%s)\n", tp.Track.Name, tp.Plugin.Slot, tp.Plugin.Name, tp.Plugin.Vendor)
	}
	for _, w := range proj.Warnings {
		fmt.Printf("  warning: %v\n", w)
	}

	if err := p.Export(os.Stdout, proj, cprlab.WithIndent("  ")); err != nil {
		fmt.Printf("export failed: %v\n", err)
	}
}

func batchExample(ctx context.Context, p *cprlab.Parser, paths []string) {
	jobs := make([]cprlab.BatchJob, len(paths))
	for i, path := range paths {
		jobs[i] = cprlab.BatchJob{Path: path}
	}

	resultsCh, err := p.ParseBatch(ctx, jobs)
	if err != nil {
		fmt.Printf("batch failed to start: %v\n", err)
		return
	}

	successCount := 0
	for res := range resultsCh {
		if res.Err != nil {
			fmt.Printf("[%s] FAILED: %v\n", res.JobID, res.Err)
			continue
		}
		successCount++
		fmt.Printf("[%s] %s took=%s\n", res.JobID, res.Status, res.Duration)
	}

	fmt.Printf("Batch complete: %d/%d parsed\n", successCount, len(jobs))
}

func short(id string) string {
	if len(id) > 8 {
		return id[len(id)-8:]
	}
	return id
}
