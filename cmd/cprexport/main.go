// Command cprexport parses Cubase project files and prints StudioTrack JSON.
//
//	cprexport [flags] file.cpr...
//
// One file prints one project document. Several files are parsed
// concurrently and printed as a single batch document.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	json "github.com/goccy/go-json"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	cprlab "github.com/Skryldev/cpr-lab"
	"github.com/Skryldev/cpr-lab/pkg/logger"
)

const envPrefix = "CPRLAB"

type settings struct {
	Schema  string
	Workers int
	Dev     bool
	Indent  string
	Files   []string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func loadSettings(args []string, stderr io.Writer) (*settings, error) {
	fs := pflag.NewFlagSet("cprexport", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.String("schema", cprlab.SchemaV11, "StudioTrack schema version (1.0 or 1.1)")
	fs.Int("workers", 4, "parallel workers for multi-file runs")
	fs.Bool("dev", false, "human-readable debug logging")
	fs.String("indent", "", "indent JSON output with this string")
	fs.String("config", "", "optional config file (yaml, toml or json)")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: cprexport [flags] file.cpr...")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(fs); err != nil {
		return nil, err
	}
	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	s := &settings{
		Schema:  v.GetString("schema"),
		Workers: v.GetInt("workers"),
		Dev:     v.GetBool("dev"),
		Indent:  v.GetString("indent"),
		Files:   fs.Args(),
	}
	if len(s.Files) == 0 {
		fs.Usage()
		return nil, errors.New("no .cpr path provided")
	}
	return s, nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	s, err := loadSettings(args, stderr)
	if errors.Is(err, pflag.ErrHelp) {
		return 0
	}
	if err != nil {
		writeError(stdout, "", err)
		return 2
	}

	log, err := newLogger(s.Dev)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}

	p, err := cprlab.New(cprlab.Config{Logger: log, Workers: s.Workers})
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	defer p.Close()

	opts := []cprlab.ExportOption{cprlab.WithSchemaVersion(s.Schema), cprlab.WithIndent(s.Indent)}

	if len(s.Files) == 1 {
		return runSingle(ctx, p, s.Files[0], opts, stdout, log)
	}
	return runBatch(ctx, p, s.Files, opts, stdout, log)
}

func runSingle(ctx context.Context, p *cprlab.Parser, path string, opts []cprlab.ExportOption, stdout io.Writer, log *logger.Logger) int {
	proj, err := p.ParseFile(ctx, path)
	if err != nil {
		log.Error("parse failed", zap.String("path", path), zap.Error(err))
		writeError(stdout, path, err)
		return 1
	}
	if err := p.Export(stdout, proj, opts...); err != nil {
		writeError(stdout, path, err)
		return 1
	}
	return 0
}

func runBatch(ctx context.Context, p *cprlab.Parser, paths []string, opts []cprlab.ExportOption, stdout io.Writer, log *logger.Logger) int {
	jobs := make([]cprlab.BatchJob, len(paths))
	order := make(map[string]int, len(paths))
	for i, path := range paths {
		id := fmt.Sprintf("%d:%s", i, path)
		jobs[i] = cprlab.BatchJob{ID: id, Path: path}
		order[id] = i
	}

	ch, err := p.ParseBatch(ctx, jobs)
	if err != nil {
		writeError(stdout, "", err)
		return 1
	}

	results := make([]cprlab.BatchResult, len(jobs))
	failed := 0
	for r := range ch {
		results[order[r.JobID]] = r
		if r.Err != nil {
			failed++
		}
	}
	log.Info("batch finished", zap.Int("files", len(jobs)), zap.Int("failed", failed))

	if err := p.ExportBatch(stdout, results, opts...); err != nil {
		writeError(stdout, "", err)
		return 1
	}
	if failed == len(jobs) {
		return 1
	}
	return 0
}

func newLogger(dev bool) (*logger.Logger, error) {
	if dev {
		return logger.New(true)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	z, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return logger.FromZap(z), nil
}

func writeError(w io.Writer, path string, err error) {
	entry := struct {
		Path  string `json:"path,omitempty"`
		Error string `json:"error"`
	}{Path: path, Error: err.Error()}
	b, _ := json.Marshal(entry)
	fmt.Fprintln(w, string(b))
}
