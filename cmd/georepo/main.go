// Package main is the georepo command.
//
// georepo loads a dataset of GeoJSON features described by a YAML
// configuration, either in memory or through a JSON Lines store, and queries
// it:
//
//	georepo -config stops.yaml extent
//	georepo -config stops.yaml select -bbox 0,0,10,10
//	georepo -config stops.yaml select -wkt 'LINESTRING(0 0, 5 5)'
//	georepo -config stops.yaml select -filter zone:gt:1 -sort name:desc -limit 10
//	georepo -config stops.yaml get -id 42
//	georepo -config stops.yaml schema
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"github.com/maruel/georepo/internal/binding"
	"github.com/maruel/georepo/internal/config"
	"github.com/maruel/georepo/internal/dataset"
	"github.com/maruel/georepo/internal/projection"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

func main() {
	if err := mainImpl(); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "georepo: %v\n", err)
		os.Exit(1)
	}
}

func mainImpl() error {
	version := flag.Bool("version", false, "Print version and exit")
	configPath := flag.String("config", "", "YAML configuration file")
	source := flag.String("source", "", "GeoJSON FeatureCollection to load, overrides the configuration")
	store := flag.String("store", "", "JSON Lines store, overrides the configuration")
	logLevel := flag.String("log-level", "", "Log level (debug, info, warn, error), overrides the configuration")
	flag.Usage = usage
	flag.Parse()

	if *version {
		printVersion()
		return nil
	}
	if flag.NArg() == 0 {
		usage()
		return errors.New("missing command")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	defer stop()
	ll := &slog.LevelVar{}
	ll.Set(slog.LevelInfo)
	slog.SetDefault(newLogger(os.Stderr, ll))

	cfg := config.DefaultConfig()
	if *configPath != "" {
		var err error
		if cfg, err = config.LoadFromPath(*configPath); err != nil {
			return err
		}
	}
	// Flags win over the configuration file.
	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) {
		set[f.Name] = true
	})
	if set["source"] {
		cfg.Dataset.Source = *source
	}
	if set["store"] {
		cfg.Dataset.Store = *store
	}
	if set["log-level"] {
		cfg.LogLevel = *logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	switch cfg.LogLevel {
	case "debug":
		ll.Set(slog.LevelDebug)
	case "info":
	case "warn":
		ll.Set(slog.LevelWarn)
	case "error":
		ll.Set(slog.LevelError)
	}

	cmd, ok := commands[flag.Arg(0)]
	if !ok {
		return fmt.Errorf("unknown command %q", flag.Arg(0))
	}
	fs := flag.NewFlagSet(flag.Arg(0), flag.ContinueOnError)
	run := cmd.setup(fs)
	if err := fs.Parse(flag.Args()[1:]); err != nil {
		return err
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("unknown arguments: %v", fs.Args())
	}

	accessors, err := dataset.Register(binding.NewRegistry(), &cfg.Dataset)
	if err != nil {
		return err
	}
	repo, err := dataset.Open(ctx, &cfg.Dataset, accessors)
	if err != nil {
		return err
	}
	p := projection.New(repo, projection.WithSRID[*dataset.Record](cfg.Dataset.SRID))
	p.Open()
	defer p.Close()
	start := time.Now()
	err = run(ctx, p, os.Stdout)
	slog.DebugContext(ctx, "done", "command", flag.Arg(0), "duration", time.Since(start))
	return err
}

func newLogger(w *os.File, level slog.Leveler) *slog.Logger {
	return slog.New(tint.NewHandler(colorable.NewColorable(w), &tint.Options{
		Level:       level,
		TimeFormat:  "15:04:05.000",
		NoColor:     !isatty.IsTerminal(w.Fd()),
		ReplaceAttr: elideZero,
	}))
}

// elideZero drops zero-valued attributes, except record identifiers where 0
// is a valid value.
func elideZero(groups []string, a slog.Attr) slog.Attr {
	if a.Key == "id" {
		return a
	}
	skip := false
	switch t := a.Value.Any().(type) {
	case string:
		skip = t == ""
	case bool:
		skip = !t
	case uint64:
		skip = t == 0
	case int64:
		skip = t == 0
	case float64:
		skip = t == 0
	case time.Time:
		skip = t.IsZero()
	case time.Duration:
		skip = t == 0
	case nil:
		skip = true
	}
	if skip {
		return slog.Attr{}
	}
	return a
}

func usage() {
	out := flag.CommandLine.Output()
	_, _ = fmt.Fprintf(out, "usage: georepo [flags] <command> [command flags]\n\ncommands:\n")
	for _, name := range commandNames() {
		_, _ = fmt.Fprintf(out, "  %-8s %s\n", name, commands[name].help)
	}
	_, _ = fmt.Fprintf(out, "\nflags:\n")
	flag.PrintDefaults()
}

func printVersion() {
	version, goVersion, revision, dirty := getBuildInfo()
	fmt.Printf("georepo %s\n", version)
	fmt.Printf("  Go version: %s\n", goVersion)
	fmt.Printf("  Revision:   %s\n", revision)
	if dirty {
		fmt.Printf("  Modified:   true\n")
	}
}

func getBuildInfo() (version, goVersion, revision string, dirty bool) {
	version = "unknown"
	goVersion = "unknown"
	revision = "unknown"
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	version = info.Main.Version
	if version == "" || version == "(devel)" {
		version = "dev"
	}
	goVersion = info.GoVersion
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			revision = setting.Value
		case "vcs.modified":
			dirty = setting.Value == "true"
		}
	}
	return
}

// runFunc executes a command against the loaded dataset.
type runFunc func(ctx context.Context, p *projection.Provider[*dataset.Record], w io.Writer) error
