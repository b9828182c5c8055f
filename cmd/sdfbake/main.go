// Command sdfbake loads a scene description, bakes it into the chunk atlas
// and reports cache occupancy and per-frame work.
//
// Usage:
//
//	sdfbake -scene scene.toml [-config sdfatlas.toml] [-backend noop] [-frames 2] [-pick 640,360]
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/natefinch/lumberjack"

	"github.com/gogpu/sdfatlas"
)

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		log.Fatalf("sdfbake: %v", err)
	}
}

type options struct {
	config  string
	scene   string
	backend string
	frames  int
	pick    string
	logfile string
	maxSize int
	verbose bool
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var o options
	fs := flag.NewFlagSet("sdfbake", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.config, "config", "", "TOML configuration file")
	fs.StringVar(&o.scene, "scene", "", "TOML scene description (required)")
	fs.StringVar(&o.backend, "backend", "", "GPU backend: vulkan or noop (overrides config)")
	fs.IntVar(&o.frames, "frames", 1, "number of frames to bake")
	fs.StringVar(&o.pick, "pick", "", "pixel to pick after the last frame, as x,y")
	fs.StringVar(&o.logfile, "logfile", "", "write logs to this file, rotated by size")
	fs.IntVar(&o.maxSize, "log-max-size", 10, "log file size in megabytes before rotation")
	fs.BoolVar(&o.verbose, "v", false, "debug logging")
	if err := fs.Parse(args); err != nil {
		return o, err
	}
	if o.scene == "" {
		return o, fmt.Errorf("-scene is required")
	}
	if o.frames < 1 {
		return o, fmt.Errorf("-frames must be at least 1")
	}
	return o, nil
}

func newLogger(o options, stderr io.Writer) (*slog.Logger, func()) {
	level := slog.LevelInfo
	if o.verbose {
		level = slog.LevelDebug
	}
	var w io.Writer = stderr
	done := func() {}
	if o.logfile != "" {
		lj := &lumberjack.Logger{
			Filename:   o.logfile,
			MaxSize:    o.maxSize, // megabytes
			MaxBackups: 3,
		}
		w = lj
		done = func() { _ = lj.Close() }
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})), done
}

func parsePoint(s string) (x, y int, err error) {
	xs, ys, ok := strings.Cut(s, ",")
	if !ok {
		return 0, 0, fmt.Errorf("pick %q: want x,y", s)
	}
	if x, err = strconv.Atoi(strings.TrimSpace(xs)); err != nil {
		return 0, 0, fmt.Errorf("pick %q: %w", s, err)
	}
	if y, err = strconv.Atoi(strings.TrimSpace(ys)); err != nil {
		return 0, 0, fmt.Errorf("pick %q: %w", s, err)
	}
	return x, y, nil
}

func run(args []string, stdout, stderr io.Writer) error {
	o, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}
	logger, done := newLogger(o, stderr)
	defer done()
	sdfatlas.SetLogger(logger)
	defer sdfatlas.SetLogger(nil)

	cfg := sdfatlas.DefaultConfig()
	if o.config != "" {
		if cfg, err = sdfatlas.LoadConfig(o.config); err != nil {
			return err
		}
	}
	if o.backend != "" {
		cfg.Backend = o.backend
	}
	s, err := sdfatlas.LoadScene(o.scene)
	if err != nil {
		return err
	}

	eng, err := sdfatlas.New(cfg)
	if err != nil {
		return err
	}
	defer eng.Close()

	ctx := context.Background()
	for i := 0; i < o.frames; i++ {
		st, err := eng.Bake(ctx, s)
		if err != nil {
			return fmt.Errorf("frame %d: %w", i, err)
		}
		fmt.Fprintf(stdout, "frame %d: %s dirty chunks in %d batches, %s objects",
			i, humanize.Comma(int64(st.Dirty)), st.Batches, humanize.Comma(int64(st.Objects)))
		if st.Specialized {
			fmt.Fprintf(stdout, ", program %016x", st.ProgramKey)
		}
		if st.Skipped > 0 || st.Truncated > 0 {
			fmt.Fprintf(stdout, " (%d chunks skipped, %d objects truncated)", st.Skipped, st.Truncated)
		}
		fmt.Fprintln(stdout)
	}

	if o.pick != "" {
		x, y, err := parsePoint(o.pick)
		if err != nil {
			return err
		}
		p, err := eng.PickPoint(x, y)
		if err != nil {
			return err
		}
		res, ok, err := p.Wait(ctx)
		switch {
		case err != nil:
			return err
		case !ok:
			fmt.Fprintf(stdout, "pick %d,%d: stale\n", x, y)
		case res.Point == nil:
			fmt.Fprintf(stdout, "pick %d,%d: nothing\n", x, y)
		default:
			pt := res.Point
			fmt.Fprintf(stdout, "pick %d,%d: object %d at (%.4g, %.4g, %.4g)\n",
				x, y, pt.Object, pt.Pos.X, pt.Pos.Y, pt.Pos.Z)
		}
	}

	fmt.Fprintln(stdout, eng.Stats())
	return nil
}
