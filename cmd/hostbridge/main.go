// hostbridge CLI - runs a scene whose behaviour is defined by dynamic types
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/chazu/hostbridge/bridge"
	"github.com/chazu/hostbridge/host"
	"github.com/chazu/hostbridge/journal"
	"github.com/chazu/hostbridge/manifest"
	"github.com/chazu/hostbridge/script"
	"github.com/chazu/hostbridge/server"
	"github.com/chazu/hostbridge/wire"
)

var log = commonlog.GetLogger("hostbridge")

// options are the command-line settings that override the manifest.
type options struct {
	dir      string
	frames   int
	journal  string
	serve    string
	attach   string
	snapshot string
	verbose  bool
}

func main() {
	var opts options
	flag.StringVar(&opts.dir, "C", ".", "Directory to search for hostbridge.toml (walks up)")
	flag.IntVar(&opts.frames, "frames", 0, "Frames to run (overrides run.frames)")
	flag.StringVar(&opts.journal, "journal", "", "SQLite dispatch journal path (overrides journal.path)")
	flag.StringVar(&opts.serve, "serve", "", "Serve the inspection service on addr after running (overrides inspect.addr)")
	flag.StringVar(&opts.attach, "attach", "", "Inspect the hostbridge serving on addr over gRPC instead of running a scene")
	flag.StringVar(&opts.snapshot, "snapshot", "", "Write a CBOR scene snapshot to this file")
	flag.BoolVar(&opts.verbose, "v", false, "Verbose (debug) logging")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: hostbridge [options]\n\n")
		fmt.Fprintf(os.Stderr, "Builds the scene described by hostbridge.toml, runs it for a number of frames\n")
		fmt.Fprintf(os.Stderr, "and reports which lifecycle hooks the dynamic types received.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  hostbridge                          # Run ./hostbridge.toml (or the built-in demo)\n")
		fmt.Fprintf(os.Stderr, "  hostbridge -C game -frames 10       # Run game/hostbridge.toml for 10 frames\n")
		fmt.Fprintf(os.Stderr, "  hostbridge -journal run.db          # Record every dispatch in SQLite\n")
		fmt.Fprintf(os.Stderr, "  hostbridge -snapshot scene.cbor     # Export the final scene state\n")
		fmt.Fprintf(os.Stderr, "  hostbridge -serve :7700             # Inspect over Connect/gRPC until interrupted\n")
	fmt.Fprintf(os.Stderr, "  hostbridge -attach :7700 -frames 5  # Step a served scene 5 frames and list it\n")
	}
	flag.Parse()

	cmd := run
	if opts.attach != "" {
		cmd = attach
	}
	if err := cmd(opts, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadManifest finds hostbridge.toml from dir and applies the flag overrides.
func loadManifest(opts options) (*manifest.Manifest, error) {
	m, err := manifest.FindAndLoad(opts.dir)
	if err != nil {
		return nil, err
	}
	if m == nil {
		dir, err := filepath.Abs(opts.dir)
		if err != nil {
			return nil, err
		}
		m = defaultManifest(dir)
	}

	if opts.frames > 0 {
		m.Run.Frames = opts.frames
	}
	if opts.journal != "" {
		p, err := filepath.Abs(opts.journal)
		if err != nil {
			return nil, err
		}
		m.Journal.Path = p
	}
	if opts.serve != "" {
		m.Inspect.Addr = opts.serve
	}
	if opts.verbose && m.Log.Verbosity < 2 {
		m.Log.Verbosity = 2
	}
	return m, nil
}

func run(opts options, out io.Writer) error {
	m, err := loadManifest(opts)
	if err != nil {
		return err
	}
	commonlog.Configure(m.Log.Verbosity, m.LogPath())
	log.Infof("project %q (%s)", m.Project.Name, m.Dir)

	// Domain, proxy binding and factory interception
	d := script.NewDomain(m.Project.Name)
	d.RegisterProxyBinding(host.BehaviourType, bridge.ProxyType)
	ic := bridge.NewInterceptor(d)
	if err := ic.Install(); err != nil {
		return err
	}

	// Tracing
	profiler := script.NewProfiler()
	profiler.OnHot = func(method *script.Method, _ *script.MethodProfile) {
		log.Infof("%s is hot", method)
	}
	tracers := []script.Tracer{profiler}
	var j *journal.Journal
	if path := m.JournalPath(); path != "" {
		j, err = journal.Open(path)
		if err != nil {
			return err
		}
		defer j.Close()
		tracers = append(tracers, j)
	}
	d.SetTracer(script.Tracers(tracers...))

	dm, err := buildDemo(m, d, ic)
	if err != nil {
		return err
	}
	loop := host.NewLoop(dm.scene)
	defer loop.Stop()

	for i := 0; i < m.Run.Frames; i++ {
		if _, err := loop.Do(func(s *host.Scene) any {
			if err := runFrame(s, m); err != nil {
				log.Warningf("frame %d: %s", s.Frame(), err)
			}
			return nil
		}); err != nil {
			return err
		}
	}

	if opts.snapshot != "" {
		if err := writeSnapshot(loop, opts.snapshot); err != nil {
			return err
		}
	}

	if m.Inspect.Addr != "" {
		if err := serve(loop, d, profiler, j, m.Inspect.Addr); err != nil {
			return err
		}
	}

	if _, err := loop.Do(func(s *host.Scene) any {
		teardown(s)
		return nil
	}); err != nil {
		return err
	}

	report(out, dm, j)
	return nil
}

func writeSnapshot(loop *host.Loop, path string) error {
	result, err := loop.Do(func(s *host.Scene) any {
		return bridge.CaptureSnapshot(s, bridge.DefaultCache())
	})
	if err != nil {
		return err
	}
	return saveSnapshot(result.(*wire.Snapshot), path)
}

func saveSnapshot(snap *wire.Snapshot, path string) error {
	data, err := wire.MarshalSnapshot(snap)
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}
	log.Infof("snapshot written to %s (%d bytes)", path, len(data))
	return nil
}

// serve runs the inspection server until SIGINT or SIGTERM.
func serve(loop *host.Loop, d *script.Domain, profiler *script.Profiler, j *journal.Journal, addr string) error {
	opts := []server.ServerOption{server.WithProfiler(profiler)}
	if j != nil {
		opts = append(opts, server.WithJournal(j))
	}
	srv := server.New(loop, d, opts...)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe(addr) }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		return err
	}
	return <-errc
}

// report prints the hook counts and, when journaling, the journal summary.
func report(out io.Writer, dm *demo, j *journal.Journal) {
	fmt.Fprintf(out, "%d frames, %d hook tables\n", dm.scene.Frame(), bridge.DefaultCache().Len())
	for _, key := range dm.counts.keys() {
		fmt.Fprintf(out, "  %-32s %d\n", key, dm.counts.get(key))
	}
	if j == nil {
		return
	}
	summary, err := j.Summary()
	if err != nil {
		log.Errorf("journal summary: %s", err)
		return
	}
	fmt.Fprintf(out, "journal %s:\n", j.Path())
	for _, s := range summary {
		fmt.Fprintf(out, "  %-32s %d calls, %d failed, %s\n", s.Class+"."+s.Method, s.Calls, s.Failures, s.Total)
	}
}
