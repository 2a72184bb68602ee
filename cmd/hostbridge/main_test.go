package main

import (
	"bytes"
	"context"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/chazu/hostbridge/bridge"
	"github.com/chazu/hostbridge/host"
	"github.com/chazu/hostbridge/manifest"
	"github.com/chazu/hostbridge/script"
	"github.com/chazu/hostbridge/server"
	"github.com/chazu/hostbridge/wire"
)

func newDemoDomain(t *testing.T) (*script.Domain, *bridge.Interceptor) {
	t.Helper()
	d := script.NewDomain(t.Name())
	d.RegisterProxyBinding(host.BehaviourType, bridge.ProxyType)
	return d, bridge.NewInterceptor(d)
}

func TestDefaultDemoHookCounts(t *testing.T) {
	d, ic := newDemoDomain(t)
	m := defaultManifest(t.TempDir())
	if err := m.Validate(); err != nil {
		t.Fatalf("default manifest invalid: %v", err)
	}

	dm, err := buildDemo(m, d, ic)
	if err != nil {
		t.Fatalf("buildDemo: %v", err)
	}
	for i := 0; i < m.Run.Frames; i++ {
		if err := runFrame(dm.scene, m); err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
	}
	teardown(dm.scene)

	// Bumper inherits Spinner's public hooks but not its private Update.
	want := map[string]int{
		"Spinner.Awake":           2,
		"Spinner.OnEnable":        2,
		"Spinner.Start":           2,
		"Spinner.Update":          3,
		"Spinner.OnDestroy":       2,
		"Bumper.OnCollisionEnter": 1,
		"Bumper.OnCollisionExit":  1,
	}
	for key, n := range want {
		if got := dm.counts.get(key); got != n {
			t.Errorf("%s = %d, want %d", key, got, n)
		}
	}
	if len(dm.counts.keys()) != len(want) {
		t.Errorf("counted hooks = %v", dm.counts.keys())
	}
}

func TestBuildDemoErrors(t *testing.T) {
	tests := []struct {
		name string
		edit func(m *manifest.Manifest)
		want string
	}{
		{"unknown base", func(m *manifest.Manifest) {
			m.Types = []manifest.TypeDecl{{Name: "A", Base: "Nope"}}
		}, `unknown type "Nope"`},
		{"unknown hook", func(m *manifest.Manifest) {
			m.Types = []manifest.TypeDecl{{Name: "A", Base: "Behaviour", Hooks: []string{"OnGUI"}}}
		}, `unknown hook "OnGUI"`},
		{"unknown component", func(m *manifest.Manifest) {
			m.Objects = []manifest.ObjectDecl{{Name: "o", Components: []string{"Rigidbody"}}}
		}, `unknown type "Rigidbody"`},
		{"collider-derived type has no proxy", func(m *manifest.Manifest) {
			m.Types = []manifest.TypeDecl{{Name: "Trigger", Base: "Collider"}}
			m.Objects = []manifest.ObjectDecl{{Name: "o", Components: []string{"Trigger"}}}
		}, "no behaviour proxy"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, ic := newDemoDomain(t)
			m := manifest.Default(t.TempDir())
			tt.edit(m)
			_, err := buildDemo(m, d, ic)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("buildDemo error = %v, want it to mention %q", err, tt.want)
			}
		})
	}
}

func TestRunFrameMissingContactObject(t *testing.T) {
	d, ic := newDemoDomain(t)
	m := manifest.Default(t.TempDir())
	m.Objects = []manifest.ObjectDecl{{Name: "o", Components: []string{"Collider"}}}
	m.Contacts = []manifest.ContactDecl{{Frame: 0, A: "o", B: "ghost", Phase: "enter"}}

	dm, err := buildDemo(m, d, ic)
	if err != nil {
		t.Fatalf("buildDemo: %v", err)
	}
	if err := runFrame(dm.scene, m); err == nil || !strings.Contains(err.Error(), "ghost") {
		t.Errorf("runFrame error = %v, want missing object", err)
	}
	if dm.scene.Frame() != 1 {
		t.Errorf("frame = %d, want the tick to run anyway", dm.scene.Frame())
	}
}

func TestRun(t *testing.T) {
	dir := t.TempDir()
	toml := `
[project]
name = "run-test"

[run]
frames = 2

[[types]]
name = "Ticker"
hooks = ["Update", "OnDestroy"]

[[objects]]
name = "clock"
components = ["Ticker"]
`
	if err := os.WriteFile(filepath.Join(dir, manifest.FileName), []byte(toml), 0644); err != nil {
		t.Fatal(err)
	}
	snapshot := filepath.Join(dir, "scene.cbor")
	journalPath := filepath.Join(dir, "journal.db")

	var out bytes.Buffer
	err := run(options{dir: dir, frames: 4, snapshot: snapshot, journal: journalPath}, &out)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	report := out.String()
	for _, want := range []string{"4 frames", "Ticker.Update", "Ticker.OnDestroy", "journal "} {
		if !strings.Contains(report, want) {
			t.Errorf("report missing %q:\n%s", want, report)
		}
	}

	data, err := os.ReadFile(snapshot)
	if err != nil {
		t.Fatalf("reading snapshot: %v", err)
	}
	snap, err := wire.UnmarshalSnapshot(data)
	if err != nil {
		t.Fatalf("UnmarshalSnapshot: %v", err)
	}
	if snap.Scene != "run-test" || snap.Frame != 4 || len(snap.Objects) != 1 {
		t.Errorf("snapshot = %+v", snap)
	}
	if ps := snap.Objects[0].Components[0].Proxy; ps == nil || ps.Class != "Ticker" || ps.State != "bound" {
		t.Errorf("proxy state = %+v", ps)
	}
}

func TestAttach(t *testing.T) {
	d, ic := newDemoDomain(t)
	dm, err := buildDemo(defaultManifest(t.TempDir()), d, ic)
	if err != nil {
		t.Fatalf("buildDemo: %v", err)
	}
	loop := host.NewLoop(dm.scene)
	defer loop.Stop()

	srv := server.New(loop, d)
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(l) }()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Stop(ctx)
		if err := <-errc; err != nil {
			t.Errorf("Serve: %v", err)
		}
	}()

	snapshot := filepath.Join(t.TempDir(), "remote.cbor")
	var out bytes.Buffer
	if err := attach(options{attach: l.Addr().String(), frames: 2, snapshot: snapshot}, &out); err != nil {
		t.Fatalf("attach: %v", err)
	}

	report := out.String()
	for _, want := range []string{
		"scene demo at frame 2",
		"player: Collider, BehaviourProxy(Bumper, bound)",
		"wall: Collider, BehaviourProxy(Spinner, bound)",
	} {
		if !strings.Contains(report, want) {
			t.Errorf("attach output missing %q:\n%s", want, report)
		}
	}
	if n := dm.counts.get("Spinner.Update"); n != 2 {
		t.Errorf("Spinner.Update ran %d times on the served scene, want 2", n)
	}

	data, err := os.ReadFile(snapshot)
	if err != nil {
		t.Fatalf("reading snapshot: %v", err)
	}
	snap, err := wire.UnmarshalSnapshot(data)
	if err != nil {
		t.Fatalf("UnmarshalSnapshot: %v", err)
	}
	if snap.Frame != 2 || len(snap.Objects) != 2 {
		t.Errorf("snapshot = %+v", snap)
	}
}
