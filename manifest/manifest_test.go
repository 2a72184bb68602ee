package manifest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeManifest(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[project]
name = "demo"

[log]
verbosity = 2
file = "logs/hostbridge.log"

[run]
frames = 5
fixed_steps = 2

[journal]
path = "journal.db"

[inspect]
addr = "127.0.0.1:7700"

[[types]]
name = "Spinner"
hooks = ["Awake", "Update", "OnDestroy"]
private = ["Update"]

[[types]]
name = "FastSpinner"
base = "Spinner"
hooks = ["Update"]

[[objects]]
name = "player"
components = ["Collider", "Spinner"]

[[objects]]
name = "wall"
components = ["Collider"]

[[contacts]]
frame = 1
a = "player"
b = "wall"
phase = "stay"
impulse = 1.5
`)

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if m.Project.Name != "demo" {
		t.Errorf("project name = %q, want demo", m.Project.Name)
	}
	if m.Log.Verbosity != 2 {
		t.Errorf("log verbosity = %d, want 2", m.Log.Verbosity)
	}
	if m.Run.Frames != 5 || m.Run.FixedSteps != 2 {
		t.Errorf("run = %+v, want frames 5, fixed_steps 2", m.Run)
	}
	if m.Inspect.Addr != "127.0.0.1:7700" {
		t.Errorf("inspect addr = %q", m.Inspect.Addr)
	}
	if len(m.Types) != 2 {
		t.Fatalf("types count = %d, want 2", len(m.Types))
	}
	if m.Types[0].Base != "Behaviour" {
		t.Errorf("default base = %q, want Behaviour", m.Types[0].Base)
	}
	if m.Types[1].Base != "Spinner" {
		t.Errorf("explicit base = %q, want Spinner", m.Types[1].Base)
	}
	if len(m.Objects) != 2 || len(m.Objects[0].Components) != 2 {
		t.Errorf("objects = %+v", m.Objects)
	}
	if len(m.Contacts) != 1 || m.Contacts[0].Phase != "stay" || m.Contacts[0].Impulse != 1.5 {
		t.Errorf("contacts = %+v", m.Contacts)
	}

	if got, want := m.JournalPath(), filepath.Join(m.Dir, "journal.db"); got != want {
		t.Errorf("JournalPath() = %q, want %q", got, want)
	}
	if p := m.LogPath(); p == nil || *p != filepath.Join(m.Dir, "logs", "hostbridge.log") {
		t.Errorf("LogPath() = %v", p)
	}
	if len(m.ContactsAt(1)) != 1 || len(m.ContactsAt(0)) != 0 {
		t.Error("ContactsAt should select by frame")
	}
}

func TestLoadManifestDefaults(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[[contacts]]
a = "x"
b = "y"

[[objects]]
name = "x"

[[objects]]
name = "y"
`)

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if m.Project.Name != "hostbridge" {
		t.Errorf("default name = %q, want hostbridge", m.Project.Name)
	}
	if m.Run.Frames != 3 || m.Run.FixedSteps != 1 {
		t.Errorf("default run = %+v, want frames 3, fixed_steps 1", m.Run)
	}
	if m.Contacts[0].Phase != "enter" {
		t.Errorf("default phase = %q, want enter", m.Contacts[0].Phase)
	}
	if m.JournalPath() != "" || m.LogPath() != nil || m.Inspect.Addr != "" {
		t.Error("journal, log file and inspection should default to disabled")
	}
}

func TestDefault(t *testing.T) {
	m := Default("/app")
	if m.Dir != "/app" || m.Run.Frames != 3 || m.Run.FixedSteps != 1 {
		t.Errorf("Default() = %+v", m)
	}
	if err := m.Validate(); err != nil {
		t.Errorf("Default() does not validate: %v", err)
	}
}

func TestLoadManifestInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"syntax", `[project`, "parse error"},
		{"duplicate type", `
[[types]]
name = "A"
[[types]]
name = "A"
`, `duplicate type "A"`},
		{"private not a hook", `
[[types]]
name = "A"
hooks = ["Update"]
private = ["Start"]
`, `private hook "Start"`},
		{"unknown contact object", `
[[objects]]
name = "x"
[[contacts]]
a = "x"
b = "ghost"
`, "unknown object"},
		{"bad phase", `
[[objects]]
name = "x"
[[contacts]]
a = "x"
b = "x"
phase = "bounce"
`, `unknown phase "bounce"`},
		{"negative frames", `
[run]
frames = -1
`, "run.frames"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeManifest(t, dir, tt.content)
			_, err := Load(dir)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Load error = %v, want it to mention %q", err, tt.want)
			}
		})
	}
}

func TestFindAndLoad(t *testing.T) {
	// Create nested directory structure
	dir := t.TempDir()
	subDir := filepath.Join(dir, "a", "b", "c")
	if err := os.MkdirAll(subDir, 0755); err != nil {
		t.Fatal(err)
	}
	writeManifest(t, dir, `[project]
name = "found-project"
`)

	// Should find manifest when starting from a deep subdirectory
	m, err := FindAndLoad(subDir)
	if err != nil {
		t.Fatalf("FindAndLoad failed: %v", err)
	}
	if m == nil {
		t.Fatal("FindAndLoad returned nil")
	}
	if m.Project.Name != "found-project" {
		t.Errorf("project name = %q, want found-project", m.Project.Name)
	}
}

func TestFindAndLoadNotFound(t *testing.T) {
	dir := t.TempDir()
	m, err := FindAndLoad(dir)
	if err != nil {
		t.Fatalf("FindAndLoad error: %v", err)
	}
	if m != nil {
		t.Error("expected nil manifest when no hostbridge.toml exists")
	}
}

func TestResolve(t *testing.T) {
	m := &Manifest{Dir: "/app"}
	tests := []struct{ in, want string }{
		{"", ""},
		{"journal.db", "/app/journal.db"},
		{"/var/lib/j.db", "/var/lib/j.db"},
	}
	for _, tt := range tests {
		if got := m.Resolve(tt.in); got != tt.want {
			t.Errorf("Resolve(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
