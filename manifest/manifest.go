// Package manifest handles hostbridge.toml project configuration.
package manifest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/chazu/hostbridge/host"
)

// FileName is the manifest file looked up by Load and FindAndLoad.
const FileName = "hostbridge.toml"

// Manifest represents a hostbridge.toml project configuration.
type Manifest struct {
	Project  Project       `toml:"project"`
	Log      LogConfig     `toml:"log"`
	Run      RunConfig     `toml:"run"`
	Journal  JournalConfig `toml:"journal"`
	Inspect  InspectConfig `toml:"inspect"`
	Types    []TypeDecl    `toml:"types"`
	Objects  []ObjectDecl  `toml:"objects"`
	Contacts []ContactDecl `toml:"contacts"`

	// Dir is the directory containing the hostbridge.toml file (set at load time).
	Dir string `toml:"-"`
}

// Project contains project metadata.
type Project struct {
	Name string `toml:"name"`
}

// LogConfig configures commonlog.
type LogConfig struct {
	Verbosity int    `toml:"verbosity"`
	File      string `toml:"file"`
}

// RunConfig configures the frame driver.
type RunConfig struct {
	Frames     int `toml:"frames"`
	FixedSteps int `toml:"fixed_steps"`
}

// JournalConfig configures the dispatch journal. An empty path disables it.
type JournalConfig struct {
	Path string `toml:"path"`
}

// InspectConfig configures the inspection server. An empty address disables it.
type InspectConfig struct {
	Addr string `toml:"addr"`
}

// TypeDecl declares a dynamic type. Base names a native type or another
// declared type; Hooks lists the lifecycle methods it defines, and Private
// the subset registered as non-public.
type TypeDecl struct {
	Name    string   `toml:"name"`
	Base    string   `toml:"base"`
	Hooks   []string `toml:"hooks"`
	Private []string `toml:"private"`
}

// ObjectDecl declares a scene object and the components added to it, in order.
type ObjectDecl struct {
	Name       string   `toml:"name"`
	Components []string `toml:"components"`
}

// ContactDecl schedules a contact between two objects before the given frame.
type ContactDecl struct {
	Frame   uint64  `toml:"frame"`
	A       string  `toml:"a"`
	B       string  `toml:"b"`
	Phase   string  `toml:"phase"`
	Impulse float64 `toml:"impulse"`
}

// Default returns the manifest used when no hostbridge.toml exists.
func Default(dir string) *Manifest {
	m := &Manifest{Dir: dir}
	m.applyDefaults()
	return m
}

// Load parses a hostbridge.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	m.applyDefaults()
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", path, err)
	}
	return &m, nil
}

// FindAndLoad walks up from startDir to find a hostbridge.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

func (m *Manifest) applyDefaults() {
	if m.Project.Name == "" {
		m.Project.Name = "hostbridge"
	}
	if m.Run.Frames == 0 {
		m.Run.Frames = 3
	}
	if m.Run.FixedSteps == 0 {
		m.Run.FixedSteps = 1
	}
	for i := range m.Types {
		if m.Types[i].Base == "" {
			m.Types[i].Base = host.BehaviourType.TypeName()
		}
	}
	for i := range m.Contacts {
		if m.Contacts[i].Phase == "" {
			m.Contacts[i].Phase = host.ContactEnter.String()
		}
	}
}

// Validate checks what can be checked without a domain: names are present and
// unique, private hooks are declared hooks, contacts name declared objects
// with a known phase. Base and component names are resolved when the scene is
// built.
func (m *Manifest) Validate() error {
	var errs []error
	if m.Run.Frames < 0 {
		errs = append(errs, fmt.Errorf("run.frames must not be negative, got %d", m.Run.Frames))
	}
	if m.Run.FixedSteps < 0 {
		errs = append(errs, fmt.Errorf("run.fixed_steps must not be negative, got %d", m.Run.FixedSteps))
	}

	types := make(map[string]bool)
	for i, t := range m.Types {
		if t.Name == "" {
			errs = append(errs, fmt.Errorf("types[%d]: missing name", i))
			continue
		}
		if types[t.Name] {
			errs = append(errs, fmt.Errorf("types[%d]: duplicate type %q", i, t.Name))
		}
		types[t.Name] = true
		hooks := make(map[string]bool, len(t.Hooks))
		for _, h := range t.Hooks {
			hooks[h] = true
		}
		for _, p := range t.Private {
			if !hooks[p] {
				errs = append(errs, fmt.Errorf("type %q: private hook %q is not in hooks", t.Name, p))
			}
		}
	}

	objects := make(map[string]bool)
	for i, o := range m.Objects {
		if o.Name == "" {
			errs = append(errs, fmt.Errorf("objects[%d]: missing name", i))
			continue
		}
		if objects[o.Name] {
			errs = append(errs, fmt.Errorf("objects[%d]: duplicate object %q", i, o.Name))
		}
		objects[o.Name] = true
	}

	for i, c := range m.Contacts {
		if !objects[c.A] || !objects[c.B] {
			errs = append(errs, fmt.Errorf("contacts[%d]: unknown object in %q/%q", i, c.A, c.B))
		}
		if _, ok := host.ParseContactPhase(c.Phase); !ok {
			errs = append(errs, fmt.Errorf("contacts[%d]: unknown phase %q", i, c.Phase))
		}
	}
	return errors.Join(errs...)
}

// Resolve returns p relative to the manifest directory. Absolute and empty
// paths are returned unchanged.
func (m *Manifest) Resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(m.Dir, p)
}

// JournalPath returns the resolved journal database path, or "" if disabled.
func (m *Manifest) JournalPath() string { return m.Resolve(m.Journal.Path) }

// LogPath returns the resolved log file path, or nil for stderr.
func (m *Manifest) LogPath() *string {
	if m.Log.File == "" {
		return nil
	}
	p := m.Resolve(m.Log.File)
	return &p
}

// ContactsAt returns the contacts scheduled for the given frame, in
// declaration order.
func (m *Manifest) ContactsAt(frame uint64) []ContactDecl {
	var out []ContactDecl
	for _, c := range m.Contacts {
		if c.Frame == frame {
			out = append(out, c)
		}
	}
	return out
}
