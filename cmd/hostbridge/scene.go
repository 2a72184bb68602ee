package main

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/chazu/hostbridge/bridge"
	"github.com/chazu/hostbridge/host"
	"github.com/chazu/hostbridge/manifest"
	"github.com/chazu/hostbridge/script"
)

// hookCounter counts hook invocations by "Class.Hook".
type hookCounter struct {
	mu     sync.Mutex
	counts map[string]int
}

func newHookCounter() *hookCounter {
	return &hookCounter{counts: make(map[string]int)}
}

func (hc *hookCounter) inc(key string) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	hc.counts[key]++
}

func (hc *hookCounter) get(key string) int {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	return hc.counts[key]
}

// keys returns the counted keys in sorted order.
func (hc *hookCounter) keys() []string {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	out := make([]string, 0, len(hc.counts))
	for k := range hc.counts {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// demo is a scene built from a manifest.
type demo struct {
	domain      *script.Domain
	interceptor *bridge.Interceptor
	natives     *host.TypeRegistry
	scene       *host.Scene
	counts      *hookCounter
}

// defaultManifest describes the scene run when no hostbridge.toml is found.
func defaultManifest(dir string) *manifest.Manifest {
	m := manifest.Default(dir)
	m.Project.Name = "demo"
	m.Types = []manifest.TypeDecl{
		{Name: "Spinner", Base: "Behaviour", Hooks: []string{"Awake", "OnEnable", "Start", "Update", "OnDestroy"}, Private: []string{"Update"}},
		{Name: "Bumper", Base: "Spinner", Hooks: []string{"OnCollisionEnter", "OnCollisionExit"}},
	}
	m.Objects = []manifest.ObjectDecl{
		{Name: "player", Components: []string{"Collider", "Bumper"}},
		{Name: "wall", Components: []string{"Collider", "Spinner"}},
	}
	m.Contacts = []manifest.ContactDecl{
		{Frame: 1, A: "player", B: "wall", Phase: "enter", Impulse: 1},
		{Frame: 2, A: "player", B: "wall", Phase: "exit"},
	}
	return m
}

// buildDemo defines the manifest's types in d and builds its scene, adding
// every component through the interceptor.
func buildDemo(m *manifest.Manifest, d *script.Domain, ic *bridge.Interceptor, opts ...host.SceneOption) (*demo, error) {
	dm := &demo{
		domain:      d,
		interceptor: ic,
		natives:     host.NewTypeRegistry(),
		counts:      newHookCounter(),
	}
	dm.natives.Register(bridge.ProxyType)

	for _, decl := range m.Types {
		if err := dm.defineType(decl); err != nil {
			return nil, err
		}
	}

	opts = append([]host.SceneOption{host.WithFixedSteps(m.Run.FixedSteps)}, opts...)
	dm.scene = host.NewScene(m.Project.Name, opts...)
	for _, od := range m.Objects {
		o := dm.scene.NewObject(od.Name)
		for _, name := range od.Components {
			t, err := dm.resolveType(name)
			if err != nil {
				return nil, fmt.Errorf("object %q: %w", od.Name, err)
			}
			if _, err := ic.AddComponent(o, t); err != nil {
				return nil, fmt.Errorf("object %q: add %s: %w", od.Name, name, err)
			}
		}
	}
	return dm, nil
}

// resolveType finds a dynamic type of the domain, then a native type.
func (dm *demo) resolveType(name string) (host.Type, error) {
	if c := dm.domain.Lookup(name); c != nil {
		return c, nil
	}
	if t, ok := dm.natives.Lookup(name); ok {
		return t, nil
	}
	return nil, fmt.Errorf("unknown type %q", name)
}

// defineType declares a dynamic type whose hooks log and count each call.
func (dm *demo) defineType(decl manifest.TypeDecl) error {
	base, err := dm.resolveType(decl.Base)
	if err != nil {
		return fmt.Errorf("type %q: base: %w", decl.Name, err)
	}
	cls, err := dm.domain.DefineClass(decl.Name, base)
	if err != nil {
		return err
	}

	private := make(map[string]bool, len(decl.Private))
	for _, p := range decl.Private {
		private[p] = true
	}
	for _, hook := range decl.Hooks {
		e, ok := bridge.ParseEvent(hook)
		if !ok {
			return fmt.Errorf("type %q: unknown hook %q", decl.Name, hook)
		}
		vis := script.Public
		if private[hook] {
			vis = script.Private
		}
		arity := 0
		switch e {
		case bridge.EventCollisionEnter, bridge.EventCollisionStay, bridge.EventCollisionExit:
			arity = 1
		}
		cls.AddMethod(hook, vis, arity, dm.countingHook(cls.FullName()+"."+hook))
	}
	log.Debugf("defined %s", cls.Describe())
	return nil
}

func (dm *demo) countingHook(key string) script.Func {
	return func(self *script.Instance, args []script.Value) (script.Value, error) {
		dm.counts.inc(key)
		if len(args) == 1 {
			if c, ok := script.As[*host.Collision](args[0]); ok {
				log.Infof("%s: %s touched %s (%s, impulse %.2f)", key, c.Object, c.Other, c.Phase, c.Impulse)
				return nil, nil
			}
		}
		log.Debugf("%s on %s", key, self)
		return nil, nil
	}
}

// runFrame delivers the contacts scheduled for the current frame and ticks.
// It runs on the loop goroutine.
func runFrame(s *host.Scene, m *manifest.Manifest) error {
	var errs []error
	for _, c := range m.ContactsAt(s.Frame()) {
		a, b := s.Find(c.A), s.Find(c.B)
		if a == nil || b == nil {
			errs = append(errs, fmt.Errorf("contact %s/%s: object not in scene", c.A, c.B))
			continue
		}
		phase, _ := host.ParseContactPhase(c.Phase)
		if err := s.Contact(a, b, phase, c.Impulse); err != nil {
			errs = append(errs, err)
		}
	}
	if err := s.Tick(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// teardown destroys every object so the OnDestroy hooks run.
func teardown(s *host.Scene) {
	for _, o := range s.Objects() {
		s.Destroy(o)
	}
}
