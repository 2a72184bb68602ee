package bridge

import (
	"github.com/chazu/hostbridge/host"
	"github.com/chazu/hostbridge/wire"
)

// CaptureSnapshot records the scene's objects, their components and the
// proxies' bindings, together with every hook table in c. It must run on the
// goroutine that owns the scene.
func CaptureSnapshot(s *host.Scene, c *HookCache) *wire.Snapshot {
	snap := &wire.Snapshot{
		Version: wire.Version,
		Scene:   s.Name,
		Frame:   s.Frame(),
	}
	for _, o := range s.Objects() {
		state := wire.ObjectState{ID: o.ID, Name: o.Name, Active: o.Active()}
		for _, comp := range o.Components() {
			cs := wire.ComponentState{Enabled: o.Enabled(comp)}
			if t := o.TypeOf(comp); t != nil {
				cs.Type = t.TypeName()
			}
			if p, ok := comp.(*Proxy); ok {
				cs.Proxy = proxyState(p)
			}
			state.Components = append(state.Components, cs)
		}
		snap.Objects = append(snap.Objects, state)
	}
	if c != nil {
		for _, t := range c.Tables() {
			snap.HookTables = append(snap.HookTables, hookTableState(t))
		}
	}
	return snap
}

func proxyState(p *Proxy) *wire.ProxyState {
	ps := &wire.ProxyState{State: p.State().String()}
	if cls := p.Class(); cls != nil {
		ps.Domain = uint32(cls.Domain().ID())
		ps.TypeID = uint32(cls.ID())
		ps.Class = cls.FullName()
	}
	return ps
}

func hookTableState(t *HookTable) wire.HookTableState {
	cls := t.Class()
	hs := wire.HookTableState{
		Domain: uint32(cls.Domain().ID()),
		TypeID: uint32(cls.ID()),
		Class:  cls.FullName(),
	}
	for _, e := range t.Present() {
		hs.Hooks = append(hs.Hooks, e.String())
	}
	return hs
}
