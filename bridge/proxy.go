package bridge

import (
	"errors"
	"fmt"

	"github.com/chazu/hostbridge/host"
	"github.com/chazu/hostbridge/script"
)

var (
	ErrNilInstance    = errors.New("bridge: proxy bound without a domain or instance")
	ErrAlreadyBound   = errors.New("bridge: proxy already bound")
	ErrProxyDestroyed = errors.New("bridge: proxy destroyed")
)

// State is the binding state of a Proxy.
type State uint8

const (
	Unbound State = iota
	Bound
	Destroyed
)

var stateNames = [...]string{"unbound", "bound", "destroyed"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", s)
}

// ProxyType is the native component type that represents dynamic instances
// deriving from host.BehaviourType.
var ProxyType = host.NewNativeType("BehaviourProxy", host.BehaviourType, func() host.Component {
	return &Proxy{}
})

// Proxy is the native stand-in for one dynamic instance.
//
// The host creates a proxy and starts issuing callbacks before the dynamic
// instance exists, so a new proxy is Unbound and swallows them. Binding
// replays Awake and OnEnable on the instance, after which every callback is
// forwarded through the type's hook table. After OnDestroy the proxy ignores
// everything.
type Proxy struct {
	host.ComponentBase

	state    State
	domain   *script.Domain
	class    *script.Class
	instance *script.Instance
	hooks    *HookTable
	awoken   bool
}

var _ script.Proxy = (*Proxy)(nil)

// State returns the binding state.
func (p *Proxy) State() State { return p.state }

// Domain returns the domain the proxy is bound in, or nil.
func (p *Proxy) Domain() *script.Domain { return p.domain }

// Class returns the bound dynamic type. It is retained after destruction.
func (p *Proxy) Class() *script.Class { return p.class }

// Instance returns the bound instance, or nil when not Bound.
func (p *Proxy) Instance() *script.Instance { return p.instance }

// Hooks returns the shared hook table, or nil when never bound.
func (p *Proxy) Hooks() *HookTable { return p.hooks }

// InitializeProxy binds the proxy to inst and replays the initialize and
// enable hooks the host issued before the instance existed. The first hook
// failure is returned unchanged; the proxy stays Bound.
//
// The replay does not look at the object's state. On an inactive object the
// host has issued neither callback yet, so activating the object later wakes
// the proxy (dropped, Awake already ran) and enables it again: the instance
// sees OnEnable twice with no OnDisable in between.
func (p *Proxy) InitializeProxy(d *script.Domain, inst *script.Instance) error {
	switch {
	case d == nil || inst == nil:
		return ErrNilInstance
	case p.state == Bound:
		return fmt.Errorf("bind %s: %w", inst, ErrAlreadyBound)
	case p.state == Destroyed:
		return fmt.Errorf("bind %s: %w", inst, ErrProxyDestroyed)
	}

	p.domain = d
	p.class = inst.Class()
	p.instance = inst
	p.hooks = DefaultCache().GetOrBuild(p.class)
	p.state = Bound
	log.Debugf("proxy on %v bound to %s", p.Object(), p.class.Describe())

	p.awoken = true
	if err := p.dispatch(EventAwake, nil); err != nil {
		return err
	}
	return p.dispatch(EventEnable, nil)
}

// dispatch invokes the hook for e if the proxy is Bound and the type defines
// one. arg, when non-nil, is passed to hooks that accept an argument.
func (p *Proxy) dispatch(e Event, arg script.Value) error {
	if p.state != Bound {
		return nil
	}
	m := p.hooks.Hook(e)
	if m == nil {
		return nil
	}
	var args []script.Value
	if arg != nil && m.Arity() != 0 {
		args = []script.Value{arg}
	}
	_, err := p.domain.Invoke(p.instance, m, args)
	return err
}

func (p *Proxy) contact(e Event, c *host.Collision) error {
	if p.state != Bound {
		return nil
	}
	return p.dispatch(e, p.domain.ToValue(c))
}

// Awake implements host.Awaker. The initialize hook runs once per instance:
// when the host wakes a proxy on an inactive object after binding already
// replayed Awake, the host's call is dropped.
func (p *Proxy) Awake() error {
	if p.awoken {
		return nil
	}
	return p.dispatch(EventAwake, nil)
}

// Start implements host.Starter.
func (p *Proxy) Start() error { return p.dispatch(EventStart, nil) }

// OnEnable implements host.Enabler.
func (p *Proxy) OnEnable() error { return p.dispatch(EventEnable, nil) }

// OnDisable implements host.Disabler.
func (p *Proxy) OnDisable() error { return p.dispatch(EventDisable, nil) }

// Update implements host.Updater.
func (p *Proxy) Update() error { return p.dispatch(EventUpdate, nil) }

// LateUpdate implements host.LateUpdater.
func (p *Proxy) LateUpdate() error { return p.dispatch(EventLateUpdate, nil) }

// FixedUpdate implements host.FixedUpdater.
func (p *Proxy) FixedUpdate() error { return p.dispatch(EventFixedUpdate, nil) }

// OnCollisionEnter implements host.CollisionEnterer.
func (p *Proxy) OnCollisionEnter(c *host.Collision) error {
	return p.contact(EventCollisionEnter, c)
}

// OnCollisionStay implements host.CollisionStayer.
func (p *Proxy) OnCollisionStay(c *host.Collision) error {
	return p.contact(EventCollisionStay, c)
}

// OnCollisionExit implements host.CollisionExiter.
func (p *Proxy) OnCollisionExit(c *host.Collision) error {
	return p.contact(EventCollisionExit, c)
}

// OnDestroy implements host.Destroyer. A Bound proxy runs the teardown hook;
// in every state the proxy becomes Destroyed and drops its instance.
func (p *Proxy) OnDestroy() error {
	if p.state == Destroyed {
		return nil
	}
	err := p.dispatch(EventDestroy, nil)
	p.state = Destroyed
	p.instance = nil
	log.Debugf("proxy on %v destroyed (%v)", p.Object(), p.class)
	return err
}
