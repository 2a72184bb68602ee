// Package script is the dynamic type system that embedded behaviour is
// written against: domains, classes, methods and instances.
//
// A Domain is an isolated type space. It issues stable integer handles for
// its classes, resolves methods through selector-indexed method tables, invokes
// them, and keeps two tables the host bridge relies on: proxy bindings (which
// native component type stands in for classes derived from a given native
// base) and native-method overrides (which Go function runs when dynamic code
// calls a given native operation).
package script

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tliron/commonlog"

	"github.com/chazu/hostbridge/host"
)

var log = commonlog.GetLogger("hostbridge.script")

var (
	ErrClassExists    = errors.New("script: class already defined")
	ErrNoBase         = errors.New("script: class needs a base type")
	ErrForeignClass   = errors.New("script: class belongs to another domain")
	ErrArity          = errors.New("script: wrong number of arguments")
	ErrNilReceiver    = errors.New("script: instance method invoked without a receiver")
	ErrWrongReceiver  = errors.New("script: receiver does not understand method")
	ErrNilProxy       = errors.New("script: nil proxy")
	ErrNoBinding      = errors.New("script: no binding for native method")
	ErrOverrideExists = errors.New("script: native method already overridden")
)

// DomainID identifies a domain for the lifetime of the process.
type DomainID uint32

var lastDomainID atomic.Uint32

// Proxy is a native object that stands in for a dynamic instance inside the
// host. InitializeProxy links it to the instance once both exist.
type Proxy interface {
	InitializeProxy(d *Domain, inst *Instance) error
}

// Domain is an isolated set of classes plus the bindings that connect them to
// the host.
type Domain struct {
	id        DomainID
	name      string
	selectors *selectorTable

	mu        sync.RWMutex
	classes   map[string]*Class
	byID      []*Class // indexed by TypeID; slot 0 unused
	bindings  map[*host.NativeType]*host.NativeType
	overrides map[MethodKey]OverrideFunc
	tracer    Tracer
}

// NewDomain creates an empty domain with a fresh DomainID.
func NewDomain(name string) *Domain {
	d := &Domain{
		id:        DomainID(lastDomainID.Add(1)),
		name:      name,
		selectors: newSelectorTable(),
		classes:   make(map[string]*Class),
		byID:      make([]*Class, 1, 16),
		bindings:  make(map[*host.NativeType]*host.NativeType),
		overrides: make(map[MethodKey]OverrideFunc),
	}
	log.Debugf("domain %q created (id %d)", name, d.id)
	return d
}

// ID returns the domain's process-wide identifier.
func (d *Domain) ID() DomainID { return d.id }

// Name returns the domain name.
func (d *Domain) Name() string { return d.name }

// Selector returns the handle for a method name, issuing one on first use.
// Callers that resolve the same names against many classes keep the handles
// and use Class.MethodBySelector.
func (d *Domain) Selector(name string) Selector { return d.selectors.intern(name) }

// SetTracer installs the tracer that observes every Invoke. Pass nil to
// disable tracing.
func (d *Domain) SetTracer(t Tracer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tracer = t
}

// ---------------------------------------------------------------------------
// Classes
// ---------------------------------------------------------------------------

// DefineClass declares a class. The name may be namespace-qualified
// ("Game::Spinner"). base is a class of this domain or a native host type.
func (d *Domain) DefineClass(name string, base host.Type) (*Class, error) {
	if base == nil {
		return nil, fmt.Errorf("define %s: %w", name, ErrNoBase)
	}
	if nt, ok := base.(*host.NativeType); ok && nt == nil {
		return nil, fmt.Errorf("define %s: %w", name, ErrNoBase)
	}
	if super, ok := base.(*Class); ok && super == nil {
		return nil, fmt.Errorf("define %s: %w", name, ErrNoBase)
	}

	c := &Class{domain: d}
	if i := strings.LastIndex(name, "::"); i >= 0 {
		c.namespace, c.name = name[:i], name[i+2:]
	} else {
		c.name = name
	}
	if super, ok := base.(*Class); ok {
		if super.domain != d {
			return nil, fmt.Errorf("define %s: base %s: %w", name, super, ErrForeignClass)
		}
		c.super = super
	} else {
		c.native = base
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	key := c.FullName()
	if _, exists := d.classes[key]; exists {
		return nil, fmt.Errorf("define %s: %w", key, ErrClassExists)
	}
	c.id = TypeID(len(d.byID))
	d.byID = append(d.byID, c)
	d.classes[key] = c

	log.Debugf("class %s defined in %q as type %d", key, d.name, c.id)
	return c, nil
}

// Lookup finds a class by fully qualified name.
func (d *Domain) Lookup(name string) *Class {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.classes[name]
}

// ClassByID finds a class by handle.
func (d *Domain) ClassByID(id TypeID) *Class {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if id == 0 || int(id) >= len(d.byID) {
		return nil
	}
	return d.byID[id]
}

// Classes returns all classes in definition order.
func (d *Domain) Classes() []*Class {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]*Class, len(d.byID)-1)
	copy(out, d.byID[1:])
	return out
}

// IsDynamic reports whether a host type is backed by a class of this domain.
func (d *Domain) IsDynamic(t host.Type) (*Class, bool) {
	c, ok := t.(*Class)
	if !ok || c == nil || c.domain != d {
		return nil, false
	}
	return c, true
}

// ---------------------------------------------------------------------------
// Proxy bindings
// ---------------------------------------------------------------------------

// RegisterProxyBinding declares that classes deriving from the native type
// base are represented in the host by instances of proxy.
func (d *Domain) RegisterProxyBinding(base, proxy *host.NativeType) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.bindings[base] = proxy
	log.Debugf("proxy binding %s -> %s in %q", base, proxy, d.name)
}

// ProxyBindingFor walks t and its ancestors and returns the proxy type bound
// to the nearest native one that has a binding.
func (d *Domain) ProxyBindingFor(t host.Type) (*host.NativeType, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for current := t; current != nil; current = current.BaseType() {
		nt, ok := current.(*host.NativeType)
		if !ok {
			continue
		}
		if proxy, ok := d.bindings[nt]; ok {
			return proxy, true
		}
	}
	return nil, false
}

// ---------------------------------------------------------------------------
// Instances and invocation
// ---------------------------------------------------------------------------

// CreateInstanceFromProxy creates an instance of c linked to an existing
// native proxy, then asks the proxy to bind to it. An error from the bind is
// returned as is.
func (d *Domain) CreateInstanceFromProxy(c *Class, p Proxy) (*Instance, error) {
	if c == nil || c.domain != d {
		return nil, fmt.Errorf("create %v: %w", c, ErrForeignClass)
	}
	if p == nil {
		return nil, fmt.Errorf("create %s: %w", c, ErrNilProxy)
	}
	inst := newInstance(c, p)
	if err := p.InitializeProxy(d, inst); err != nil {
		return nil, err
	}
	return inst, nil
}

// NewInstance creates an instance of c with no native proxy.
func (d *Domain) NewInstance(c *Class) (*Instance, error) {
	if c == nil || c.domain != d {
		return nil, fmt.Errorf("create %v: %w", c, ErrForeignClass)
	}
	return newInstance(c, nil), nil
}

// Invoke runs m on inst. Errors returned by the method are passed through
// unchanged; panics are not recovered.
func (d *Domain) Invoke(inst *Instance, m *Method, args []Value) (Value, error) {
	if !m.static {
		if inst == nil {
			return nil, fmt.Errorf("invoke %s: %w", m, ErrNilReceiver)
		}
		if !inst.class.IsSubclassOf(m.owner) {
			return nil, fmt.Errorf("invoke %s on %s: %w", m, inst.class, ErrWrongReceiver)
		}
	}
	if m.arity >= 0 && len(args) != m.arity {
		return nil, fmt.Errorf("invoke %s: %w: want %d, got %d", m, ErrArity, m.arity, len(args))
	}

	d.mu.RLock()
	tracer := d.tracer
	d.mu.RUnlock()

	if tracer == nil {
		return m.fn(inst, args)
	}

	start := time.Now()
	result, err := m.fn(inst, args)
	rec := InvokeRecord{
		Domain:   d.id,
		Method:   m,
		Receiver: inst,
		Start:    start,
		Duration: time.Since(start),
		Err:      err,
	}
	tracer.TraceInvoke(rec)
	return result, err
}

// ---------------------------------------------------------------------------
// Native method overrides
// ---------------------------------------------------------------------------

// MethodKey identifies a native operation by declaring type, name and
// argument shape.
type MethodKey struct {
	Declaring string
	Name      string
	Args      string
}

// Key builds a MethodKey. args are the argument type names in order.
func Key(declaring, name string, args ...string) MethodKey {
	return MethodKey{Declaring: declaring, Name: name, Args: strings.Join(args, ",")}
}

func (k MethodKey) String() string {
	return fmt.Sprintf("%s.%s(%s)", k.Declaring, k.Name, k.Args)
}

// OverrideFunc replaces a native operation when called from dynamic code.
type OverrideFunc func(d *Domain, key MethodKey, receiver any, args []Value) (Value, error)

// BindOverride installs fn for key. Each key may be bound once.
func (d *Domain) BindOverride(key MethodKey, fn OverrideFunc) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.overrides[key]; exists {
		return fmt.Errorf("bind %s: %w", key, ErrOverrideExists)
	}
	d.overrides[key] = fn
	log.Debugf("override bound for %s in %q", key, d.name)
	return nil
}

// Overrides returns the bound keys in sorted order.
func (d *Domain) Overrides() []MethodKey {
	d.mu.RLock()
	defer d.mu.RUnlock()
	keys := make([]MethodKey, 0, len(d.overrides))
	for k := range d.overrides {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	return keys
}

// CallNative is how dynamic code reaches a native operation. If an override
// is bound for key it runs in place of the native operation.
func (d *Domain) CallNative(key MethodKey, receiver any, args []Value) (Value, error) {
	d.mu.RLock()
	fn, ok := d.overrides[key]
	d.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("call %s: %w", key, ErrNoBinding)
	}
	return fn(d, key, receiver, args)
}
