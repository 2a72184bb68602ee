package bridge

import (
	"errors"
	"fmt"

	"github.com/chazu/hostbridge/host"
	"github.com/chazu/hostbridge/script"
)

var (
	ErrInvalidProxyBase = errors.New("bridge: no behaviour proxy bound for the type's native base")
	ErrBadArguments     = errors.New("bridge: bad arguments")
)

// Native operations the interceptor takes over when called from dynamic code.
var (
	AddComponentKey = script.Key("Object", "AddComponent", "Type")
	GetComponentKey = script.Key("Object", "GetComponent", "Type")
)

// Interceptor redirects the host's type-parameterized component factory
// operations. Native types take the host's own path; dynamic types are
// materialized as a proxy plus a bound instance.
type Interceptor struct {
	domain *script.Domain
}

// NewInterceptor creates an interceptor for classes of d.
func NewInterceptor(d *script.Domain) *Interceptor {
	return &Interceptor{domain: d}
}

// Domain returns the domain whose classes are intercepted.
func (ic *Interceptor) Domain() *script.Domain { return ic.domain }

// AddComponent attaches a component of type t to o. For a native type the
// result is the host component. For a dynamic type it is the bound
// *script.Instance; its proxy is reachable through the instance.
func (ic *Interceptor) AddComponent(o *host.Object, t host.Type) (any, error) {
	cls, ok := ic.domain.IsDynamic(t)
	if !ok {
		return o.AddComponent(t)
	}

	proxyType, ok := ic.domain.ProxyBindingFor(cls.BaseType())
	if !ok || !host.IsSubtype(proxyType, host.BehaviourType) {
		return nil, fmt.Errorf("add %s to %q: %w", cls, o.Name, ErrInvalidProxyBase)
	}

	c, err := o.AddComponent(proxyType)
	if err != nil {
		return nil, err
	}
	proxy, ok := c.(script.Proxy)
	if !ok {
		o.DestroyComponent(c)
		return nil, fmt.Errorf("add %s to %q: %s is not a proxy: %w", cls, o.Name, proxyType, ErrInvalidProxyBase)
	}

	inst, err := ic.domain.CreateInstanceFromProxy(cls, proxy)
	if err != nil {
		return nil, err
	}
	log.Debugf("added %s to %q", cls, o.Name)
	return inst, nil
}

// GetComponent finds a component of type t on o. Dynamic types match bound
// proxies whose class is exactly t; subclasses do not match.
func (ic *Interceptor) GetComponent(o *host.Object, t host.Type) (any, bool) {
	cls, ok := ic.domain.IsDynamic(t)
	if !ok {
		c := o.GetComponent(t)
		return c, c != nil
	}
	for _, c := range o.Components() {
		p, ok := c.(*Proxy)
		if !ok || p.State() != Bound {
			continue
		}
		if p.Class() == cls {
			return p.Instance(), true
		}
	}
	return nil, false
}

// Install binds AddComponent and GetComponent as native-method overrides in
// the interceptor's domain, so dynamic code reaching them through
// Domain.CallNative is intercepted.
func (ic *Interceptor) Install() error {
	return errors.Join(
		ic.domain.BindOverride(AddComponentKey, ic.addOverride),
		ic.domain.BindOverride(GetComponentKey, ic.getOverride),
	)
}

func (ic *Interceptor) addOverride(d *script.Domain, key script.MethodKey, receiver any, args []script.Value) (script.Value, error) {
	o, t, err := factoryArgs(key, receiver, args)
	if err != nil {
		return nil, err
	}
	result, err := ic.AddComponent(o, t)
	if err != nil {
		return nil, err
	}
	return d.ToValue(result), nil
}

func (ic *Interceptor) getOverride(d *script.Domain, key script.MethodKey, receiver any, args []script.Value) (script.Value, error) {
	o, t, err := factoryArgs(key, receiver, args)
	if err != nil {
		return nil, err
	}
	result, ok := ic.GetComponent(o, t)
	if !ok {
		return nil, nil
	}
	return d.ToValue(result), nil
}

// factoryArgs unpacks the receiver object and the single type argument,
// unwrapping Foreign values.
func factoryArgs(key script.MethodKey, receiver any, args []script.Value) (*host.Object, host.Type, error) {
	o, ok := script.As[*host.Object](receiver)
	if !ok || o == nil {
		return nil, nil, fmt.Errorf("%s: receiver %T: %w", key, receiver, ErrBadArguments)
	}
	if len(args) != 1 {
		return nil, nil, fmt.Errorf("%s: want 1 argument, got %d: %w", key, len(args), ErrBadArguments)
	}
	t, ok := script.As[host.Type](args[0])
	if !ok || t == nil {
		return nil, nil, fmt.Errorf("%s: argument %T is not a type: %w", key, args[0], ErrBadArguments)
	}
	return o, t, nil
}
