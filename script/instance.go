package script

import "sync"

// Instance is a live object of a dynamic class. Instances are owned by their
// domain; a native proxy only references one.
type Instance struct {
	class *Class
	proxy Proxy

	mu     sync.RWMutex
	fields map[string]Value
}

func newInstance(c *Class, p Proxy) *Instance {
	return &Instance{
		class:  c,
		proxy:  p,
		fields: make(map[string]Value),
	}
}

// Class returns the instance's dynamic type.
func (inst *Instance) Class() *Class { return inst.class }

// Proxy returns the native proxy the instance was created from, or nil.
func (inst *Instance) Proxy() Proxy { return inst.proxy }

// Get returns a field value, or nil if unset.
func (inst *Instance) Get(name string) Value {
	inst.mu.RLock()
	defer inst.mu.RUnlock()
	return inst.fields[name]
}

// Set stores a field value.
func (inst *Instance) Set(name string, v Value) {
	inst.mu.Lock()
	defer inst.mu.Unlock()
	inst.fields[name] = v
}

// String implements the Stringer interface.
func (inst *Instance) String() string {
	return "a " + inst.class.FullName()
}
