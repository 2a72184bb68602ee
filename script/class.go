package script

import (
	"fmt"

	"github.com/chazu/hostbridge/host"
)

// TypeID is the stable integer handle a domain issues for each class.
// IDs start at 1; 0 never names a class.
type TypeID uint32

// Class is a dynamic type. A class derives either from another class of the
// same domain or directly from a native host type, so it takes part in the
// host's type hierarchy through host.Type.
type Class struct {
	id        TypeID
	name      string
	namespace string
	domain    *Domain
	super     *Class
	native    host.Type

	instanceMethods methodTable
	staticMethods   methodTable
}

// ID returns the class's handle within its domain.
func (c *Class) ID() TypeID { return c.id }

// Domain returns the owning domain.
func (c *Class) Domain() *Domain { return c.domain }

// Name returns the class name without namespace.
func (c *Class) Name() string { return c.name }

// FullName returns the fully qualified class name (namespace::name or just name).
func (c *Class) FullName() string {
	if c.namespace == "" {
		return c.name
	}
	return c.namespace + "::" + c.name
}

// String implements the Stringer interface.
func (c *Class) String() string { return c.FullName() }

// TypeName implements host.Type.
func (c *Class) TypeName() string { return c.FullName() }

// BaseType implements host.Type. The base of a root class is the native
// type it was declared on.
func (c *Class) BaseType() host.Type {
	if c.super != nil {
		return c.super
	}
	return c.native
}

// Superclass returns the dynamic superclass, or nil if c derives directly
// from a native type.
func (c *Class) Superclass() *Class { return c.super }

// NativeBase returns the nearest native ancestor.
func (c *Class) NativeBase() host.Type {
	root := c
	for root.super != nil {
		root = root.super
	}
	return root.native
}

// IsSubclassOf returns true if c is a subclass of other (or is the same class).
func (c *Class) IsSubclassOf(other *Class) bool {
	for current := c; current != nil; current = current.super {
		if current == other {
			return true
		}
	}
	return false
}

// ---------------------------------------------------------------------------
// Method registration
// ---------------------------------------------------------------------------

// AddMethod declares an instance method. Declaring a name twice replaces the
// earlier method. Methods must be declared before the class is first used.
func (c *Class) AddMethod(name string, vis Visibility, arity int, fn Func) *Method {
	m := &Method{
		name:     name,
		selector: c.domain.selectors.intern(name),
		vis:      vis,
		arity:    arity,
		fn:       fn,
		owner:    c,
	}
	c.instanceMethods.put(m)
	return m
}

// AddStaticMethod declares a public class-side method.
func (c *Class) AddStaticMethod(name string, arity int, fn Func) *Method {
	m := &Method{
		name:     name,
		selector: c.domain.selectors.intern(name),
		vis:      Public,
		static:   true,
		arity:    arity,
		fn:       fn,
		owner:    c,
	}
	c.staticMethods.put(m)
	return m
}

// Method finds a method by name, searching c and then its superclasses.
// flags must include BindInstance, BindStatic or both, and BindPublic,
// BindNonPublic or both. Private methods of superclasses are never returned.
// Returns nil if no visible method exists.
func (c *Class) Method(name string, flags BindingFlags) *Method {
	return c.MethodBySelector(c.domain.selectors.find(name), flags)
}

// MethodBySelector is Method for a selector obtained from Domain.Selector.
// sel must come from the domain c belongs to.
func (c *Class) MethodBySelector(sel Selector, flags BindingFlags) *Method {
	if sel == 0 {
		return nil
	}
	for current := c; current != nil; current = current.super {
		inherited := current != c
		if flags&BindInstance != 0 {
			if m := current.instanceMethods.at(sel); m != nil && m.visible(flags, inherited) {
				return m
			}
		}
		if flags&BindStatic != 0 {
			if m := current.staticMethods.at(sel); m != nil && m.visible(flags, inherited) {
				return m
			}
		}
	}
	return nil
}

// Methods returns the instance methods declared on c itself, in selector
// order.
func (c *Class) Methods() []*Method {
	return c.instanceMethods.declared()
}

// Describe renders a one-line summary for diagnostics.
func (c *Class) Describe() string {
	return fmt.Sprintf("%s#%d(%s) : %s", c.FullName(), c.id, c.domain.name, c.BaseType().TypeName())
}
