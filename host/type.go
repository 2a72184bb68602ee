// Package host implements the native object system that owns components and
// drives their lifecycle callbacks.
//
// Objects live in a Scene. Components are attached to objects by native type;
// the scene scheduler fires the fixed set of lifecycle callbacks (Awake,
// OnEnable, Start, FixedUpdate, Update, LateUpdate, OnDisable, OnDestroy and
// the collision callbacks) in its own order. Embedding code never initiates
// callbacks; it only reacts to them.
package host

import (
	"errors"
	"fmt"
)

var (
	// ErrNotComponentType is returned when a type passed to a native factory
	// is not a native component type.
	ErrNotComponentType = errors.New("host: not a native component type")

	// ErrAbstractType is returned when instantiating a type without a constructor.
	ErrAbstractType = errors.New("host: type is abstract")

	// ErrDestroyed is returned by operations on a destroyed object.
	ErrDestroyed = errors.New("host: object destroyed")
)

// Type is a type known to the host's polymorphic type system. Native types
// implement it, and so may types from an embedded runtime that derive from a
// native type.
type Type interface {
	TypeName() string
	// BaseType returns the parent type, or nil for a root type.
	BaseType() Type
}

// IsSubtype reports whether t is base or derives from it.
func IsSubtype(t, base Type) bool {
	if t == nil || base == nil {
		return false
	}
	for current := t; current != nil; current = current.BaseType() {
		if current == base {
			return true
		}
	}
	return false
}

// NativeType is a natively implemented component type.
type NativeType struct {
	name   string
	parent *NativeType
	newFn  func() Component
}

// NewNativeType declares a native type. A nil newFn makes the type abstract.
func NewNativeType(name string, parent *NativeType, newFn func() Component) *NativeType {
	return &NativeType{name: name, parent: parent, newFn: newFn}
}

// TypeName implements Type.
func (t *NativeType) TypeName() string { return t.name }

// BaseType implements Type.
func (t *NativeType) BaseType() Type {
	if t.parent == nil {
		return nil
	}
	return t.parent
}

// Abstract reports whether the type has no constructor.
func (t *NativeType) Abstract() bool { return t.newFn == nil }

// String implements the Stringer interface.
func (t *NativeType) String() string { return t.name }

// New instantiates the type.
func (t *NativeType) New() (Component, error) {
	if t.newFn == nil {
		return nil, fmt.Errorf("%w: %s", ErrAbstractType, t.name)
	}
	return t.newFn(), nil
}

// Built-in native types.
var (
	// ComponentType is the root of everything attachable to an Object.
	ComponentType = NewNativeType("Component", nil, nil)

	// BehaviourType is the base component abstraction for scripted behaviour.
	// Components of this type are the ones users expect to receive the full
	// set of lifecycle callbacks.
	BehaviourType = NewNativeType("Behaviour", ComponentType, nil)

	// ColliderType marks an object as taking part in contacts.
	ColliderType = NewNativeType("Collider", ComponentType, func() Component { return &Collider{} })
)

// Collider is the built-in contact component. It carries no behaviour.
type Collider struct {
	ComponentBase
	Radius float64
}

// TypeRegistry maps type names to native types. It is used by configuration
// loaders to resolve names; the registry itself carries no behaviour.
type TypeRegistry struct {
	types map[string]*NativeType
	order []string
}

// NewTypeRegistry creates a registry holding the built-in types.
func NewTypeRegistry() *TypeRegistry {
	r := &TypeRegistry{types: make(map[string]*NativeType)}
	r.Register(ComponentType)
	r.Register(BehaviourType)
	r.Register(ColliderType)
	return r
}

// Register adds t, replacing any type with the same name.
func (r *TypeRegistry) Register(t *NativeType) {
	if _, ok := r.types[t.name]; !ok {
		r.order = append(r.order, t.name)
	}
	r.types[t.name] = t
}

// Lookup finds a native type by name.
func (r *TypeRegistry) Lookup(name string) (*NativeType, bool) {
	t, ok := r.types[name]
	return t, ok
}

// Names returns registered type names in registration order.
func (r *TypeRegistry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}
