package host

import (
	"fmt"

	"github.com/google/uuid"
)

// slot is the host-side bookkeeping for one attached component.
type slot struct {
	comp    Component
	typ     *NativeType
	enabled bool // requested by SetEnabled
	live    bool // OnEnable delivered and not yet matched by OnDisable
	awake   bool
	started bool
}

// Object is a node in the scene that components attach to.
type Object struct {
	ID   string
	Name string

	scene     *Scene
	active    bool
	destroyed bool
	slots     []*slot
}

func newObject(s *Scene, name string) *Object {
	return &Object{
		ID:     uuid.NewString(),
		Name:   name,
		scene:  s,
		active: true,
	}
}

// Scene returns the scene that owns the object.
func (o *Object) Scene() *Scene { return o.scene }

// Active reports whether the object is active.
func (o *Object) Active() bool { return o.active }

// Destroyed reports whether the object has been destroyed.
func (o *Object) Destroyed() bool { return o.destroyed }

// String implements the Stringer interface.
func (o *Object) String() string { return o.Name }

// AddComponent instantiates a native component type and attaches it.
//
// If the object is active the component receives Awake and then OnEnable
// before AddComponent returns. Callback failures are reported at the scene's
// callback boundary and do not fail the attachment.
func (o *Object) AddComponent(t Type) (Component, error) {
	if o.destroyed {
		return nil, fmt.Errorf("add component to %q: %w", o.Name, ErrDestroyed)
	}
	nt, ok := t.(*NativeType)
	if !ok || !IsSubtype(nt, ComponentType) {
		return nil, fmt.Errorf("%w: %s", ErrNotComponentType, typeName(t))
	}
	c, err := nt.New()
	if err != nil {
		return nil, err
	}
	c.attach(o)
	s := &slot{comp: c, typ: nt, enabled: true}
	o.slots = append(o.slots, s)

	if o.active {
		o.awaken(s)
		o.refresh(s)
	}
	return c, nil
}

// GetComponent returns the first attached component whose native type is t
// or derives from it, or nil.
func (o *Object) GetComponent(t Type) Component {
	for _, s := range o.slots {
		if IsSubtype(s.typ, t) {
			return s.comp
		}
	}
	return nil
}

// GetComponents returns every attached component whose native type is t or
// derives from it.
func (o *Object) GetComponents(t Type) []Component {
	var result []Component
	for _, s := range o.slots {
		if IsSubtype(s.typ, t) {
			result = append(result, s.comp)
		}
	}
	return result
}

// Components returns all attached components in attachment order.
func (o *Object) Components() []Component {
	result := make([]Component, len(o.slots))
	for i, s := range o.slots {
		result[i] = s.comp
	}
	return result
}

// TypeOf returns the native type c was instantiated from, or nil if c is not
// attached to o.
func (o *Object) TypeOf(c Component) *NativeType {
	if s := o.find(c); s != nil {
		return s.typ
	}
	return nil
}

// Enabled reports whether c is enabled on o.
func (o *Object) Enabled(c Component) bool {
	if s := o.find(c); s != nil {
		return s.enabled
	}
	return false
}

// SetActive activates or deactivates the object. Activation awakens
// components that were attached while inactive and enables the enabled ones;
// deactivation disables them.
func (o *Object) SetActive(active bool) {
	if o.destroyed || o.active == active {
		return
	}
	o.active = active
	for _, s := range o.snapshot() {
		if active && !s.awake {
			o.awaken(s)
		}
		o.refresh(s)
	}
}

// SetEnabled enables or disables a single component.
func (o *Object) SetEnabled(c Component, enabled bool) {
	s := o.find(c)
	if s == nil || s.enabled == enabled {
		return
	}
	s.enabled = enabled
	o.refresh(s)
}

// DestroyComponent detaches c, delivering OnDisable (if enabled) and OnDestroy.
func (o *Object) DestroyComponent(c Component) {
	s := o.find(c)
	if s == nil {
		return
	}
	o.teardown(s)
	o.remove(s)
}

func (o *Object) destroy() {
	for _, s := range o.snapshot() {
		o.teardown(s)
	}
	o.slots = nil
	o.active = false
	o.destroyed = true
}

func (o *Object) awaken(s *slot) {
	s.awake = true
	if a, ok := s.comp.(Awaker); ok {
		o.scene.invoke(o, s, "Awake", a.Awake)
	}
}

// refresh brings the delivered enable state in line with the requested one.
func (o *Object) refresh(s *slot) {
	live := o.active && s.enabled && !o.destroyed
	if live == s.live {
		return
	}
	s.live = live
	if live {
		if e, ok := s.comp.(Enabler); ok {
			o.scene.invoke(o, s, "OnEnable", e.OnEnable)
		}
		return
	}
	if d, ok := s.comp.(Disabler); ok {
		o.scene.invoke(o, s, "OnDisable", d.OnDisable)
	}
}

// teardown delivers OnDisable and OnDestroy. OnDestroy is delivered even to
// components that never woke, so every teardown observes exactly one.
func (o *Object) teardown(s *slot) {
	if s.live {
		s.live = false
		if d, ok := s.comp.(Disabler); ok {
			o.scene.invoke(o, s, "OnDisable", d.OnDisable)
		}
	}
	if d, ok := s.comp.(Destroyer); ok {
		o.scene.invoke(o, s, "OnDestroy", d.OnDestroy)
	}
}

func (o *Object) find(c Component) *slot {
	for _, s := range o.slots {
		if s.comp == c {
			return s
		}
	}
	return nil
}

func (o *Object) remove(target *slot) {
	for i, s := range o.slots {
		if s == target {
			o.slots = append(o.slots[:i:i], o.slots[i+1:]...)
			return
		}
	}
}

// snapshot copies the slot list so callbacks may attach or destroy
// components while the caller iterates.
func (o *Object) snapshot() []*slot {
	out := make([]*slot, len(o.slots))
	copy(out, o.slots)
	return out
}

func typeName(t Type) string {
	if t == nil {
		return "<nil>"
	}
	return t.TypeName()
}
