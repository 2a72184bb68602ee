package host

import (
	"errors"
	"fmt"

	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("hostbridge.host")

// ErrNoCollider is returned by Contact when a participant has no Collider.
var ErrNoCollider = errors.New("host: object has no collider")

// CallbackError reports a lifecycle callback that failed. Err is the failure
// exactly as the component returned it.
type CallbackError struct {
	Object    string
	Component string
	Callback  string
	Frame     uint64
	Err       error
}

func (e *CallbackError) Error() string {
	return fmt.Sprintf("%s.%s on %q (frame %d): %v", e.Component, e.Callback, e.Object, e.Frame, e.Err)
}

func (e *CallbackError) Unwrap() error { return e.Err }

// ErrorHandler receives every callback failure.
type ErrorHandler func(err *CallbackError)

// SceneOption configures a Scene.
type SceneOption func(*Scene)

// WithErrorHandler installs a handler for callback failures. Failures are
// logged whether or not a handler is installed.
func WithErrorHandler(h ErrorHandler) SceneOption {
	return func(s *Scene) { s.onError = h }
}

// WithFixedSteps sets the number of FixedUpdate passes per frame.
func WithFixedSteps(n int) SceneOption {
	return func(s *Scene) {
		if n >= 0 {
			s.fixedSteps = n
		}
	}
}

// Scene owns objects and schedules their lifecycle callbacks. A Scene is not
// safe for concurrent use; share it through a Loop.
type Scene struct {
	Name string

	objects    []*Object
	frame      uint64
	fixedSteps int
	onError    ErrorHandler

	// failures collects callback errors raised during the current Tick.
	failures []error
}

// NewScene creates an empty scene.
func NewScene(name string, opts ...SceneOption) *Scene {
	s := &Scene{
		Name:       name,
		fixedSteps: 1,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewObject creates an active object in the scene.
func (s *Scene) NewObject(name string) *Object {
	o := newObject(s, name)
	s.objects = append(s.objects, o)
	return o
}

// Objects returns the live objects in creation order.
func (s *Scene) Objects() []*Object {
	out := make([]*Object, len(s.objects))
	copy(out, s.objects)
	return out
}

// Find returns the first live object with the given name, or nil.
func (s *Scene) Find(name string) *Object {
	for _, o := range s.objects {
		if o.Name == name {
			return o
		}
	}
	return nil
}

// Frame returns the number of completed frames.
func (s *Scene) Frame() uint64 { return s.frame }

// Tick runs one frame: pending Start callbacks, the fixed steps, Update and
// LateUpdate. It returns the callback failures raised during the frame,
// joined; each was also delivered to the error handler.
func (s *Scene) Tick() error {
	s.failures = s.failures[:0]

	s.each(func(o *Object, sl *slot) {
		if sl.started {
			return
		}
		sl.started = true
		if st, ok := sl.comp.(Starter); ok {
			s.invoke(o, sl, "Start", st.Start)
		}
	})
	for i := 0; i < s.fixedSteps; i++ {
		s.each(func(o *Object, sl *slot) {
			if u, ok := sl.comp.(FixedUpdater); ok {
				s.invoke(o, sl, "FixedUpdate", u.FixedUpdate)
			}
		})
	}
	s.each(func(o *Object, sl *slot) {
		if u, ok := sl.comp.(Updater); ok {
			s.invoke(o, sl, "Update", u.Update)
		}
	})
	s.each(func(o *Object, sl *slot) {
		if u, ok := sl.comp.(LateUpdater); ok {
			s.invoke(o, sl, "LateUpdate", u.LateUpdate)
		}
	})

	s.frame++
	err := errors.Join(s.failures...)
	s.failures = s.failures[:0]
	return err
}

// Contact delivers a collision callback to the live components of both
// participants. Each side receives a Collision describing the other. Like
// Tick, it returns the callback failures it raised, joined.
func (s *Scene) Contact(a, b *Object, phase ContactPhase, impulse float64) error {
	for _, o := range []*Object{a, b} {
		if o.destroyed {
			return fmt.Errorf("contact with %q: %w", o.Name, ErrDestroyed)
		}
		if o.GetComponent(ColliderType) == nil {
			return fmt.Errorf("contact with %q: %w", o.Name, ErrNoCollider)
		}
	}
	mark := len(s.failures)
	s.deliverContact(a, b, phase, impulse)
	s.deliverContact(b, a, phase, impulse)
	return errors.Join(s.failures[mark:]...)
}

func (s *Scene) deliverContact(self, other *Object, phase ContactPhase, impulse float64) {
	c := &Collision{Object: self, Other: other, Phase: phase, Impulse: impulse, Frame: s.frame}
	for _, sl := range self.snapshot() {
		if !sl.live {
			continue
		}
		switch phase {
		case ContactEnter:
			if h, ok := sl.comp.(CollisionEnterer); ok {
				s.invoke(self, sl, "OnCollisionEnter", func() error { return h.OnCollisionEnter(c) })
			}
		case ContactStay:
			if h, ok := sl.comp.(CollisionStayer); ok {
				s.invoke(self, sl, "OnCollisionStay", func() error { return h.OnCollisionStay(c) })
			}
		case ContactExit:
			if h, ok := sl.comp.(CollisionExiter); ok {
				s.invoke(self, sl, "OnCollisionExit", func() error { return h.OnCollisionExit(c) })
			}
		}
	}
}

// Destroy tears down every component of o and removes it from the scene.
func (s *Scene) Destroy(o *Object) {
	if o.destroyed {
		return
	}
	o.destroy()
	for i, candidate := range s.objects {
		if candidate == o {
			s.objects = append(s.objects[:i:i], s.objects[i+1:]...)
			break
		}
	}
}

// each visits the live components of active objects. Objects and components
// added during the pass are not visited; ones destroyed or disabled during the
// pass are skipped.
func (s *Scene) each(fn func(o *Object, sl *slot)) {
	for _, o := range s.Objects() {
		for _, sl := range o.snapshot() {
			if o.destroyed || !o.active || !sl.live {
				continue
			}
			fn(o, sl)
		}
	}
}

// invoke is the boundary every callback passes through. Failures, including
// panics, are logged and reported; the scheduler carries on.
func (s *Scene) invoke(o *Object, sl *slot, callback string, fn func() error) {
	err := call(fn)
	if err == nil {
		return
	}
	cbErr := &CallbackError{
		Object:    o.Name,
		Component: sl.typ.TypeName(),
		Callback:  callback,
		Frame:     s.frame,
		Err:       err,
	}
	log.Errorf("%s", cbErr)
	s.failures = append(s.failures, cbErr)
	if s.onError != nil {
		s.onError(cbErr)
	}
}

func call(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = fmt.Errorf("panic: %w", e)
			} else {
				err = fmt.Errorf("panic: %v", r)
			}
		}
	}()
	return fn()
}
