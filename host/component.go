package host

// Component is anything attachable to an Object. Implementations embed
// ComponentBase.
type Component interface {
	// Object returns the owning object, or nil before attachment.
	Object() *Object
	attach(o *Object)
}

// ComponentBase provides the attachment bookkeeping for Component.
type ComponentBase struct {
	object *Object
}

// Object implements Component.
func (b *ComponentBase) Object() *Object { return b.object }

func (b *ComponentBase) attach(o *Object) { b.object = o }

// ---------------------------------------------------------------------------
// Lifecycle callbacks
// ---------------------------------------------------------------------------

// A component receives a callback only if it implements the matching
// interface. A returned error is reported at the scene's callback boundary;
// it never stops the scheduler.

// Awaker receives Awake once, when the component is attached to an active object.
type Awaker interface{ Awake() error }

// Starter receives Start once, before the first Update after enabling.
type Starter interface{ Start() error }

// Enabler receives OnEnable whenever the component becomes enabled and active.
type Enabler interface{ OnEnable() error }

// Disabler receives OnDisable whenever the component stops being enabled and active.
type Disabler interface{ OnDisable() error }

// Updater receives Update once per frame.
type Updater interface{ Update() error }

// LateUpdater receives LateUpdate once per frame, after every Update.
type LateUpdater interface{ LateUpdate() error }

// FixedUpdater receives FixedUpdate once per fixed step.
type FixedUpdater interface{ FixedUpdate() error }

// Destroyer receives OnDestroy when the component or its object is destroyed.
type Destroyer interface{ OnDestroy() error }

// CollisionEnterer receives OnCollisionEnter when a contact begins.
type CollisionEnterer interface {
	OnCollisionEnter(c *Collision) error
}

// CollisionStayer receives OnCollisionStay while a contact persists.
type CollisionStayer interface {
	OnCollisionStay(c *Collision) error
}

// CollisionExiter receives OnCollisionExit when a contact ends.
type CollisionExiter interface {
	OnCollisionExit(c *Collision) error
}

// ContactPhase identifies which collision callback a contact triggers.
type ContactPhase uint8

const (
	ContactEnter ContactPhase = iota
	ContactStay
	ContactExit
)

var contactPhaseNames = [...]string{"enter", "stay", "exit"}

func (p ContactPhase) String() string {
	if int(p) < len(contactPhaseNames) {
		return contactPhaseNames[p]
	}
	return "unknown"
}

// ParseContactPhase converts "enter", "stay" or "exit" to a phase.
func ParseContactPhase(s string) (ContactPhase, bool) {
	for i, name := range contactPhaseNames {
		if name == s {
			return ContactPhase(i), true
		}
	}
	return 0, false
}

// Collision describes one side of a contact pair. Each participant receives
// its own Collision where Object is itself and Other is the counterpart.
type Collision struct {
	Object  *Object
	Other   *Object
	Phase   ContactPhase
	Impulse float64
	Frame   uint64
}
