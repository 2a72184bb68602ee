// Package bridge connects the host's lifecycle scheduler to dynamic
// instances.
//
// A Proxy is a native host component that stands in for one dynamic
// instance. The host drives the proxy's callbacks; the proxy forwards each one
// to the matching method of its instance, looked up once per dynamic type in a
// shared HookTable. The Interceptor redirects the host's AddComponent and
// GetComponent factory operations so that asking for a dynamic type yields a
// proxy-backed instance.
package bridge

import (
	"github.com/chazu/hostbridge/script"
)

// Event is one of the fixed lifecycle callbacks the host issues.
type Event uint8

const (
	EventAwake Event = iota
	EventStart
	EventDestroy
	EventEnable
	EventDisable
	EventUpdate
	EventLateUpdate
	EventFixedUpdate
	EventCollisionEnter
	EventCollisionStay
	EventCollisionExit

	numEvents
)

// eventNames are the dynamic method names each event resolves to.
var eventNames = [numEvents]string{
	EventAwake:          "Awake",
	EventStart:          "Start",
	EventDestroy:        "OnDestroy",
	EventEnable:         "OnEnable",
	EventDisable:        "OnDisable",
	EventUpdate:         "Update",
	EventLateUpdate:     "LateUpdate",
	EventFixedUpdate:    "FixedUpdate",
	EventCollisionEnter: "OnCollisionEnter",
	EventCollisionStay:  "OnCollisionStay",
	EventCollisionExit:  "OnCollisionExit",
}

// String returns the method name the event resolves to.
func (e Event) String() string {
	if e < numEvents {
		return eventNames[e]
	}
	return "unknown"
}

// Events returns every lifecycle event in declaration order.
func Events() []Event {
	out := make([]Event, numEvents)
	for i := range out {
		out[i] = Event(i)
	}
	return out
}

// ParseEvent maps a method name back to its event.
func ParseEvent(name string) (Event, bool) {
	for i, n := range eventNames {
		if n == name {
			return Event(i), true
		}
	}
	return 0, false
}

// hookBindings matches instance methods of any visibility.
const hookBindings = script.BindInstance | script.BindPublic | script.BindNonPublic

// HookTable records, for one dynamic type, the method each lifecycle event
// resolves to. A nil entry means the event is a no-op for that type. Tables
// are immutable once built and shared by every proxy bound to the type.
type HookTable struct {
	class *script.Class
	hooks [numEvents]*script.Method
}

// eventSelectors are a domain's selectors for the event names, by event.
type eventSelectors [numEvents]script.Selector

func selectorsFor(d *script.Domain) *eventSelectors {
	var sels eventSelectors
	for e := range sels {
		sels[e] = d.Selector(eventNames[e])
	}
	return &sels
}

// BuildHookTable resolves every lifecycle event against c.
func BuildHookTable(c *script.Class) *HookTable {
	return buildHookTable(c, selectorsFor(c.Domain()))
}

func buildHookTable(c *script.Class, sels *eventSelectors) *HookTable {
	t := &HookTable{class: c}
	for e, sel := range sels {
		t.hooks[e] = c.MethodBySelector(sel, hookBindings)
	}
	return t
}

// Class returns the dynamic type the table was built for.
func (t *HookTable) Class() *script.Class { return t.class }

// Hook returns the method bound to e, or nil.
func (t *HookTable) Hook(e Event) *script.Method {
	if e >= numEvents {
		return nil
	}
	return t.hooks[e]
}

// Has reports whether e resolves to a method.
func (t *HookTable) Has(e Event) bool { return t.Hook(e) != nil }

// Present lists the events that resolve to a method.
func (t *HookTable) Present() []Event {
	var out []Event
	for e, m := range t.hooks {
		if m != nil {
			out = append(out, Event(e))
		}
	}
	return out
}
