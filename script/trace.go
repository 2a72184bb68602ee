package script

import "time"

// InvokeRecord describes one completed Invoke.
type InvokeRecord struct {
	Domain   DomainID
	Method   *Method
	Receiver *Instance // nil for static methods
	Start    time.Time
	Duration time.Duration
	Err      error
}

// Class returns the receiver's class, or the declaring class for static calls.
func (r InvokeRecord) Class() *Class {
	if r.Receiver != nil {
		return r.Receiver.class
	}
	return r.Method.owner
}

// Tracer observes invocations. TraceInvoke runs on the invoking goroutine
// after the method returns, so implementations must be quick and safe for
// concurrent use.
type Tracer interface {
	TraceInvoke(rec InvokeRecord)
}

// TracerFunc adapts a function to Tracer.
type TracerFunc func(rec InvokeRecord)

// TraceInvoke implements Tracer.
func (f TracerFunc) TraceInvoke(rec InvokeRecord) { f(rec) }

type multiTracer []Tracer

func (m multiTracer) TraceInvoke(rec InvokeRecord) {
	for _, t := range m {
		t.TraceInvoke(rec)
	}
}

// Tracers fans one record out to several tracers. Nil entries are dropped.
func Tracers(ts ...Tracer) Tracer {
	var out multiTracer
	for _, t := range ts {
		if t != nil {
			out = append(out, t)
		}
	}
	switch len(out) {
	case 0:
		return nil
	case 1:
		return out[0]
	}
	return out
}
