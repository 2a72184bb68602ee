package script

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// MethodProfile holds profiling data for a single method.
type MethodProfile struct {
	InvocationCount uint64 // Atomic counter for invocations
	FailureCount    uint64 // Atomic counter for invocations that returned an error
	TotalNanos      uint64 // Atomic sum of invocation durations
	hot             atomic.Bool
}

// IsHot reports whether the method has crossed the profiler's threshold.
func (p *MethodProfile) IsHot() bool { return p.hot.Load() }

// Profiler counts method invocations. It is a Tracer; install it with
// Domain.SetTracer.
type Profiler struct {
	methodProfiles sync.Map // *Method -> *MethodProfile

	// HotThreshold is the invocation count at which a method becomes hot.
	HotThreshold uint64

	// OnHot is called once per method when it becomes hot.
	OnHot func(m *Method, profile *MethodProfile)

	hotMethodCount uint64
}

// NewProfiler creates a new profiler with the default threshold.
func NewProfiler() *Profiler {
	return &Profiler{HotThreshold: 100}
}

// TraceInvoke implements Tracer.
func (p *Profiler) TraceInvoke(rec InvokeRecord) {
	p.RecordInvocation(rec.Method, rec.Duration, rec.Err != nil)
}

// RecordInvocation updates the counters for m.
// Returns true if this invocation caused the method to become hot.
func (p *Profiler) RecordInvocation(m *Method, d time.Duration, failed bool) bool {
	if m == nil {
		return false
	}

	val, _ := p.methodProfiles.LoadOrStore(m, &MethodProfile{})
	profile := val.(*MethodProfile)

	count := atomic.AddUint64(&profile.InvocationCount, 1)
	atomic.AddUint64(&profile.TotalNanos, uint64(d.Nanoseconds()))
	if failed {
		atomic.AddUint64(&profile.FailureCount, 1)
	}

	if count >= p.HotThreshold && profile.hot.CompareAndSwap(false, true) {
		atomic.AddUint64(&p.hotMethodCount, 1)
		if p.OnHot != nil {
			p.OnHot(m, profile)
		}
		return true
	}
	return false
}

// GetMethodProfile returns the profile for a method, or nil if not tracked.
func (p *Profiler) GetMethodProfile(m *Method) *MethodProfile {
	if val, ok := p.methodProfiles.Load(m); ok {
		return val.(*MethodProfile)
	}
	return nil
}

// HotMethodCount returns how many methods have become hot.
func (p *Profiler) HotMethodCount() uint64 {
	return atomic.LoadUint64(&p.hotMethodCount)
}

// ProfileEntry is a point-in-time copy of one method's counters.
type ProfileEntry struct {
	Method      string
	Invocations uint64
	Failures    uint64
	Total       time.Duration
	Hot         bool
}

// Entries returns a snapshot of all profiles, sorted by method name.
func (p *Profiler) Entries() []ProfileEntry {
	var entries []ProfileEntry
	p.methodProfiles.Range(func(key, value any) bool {
		m := key.(*Method)
		profile := value.(*MethodProfile)
		entries = append(entries, ProfileEntry{
			Method:      m.String(),
			Invocations: atomic.LoadUint64(&profile.InvocationCount),
			Failures:    atomic.LoadUint64(&profile.FailureCount),
			Total:       time.Duration(atomic.LoadUint64(&profile.TotalNanos)),
			Hot:         profile.IsHot(),
		})
		return true
	})
	sort.Slice(entries, func(i, j int) bool { return entries[i].Method < entries[j].Method })
	return entries
}

// Reset clears all profiling data.
func (p *Profiler) Reset() {
	p.methodProfiles.Range(func(key, _ any) bool {
		p.methodProfiles.Delete(key)
		return true
	})
	atomic.StoreUint64(&p.hotMethodCount, 0)
}
