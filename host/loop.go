package host

import (
	"errors"
	"fmt"
	"sync"
)

// ErrLoopStopped is returned by Do after Stop.
var ErrLoopStopped = errors.New("host: loop stopped")

// loopRequest represents a unit of work to be executed on the loop goroutine.
type loopRequest struct {
	fn   func(*Scene) any
	done chan loopResult
}

// loopResult holds the return value from a scene operation.
type loopResult struct {
	value any
	err   error
}

// Loop serializes all Scene access through a single goroutine. The scene
// scheduler is single-threaded; frame drivers and inspection handlers must go
// through the loop to avoid data races.
type Loop struct {
	scene    *Scene
	requests chan loopRequest
	quit     chan struct{}
	stopOnce sync.Once
}

// NewLoop creates a Loop and starts the processing goroutine.
func NewLoop(s *Scene) *Loop {
	l := &Loop{
		scene:    s,
		requests: make(chan loopRequest, 64),
		quit:     make(chan struct{}),
	}
	go l.run()
	return l
}

// run processes requests sequentially on a dedicated goroutine.
func (l *Loop) run() {
	for {
		select {
		case req := <-l.requests:
			req.done <- l.execute(req.fn)
		case <-l.quit:
			return
		}
	}
}

// execute runs a function on the scene, recovering from panics.
func (l *Loop) execute(fn func(*Scene) any) loopResult {
	var result loopResult
	func() {
		defer func() {
			if r := recover(); r != nil {
				result.err = fmt.Errorf("%v", r)
				log.Errorf("loop: recovered panic: %v", r)
			}
		}()
		result.value = fn(l.scene)
	}()
	return result
}

// Do submits a function for execution on the loop goroutine and blocks
// until it completes. Returns the result and any error (including panics).
func (l *Loop) Do(fn func(*Scene) any) (any, error) {
	select {
	case <-l.quit:
		return nil, ErrLoopStopped
	default:
	}

	req := loopRequest{
		fn:   fn,
		done: make(chan loopResult, 1),
	}
	select {
	case l.requests <- req:
	case <-l.quit:
		return nil, ErrLoopStopped
	}
	select {
	case result := <-req.done:
		return result.value, result.err
	case <-l.quit:
		return nil, ErrLoopStopped
	}
}

// Tick runs one frame on the loop goroutine.
func (l *Loop) Tick() error {
	v, err := l.Do(func(s *Scene) any { return s.Tick() })
	if err != nil {
		return err
	}
	if tickErr, ok := v.(error); ok {
		return tickErr
	}
	return nil
}

// Stop shuts down the loop goroutine. Safe to call more than once.
func (l *Loop) Stop() {
	l.stopOnce.Do(func() { close(l.quit) })
}
