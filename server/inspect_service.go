package server

import (
	"context"
	"errors"
	"fmt"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/chazu/hostbridge/bridge"
	"github.com/chazu/hostbridge/host"
	"github.com/chazu/hostbridge/journal"
	"github.com/chazu/hostbridge/script"
	"github.com/chazu/hostbridge/wire"
)

// ServiceName is the fully qualified name of the inspection service.
const ServiceName = "hostbridge.v1.InspectService"

// Procedure paths, one per unary method.
const (
	ListObjectsProcedure    = "/" + ServiceName + "/ListObjects"
	ListClassesProcedure    = "/" + ServiceName + "/ListClasses"
	ListHookTablesProcedure = "/" + ServiceName + "/ListHookTables"
	ProfileProcedure        = "/" + ServiceName + "/Profile"
	JournalProcedure        = "/" + ServiceName + "/Journal"
	SnapshotProcedure       = "/" + ServiceName + "/Snapshot"
	StepProcedure           = "/" + ServiceName + "/Step"
)

// maxStep bounds the frames a single Step request may run.
const maxStep = 10000

// InspectService implements the inspection procedures.
type InspectService struct {
	loop     *host.Loop
	domain   *script.Domain
	cache    *bridge.HookCache
	profiler *script.Profiler
	journal  *journal.Journal
}

// NewInspectService creates an InspectService. profiler and j may be nil, in
// which case the matching procedures fail with FailedPrecondition.
func NewInspectService(loop *host.Loop, d *script.Domain, cache *bridge.HookCache, profiler *script.Profiler, j *journal.Journal) *InspectService {
	return &InspectService{
		loop:     loop,
		domain:   d,
		cache:    cache,
		profiler: profiler,
		journal:  j,
	}
}

// capture takes a snapshot on the loop goroutine.
func (s *InspectService) capture() (*wire.Snapshot, error) {
	result, err := s.loop.Do(func(sc *host.Scene) any {
		return bridge.CaptureSnapshot(sc, s.cache)
	})
	if err != nil {
		return nil, connect.NewError(connect.CodeUnavailable, err)
	}
	return result.(*wire.Snapshot), nil
}

// ListObjects describes every object in the scene and its components.
func (s *InspectService) ListObjects(
	ctx context.Context,
	req *connect.Request[emptypb.Empty],
) (*connect.Response[structpb.Struct], error) {
	snap, err := s.capture()
	if err != nil {
		return nil, err
	}

	objects := make([]any, 0, len(snap.Objects))
	for _, o := range snap.Objects {
		components := make([]any, 0, len(o.Components))
		for _, c := range o.Components {
			comp := map[string]any{
				"type":    c.Type,
				"enabled": c.Enabled,
			}
			if c.Proxy != nil {
				comp["state"] = c.Proxy.State
				comp["class"] = c.Proxy.Class
			}
			components = append(components, comp)
		}
		objects = append(objects, map[string]any{
			"id":         o.ID,
			"name":       o.Name,
			"active":     o.Active,
			"components": components,
		})
	}
	return structResponse(map[string]any{
		"scene":   snap.Scene,
		"frame":   snap.Frame,
		"objects": objects,
	})
}

// ListClasses describes the domain's classes and their declared methods.
func (s *InspectService) ListClasses(
	ctx context.Context,
	req *connect.Request[emptypb.Empty],
) (*connect.Response[structpb.Struct], error) {
	classes := []any{}
	for _, c := range s.domain.Classes() {
		methods := []any{}
		for _, m := range c.Methods() {
			methods = append(methods, map[string]any{
				"name":       m.Name(),
				"visibility": m.Visibility().String(),
				"arity":      int64(m.Arity()),
			})
		}
		classes = append(classes, map[string]any{
			"id":      uint32(c.ID()),
			"name":    c.FullName(),
			"base":    c.BaseType().TypeName(),
			"methods": methods,
		})
	}
	return structResponse(map[string]any{
		"domain":  s.domain.Name(),
		"classes": classes,
	})
}

// ListHookTables lists the cached hook tables and the hooks each resolved.
func (s *InspectService) ListHookTables(
	ctx context.Context,
	req *connect.Request[emptypb.Empty],
) (*connect.Response[structpb.Struct], error) {
	tables := []any{}
	for _, t := range s.cache.Tables() {
		hooks := []any{}
		for _, e := range t.Present() {
			hooks = append(hooks, e.String())
		}
		c := t.Class()
		tables = append(tables, map[string]any{
			"domain":  uint32(c.Domain().ID()),
			"type_id": uint32(c.ID()),
			"class":   c.FullName(),
			"hooks":   hooks,
		})
	}
	return structResponse(map[string]any{
		"builds": s.cache.Builds(),
		"tables": tables,
	})
}

// Profile returns per-method invocation counters.
func (s *InspectService) Profile(
	ctx context.Context,
	req *connect.Request[emptypb.Empty],
) (*connect.Response[structpb.Struct], error) {
	if s.profiler == nil {
		return nil, connect.NewError(connect.CodeFailedPrecondition, fmt.Errorf("profiling is not enabled"))
	}
	methods := []any{}
	for _, e := range s.profiler.Entries() {
		methods = append(methods, map[string]any{
			"method":      e.Method,
			"invocations": e.Invocations,
			"failures":    e.Failures,
			"total_ns":    e.Total.Nanoseconds(),
			"hot":         e.Hot,
		})
	}
	return structResponse(map[string]any{
		"hot_methods": s.profiler.HotMethodCount(),
		"methods":     methods,
	})
}

// Journal returns the dispatch journal summary.
func (s *InspectService) Journal(
	ctx context.Context,
	req *connect.Request[emptypb.Empty],
) (*connect.Response[structpb.Struct], error) {
	if s.journal == nil {
		return nil, connect.NewError(connect.CodeFailedPrecondition, fmt.Errorf("journal is not enabled"))
	}
	summary, err := s.journal.Summary()
	if err != nil {
		if errors.Is(err, journal.ErrClosed) {
			return nil, connect.NewError(connect.CodeUnavailable, err)
		}
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	rows := []any{}
	for _, m := range summary {
		rows = append(rows, map[string]any{
			"class":    m.Class,
			"method":   m.Method,
			"calls":    m.Calls,
			"failures": m.Failures,
			"total_ns": m.Total.Nanoseconds(),
		})
	}
	return structResponse(map[string]any{"methods": rows})
}

// Snapshot returns the CBOR-encoded scene snapshot.
func (s *InspectService) Snapshot(
	ctx context.Context,
	req *connect.Request[emptypb.Empty],
) (*connect.Response[wrapperspb.BytesValue], error) {
	snap, err := s.capture()
	if err != nil {
		return nil, err
	}
	data, err := wire.MarshalSnapshot(snap)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(wrapperspb.Bytes(data)), nil
}

// Step runs the requested number of frames (at least one) and returns the
// resulting frame number. Callback failures are reported in the scene's
// usual way and do not fail the request.
func (s *InspectService) Step(
	ctx context.Context,
	req *connect.Request[wrapperspb.UInt32Value],
) (*connect.Response[wrapperspb.UInt64Value], error) {
	n := req.Msg.GetValue()
	if n == 0 {
		n = 1
	}
	if n > maxStep {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("at most %d frames per step, got %d", maxStep, n))
	}

	result, err := s.loop.Do(func(sc *host.Scene) any {
		for i := uint32(0); i < n; i++ {
			if ctx.Err() != nil {
				break
			}
			_ = sc.Tick()
		}
		return sc.Frame()
	})
	if err != nil {
		return nil, connect.NewError(connect.CodeUnavailable, err)
	}
	return connect.NewResponse(wrapperspb.UInt64(result.(uint64))), nil
}

func structResponse(fields map[string]any) (*connect.Response[structpb.Struct], error) {
	st, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(st), nil
}
