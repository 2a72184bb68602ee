package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/tliron/commonlog"

	"github.com/chazu/hostbridge/server"
)

// attachTimeout bounds a whole attach session.
const attachTimeout = 30 * time.Second

// attach talks to a scene served by another hostbridge process: it steps
// the scene when -frames is set, lists its objects and optionally saves its
// snapshot.
func attach(opts options, out io.Writer) error {
	verbosity := 0
	if opts.verbose {
		verbosity = 2
	}
	commonlog.Configure(verbosity, nil)

	c, err := server.Dial(opts.attach)
	if err != nil {
		return err
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), attachTimeout)
	defer cancel()

	if opts.frames > 0 {
		frame, err := c.Step(ctx, uint32(opts.frames))
		if err != nil {
			return fmt.Errorf("step: %w", err)
		}
		log.Infof("stepped %s to frame %d", c.Target(), frame)
	}

	objects, err := c.ListObjects(ctx)
	if err != nil {
		return fmt.Errorf("list objects: %w", err)
	}
	fields := objects.AsMap()
	fmt.Fprintf(out, "scene %v at frame %v (%s)\n", fields["scene"], fields["frame"], c.Target())
	list, _ := fields["objects"].([]any)
	for _, entry := range list {
		o, _ := entry.(map[string]any)
		fmt.Fprintf(out, "  %v: %s\n", o["name"], describeComponents(o["components"]))
	}

	if opts.snapshot != "" {
		snap, err := c.Snapshot(ctx)
		if err != nil {
			return fmt.Errorf("snapshot: %w", err)
		}
		return saveSnapshot(snap, opts.snapshot)
	}
	return nil
}

// describeComponents renders ListObjects components as
// "Collider, BehaviourProxy(Spinner, bound)".
func describeComponents(v any) string {
	list, _ := v.([]any)
	parts := make([]string, 0, len(list))
	for _, entry := range list {
		c, _ := entry.(map[string]any)
		part := fmt.Sprint(c["type"])
		if class, ok := c["class"]; ok {
			part += fmt.Sprintf("(%v, %v)", class, c["state"])
		}
		parts = append(parts, part)
	}
	return strings.Join(parts, ", ")
}
