package lifecycle

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"
)

// Component is a long-running part of the bot with explicit start/stop.
type Component interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Runtime starts components in registration order and stops them in reverse.
// A failed start rolls back everything started so far.
type Runtime struct {
	names      []string
	components []Component
}

func NewRuntime() *Runtime {
	return &Runtime{}
}

func (r *Runtime) Register(name string, component Component) {
	if component == nil {
		return
	}
	r.names = append(r.names, name)
	r.components = append(r.components, component)
}

func (r *Runtime) Start(ctx context.Context) error {
	for i, component := range r.components {
		if err := component.Start(ctx); err != nil {
			r.stopRange(ctx, i-1)
			return fmt.Errorf("start component %q: %w", r.names[i], err)
		}
		log.WithField("component", r.names[i]).Debug("started")
	}
	return nil
}

func (r *Runtime) Stop(ctx context.Context) error {
	return r.stopRange(ctx, len(r.components)-1)
}

func (r *Runtime) stopRange(ctx context.Context, from int) error {
	var stopErr error
	for i := from; i >= 0; i-- {
		if err := r.components[i].Stop(ctx); err != nil {
			stopErr = errors.Join(stopErr, fmt.Errorf("stop component %q: %w", r.names[i], err))
		}
	}
	return stopErr
}
