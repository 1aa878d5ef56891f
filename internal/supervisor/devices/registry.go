// Package devices tracks actuator state and mediates all hardware writes.
package devices

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kevinbot-io/kevinbot/internal/supervisor/core"
	"github.com/kevinbot-io/kevinbot/pkg/log"
)

// HAL is the hardware access layer behind the registry. Implementations are
// selected at build time; see the hal subpackage.
type HAL interface {
	// Open prepares the hardware link.
	Open(ctx context.Context) error

	// Actuate pushes channel values to a subsystem. Must honor ctx.
	Actuate(ctx context.Context, sub core.Subsystem, values map[string]float64) error

	// Observe reads back the current channel values of a subsystem.
	Observe(ctx context.Context, sub core.Subsystem) (map[string]float64, error)

	// Sense samples every sensor.
	Sense(ctx context.Context) (map[core.SensorID]core.Reading, error)

	// Close releases the hardware link.
	Close() error
}

// Registry is the single gateway for device writes and the authoritative
// record of last-commanded versus last-observed actuator state.
type Registry struct {
	hal    HAL
	logger log.Logger

	mu     sync.RWMutex
	states map[core.Subsystem]*core.DeviceState
}

// NewRegistry returns a registry over hal covering every known subsystem.
func NewRegistry(hal HAL) *Registry {
	states := make(map[core.Subsystem]*core.DeviceState, len(core.Subsystems()))
	for _, sub := range core.Subsystems() {
		states[sub] = &core.DeviceState{Subsystem: sub}
	}
	return &Registry{
		hal:    hal,
		logger: log.WithName("devices"),
		states: states,
	}
}

// Write pushes values to sub and records them as last-commanded. The caller
// sets the deadline on ctx; a write that misses it marks the subsystem
// failed, which the interlock treats as a mismatch until a later write
// succeeds.
func (r *Registry) Write(ctx context.Context, sub core.Subsystem, values map[string]float64) error {
	r.mu.RLock()
	state, ok := r.states[sub]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", core.ErrUnknownSubsystem, sub)
	}

	err := r.hal.Actuate(ctx, sub, values)
	now := time.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	state.LastWrite = now
	if err != nil {
		state.WriteFailed = true
		if errors.Is(err, context.DeadlineExceeded) {
			r.logger.Error(nil, "Device write missed deadline", "subsystem", sub)
			return fmt.Errorf("%w: %s", core.ErrWriteTimeout, sub)
		}
		return fmt.Errorf("write to %s: %w", sub, err)
	}

	state.WriteFailed = false
	if state.LastCommanded == nil {
		state.LastCommanded = make(map[string]float64, len(values))
	}
	for ch, v := range values {
		state.LastCommanded[ch] = v
	}
	return nil
}

// Refresh reads back observed values for every subsystem. Called by the
// sensor poller, never from the tick loop.
func (r *Registry) Refresh(ctx context.Context) error {
	var errs []error
	for _, sub := range core.Subsystems() {
		observed, err := r.hal.Observe(ctx, sub)
		if err != nil {
			errs = append(errs, fmt.Errorf("observe %s: %w", sub, err))
			continue
		}
		r.mu.Lock()
		r.states[sub].LastObserved = observed
		r.mu.Unlock()
	}
	return errors.Join(errs...)
}

// Sense delegates a full sensor sample to the hardware layer.
func (r *Registry) Sense(ctx context.Context) (map[core.SensorID]core.Reading, error) {
	return r.hal.Sense(ctx)
}

// Read returns a copy of the state for sub.
func (r *Registry) Read(sub core.Subsystem) (core.DeviceState, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	state, ok := r.states[sub]
	if !ok {
		return core.DeviceState{}, false
	}
	return copyState(state), true
}

// States returns a copy of every subsystem state in registration order.
func (r *Registry) States() []core.DeviceState {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]core.DeviceState, 0, len(r.states))
	for _, sub := range core.Subsystems() {
		if state, ok := r.states[sub]; ok {
			out = append(out, copyState(state))
		}
	}
	return out
}

func copyState(s *core.DeviceState) core.DeviceState {
	out := *s
	out.LastCommanded = copyValues(s.LastCommanded)
	out.LastObserved = copyValues(s.LastObserved)
	return out
}

func copyValues(in map[string]float64) map[string]float64 {
	if in == nil {
		return nil
	}
	out := make(map[string]float64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
