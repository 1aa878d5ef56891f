package devices

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kevinbot-io/kevinbot/internal/supervisor/core"
)

type stubHAL struct {
	actuateErr error
	actuateDur time.Duration
	observed   map[core.Subsystem]map[string]float64
	sensors    map[core.SensorID]core.Reading
	observeErr error
}

func (s *stubHAL) Open(context.Context) error { return nil }
func (s *stubHAL) Close() error               { return nil }

func (s *stubHAL) Actuate(ctx context.Context, sub core.Subsystem, values map[string]float64) error {
	if s.actuateDur > 0 {
		select {
		case <-time.After(s.actuateDur):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return s.actuateErr
}

func (s *stubHAL) Observe(ctx context.Context, sub core.Subsystem) (map[string]float64, error) {
	if s.observeErr != nil {
		return nil, s.observeErr
	}
	return s.observed[sub], nil
}

func (s *stubHAL) Sense(ctx context.Context) (map[core.SensorID]core.Reading, error) {
	return s.sensors, nil
}

func TestWriteRecordsLastCommanded(t *testing.T) {
	r := NewRegistry(&stubHAL{})

	err := r.Write(context.Background(), core.SubsystemDrivebase, map[string]float64{"left": 0.5, "right": -0.5})
	require.NoError(t, err)

	state, ok := r.Read(core.SubsystemDrivebase)
	require.True(t, ok)
	assert.Equal(t, map[string]float64{"left": 0.5, "right": -0.5}, state.LastCommanded)
	assert.False(t, state.WriteFailed)
	assert.False(t, state.LastWrite.IsZero())
}

func TestWriteMergesChannels(t *testing.T) {
	r := NewRegistry(&stubHAL{})
	ctx := context.Background()

	require.NoError(t, r.Write(ctx, core.SubsystemLighting, map[string]float64{"brightness": 0.8}))
	require.NoError(t, r.Write(ctx, core.SubsystemLighting, map[string]float64{"effect": 2}))

	state, _ := r.Read(core.SubsystemLighting)
	assert.Equal(t, map[string]float64{"brightness": 0.8, "effect": 2}, state.LastCommanded)
}

func TestWriteDeadlineMarksFailed(t *testing.T) {
	r := NewRegistry(&stubHAL{actuateDur: 50 * time.Millisecond})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()

	err := r.Write(ctx, core.SubsystemArm, map[string]float64{"shoulder": 0.3})
	require.ErrorIs(t, err, core.ErrWriteTimeout)

	state, _ := r.Read(core.SubsystemArm)
	assert.True(t, state.WriteFailed)
	assert.Empty(t, state.LastCommanded, "failed writes must not update last-commanded")
}

func TestWriteRecoversAfterFailure(t *testing.T) {
	hal := &stubHAL{actuateErr: errors.New("bus glitch")}
	r := NewRegistry(hal)
	ctx := context.Background()

	require.Error(t, r.Write(ctx, core.SubsystemArm, map[string]float64{"shoulder": 0.3}))
	state, _ := r.Read(core.SubsystemArm)
	assert.True(t, state.WriteFailed)

	hal.actuateErr = nil
	require.NoError(t, r.Write(ctx, core.SubsystemArm, map[string]float64{"shoulder": 0.3}))
	state, _ = r.Read(core.SubsystemArm)
	assert.False(t, state.WriteFailed)
}

func TestWriteUnknownSubsystem(t *testing.T) {
	r := NewRegistry(&stubHAL{})
	err := r.Write(context.Background(), "wings", map[string]float64{"flap": 1})
	assert.ErrorIs(t, err, core.ErrUnknownSubsystem)
}

func TestRefreshUpdatesObserved(t *testing.T) {
	hal := &stubHAL{observed: map[core.Subsystem]map[string]float64{
		core.SubsystemDrivebase: {"left": 0.48},
	}}
	r := NewRegistry(hal)

	require.NoError(t, r.Refresh(context.Background()))

	state, _ := r.Read(core.SubsystemDrivebase)
	assert.Equal(t, map[string]float64{"left": 0.48}, state.LastObserved)
}

func TestReadReturnsCopies(t *testing.T) {
	r := NewRegistry(&stubHAL{})
	require.NoError(t, r.Write(context.Background(), core.SubsystemDrivebase, map[string]float64{"left": 0.5}))

	state, _ := r.Read(core.SubsystemDrivebase)
	state.LastCommanded["left"] = 99

	again, _ := r.Read(core.SubsystemDrivebase)
	assert.Equal(t, 0.5, again.LastCommanded["left"])
}

func TestStatesCoversEverySubsystem(t *testing.T) {
	r := NewRegistry(&stubHAL{})
	states := r.States()
	require.Len(t, states, len(core.Subsystems()))
	assert.Equal(t, core.SubsystemDrivebase, states[0].Subsystem)
}
