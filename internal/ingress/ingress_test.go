package ingress

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kevinbot-io/kevinbot/internal/supervisor/bus"
	"github.com/kevinbot-io/kevinbot/internal/supervisor/core"
	"github.com/kevinbot-io/kevinbot/pkg/mqtt"
	"github.com/kevinbot-io/kevinbot/pkg/mqtt/topic"
)

type fakeMQTT struct {
	mu        sync.Mutex
	published map[string][][]byte
	handlers  map[string]mqtt.MessageHandler
}

func newFakeMQTT() *fakeMQTT {
	return &fakeMQTT{
		published: map[string][][]byte{},
		handlers:  map[string]mqtt.MessageHandler{},
	}
}

func (f *fakeMQTT) Start(ctx context.Context) error           { return nil }
func (f *fakeMQTT) Disconnect(ctx context.Context)            {}
func (f *fakeMQTT) AwaitConnection(ctx context.Context) error { return nil }
func (f *fakeMQTT) IsConnected() bool                         { return true }

func (f *fakeMQTT) Publish(ctx context.Context, topic string, qos int, retain bool, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published[topic] = append(f.published[topic], payload)
	return nil
}

func (f *fakeMQTT) Subscribe(ctx context.Context, topic string, qos int, handler mqtt.MessageHandler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[topic] = handler
	return nil
}

func (f *fakeMQTT) Unsubscribe(ctx context.Context, topic string) error { return nil }

func (f *fakeMQTT) deliver(ctx context.Context, topic string, payload []byte) {
	f.mu.Lock()
	handler := f.handlers[topic]
	f.mu.Unlock()
	handler(ctx, topic, payload)
}

func (f *fakeMQTT) acks(t *testing.T, topic string) []Ack {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []Ack
	for _, payload := range f.published[topic] {
		var ack Ack
		require.NoError(t, json.Unmarshal(payload, &ack))
		out = append(out, ack)
	}
	return out
}

func startTeleop(t *testing.T) (*fakeMQTT, *bus.Bus, context.CancelFunc) {
	t.Helper()

	client := newFakeMQTT()
	b := bus.New()
	adapter := NewTeleopAdapter(client, topic.NewBuilder("kevinbot/v1"), "kbot-01", b)

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = adapter.Start(ctx) }()

	require.Eventually(t, func() bool {
		client.mu.Lock()
		defer client.mu.Unlock()
		return client.handlers["kevinbot/v1/command/kbot-01"] != nil
	}, time.Second, 5*time.Millisecond)

	return client, b, cancel
}

func TestTeleopAcceptsAndAcks(t *testing.T) {
	client, b, cancel := startTeleop(t)
	defer cancel()

	payload, _ := json.Marshal(WireCommand{
		ID:       "w-1",
		Kind:     string(core.KindActuate),
		Target:   string(core.SubsystemDrivebase),
		Values:   map[string]float64{"left": 0.4},
		IssuedAt: time.Now(),
	})
	client.deliver(context.Background(), "kevinbot/v1/command/kbot-01", payload)

	cmd, ok := b.Next()
	require.True(t, ok)
	assert.Equal(t, "w-1", cmd.ID)
	assert.Equal(t, core.SourceTeleop, cmd.Source, "source defaults to teleop")
	assert.False(t, cmd.ReceivedAt.IsZero())

	acks := client.acks(t, "kevinbot/v1/command/ack/kbot-01")
	require.Len(t, acks, 1)
	assert.True(t, acks[0].Accepted)
	assert.Equal(t, "w-1", acks[0].ID)
}

func TestTeleopNacksStale(t *testing.T) {
	client, b, cancel := startTeleop(t)
	defer cancel()

	payload, _ := json.Marshal(WireCommand{
		ID:       "w-2",
		Kind:     string(core.KindActuate),
		Target:   string(core.SubsystemDrivebase),
		Values:   map[string]float64{"left": 0.4},
		IssuedAt: time.Now().Add(-5 * time.Second),
	})
	client.deliver(context.Background(), "kevinbot/v1/command/kbot-01", payload)

	_, ok := b.Next()
	assert.False(t, ok)

	acks := client.acks(t, "kevinbot/v1/command/ack/kbot-01")
	require.Len(t, acks, 1)
	assert.False(t, acks[0].Accepted)
	assert.Equal(t, string(core.ReasonStaleCommand), acks[0].Reason)
}

func TestTeleopNacksUndecodablePayload(t *testing.T) {
	client, b, cancel := startTeleop(t)
	defer cancel()

	client.deliver(context.Background(), "kevinbot/v1/command/kbot-01", []byte("{not json"))

	_, ok := b.Next()
	assert.False(t, ok)

	acks := client.acks(t, "kevinbot/v1/command/ack/kbot-01")
	require.Len(t, acks, 1)
	assert.Equal(t, string(core.ReasonMalformedCommand), acks[0].Reason)
}

func TestTeleopPreservesOperatorSource(t *testing.T) {
	client, b, cancel := startTeleop(t)
	defer cancel()

	payload, _ := json.Marshal(WireCommand{
		ID:       "w-3",
		Source:   string(core.SourceOperator),
		Kind:     string(core.KindEnable),
		IssuedAt: time.Now(),
	})
	client.deliver(context.Background(), "kevinbot/v1/command/kbot-01", payload)

	cmd, ok := b.Next()
	require.True(t, ok)
	assert.Equal(t, core.SourceOperator, cmd.Source)
	assert.Equal(t, core.PriorityOperator, cmd.Priority())
}

func TestWireCommandMintsID(t *testing.T) {
	cmd := WireCommand{Kind: string(core.KindEnable), IssuedAt: time.Now()}.ToCommand(core.SourceTeleop)
	assert.NotEmpty(t, cmd.ID)
}

type staticModes struct {
	mu   sync.Mutex
	mode core.Mode
}

func (s *staticModes) Mode() core.Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

func (s *staticModes) set(m core.Mode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mode = m
}

func TestSequencerIdlesOutsideAutonomous(t *testing.T) {
	modes := &staticModes{mode: core.ModeIdle}
	b := bus.New()
	seq := NewSequencer(DefaultRoutine(), modes, b, time.Millisecond)

	for i := 0; i < 10; i++ {
		seq.advance()
	}
	assert.Zero(t, b.Depth())
}

func TestSequencerEmitsStepsInAutonomous(t *testing.T) {
	modes := &staticModes{mode: core.ModeAutonomous}
	b := bus.New()

	routine := []Step{
		{Name: "one", Dwell: 2 * time.Millisecond, Kind: core.KindActuate,
			Target: core.SubsystemDrivebase, Values: map[string]float64{"left": 0.2}},
		{Name: "two", Dwell: 2 * time.Millisecond, Kind: core.KindActuate,
			Target: core.SubsystemLighting, Values: map[string]float64{"brightness": 1}},
	}
	seq := NewSequencer(routine, modes, b, time.Millisecond)

	// Each step emits once at entry, then dwells.
	for i := 0; i < 4; i++ {
		seq.advance()
	}

	first, ok := b.Next()
	require.True(t, ok)
	assert.Equal(t, core.SubsystemDrivebase, first.Target)
	assert.Equal(t, core.SourceAutonomous, first.Source)

	second, ok := b.Next()
	require.True(t, ok)
	assert.Equal(t, core.SubsystemLighting, second.Target)

	_, ok = b.Next()
	assert.False(t, ok, "dwelling steps must not re-emit")
}

func TestSequencerRewindsWhenLeavingAutonomous(t *testing.T) {
	modes := &staticModes{mode: core.ModeAutonomous}
	b := bus.New()

	routine := []Step{
		{Name: "one", Dwell: 2 * time.Millisecond, Kind: core.KindActuate,
			Target: core.SubsystemDrivebase, Values: map[string]float64{"left": 0.2}},
		{Name: "two", Dwell: 2 * time.Millisecond, Kind: core.KindActuate,
			Target: core.SubsystemLighting, Values: map[string]float64{"brightness": 1}},
	}
	seq := NewSequencer(routine, modes, b, time.Millisecond)

	seq.advance()
	seq.advance()
	seq.advance() // now on step two
	b.Drain()

	modes.set(core.ModeIdle)
	seq.advance()
	modes.set(core.ModeAutonomous)
	seq.advance()

	cmd, ok := b.Next()
	require.True(t, ok)
	assert.Equal(t, core.SubsystemDrivebase, cmd.Target, "routine restarts from step zero")
}
