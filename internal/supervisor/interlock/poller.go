package interlock

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/kevinbot-io/kevinbot/internal/supervisor/core"
	"github.com/kevinbot-io/kevinbot/pkg/log"
)

// DefaultPollInterval is how often the poller samples hardware.
const DefaultPollInterval = 20 * time.Millisecond

// SensorSource is the hardware read side consumed by the poller.
type SensorSource interface {
	// Sense samples every sensor.
	Sense(ctx context.Context) (map[core.SensorID]core.Reading, error)

	// Refresh reads back actuator observed values into the registry.
	Refresh(ctx context.Context) error
}

// ReceiptSource reports command-bus liveness per source.
type ReceiptSource interface {
	LastReceipt(src core.Source) (time.Time, bool)
}

// Poller is the single writer of sensor snapshots. It samples hardware at
// a fixed cadence off the tick path and publishes immutable snapshots
// through an atomic pointer, so the supervisor reads one consistent view
// per tick without ever blocking on I/O.
type Poller struct {
	source   SensorSource
	receipts ReceiptSource
	interval time.Duration
	logger   log.Logger

	snap atomic.Pointer[core.SensorSnapshot]
}

// NewPoller returns a poller that is not yet running. Latest returns an
// empty snapshot until the first sample lands.
func NewPoller(source SensorSource, receipts ReceiptSource, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	p := &Poller{
		source:   source,
		receipts: receipts,
		interval: interval,
		logger:   log.WithName("poller"),
	}
	p.snap.Store(&core.SensorSnapshot{})
	return p
}

// Latest returns the most recent snapshot. Safe for concurrent use.
func (p *Poller) Latest() core.SensorSnapshot {
	return *p.snap.Load()
}

// Start samples until ctx is cancelled. A failed sample keeps the previous
// snapshot; the supervisor keeps acting on slightly stale data rather than
// flapping on transient bus errors.
func (p *Poller) Start(ctx context.Context) error {
	p.logger.Info("Sensor poller starting", "interval", p.interval.String())

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Sensor poller stopping")
			return nil
		case <-ticker.C:
			p.sample(ctx)
		}
	}
}

func (p *Poller) sample(ctx context.Context) {
	if err := p.source.Refresh(ctx); err != nil {
		p.logger.Warn("Actuator readback failed, keeping previous observations", "err", err.Error())
	}

	readings, err := p.source.Sense(ctx)
	if err != nil {
		p.logger.Warn("Sensor sample failed, keeping previous snapshot", "err", err.Error())
		return
	}

	now := time.Now()
	if p.receipts != nil {
		if last, ok := p.receipts.LastReceipt(core.SourceTeleop); ok {
			age := now.Sub(last)
			readings[core.SensorTeleopLinkAge] = core.NumberReading(float64(age.Milliseconds()))
		}
	}

	p.snap.Store(&core.SensorSnapshot{Taken: now, Readings: readings})
}
