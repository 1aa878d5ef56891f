// Package bus implements the prioritized command bus between ingress
// adapters and the supervisor tick loop.
package bus

import (
	"fmt"
	"sync"
	"time"

	"github.com/kevinbot-io/kevinbot/internal/supervisor/core"
	"github.com/kevinbot-io/kevinbot/pkg/log"
)

const (
	// DefaultCapacity bounds each priority tier queue.
	DefaultCapacity = 64

	// DefaultStaleness is the maximum IssuedAt age accepted at receipt.
	DefaultStaleness = 500 * time.Millisecond
)

// Bus accepts commands from concurrent producers and hands them to the
// single supervisor consumer, one per tick, highest priority tier first and
// FIFO within a tier. Submit never blocks a producer on the consumer and
// Next never blocks the consumer on producers.
type Bus struct {
	capacity  int
	staleness time.Duration
	now       func() time.Time

	mu       sync.Mutex
	queues   [core.NumPriorities][]core.Command
	receipts map[core.Source]time.Time
}

// Option tunes a Bus.
type Option func(*Bus)

// WithCapacity bounds each tier queue at n commands.
func WithCapacity(n int) Option {
	return func(b *Bus) { b.capacity = n }
}

// WithStaleness sets the maximum accepted command age.
func WithStaleness(d time.Duration) Option {
	return func(b *Bus) { b.staleness = d }
}

// WithClock overrides the time source. Tests only.
func WithClock(now func() time.Time) Option {
	return func(b *Bus) { b.now = now }
}

// New returns an empty bus.
func New(opts ...Option) *Bus {
	b := &Bus{
		capacity:  DefaultCapacity,
		staleness: DefaultStaleness,
		now:       time.Now,
		receipts:  make(map[core.Source]time.Time),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Submit validates cmd and enqueues it on its source's priority tier,
// stamping the receipt time. Rejected commands never reach the supervisor;
// the returned error wraps one of the core sentinel errors so callers can
// classify the rejection for acks and metrics.
//
// A rejected command still counts as source liveness. A teleop sender that
// floods the queue is alive, just misbehaving, and must not trip the
// lost-heartbeat interlock.
func (b *Bus) Submit(cmd core.Command) error {
	now := b.now()

	b.mu.Lock()
	b.receipts[cmd.Source] = now
	b.mu.Unlock()

	if err := cmd.Validate(); err != nil {
		log.Warn("Rejected malformed command", "id", cmd.ID, "source", cmd.Source, "err", err.Error())
		return fmt.Errorf("%w: %s", core.ErrMalformedCommand, err.Error())
	}
	if age := now.Sub(cmd.IssuedAt); age > b.staleness {
		log.Warn("Rejected stale command", "id", cmd.ID, "source", cmd.Source, "age", age.String())
		return fmt.Errorf("%w: issued %s ago", core.ErrStaleCommand, age)
	}

	cmd.ReceivedAt = now
	tier := cmd.Priority()

	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.queues[tier]) >= b.capacity {
		log.Warn("Rejected command, tier queue full", "id", cmd.ID, "source", cmd.Source)
		return fmt.Errorf("%w: tier %d at capacity %d", core.ErrQueueFull, tier, b.capacity)
	}
	b.queues[tier] = append(b.queues[tier], cmd)
	return nil
}

// Next pops the highest-priority pending command. It never blocks; the
// second return is false when every tier is empty.
func (b *Bus) Next() (core.Command, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for tier := range b.queues {
		q := b.queues[tier]
		if len(q) == 0 {
			continue
		}
		cmd := q[0]
		// Slide rather than re-slice so the backing array does not pin
		// consumed commands.
		copy(q, q[1:])
		b.queues[tier] = q[:len(q)-1]
		return cmd, true
	}
	return core.Command{}, false
}

// Drain discards all pending commands and returns how many were dropped.
// Used when entering a terminal mode.
func (b *Bus) Drain() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := 0
	for tier := range b.queues {
		n += len(b.queues[tier])
		b.queues[tier] = b.queues[tier][:0]
	}
	return n
}

// LastReceipt returns when the bus last heard from src, in any form.
// The poller turns this into the teleop link-age sensor reading.
func (b *Bus) LastReceipt(src core.Source) (time.Time, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	t, ok := b.receipts[src]
	return t, ok
}

// Depth returns the total number of pending commands across all tiers.
func (b *Bus) Depth() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := 0
	for tier := range b.queues {
		n += len(b.queues[tier])
	}
	return n
}
