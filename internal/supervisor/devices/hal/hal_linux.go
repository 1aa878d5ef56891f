//go:build linux

package hal

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/kevinbot-io/kevinbot/internal/supervisor/core"
	"github.com/kevinbot-io/kevinbot/internal/supervisor/devices"
	"github.com/kevinbot-io/kevinbot/pkg/log"
)

const defaultSerialDevice = "/dev/ttyAMA0"

// LinuxHAL talks to the hardware core over its serial line protocol.
//
// Writes are single lines of the form "subsystem.channel=value". The core
// continuously streams status lines in the same shape, plus bare sensor
// lines such as "core.temperature=41.2" and "estop.asserted=1"; a reader
// goroutine folds that stream into the latest-value caches that Observe
// and Sense serve from. The serial port must be preconfigured (raw mode,
// 115200 8N1) by the boot scripts.
type LinuxHAL struct {
	port *os.File

	mu       sync.RWMutex
	observed map[core.Subsystem]map[string]float64
	sensors  map[core.SensorID]core.Reading
	done     chan struct{}
}

func NewHAL() devices.HAL {
	return &LinuxHAL{
		observed: make(map[core.Subsystem]map[string]float64),
		sensors:  make(map[core.SensorID]core.Reading),
		done:     make(chan struct{}),
	}
}

func (h *LinuxHAL) Open(ctx context.Context) error {
	device := os.Getenv("KEVINBOT_SERIAL_DEVICE")
	if device == "" {
		device = defaultSerialDevice
	}

	port, err := os.OpenFile(device, os.O_RDWR, 0)
	if err != nil {
		return fmt.Errorf("open serial device %s: %w", device, err)
	}
	h.port = port

	go h.readLoop()
	log.Info("Hardware link open", "device", device)
	return nil
}

func (h *LinuxHAL) Actuate(ctx context.Context, sub core.Subsystem, values map[string]float64) error {
	if h.port == nil {
		return fmt.Errorf("hardware link not open")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	// Stable channel order keeps the wire traffic reproducible.
	channels := make([]string, 0, len(values))
	for ch := range values {
		channels = append(channels, ch)
	}
	sort.Strings(channels)

	var sb strings.Builder
	for _, ch := range channels {
		fmt.Fprintf(&sb, "%s.%s=%.4f\n", sub, ch, values[ch])
	}

	// Serial writes are fast enough that a mid-write cancel is not worth a
	// partial-line protocol violation; the deadline is re-checked before
	// committing instead.
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := h.port.WriteString(sb.String()); err != nil {
		return fmt.Errorf("serial write: %w", err)
	}
	return nil
}

func (h *LinuxHAL) Observe(ctx context.Context, sub core.Subsystem) (map[string]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	values, ok := h.observed[sub]
	if !ok {
		return map[string]float64{}, nil
	}
	out := make(map[string]float64, len(values))
	for ch, v := range values {
		out[ch] = v
	}
	return out, nil
}

func (h *LinuxHAL) Sense(ctx context.Context) (map[core.SensorID]core.Reading, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make(map[core.SensorID]core.Reading, len(h.sensors))
	for id, r := range h.sensors {
		out[id] = r
	}
	return out, nil
}

func (h *LinuxHAL) Close() error {
	close(h.done)
	if h.port != nil {
		return h.port.Close()
	}
	return nil
}

func (h *LinuxHAL) readLoop() {
	scanner := bufio.NewScanner(h.port)
	for scanner.Scan() {
		select {
		case <-h.done:
			return
		default:
		}
		h.ingestLine(strings.TrimSpace(scanner.Text()))
	}
	if err := scanner.Err(); err != nil {
		log.Error(err, "Hardware status stream ended")
	}
}

// ingestLine folds one "key=value" status line into the caches. Lines whose
// key prefix names a subsystem are actuator readback, everything else is a
// sensor. Unparseable lines are dropped; the core emits debug chatter on
// the same port during boot.
func (h *LinuxHAL) ingestLine(line string) {
	if line == "" || strings.HasPrefix(line, "#") {
		return
	}
	key, raw, ok := strings.Cut(line, "=")
	if !ok {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if prefix, ch, ok := strings.Cut(key, "."); ok {
		if sub := core.Subsystem(prefix); core.KnownSubsystem(sub) {
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return
			}
			if h.observed[sub] == nil {
				h.observed[sub] = make(map[string]float64)
			}
			h.observed[sub][ch] = v
			return
		}
	}

	switch raw {
	case "0", "1", "true", "false":
		h.sensors[core.SensorID(key)] = core.BoolReading(raw == "1" || raw == "true")
	default:
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return
		}
		h.sensors[core.SensorID(key)] = core.NumberReading(v)
	}
}
