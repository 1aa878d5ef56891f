//go:build !linux

package hal

import (
	"context"
	"os"
	"sync"

	"github.com/kevinbot-io/kevinbot/internal/supervisor/core"
	"github.com/kevinbot-io/kevinbot/internal/supervisor/devices"
	"github.com/kevinbot-io/kevinbot/pkg/log"
)

// MockHAL is the development-machine stand-in for the hardware core.
// Actuator writes echo straight back as observed values and the sensors
// report a healthy robot. Environment variables flip individual sensors so
// safety paths can be exercised without hardware:
//
//	KEVINBOT_MOCK_ESTOP=1        assert the emergency stop
//	KEVINBOT_MOCK_OVERTEMP=1     report a core over-temperature
type MockHAL struct {
	mu       sync.RWMutex
	observed map[core.Subsystem]map[string]float64
}

func NewHAL() devices.HAL {
	return &MockHAL{
		observed: make(map[core.Subsystem]map[string]float64),
	}
}

func (h *MockHAL) Open(ctx context.Context) error {
	log.Info("[HAL-Mock] Hardware link open, echoing writes back as observations")
	return nil
}

func (h *MockHAL) Actuate(ctx context.Context, sub core.Subsystem, values map[string]float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.observed[sub] == nil {
		h.observed[sub] = make(map[string]float64)
	}
	for ch, v := range values {
		h.observed[sub][ch] = v
	}
	return nil
}

func (h *MockHAL) Observe(ctx context.Context, sub core.Subsystem) (map[string]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make(map[string]float64, len(h.observed[sub]))
	for ch, v := range h.observed[sub] {
		out[ch] = v
	}
	return out, nil
}

func (h *MockHAL) Sense(ctx context.Context) (map[core.SensorID]core.Reading, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	temp := 38.5
	if os.Getenv("KEVINBOT_MOCK_OVERTEMP") == "1" {
		temp = 95.0
	}

	return map[core.SensorID]core.Reading{
		core.SensorEStop:          core.BoolReading(os.Getenv("KEVINBOT_MOCK_ESTOP") == "1"),
		core.SensorCoreTemp:       core.NumberReading(temp),
		core.SensorDriveCurrent:   core.NumberReading(6.2),
		core.SensorBatteryVoltage: core.NumberReading(12.6),
	}, nil
}

func (h *MockHAL) Close() error {
	log.Info("[HAL-Mock] Hardware link closed")
	return nil
}
