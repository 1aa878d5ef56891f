package topic

import (
	"fmt"
)

// Constants defining the standard topic segments.
// These act as the protocol contract between the robot supervisor and any
// remote console (driver station, dashboard, sequencer upload tool).
// Changing these values breaks compatibility with deployed robots.
const (
	// SegmentCommand is the downstream control topic (Console -> Robot).
	// Pattern: {root}/command/{robotID}
	SegmentCommand = "command"

	// SegmentCommandAck is the upstream command disposition topic (Robot -> Console).
	// Pattern: {root}/command/ack/{robotID}
	SegmentCommandAck = "command/ack"

	// SegmentTelemetry is the upstream telemetry event stream (Robot -> Console).
	// Pattern: {root}/telemetry/{robotID}
	SegmentTelemetry = "telemetry"

	// SegmentOnline is the retained online/offline presence topic (Robot -> Console).
	// Also used as the MQTT will topic so the broker announces unexpected loss.
	// Pattern: {root}/online/{robotID}
	SegmentOnline = "online"
)

// Standard MQTT wildcard definitions.
const (
	// Wildcard is the single-level wildcard "+".
	Wildcard = "+"

	// MultiWildcard is the multi-level wildcard "#".
	// It must be the last character in the topic filter.
	MultiWildcard = "#"
)

// Builder encapsulates the logic for constructing MQTT topic strings.
// It ensures consistency between the supervisor and its consoles.
type Builder struct {
	// root is the base namespace for all topics (e.g. "kevinbot/v1").
	root string
}

// NewBuilder creates a new Builder with the specified root namespace.
func NewBuilder(root string) *Builder {
	return &Builder{root: root}
}

// Build constructs the final topic string.
// Pattern: {root}/{segment}/{identifier}
func (b *Builder) Build(segment, id string) string {
	return fmt.Sprintf("%s/%s/%s", b.root, segment, id)
}

// Command returns the topic for sending commands to a specific robot.
// Direction: Console -> Robot
func (b *Builder) Command(robotID string) string {
	return b.Build(SegmentCommand, robotID)
}

// CommandAck returns the topic for a robot to report command dispositions.
// Direction: Robot -> Console
func (b *Builder) CommandAck(robotID string) string {
	return b.Build(SegmentCommandAck, robotID)
}

// Telemetry returns the topic for the robot's telemetry event stream.
// Direction: Robot -> Console
func (b *Builder) Telemetry(robotID string) string {
	return b.Build(SegmentTelemetry, robotID)
}

// Online returns the retained presence topic for a robot.
// Direction: Robot -> Console
func (b *Builder) Online(robotID string) string {
	return b.Build(SegmentOnline, robotID)
}

// TelemetryWildcard returns the filter used by consoles to watch ALL robots.
// Result: {root}/telemetry/+
func (b *Builder) TelemetryWildcard() string {
	return b.Build(SegmentTelemetry, Wildcard)
}
