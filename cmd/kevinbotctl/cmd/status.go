package cmd

import (
	"fmt"
	"sort"

	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"

	"github.com/kevinbot-io/kevinbot/internal/server"
	"github.com/kevinbot-io/kevinbot/internal/supervisor/core"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the robot's mode, sensors and subsystem state",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var status server.Status
		if err := getJSON("/api/v1/status", &status); err != nil {
			return err
		}

		summary := uitable.New()
		summary.AddRow("ROBOT:", status.RobotID)
		summary.AddRow("MODE:", string(status.Mode))
		summary.AddRow("UPLINK:", onOff(status.Uplink, "connected", "offline"))
		summary.AddRow("QUEUE:", fmt.Sprintf("%d pending", status.QueueDepth))
		if !status.Snapshot.Taken.IsZero() {
			summary.AddRow("SNAPSHOT:", status.Snapshot.Taken.Format("15:04:05.000"))
		}
		cmd.Println(summary)

		if len(status.Snapshot.Readings) > 0 {
			cmd.Println()
			sensors := uitable.New()
			sensors.AddRow("SENSOR", "VALUE")
			for _, id := range sortedSensorIDs(status.Snapshot.Readings) {
				sensors.AddRow(string(id), formatReading(status.Snapshot.Readings[id]))
			}
			cmd.Println(sensors)
		}

		if len(status.Devices) > 0 {
			cmd.Println()
			devs := uitable.New()
			devs.AddRow("SUBSYSTEM", "COMMANDED", "OBSERVED", "HEALTHY")
			for _, d := range status.Devices {
				devs.AddRow(string(d.Subsystem),
					formatValues(d.LastCommanded),
					formatValues(d.LastObserved),
					onOff(!d.WriteFailed, "yes", "WRITE FAILED"))
			}
			cmd.Println(devs)
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func onOff(b bool, yes, no string) string {
	if b {
		return yes
	}
	return no
}

func sortedSensorIDs(readings map[core.SensorID]core.Reading) []core.SensorID {
	ids := make([]core.SensorID, 0, len(readings))
	for id := range readings {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func formatReading(r core.Reading) string {
	if r.Kind == core.ReadingBoolean {
		return onOff(r.Bool, "true", "false")
	}
	return fmt.Sprintf("%.2f", r.Number)
}

func formatValues(values map[string]float64) string {
	if len(values) == 0 {
		return "-"
	}
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := ""
	for i, k := range keys {
		if i > 0 {
			out += " "
		}
		out += fmt.Sprintf("%s=%.2f", k, values[k])
	}
	return out
}
