package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kevinbot-io/kevinbot/internal/ingress"
	"github.com/kevinbot-io/kevinbot/internal/supervisor/core"
)

// sendCommand posts an operator command and prints the disposition.
func sendCommand(cmd *cobra.Command, wire ingress.WireCommand) error {
	wire.IssuedAt = time.Now()

	var ack ingress.Ack
	if err := postJSON("/api/v1/command", wire, &ack); err != nil {
		return err
	}
	if !ack.Accepted {
		return fmt.Errorf("robot refused the command: %s", ack.Reason)
	}
	cmd.Printf("accepted (%s)\n", ack.ID)
	return nil
}

var enableCmd = &cobra.Command{
	Use:   "enable",
	Short: "Arm the robot (Disabled -> Idle)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return sendCommand(cmd, ingress.WireCommand{Kind: string(core.KindEnable)})
	},
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Acknowledge and clear an emergency stop or fault",
	Long: `Clears a terminal safety state back to Idle. The robot refuses the clear
while the emergency stop is still pressed or the fault condition persists.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return sendCommand(cmd, ingress.WireCommand{Kind: string(core.KindClear)})
	},
}

var modeCmd = &cobra.Command{
	Use:       "mode {idle|teleop|autonomous}",
	Short:     "Select the robot's control mode",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"idle", "teleop", "autonomous"},
	RunE: func(cmd *cobra.Command, args []string) error {
		var target core.Mode
		switch args[0] {
		case "idle":
			target = core.ModeIdle
		case "teleop":
			target = core.ModeTeleop
		case "autonomous":
			target = core.ModeAutonomous
		default:
			return fmt.Errorf("unknown mode %q", args[0])
		}
		return sendCommand(cmd, ingress.WireCommand{
			Kind: string(core.KindSelectMode),
			Mode: string(target),
		})
	},
}

var sayCmd = &cobra.Command{
	Use:   "say TEXT",
	Short: "Speak a line through the robot's speaker",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var ack ingress.Ack
		if err := postJSON("/api/v1/say", map[string]string{"text": args[0]}, &ack); err != nil {
			return err
		}
		if !ack.Accepted {
			return fmt.Errorf("robot refused: %s", ack.Reason)
		}
		cmd.Println("queued")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(enableCmd, clearCmd, modeCmd, sayCmd)
}
