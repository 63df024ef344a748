package cmd

import (
	"fmt"
	"os"

	"github.com/BioHazard786/droprelay/internal/config"
	"github.com/BioHazard786/droprelay/internal/signaling"
	"github.com/BioHazard786/droprelay/internal/ui"
	"github.com/spf13/cobra"
)

var roomsCmd = &cobra.Command{
	Use:   "rooms [room-hash]",
	Short: "Show the channel names derived from a room hash",
	Long: `Show the plain and observable channel names a room hash maps to, without
connecting to anything. Peers must use the same names to find each other.

Examples:
  droprelay rooms
  droprelay rooms abc`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		hash := ""
		if len(args) == 1 {
			hash = args[0]
		}

		cfg, err := config.Load(config.Options{RoomHash: hash})
		if err != nil {
			return err
		}

		displayRoomNames(cfg)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(roomsCmd)
}

func displayRoomNames(cfg *config.Config) {
	hash := cfg.RoomHash
	if hash == "" {
		hash = signaling.DefaultRoomHash
		ui.NewReporter(os.Stderr).Warn("No room hash given, showing the shared default room")
	}
	names := cfg.Names()

	rows := [][]string{
		{"Room hash", hash},
		{"Publish to", names.Room},
		{"Subscribe to", names.Observable},
		{"Service", cfg.URL},
	}
	fmt.Fprintln(os.Stdout, ui.KeyValueTable(os.Stdout, []string{"Name", "Value"}, rows))
}
