package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/BioHazard786/droprelay/internal/config"
	"github.com/BioHazard786/droprelay/internal/relay"
	"github.com/BioHazard786/droprelay/internal/signaling"
	"github.com/BioHazard786/droprelay/internal/ui"
	"github.com/BioHazard786/droprelay/internal/version"
	"github.com/spf13/cobra"
)

var (
	flagURL     string
	flagChannel string
	flagName    string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "droprelay [room-hash]",
	Short: "Relay WebRTC signaling between stdin/stdout and a pub/sub room",
	Long: `droprelay joins a signaling room on a Scaledrone-compatible pub/sub service
and bridges it to the standard streams.

Every line read from stdin must be a JSON value and is published to the room.
Room events are written to stdout as one JSON object per line:

  {"join":"<own id>"}            subscription opened
  {"member_join":{...}}          a member is present or arrived
  {"member_leave":{...}}         a member left
  {"data":{...,"member":{...}}}  a message whose targetId is our id

Errors go to stderr and never stop the relay. Without a room hash the
shared default room is used.

Examples:
  droprelay
  droprelay abc
  DRONE_URL=ws://localhost:8080/v3/websocket droprelay abc`,
	Args:    cobra.MaximumNArgs(1),
	Version: version.Version,
	RunE: func(cmd *cobra.Command, args []string) error {
		var hash string
		if len(args) == 1 {
			hash = args[0]
		}
		return runRelay(cmd.Context(), hash)
	},
}

func init() {
	rootCmd.Flags().StringVarP(&flagURL, "url", "u", "", "Pub/sub websocket URL (default: "+config.DefaultURL+")")
	rootCmd.Flags().StringVarP(&flagChannel, "channel", "c", "", "Channel ID sent in the handshake")
	rootCmd.Flags().StringVarP(&flagName, "name", "n", "", "Client name advertised to other members (default: "+config.DefaultClientName+")")
}

func runRelay(ctx context.Context, hash string) error {
	cfg, err := config.Load(config.Options{
		URL:        flagURL,
		ChannelID:  flagChannel,
		ClientName: flagName,
		RoomHash:   hash,
	})
	if err != nil {
		return err
	}

	session := signaling.Open(ctx, cfg.Session())
	defer session.Close()

	r := relay.New(session, os.Stdin, os.Stdout, ui.NewReporter(os.Stderr))
	if err := r.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		ui.NewReporter(os.Stderr).Report(err)
		stop()
		os.Exit(1)
	}
}
