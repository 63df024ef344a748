package cmd

import (
	"fmt"
	"net"
	"os"

	"github.com/BioHazard786/droprelay/internal/broker"
	"github.com/BioHazard786/droprelay/internal/config"
	"github.com/BioHazard786/droprelay/internal/ui"
	"github.com/spf13/cobra"
)

var (
	flagAddr          string
	flagBrokerChannel string
)

var brokerCmd = &cobra.Command{
	Use:   "broker",
	Short: "Run a local in-memory pub/sub broker",
	Long: `Run a local broker that speaks the same websocket protocol as the hosted
pub/sub service, for development and tests.

Examples:
  droprelay broker
  droprelay broker --addr :9000 --channel dev-channel`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadBroker(config.BrokerOptions{
			Addr:      flagAddr,
			ChannelID: flagBrokerChannel,
		})
		if err != nil {
			return err
		}
		ln, err := net.Listen("tcp", cfg.Addr)
		if err != nil {
			return fmt.Errorf("broker listen: %w", err)
		}

		ui.NewReporter(os.Stderr).Success(fmt.Sprintf("Broker listening on ws://%s%s", ln.Addr(), broker.WebsocketPath))
		return broker.Serve(cmd.Context(), ln, cfg.ChannelID)
	},
}

func init() {
	brokerCmd.Flags().StringVarP(&flagAddr, "addr", "a", "", "Listen address (default: "+config.DefaultBrokerAddr+")")
	brokerCmd.Flags().StringVarP(&flagBrokerChannel, "channel", "c", "", "Channel ID accepted in handshakes")
	rootCmd.AddCommand(brokerCmd)
}
