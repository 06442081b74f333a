package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "apns-notifyd",
	Short: "APNs notifier for mail delivery events",
	Long: `Reads one JSON event on stdin and either registers a device for push
alerts (event "ApplePushService") or pushes a new-mail notification to every
device registered for the user (event "MessageNew").

Configuration is read from APNS_NOTIFYD_* environment variables, optionally
layered over a YAML file given with --config.`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runNotify,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to a YAML config file (environment variables take precedence)")
	rootCmd.AddCommand(NewDevicesCmd())
	rootCmd.AddCommand(NewDeliveriesCmd())
	rootCmd.AddCommand(NewVersionCmd())
}
