package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/shaharia-lab/apns-notifyd/internal/logger"
	"github.com/shaharia-lab/apns-notifyd/internal/registry"
)

// NewDevicesCmd returns the "devices" subcommand that lists the devices
// registered for a user.
func NewDevicesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "devices <user>",
		Short: "List the devices registered for a user",
		Long:  "Print each device token registered for the user, newest first, with the account id it was registered for.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			log, closer, err := logger.New(cfg.LogDir, cfg.SlogLevel())
			if err != nil {
				return err
			}
			defer closer.Close()

			st, err := openStores(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer st.Close(log)

			return listDevices(cmd.Context(), registry.New(st.kv), args[0], cmd.OutOrStdout())
		},
	}
}

func listDevices(ctx context.Context, reg *registry.Registry, user string, out io.Writer) error {
	tokens, ok, err := reg.Devices(ctx, user)
	if err != nil {
		return err
	}
	if !ok || len(tokens) == 0 {
		fmt.Fprintf(out, "no devices registered for %s\n", user)
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DEVICE TOKEN\tACCOUNT ID")
	for _, token := range tokens {
		account, err := reg.AccountID(ctx, token)
		if errors.Is(err, registry.ErrAccountNotFound) {
			account = "<missing>"
		} else if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s\t%s\n", token, account)
	}
	return w.Flush()
}
