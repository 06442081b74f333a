package cmd

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/shaharia-lab/apns-notifyd/internal/logger"
	"github.com/shaharia-lab/apns-notifyd/internal/storage"
)

var errNoDeliveryLog = errors.New("the delivery log is only kept by the sqlite store")

// NewDeliveriesCmd returns the "deliveries" subcommand that prints recent
// push attempts.
func NewDeliveriesCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "deliveries",
		Short: "Show recent push delivery attempts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
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

			if st.deliveries == nil {
				return errNoDeliveryLog
			}
			entries, err := st.deliveries.ListDeliveries(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return printDeliveries(cmd.OutOrStdout(), entries)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Maximum number of entries to show")
	return cmd
}

func printDeliveries(out io.Writer, entries []storage.DeliveryLogEntry) error {
	if len(entries) == 0 {
		fmt.Fprintln(out, "no deliveries recorded")
		return nil
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tUSER\tDEVICE TOKEN\tSTATUS\tHTTP\tREASON")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
			e.CreatedAt.Local().Format(time.DateTime),
			e.User, e.DeviceToken, e.Status, e.HTTPStatus, e.Reason)
	}
	return w.Flush()
}
