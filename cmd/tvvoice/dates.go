package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"tvvoice/internal/listings"
)

func newDatesCmd(opts *globalOptions) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "dates",
		Short: "List the dates the listings source can serve",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			client, err := listings.NewClient(listings.Config{
				BaseURL: cfg.Listings.BaseURL,
				Timeout: cfg.Listings.Timeout,
			}, logger)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			dates, current, err := client.Dates(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for i, label := range dates {
				marker := " "
				if label == current {
					marker = "*"
				}
				fmt.Fprintf(out, "%s %d  %s\n", marker, i, label)
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 90*time.Second, "give up after this long")
	return cmd
}
