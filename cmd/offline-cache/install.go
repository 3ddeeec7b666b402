package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newInstallCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "install",
		Short: "Fetch the seeds into the store once and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := newUnit(opts.config)
			if err != nil {
				return err
			}
			defer u.Close()
			if err := u.host.Install(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "installed %s (%s)\n", u.cache.StoreName(), u.host.State())
			return nil
		},
	}
}
