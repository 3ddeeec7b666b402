package main

import (
	"fmt"

	"github.com/always-cache/offline-cache/cache"

	"github.com/spf13/cobra"
)

func newStoresCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stores",
		Short: "List stores; the configured one is marked with *",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStorage(opts.config, func(storage cache.SQLiteStorage) error {
				names, err := storage.Names()
				if err != nil {
					return err
				}
				for _, name := range names {
					marker := " "
					if name == opts.config.Store {
						marker = "*"
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", marker, name)
				}
				return nil
			})
		},
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "keys NAME",
			Short: "List the request keys in a store",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withStorage(opts.config, func(storage cache.SQLiteStorage) error {
					if has, err := storage.Has(args[0]); err != nil {
						return err
					} else if !has {
						return fmt.Errorf("%w: %s", cache.ErrNoSuchStore, args[0])
					}
					store, err := storage.Open(args[0])
					if err != nil {
						return err
					}
					return store.AllKeys("", func(key string) {
						fmt.Fprintf(cmd.OutOrStdout(), "%q\n", key)
					})
				})
			},
		},
		&cobra.Command{
			Use:   "delete NAME",
			Short: "Delete an orphaned store",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withStorage(opts.config, func(storage cache.SQLiteStorage) error {
					deleted, err := storage.Delete(args[0])
					if err != nil {
						return err
					}
					if !deleted {
						return fmt.Errorf("%w: %s", cache.ErrNoSuchStore, args[0])
					}
					fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
					return nil
				})
			},
		},
	)
	return cmd
}

func withStorage(config Config, fn func(cache.SQLiteStorage) error) error {
	storage, err := openStorage(config)
	if err != nil {
		return err
	}
	defer storage.Close()
	return fn(storage)
}
