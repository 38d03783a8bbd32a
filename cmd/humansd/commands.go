package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"humans/internal/adapters/export"
	"humans/internal/blob"
)

func (a *app) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the storage schema and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, closeStore, err := a.openService(cmd.Context())
			if err != nil {
				return err
			}
			closeStore()
			a.logger.Info("schema applied", zap.String("driver", a.cfg.Storage.Driver))
			fmt.Fprintf(cmd.OutOrStdout(), "schema applied (%s)\n", a.cfg.Storage.Driver)
			return nil
		},
	}
}

func (a *app) citiesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cities <query>",
		Short: "Print city autocomplete results as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, closeStore, err := a.openService(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStore()
			cities, err := svc.SearchCities(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, cities)
		},
	}
}

func (a *app) exportCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the route interest report to blob storage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := export.ParseFormat(format)
			if err != nil {
				return err
			}
			svc, closeStore, err := a.openService(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStore()
			store, err := blob.Open(cmd.Context(), a.cfg.BlobConfig())
			if err != nil {
				return fmt.Errorf("open blob store: %w", err)
			}
			info, err := export.NewExporter(svc, store, export.WithLogger(a.logger)).ExportRouteInterests(cmd.Context(), f)
			if err != nil {
				return err
			}
			return printJSON(cmd, info)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", string(export.FormatCSV), "report format: csv or json")
	return cmd
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
