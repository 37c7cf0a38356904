package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"shopassist.dev/assistant/internal/config"
	"shopassist.dev/assistant/internal/store"
)

func newIngestCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Load a JSON product catalog into the catalog database and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := setup()
			if err != nil {
				return err
			}
			defer logger.Sync()

			if file == "" {
				file = config.AppConfig.CatalogPath
			}

			dbStore, err := store.NewSQLiteStore(config.AppConfig.DatabaseURL, logger)
			if err != nil {
				return err
			}
			defer dbStore.Close()

			logger.Info("Starting catalog ingestion", zap.String("file", file))
			n, err := dbStore.IngestCatalogFromFile(cmd.Context(), file)
			if err != nil {
				return err
			}
			logger.Info("Catalog ingestion complete", zap.Int("products", n))
			return nil
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "Catalog file to ingest (defaults to CATALOG_PATH)")
	return cmd
}
