package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/helixir/enrichment-service/internal/app"
	"github.com/helixir/enrichment-service/internal/config"
	"github.com/helixir/enrichment-service/internal/domain"
	"github.com/helixir/enrichment-service/internal/enrich"
)

var recordCmd = &cobra.Command{
	Use:   "record <record-id>",
	Short: "Enrich and save one record, then print its report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid record id %q: %w", args[0], err)
		}
		return withServices(func(ctx context.Context, cfg *config.Config, svc *app.Services, _ zerolog.Logger) error {
			rec, err := svc.Store.GetRecord(ctx, id)
			if err != nil {
				return fmt.Errorf("load record: %w", err)
			}

			ctx, cancel := context.WithTimeout(ctx, cfg.Server.EnrichTimeout)
			defer cancel()

			res := svc.Runner.EnrichOne(ctx, rec, time.Now().UTC())
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, enrich.FormatReport(rec))
			if !res.Persisted {
				return fmt.Errorf("record %s: %w", id, domain.ErrNotPersisted)
			}
			fmt.Fprintf(out, "saved: abstract=%t link_created=%t published_record_created=%t\n",
				res.AbstractFound, res.LinkCreated, res.RecordCreated)
			return nil
		})
	},
}

var reportCmd = &cobra.Command{
	Use:   "report <record-id>",
	Short: "Print the stored enrichment report of a record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid record id %q: %w", args[0], err)
		}
		return withServices(func(ctx context.Context, _ *config.Config, svc *app.Services, _ zerolog.Logger) error {
			rec, err := svc.Store.GetRecord(ctx, id)
			if err != nil {
				return fmt.Errorf("load record: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), enrich.FormatReport(rec))
			return nil
		})
	},
}
