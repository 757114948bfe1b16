package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/helixir/enrichment-service/internal/app"
	"github.com/helixir/enrichment-service/internal/config"
	"github.com/helixir/enrichment-service/internal/domain"
	"github.com/helixir/enrichment-service/internal/enrich"
	"github.com/helixir/enrichment-service/internal/repository"
)

// pageSize is how many records the --all mode loads per query.
const pageSize = 500

var (
	runAll          bool
	runNoSecondPass bool
	runQuiet        bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Enrich every unenriched record, or every record with --all",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withServices(func(ctx context.Context, cfg *config.Config, svc *app.Services, logger zerolog.Logger) error {
			return runBatch(ctx, cfg, svc, logger, cmd.OutOrStdout())
		})
	},
}

func init() {
	runCmd.Flags().BoolVar(&runAll, "all", false, "re-enrich every record, not only unenriched ones")
	runCmd.Flags().BoolVar(&runNoSecondPass, "no-second-pass", false, "skip enriching published versions created by this run")
	runCmd.Flags().BoolVarP(&runQuiet, "quiet", "q", false, "print only the summary")
}

func runBatch(ctx context.Context, cfg *config.Config, svc *app.Services, logger zerolog.Logger, out io.Writer) error {
	var (
		records []*domain.Record
		err     error
	)
	if runAll {
		records, err = loadAllRecords(ctx, svc.Store)
	} else {
		records, err = svc.Store.ListUnenriched(ctx, 0)
	}
	if err != nil {
		return fmt.Errorf("load records: %w", err)
	}
	if len(records) == 0 {
		fmt.Fprintln(out, "No records to enrich.")
		return nil
	}

	runner := svc.Runner
	if runNoSecondPass {
		runner = enrich.NewBatchRunner(svc.Orchestrator, svc.Store, nil, enrich.BatchConfig{
			MaxWorkers: cfg.Enrichment.MaxWorkers,
		}, logger, svc.Metrics)
	}

	summary, err := runner.Run(ctx, records)

	if !runQuiet {
		for _, rec := range records {
			fmt.Fprintln(out, enrich.FormatReport(rec))
		}
	}
	printSummary(out, summary)

	if svc.Publisher != nil {
		payload := domain.BatchCompletedPayload{
			Passes:              summary.Passes,
			RecordsEnriched:     summary.Persisted,
			RecordsFailed:       summary.PersistFailed,
			AbstractsFound:      summary.AbstractsFound,
			PublishedRecordsNew: summary.PublishedRecordsCreated,
			Duration:            summary.Duration,
		}
		if perr := svc.Publisher.BatchCompleted(ctx, summary.BatchID, payload); perr != nil {
			logger.Warn().Err(perr).Msg("failed to publish batch completed event")
		}
	}

	if err != nil {
		return fmt.Errorf("batch %s: %w", summary.BatchID, err)
	}
	if summary.PersistFailed > 0 {
		fmt.Fprintf(os.Stderr, "warning: %d records could not be saved\n", summary.PersistFailed)
	}
	return nil
}

func loadAllRecords(ctx context.Context, store *repository.PgStore) ([]*domain.Record, error) {
	var all []*domain.Record
	for offset := 0; ; offset += pageSize {
		page, total, err := store.GetRecords(ctx, repository.RecordFilter{Limit: pageSize, Offset: offset})
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < pageSize || int64(len(all)) >= total {
			return all, nil
		}
	}
}

func printSummary(out io.Writer, s enrich.BatchSummary) {
	fmt.Fprintf(out, "Batch %s finished in %s\n", s.BatchID, s.Duration.Round(1e6))
	fmt.Fprintf(out, "  passes:                    %d\n", s.Passes)
	fmt.Fprintf(out, "  records processed:         %d\n", s.Processed)
	fmt.Fprintf(out, "  records saved:             %d\n", s.Persisted)
	fmt.Fprintf(out, "  records not saved:         %d\n", s.PersistFailed)
	fmt.Fprintf(out, "  abstracts found:           %d\n", s.AbstractsFound)
	fmt.Fprintf(out, "  version links created:     %d\n", s.LinksCreated)
	fmt.Fprintf(out, "  published records created: %d\n", s.PublishedRecordsCreated)
}
