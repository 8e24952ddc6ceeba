package admin

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/cloo-solutions/licitai/internal/ingest"
	"github.com/cloo-solutions/licitai/internal/repository"
	"github.com/cloo-solutions/licitai/internal/service"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// IngestCmd loads an .xlsx or CSV export into the document store.
func IngestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest <file|s3://bucket/key>",
		Short: "Load a tender export into the document store",
		Long: `Reads the first sheet of an .xlsx workbook (or a CSV export), builds one document per
row and stores it with its embedding. Sources may be a local path or an s3:// URI on the
configured object storage.`,
		Args: cobra.ExactArgs(1),
		RunE: runIngest,
	}

	cmd.Flags().Bool("truncate", false, "Empty the table before loading")
	cmd.Flags().Int("batch-size", service.DefaultIngestBatchSize, "Rows inserted per transaction")
	cmd.Flags().Bool("no-migrate", false, "Skip database migrations")
	cmd.Flags().StringP("output", "o", "text", "Output format (text or json)")

	return cmd
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	truncate, _ := cmd.Flags().GetBool("truncate")
	batchSize, _ := cmd.Flags().GetInt("batch-size")
	noMigrate, _ := cmd.Flags().GetBool("no-migrate")
	outputFormat, _ := cmd.Flags().GetString("output")

	cfg, log, err := loadRuntime()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	modelClient, err := newModelClient(cfg)
	if err != nil {
		return err
	}

	var objects ingest.ObjectGetter
	s3Client, err := newS3Client(ctx, cfg)
	if err != nil {
		return err
	}
	if s3Client != nil {
		objects = s3Client
	}

	body, err := ingest.Open(ctx, args[0], objects)
	if err != nil {
		return err
	}
	defer body.Close()

	reader, err := ingest.NewReaderFor(args[0], body)
	if err != nil {
		return err
	}
	defer reader.Close()
	log.Info("ingest started", zap.String("source", args[0]), zap.Strings("columns", reader.Columns()))

	pool, err := openPool(ctx, cfg, log, noMigrate)
	if err != nil {
		return err
	}
	defer pool.Close()

	svc := service.NewIngestService(repository.NewTxRunner(pool, cfg.TableName), modelClient, log)
	stats, err := svc.Ingest(ctx, reader, service.IngestOptions{BatchSize: batchSize, Truncate: truncate})
	if err != nil {
		return fmt.Errorf("ingest failed after %d rows: %w", stats.Rows, err)
	}

	return printIngestStats(cmd.OutOrStdout(), stats, outputFormat)
}

func printIngestStats(out io.Writer, stats service.IngestStats, format string) error {
	if format == "json" {
		data, err := json.MarshalIndent(stats, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
		return nil
	}

	fmt.Fprintf(out, "Rows read:      %d\n", stats.Rows)
	fmt.Fprintf(out, "Inserted:       %d\n", stats.Inserted)
	fmt.Fprintf(out, "Skipped:        %d\n", stats.Skipped)
	fmt.Fprintf(out, "Embed failures: %d\n", stats.EmbedFailures)
	fmt.Fprintf(out, "Failed batches: %d\n", stats.FailedBatches)
	return nil
}
