package admin

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/cloo-solutions/licitai/internal/domain"
	"github.com/cloo-solutions/licitai/internal/ingest"
	"github.com/cloo-solutions/licitai/internal/repository"
	"github.com/cloo-solutions/licitai/internal/service"
	"github.com/jackc/pgx/v5"
	"github.com/spf13/cobra"
)

// SchemaCmd groups the store introspection helpers.
func SchemaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Inspect the document store schema",
		Long:  "Print discovered metadata keys and states, the table DDL, or the columns an export would produce",
	}

	cmd.PersistentFlags().StringP("output", "o", "text", "Output format (text or json)")

	cmd.AddCommand(schemaKeysCmd())
	cmd.AddCommand(schemaStatesCmd())
	cmd.AddCommand(schemaDDLCmd())
	cmd.AddCommand(schemaColumnsCmd())

	return cmd
}

func schemaKeysCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keys",
		Short: "List metadata keys found in the store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSchemaCache(cmd, func(ctx context.Context, c *service.SchemaCache) []string {
				return c.DiscoverKeys(ctx)
			})
		},
	}
}

func schemaStatesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "states",
		Short: "List tender states seen in the store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSchemaCache(cmd, func(ctx context.Context, c *service.SchemaCache) []string {
				return c.DiscoverValidStates(ctx)
			})
		},
	}
}

func withSchemaCache(cmd *cobra.Command, fn func(context.Context, *service.SchemaCache) []string) error {
	ctx := context.Background()
	outputFormat, _ := cmd.Flags().GetString("output")

	cfg, log, err := loadRuntime()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	pool, err := openPool(ctx, cfg, log, true)
	if err != nil {
		return err
	}
	defer pool.Close()

	cache := service.NewSchemaCache(repository.NewDocumentRepository(pool, cfg.TableName), log)
	return printList(cmd.OutOrStdout(), fn(ctx, cache), outputFormat)
}

func schemaDDLCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ddl",
		Short: "Print the DDL that recreates the document table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			table, _ := cmd.Flags().GetString("table")
			fmt.Fprint(cmd.OutOrStdout(), RenderDDL(table, domain.EmbeddingDimensions))
			return nil
		},
	}

	cmd.Flags().String("table", repository.DefaultTable, "Table name")

	return cmd
}

func schemaColumnsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "columns <file>",
		Short: "Show how an export's headers map to metadata keys",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputFormat, _ := cmd.Flags().GetString("output")
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to open %s: %w", args[0], err)
			}
			defer f.Close()
			return printColumns(cmd.OutOrStdout(), args[0], f, outputFormat)
		},
	}
}

// RenderDDL returns a script that drops and recreates the document table.
func RenderDDL(table string, dimensions int) string {
	if table == "" {
		table = repository.DefaultTable
	}
	ident := pgx.Identifier{table}.Sanitize()
	indexName := pgx.Identifier{"idx_" + table + "_embedding"}.Sanitize()

	var b strings.Builder
	b.WriteString("CREATE EXTENSION IF NOT EXISTS vector;\n")
	fmt.Fprintf(&b, "DROP TABLE IF EXISTS %s;\n\n", ident)
	fmt.Fprintf(&b, "CREATE TABLE %s (\n", ident)
	b.WriteString("    id         BIGSERIAL PRIMARY KEY,\n")
	b.WriteString("    content    TEXT NOT NULL,\n")
	b.WriteString("    metadata   JSONB NOT NULL DEFAULT '{}'::jsonb,\n")
	fmt.Fprintf(&b, "    embedding  VECTOR(%d),\n", dimensions)
	b.WriteString("    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()\n")
	b.WriteString(");\n\n")
	fmt.Fprintf(&b, "CREATE INDEX %s ON %s USING hnsw (embedding vector_cosine_ops);\n", indexName, ident)
	return b.String()
}

type columnMapping struct {
	Header string `json:"header"`
	Key    string `json:"key"`
}

func printColumns(out io.Writer, name string, r io.Reader, format string) error {
	reader, err := ingest.NewReaderFor(name, r)
	if err != nil {
		return err
	}
	defer reader.Close()

	raw := reader.RawColumns()
	keys := reader.Columns()
	mappings := make([]columnMapping, len(raw))
	for i := range raw {
		mappings[i] = columnMapping{Header: raw[i], Key: keys[i]}
	}

	if format == "json" {
		data, err := json.MarshalIndent(mappings, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
		return nil
	}

	for _, m := range mappings {
		fmt.Fprintf(out, "%q -> %s\n", m.Header, m.Key)
	}
	return nil
}

func printList(out io.Writer, items []string, format string) error {
	if format == "json" {
		if items == nil {
			items = []string{}
		}
		data, err := json.MarshalIndent(items, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
		return nil
	}

	if len(items) == 0 {
		fmt.Fprintln(out, "No results.")
		return nil
	}
	for _, item := range items {
		fmt.Fprintln(out, item)
	}
	return nil
}
