package admin

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

const exportPrefix = "exports/"

// UploadCmd stores a local export in object storage so it can be ingested
// later from any host.
func UploadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload an export to object storage",
		Long:  "Uploads a local export under exports/ in the configured bucket and prints its s3:// URI.",
		Args:  cobra.ExactArgs(1),
		RunE:  runUpload,
	}

	cmd.Flags().String("key", "", "Object key (default exports/<file name>)")

	return cmd
}

func runUpload(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, log, err := loadRuntime()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	client, err := newS3Client(ctx, cfg)
	if err != nil {
		return err
	}
	if client == nil {
		return fmt.Errorf("object storage not configured: LICITAI_S3_ENDPOINT required")
	}
	if err := client.EnsureBucket(ctx); err != nil {
		return fmt.Errorf("failed to ensure bucket: %w", err)
	}

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", args[0], err)
	}
	defer f.Close()

	key, _ := cmd.Flags().GetString("key")
	if key == "" {
		key = exportKey(args[0])
	}

	uri, err := client.PutObject(ctx, key, contentTypeFor(args[0]), f)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), uri)
	return nil
}

func exportKey(localPath string) string {
	return path.Join(exportPrefix, filepath.Base(localPath))
}

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func contentTypeFor(localPath string) string {
	ext := strings.ToLower(filepath.Ext(localPath))
	if ext == ".xlsx" {
		// Not in Go's builtin table; system mime files may lack it too.
		return xlsxContentType
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "text/csv"
}
