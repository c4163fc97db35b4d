package cli

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dvloznov/cheque-tally/internal/gcsuploader"
	"github.com/dvloznov/cheque-tally/internal/logger"
)

// NewUploadCommand creates the upload command.
func NewUploadCommand(rootOpts *RootOptions) *cobra.Command {
	var bucket, file, object string

	cmd := &cobra.Command{
		Use:   "upload",
		Short: "Upload a PDF file to GCS",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if bucket == "" {
				return fmt.Errorf("--bucket or GCS_BUCKET is required")
			}
			if !strings.EqualFold(filepath.Ext(file), ".pdf") {
				return fmt.Errorf("--file must name a PDF file, got %q", file)
			}
			if object == "" {
				object = fmt.Sprintf("uploads/%s/%s", time.Now().UTC().Format("2006/01/02"), filepath.Base(file))
			}

			ctx := commandContext(cmd, rootOpts)
			gcs, err := gcsuploader.NewGCSStorageService(ctx, bucket)
			if err != nil {
				return err
			}
			defer gcs.Close()

			uri, err := gcs.UploadFile(ctx, object, file)
			if err != nil {
				return err
			}
			log := logger.FromContext(ctx)
			log.Info().Str("gcs_uri", uri).Msg("Upload completed")
			_, err = fmt.Fprintln(cmd.OutOrStdout(), uri)
			return err
		},
	}

	cmd.Flags().StringVar(&bucket, "bucket", envOr("GCS_BUCKET", ""), "GCS bucket name")
	cmd.Flags().StringVar(&file, "file", "", "local PDF path")
	cmd.Flags().StringVar(&object, "object", "", "object name (default uploads/YYYY/MM/DD/<file>)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}
