/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/tieubaoca/knowledge-base-be/types"
)

// batchUploadDocumentCmd represents the batch-upload-document command
var batchUploadDocumentCmd = &cobra.Command{
	Use:   "batch-upload-document",
	Short: "Ingest every supported document in a directory",
	Long: `Ingests all regular files in a directory into a knowledge base.
Files that fail are reported and skipped; the rest are still ingested.`,
	Run: func(cmd *cobra.Command, args []string) {
		kbID, _ := cmd.Flags().GetString("kb")
		dir, _ := cmd.Flags().GetString("dir")
		uploadedBy, _ := cmd.Flags().GetString("uploaded-by")

		if kbID == "" || dir == "" {
			log.Fatalf("both --kb and --dir are required")
		}

		entries, err := os.ReadDir(dir)
		if err != nil {
			log.Fatalf("Failed to read directory %s: %v", dir, err)
		}

		var files []types.FileUpload
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
			if err != nil {
				log.Printf("Warning: skipping %s: %v", entry.Name(), err)
				continue
			}
			files = append(files, types.FileUpload{
				Name:       entry.Name(),
				Data:       data,
				UploadedBy: uploadedBy,
			})
		}
		if len(files) == 0 {
			log.Fatalf("no files to ingest in %s", dir)
		}

		ctx := context.Background()
		app, err := newApp(ctx)
		if err != nil {
			log.Fatalf("Failed to initialize: %v", err)
		}
		defer app.close(ctx)

		result := app.ingest.IngestBatch(ctx, kbID, files)
		for _, uploaded := range result.Uploaded {
			fmt.Printf("Ingested %s as %s (%d chunks)\n", uploaded.Name, uploaded.DocumentID, uploaded.ChunkCount)
		}
		for _, failed := range result.Failed {
			fmt.Printf("Failed %s: %s\n", failed.Name, failed.Reason)
		}
		fmt.Printf("Done: %d succeeded, %d failed\n", result.SuccessCount, result.FailCount)
	},
}

func init() {
	rootCmd.AddCommand(batchUploadDocumentCmd)

	batchUploadDocumentCmd.Flags().StringP("kb", "k", "", "Knowledge base id")
	batchUploadDocumentCmd.Flags().StringP("dir", "d", "", "Directory of files to upload")
	batchUploadDocumentCmd.Flags().String("uploaded-by", "", "User uploading the documents")
}
