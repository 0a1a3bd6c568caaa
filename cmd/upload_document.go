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

// uploadDocumentCmd represents the upload-document command
var uploadDocumentCmd = &cobra.Command{
	Use:   "upload-document",
	Short: "Ingest one document into a knowledge base",
	Long: `Reads a PDF, Word or text file, extracts and chunks its content,
embeds the chunks and stores them in the knowledge base's vector
collection.`,
	Run: func(cmd *cobra.Command, args []string) {
		kbID, _ := cmd.Flags().GetString("kb")
		filePath, _ := cmd.Flags().GetString("file")
		uploadedBy, _ := cmd.Flags().GetString("uploaded-by")

		if kbID == "" || filePath == "" {
			log.Fatalf("both --kb and --file are required")
		}

		data, err := os.ReadFile(filePath)
		if err != nil {
			log.Fatalf("Failed to read %s: %v", filePath, err)
		}

		ctx := context.Background()
		app, err := newApp(ctx)
		if err != nil {
			log.Fatalf("Failed to initialize: %v", err)
		}
		defer app.close(ctx)

		result, err := app.ingest.IngestDocument(ctx, kbID, types.FileUpload{
			Name:       filepath.Base(filePath),
			Data:       data,
			UploadedBy: uploadedBy,
		})
		if err != nil {
			log.Fatalf("Failed to ingest document: %v", err)
		}
		fmt.Printf("Ingested %s as %s (%d chunks, %d bytes)\n",
			result.Name, result.DocumentID, result.ChunkCount, result.FileSize)
	},
}

func init() {
	rootCmd.AddCommand(uploadDocumentCmd)

	uploadDocumentCmd.Flags().StringP("kb", "k", "", "Knowledge base id")
	uploadDocumentCmd.Flags().StringP("file", "f", "", "Path to the file to upload")
	uploadDocumentCmd.Flags().String("uploaded-by", "", "User uploading the document")
}
