/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"fmt"
	"log"

	"github.com/spf13/cobra"
)

// deleteDocumentCmd represents the delete-document command
var deleteDocumentCmd = &cobra.Command{
	Use:   "delete-document [document-id]",
	Short: "Delete a document, its chunks and its stored file",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		app, err := newApp(ctx)
		if err != nil {
			log.Fatalf("Failed to initialize: %v", err)
		}
		defer app.close(ctx)

		if err := app.ingest.DeleteDocument(ctx, args[0]); err != nil {
			log.Fatalf("Failed to delete document: %v", err)
		}
		fmt.Println("Deleted document", args[0])
	},
}

func init() {
	rootCmd.AddCommand(deleteDocumentCmd)
}
