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

// deleteKBCmd represents the delete-kb command
var deleteKBCmd = &cobra.Command{
	Use:   "delete-kb [knowledge-base-id]",
	Short: "Delete a knowledge base with all its documents and vectors",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		app, err := newApp(ctx)
		if err != nil {
			log.Fatalf("Failed to initialize: %v", err)
		}
		defer app.close(ctx)

		if err := app.ingest.DeleteKnowledgeBase(ctx, args[0]); err != nil {
			log.Fatalf("Failed to delete knowledge base: %v", err)
		}
		fmt.Println("Deleted knowledge base", args[0])
	},
}

func init() {
	rootCmd.AddCommand(deleteKBCmd)
}
