/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"
	"github.com/tieubaoca/knowledge-base-be/types"
	"github.com/tieubaoca/knowledge-base-be/utils"
)

// createKBCmd represents the create-kb command
var createKBCmd = &cobra.Command{
	Use:   "create-kb",
	Short: "Create a new knowledge base",
	Run: func(cmd *cobra.Command, args []string) {
		name, _ := cmd.Flags().GetString("name")
		code, _ := cmd.Flags().GetString("code")
		description, _ := cmd.Flags().GetString("description")
		visible, _ := cmd.Flags().GetString("visible")
		chunkSize, _ := cmd.Flags().GetInt("chunk-size")
		chunkOverlap, _ := cmd.Flags().GetInt("chunk-overlap")
		topK, _ := cmd.Flags().GetInt("top-k")
		threshold, _ := cmd.Flags().GetFloat64("threshold")
		createdBy, _ := cmd.Flags().GetString("created-by")

		if name == "" || code == "" {
			log.Fatalf("both --name and --code are required")
		}

		ctx := context.Background()
		app, err := newApp(ctx)
		if err != nil {
			log.Fatalf("Failed to initialize: %v", err)
		}
		defer app.close(ctx)

		now := time.Now().Unix()
		kb := &types.KnowledgeBase{
			ID:                  utils.GenerateID("kb"),
			Name:                name,
			Code:                code,
			Description:         description,
			Visible:             visible,
			Status:              "active",
			ChunkSize:           chunkSize,
			ChunkOverlap:        chunkOverlap,
			SimilarityThreshold: threshold,
			TopK:                topK,
			CreatedBy:           createdBy,
			CreatedAt:           now,
			UpdatedAt:           now,
		}
		if err := app.knowledgeBases.CreateKnowledgeBase(ctx, kb); err != nil {
			log.Fatalf("Failed to create knowledge base: %v", err)
		}
		// The vector collection must exist before any chunk is added.
		if err := app.vectorDB.EnsureCollection(ctx, kb.ID, kb.Name); err != nil {
			log.Fatalf("Failed to create vector collection: %v", err)
		}
		fmt.Println("Created knowledge base", kb.ID)
	},
}

func init() {
	rootCmd.AddCommand(createKBCmd)

	createKBCmd.Flags().StringP("name", "n", "", "Display name of the knowledge base")
	createKBCmd.Flags().StringP("code", "c", "", "Unique short code for the knowledge base")
	createKBCmd.Flags().String("description", "", "Description of the knowledge base")
	createKBCmd.Flags().String("visible", types.KB_VISIBLE_ALL, "Visibility: all, authorized or private")
	createKBCmd.Flags().Int("chunk-size", 0, "Chunk size override (0 uses the configured default)")
	createKBCmd.Flags().Int("chunk-overlap", 0, "Chunk overlap override (0 uses the configured default)")
	createKBCmd.Flags().Int("top-k", 0, "Retrieval top-k override (0 uses the configured default)")
	createKBCmd.Flags().Float64("threshold", 0, "Similarity threshold override (0 uses the configured default)")
	createKBCmd.Flags().String("created-by", "", "User creating the knowledge base")
}
