/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"fmt"
	"log"

	"github.com/spf13/cobra"
	"github.com/tieubaoca/knowledge-base-be/types"
)

// askCmd represents the ask command
var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a question against a knowledge base",
	Long: `Retrieves the most similar chunks from the knowledge base, asks the
LLM to answer from them, and prints the answer with its sources.
With --save the exchange is recorded in a chat session; pass
--session to continue an existing one.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		kbID, _ := cmd.Flags().GetString("kb")
		model, _ := cmd.Flags().GetString("model")
		topK, _ := cmd.Flags().GetInt("top-k")
		threshold, _ := cmd.Flags().GetFloat64("threshold")
		save, _ := cmd.Flags().GetBool("save")
		sessionID, _ := cmd.Flags().GetString("session")
		userID, _ := cmd.Flags().GetString("user")

		ctx := context.Background()
		app, err := newApp(ctx)
		if err != nil {
			log.Fatalf("Failed to initialize: %v", err)
		}
		defer app.close(ctx)

		req := types.ChatRequest{
			Question:            args[0],
			KnowledgeBaseID:     kbID,
			ModelName:           model,
			TopK:                topK,
			SimilarityThreshold: threshold,
		}

		var result *types.ChatResult
		if save || sessionID != "" {
			session, chatResult, err := app.chat.Ask(ctx, sessionID, userID, req)
			if err != nil {
				log.Fatalf("Failed to answer: %v", err)
			}
			result = chatResult
			fmt.Println("Session:", session.ID)
		} else {
			result = app.rag.Chat(ctx, req)
		}

		fmt.Println(result.Answer)
		if len(result.References) > 0 {
			fmt.Println()
			fmt.Println("Sources:")
			for i, ref := range result.References {
				fmt.Printf("%d. %s (similarity %.4f)\n", i+1, ref.DocumentName, ref.Similarity)
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(askCmd)

	askCmd.Flags().StringP("kb", "k", "", "Knowledge base id (empty skips retrieval)")
	askCmd.Flags().StringP("model", "m", "", "LLM model override")
	askCmd.Flags().Int("top-k", 0, "Number of chunks to retrieve (0 uses the configured default)")
	askCmd.Flags().Float64("threshold", 0, "Minimum similarity (0 uses the configured default)")
	askCmd.Flags().Bool("save", false, "Record the exchange in a chat session")
	askCmd.Flags().String("session", "", "Existing chat session to continue")
	askCmd.Flags().String("user", "", "User asking the question")
}
