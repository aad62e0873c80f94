package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"mithoo/internal/config"
	"mithoo/internal/core"
	"mithoo/internal/pipeline"
)

var chatCmd = &cobra.Command{
	Use:   "chat [message]",
	Short: "Send one conversation turn to the assistant",
	Long: `Send a message to the assistant and print the reply.

The turn is appended to the named conversation (or a new one) exactly as
the HTTP API would do it: the full history is normalized, sent with the
working document as context, and the reply is classified as a chat
answer or a proposed edit.

Examples:
  mithoo chat "Suggest three titles for an article about Go generics"
  mithoo chat --conversation 4f1f... --doc draft.md "Tighten the intro"
  mithoo chat --research "What changed in the EU AI Act this year?"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, _ := cmd.Flags().GetString("user")
		conversationID, _ := cmd.Flags().GetString("conversation")
		articleID, _ := cmd.Flags().GetString("article")
		docPath, _ := cmd.Flags().GetString("doc")
		enableResearch, _ := cmd.Flags().GetBool("research")
		stream, _ := cmd.Flags().GetBool("stream")

		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		svcs, err := buildServices(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer svcs.db.Close()

		var doc *core.DocumentContext
		if docPath != "" {
			content, err := os.ReadFile(docPath)
			if err != nil {
				return fmt.Errorf("failed to read document %s: %w", docPath, err)
			}
			doc = &core.DocumentContext{
				Title:    strings.TrimSuffix(docPath, ".md"),
				Markdown: string(content),
			}
		}

		req := pipeline.ChatRequest{
			UserID:         userID,
			ConversationID: conversationID,
			ArticleID:      articleID,
			Message:        args[0],
			Document:       doc,
			EnableResearch: enableResearch,
		}

		var result *pipeline.ChatResult
		if stream {
			result, err = svcs.pipeline.ChatStream(cmd.Context(), req, func(chunk string) {
				fmt.Print(chunk)
			})
			fmt.Println()
		} else {
			result, err = svcs.pipeline.Chat(cmd.Context(), req)
		}
		if err != nil {
			return err
		}

		switch result.Type {
		case "edit":
			fmt.Printf("Proposed edit: %s\n\n", result.Explanation)
			fmt.Println(result.NewContent)
		default:
			if !stream {
				fmt.Println(result.Content)
			}
		}
		if len(result.Sources) > 0 {
			fmt.Println("\nSources:")
			for _, src := range result.Sources {
				fmt.Printf("  - %s (%s)\n", src.Title, src.URL)
			}
		}
		fmt.Printf("\nConversation: %s\n", result.ConversationID)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)

	chatCmd.Flags().String("user", "local", "User ID owning the conversation")
	chatCmd.Flags().String("conversation", "", "Conversation ID to continue (new one when empty)")
	chatCmd.Flags().String("article", "", "Article ID the conversation is about")
	chatCmd.Flags().String("doc", "", "Path to the working document (markdown)")
	chatCmd.Flags().Bool("research", false, "Ground the reply in web search")
	chatCmd.Flags().Bool("stream", false, "Print the reply as it is generated")
}
