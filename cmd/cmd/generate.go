package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"mithoo/internal/config"
	"mithoo/internal/writer"
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Draft or improve an article",
	Long: `Draft a new article body from its title, outline, and stored research,
or improve the current body in place. The result is written back to the
article row and printed.

Examples:
  mithoo generate --article 7c2a... --title "Cold Starts, Warm Wallets"
  mithoo generate --article 7c2a... --outline outline.md
  mithoo generate --article 7c2a... --improve`,
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, _ := cmd.Flags().GetString("user")
		articleID, _ := cmd.Flags().GetString("article")
		title, _ := cmd.Flags().GetString("title")
		outline, _ := cmd.Flags().GetString("outline")
		improve, _ := cmd.Flags().GetBool("improve")

		if articleID == "" {
			return fmt.Errorf("--article is required")
		}

		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		svcs, err := buildServices(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer svcs.db.Close()

		action := writer.ActionGenerate
		if improve {
			action = writer.ActionImprove
		}

		result, err := svcs.writer.Run(cmd.Context(), writer.Request{
			UserID:    userID,
			ArticleID: articleID,
			Action:    action,
			Title:     title,
			Outline:   outline,
		})
		if err != nil {
			return err
		}

		fmt.Println(result.Content)
		fmt.Printf("\n(%d words)\n", result.WordCount)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(generateCmd)

	generateCmd.Flags().String("user", "local", "User ID owning the article")
	generateCmd.Flags().String("article", "", "Article ID to draft into")
	generateCmd.Flags().String("title", "", "Title override for the draft")
	generateCmd.Flags().String("outline", "", "Outline to follow when generating")
	generateCmd.Flags().Bool("improve", false, "Improve the existing body instead of drafting")
}
