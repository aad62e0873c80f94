package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"mithoo/internal/config"
	"mithoo/internal/research"
)

var researchCmd = &cobra.Command{
	Use:   "research [topic]",
	Short: "Run grounded research on a topic",
	Long: `Run a search-grounded research pass on a topic and print the findings
with their sources. With --article the result is also attached to the
article row for later drafting.

Examples:
  mithoo research "serverless cold starts"
  mithoo research --keywords "latency,benchmarks" --article 7c2a... "serverless cold starts"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, _ := cmd.Flags().GetString("user")
		articleID, _ := cmd.Flags().GetString("article")
		keywords, _ := cmd.Flags().GetStringSlice("keywords")

		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		svcs, err := buildServices(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer svcs.db.Close()

		data, err := svcs.research.Run(cmd.Context(), research.Request{
			UserID:    userID,
			ArticleID: articleID,
			Topic:     args[0],
			Keywords:  keywords,
		})
		if err != nil {
			return err
		}

		fmt.Println(data.Data)
		if len(data.Sources) > 0 {
			fmt.Println("\nSources:")
			for _, src := range data.Sources {
				fmt.Printf("  - %s (%s)\n", src.Title, src.URL)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(researchCmd)

	researchCmd.Flags().String("user", "local", "User ID running the research")
	researchCmd.Flags().String("article", "", "Article ID to attach the research to")
	researchCmd.Flags().StringSlice("keywords", nil, "Keywords to focus the research on")
}
