package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"mithoo/internal/config"
)

var trainCmd = &cobra.Command{
	Use:   "train [sample-file]",
	Short: "Store a writing sample to steer the assistant's style",
	Long: `Store a writing sample for the user. The newest completed sample is
appended to system prompts so chat replies, research, and drafts adopt
the user's voice.

Example:
  mithoo train my-published-posts.md`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, _ := cmd.Flags().GetString("user")

		sample, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read sample file %s: %w", args[0], err)
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

		record, err := svcs.training.Train(cmd.Context(), userID, string(sample))
		if err != nil {
			return err
		}

		fmt.Printf("Stored writing sample %s (%s)\n", record.ID, record.Status)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(trainCmd)

	trainCmd.Flags().String("user", "local", "User ID owning the sample")
}
