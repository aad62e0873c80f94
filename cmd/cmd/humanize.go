package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"mithoo/internal/config"
	"mithoo/internal/humanize"
)

var humanizeCmd = &cobra.Command{
	Use:   "humanize [text]",
	Short: "Rewrite text through the humanizer API",
	Long: `Send text through the external humanizer API and print the rewritten
version. Reads stdin when no argument is given.

Modes: subtle, balanced (default), strong, stealth.

Examples:
  mithoo humanize "The aforementioned paradigm facilitates synergy."
  cat draft.md | mithoo humanize --mode strong`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		modeFlag, _ := cmd.Flags().GetString("mode")

		mode, err := humanize.ParseMode(modeFlag)
		if err != nil {
			return err
		}

		text := ""
		if len(args) == 1 {
			text = args[0]
		} else {
			data, err := io.ReadAll(os.Stdin)
			if err != nil {
				return fmt.Errorf("failed to read stdin: %w", err)
			}
			text = string(data)
		}

		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}

		client := humanize.NewClient(cfg.Humanizer.BaseURL, cfg.Humanizer.APIKey)
		out, err := client.Humanize(cmd.Context(), text, mode)
		if err != nil {
			return err
		}

		fmt.Println(out)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(humanizeCmd)

	humanizeCmd.Flags().String("mode", "balanced", "Rewrite intensity: subtle, balanced, strong, stealth")
}
