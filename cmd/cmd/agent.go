package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"mithoo/internal/agent"
	"mithoo/internal/config"
)

var agentCmd = &cobra.Command{
	Use:   "agent [prompt]",
	Short: "Run a plan-then-execute agent request",
	Long: `Run an agent request: the model first drafts a step-by-step plan for
the prompt, then executes that plan into a final markdown answer. The
finished session is recorded.

Examples:
  mithoo agent "compare the top three static site generators"
  mithoo agent --user alice "summarize recent WebGPU adoption"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, _ := cmd.Flags().GetString("user")

		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		svcs, err := buildServices(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer svcs.db.Close()

		result, err := svcs.agent.Run(cmd.Context(), agent.Request{
			UserID: userID,
			Prompt: args[0],
		})
		if err != nil {
			return err
		}

		fmt.Println("Plan:")
		for i, step := range result.Plan {
			fmt.Printf("  %d. %s\n", i+1, step)
		}
		fmt.Println()
		fmt.Println(result.FinalResult)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(agentCmd)

	agentCmd.Flags().String("user", "local", "User ID running the agent")
}
