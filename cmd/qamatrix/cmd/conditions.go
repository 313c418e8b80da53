package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var conditionsCmd = &cobra.Command{
	Use:   "conditions",
	Short: "List or delete stored quality conditions",
}

var conditionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored quality conditions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		var s session
		defer s.Close()

		st, err := s.store(ctx)
		if err != nil {
			return err
		}
		names, err := st.List(ctx)
		if err != nil {
			return err
		}
		for _, n := range names {
			fmt.Fprintln(cmd.OutOrStdout(), n)
		}
		return nil
	},
}

var conditionsDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a stored quality condition",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		var s session
		defer s.Close()

		st, err := s.store(ctx)
		if err != nil {
			return err
		}
		if err := st.Delete(ctx, args[0]); err != nil {
			return err
		}
		logger.Info().Str("name", args[0]).Msg("deleted quality condition")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(conditionsCmd)
	conditionsCmd.AddCommand(conditionsListCmd, conditionsDeleteCmd)
}
