package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/solatis/qamatrix/internal/core/db"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	RunE:  runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.Flags().Bool("status", false, "list migrations instead of applying them")
}

func runMigrate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	var s session
	defer s.Close()
	if _, err := s.open(ctx); err != nil {
		return err
	}

	if status, _ := cmd.Flags().GetBool("status"); status {
		statuses, err := db.MigrateStatus(ctx, s.db)
		if err != nil {
			return fmt.Errorf("failed to read migration status: %w", err)
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "MIGRATION\tAPPLIED\tAT")
		for _, st := range statuses {
			at := "-"
			if st.AppliedAt != nil {
				at = st.AppliedAt.Format(time.RFC3339)
			}
			fmt.Fprintf(w, "%s\t%v\t%s\n", st.ID, st.Applied, at)
		}
		return w.Flush()
	}

	if err := db.MigrateUp(ctx, s.db, logger); err != nil {
		return err
	}
	logger.Info().Msg("database is up to date")
	return nil
}
