package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/solatis/qamatrix/internal/connectivity"
	"github.com/solatis/qamatrix/internal/core/db"
)

var connectivityCmd = &cobra.Command{
	Use:   "connectivity",
	Short: "Convert line connectivity matrices",
}

var connectivityImportCmd = &cobra.Command{
	Use:   "import <matrix.csv>",
	Short: "Compile a connectivity matrix into a line connection quality condition",
	Args:  cobra.ExactArgs(1),
	RunE:  runConnectivityImport,
}

var connectivityExportCmd = &cobra.Command{
	Use:   "export [name]",
	Short: "Render a line connection quality condition as connectivity matrix",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runConnectivityExport,
}

func init() {
	rootCmd.AddCommand(connectivityCmd)
	connectivityCmd.AddCommand(connectivityImportCmd, connectivityExportCmd)

	connectivityImportCmd.Flags().String("name", connectivity.DefaultQualityConditionName, "quality condition name")
	connectivityImportCmd.Flags().Bool("rank", false, "order rule groups by row count (needs the feature class tables)")
	connectivityImportCmd.Flags().StringP("out", "o", "", "write the YAML document to file instead of stdout")
	connectivityImportCmd.Flags().Bool("save", false, "store the quality condition in the database")

	connectivityExportCmd.Flags().String("in", "", "read the quality condition from a YAML document")
	connectivityExportCmd.Flags().StringP("out", "o", "", "write the matrix to file instead of stdout")
}

func runConnectivityImport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	var s session
	defer s.Close()

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open matrix: %w", err)
	}
	defer f.Close()

	m, err := connectivity.Create(f)
	if err != nil {
		return fmt.Errorf("%s: %w", args[0], err)
	}

	cat, err := s.catalog(ctx)
	if err != nil {
		return err
	}

	var ranker *connectivity.Ranker
	if rank, _ := cmd.Flags().GetBool("rank"); rank {
		if _, err := s.open(ctx); err != nil {
			return err
		}
		ranker = connectivity.NewRanker(db.NewRowCounter(s.db), cfg.CountParallelism, logger)
	}

	qc, err := connectivity.Convert(ctx, m, cat, ranker)
	if err != nil {
		return err
	}
	qc.Name, _ = cmd.Flags().GetString("name")
	logger.Info().
		Int("line_types", len(m.LineTypes)).
		Int("node_blocks", len(m.Nodes)).
		Int("parameters", len(qc.Values)).
		Msg("compiled connectivity matrix")

	out, _ := cmd.Flags().GetString("out")
	save, _ := cmd.Flags().GetBool("save")
	return s.emitCondition(ctx, qc, out, save)
}

func runConnectivityExport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	var s session
	defer s.Close()

	in, _ := cmd.Flags().GetString("in")
	name := connectivity.DefaultQualityConditionName
	if len(args) == 1 {
		name = args[0]
	}
	qc, err := s.loadCondition(ctx, name, in)
	if err != nil {
		return err
	}

	cat, err := s.catalog(ctx)
	if err != nil {
		return err
	}
	m, err := connectivity.ConvertQualityCondition(ctx, qc, cat)
	if err != nil {
		return err
	}

	out, _ := cmd.Flags().GetString("out")
	return writeOutput(out, func(w io.Writer) error {
		_, err := io.WriteString(w, m.ToCsv())
		return err
	})
}
