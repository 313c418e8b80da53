package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/solatis/qamatrix/internal/attribute"
)

var attributeCmd = &cobra.Command{
	Use:   "attribute",
	Short: "Convert attribute constraint matrices",
}

var attributeImportCmd = &cobra.Command{
	Use:   "import <matrix.csv>",
	Short: "Compile an attribute matrix into a quality condition",
	Args:  cobra.ExactArgs(1),
	RunE:  runAttributeImport,
}

var attributeExportCmd = &cobra.Command{
	Use:   "export [name]",
	Short: "Render a quality condition as attribute matrix",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runAttributeExport,
}

func init() {
	rootCmd.AddCommand(attributeCmd)
	attributeCmd.AddCommand(attributeImportCmd, attributeExportCmd)

	attributeImportCmd.Flags().String("name", "", "quality condition name (default: qc_dataset_<dataset>)")
	attributeImportCmd.Flags().StringP("out", "o", "", "write the YAML document to file instead of stdout")
	attributeImportCmd.Flags().Bool("save", false, "store the quality condition in the database")

	attributeExportCmd.Flags().String("in", "", "read the quality condition from a YAML document")
	attributeExportCmd.Flags().StringP("out", "o", "", "write the matrix to file instead of stdout")
}

func runAttributeImport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	var s session
	defer s.Close()

	cat, err := s.catalog(ctx)
	if err != nil {
		return err
	}

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open matrix: %w", err)
	}
	defer f.Close()

	dc, err := attribute.Parse(ctx, f, cat, attributeOptions())
	if err != nil {
		return fmt.Errorf("%s: %w", args[0], err)
	}

	qc := dc.ToQualityCondition()
	if name, _ := cmd.Flags().GetString("name"); name != "" {
		qc.Name = name
	}
	logger.Info().Str("dataset", dc.Dataset.Name).Int("constraints", len(qc.Values)-1).Msg("compiled attribute matrix")

	out, _ := cmd.Flags().GetString("out")
	save, _ := cmd.Flags().GetBool("save")
	return s.emitCondition(ctx, qc, out, save)
}

func runAttributeExport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	var s session
	defer s.Close()

	in, _ := cmd.Flags().GetString("in")
	var name string
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
	dc, err := attribute.FromQualityCondition(ctx, qc, cat, attributeOptions())
	if err != nil {
		return err
	}
	text, err := dc.ToCsv()
	if err != nil {
		return err
	}

	out, _ := cmd.Flags().GetString("out")
	return writeOutput(out, func(w io.Writer) error {
		_, err := io.WriteString(w, text)
		return err
	})
}
