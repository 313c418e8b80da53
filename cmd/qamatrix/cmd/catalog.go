package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/solatis/qamatrix/internal/core/catalog"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Manage dataset metadata",
}

var catalogImportCmd = &cobra.Command{
	Use:   "import <catalog.yaml>",
	Short: "Load dataset definitions from a YAML catalog into the database",
	Args:  cobra.ExactArgs(1),
	RunE:  runCatalogImport,
}

func init() {
	rootCmd.AddCommand(catalogCmd)
	catalogCmd.AddCommand(catalogImportCmd)
}

func runCatalogImport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open catalog: %w", err)
	}
	defer f.Close()

	static, err := catalog.LoadYAML(f)
	if err != nil {
		return err
	}

	var s session
	defer s.Close()
	q, err := s.open(ctx)
	if err != nil {
		return err
	}

	target := catalog.NewSQL(q)
	for _, d := range static.Datasets() {
		if err := target.Put(ctx, d); err != nil {
			return err
		}
		logger.Info().Str("dataset", d.Name).Int("fields", len(d.Fields)).Msg("imported dataset")
	}
	return nil
}
