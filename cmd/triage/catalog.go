package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCatalogCmd() *cobra.Command {
	catalogCmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect triage catalogs",
	}

	var dir string
	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Load a catalog and report integrity errors",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if dir == "" {
				dir = catalogDir
			}
			cat, err := loadCatalog(dir)
			if err != nil {
				return err
			}
			source := dir
			if source == "" {
				source = "embedded"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "catalog ok (%s): %d scenarios, %d resources, %d crisis tiers, %d profile rules, %d providers\n",
				source, len(cat.Scenarios), len(cat.Resources), len(cat.CrisisTiers), len(cat.ProfileRules), len(cat.Providers))
			return nil
		},
	}
	validateCmd.Flags().StringVar(&dir, "dir", "", "catalog directory to validate (defaults to --catalog-dir or the embedded catalog)")

	catalogCmd.AddCommand(validateCmd)
	return catalogCmd
}
