package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/npidb-scraper/internal/export"
)

var specialtiesCmd = &cobra.Command{
	Use:   "specialties",
	Short: "List selectable specialties",
	Long:  "Lists the specialty labels a collection can be run for, with the slug each one maps to. By default they are scraped from the site's taxonomy reference page.",
	RunE:  runSpecialties,
}

func init() {
	specialtiesCmd.Flags().Bool("static", false, "Use the built-in specialty table instead of scraping the taxonomy page")
	rootCmd.AddCommand(specialtiesCmd)
}

func runSpecialties(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signalContext(cmd)
	defer stop()

	index := a.taxonomySource().Resolve(ctx)
	if index.Len() == 0 {
		return fmt.Errorf("could not load specialties from %s (try --static)", a.cfg.BaseURL)
	}

	export.NewPrinter(cmd.OutOrStdout()).PrintSpecialties(index)
	return nil
}
