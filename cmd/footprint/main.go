package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "footprint",
		Short: "Sync, analyze and publish personal activity data",
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")

	root.AddCommand(syncCmd())
	root.AddCommand(analyzeCmd())
	root.AddCommand(publishCmd())
	root.AddCommand(statusCmd())

	return root
}

func syncCmd() *cobra.Command {
	var sources []string

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Fetch new records from each enabled source",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd.Context(), sources)
		},
	}

	cmd.Flags().StringSliceVar(&sources, "source", nil, "specific sources to sync (e.g., readwise,letterboxd)")
	return cmd
}

func analyzeCmd() *cobra.Command {
	var (
		sources []string
		month   string
	)

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Roll stored records up into monthly analysis rows",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd.Context(), sources, month)
		},
	}

	cmd.Flags().StringSliceVar(&sources, "source", nil, "specific sources to analyze")
	cmd.Flags().StringVar(&month, "month", "", "single period to analyze (YYYY-MM, default: all months with records)")
	return cmd
}

func publishCmd() *cobra.Command {
	var (
		month  string
		dryRun bool
	)

	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Commit the monthly summary and data files to the blog repository",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPublish(cmd.Context(), month, dryRun)
		},
	}

	cmd.Flags().StringVar(&month, "month", "", "period to publish (YYYY-MM, default: latest analyzed)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print generated files instead of committing")
	return cmd
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show cursor and record counts per source",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd.Context())
		},
	}
}
