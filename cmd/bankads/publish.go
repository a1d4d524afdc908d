package main

import (
	"github.com/spf13/cobra"

	"github.com/jackzampolin/bankads/internal/pipeline"
)

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Republish the saved analytics file without collecting",
	Long: `Publish the period's saved analytics file to Tableau and post the summary.

The summary is rebuilt from the saved CSV when present; otherwise a generic
success message naming the period is posted. Fails if no analytics file exists.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPipeline(cmd, pipeline.ModePublish)
	},
}
