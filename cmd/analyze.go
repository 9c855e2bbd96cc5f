package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var analyzeJSON bool

var analyzeCmd = &cobra.Command{
	Use:   "analyze <domain>",
	Short: "Run a full analysis for one domain",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("analyze"); err != nil {
			return err
		}
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		domain := args[0]
		job, err := env.Pipeline.Start(ctx, domain)
		if err != nil {
			return err
		}
		if err := env.Pipeline.Process(ctx, job); err != nil {
			return err
		}

		final, err := env.Store.GetJob(ctx, job.ID)
		if err != nil {
			return err
		}

		if analyzeJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(final)
		}

		fmt.Printf("Job %s: %s\n", final.ID, final.Stage)
		if final.Intel != nil {
			fmt.Printf("\nIndustry overview:\n%s\n", final.Intel.IndustryOverview)
		}
		for _, ref := range final.Artifacts {
			fmt.Printf("Artifact: %s (%s)\n", ref.URL, ref.ContentType)
		}
		zap.L().Info("analysis finished", zap.String("job_id", final.ID), zap.String("stage", string(final.Stage)))
		return nil
	},
}

func init() {
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "print the full job record as JSON")
	rootCmd.AddCommand(analyzeCmd)
}
