package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/dbsmedya/entityplan/internal/logger"
	"github.com/dbsmedya/entityplan/internal/planner"
)

var (
	planRecords    string
	planInvalidate []string
	planOutput     string
	planSkeleton   bool
	planDryRun     bool
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Plan identifiers for a batch of records and commit the plan",
	Long: `Plan fingerprints every record of the batch, classifies it against the
stored plan and derives identifiers for new, changed and invalidated records.
Unchanged records keep the identifiers of the previous run. The new plan is
committed to the plan store unless --dry-run is given.

Invalidation targets force records to be re-derived:
  - a record key             (e.g. --invalidate f1)
  - a slot identifier        (e.g. --invalidate kb:file-6f1c...)
  - every record of a kind   (e.g. --invalidate kind:File)

Example:
  entityplan plan --config entityplan.yaml --records batch.json --output plan.json
  entityplan plan --records batch.json --skeleton --output - --dry-run`,
	RunE: runPlan,
}

func init() {
	planCmd.Flags().StringVarP(&planRecords, "records", "r", "",
		"Path to the JSON record batch (required)")
	planCmd.MarkFlagRequired("records")

	planCmd.Flags().StringSliceVar(&planInvalidate, "invalidate", nil,
		"Record keys, slot ids or kind:<Name> targets to re-derive")
	planCmd.Flags().StringVarP(&planOutput, "output", "o", "",
		"Write the plan as JSON to this file ('-' for stdout)")
	planCmd.Flags().BoolVar(&planSkeleton, "skeleton", false,
		"Write the node skeleton instead of the plan")
	planCmd.Flags().BoolVar(&planDryRun, "dry-run", false,
		"Compute the plan without committing it")

	rootCmd.AddCommand(planCmd)
}

func runPlan(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log, err := logger.New(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := signalContext(cmd, log)
	defer cancel()

	res, err := executeRun(ctx, cfg, log, runRequest{
		RecordsPath: planRecords,
		Options: planner.RunOptions{
			Invalidate: planInvalidate,
			DryRun:     planDryRun,
		},
	})
	if err != nil {
		return fmt.Errorf("planning failed: %w", err)
	}

	if planOutput != "" {
		if err := writePlanOutput(planOutput, res, planSkeleton); err != nil {
			return err
		}
	}

	// Keep stdout clean for the document when it is written there.
	if planOutput == "-" {
		return nil
	}

	printHeader("Plan: %s", planRecords)
	fmt.Fprintln(outputWriter)
	printRunSummary(res)

	switch {
	case planDryRun:
		fmt.Fprintln(outputWriter, "Dry run: plan not committed")
	case res.Committed:
		fmt.Fprintf(outputWriter, "Committed plan version %d\n", res.Snapshot.Version)
	default:
		fmt.Fprintln(outputWriter, "No changes: stored plan is up to date")
	}
	if planOutput != "" {
		fmt.Fprintf(outputWriter, "Plan written to %s\n", planOutput)
	}
	return nil
}

// writePlanOutput writes the plan, or its node skeleton, as indented JSON.
func writePlanOutput(path string, res *planner.Result, skeleton bool) (err error) {
	var doc any = res.Plan
	if skeleton {
		doc = res.Plan.Skeleton()
	}

	var w io.Writer = outputWriter
	if path != "-" {
		f, ferr := os.Create(path)
		if ferr != nil {
			return fmt.Errorf("failed to create output file: %w", ferr)
		}
		defer func() {
			if cerr := f.Close(); cerr != nil && err == nil {
				err = fmt.Errorf("failed to close output file: %w", cerr)
			}
		}()
		w = f
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to write plan: %w", err)
	}
	return nil
}
