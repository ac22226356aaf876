package cmd

import (
	"fmt"

	difflib "github.com/pmezard/go-difflib/difflib"
	"github.com/spf13/cobra"

	"github.com/dbsmedya/entityplan/internal/logger"
	"github.com/dbsmedya/entityplan/internal/plan"
	"github.com/dbsmedya/entityplan/internal/planner"
)

var (
	diffRecords    string
	diffInvalidate []string
	diffUnified    bool
)

var diffCmd = &cobra.Command{
	Use:   "diff",
	Short: "Classify a batch against the stored plan without committing",
	Long: `Diff fingerprints the batch and reports, per record, whether it is new,
unchanged or changed relative to the stored plan, and which stored records
the batch no longer contains. Nothing is committed.

With --unified the slot listing of the stored plan and of the planned one
are compared as a unified diff, one line per slot.

Example:
  entityplan diff --config entityplan.yaml --records batch.json
  entityplan diff --records batch.json --invalidate kind:File`,
	RunE: runDiff,
}

func init() {
	diffCmd.Flags().StringVarP(&diffRecords, "records", "r", "",
		"Path to the JSON record batch (required)")
	diffCmd.MarkFlagRequired("records")

	diffCmd.Flags().StringSliceVar(&diffInvalidate, "invalidate", nil,
		"Record keys, slot ids or kind:<Name> targets to treat as changed")
	diffCmd.Flags().BoolVarP(&diffUnified, "unified", "u", false,
		"Print a unified diff of the stored and planned slot listings")

	rootCmd.AddCommand(diffCmd)
}

func runDiff(cmd *cobra.Command, args []string) error {
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
		RecordsPath: diffRecords,
		Options: planner.RunOptions{
			Invalidate: diffInvalidate,
			DryRun:     true,
		},
	})
	if err != nil {
		return fmt.Errorf("diff failed: %w", err)
	}

	printHeader("Diff: %s", diffRecords)
	fmt.Fprintln(outputWriter)
	printDelta(res)
	if diffUnified {
		if err := printUnified(res.Prior, res.Snapshot); err != nil {
			return err
		}
	}
	printRunSummary(res)
	return nil
}

// slotListing renders one line per slot, records by key then relationships
// by key, so unified diffs group the slots of a record together.
func slotListing(s *plan.Snapshot) []string {
	lines := make([]string, 0, s.SlotCount())
	for _, key := range s.Keys() {
		for _, slot := range s.Records[key].Slots {
			lines = append(lines, fmt.Sprintf("%s %s %s %s\n", key, slot.Role, slot.ID, slot.Type))
		}
	}
	for _, key := range s.RelationshipKeys() {
		slot := s.Relationships[key]
		lines = append(lines, fmt.Sprintf("%s %s %s %s\n", slot.Kind, slot.Role, slot.ID, slot.Type))
	}
	return lines
}

func printUnified(prev, next *plan.Snapshot) error {
	body, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        slotListing(prev),
		B:        slotListing(next),
		FromFile: fmt.Sprintf("stored (version %d)", prev.Version),
		ToFile:   fmt.Sprintf("planned (version %d)", next.Version),
		Context:  2,
	})
	if err != nil {
		return fmt.Errorf("failed to render diff: %w", err)
	}

	printSection("Slots diff")
	if body == "" {
		fmt.Fprintln(outputWriter, "  (identical)")
	} else {
		fmt.Fprint(outputWriter, body)
	}
	fmt.Fprintln(outputWriter)
	return nil
}

// printDelta lists the classification of every planned record in batch
// order, followed by the removed keys.
func printDelta(res *planner.Result) {
	invalidated := make(map[string]struct{}, len(res.Delta.Invalidated))
	for _, key := range res.Delta.Invalidated {
		invalidated[key] = struct{}{}
	}

	rows := make([][]string, 0, len(res.Plan.Records)+len(res.Delta.Removed))
	for _, rp := range res.Plan.Records {
		class := classificationColor(rp.Classification).Sprint(string(rp.Classification))
		if _, ok := invalidated[rp.Key]; ok {
			class += " (invalidated)"
		}
		rows = append(rows, []string{rp.Key, rp.Kind, class})
	}
	for _, key := range res.Delta.Removed {
		rows = append(rows, []string{key, "", classificationColor(plan.Removed).Sprint(string(plan.Removed))})
	}

	printSection("Classification")
	if len(rows) == 0 {
		fmt.Fprintln(outputWriter, "  (no records)")
	} else {
		printTable([]string{"KEY", "KIND", "CLASS"}, rows)
	}
	fmt.Fprintln(outputWriter)
}
