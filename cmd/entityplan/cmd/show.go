package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dbsmedya/entityplan/internal/logger"
	"github.com/dbsmedya/entityplan/internal/plan"
	"github.com/dbsmedya/entityplan/internal/store"
)

var showJSON bool

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the stored plan",
	Long: `Show loads the latest committed plan from the plan store and prints every
slot identifier with its type, grouped by record, followed by the
relationship slots.

Example:
  entityplan show --config entityplan.yaml
  entityplan show --json > snapshot.json`,
	RunE: runShow,
}

func init() {
	showCmd.Flags().BoolVar(&showJSON, "json", false,
		"Print the stored snapshot as JSON")

	rootCmd.AddCommand(showCmd)
}

func runShow(cmd *cobra.Command, args []string) error {
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

	st, err := store.Open(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to open plan store: %w", err)
	}
	defer func() { _ = st.Close() }()

	snap, err := st.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load plan: %w", err)
	}

	if showJSON {
		enc := json.NewEncoder(outputWriter)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	}

	printSnapshot(snap, cfg.Store.Backend)
	return nil
}

func printSnapshot(snap *plan.Snapshot, backend string) {
	printHeader("Stored plan (%s)", backend)
	fmt.Fprintf(outputWriter, "Version:       %d\n", snap.Version)
	fmt.Fprintf(outputWriter, "Records:       %d\n", len(snap.Records))
	fmt.Fprintf(outputWriter, "Relationships: %d\n", len(snap.Relationships))
	fmt.Fprintf(outputWriter, "Slots:         %d\n\n", snap.SlotCount())

	if snap.IsEmpty() {
		fmt.Fprintln(outputWriter, "No plan committed yet.")
		return
	}

	printSection("Records")
	rows := make([][]string, 0, snap.SlotCount())
	for _, key := range snap.Keys() {
		row := snap.Records[key]
		for _, slot := range row.Slots {
			rows = append(rows, []string{key, string(slot.Role), slot.ID, slot.Type})
		}
	}
	printTable([]string{"KEY", "ROLE", "ID", "TYPE"}, rows)
	fmt.Fprintln(outputWriter)

	if len(snap.Relationships) == 0 {
		return
	}
	printSection("Relationships")
	rows = rows[:0]
	for _, key := range snap.RelationshipKeys() {
		slot := snap.Relationships[key]
		rows = append(rows, []string{slot.Kind, slot.ID, slot.Type})
	}
	printTable([]string{"KIND", "ID", "TYPE"}, rows)
	fmt.Fprintln(outputWriter)
}
