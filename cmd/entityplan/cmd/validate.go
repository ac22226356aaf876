package cmd

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dbsmedya/entityplan/internal/config"
	"github.com/dbsmedya/entityplan/internal/logger"
	"github.com/dbsmedya/entityplan/internal/plan"
	"github.com/dbsmedya/entityplan/internal/schema"
	"github.com/dbsmedya/entityplan/internal/store"
)

// commitLocker is implemented by stores that serialize commits with a lock.
type commitLocker interface {
	Locked(ctx context.Context) (bool, error)
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration, schema and plan store",
	Long: `Validate checks the configuration file, loads the schema description and
opens the configured plan store.

Checks performed:
  - Configuration syntax and required fields
  - Schema kinds, facets and relationships
  - Plan store connectivity and readability of the stored plan

Example:
  entityplan validate --config entityplan.yaml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := readConfig()
	if err != nil {
		return err
	}

	printHeader("Configuration Validation")
	fmt.Fprintf(outputWriter, "Config file: %s\n", GetConfigFile())
	fmt.Fprintf(outputWriter, "Schema:      %s\n", cfg.Schema.Path)
	fmt.Fprintf(outputWriter, "Store:       %s\n\n", cfg.Store.Backend)

	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(outputWriter, "❌ Configuration invalid:")
		var verrs config.ValidationErrors
		if errors.As(err, &verrs) {
			for _, v := range verrs {
				fmt.Fprintf(outputWriter, "   - %s\n", v.Error())
			}
		} else {
			fmt.Fprintf(outputWriter, "   - %v\n", err)
		}
		return fmt.Errorf("validation failed")
	}
	fmt.Fprintln(outputWriter, "✅ Configuration valid")

	log, err := logger.New(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	hasErrors := false

	desc, err := schema.Load(cfg.Schema.Path)
	if err != nil {
		fmt.Fprintf(outputWriter, "❌ Schema invalid: %v\n", err)
		hasErrors = true
	} else {
		g := desc.Graph()
		fmt.Fprintf(outputWriter, "✅ Schema loaded: %d kinds, %d relationships\n",
			g.NodeCount(), g.EdgeCount())
		if isolated := g.IsolatedNodes(); len(isolated) > 0 {
			sort.Strings(isolated)
			fmt.Fprintf(outputWriter, "   Kinds without relationships: %s\n", strings.Join(isolated, ", "))
		}
	}

	ctx, cancel := signalContext(cmd, log)
	defer cancel()

	st, err := store.Open(ctx, cfg, log)
	if err != nil {
		fmt.Fprintf(outputWriter, "❌ Plan store unreachable: %v\n", err)
		hasErrors = true
	} else {
		defer func() { _ = st.Close() }()
		snap, err := st.Load(ctx)
		if err != nil {
			fmt.Fprintf(outputWriter, "❌ Stored plan unreadable: %v\n", err)
			hasErrors = true
		} else {
			fmt.Fprintf(outputWriter, "✅ Plan store reachable: version %d, %d records\n",
				snap.Version, len(snap.Records))
			if desc != nil {
				reportUnknownKinds(desc, snap)
			}
		}
		if l, ok := st.(commitLocker); ok {
			if locked, err := l.Locked(ctx); err != nil {
				fmt.Fprintf(outputWriter, "❌ Commit lock check failed: %v\n", err)
				hasErrors = true
			} else if locked {
				fmt.Fprintln(outputWriter, "   ⚠️  Commit lock is held by another planner")
			}
		}
	}

	fmt.Fprintln(outputWriter)
	if hasErrors {
		return fmt.Errorf("validation failed")
	}
	fmt.Fprintln(outputWriter, "✅ Validation complete")
	return nil
}

// reportUnknownKinds lists the kinds of stored records the schema no longer
// declares. Batches still carrying such records fail with a schema mismatch.
func reportUnknownKinds(desc *schema.Description, snap *plan.Snapshot) {
	counts := make(map[string]int)
	for _, row := range snap.Records {
		if !desc.HasKind(row.Kind) {
			counts[row.Kind]++
		}
	}
	if len(counts) == 0 {
		return
	}

	kinds := make([]string, 0, len(counts))
	for k := range counts {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		fmt.Fprintf(outputWriter, "   ⚠️  %d stored records of kind %q not in schema\n", counts[k], k)
	}
}
