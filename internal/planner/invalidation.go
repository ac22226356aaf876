package planner

import (
	"strings"

	"github.com/dbsmedya/entityplan/internal/plan"
)

// KindTargetPrefix marks an invalidation target naming every record of a
// kind, as in "kind:File".
const KindTargetPrefix = "kind:"

// resolveInvalidation maps invalidation targets to the prior record keys
// they force. A target is tried as a record key first, then as a slot id.
// Targets matching nothing come back as warnings.
func resolveInvalidation(prev *plan.Snapshot, targets []string) (map[string]struct{}, []error) {
	forced := make(map[string]struct{})
	if len(targets) == 0 {
		return forced, nil
	}

	var warnings []error
	ix := plan.BuildIndex(prev)
	for _, raw := range targets {
		target := strings.TrimSpace(raw)
		if target == "" {
			continue
		}

		var keys []string
		switch {
		case strings.HasPrefix(target, KindTargetPrefix):
			keys = ix.KeysOfKind(strings.TrimPrefix(target, KindTargetPrefix))
		case prev.Records[target] != nil:
			keys = []string{target}
		default:
			keys = ix.OwnersOf(target)
		}

		if len(keys) == 0 {
			warnings = append(warnings, &InvalidationTargetNotFoundError{Target: target})
			continue
		}
		for _, k := range keys {
			forced[k] = struct{}{}
		}
	}
	return forced, warnings
}
