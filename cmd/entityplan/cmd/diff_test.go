package cmd

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setDiffFlags(t *testing.T, records string, unified bool, invalidate ...string) {
	t.Helper()
	r, u, i := diffRecords, diffUnified, diffInvalidate
	t.Cleanup(func() { diffRecords, diffUnified, diffInvalidate = r, u, i })
	diffRecords, diffUnified, diffInvalidate = records, unified, invalidate
}

func TestDiffCommandFlags(t *testing.T) {
	assert.Equal(t, "diff", diffCmd.Use)
	require.NotNil(t, diffCmd.Flags().Lookup("records"))
	assert.NotNil(t, diffCmd.Flags().Lookup("invalidate"))
	assert.Nil(t, diffCmd.Flags().Lookup("dry-run"), "diff never commits")
}

func TestRunDiff(t *testing.T) {
	ws := newWorkspace(t)
	out := useWorkspace(t, ws)

	// Commit the initial batch.
	setPlanFlags(t, ws.records, "", false, false)
	require.NoError(t, runPlan(planCmd, nil))

	// f1 changes size, f2 disappears, f3 is new.
	next := `[
  {"key": "d1", "kind": "Directory", "fields": {"filePath": "/data"}},
  {"key": "f1", "kind": "File", "fields": {"filePath": "/data/a.txt", "parentPath": "/data", "sizeInBytes": 101, "hash": "aa11"}},
  {"key": "f3", "kind": "File", "fields": {"filePath": "/data/c.txt", "parentPath": "/data", "sizeInBytes": 300}}
]`
	require.NoError(t, os.WriteFile(ws.records, []byte(next), 0o644))
	before, err := os.ReadFile(ws.planFile)
	require.NoError(t, err)

	out.Reset()
	setDiffFlags(t, ws.records, false, "kind:Directory")
	require.NoError(t, runDiff(diffCmd, nil))

	text := out.String()
	assert.Contains(t, text, "[Classification]")
	assert.Regexp(t, `d1\s+Directory\s+changed \(invalidated\)`, text)
	assert.Regexp(t, `f1\s+File\s+changed`, text)
	assert.Regexp(t, `f3\s+File\s+new`, text)
	assert.Regexp(t, `f2\s+removed`, text)

	after, err := os.ReadFile(ws.planFile)
	require.NoError(t, err)
	assert.Equal(t, before, after, "diff must not commit")
	assert.NotContains(t, text, "[Slots diff]")
}

func TestRunDiff_Unified(t *testing.T) {
	ws := newWorkspace(t)
	out := useWorkspace(t, ws)

	setPlanFlags(t, ws.records, "", false, false)
	require.NoError(t, runPlan(planCmd, nil))

	// Unchanged batch: listings are identical.
	out.Reset()
	setDiffFlags(t, ws.records, true)
	require.NoError(t, runDiff(diffCmd, nil))
	assert.Contains(t, out.String(), "[Slots diff]")
	assert.Contains(t, out.String(), "(identical)")

	// Dropping f2 removes its slots and its Contains relationship.
	trimmed := `[
  {"key": "d1", "kind": "Directory", "fields": {"filePath": "/data"}},
  {"key": "f1", "kind": "File", "fields": {"filePath": "/data/a.txt", "parentPath": "/data", "sizeInBytes": 100, "hash": "aa11"}}
]`
	require.NoError(t, os.WriteFile(ws.records, []byte(trimmed), 0o644))

	out.Reset()
	require.NoError(t, runDiff(diffCmd, nil))
	text := out.String()
	assert.Contains(t, text, "--- stored (version 1)")
	assert.Contains(t, text, "+++ planned (version 2)")
	assert.Regexp(t, `(?m)^-f2 primary-object kb:file-`, text)
	assert.Regexp(t, `(?m)^-f2 facet kb:filefacet-`, text)
	assert.Regexp(t, `(?m)^-Contains relationship kb:contains-`, text)
	assert.NotRegexp(t, `(?m)^\+f1 `, text)
}
