package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benvon/smart-docs/internal/document"
)

func run(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var stdout, stderr bytes.Buffer
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestValidate_Stdin(t *testing.T) {
	t.Parallel()

	out, errOut, err := run(t, `{"name":"Chores","type":"todolist","items":[{"task":" Dishes ","done":"yes"}]}`,
		"validate", "--repairs", "--data-dir", t.TempDir())
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"Chores","type":"todolist","items":[{"task":"Dishes","done":true}]}`, out)
	assert.Contains(t, errOut, "-: done_coerced at items[0].done")
}

func TestValidate_ForcedKind(t *testing.T) {
	t.Parallel()

	out, _, err := run(t, `{"name":"Morning","items":[{"name":"Stretch"}]}`,
		"validate", "--kind", "habit", "--data-dir", t.TempDir())
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"Morning","type":"habit","items":[{"habit":"Stretch","done":false}]}`, out)
}

func TestValidate_Errors(t *testing.T) {
	t.Parallel()

	_, _, err := run(t, `[1, 2]`, "validate", "--data-dir", t.TempDir())
	require.Error(t, err)
	assert.True(t, document.IsStructural(err))

	_, _, err = run(t, `{broken`, "validate", "--data-dir", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid JSON")

	_, _, err = run(t, "", "validate", filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}

func TestValidate_WriteInPlace(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "plan.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"name":"Plan","type":"todolist","items":[]}`), 0o600))

	out, _, err := run(t, "", "validate", "--write", "--data-dir", dir, path)
	require.NoError(t, err)
	assert.Contains(t, out, "plan.json: 1 repairs written")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"Plan","type":"todolist","items":[{"task":"New Task 1","done":false}]}`, string(data))

	// files outside the data directory are never rewritten
	outside := filepath.Join(t.TempDir(), "other.json")
	require.NoError(t, os.WriteFile(outside, []byte(`{"name":"x","type":"todolist"}`), 0o600))
	_, _, err = run(t, "", "validate", "--write", "--data-dir", dir, outside)
	assert.ErrorContains(t, err, "outside the data directory")
}

func TestListAndShow(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	out, _, err := run(t, "", "list", "--data-dir", dir)
	require.NoError(t, err)
	assert.Equal(t, "No documents stored\n", out)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "workout_plan.json"),
		[]byte(`{"name":"Workout Plan","type":"habit","items":[{"habit":"Run","done":false}]}`), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "groceries.json"), []byte(`{"name":"Groceries"}`), 0o600))

	out, _, err = run(t, "", "list", "--data-dir", dir)
	require.NoError(t, err)
	assert.Equal(t, "groceries.json\nworkout_plan.json\n", out)

	out, errOut, err := run(t, "", "show", "workout plans", "--data-dir", dir)
	require.NoError(t, err)
	assert.Contains(t, errOut, "matched workout_plan.json")
	assert.JSONEq(t, `{"name":"Workout Plan","type":"habit","items":[{"habit":"Run","done":false}]}`, out)

	_, _, err = run(t, "", "show", "zzzzzzzzzz", "--data-dir", dir)
	assert.ErrorContains(t, err, "no document matches")

	_, _, err = run(t, "", "show", "workout plans", "--data-dir", dir, "--cutoff", "0.99")
	assert.ErrorContains(t, err, "no document matches")
}

func TestSchema_RoundTrips(t *testing.T) {
	t.Parallel()

	out, _, err := run(t, "", "schema")
	require.NoError(t, err)
	assert.Contains(t, out, "column_types:")

	path := filepath.Join(t.TempDir(), "schema.yaml")
	require.NoError(t, os.WriteFile(path, []byte(out), 0o600))

	again, _, err := run(t, "", "schema", "--schema", path)
	require.NoError(t, err)
	assert.Equal(t, out, again)
}
