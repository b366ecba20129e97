package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// useSQLiteStore points every command in the test at a fresh SQLite file.
func useSQLiteStore(t *testing.T) {
	t.Helper()
	t.Setenv("REFCHAIN_BACKEND", "sqlite")
	t.Setenv("REFCHAIN_PATH", filepath.Join(t.TempDir(), "refchain.db"))
	t.Setenv("REFCHAIN_LOG_LEVEL", "error")
}

// run executes the CLI with the given args and captures stdout.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestAppendThenLog(t *testing.T) {
	useSQLiteStore(t)

	out, err := run(t, "append",
		"--aggregate", "acct-1", "--type", "account.credited",
		"--payload", `{"amount":100}`, "--id", "e1", "--timestamp", "1000")
	require.NoError(t, err)
	assert.Contains(t, out, "appended e1 to acct-1")

	out, err = run(t, "append",
		"--aggregate", "acct-1", "--type", "account.debited",
		"--payload", `{"amount":40}`, "--id", "e2", "--timestamp", "2000")
	require.NoError(t, err)
	assert.Contains(t, out, "appended e2 to acct-1")

	out, err = run(t, "log", "--aggregate", "acct-1", "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   []LogEntry `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Data, 2)
	assert.Equal(t, "e1", resp.Data[0].ID)
	assert.Equal(t, "account.credited", resp.Data[0].Type)
	assert.JSONEq(t, `{"amount":100}`, string(resp.Data[0].Payload))
	assert.Equal(t, "e2", resp.Data[1].ID)
}

func TestAppendStaleExpectConflicts(t *testing.T) {
	useSQLiteStore(t)

	out, err := run(t, "append",
		"--aggregate", "acct-1", "--type", "a", "--payload", `{}`,
		"--id", "e1", "--timestamp", "1000", "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Data AppendResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	version := resp.Data.Version

	// Second append pinned to the pre-e1 version must lose.
	out, err = run(t, "append",
		"--aggregate", "acct-1", "--type", "a", "--payload", `{}`,
		"--id", "e2", "--timestamp", "2000",
		"--expect", "0000000000000000000000000000000000000000000000000000000000000000")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "CONCURRENCY_CONFLICT")

	// Pinned to the real version it goes through.
	_, err = run(t, "append",
		"--aggregate", "acct-1", "--type", "a", "--payload", `{}`,
		"--id", "e3", "--timestamp", "3000", "--expect", version)
	require.NoError(t, err)
}

func TestAppendRejectsBadPayload(t *testing.T) {
	useSQLiteStore(t)

	_, err := run(t, "append",
		"--aggregate", "acct-1", "--type", "a", "--payload", "{not json")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestLogRequiresScope(t *testing.T) {
	useSQLiteStore(t)

	_, err := run(t, "log")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, err = run(t, "log", "--all", "--aggregate", "x")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRefsListsAggregates(t *testing.T) {
	useSQLiteStore(t)

	for _, agg := range []string{"b-agg", "a-agg"} {
		_, err := run(t, "append",
			"--aggregate", agg, "--type", "a", "--payload", `{}`,
			"--id", "e-"+agg, "--timestamp", "1000")
		require.NoError(t, err)
	}

	out, err := run(t, "refs", "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Data []RefEntry `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data, 2)
	assert.Equal(t, "a-agg", resp.Data[0].AggregateID)
	assert.Equal(t, "b-agg", resp.Data[1].AggregateID)
	assert.Len(t, resp.Data[0].Current, 64)
}

func TestRefsUnknownAggregate(t *testing.T) {
	useSQLiteStore(t)

	_, err := run(t, "refs", "--aggregate", "ghost")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestVerifyCleanStore(t *testing.T) {
	useSQLiteStore(t)

	_, err := run(t, "append",
		"--aggregate", "acct-1", "--type", "a", "--payload", `{}`,
		"--id", "e1", "--timestamp", "1000")
	require.NoError(t, err)

	out, err := run(t, "verify")
	require.NoError(t, err)
	assert.Contains(t, out, "ok    acct-1")
}

func TestVerifyEmptyStore(t *testing.T) {
	useSQLiteStore(t)

	out, err := run(t, "verify")
	require.NoError(t, err)
	assert.Contains(t, out, "nothing to verify")
}
