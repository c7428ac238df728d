package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/weave/internal/compiler"
)

func TestValidateValidApp(t *testing.T) {
	out, _, err := execute(t, "validate", explorerApp)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ App explorer valid (3 instance(s))")
}

func TestValidateValidAppJSON(t *testing.T) {
	out, _, err := execute(t, "validate", explorerApp, "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Valid)
	assert.Equal(t, "explorer", resp.Data.App)
	assert.NotEmpty(t, resp.Data.Hash)
	// view binds to dataset, so dataset mounts first.
	assert.ElementsMatch(t, []string{"clicks", "dataset", "view"}, resp.Data.MountOrder)
	assert.Less(t, indexOf(resp.Data.MountOrder, "dataset"), indexOf(resp.Data.MountOrder, "view"))
}

func TestValidateVerboseListsMountOrder(t *testing.T) {
	_, errOut, err := execute(t, "validate", explorerApp, "-v")
	require.NoError(t, err)
	assert.Contains(t, errOut, "(select)")
	assert.Contains(t, errOut, "(summary)")
}

func TestValidateSplitPackage(t *testing.T) {
	out, _, err := execute(t, "validate", "../compiler/testdata/split")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ App")
}

func TestValidateNonExistentApp(t *testing.T) {
	out, _, err := execute(t, "validate", filepath.Join(t.TempDir(), "nope.cue"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E005]")
	assert.Contains(t, out, "app not found")
}

func TestValidateInvalidApp(t *testing.T) {
	out, _, err := execute(t, "validate", "testdata/apps/broken.cue")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ Validation failed")
	assert.Contains(t, out, compiler.ErrUnknownModule)
	assert.Contains(t, out, compiler.ErrDanglingReference)
}

func TestValidateInvalidAppJSON(t *testing.T) {
	out, _, err := execute(t, "validate", "testdata/apps/broken.cue", "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
		Error  *CLIError        `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.False(t, resp.Data.Valid)
	require.Len(t, resp.Data.Errors, 2)
	codes := []string{resp.Data.Errors[0].Code, resp.Data.Errors[1].Code}
	assert.ElementsMatch(t, []string{compiler.ErrUnknownModule, compiler.ErrDanglingReference}, codes)
	assert.Equal(t, resp.Data.Errors[0].Code, resp.Error.Code)
}

func TestValidateCompileError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.cue")
	require.NoError(t, os.WriteFile(path, []byte("app: {name: \"x\"\n"), 0o644))

	out, _, err := execute(t, "validate", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error [E004]")
}

func TestValidateRejectsFloat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "float.cue")
	src := `app: {
	name: "float"
	instances: clicks: {
		module: "counter"
		config: step: 1.5
	}
}
`
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))

	out, _, err := execute(t, "validate", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "float")
}

func indexOf(list []string, s string) int {
	for i, v := range list {
		if v == s {
			return i
		}
	}
	return -1
}
