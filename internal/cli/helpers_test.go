package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/weave/internal/catalog"
	"github.com/roach88/weave/internal/engine"
	"github.com/roach88/weave/internal/ir"
	"github.com/roach88/weave/internal/store"
	"github.com/roach88/weave/internal/testutil"
)

const explorerApp = "testdata/apps/explorer.cue"

// execute runs the root command with args and returns stdout, stderr and
// the command error.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

// seedJournal runs one explorer session per token through a file-backed
// journal: each session picks mtcars and is then closed.
func seedJournal(t *testing.T, tokens ...string) string {
	t.Helper()
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "weave.db")

	app, err := LoadApp(explorerApp, catalog.Builtins())
	require.NoError(t, err)
	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()

	factory := engine.NewFactory(app.Setup, engine.NewFixedGenerator(tokens...),
		engine.WithJournal(st),
		engine.WithApp(app.Spec.Name, app.Hash),
		engine.WithLogger(testutil.DiscardLogger()),
	)
	for range tokens {
		root, err := factory.Open(ctx)
		require.NoError(t, err)
		_, err = root.Dispatch(ctx, ir.Event{Target: "dataset.choice", Value: ir.IRString("mtcars")})
		require.NoError(t, err)
		factory.Release(ctx, root.ID())
	}
	return dbPath
}
