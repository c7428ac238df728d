package compiler

import (
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"

	"github.com/roach88/weave/internal/ir"
)

// AppPath is the top-level field holding the application definition.
const AppPath = "app"

// Load reads an application definition from a .cue file or from a
// directory holding one CUE package, and compiles it.
func Load(path string) (*ir.AppSpec, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("load app: %w", err)
	}

	ctx := cuecontext.New()
	var value cue.Value
	if info.IsDir() {
		instances := load.Instances([]string{"."}, &load.Config{Dir: path})
		if len(instances) == 0 {
			return nil, fmt.Errorf("load app: no CUE instances in %s", path)
		}
		if instances[0].Err != nil {
			return nil, fmt.Errorf("load app: %w", formatCUEError(instances[0].Err))
		}
		value = ctx.BuildInstance(instances[0])
	} else {
		if filepath.Ext(path) != ".cue" {
			return nil, fmt.Errorf("load app: %s is not a .cue file", path)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("load app: %w", err)
		}
		value = ctx.CompileBytes(data, cue.Filename(path))
	}
	if err := value.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	return CompileRoot(value)
}

// CompileRoot compiles the app field of an already built CUE value.
func CompileRoot(root cue.Value) (*ir.AppSpec, error) {
	app := root.LookupPath(cue.ParsePath(AppPath))
	if !app.Exists() {
		return nil, &CompileError{Field: AppPath, Message: "no app definition found", Pos: root.Pos()}
	}
	return CompileApp(app)
}

// CompileSource compiles CUE source text. Used by tests and by tools that
// hold the definition in memory.
func CompileSource(filename string, src []byte) (*ir.AppSpec, error) {
	value := cuecontext.New().CompileBytes(src, cue.Filename(filename))
	if err := value.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	return CompileRoot(value)
}
