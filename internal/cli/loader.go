package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/roach88/weave/internal/catalog"
	"github.com/roach88/weave/internal/compiler"
	"github.com/roach88/weave/internal/engine"
	"github.com/roach88/weave/internal/ir"
)

// LoadedApp is a compiled, validated and assembled application.
type LoadedApp struct {
	Spec  *ir.AppSpec
	Hash  string
	Setup engine.SetupFunc
}

// LoadError is a failure to turn an application path into a LoadedApp.
// Invalid carries the validation errors when the app compiled but does not
// check against the registry.
type LoadError struct {
	Code    string
	Message string
	Invalid []compiler.ValidationError
	Err     error
}

func (e *LoadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// LoadApp compiles the application at path (a .cue file or a CUE package
// directory), validates it against reg and assembles its setup function.
func LoadApp(path string, reg *catalog.Registry) (*LoadedApp, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("app not found: %s", path)}
		}
		return nil, &LoadError{Code: ErrCodeNotFound, Message: "cannot access app", Err: err}
	}

	spec, err := compiler.Load(path)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: "failed to compile app", Err: err}
	}
	if errs := compiler.Validate(spec, reg); len(errs) > 0 {
		return nil, &LoadError{
			Code:    errs[0].Code,
			Message: fmt.Sprintf("app %q is invalid (%d error(s))", spec.Name, len(errs)),
			Invalid: errs,
		}
	}

	setup, err := catalog.Assemble(*spec, reg)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeAssemble, Message: "failed to assemble app", Err: err}
	}
	hash, err := ir.AppHash(*spec)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeAssemble, Message: "failed to hash app", Err: err}
	}
	return &LoadedApp{Spec: spec, Hash: hash, Setup: setup}, nil
}

// loadFailure reports a LoadApp error and maps it to an exit code:
// validation failures are check failures, everything else is a command
// error.
func loadFailure(f *OutputFormatter, err error) error {
	var le *LoadError
	if !errors.As(err, &le) {
		return f.Fail(ExitCommandError, ErrCodeGeneric, "failed to load app", err)
	}
	if len(le.Invalid) > 0 {
		return outputValidationErrors(f, le.Invalid)
	}
	exit := ExitCommandError
	if le.Code == ErrCodeLoadFailed {
		exit = ExitFailure
	}
	return f.Fail(exit, le.Code, le.Message, le.Err)
}
