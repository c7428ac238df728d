package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/weave/internal/catalog"
	"github.com/roach88/weave/internal/compiler"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid      bool                       `json:"valid"`
	App        string                     `json:"app,omitempty"`
	Hash       string                     `json:"hash,omitempty"`
	MountOrder []string                   `json:"mount_order,omitempty"`
	Errors     []compiler.ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <app>",
		Short: "Check an application against the module catalog",
		Long: `Compile an application definition and check it against the built-in
module catalog without opening a session.

<app> is a .cue file or a directory holding one CUE package. Checks cover
instance names, module names, parameter kinds, binding references and
binding cycles.

Exit codes:
  0 - Application is valid
  1 - Application does not compile or is invalid
  2 - Command error (file not found, etc.)`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	app, err := LoadApp(path, catalog.Builtins())
	if err != nil {
		return loadFailure(f, err)
	}

	order, err := catalog.MountOrder(*app.Spec)
	if err != nil {
		return f.Fail(ExitFailure, ErrCodeAssemble, "failed to order instances", err)
	}
	ids := make([]string, len(order))
	for i, inst := range order {
		ids[i] = inst.ID
		f.VerboseLog("mount %d: %s (%s)", i+1, inst.ID, inst.Module)
	}

	if f.JSON() {
		return f.Success(ValidationResult{
			Valid:      true,
			App:        app.Spec.Name,
			Hash:       app.Hash,
			MountOrder: ids,
		})
	}
	fmt.Fprintf(f.Writer, "✓ App %s valid (%d instance(s))\n", app.Spec.Name, len(ids))
	return nil
}

// outputValidationErrors outputs multiple validation errors.
func outputValidationErrors(f *OutputFormatter, errs []compiler.ValidationError) error {
	failure := NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
	if f.JSON() {
		if err := f.Report(ValidationResult{Valid: false, Errors: errs}, &CLIError{
			Code:    errs[0].Code,
			Message: errs[0].Message,
		}); err != nil {
			return err
		}
		return failure
	}

	fmt.Fprintln(f.Writer, "✗ Validation failed")
	fmt.Fprintln(f.Writer)
	for _, err := range errs {
		fmt.Fprintf(f.Writer, "  %s %s: %s\n", err.Code, err.Field, err.Message)
	}
	return failure
}
