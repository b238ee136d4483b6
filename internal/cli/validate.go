package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/tickflow/internal/machines"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	Program string
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid       bool     `json:"valid"`
	Program     string   `json:"program"`
	Source      string   `json:"source"`
	ProgramHash string   `json:"program_hash,omitempty"`
	TuningHash  string   `json:"tuning_hash,omitempty"`
	Machines    []string `json:"machines,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate [tuning-file]",
		Short: "Check that a tuning table builds a program",
		Long: `Compile a tuning table (.cue or .json) and build a program from it.

Every machine reads its constants and initial values at construction, so a
table that validates here will not fail for a missing value at run time.
Without a file the embedded BE13 table is checked.

Exit codes:
  0 - Table is valid
  1 - Table does not compile or does not build the program
  2 - Command error (file not found)`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			return runValidate(opts, path, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Program, "program", machines.BE13Name, "program to build")

	return cmd
}

func runValidate(opts *ValidateOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	source := path
	if source == "" {
		source = "(embedded be13)"
	}
	formatter.VerboseLog("Validating %s against program %s", source, opts.Program)

	loaded, err := LoadProgram(opts.Program, path)
	if err != nil {
		code := loadErrorCode(err)
		_ = formatter.Error(code, err.Error(), nil)
		exit := ExitFailure
		if code == ErrCodeNotFound {
			exit = ExitCommandError
		}
		return WrapExitError(exit, "validation failed", err)
	}

	programHash, err := loaded.Program.Hash()
	if err != nil {
		return WrapExitError(ExitFailure, "hash program", err)
	}
	tuningHash, err := loaded.Table.Hash()
	if err != nil {
		return WrapExitError(ExitFailure, "hash tuning table", err)
	}

	result := ValidationResult{
		Valid:       true,
		Program:     opts.Program,
		Source:      source,
		ProgramHash: programHash,
		TuningHash:  tuningHash,
		Machines:    loaded.Program.IDs(),
	}
	if opts.Format == "json" {
		return formatter.Success(result)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "OK %s builds %s (%d machines)\n", source, opts.Program, len(result.Machines))
	if opts.Verbose {
		fmt.Fprintf(w, "  program hash: %s\n", programHash)
		fmt.Fprintf(w, "  tuning hash:  %s\n", tuningHash)
	}
	return nil
}
