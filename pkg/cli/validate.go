package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chazu/raycsg/pkg/session"
)

// ValidateResult is the JSON payload of the validate command.
type ValidateResult struct {
	Path string `json:"path"`
	session.Result
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <scene.lisp>",
		Short: "Evaluate and validate a scene file without tracing",
		Long: `Evaluate a scene file and run the structural checks on the graph it
builds: cycles, dangling references, duplicate names, operand counts and
primitive dimensions. Warnings do not fail validation.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, cmd, args[0])
		},
	}
	return cmd
}

func runValidate(opts *RootOptions, cmd *cobra.Command, path string) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	source, err := readScene(formatter, path)
	if err != nil {
		return err
	}

	sess := session.New(session.Options{Logger: newLogger(opts, formatter.GetErrWriter())})
	g, res := sess.Check(source)
	out := ValidateResult{Path: path, Result: res}

	if !res.OK() {
		msg := "Validation failed"
		if formatter.JSON() {
			_ = formatter.Failure(stageCode(res.Stage), msg, out)
		} else {
			fmt.Fprintf(formatter.Writer, "✗ %s\n", msg)
			writeMessages(formatter.Writer, "error", res.Errors)
			writeMessages(formatter.Writer, "warning", res.Warnings)
		}
		return NewExitError(ExitFailure, msg)
	}

	if formatter.JSON() {
		return formatter.Success(out)
	}
	fmt.Fprintf(formatter.Writer, "✓ %s: %d node(s), %d scene(s)\n", path, res.Nodes, len(g.Roots))
	writeMessages(formatter.Writer, "warning", res.Warnings)
	return nil
}
