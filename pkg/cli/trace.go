package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/chazu/raycsg/pkg/config"
	"github.com/chazu/raycsg/pkg/kernel"
	"github.com/chazu/raycsg/pkg/session"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Config  string
	Verify  bool
	Workers int
	Origin  string
	Dir     string
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace <scene.lisp>",
		Short: "Trace rays through every scene of a file",
		Long: `Evaluate a scene file, validate it and trace a set of rays through
every scene it defines.

Rays come from --config (a YAML ray set) or default to a single ray along
+X from x = -100. --origin and --dir override the grid origin and
direction. With --verify every scene is also cast as one kernel solid and
rays whose hits disagree are reported.`,
		Example: `  raycsg trace lens.lisp
  raycsg trace lens.lisp --config rays.yaml --verify
  raycsg trace lens.lisp --origin 0,0,-50 --dir 0,0,1 --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd, args[0])
		},
	}

	cmd.Flags().StringVarP(&opts.Config, "config", "c", "", "YAML ray set and cast settings")
	cmd.Flags().BoolVar(&opts.Verify, "verify", false, "compare against the kernel's own Booleans")
	cmd.Flags().IntVarP(&opts.Workers, "workers", "j", 0, "parallel casts (0 = one per CPU)")
	cmd.Flags().StringVar(&opts.Origin, "origin", "", "grid origin x,y,z")
	cmd.Flags().StringVar(&opts.Dir, "dir", "", "ray direction x,y,z")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command, path string) error {
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
	cfg, err := traceConfig(opts, cmd)
	if err != nil {
		_ = formatter.Error(ErrCodeConfig, err.Error(), nil)
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	rays := cfg.Rays()
	formatter.VerboseLog("tracing %d rays through %s", len(rays), path)

	// Cancel in-flight casts on Ctrl-C. Tests pass their own context.
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case <-sigChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	sess := session.New(session.Options{
		Cast:    cfg.Cast,
		Workers: cfg.Workers,
		Logger:  newLogger(opts.RootOptions, formatter.GetErrWriter()),
	})
	res := sess.Run(ctx, source, rays, opts.Verify)

	if !res.OK() {
		code := stageCode(res.Stage)
		msg := fmt.Sprintf("%s failed with %d error(s)", res.Stage, len(res.Errors))
		if formatter.JSON() {
			_ = formatter.Failure(code, msg, res)
		} else {
			w := formatter.Writer
			fmt.Fprintf(w, "✗ %s\n", msg)
			writeMessages(w, "error", res.Errors)
			writeMessages(w, "warning", res.Warnings)
		}
		return NewExitError(ExitFailure, msg)
	}

	if res.Mismatched() {
		msg := "traced hits disagree with the reference"
		if formatter.JSON() {
			_ = formatter.Failure(ErrCodeMismatch, msg, res)
		} else {
			writeTrace(formatter.Writer, res, rays)
			fmt.Fprintf(formatter.Writer, "✗ %s\n", msg)
		}
		return NewExitError(ExitFailure, msg)
	}

	if formatter.JSON() {
		return formatter.Success(res)
	}
	writeTrace(formatter.Writer, res, rays)
	return nil
}

// traceConfig loads --config, or the defaults, and applies flag overrides.
func traceConfig(opts *TraceOptions, cmd *cobra.Command) (*config.Config, error) {
	cfg := config.Default()
	if opts.Config != "" {
		loaded, err := config.Load(opts.Config)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if opts.Origin != "" {
		v, err := parseVec(opts.Origin)
		if err != nil {
			return nil, fmt.Errorf("--origin: %w", err)
		}
		cfg.Rays.Origin = v
	}
	if opts.Dir != "" {
		v, err := parseVec(opts.Dir)
		if err != nil {
			return nil, fmt.Errorf("--dir: %w", err)
		}
		cfg.Rays.Direction = v
	}
	if cmd.Flags().Changed("workers") {
		cfg.Workers = opts.Workers
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// readScene reads a scene file, reporting a missing file as a command error.
func readScene(formatter *OutputFormatter, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			msg := fmt.Sprintf("scene file not found: %s", path)
			_ = formatter.Error(ErrCodeNotFound, msg, nil)
			return "", NewExitError(ExitCommandError, msg)
		}
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return "", WrapExitError(ExitCommandError, "failed to read scene file", err)
	}
	return string(data), nil
}

func stageCode(stage string) string {
	switch stage {
	case session.StageEvaluate:
		return ErrCodeEval
	case session.StageValidate:
		return ErrCodeValidation
	case session.StageTrace, session.StageVerify:
		return ErrCodeTrace
	default:
		return ErrCodeGeneric
	}
}

func writeTrace(w io.Writer, res session.Result, rays []kernel.Ray) {
	for _, sc := range res.Scenes {
		fmt.Fprintf(w, "scene %q\n", sc.Name)
		for i, hits := range sc.Hits {
			mark := ""
			for _, m := range sc.Mismatches {
				if m == i {
					mark = "  (mismatch)"
				}
			}
			fmt.Fprintf(w, "  ray %d %s: %s  measure %s%s\n",
				i, formatRay(rays[i]), formatIntervals(hits), formatValue(sc.Measure[i]), mark)
		}
	}
	writeMessages(w, "warning", res.Warnings)
	status := "✓"
	if res.Mismatched() {
		status = "✗"
	}
	fmt.Fprintf(w, "%s %d scene(s), %d ray(s)", status, len(res.Scenes), res.Rays)
	if res.Verified {
		fmt.Fprint(w, ", verified")
	}
	fmt.Fprintln(w)
}

func formatRay(r kernel.Ray) string {
	return fmt.Sprintf("(%s,%s,%s)->(%s,%s,%s)",
		formatValue(r.Origin[0]), formatValue(r.Origin[1]), formatValue(r.Origin[2]),
		formatValue(r.Dir[0]), formatValue(r.Dir[1]), formatValue(r.Dir[2]))
}

func writeMessages(w io.Writer, kind string, msgs []session.Message) {
	for _, m := range msgs {
		fmt.Fprintf(w, "  %s: %s\n", kind, formatMessage(m))
	}
}

func formatMessage(m session.Message) string {
	switch {
	case m.Line > 0:
		return fmt.Sprintf("line %d: %s", m.Line, m.Message)
	case m.Node != "":
		return fmt.Sprintf("node %s: %s", m.Node, m.Message)
	default:
		return m.Message
	}
}
