package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/metashare/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Filter string // scenario filter (glob pattern)
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios-dir>",
		Short: "Run decoder conformance scenarios",
		Long: `Run decoder conformance scenarios.

Each YAML scenario builds a small chain, decodes it into a fresh
in-memory store and checks its assertions.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  metashare test ./scenarios
  metashare test ./scenarios --filter "reply-*"
  metashare test ./scenarios --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")

	return cmd
}

// TestResult is the result of the test command.
type TestResult struct {
	*harness.SuiteResult
}

func (r TestResult) WriteText(w io.Writer) error {
	if r.Total == 0 {
		_, err := fmt.Fprintln(w, "No scenarios found.")
		return err
	}
	for _, s := range r.Scenarios {
		name := s.Name
		if name == "" {
			name = filepath.Base(s.Path)
		}
		if s.Pass {
			fmt.Fprintf(w, "✓ %s\n", name)
			continue
		}
		fmt.Fprintf(w, "✗ %s\n", name)
		for _, e := range s.Errors {
			for _, line := range strings.Split(strings.TrimRight(e, "\n"), "\n") {
				fmt.Fprintf(w, "  %s\n", line)
			}
		}
	}
	_, err := fmt.Fprintf(w, "\n%d passed, %d failed, %d total\n", r.Passed, r.Failed, r.Total)
	return err
}

func runTests(opts *TestOptions, dir string, cmd *cobra.Command) error {
	out := formatter(opts.RootOptions, cmd)

	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return NewExitError(ExitCommandError, fmt.Sprintf("scenarios directory not found: %s", dir))
	}
	files, err := harness.ScenarioFiles(dir)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to find scenarios", err)
	}
	if opts.Filter != "" {
		files, err = filterScenarios(files, opts.Filter)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid filter", err)
		}
	}
	out.VerboseLog("running %d scenarios from %s", len(files), dir)

	res := harness.RunFiles(files)
	if err := out.Success(TestResult{res}); err != nil {
		return err
	}
	if !res.Pass() {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d scenarios failed", res.Failed, res.Total))
	}
	return nil
}

// filterScenarios keeps the files whose name without extension matches
// the glob pattern.
func filterScenarios(files []string, pattern string) ([]string, error) {
	kept := []string{}
	for _, f := range files {
		base := filepath.Base(f)
		name := strings.TrimSuffix(base, filepath.Ext(base))
		matched, err := filepath.Match(pattern, name)
		if err != nil {
			return nil, err
		}
		if matched {
			kept = append(kept, f)
		}
	}
	return kept, nil
}
