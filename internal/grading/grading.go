// ABOUTME: Batch grader: runs the master over every testcase and compares transcripts.
// ABOUTME: Prints colored verdicts, writes outputs to the output dir, and records the run.

// Package grading runs a directory of testcases through the master and
// compares each transcript to its expected output.
package grading

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/pmezard/go-difflib/difflib"

	"github.com/2389/ovid-master/internal/config"
	"github.com/2389/ovid-master/internal/store"
)

const (
	inputSuffix  = ".input"
	outputSuffix = ".output"
	errSuffix    = ".err"
)

// ErrNoTestcases is returned when the tests directory holds no .input files.
var ErrNoTestcases = errors.New("no testcases found")

// Grader runs testcases.
type Grader struct {
	Config config.GradingConfig
	// Store records each run when set.
	Store store.Store
	// Out receives the verdict lines.
	Out io.Writer
	// BuildOutput receives the build command's output; nil discards it.
	BuildOutput io.Writer
	Logger      *slog.Logger
}

// Testcases lists the testcase names in dir in sorted order.
func Testcases(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading tests dir: %w", err)
	}
	var names []string
	for _, e := range entries {
		if !e.Type().IsRegular() || !strings.HasSuffix(e.Name(), inputSuffix) {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), inputSuffix))
	}
	sort.Strings(names)
	return names, nil
}

// Run builds the project, grades every testcase in testsDir, and returns
// the recorded run.
func (g *Grader) Run(ctx context.Context, testsDir string) (*store.Run, error) {
	logger := g.logger()

	names, err := Testcases(testsDir)
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoTestcases, testsDir)
	}

	g.build(ctx)

	if err := os.RemoveAll(g.Config.OutputDir); err != nil {
		return nil, fmt.Errorf("clearing output dir: %w", err)
	}
	if err := os.MkdirAll(g.Config.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("creating output dir: %w", err)
	}

	run := &store.Run{
		ID:        uuid.NewString(),
		TestsDir:  testsDir,
		StartedAt: time.Now(),
	}
	logger = logger.With("run_id", run.ID)
	logger.Info("grading", "tests_dir", testsDir, "testcases", len(names))

	for i, name := range names {
		if i > 0 {
			if err := pause(ctx, g.Config.Pause); err != nil {
				return nil, err
			}
		}

		res, err := g.grade(ctx, testsDir, name)
		if err != nil {
			return nil, err
		}
		run.Results = append(run.Results, res)
		g.printVerdict(res)
		logger.Debug("graded", "testcase", name, "passed", res.Passed, "exit_code", res.ExitCode, "duration", res.Duration)
	}
	run.FinishedAt = time.Now()

	if g.Store != nil {
		if err := g.Store.SaveRun(ctx, run); err != nil {
			return run, fmt.Errorf("recording run: %w", err)
		}
	}
	logger.Info("graded", "passed", run.Passed(), "total", run.Total())
	return run, nil
}

// build runs the configured build command. A missing build script is skipped
// and a failing build is only logged; the testcases then report the damage.
func (g *Grader) build(ctx context.Context) {
	argv := g.Config.Build
	if len(argv) == 0 {
		return
	}
	if _, err := exec.LookPath(argv[0]); err != nil {
		g.logger().Debug("no build command, skipping", "command", argv[0])
		return
	}
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stdout = g.BuildOutput
	cmd.Stderr = g.BuildOutput
	if err := cmd.Run(); err != nil {
		g.logger().Warn("build failed", "command", strings.Join(argv, " "), "error", err)
	}
}

// grade runs one testcase. Only failures to set the testcase up are errors;
// a master that crashes or misbehaves is a wrong answer.
func (g *Grader) grade(ctx context.Context, testsDir, name string) (*store.Result, error) {
	if len(g.Config.Master) == 0 {
		return nil, errors.New("no master command configured")
	}

	in, err := os.Open(filepath.Join(testsDir, name+inputSuffix))
	if err != nil {
		return nil, fmt.Errorf("opening input: %w", err)
	}
	defer in.Close()

	outPath := filepath.Join(g.Config.OutputDir, name+outputSuffix)
	out, err := os.Create(outPath)
	if err != nil {
		return nil, fmt.Errorf("creating output: %w", err)
	}
	defer out.Close()

	errFile, err := os.Create(filepath.Join(g.Config.OutputDir, name+errSuffix))
	if err != nil {
		return nil, fmt.Errorf("creating error log: %w", err)
	}
	defer errFile.Close()

	cmd := exec.CommandContext(ctx, g.Config.Master[0], g.Config.Master[1:]...)
	cmd.Stdin = in
	cmd.Stdout = out
	cmd.Stderr = errFile

	res := &store.Result{Name: name}
	start := time.Now()
	runErr := cmd.Run()
	res.Duration = time.Since(start)

	var exitErr *exec.ExitError
	switch {
	case runErr == nil:
	case errors.As(runErr, &exitErr):
		res.ExitCode = exitErr.ExitCode()
	case ctx.Err() != nil:
		return nil, ctx.Err()
	default:
		res.ExitCode = -1
		fmt.Fprintf(errFile, "running master: %v\n", runErr)
	}

	got, err := os.ReadFile(outPath)
	if err != nil {
		return nil, fmt.Errorf("reading output: %w", err)
	}
	want, err := os.ReadFile(filepath.Join(testsDir, name+outputSuffix))
	if err != nil {
		res.Diff = fmt.Sprintf("expected output unavailable: %v", err)
		return res, nil
	}

	res.Passed, res.Diff = Compare(string(want), string(got))
	return res, nil
}

// Compare reports whether got matches want once surrounding whitespace is
// trimmed, and a unified diff when it does not.
func Compare(want, got string) (bool, string) {
	want, got = strings.TrimSpace(want), strings.TrimSpace(got)
	if want == got {
		return true, ""
	}
	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(want + "\n"),
		B:        difflib.SplitLines(got + "\n"),
		FromFile: "expected",
		ToFile:   "actual",
		Context:  2,
	})
	if err != nil {
		return false, err.Error()
	}
	return false, diff
}

func (g *Grader) printVerdict(res *store.Result) {
	if g.Out == nil {
		return
	}
	fmt.Fprintf(g.Out, "%s ", res.Name)
	if res.Passed {
		color.New(color.FgGreen).Fprintln(g.Out, "correct")
	} else {
		color.New(color.FgRed, color.Bold).Fprintln(g.Out, "wrong")
	}
}

func (g *Grader) logger() *slog.Logger {
	if g.Logger == nil {
		return slog.Default()
	}
	return g.Logger
}

func pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
