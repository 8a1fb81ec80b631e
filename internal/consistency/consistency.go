// ABOUTME: Line-by-line agreement check across replica output dumps.
// ABOUTME: Reports the first line index where the dumps disagree.

// Package consistency compares the output files written by replicas and
// finds the first line on which they diverge.
package consistency

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DefaultPattern matches the dumps written by replicas during a run.
const DefaultPattern = "tmp/replica*.output"

// Missing stands in for a line a shorter file does not have.
const Missing = "-"

// ErrNoFiles is returned when nothing matches the pattern.
var ErrNoFiles = errors.New("no output files to check")

// Report is the outcome of a check.
type Report struct {
	Files []string
	// Line is the 1-based index of the first inconsistent line, or 0.
	Line int
	// Values holds each file's trimmed line at Line, in Files order.
	Values []string
}

// Consistent reports whether every file agreed on every line.
func (r Report) Consistent() bool {
	return r.Line == 0
}

// String renders the report the way the check command prints it.
func (r Report) String() string {
	if r.Consistent() {
		return "All good :)"
	}
	return fmt.Sprintf("Inconsistency detected in line %d\n%s", r.Line, strings.Join(r.Values, ",\n"))
}

// CheckGlob checks every file matching pattern, in sorted order.
func CheckGlob(pattern string) (Report, error) {
	paths, err := filepath.Glob(pattern)
	if err != nil {
		return Report{}, fmt.Errorf("bad pattern %q: %w", pattern, err)
	}
	return Check(paths)
}

// Check compares the given files. Lines are compared with their line
// terminators, so a missing final newline counts as a difference.
func Check(paths []string) (Report, error) {
	if len(paths) == 0 {
		return Report{}, ErrNoFiles
	}
	files := append([]string(nil), paths...)
	sort.Strings(files)

	contents := make([][]string, len(files))
	longest := 0
	for i, path := range files {
		lines, err := readLines(path)
		if err != nil {
			return Report{}, err
		}
		contents[i] = lines
		longest = max(longest, len(lines))
	}

	report := Report{Files: files}
	for i := 0; i < longest; i++ {
		if agree(contents, i) {
			continue
		}
		report.Line = i + 1
		report.Values = make([]string, len(contents))
		for j, lines := range contents {
			if i < len(lines) {
				report.Values[j] = strings.TrimSpace(lines[i])
			} else {
				report.Values[j] = Missing
			}
		}
		break
	}
	return report, nil
}

// agree reports whether every file that has line i has the same line there.
// Files that are too short do not take part.
func agree(contents [][]string, i int) bool {
	seen := ""
	found := false
	for _, lines := range contents {
		if i >= len(lines) {
			continue
		}
		if !found {
			seen, found = lines[i], true
			continue
		}
		if lines[i] != seen {
			return false
		}
	}
	return true
}

func readLines(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if len(data) == 0 {
		return nil, nil
	}
	lines := strings.SplitAfter(string(data), "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines, nil
}
