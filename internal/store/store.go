// ABOUTME: Store interface and data types for grading history persistence
// ABOUTME: Defines Run and Result structs and the Store interface for database operations

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrDuplicateRun is returned when trying to save a run whose ID already exists
var ErrDuplicateRun = errors.New("run already exists")

// Run is one invocation of the grader over a tests directory
type Run struct {
	ID         string
	TestsDir   string
	StartedAt  time.Time
	FinishedAt time.Time
	Results    []*Result
}

// Passed counts the results that matched their expected output
func (r *Run) Passed() int {
	n := 0
	for _, res := range r.Results {
		if res.Passed {
			n++
		}
	}
	return n
}

// Total is the number of graded testcases
func (r *Run) Total() int {
	return len(r.Results)
}

// Result is the verdict for a single testcase
type Result struct {
	Name     string
	Passed   bool
	ExitCode int
	Duration time.Duration
	// Diff is empty for passing testcases
	Diff string
}

// RunSummary is a Run without its results, as listed by ListRuns
type RunSummary struct {
	ID         string
	TestsDir   string
	StartedAt  time.Time
	FinishedAt time.Time
	Passed     int
	Total      int
}

// Store persists grading history
type Store interface {
	SaveRun(ctx context.Context, run *Run) error
	GetRun(ctx context.Context, id string) (*Run, error)
	ListRuns(ctx context.Context, limit int) ([]*RunSummary, error)
	Close() error
}
