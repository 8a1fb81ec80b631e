// ABOUTME: Markdown and HTML summaries of a grading run.
// ABOUTME: HTML is rendered from the markdown with goldmark.

package grading

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/2389/ovid-master/internal/store"
)

// Markdown summarizes run as a markdown document: a verdict table followed
// by the diff of every wrong testcase.
func Markdown(run *store.Run) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Grading run %s\n\n", run.ID)
	fmt.Fprintf(&b, "Tests: `%s`  \n", run.TestsDir)
	fmt.Fprintf(&b, "Started: %s  \n", run.StartedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "Passed: **%d/%d**\n\n", run.Passed(), run.Total())

	b.WriteString("| Testcase | Verdict | Exit code | Duration |\n")
	b.WriteString("|---|---|---|---|\n")
	for _, res := range run.Results {
		verdict := "correct"
		if !res.Passed {
			verdict = "**wrong**"
		}
		fmt.Fprintf(&b, "| %s | %s | %d | %s |\n", res.Name, verdict, res.ExitCode, res.Duration.Round(time.Millisecond))
	}

	for _, res := range run.Results {
		if res.Passed || res.Diff == "" {
			continue
		}
		fmt.Fprintf(&b, "\n## %s\n\n```diff\n%s\n```\n", res.Name, strings.TrimRight(res.Diff, "\n"))
	}
	return b.String()
}

// WriteHTML renders the markdown summary of run as a standalone HTML page.
func WriteHTML(w io.Writer, run *store.Run) error {
	md := goldmark.New(goldmark.WithExtensions(extension.Table))

	var body bytes.Buffer
	if err := md.Convert([]byte(Markdown(run)), &body); err != nil {
		return fmt.Errorf("rendering report: %w", err)
	}

	_, err := fmt.Fprintf(w, "<!DOCTYPE html>\n<html>\n<head><meta charset=\"utf-8\"><title>Grading run %s</title></head>\n<body>\n%s</body>\n</html>\n",
		run.ID, body.String())
	return err
}
