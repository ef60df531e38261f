package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"docflow/internal/services"
)

// Line is one processed unit in the run report.
type Line struct {
	Phase   string
	Key     string
	Status  string
	Message string
}

// Statuses recorded per report line.
const (
	StatusOK      = "ok"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)

// Writer accumulates result lines for one task run and rewrites the
// report file in full after every phase, so a crash mid-run still
// leaves a usable checkpoint on disk.
type Writer struct {
	path  string
	lines []Line
}

// NewWriter creates the report file for a run. The file name embeds
// the workflow kind and a timestamp so successive runs never collide.
func NewWriter(dir, kind string, now time.Time) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "report", "new", "ensure report directory", err)
	}
	name := fmt.Sprintf("report_%s_%s.csv", kind, now.UTC().Format("20060102T150405"))
	w := &Writer{path: filepath.Join(dir, name)}
	if err := w.Flush(); err != nil {
		return nil, err
	}
	return w, nil
}

// Path returns the report file location.
func (w *Writer) Path() string {
	return w.path
}

// Append records one line. The file is not rewritten until Flush.
func (w *Writer) Append(line Line) {
	w.lines = append(w.lines, line)
}

// Lines returns a copy of the recorded lines.
func (w *Writer) Lines() []Line {
	out := make([]Line, len(w.lines))
	copy(out, w.lines)
	return out
}

// Counts tallies recorded lines by status.
func (w *Writer) Counts() (ok, failed, skipped int) {
	for _, line := range w.lines {
		switch line.Status {
		case StatusOK:
			ok++
		case StatusFailed:
			failed++
		case StatusSkipped:
			skipped++
		}
	}
	return ok, failed, skipped
}

// Flush rewrites the whole report file from the recorded lines.
func (w *Writer) Flush() error {
	tmp := w.path + ".tmp"
	file, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{"phase", "key", "status", "message"}); err != nil {
		_ = file.Close()
		return fmt.Errorf("write report header: %w", err)
	}
	for _, line := range w.lines {
		if err := writer.Write([]string{line.Phase, line.Key, line.Status, line.Message}); err != nil {
			_ = file.Close()
			return fmt.Errorf("write report line: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		_ = file.Close()
		return fmt.Errorf("flush report: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close report: %w", err)
	}
	if err := os.Rename(tmp, w.path); err != nil {
		return fmt.Errorf("replace report: %w", err)
	}
	return nil
}
