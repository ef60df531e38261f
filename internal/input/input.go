package input

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"docflow/internal/logging"
	"docflow/internal/services"
)

// ErrNoValidRows marks an input file where every row failed validation.
var ErrNoValidRows = errors.New("no valid rows in input")

// Row is a single validated input record keyed by header name.
type Row struct {
	// Line is the 1-based line number in the source file, header
	// included, kept for warnings and checkpoint reports.
	Line   int
	Fields map[string]string
}

// Get returns a trimmed field value by header name.
func (r Row) Get(name string) string {
	return strings.TrimSpace(r.Fields[name])
}

// Document is the parsed and validated content of one input file.
type Document struct {
	Path    string
	Headers []string
	Rows    []Row
	Dropped int
}

// Load reads a CSV file, maps columns by header, and drops rows that
// are missing any required field. Dropped rows are logged as warnings
// rather than aborting the run; a file with zero surviving rows is an
// error.
func Load(path string, required []string, logger *slog.Logger) (*Document, error) {
	if logger == nil {
		logger = logging.NewNop()
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "input", "load", fmt.Sprintf("open %s", path), err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	headerRecord, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, services.Wrap(services.ErrValidation, "input", "load", fmt.Sprintf("%s is empty", path), ErrNoValidRows)
		}
		return nil, services.Wrap(services.ErrValidation, "input", "load", "read header", err)
	}

	headers := make([]string, len(headerRecord))
	index := make(map[string]int, len(headerRecord))
	for i, name := range headerRecord {
		name = strings.TrimSpace(name)
		headers[i] = name
		index[name] = i
	}

	var missing []string
	for _, name := range required {
		if _, ok := index[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, services.Wrap(services.ErrValidation, "input", "load",
			fmt.Sprintf("%s missing required columns: %s", path, strings.Join(missing, ", ")), nil)
	}

	doc := &Document{Path: path, Headers: headers}
	line := 1
	for {
		record, readErr := reader.Read()
		if errors.Is(readErr, io.EOF) {
			break
		}
		line++
		if readErr != nil {
			doc.Dropped++
			logger.Warn("dropping malformed row",
				logging.String("path", path),
				logging.Int("line", line),
				logging.Error(readErr),
			)
			continue
		}

		fields := make(map[string]string, len(headers))
		for name, col := range index {
			if col < len(record) {
				fields[name] = strings.TrimSpace(record[col])
			}
		}

		if empty := missingRequired(fields, required); len(empty) > 0 {
			doc.Dropped++
			logger.Warn("dropping row with missing required fields",
				logging.String("path", path),
				logging.Int("line", line),
				logging.String("fields", strings.Join(empty, ", ")),
			)
			continue
		}

		doc.Rows = append(doc.Rows, Row{Line: line, Fields: fields})
	}

	if len(doc.Rows) == 0 {
		return nil, services.Wrap(services.ErrValidation, "input", "load", path, ErrNoValidRows)
	}
	return doc, nil
}

func missingRequired(fields map[string]string, required []string) []string {
	var empty []string
	for _, name := range required {
		if strings.TrimSpace(fields[name]) == "" {
			empty = append(empty, name)
		}
	}
	return empty
}
