// -- internal/reporting/reporter.go --
package reporting

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/xkilldash9x/soundpuff-e2e/internal/scenarios"
)

// Supported report formats.
const (
	FormatJUnit = "junit"
	FormatJSON  = "json"
)

// Reporter writes scenario results to an output.
type Reporter interface {
	// Write records a single scenario result.
	Write(result scenarios.Result) error
	// Close finalizes the report and closes any underlying resources (e.g., file handles).
	Close() error
}

// nopWriteCloser wraps an io.Writer and provides a no-op Close method.
type nopWriteCloser struct {
	io.Writer
}

func (nwc *nopWriteCloser) Close() error {
	return nil
}

// New creates a new reporter based on the specified format and output path.
// suite names the run in the report.
func New(format, outputPath, suite string) (Reporter, error) {
	switch format {
	case FormatJUnit, FormatJSON:
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}

	var writer io.WriteCloser
	if outputPath == "" || outputPath == "stdout" {
		// Wrap Stdout so Close() is a no-op.
		writer = &nopWriteCloser{os.Stdout}
	} else {
		if dir := filepath.Dir(outputPath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create report directory %s: %w", dir, err)
			}
		}
		f, err := os.Create(outputPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create output file %s: %w", outputPath, err)
		}
		writer = f
	}

	if format == FormatJUnit {
		return NewJUnitReporter(writer, suite), nil
	}
	return NewJSONReporter(writer, suite), nil
}

// WriteAll writes every result and closes the reporter.
func WriteAll(r Reporter, results []scenarios.Result) error {
	for _, res := range results {
		if err := r.Write(res); err != nil {
			_ = r.Close()
			return err
		}
	}
	return r.Close()
}
