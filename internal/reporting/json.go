package reporting

import (
	"fmt"
	"io"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/soundpuff-e2e/internal/observability"
	"github.com/xkilldash9x/soundpuff-e2e/internal/scenarios"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Report is the JSON document the JSON reporter writes.
type Report struct {
	Suite     string            `json:"suite"`
	StartedAt time.Time         `json:"started_at"`
	Summary   scenarios.Summary `json:"summary"`
	Results   []ResultRecord    `json:"results"`
}

// ResultRecord is one scenario in the JSON report.
type ResultRecord struct {
	Name        string   `json:"name"`
	Status      string   `json:"status"`
	DurationMS  int64    `json:"duration_ms"`
	Error       string   `json:"error,omitempty"`
	Screenshots []string `json:"screenshots,omitempty"`
	PageSource  string   `json:"page_source,omitempty"`
	PageErrors  []string `json:"page_errors,omitempty"`
}

// JSONReporter buffers results and writes a Report on Close. It is thread
// safe.
type JSONReporter struct {
	writer io.WriteCloser
	logger *zap.Logger

	mu     sync.Mutex
	report Report
	all    []scenarios.Result
}

// NewJSONReporter creates a reporter that owns writer.
func NewJSONReporter(writer io.WriteCloser, suite string) *JSONReporter {
	return &JSONReporter{
		writer: writer,
		logger: observability.GetLogger().Named("json_reporter"),
		report: Report{Suite: suite, StartedAt: time.Now().UTC(), Results: []ResultRecord{}},
	}
}

func (r *JSONReporter) Write(result scenarios.Result) error {
	rec := ResultRecord{
		Name:        result.Name,
		Status:      string(result.Status),
		DurationMS:  result.Duration.Milliseconds(),
		Screenshots: result.Screenshots,
		PageSource:  result.PageSource,
		PageErrors:  result.PageErrors,
	}
	if result.Err != nil {
		rec.Error = result.Err.Error()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.report.Results = append(r.report.Results, rec)
	r.all = append(r.all, result)
	return nil
}

// Close encodes the report and closes the writer.
func (r *JSONReporter) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.report.Summary = scenarios.Summarize(r.all)
	encoder := json.NewEncoder(r.writer)
	encoder.SetIndent("", "  ")
	encodeErr := encoder.Encode(r.report)
	closeErr := r.writer.Close()
	if encodeErr != nil {
		r.logger.Error("Failed to encode JSON report", zap.Error(encodeErr))
		return fmt.Errorf("failed to encode JSON output: %w", encodeErr)
	}
	if closeErr != nil {
		return fmt.Errorf("failed to close output writer: %w", closeErr)
	}
	return nil
}
