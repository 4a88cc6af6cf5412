// internal/reporting/junit.go
package reporting

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/beevik/etree"
	"go.uber.org/zap"

	"github.com/xkilldash9x/soundpuff-e2e/internal/observability"
	"github.com/xkilldash9x/soundpuff-e2e/internal/scenarios"
)

// JUnitReporter buffers results and writes a JUnit XML document on Close.
// It is thread safe.
type JUnitReporter struct {
	writer  io.WriteCloser
	logger  *zap.Logger
	suite   string
	started time.Time

	mu      sync.Mutex
	results []scenarios.Result
}

// NewJUnitReporter creates a reporter that owns writer.
func NewJUnitReporter(writer io.WriteCloser, suite string) *JUnitReporter {
	return &JUnitReporter{
		writer:  writer,
		logger:  observability.GetLogger().Named("junit_reporter"),
		suite:   suite,
		started: time.Now(),
	}
}

func (r *JUnitReporter) Write(result scenarios.Result) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, result)
	return nil
}

func seconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 3, 64)
}

// document builds the XML tree. Must be called with r.mu held.
func (r *JUnitReporter) document() *etree.Document {
	sum := scenarios.Summarize(r.results)
	var total time.Duration
	for _, res := range r.results {
		total += res.Duration
	}

	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	root := doc.CreateElement("testsuites")
	root.CreateAttr("name", r.suite)
	root.CreateAttr("tests", strconv.Itoa(len(r.results)))
	root.CreateAttr("failures", strconv.Itoa(sum.Failed))
	root.CreateAttr("skipped", strconv.Itoa(sum.Skipped))
	root.CreateAttr("time", seconds(total))

	suite := root.CreateElement("testsuite")
	suite.CreateAttr("name", r.suite)
	suite.CreateAttr("tests", strconv.Itoa(len(r.results)))
	suite.CreateAttr("failures", strconv.Itoa(sum.Failed))
	suite.CreateAttr("errors", "0")
	suite.CreateAttr("skipped", strconv.Itoa(sum.Skipped))
	suite.CreateAttr("time", seconds(total))
	suite.CreateAttr("timestamp", r.started.UTC().Format(time.RFC3339))

	for _, res := range r.results {
		tc := suite.CreateElement("testcase")
		tc.CreateAttr("name", res.Name)
		tc.CreateAttr("classname", r.suite)
		tc.CreateAttr("time", seconds(res.Duration))

		switch res.Status {
		case scenarios.StatusFailed:
			f := tc.CreateElement("failure")
			msg := "failed"
			if res.Err != nil {
				msg = res.Err.Error()
			}
			f.CreateAttr("message", msg)
			f.CreateAttr("type", fmt.Sprintf("%T", res.Err))
			f.SetText(msg)
		case scenarios.StatusSkipped:
			s := tc.CreateElement("skipped")
			if res.Err != nil {
				s.CreateAttr("message", res.Err.Error())
			}
		}

		// Jenkins and GitLab pick attachments up from system-out.
		attachments := res.Screenshots
		if res.PageSource != "" {
			attachments = append(attachments[:len(attachments):len(attachments)], res.PageSource)
		}
		if len(attachments) > 0 {
			out := tc.CreateElement("system-out")
			var text string
			for _, p := range attachments {
				text += "[[ATTACHMENT|" + p + "]]\n"
			}
			out.SetText(text)
		}
		if len(res.PageErrors) > 0 {
			tc.CreateElement("system-err").SetText(strings.Join(res.PageErrors, "\n") + "\n")
		}
	}
	doc.Indent(2)
	return doc
}

// Close writes the XML document and closes the writer.
func (r *JUnitReporter) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, writeErr := r.document().WriteTo(r.writer)
	// Always attempt to close the writer, regardless of encoding success.
	closeErr := r.writer.Close()
	if writeErr != nil {
		r.logger.Error("Failed to write JUnit report", zap.Error(writeErr))
		return fmt.Errorf("failed to write JUnit output: %w", writeErr)
	}
	if closeErr != nil {
		return fmt.Errorf("failed to close output writer: %w", closeErr)
	}
	r.logger.Info("Wrote JUnit report", zap.Int("testcases", len(r.results)))
	return nil
}
