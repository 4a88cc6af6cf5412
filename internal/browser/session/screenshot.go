package session

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/antchfx/htmlquery"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Screenshot captures the viewport as PNG bytes.
func (s *Session) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := s.RunBackgroundActions(ctx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, fmt.Errorf("capture screenshot: %w", err)
	}
	return buf, nil
}

// SaveScreenshot writes a PNG of the viewport into dir and returns its path.
// The file name combines label, the session id and a timestamp.
func (s *Session) SaveScreenshot(ctx context.Context, dir, label string) (string, error) {
	// Capture even if the scenario context has already expired.
	shotCtx, cancel := context.WithTimeout(Detach(ctx), 10*time.Second)
	defer cancel()

	buf, err := s.Screenshot(shotCtx)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create artifacts dir: %w", err)
	}
	path, err := s.writeArtifact(dir, label, "png", buf)
	if err != nil {
		return "", fmt.Errorf("write screenshot: %w", err)
	}
	s.logger.Info("Saved screenshot.", zap.String("path", path))
	return path, nil
}

// SavePageSource writes the current DOM, parsed and re-rendered, into dir
// and returns its path. Like SaveScreenshot it works after ctx expired.
func (s *Session) SavePageSource(ctx context.Context, dir, label string) (string, error) {
	srcCtx, cancel := context.WithTimeout(Detach(ctx), 10*time.Second)
	defer cancel()

	doc, err := s.PageDocument(srcCtx)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create artifacts dir: %w", err)
	}
	path, err := s.writeArtifact(dir, label, "html", []byte(htmlquery.OutputHTML(doc, true)))
	if err != nil {
		return "", fmt.Errorf("write page source: %w", err)
	}
	s.logger.Info("Saved page source.", zap.String("path", path))
	return path, nil
}

// writeArtifact names a file after label, the session id and a timestamp.
func (s *Session) writeArtifact(dir, label, ext string, data []byte) (string, error) {
	name := fmt.Sprintf("%s_%s_%s.%s",
		unsafeFileChars.ReplaceAllString(label, "-"),
		s.id[:8],
		time.Now().Format("20060102-150405"),
		ext,
	)
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}
