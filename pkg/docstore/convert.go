package docstore

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

const conversionTimeout = 60 * time.Second

// findSoffice probes the configured LibreOffice install paths and returns the
// first that exists.
func findSoffice(paths []string) (string, bool) {
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p, true
		}
	}
	return "", false
}

// needsConversion reports whether the file is in the legacy binary format.
func needsConversion(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".doc")
}

// convertDocToDocx converts a legacy .doc file to .docx using a headless
// LibreOffice run and returns the path of the converted artifact. The caller
// is responsible for cleaning it up via cleanupConverted.
func convertDocToDocx(ctx context.Context, sofficePaths []string, inputPath string, logger *slog.Logger) (string, error) {
	soffice, ok := findSoffice(sofficePaths)
	if !ok {
		return "", fmt.Errorf("libreoffice not installed; convert %s to .docx before uploading", filepath.Base(inputPath))
	}

	dir := filepath.Dir(inputPath)
	base := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	outputPath := filepath.Join(dir, base+".docx")

	ctx, cancel := context.WithTimeout(ctx, conversionTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, soffice, "--headless", "--convert-to", "docx", "--outdir", dir, inputPath)
	output, err := cmd.CombinedOutput()
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return "", fmt.Errorf("document conversion timed out, file may be too large or corrupt")
		}
		return "", fmt.Errorf("libreoffice conversion failed: %w (output: %s)", err, strings.TrimSpace(string(output)))
	}

	// LibreOffice occasionally returns before the artifact is flushed.
	for retries := 5; retries > 0; retries-- {
		if _, err := os.Stat(outputPath); err == nil {
			logger.Info("converted legacy document", "input", inputPath, "output", outputPath)
			return outputPath, nil
		}
		time.Sleep(500 * time.Millisecond)
	}

	return "", fmt.Errorf("converted artifact %s never appeared", outputPath)
}

// cleanupConverted removes a temporary converted artifact.
func cleanupConverted(path string, logger *slog.Logger) {
	if err := os.Remove(path); err != nil {
		logger.Warn("failed to clean up converted artifact", "path", path, "error", err)
		return
	}
	logger.Debug("cleaned up converted artifact", "path", path)
}
