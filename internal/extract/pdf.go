package extract

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// TextExtractor returns the plain text of a PDF file.
type TextExtractor interface {
	ExtractText(ctx context.Context, path string) (string, error)
}

// PDFToText runs the poppler pdftotext tool.
type PDFToText struct {
	Bin    string // defaults to "pdftotext"
	Layout bool   // keep the physical layout of columns
}

func (p PDFToText) ExtractText(ctx context.Context, path string) (string, error) {
	bin := p.Bin
	if bin == "" {
		bin = "pdftotext"
	}
	args := []string{"-enc", "UTF-8"}
	if p.Layout {
		args = append(args, "-layout")
	}
	args = append(args, path, "-")

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Stderr = &stderr
	output, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return "", fmt.Errorf("pdftotext failed: %w: %s", err, msg)
		}
		return "", fmt.Errorf("pdftotext failed: %w", err)
	}
	return string(output), nil
}
