package toolchain

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// MIMEDetector reports a file's MIME type using `file`, falling back to
// content sniffing in-process when `file` is not installed.
type MIMEDetector struct {
	runner  *Runner
	program string
}

// NewMIMEDetector creates a detector that runs program (usually "file").
func NewMIMEDetector(runner *Runner, program string) *MIMEDetector {
	return &MIMEDetector{runner: runner, program: program}
}

// Detect returns the bare MIME type of path, without parameters.
func (d *MIMEDetector) Detect(ctx context.Context, path string) (string, error) {
	res, err := d.runner.Run(ctx, nil, d.program, "--brief", "--mime-type", path)
	if err == nil {
		if mt := bareType(string(res.Stdout)); mt != "" {
			return mt, nil
		}
		return "", fmt.Errorf("%w: %s printed no mime type", ErrToolFailed, d.program)
	}
	if !errors.Is(err, ErrToolMissing) {
		return "", err
	}

	m, serr := mimetype.DetectFile(path)
	if serr != nil {
		return "", fmt.Errorf("sniff mime type: %w", serr)
	}
	return bareType(m.String()), nil
}

// bareType strips parameters and whitespace: "text/plain; charset=utf-8" → "text/plain".
func bareType(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, ';'); i >= 0 {
		s = s[:i]
	}
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return strings.ToLower(fields[0])
}
