// Package toolchain wraps the external programs isbnscan relies on (file, 7z,
// pdftotext, tesseract, ...) behind small interfaces, with pure-Go fallbacks
// where a library can do the job.
package toolchain

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// Sentinel errors for the toolchain package.
var (
	// ErrToolMissing is returned when a program is not installed.
	ErrToolMissing = errors.New("tool not found")

	// ErrToolFailed is returned when a program exits non-zero or times out.
	ErrToolFailed = errors.New("tool failed")

	// ErrNotArchive is returned when the extractor refuses a file.
	ErrNotArchive = errors.New("not an archive")

	// ErrExtractLimit is returned when an archive holds more bytes than the
	// caller allowed.
	ErrExtractLimit = errors.New("extraction limit exceeded")

	// ErrUnsupported is returned when no tool handles a MIME type.
	ErrUnsupported = errors.New("unsupported mime type")
)

// MissingToolError names the program that could not be found.
type MissingToolError struct {
	Tool string
}

func (e *MissingToolError) Error() string {
	return fmt.Sprintf("%s: %v", e.Tool, ErrToolMissing)
}

func (e *MissingToolError) Unwrap() error { return ErrToolMissing }

// MissingTool returns the program name carried by err, if any.
func MissingTool(err error) (string, bool) {
	var mt *MissingToolError
	if errors.As(err, &mt) {
		return mt.Tool, true
	}
	return "", false
}

// DefaultTimeout bounds each external invocation.
const DefaultTimeout = 5 * time.Minute

// Runner executes external programs with a per-invocation timeout.
type Runner struct {
	timeout time.Duration
	logger  *slog.Logger

	mu       sync.Mutex
	resolved map[string]string
}

// NewRunner creates a Runner. A zero timeout means DefaultTimeout.
func NewRunner(timeout time.Duration, logger *slog.Logger) *Runner {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		timeout:  timeout,
		logger:   logger,
		resolved: make(map[string]string),
	}
}

// Available reports whether program can be found.
func (r *Runner) Available(program string) bool {
	_, err := r.lookPath(program)
	return err == nil
}

func (r *Runner) lookPath(program string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.resolved[program]; ok {
		return p, nil
	}
	p, err := exec.LookPath(program)
	if err != nil {
		return "", &MissingToolError{Tool: program}
	}
	r.resolved[program] = p
	return p, nil
}

// Result holds the captured output of one invocation.
type Result struct {
	Stdout []byte
	Stderr []byte
}

// Run executes program with args and returns its output. Stdout is written
// to stdout when non-nil instead of being buffered.
func (r *Runner) Run(ctx context.Context, stdout io.Writer, program string, args ...string) (*Result, error) {
	path, err := r.lookPath(program)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var outBuf, errBuf bytes.Buffer
	cmd := exec.CommandContext(ctx, path, args...)
	if stdout != nil {
		cmd.Stdout = stdout
	} else {
		cmd.Stdout = &outBuf
	}
	cmd.Stderr = &errBuf

	start := time.Now()
	err = cmd.Run()
	r.logger.Debug("tool finished",
		"tool", program,
		"args", strings.Join(args, " "),
		"duration", time.Since(start),
		"error", err)

	res := &Result{Stdout: outBuf.Bytes(), Stderr: errBuf.Bytes()}
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return res, fmt.Errorf("%w: %s timed out after %v", ErrToolFailed, program, r.timeout)
		}
		return res, fmt.Errorf("%w: %s: %v (stderr: %s)", ErrToolFailed, program, err,
			strings.TrimSpace(string(res.Stderr)))
	}
	return res, nil
}
