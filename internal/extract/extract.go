// Package extract wraps yt-dlp (through github.com/lrstanley/go-ytdlp) behind
// a single Fetch call that either yields the path of the written file or an
// *Error with a human-readable reason.
package extract

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/lrstanley/go-ytdlp"
)

const (
	browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
	browserAccept    = "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8"
	browserLanguage  = "en-US,en;q=0.5"
)

// Error is returned for every failed extraction. Reason is safe to log;
// Err carries the underlying cause.
type Error struct {
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return "extraction failed: " + e.Reason
	}
	return fmt.Sprintf("extraction failed: %s: %v", e.Reason, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

type Options struct {
	// Format is a yt-dlp format selector; empty leaves the choice to yt-dlp.
	Format string
	// ExtractorArgs is passed through as --extractor-args when set.
	ExtractorArgs string
	// Timeout bounds a single Fetch. Zero means no bound beyond ctx.
	Timeout time.Duration
}

type runFunc func(ctx context.Context, cmd *ytdlp.Command, url string) (*ytdlp.Result, error)

type Extractor struct {
	opts Options
	run  runFunc
}

func New(opts Options) *Extractor {
	return &Extractor{
		opts: opts,
		run: func(ctx context.Context, cmd *ytdlp.Command, url string) (*ytdlp.Result, error) {
			return cmd.Run(ctx, append(headerArgs(), url)...)
		},
	}
}

// Fetch downloads url into outputTemplate and returns the absolute path of
// the file yt-dlp actually wrote, which may differ from the template after
// title and extension substitution.
func (e *Extractor) Fetch(ctx context.Context, url, outputTemplate string) (string, error) {
	if e.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.opts.Timeout)
		defer cancel()
	}

	result, err := e.run(ctx, e.command(outputTemplate), url)
	if err != nil {
		return "", &Error{Reason: classify(ctx, result, err), Err: err}
	}

	stdout := ""
	if result != nil {
		stdout = result.Stdout
	}
	path, err := resolvePath(stdout, outputTemplate)
	if err != nil {
		return "", &Error{Reason: "no file was produced", Err: err}
	}
	return path, nil
}

func (e *Extractor) command(outputTemplate string) *ytdlp.Command {
	cmd := ytdlp.New().
		Output(outputTemplate).
		NoPlaylist().
		Quiet().
		NoWarnings().
		NoProgress().
		NoSimulate().
		NoMtime().
		Print("after_move:filepath").
		UserAgent(browserUserAgent)

	if e.opts.Format != "" {
		cmd = cmd.Format(e.opts.Format)
	}
	if e.opts.ExtractorArgs != "" {
		cmd = cmd.ExtractorArgs(e.opts.ExtractorArgs)
	}
	return cmd
}

// headerArgs returns the extra request headers as raw arguments. The
// builder's AddHeaders keeps only the last value, while yt-dlp accepts the
// flag repeatedly.
func headerArgs() []string {
	return []string{
		"--add-headers", "Accept:" + browserAccept,
		"--add-headers", "Accept-Language:" + browserLanguage,
	}
}

// resolvePath picks the realized file from yt-dlp's printed output, falling
// back to the unique template prefix when nothing usable was printed.
func resolvePath(stdout, outputTemplate string) (string, error) {
	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line == "" || strings.HasPrefix(line, "[") {
			continue
		}
		if path, ok := regularFile(line); ok {
			return path, nil
		}
	}

	prefix := outputTemplate
	if i := strings.Index(prefix, "%("); i >= 0 {
		prefix = prefix[:i]
	}
	matches, err := filepath.Glob(prefix + "*")
	if err != nil {
		return "", fmt.Errorf("glob output: %w", err)
	}
	for _, m := range matches {
		if isPartial(m) {
			continue
		}
		if path, ok := regularFile(m); ok {
			return path, nil
		}
	}
	return "", fmt.Errorf("no output file matching %s*", prefix)
}

func regularFile(path string) (string, bool) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", false
	}
	info, err := os.Stat(abs)
	if err != nil || !info.Mode().IsRegular() {
		return "", false
	}
	return abs, true
}

func isPartial(path string) bool {
	for _, suffix := range []string{".part", ".ytdl", ".temp"} {
		if strings.HasSuffix(path, suffix) {
			return true
		}
	}
	return false
}

func classify(ctx context.Context, result *ytdlp.Result, err error) string {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return "download timed out"
	}
	if errors.Is(err, context.Canceled) {
		return "download cancelled"
	}
	if errors.Is(err, exec.ErrNotFound) {
		return "yt-dlp is not installed"
	}

	detail := err.Error()
	if result != nil && result.Stderr != "" {
		detail = result.Stderr
	}
	detail = strings.ToLower(detail)
	switch {
	case strings.Contains(detail, "private"):
		return "video is private"
	case strings.Contains(detail, "not available in your country"), strings.Contains(detail, "geo"):
		return "video is geo-restricted"
	case strings.Contains(detail, "unsupported url"):
		return "unsupported URL"
	case strings.Contains(detail, "unavailable"), strings.Contains(detail, "removed"), strings.Contains(detail, "404"):
		return "video is unavailable or removed"
	}
	return "yt-dlp failed"
}

// Install downloads a yt-dlp binary into go-ytdlp's cache when one is not
// already available and returns its location and version.
func Install(ctx context.Context) (executable, version string, err error) {
	resolved, err := ytdlp.Install(ctx, nil)
	if err != nil {
		return "", "", fmt.Errorf("install yt-dlp: %w", err)
	}
	return resolved.Executable, resolved.Version, nil
}
