// Package ffmpeg wraps the external media binary. It is the only place in
// the repo allowed to spawn it.
package ffmpeg

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/sugiura/kamishibai/internal/ports"
	"github.com/sugiura/kamishibai/internal/progress"
	"github.com/sugiura/kamishibai/internal/types"
)

const (
	stderrTailLines = 50
	// Wall-clock budget per invocation: expected output duration times this
	// factor, with a floor for tiny scenes.
	timeoutFactor  = 10.0
	minimumTimeout = 60 * time.Second
)

type Runner struct {
	bin   string
	probe string
	log   zerolog.Logger
}

func New(ffmpegPath, ffprobePath string, log zerolog.Logger) *Runner {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &Runner{bin: ffmpegPath, probe: ffprobePath, log: log}
}

var _ ports.MediaTool = (*Runner)(nil)

// Run executes the tool quietly: banner and stats suppressed, stderr kept as
// a bounded tail for diagnosis.
func (r *Runner) Run(ctx context.Context, args []string, opts ports.RunOpts) error {
	full := append([]string{"-hide_banner", "-loglevel", "error", "-nostats"}, args...)
	return r.run(ctx, full, opts, nil)
}

// RunProgress appends -progress pipe:1 and streams out_time updates.
func (r *Runner) RunProgress(ctx context.Context, args []string, opts ports.RunOpts, onTime func(float64)) error {
	full := append([]string{"-hide_banner", "-loglevel", "error", "-nostats", "-progress", "pipe:1"}, args...)
	return r.run(ctx, full, opts, onTime)
}

func (r *Runner) run(ctx context.Context, args []string, opts ports.RunOpts, onTime func(float64)) error {
	deadline := deadlineFor(opts.ExpectedSeconds)
	ctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	r.log.Debug().Str("label", opts.Label).Str("cmd", prettyCommand(r.bin, args)).Msg("ffmpeg")

	cmd := exec.CommandContext(ctx, r.bin, args...)
	// Cancellation asks the child to terminate; the hard kill only lands if it
	// ignores the signal past the grace window.
	cmd.Cancel = func() error { return cmd.Process.Signal(syscall.SIGTERM) }
	cmd.WaitDelay = 5 * time.Second
	tail := newTailBuffer(stderrTailLines)
	cmd.Stderr = tail

	if onTime != nil {
		stdout, err := cmd.StdoutPipe()
		if err != nil {
			return fmt.Errorf("progress pipe: %w", err)
		}
		if err := cmd.Start(); err != nil {
			return fmt.Errorf("start %s: %w", r.bin, err)
		}
		parser := progress.Parser{OnTime: onTime}
		scanner := bufio.NewScanner(stdout)
		for scanner.Scan() {
			parser.FeedLine(scanner.Text())
		}
		return r.finish(ctx, cmd.Wait(), deadline, tail)
	}

	return r.finish(ctx, cmd.Run(), deadline, tail)
}

func (r *Runner) finish(ctx context.Context, err error, deadline time.Duration, tail *tailBuffer) error {
	if err == nil {
		return nil
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &types.ToolTimeoutError{Command: r.bin, Timeout: deadline}
	}
	if errors.Is(ctx.Err(), context.Canceled) {
		return context.Canceled
	}
	lines := tail.Lines()
	for _, line := range lines {
		r.log.Error().Str("tool", r.bin).Msg(line)
	}
	exitCode := -1
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		exitCode = exitErr.ExitCode()
	}
	return &types.ToolFailureError{Command: r.bin, ExitCode: exitCode, Tail: lines}
}

// ProbeDuration reads the container duration via ffprobe.
func (r *Runner) ProbeDuration(ctx context.Context, path string) (float64, error) {
	cmd := exec.CommandContext(ctx, r.probe,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	b, err := cmd.CombinedOutput()
	if err != nil {
		return 0, fmt.Errorf("ffprobe duration: %w\n%s", err, string(b))
	}
	s := strings.TrimSpace(string(b))
	sec, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", s, err)
	}
	return sec, nil
}

func deadlineFor(expectedSeconds float64) time.Duration {
	d := time.Duration(expectedSeconds * timeoutFactor * float64(time.Second))
	if d < minimumTimeout {
		d = minimumTimeout
	}
	return d
}

func prettyCommand(bin string, args []string) string {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, bin)
	for _, a := range args {
		if strings.ContainsAny(a, " '\"") {
			parts = append(parts, "'"+a+"'")
		} else {
			parts = append(parts, a)
		}
	}
	return strings.Join(parts, " ")
}

// tailBuffer keeps the last n lines written to it.
type tailBuffer struct {
	n       int
	lines   []string
	partial strings.Builder
}

func newTailBuffer(n int) *tailBuffer {
	return &tailBuffer{n: n}
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	for _, b := range p {
		if b == '\n' {
			t.push(t.partial.String())
			t.partial.Reset()
			continue
		}
		t.partial.WriteByte(b)
	}
	return len(p), nil
}

func (t *tailBuffer) push(line string) {
	t.lines = append(t.lines, line)
	if len(t.lines) > t.n {
		t.lines = t.lines[len(t.lines)-t.n:]
	}
}

func (t *tailBuffer) Lines() []string {
	out := t.lines
	if t.partial.Len() > 0 {
		out = append(out, t.partial.String())
	}
	return out
}
