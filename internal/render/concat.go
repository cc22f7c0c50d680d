package render

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/sugiura/kamishibai/internal/ports"
	"github.com/sugiura/kamishibai/internal/types"
)

// Concat stream-copies identically encoded scene MP4s into one file via the
// concat demuxer. Inputs are validated first; the join never re-encodes.
func Concat(ctx context.Context, tool ports.MediaTool, log zerolog.Logger, inputs []string, output string, totalSeconds float64) error {
	if len(inputs) == 0 {
		return &types.ConcatInputError{}
	}

	var missing, empty []string
	abs := make([]string, 0, len(inputs))
	for _, in := range inputs {
		p, err := filepath.Abs(in)
		if err != nil {
			p = in
		}
		st, err := os.Stat(p)
		switch {
		case err != nil:
			missing = append(missing, p)
		case st.Size() == 0:
			empty = append(empty, p)
		}
		abs = append(abs, p)
	}
	if len(missing) > 0 || len(empty) > 0 {
		log.Error().Int("missing", len(missing)).Int("empty", len(empty)).Msg("concat: invalid inputs")
		for _, p := range missing {
			log.Error().Str("path", p).Msg("concat: missing segment")
		}
		for _, p := range empty {
			log.Error().Str("path", p).Msg("concat: zero-size segment")
		}
		return &types.ConcatInputError{Missing: missing, Empty: empty}
	}

	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return err
	}

	opts := ports.RunOpts{ExpectedSeconds: totalSeconds, Label: "Concat"}

	// Single segment: plain stream copy, no list file needed.
	if len(abs) == 1 {
		log.Info().Msg("concat: single segment, stream-copying to output")
		return tool.Run(ctx, []string{
			"-i", abs[0],
			"-c", "copy",
			"-movflags", "+faststart",
			"-y", output,
		}, opts)
	}

	listPath := output + ".concat.txt"
	lines := make([]string, 0, len(abs)+1)
	lines = append(lines, "ffconcat version 1.0")
	for _, p := range abs {
		lines = append(lines, fmt.Sprintf("file '%s'", p))
	}
	payload := strings.Join(lines, "\n") + "\n"
	if err := os.WriteFile(listPath, []byte(payload), 0o644); err != nil {
		return fmt.Errorf("write concat list: %w", err)
	}
	log.Debug().Str("list", listPath).Int("segments", len(abs)).Msg("concat: list file written")

	err := tool.Run(ctx, []string{
		"-safe", "0",
		"-f", "concat",
		"-i", listPath,
		"-c", "copy",
		"-movflags", "+faststart",
		"-y", output,
	}, opts)
	if err != nil {
		head, tail := listContext(lines)
		log.Error().Str("head", head).Msg("concat list head")
		log.Error().Str("tail", tail).Msg("concat list tail")
		return err
	}
	return nil
}

func listContext(lines []string) (head, tail string) {
	n := len(lines)
	h := lines[:min(5, n)]
	t := lines[max(n-5, 0):]
	return strings.Join(h, " | "), strings.Join(t, " | ")
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
