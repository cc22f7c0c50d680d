package types

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrEmptyScript     = errors.New("script contains no sections")
	ErrInvalidDuration = errors.New("narration chunk duration must be positive")
)

// AssetMissingError marks a scene input that is absent on disk. Asset-level
// failures abort the pipeline; partial output is never promoted.
type AssetMissingError struct {
	Path string
}

func (e *AssetMissingError) Error() string { return "asset missing: " + e.Path }

// FontUnavailableError reports that every candidate in the font resolution
// chain failed.
type FontUnavailableError struct {
	Tried []string
}

func (e *FontUnavailableError) Error() string {
	return "no usable font, tried: " + strings.Join(e.Tried, ", ")
}

// ToolFailureError carries the tail of the external tool's stderr so render
// failures stay diagnosable without re-running.
type ToolFailureError struct {
	Command  string
	ExitCode int
	Tail     []string
}

func (e *ToolFailureError) Error() string {
	return fmt.Sprintf("%s failed with exit code %d", e.Command, e.ExitCode)
}

type ToolTimeoutError struct {
	Command string
	Timeout time.Duration
}

func (e *ToolTimeoutError) Error() string {
	return fmt.Sprintf("%s exceeded deadline of %s", e.Command, e.Timeout)
}

type SceneRenderError struct {
	SceneID string
	Err     error
}

func (e *SceneRenderError) Error() string {
	return fmt.Sprintf("scene %s render failed: %v", e.SceneID, e.Err)
}

func (e *SceneRenderError) Unwrap() error { return e.Err }

// ConcatInputError lists the segment files that failed validation before the
// stream-copy join.
type ConcatInputError struct {
	Missing []string
	Empty   []string
}

func (e *ConcatInputError) Error() string {
	return fmt.Sprintf("concat inputs invalid: %d missing, %d empty", len(e.Missing), len(e.Empty))
}

type MixerError struct {
	Err error
}

func (e *MixerError) Error() string { return fmt.Sprintf("bgm mix failed: %v", e.Err) }

func (e *MixerError) Unwrap() error { return e.Err }
