package ports

import "context"

// MediaTool is the only gateway to the external media binary. Every filter
// graph and encode argument list in the pipeline passes through it.
type MediaTool interface {
	// Run executes quietly; on failure the error carries the stderr tail.
	Run(ctx context.Context, args []string, opts RunOpts) error
	// RunProgress additionally streams the tool's progress feed into onTime
	// (seconds of output written so far).
	RunProgress(ctx context.Context, args []string, opts RunOpts, onTime func(float64)) error
	// ProbeDuration returns a container duration in seconds.
	ProbeDuration(ctx context.Context, path string) (float64, error)
}

// RunOpts sizes the subprocess deadline: the wall-clock budget is
// ExpectedSeconds scaled by the adapter's timeout factor.
type RunOpts struct {
	ExpectedSeconds float64
	Label           string
}

// SpeechSynth turns narration text into a WAV file on disk.
type SpeechSynth interface {
	Synthesize(ctx context.Context, text, outWav string) error
}

// ImageProvider fetches or generates a still image for a scene.
type ImageProvider interface {
	Fetch(ctx context.Context, prompt string, width, height int, outPath string) error
}
