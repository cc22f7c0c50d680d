// Package timeline turns a parsed script into time-budgeted scene plans and,
// once narration durations are known, lays out caption segments.
package timeline

import (
	"fmt"
	"math"

	"github.com/sugiura/kamishibai/internal/config"
	"github.com/sugiura/kamishibai/internal/domain/script"
	"github.com/sugiura/kamishibai/internal/types"
)

const wordsPerMinute = 150

// Build groups script sections into scenes. Durations at this stage are
// word-count estimates; they steer bundling only and are replaced by measured
// narration durations in Layout.
func Build(doc script.Document, cfg config.Config) (types.Timeline, error) {
	if len(doc.Sections) == 0 {
		return types.Timeline{}, types.ErrEmptyScript
	}

	kb := cfg.ResolveAnimation()
	sec := cfg.Sections

	var tl types.Timeline
	opening := doc.Sections[0]
	tl.Scenes = append(tl.Scenes, types.Scene{
		ID:     "S001",
		Kind:   types.SceneOpening,
		Chunks: []types.Chunk{buildChunk(opening)},
	})

	sceneNo := 2
	var group []types.Chunk
	var groupDur float64

	flush := func() {
		if len(group) == 0 {
			return
		}
		tl.Scenes = append(tl.Scenes, newContentScene(sceneNo, group))
		sceneNo++
		group = nil
		groupDur = 0
	}

	for _, section := range doc.Sections[1:] {
		chunk := buildChunk(section)
		est := estimateDuration(section, kb, sec)

		if len(group) == 0 {
			group = append(group, chunk)
			groupDur = est
			continue
		}
		if sec.MaxChunksPerScene > 0 && len(group) >= sec.MaxChunksPerScene {
			flush()
			group = append(group, chunk)
			groupDur = est
			continue
		}

		proposed := groupDur + est
		// Close the scene once it carries enough narration: past the default
		// target, or when the next chunk would overflow the hard maximum.
		shouldClose := groupDur >= sec.MinDurationSeconds &&
			(groupDur >= sec.DefaultDurationSeconds || proposed > sec.MaxDurationSeconds)
		if shouldClose {
			flush()
			group = append(group, chunk)
			groupDur = est
		} else {
			group = append(group, chunk)
			groupDur = proposed
		}
	}
	flush()

	return tl, nil
}

func buildChunk(section script.Section) types.Chunk {
	return types.Chunk{
		SectionIndex: section.Index,
		Lines:        append([]string(nil), section.Lines...),
		Text:         section.RawText,
	}
}

func newContentScene(number int, chunks []types.Chunk) types.Scene {
	prompt := ""
	if len(chunks) > 0 && len(chunks[0].Lines) > 0 {
		prompt = chunks[0].Lines[0]
	}
	return types.Scene{
		ID:          fmt.Sprintf("S%03d", number),
		Kind:        types.SceneContent,
		Chunks:      append([]types.Chunk(nil), chunks...),
		ImagePrompt: prompt,
	}
}

func estimateDuration(section script.Section, kb config.KenBurns, sec config.Sections) float64 {
	words := section.WordCount()
	if words == 0 {
		return sec.DefaultDurationSeconds
	}
	voice := float64(words) / (wordsPerMinute / 60.0)
	voice += kb.PaddingSeconds * float64(len(section.Lines)-1)
	if voice < 1.0 {
		voice = 1.0
	}
	if sec.MaxDurationSeconds > 0 && voice > sec.MaxDurationSeconds {
		voice = sec.MaxDurationSeconds
	}
	return voice
}

// Layout finalises the plan once the asset stage has measured narration
// chunks. Segment durations tile the scene exactly: inter-chunk padding is
// attached to the segment before each gap, so Σ segments == scene duration ==
// Σ chunks + padding·(n-1).
func Layout(tl *types.Timeline, cfg config.Config) error {
	kb := cfg.ResolveAnimation()
	wrap := cfg.Text.WrapChars

	var clock float64
	for si := range tl.Scenes {
		scene := &tl.Scenes[si]
		for _, c := range scene.Chunks {
			if c.Duration <= 0 {
				return fmt.Errorf("scene %s chunk %d: %w", scene.ID, c.SectionIndex, types.ErrInvalidDuration)
			}
		}

		n := len(scene.Chunks)
		var total float64
		for _, c := range scene.Chunks {
			total += c.Duration
		}
		total += kb.PaddingSeconds * float64(n-1)
		scene.Duration = roundToFrame(total, cfg.Video.FPS)
		scene.StartTime = clock
		clock += scene.Duration

		scene.Motion = MotionFor(scene.ID)
		scene.IntroRelief = kb.IntroSeconds
		scene.Segments = layoutSegments(scene, kb, wrap)
	}
	return nil
}

func layoutSegments(scene *types.Scene, kb config.KenBurns, wrap int) []types.Segment {
	n := len(scene.Chunks)
	if scene.Kind == types.SceneOpening {
		lines := wrapRows(scene.Chunks[0].Lines, wrap)
		return []types.Segment{{
			Index:      0,
			Lines:      lines,
			Duration:   scene.Duration,
			TypingText: scene.Chunks[0].Text,
		}}
	}

	segs := make([]types.Segment, 0, n)
	var offset float64
	for i, c := range scene.Chunks {
		dur := c.Duration
		if i < n-1 {
			dur += kb.PaddingSeconds
		} else {
			// Last segment absorbs any rounding from frame alignment so the
			// tiling stays gapless.
			dur = scene.Duration - offset
		}
		segs = append(segs, types.Segment{
			Index:       i,
			Lines:       wrapRows(c.Lines, wrap),
			StartOffset: offset,
			Duration:    dur,
			TypingText:  c.Text,
		})
		offset += dur
	}
	return segs
}

// wrapRows re-wraps script lines into display rows of at most width runes.
func wrapRows(lines []string, width int) []string {
	if width <= 0 {
		return append([]string(nil), lines...)
	}
	var out []string
	for _, line := range lines {
		runes := []rune(line)
		for len(runes) > width {
			out = append(out, string(runes[:width]))
			runes = runes[width:]
		}
		if len(runes) > 0 {
			out = append(out, string(runes))
		}
	}
	return out
}

// roundToFrame aligns a duration to the frame grid, matching the segment
// encoder's -t quantisation.
func roundToFrame(seconds float64, fps int) float64 {
	if fps <= 0 {
		return seconds
	}
	return math.Round(seconds*float64(fps)) / float64(fps)
}
