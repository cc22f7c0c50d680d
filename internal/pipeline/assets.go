package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/sugiura/kamishibai/internal/config"
	"github.com/sugiura/kamishibai/internal/domain/audio"
	"github.com/sugiura/kamishibai/internal/ports"
	"github.com/sugiura/kamishibai/internal/types"
)

// assetStage fills the timeline's narration and image paths before layout.
// Narration runs serially (the local TTS engine is single-threaded); image
// fetches fan out.
type assetStage struct {
	tool   ports.MediaTool
	synth  ports.SpeechSynth
	images ports.ImageProvider
	cfg    config.Config
	runDir string
	log    zerolog.Logger
}

const imageFetchParallelism = 4

func (a assetStage) Fill(ctx context.Context, tl *types.Timeline) error {
	narrDir := filepath.Join(a.runDir, "narration")
	imgDir := filepath.Join(a.runDir, "images")
	for _, dir := range []string{narrDir, imgDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	for si := range tl.Scenes {
		scene := &tl.Scenes[si]
		for ci := range scene.Chunks {
			chunk := &scene.Chunks[ci]
			wav := filepath.Join(narrDir, fmt.Sprintf("%s_c%02d.wav", scene.ID, ci))
			if err := a.synth.Synthesize(ctx, chunk.Text, wav); err != nil {
				return fmt.Errorf("synthesize %s chunk %d: %w", scene.ID, ci, err)
			}
			dur, err := audio.WavDuration(wav)
			if err != nil {
				// Some engines hand back non-RIFF containers; the tool's probe
				// still reads those.
				dur, err = a.tool.ProbeDuration(ctx, wav)
				if err != nil {
					return fmt.Errorf("probe %s: %w", wav, err)
				}
			}
			chunk.AudioPath = wav
			chunk.Duration = dur
		}
		if err := a.joinNarration(ctx, scene, narrDir); err != nil {
			return err
		}
		a.log.Debug().Str("scene", scene.ID).Int("chunks", len(scene.Chunks)).Msg("narration ready")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(imageFetchParallelism)
	for si := range tl.Scenes {
		scene := &tl.Scenes[si]
		if scene.Kind != types.SceneContent || scene.BaseImagePath != "" {
			continue
		}
		g.Go(func() error {
			path := filepath.Join(imgDir, scene.ID+".png")
			prompt := scene.ImagePrompt
			if strings.TrimSpace(prompt) == "" {
				prompt = "abstract background"
			}
			if err := a.images.Fetch(gctx, prompt, a.cfg.Video.Width, a.cfg.Video.Height, path); err != nil {
				return fmt.Errorf("image for %s: %w", scene.ID, err)
			}
			scene.BaseImagePath = path
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	// A content scene without a readable base image aborts the run before any
	// encode starts.
	for _, scene := range tl.Scenes {
		if scene.Kind != types.SceneContent {
			continue
		}
		if st, err := os.Stat(scene.BaseImagePath); err != nil || st.Size() == 0 {
			return &types.AssetMissingError{Path: scene.BaseImagePath}
		}
	}
	return nil
}

// joinNarration splices a scene's chunk WAVs into one track, inserting the
// configured padding between chunks. Single-chunk scenes reuse the chunk file.
func (a assetStage) joinNarration(ctx context.Context, scene *types.Scene, narrDir string) error {
	kb := a.cfg.ResolveAnimation()
	if len(scene.Chunks) == 1 {
		scene.NarrationPath = scene.Chunks[0].AudioPath
		return nil
	}

	out := filepath.Join(narrDir, scene.ID+".wav")
	var args []string
	for _, c := range scene.Chunks {
		args = append(args, "-i", c.AudioPath)
	}

	var filter strings.Builder
	var labels []string
	n := len(scene.Chunks)
	for i := range scene.Chunks {
		if i < n-1 && kb.PaddingSeconds > 0 {
			fmt.Fprintf(&filter, "[%d:a]apad=pad_dur=%.3f[p%d];", i, kb.PaddingSeconds, i)
			labels = append(labels, fmt.Sprintf("[p%d]", i))
		} else {
			labels = append(labels, fmt.Sprintf("[%d:a]", i))
		}
	}
	fmt.Fprintf(&filter, "%sconcat=n=%d:v=0:a=1[aout]", strings.Join(labels, ""), n)

	args = append(args,
		"-filter_complex", filter.String(),
		"-map", "[aout]",
		"-c:a", "pcm_s16le",
		"-y", out,
	)

	var expected float64
	for _, c := range scene.Chunks {
		expected += c.Duration
	}
	if err := a.tool.Run(ctx, args, ports.RunOpts{ExpectedSeconds: expected, Label: scene.ID + " narration"}); err != nil {
		return fmt.Errorf("join narration %s: %w", scene.ID, err)
	}
	scene.NarrationPath = out
	return nil
}
