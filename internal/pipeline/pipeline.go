// Package pipeline drives a full run: script → timeline → assets → parallel
// scene renders → stream-copy concat → BGM mix → atomic finalise.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"golang.org/x/sync/errgroup"

	"github.com/sugiura/kamishibai/internal/config"
	"github.com/sugiura/kamishibai/internal/domain/script"
	"github.com/sugiura/kamishibai/internal/domain/timeline"
	ffmpegadapter "github.com/sugiura/kamishibai/internal/ports/adapters/ffmpeg"
	"github.com/sugiura/kamishibai/internal/ports/adapters/pollinations"
	"github.com/sugiura/kamishibai/internal/ports/adapters/voicevox"
	"github.com/sugiura/kamishibai/internal/progress"
	"github.com/sugiura/kamishibai/internal/render"
	"github.com/sugiura/kamishibai/internal/render/overlay"
	"github.com/sugiura/kamishibai/internal/types"
)

type Options struct {
	ScriptPath string
	OutDir     string
	BGMPath    string
	Workers    int
	CleanTemp  bool

	FFmpegPath  string
	FFprobePath string

	VoicevoxBaseURL      string
	VoicevoxSpeakerID    int
	VoicevoxAllowedHosts []string
	ImageBaseURL         string

	Log zerolog.Logger
}

func (o Options) Validate() error {
	if o.ScriptPath == "" {
		return errors.New("script path is empty")
	}
	if _, err := os.Stat(o.ScriptPath); err != nil {
		return fmt.Errorf("stat script: %w", err)
	}
	return voicevox.ValidateBaseURL(o.VoicevoxBaseURL, o.VoicevoxAllowedHosts)
}

// Run executes one pipeline invocation. The run directory is owned
// exclusively by this call; on fatal error it is preserved for inspection and
// the final MP4 is absent.
func Run(ctx context.Context, cfg *config.File, opts Options) error {
	log := opts.Log

	doc, err := script.ParseFile(opts.ScriptPath)
	if err != nil {
		return err
	}

	tl, err := timeline.Build(doc, cfg.Renderer)
	if err != nil {
		return err
	}
	log.Info().Int("scenes", len(tl.Scenes)).Msg("timeline built")

	outDir := opts.OutDir
	if outDir == "" {
		outDir = cfg.Output.Directory
	}
	runID := buildRunID(opts.ScriptPath, time.Now().UTC())
	runDir := filepath.Join(outDir, runID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return err
	}
	log.Info().Str("run_dir", runDir).Msg("workspace prepared")

	tool := ffmpegadapter.New(opts.FFmpegPath, opts.FFprobePath, log)
	synth := voicevox.New(opts.VoicevoxBaseURL, opts.VoicevoxSpeakerID)
	images := pollinations.New(opts.ImageBaseURL)

	if err := synth.Ping(ctx); err != nil {
		return err
	}

	assets := assetStage{
		tool:   tool,
		synth:  synth,
		images: images,
		cfg:    cfg.Renderer,
		runDir: runDir,
		log:    log,
	}
	if err := assets.Fill(ctx, &tl); err != nil {
		return err
	}

	if err := timeline.Layout(&tl, cfg.Renderer); err != nil {
		return err
	}
	total := tl.TotalDuration()
	log.Info().Float64("total_seconds", total).Msg("timeline finalised")

	textColor, err := config.ParseRGBA(cfg.Renderer.Text.ColorDefault)
	if err != nil {
		return err
	}
	bandColor, err := config.ParseRGBA(cfg.Renderer.Text.ColorBackgroundBox)
	if err != nil {
		return err
	}
	painter, err := overlay.NewPainter(overlay.Options{
		CanvasW:   cfg.Renderer.Video.Width,
		CanvasH:   cfg.Renderer.Video.Height,
		FontSize:  cfg.Renderer.Text.DefaultSize,
		TitleSize: cfg.Renderer.Text.OpeningTitleSize,
		TextColor: textColor,
		BandColor: bandColor,
		FontPath:  cfg.Renderer.Text.FontPath,
		Dir:       filepath.Join(runDir, "overlays"),
	})
	if err != nil {
		return err
	}

	renderer, err := render.New(cfg.Renderer, tool, painter, log, runDir)
	if err != nil {
		return err
	}

	scenePaths, err := renderScenes(ctx, renderer, tl, workerCount(opts.Workers, cfg.Renderer.Workers), log)
	if err != nil {
		cleanPartialScenes(runDir, tl, scenePaths)
		return err
	}

	concatPath := filepath.Join(runDir, "temp_concat.mp4")
	if err := render.Concat(ctx, tool, log, scenePaths, concatPath, total); err != nil {
		return err
	}

	bgmPath := opts.BGMPath
	if bgmPath == "" {
		bgmPath = cfg.Renderer.BGM.Path
	}
	volume, fadeIn, fadeOut := cfg.Renderer.ResolveBGM()

	finalTmp := filepath.Join(runDir, ".final.tmp.mp4")
	finalPath := filepath.Join(runDir, runID+".mp4")
	bar := progress.NewBar(total, "Render")
	err = render.MixBGM(ctx, tool, log, concatPath, finalTmp, render.MixParams{
		BGMPath:       bgmPath,
		TotalDuration: total,
		Volume:        volume,
		FadeIn:        fadeIn,
		FadeOut:       fadeOut,
		AudioCodec:    cfg.Renderer.Audio.Codec,
		AudioBitrate:  cfg.Renderer.Audio.Bitrate,
		SampleRate:    cfg.Renderer.Audio.SampleRate,
	}, bar.Update)
	bar.Finish()
	if err != nil {
		os.Remove(finalTmp)
		return err
	}
	// The final name appears only once the mix is fully written.
	if err := os.Rename(finalTmp, finalPath); err != nil {
		return err
	}

	if err := writeManifest(runDir, runID, opts.ScriptPath, finalPath, tl, scenePaths); err != nil {
		return err
	}
	if opts.CleanTemp {
		cleanTemp(runDir, log)
	}
	log.Info().Str("output", finalPath).Msg("render complete")
	return nil
}

// renderScenes fans out scene encodes up to the worker limit. Results are
// published by index so concat always sees timeline order regardless of
// completion order.
func renderScenes(ctx context.Context, renderer *render.Renderer, tl types.Timeline, workers int, log zerolog.Logger) ([]string, error) {
	n := len(tl.Scenes)
	results := make([]string, n)

	durations := make([]float64, n)
	var sceneTotal float64
	for i, s := range tl.Scenes {
		durations[i] = s.Duration
		sceneTotal += s.Duration
	}
	bar := progress.NewBar(sceneTotal, "Scenes")
	agg := progress.NewAggregator(bar, durations)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range tl.Scenes {
		i := i
		scene := tl.Scenes[i]
		g.Go(func() error {
			out, err := renderer.RenderScene(ctx, scene, func(t float64) { agg.Report(i, t) })
			if err != nil {
				return err
			}
			agg.Done(i)
			results[i] = out
			log.Debug().Str("scene", scene.ID).Str("file", out).Msg("scene rendered")
			return nil
		})
	}
	err := g.Wait()
	bar.Finish()
	return results, err
}

// cleanPartialScenes removes the MP4s of scenes that never completed; a
// killed subprocess can leave a truncated file behind.
func cleanPartialScenes(runDir string, tl types.Timeline, results []string) {
	for i, s := range tl.Scenes {
		if results[i] == "" {
			os.Remove(filepath.Join(runDir, "scenes", s.ID+".mp4"))
		}
	}
}

func cleanTemp(runDir string, log zerolog.Logger) {
	for _, sub := range []string{"scenes", "overlays", "ass", "narration", "images"} {
		os.RemoveAll(filepath.Join(runDir, sub))
	}
	os.Remove(filepath.Join(runDir, "temp_concat.mp4"))
	os.Remove(filepath.Join(runDir, "temp_concat.mp4.concat.txt"))
	log.Debug().Str("run_dir", runDir).Msg("intermediate artefacts removed")
}

func writeManifest(runDir, runID, scriptPath, finalPath string, tl types.Timeline, scenePaths []string) error {
	m := types.Manifest{
		RunID:  runID,
		Script: scriptPath,
		Output: filepath.Base(finalPath),
	}
	for i, s := range tl.Scenes {
		ms := types.ManifestScene{
			ID:          s.ID,
			Kind:        string(s.Kind),
			StartSec:    s.StartTime,
			DurationSec: s.Duration,
			File:        filepath.ToSlash(filepath.Join("scenes", filepath.Base(scenePaths[i]))),
			Narration:   filepath.ToSlash(relOr(runDir, s.NarrationPath)),
		}
		if s.BaseImagePath != "" {
			ms.Image = filepath.ToSlash(relOr(runDir, s.BaseImagePath))
		}
		if ass := filepath.Join(runDir, "ass", s.ID+".ass"); fileExists(ass) {
			ms.Subtitles = filepath.ToSlash(filepath.Join("ass", s.ID+".ass"))
		}
		m.Scenes = append(m.Scenes, ms)
	}
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	return os.WriteFile(filepath.Join(runDir, "manifest.json"), b, 0o644)
}

func fileExists(path string) bool {
	st, err := os.Stat(path)
	return err == nil && !st.IsDir()
}

func relOr(base, path string) string {
	if rel, err := filepath.Rel(base, path); err == nil && !strings.HasPrefix(rel, "..") {
		return rel
	}
	return path
}

// workerCount resolves render parallelism: flag, then config, then the
// physical core count.
func workerCount(flagWorkers, cfgWorkers int) int {
	if flagWorkers > 0 {
		return flagWorkers
	}
	if cfgWorkers > 0 {
		return cfgWorkers
	}
	if n, err := cpu.Counts(false); err == nil && n > 0 {
		return n
	}
	return runtime.NumCPU()
}

func buildRunID(scriptPath string, now time.Time) string {
	name := strings.TrimSuffix(filepath.Base(scriptPath), filepath.Ext(scriptPath))
	name = normalizePathSegment(name)
	if name == "" {
		name = "script"
	}
	ts := now.UTC().Format("20060102-150405Z")
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:6]
	return fmt.Sprintf("%s-%s-%s", name, ts, suffix)
}

func normalizePathSegment(s string) string {
	var b strings.Builder
	prevDash := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			b.WriteRune(r)
			prevDash = false
		default:
			if !prevDash {
				b.WriteByte('-')
				prevDash = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}
