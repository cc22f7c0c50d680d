// Package render orchestrates per-scene encodes: overlays, subtitle files,
// filter graphs, and the external tool invocation.
package render

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"

	_ "image/jpeg"
	_ "image/png"

	"github.com/rs/zerolog"

	"github.com/sugiura/kamishibai/internal/config"
	"github.com/sugiura/kamishibai/internal/domain/subtitles"
	"github.com/sugiura/kamishibai/internal/ports"
	"github.com/sugiura/kamishibai/internal/render/filtergraph"
	"github.com/sugiura/kamishibai/internal/render/overlay"
	"github.com/sugiura/kamishibai/internal/types"
)

type Renderer struct {
	cfg     config.Config
	kb      config.KenBurns
	tool    ports.MediaTool
	painter *overlay.Painter
	log     zerolog.Logger

	sceneDir string
	assDir   string
	typing   bool
}

func New(cfg config.Config, tool ports.MediaTool, painter *overlay.Painter, log zerolog.Logger, runDir string) (*Renderer, error) {
	r := &Renderer{
		cfg:      cfg,
		kb:       cfg.ResolveAnimation(),
		tool:     tool,
		painter:  painter,
		log:      log,
		sceneDir: filepath.Join(runDir, "scenes"),
		assDir:   filepath.Join(runDir, "ass"),
		typing:   cfg.Overlay.Type == "typing",
	}
	for _, dir := range []string{r.sceneDir, r.assDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// RenderScene writes scenes/<id>.mp4. onTime, when non-nil, receives output
// seconds from the tool's progress stream.
func (r *Renderer) RenderScene(ctx context.Context, scene types.Scene, onTime func(float64)) (string, error) {
	var (
		out string
		err error
	)
	if scene.Kind == types.SceneOpening {
		out, err = r.renderOpening(ctx, scene, onTime)
	} else {
		out, err = r.renderContent(ctx, scene, onTime)
	}
	if err != nil {
		return "", &types.SceneRenderError{SceneID: scene.ID, Err: err}
	}
	return out, nil
}

func (r *Renderer) renderOpening(ctx context.Context, scene types.Scene, onTime func(float64)) (string, error) {
	v := r.cfg.Video
	out := filepath.Join(r.sceneDir, scene.ID+".mp4")
	dur := scene.Duration

	lines := scene.Segments[0].Lines
	title, err := r.painter.OpeningTitle(scene.ID, lines)
	if err != nil {
		return "", err
	}

	args := []string{
		"-t", fmt.Sprintf("%.3f", dur),
		"-f", "lavfi",
		"-r", fmt.Sprintf("%d", v.FPS),
		"-i", fmt.Sprintf("color=c=black:size=%dx%d", v.Width, v.Height),
		"-loop", "1",
		"-framerate", fmt.Sprintf("%d", v.FPS),
		"-t", fmt.Sprintf("%.3f", dur),
		"-i", title,
		"-i", scene.NarrationPath,
		"-filter_complex", filtergraph.Opening(v.FPS),
		"-map", "[vout]",
		"-map", "2:a:0",
	}
	args = append(args, EncodeArgs(r.cfg)...)
	args = append(args, "-shortest", "-y", out)

	if err := r.invoke(ctx, args, dur, scene.ID, onTime); err != nil {
		return "", err
	}
	return out, nil
}

func (r *Renderer) renderContent(ctx context.Context, scene types.Scene, onTime func(float64)) (string, error) {
	v := r.cfg.Video
	out := filepath.Join(r.sceneDir, scene.ID+".mp4")
	dur := scene.Duration

	imgW, imgH, err := imageSize(scene.BaseImagePath)
	if err != nil {
		return "", err
	}
	// The scene plan carries the relief window so timeline decisions, not the
	// raw config, govern the motion.
	kb := r.kb
	kb.IntroSeconds = scene.IntroRelief
	pan := filtergraph.SolvePan(kb, scene.Motion, imgW, imgH, v.Width, v.Height)

	var args []string
	if kb.Mode == config.ModeZoomPan {
		// Single-frame input; zoompan expands it to the scene's frame count.
		args = append(args, "-i", scene.BaseImagePath)
	} else {
		args = append(args,
			"-loop", "1",
			"-framerate", fmt.Sprintf("%d", v.FPS),
			"-t", fmt.Sprintf("%.3f", dur),
			"-i", scene.BaseImagePath,
		)
	}

	var overlays []filtergraph.OverlaySpec
	var assSegs []subtitles.Segment
	for _, seg := range scene.Segments {
		if !hasText(seg.Lines) {
			continue
		}
		bandPath, layout, err := r.painter.SegmentBand(scene.ID, seg, r.typing)
		if err != nil {
			return "", err
		}
		args = append(args,
			"-loop", "1",
			"-framerate", fmt.Sprintf("%d", v.FPS),
			"-t", fmt.Sprintf("%.3f", dur),
			"-i", bandPath,
		)
		overlays = append(overlays, filtergraph.OverlaySpec{
			Start: seg.StartOffset,
			End:   seg.StartOffset + seg.Duration,
		})
		if r.typing {
			tops := layout.CanvasLineTops(v.Height)
			s := subtitles.Segment{Start: seg.StartOffset, Duration: seg.Duration}
			for i, line := range seg.Lines {
				s.Lines = append(s.Lines, subtitles.Line{Text: line, CX: v.Width / 2, TopY: tops[i]})
			}
			assSegs = append(assSegs, s)
		}
	}

	args = append(args, "-i", scene.NarrationPath)

	var subs *filtergraph.Subtitles
	if r.typing && len(assSegs) > 0 {
		subs, err = r.writeSubtitles(scene.ID, assSegs)
		if err != nil {
			return "", err
		}
	}

	graph := filtergraph.Content(filtergraph.ContentParams{
		KenBurns: kb,
		Motion:   scene.Motion,
		Pan:      pan,
		Duration: dur,
		OutW:     v.Width,
		OutH:     v.Height,
		FPS:      v.FPS,
		Overlays: overlays,
		Subs:     subs,
	})

	args = append(args,
		"-filter_complex", graph,
		"-map", "[vout]",
		"-map", fmt.Sprintf("%d:a:0", len(overlays)+1),
	)
	args = append(args, EncodeArgs(r.cfg)...)
	args = append(args, "-shortest", "-y", out)

	if err := r.invoke(ctx, args, dur, scene.ID, onTime); err != nil {
		return "", err
	}
	return out, nil
}

func (r *Renderer) writeSubtitles(sceneID string, segs []subtitles.Segment) (*filtergraph.Subtitles, error) {
	font := r.painter.BodyFont()
	style := subtitles.Style{
		FontName: font.PostScriptName(),
		FontSize: r.cfg.Text.DefaultSize,
		Bold:     true,
	}
	var ass string
	if r.cfg.Overlay.SubtitleMode == "per_char" {
		ass = subtitles.BuildPerChar(r.cfg.Video.Width, r.cfg.Video.Height, style, r.cfg.Overlay.TypingSpeed, segs)
	} else {
		ass = subtitles.BuildKaraoke(r.cfg.Video.Width, r.cfg.Video.Height, style, r.cfg.Overlay.TypingSpeed, segs)
	}
	path := filepath.Join(r.assDir, sceneID+".ass")
	if err := os.WriteFile(path, []byte(ass), 0o644); err != nil {
		return nil, err
	}
	forceStyle := ""
	if style.FontName != "" {
		forceStyle = "FontName=" + style.FontName + ",Bold=1"
	}
	return &filtergraph.Subtitles{Path: path, FontsDir: font.Dir(), ForceStyle: forceStyle}, nil
}

func (r *Renderer) invoke(ctx context.Context, args []string, dur float64, label string, onTime func(float64)) error {
	opts := ports.RunOpts{ExpectedSeconds: dur, Label: label}
	if onTime != nil {
		return r.tool.RunProgress(ctx, args, opts, onTime)
	}
	return r.tool.Run(ctx, args, opts)
}

// EncodeArgs is the shared encoder profile: BT.709 tags, high/4.1, faststart.
func EncodeArgs(cfg config.Config) []string {
	v, a := cfg.Video, cfg.Audio
	args := []string{
		"-r", fmt.Sprintf("%d", v.FPS),
		"-c:v", v.Codec,
		"-pix_fmt", "yuv420p",
		"-profile:v", "high",
		"-level:v", "4.1",
		"-color_primaries", "bt709",
		"-color_trc", "bt709",
		"-colorspace", "bt709",
		"-movflags", "+faststart",
		"-c:a", a.Codec,
		"-ar", fmt.Sprintf("%d", a.SampleRate),
	}
	if v.CRF > 0 {
		args = append(args, "-crf", fmt.Sprintf("%d", v.CRF))
	}
	if v.Bitrate != "" {
		args = append(args, "-b:v", v.Bitrate)
	}
	if v.Preset != "" {
		args = append(args, "-preset", v.Preset)
	}
	if a.Bitrate != "" {
		args = append(args, "-b:a", a.Bitrate)
	}
	return args
}

func imageSize(path string) (int, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, &types.AssetMissingError{Path: path}
	}
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, fmt.Errorf("decode %s: %w", path, err)
	}
	return cfg.Width, cfg.Height, nil
}

func hasText(lines []string) bool {
	for _, l := range lines {
		if l != "" {
			return true
		}
	}
	return false
}
