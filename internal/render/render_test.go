package render

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/sugiura/kamishibai/internal/config"
	"github.com/sugiura/kamishibai/internal/ports"
	"github.com/sugiura/kamishibai/internal/render/overlay"
	"github.com/sugiura/kamishibai/internal/types"
)

// fakeTool records invocations instead of spawning the media binary.
type fakeTool struct {
	calls [][]string
	fail  error
}

func (f *fakeTool) Run(ctx context.Context, args []string, opts ports.RunOpts) error {
	f.calls = append(f.calls, args)
	return f.fail
}

func (f *fakeTool) RunProgress(ctx context.Context, args []string, opts ports.RunOpts, onTime func(float64)) error {
	f.calls = append(f.calls, args)
	if onTime != nil {
		onTime(opts.ExpectedSeconds)
	}
	return f.fail
}

func (f *fakeTool) ProbeDuration(ctx context.Context, path string) (float64, error) {
	return 0, errors.New("not probed in unit tests")
}

func (f *fakeTool) last() []string {
	if len(f.calls) == 0 {
		return nil
	}
	return f.calls[len(f.calls)-1]
}

func argsJoined(args []string) string { return strings.Join(args, " ") }

func TestEncodeArgs_Profile(t *testing.T) {
	cfg := config.Default().Renderer
	got := argsJoined(EncodeArgs(cfg))
	for _, want := range []string{
		"-pix_fmt yuv420p",
		"-profile:v high",
		"-level:v 4.1",
		"-color_primaries bt709",
		"-color_trc bt709",
		"-colorspace bt709",
		"-movflags +faststart",
		"-c:a aac",
		"-ar 48000",
		"-crf 20",
		"-preset ultrafast",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("encode args missing %q: %s", want, got)
		}
	}
}

func TestEncodeArgs_BitrateOverridesNothing(t *testing.T) {
	cfg := config.Default().Renderer
	cfg.Video.Bitrate = "6000k"
	cfg.Video.CRF = 0
	got := argsJoined(EncodeArgs(cfg))
	if !strings.Contains(got, "-b:v 6000k") || strings.Contains(got, "-crf") {
		t.Fatalf("bitrate profile wrong: %s", got)
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestConcat_SingleInputStreamCopies(t *testing.T) {
	tmp := t.TempDir()
	in := filepath.Join(tmp, "a.mp4")
	writeFile(t, in, "x")

	tool := &fakeTool{}
	out := filepath.Join(tmp, "out.mp4")
	if err := Concat(context.Background(), tool, zerolog.Nop(), []string{in}, out, 2); err != nil {
		t.Fatal(err)
	}
	got := argsJoined(tool.last())
	if !strings.Contains(got, "-c copy") || !strings.Contains(got, "-movflags +faststart") {
		t.Fatalf("single concat args: %s", got)
	}
	if strings.Contains(got, "-f concat") {
		t.Fatalf("single input should not use the demuxer: %s", got)
	}
}

func TestConcat_WritesListAndStreamCopies(t *testing.T) {
	tmp := t.TempDir()
	var inputs []string
	for _, n := range []string{"a.mp4", "b.mp4", "c.mp4"} {
		p := filepath.Join(tmp, n)
		writeFile(t, p, "x")
		inputs = append(inputs, p)
	}
	tool := &fakeTool{}
	out := filepath.Join(tmp, "out.mp4")
	if err := Concat(context.Background(), tool, zerolog.Nop(), inputs, out, 9); err != nil {
		t.Fatal(err)
	}

	got := argsJoined(tool.last())
	for _, want := range []string{"-safe 0", "-f concat", "-c copy", "-movflags +faststart"} {
		if !strings.Contains(got, want) {
			t.Fatalf("concat args missing %q: %s", want, got)
		}
	}

	list, err := os.ReadFile(out + ".concat.txt")
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(list)), "\n")
	if lines[0] != "ffconcat version 1.0" {
		t.Fatalf("list header = %q", lines[0])
	}
	if len(lines) != 4 {
		t.Fatalf("list lines = %d, want 4", len(lines))
	}
	// Order must match timeline order.
	for i, n := range []string{"a.mp4", "b.mp4", "c.mp4"} {
		if !strings.Contains(lines[i+1], n) {
			t.Fatalf("line %d = %q, want %s", i+1, lines[i+1], n)
		}
	}
}

func TestConcat_RejectsMissingAndEmpty(t *testing.T) {
	tmp := t.TempDir()
	ok := filepath.Join(tmp, "ok.mp4")
	writeFile(t, ok, "x")
	empty := filepath.Join(tmp, "empty.mp4")
	writeFile(t, empty, "")
	missing := filepath.Join(tmp, "missing.mp4")

	tool := &fakeTool{}
	err := Concat(context.Background(), tool, zerolog.Nop(), []string{ok, empty, missing}, filepath.Join(tmp, "out.mp4"), 1)
	var ce *types.ConcatInputError
	if !errors.As(err, &ce) {
		t.Fatalf("err = %v, want ConcatInputError", err)
	}
	if len(ce.Missing) != 1 || len(ce.Empty) != 1 {
		t.Fatalf("validation lists: %+v", ce)
	}
	if len(tool.calls) != 0 {
		t.Fatalf("tool must not run on invalid inputs")
	}
}

func TestMixBGM_TwoStageLoudnorm(t *testing.T) {
	tool := &fakeTool{}
	err := MixBGM(context.Background(), tool, zerolog.Nop(), "in.mp4", "out.mp4", MixParams{
		BGMPath:       "music.mp3",
		TotalDuration: 9,
		Volume:        0.24,
		FadeIn:        0.5,
		FadeOut:       1.0,
		AudioCodec:    "aac",
		SampleRate:    48000,
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	got := argsJoined(tool.last())
	for _, want := range []string{
		"-stream_loop -1",
		"atrim=0:duration=9.000",
		"loudnorm=I=-30:LRA=7:TP=-2",
		"volume=0.240",
		"afade=t=in:st=0:d=0.500",
		"afade=t=out:st=8.000:d=1.000",
		"amix=inputs=2:duration=first:dropout_transition=2",
		"loudnorm=I=-14:LRA=7:TP=-1.5",
		"channel_layouts=stereo",
		"-map 0:v",
		"-c:v copy",
		"-ac 2",
		"-shortest",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("mix args missing %q:\n%s", want, got)
		}
	}
}

func TestMixBGM_NoBGMPassthrough(t *testing.T) {
	tool := &fakeTool{}
	err := MixBGM(context.Background(), tool, zerolog.Nop(), "in.mp4", "out.mp4", MixParams{
		TotalDuration: 5,
		AudioCodec:    "aac",
		SampleRate:    48000,
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	got := argsJoined(tool.last())
	if !strings.Contains(got, "-c copy") || strings.Contains(got, "amix") {
		t.Fatalf("passthrough args wrong: %s", got)
	}
}

func TestMixBGM_WrapsToolFailure(t *testing.T) {
	tool := &fakeTool{fail: errors.New("boom")}
	err := MixBGM(context.Background(), tool, zerolog.Nop(), "in.mp4", "out.mp4", MixParams{
		TotalDuration: 5, AudioCodec: "aac", SampleRate: 48000,
	}, nil)
	var me *types.MixerError
	if !errors.As(err, &me) {
		t.Fatalf("err = %v, want MixerError", err)
	}
}

func newTestRenderer(t *testing.T, tool ports.MediaTool, overlayType string) *Renderer {
	t.Helper()
	cfg := config.Default().Renderer
	cfg.Overlay.Type = overlayType

	painter, err := overlay.NewPainter(overlay.Options{
		CanvasW:   cfg.Video.Width,
		CanvasH:   cfg.Video.Height,
		FontSize:  cfg.Text.DefaultSize,
		TitleSize: cfg.Text.OpeningTitleSize,
		Dir:       filepath.Join(t.TempDir(), "overlays"),
	})
	if err != nil {
		var fe *types.FontUnavailableError
		if errors.As(err, &fe) {
			t.Skipf("no usable font on this host: %v", err)
		}
		t.Fatal(err)
	}
	r, err := New(cfg, tool, painter, zerolog.Nop(), t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func TestRenderScene_OpeningArgs(t *testing.T) {
	tool := &fakeTool{}
	r := newTestRenderer(t, tool, "static")

	scene := types.Scene{
		ID:            "S001",
		Kind:          types.SceneOpening,
		Duration:      5,
		NarrationPath: "narr.wav",
		Segments:      []types.Segment{{Lines: []string{"Hello"}, Duration: 5}},
	}
	out, err := r.RenderScene(context.Background(), scene, nil)
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(out) != "S001.mp4" {
		t.Fatalf("output path = %s", out)
	}

	got := argsJoined(tool.last())
	for _, want := range []string{
		"-f lavfi",
		"color=c=black:size=1280x720",
		"overlay=x=(W-w)/2:y=(H-h)/2:eval=init",
		"-map [vout]",
		"-map 2:a:0",
		"-shortest",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("opening args missing %q:\n%s", want, got)
		}
	}
}

func TestRenderScene_MissingImage(t *testing.T) {
	tool := &fakeTool{}
	r := newTestRenderer(t, tool, "static")

	scene := types.Scene{
		ID:            "S002",
		Kind:          types.SceneContent,
		Duration:      4,
		BaseImagePath: filepath.Join(t.TempDir(), "nope.png"),
		NarrationPath: "narr.wav",
		Motion:        types.Direction{DX: 1},
		Segments:      []types.Segment{{Lines: []string{"text"}, Duration: 4}},
	}
	_, err := r.RenderScene(context.Background(), scene, nil)
	var se *types.SceneRenderError
	if !errors.As(err, &se) || se.SceneID != "S002" {
		t.Fatalf("err = %v, want SceneRenderError for S002", err)
	}
	var am *types.AssetMissingError
	if !errors.As(err, &am) {
		t.Fatalf("cause = %v, want AssetMissingError", err)
	}
}
