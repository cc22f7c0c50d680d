package render

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/sugiura/kamishibai/internal/ports"
	"github.com/sugiura/kamishibai/internal/types"
)

// MixParams configures the final audio pass. BGMPath empty means no music:
// the programme is stream-copied with faststart only.
type MixParams struct {
	BGMPath       string
	TotalDuration float64
	Volume        float64
	FadeIn        float64
	FadeOut       float64
	AudioCodec    string
	AudioBitrate  string
	SampleRate    int
}

// MixBGM runs the two-stage loudness pass: the looped BGM stem is normalised
// down to -30 LUFS before mixing, then the mix is normalised to the -14 LUFS
// broadcast target with -1.5 dBTP headroom. The video stream is copied.
func MixBGM(ctx context.Context, tool ports.MediaTool, log zerolog.Logger, inputVideo, output string, p MixParams, onTime func(float64)) error {
	opts := ports.RunOpts{ExpectedSeconds: p.TotalDuration, Label: "Render"}

	if p.BGMPath == "" {
		args := []string{"-i", inputVideo, "-c", "copy", "-movflags", "+faststart", "-y", output}
		if err := tool.RunProgress(ctx, args, opts, onTime); err != nil {
			return &types.MixerError{Err: err}
		}
		return nil
	}

	fadeOutStart := p.TotalDuration - p.FadeOut
	if fadeOutStart < 0 {
		fadeOutStart = 0
	}
	sr := p.SampleRate
	log.Info().
		Str("bgm", p.BGMPath).
		Float64("total", p.TotalDuration).
		Float64("fade_out_at", fadeOutStart).
		Float64("gain", p.Volume).
		Msg("bgm mix")

	filter := fmt.Sprintf(
		"[1:a]atrim=0:duration=%.3f,asetpts=PTS-STARTPTS,"+
			"loudnorm=I=-30:LRA=7:TP=-2,"+
			"volume=%.3f,"+
			"afade=t=in:st=0:d=%.3f,afade=t=out:st=%.3f:d=%.3f,"+
			"aformat=sample_fmts=fltp:sample_rates=%d:channel_layouts=stereo[bgm];"+
			"[0:a]aformat=sample_fmts=fltp:sample_rates=%d:channel_layouts=stereo[narr];"+
			"[narr][bgm]amix=inputs=2:duration=first:dropout_transition=2[a];"+
			"[a]loudnorm=I=-14:LRA=7:TP=-1.5,"+
			"aformat=sample_fmts=fltp:sample_rates=%d:channel_layouts=stereo[aout]",
		p.TotalDuration, p.Volume, p.FadeIn, fadeOutStart, p.FadeOut, sr, sr, sr,
	)

	args := []string{
		"-i", inputVideo,
		"-stream_loop", "-1",
		"-i", p.BGMPath,
		"-filter_complex", filter,
		"-map", "0:v",
		"-map", "[aout]",
		"-c:v", "copy",
		"-c:a", p.AudioCodec,
		"-ar", fmt.Sprintf("%d", sr),
		"-ac", "2",
	}
	if p.AudioBitrate != "" {
		args = append(args, "-b:a", p.AudioBitrate)
	}
	args = append(args, "-movflags", "+faststart", "-shortest", "-y", output)

	if err := tool.RunProgress(ctx, args, opts, onTime); err != nil {
		return &types.MixerError{Err: err}
	}
	return nil
}
