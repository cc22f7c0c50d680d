// Package config loads the renderer configuration from YAML and applies the
// Ken-Burns mode default tables.
package config

import (
	"errors"
	"fmt"
	"image/color"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type File struct {
	Renderer Config  `yaml:"renderer"`
	Logging  Logging `yaml:"logging"`
	Output   Output  `yaml:"output"`
}

type Config struct {
	Video     Video     `yaml:"video"`
	Audio     Audio     `yaml:"audio"`
	Text      Text      `yaml:"text"`
	Overlay   Overlay   `yaml:"overlay"`
	Animation Animation `yaml:"animation"`
	Sections  Sections  `yaml:"sections"`
	BGM       BGM       `yaml:"bgm"`
	Workers   int       `yaml:"workers"`
}

type Video struct {
	Width   int    `yaml:"width"`
	Height  int    `yaml:"height"`
	FPS     int    `yaml:"fps"`
	Codec   string `yaml:"codec"`
	Bitrate string `yaml:"bitrate"`
	CRF     int    `yaml:"crf"`
	Preset  string `yaml:"preset"`
}

type Audio struct {
	Codec      string `yaml:"codec"`
	Bitrate    string `yaml:"bitrate"`
	SampleRate int    `yaml:"sample_rate"`
}

type Text struct {
	FontPath           string `yaml:"font_path"`
	DefaultSize        int    `yaml:"default_size"`
	OpeningTitleSize   int    `yaml:"opening_title_size"`
	ColorDefault       string `yaml:"color_default"`
	ColorBackgroundBox string `yaml:"color_background_box"`
	WrapChars          int    `yaml:"wrap_chars"`
}

type Overlay struct {
	Type        string  `yaml:"type"`
	TypingSpeed float64 `yaml:"typing_speed"`
	// SubtitleMode picks the typing event encoding: karaoke (default) or
	// per_char for renderers without reliable karaoke timing.
	SubtitleMode string `yaml:"subtitle_mode"`
}

// Animation carries the Ken-Burns profile. Zero values are replaced by the
// per-mode defaults in ResolveAnimation.
type Animation struct {
	KenBurnsMode        string   `yaml:"ken_burns_mode"`
	PaddingSeconds      *float64 `yaml:"padding_seconds"`
	KenBurnsZoom        *float64 `yaml:"ken_burns_zoom"`
	KenBurnsOffset      *float64 `yaml:"ken_burns_offset"`
	KenBurnsMargin      *float64 `yaml:"ken_burns_margin"`
	KenBurnsMotionScale *float64 `yaml:"ken_burns_motion_scale"`
	KenBurnsFullTravel  *bool    `yaml:"ken_burns_full_travel"`
	KenBurnsMaxMargin   *float64 `yaml:"ken_burns_max_margin"`
	KenBurnsPanExtent   *float64 `yaml:"ken_burns_pan_extent"`
	KenBurnsIntroRelief *float64 `yaml:"ken_burns_intro_relief"`
	KenBurnsIntroSecs   *float64 `yaml:"ken_burns_intro_seconds"`
}

// KenBurns is the resolved animation profile.
type KenBurns struct {
	Mode           string
	PaddingSeconds float64
	Zoom           float64
	Offset         float64
	Margin         float64
	MotionScale    float64
	FullTravel     bool
	MaxMargin      float64
	PanExtent      float64
	IntroRelief    float64
	IntroSeconds   float64
}

type Sections struct {
	DefaultDurationSeconds float64 `yaml:"default_duration_seconds"`
	MinDurationSeconds     float64 `yaml:"min_duration_seconds"`
	MaxDurationSeconds     float64 `yaml:"max_duration_seconds"`
	MaxChunksPerScene      int     `yaml:"max_chunks_per_scene"`
}

type BGM struct {
	Path    string   `yaml:"path"`
	Volume  *float64 `yaml:"volume"`
	FadeIn  *float64 `yaml:"fade_in"`
	FadeOut *float64 `yaml:"fade_out"`
}

type Logging struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

type Output struct {
	Directory string `yaml:"directory"`
	// CleanTemp removes the per-scene intermediates after a successful run;
	// the default keeps them for inspection.
	CleanTemp bool `yaml:"clean_temp"`
}

const (
	ModePanOnly = "pan_only"
	ModeZoomPan = "zoompan"
)

var commonDefaults = KenBurns{
	PaddingSeconds: 0.35,
	Zoom:           0.0,
	Offset:         0.03,
	Margin:         0.08,
	MotionScale:    1.0,
	FullTravel:     false,
	MaxMargin:      0.5,
	PanExtent:      0.17,
	IntroRelief:    0.2,
	IntroSeconds:   0.8,
}

// Mode tables mirror the production tuning: zoompan favours a slow push-in
// with a slight drift, pan_only trades zoom for a longer lateral travel.
var modeDefaults = map[string]KenBurns{
	ModeZoomPan: {
		PaddingSeconds: 0.35,
		Zoom:           0.04,
		Offset:         0.085,
		Margin:         0.09,
		MotionScale:    1.0,
		MaxMargin:      0.45,
		PanExtent:      1.0,
		IntroRelief:    0.2,
		IntroSeconds:   0.8,
	},
	ModePanOnly: {
		PaddingSeconds: 0.35,
		Zoom:           0.0,
		Offset:         0.4,
		Margin:         0.2,
		MotionScale:    3.0,
		MaxMargin:      1.5,
		PanExtent:      0.17,
		IntroRelief:    1.0,
		IntroSeconds:   0.0,
	},
}

// Load reads the YAML config file and fills defaults.
func Load(path string) (*File, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var f File
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	f.applyDefaults()
	return &f, nil
}

// Default returns a config with every default applied and no file loaded.
func Default() *File {
	var f File
	f.applyDefaults()
	return &f
}

func (f *File) applyDefaults() {
	r := &f.Renderer
	if r.Video.Width == 0 {
		r.Video.Width = 1280
	}
	if r.Video.Height == 0 {
		r.Video.Height = 720
	}
	if r.Video.FPS == 0 {
		r.Video.FPS = 30
	}
	if r.Video.Codec == "" {
		r.Video.Codec = "libx264"
	}
	if r.Video.CRF == 0 && r.Video.Bitrate == "" {
		r.Video.CRF = 20
	}
	if r.Video.Preset == "" {
		r.Video.Preset = "ultrafast"
	}
	if r.Audio.Codec == "" {
		r.Audio.Codec = "aac"
	}
	if r.Audio.SampleRate == 0 {
		r.Audio.SampleRate = 48000
	}
	if r.Text.DefaultSize == 0 {
		r.Text.DefaultSize = 36
	}
	if r.Text.OpeningTitleSize == 0 {
		r.Text.OpeningTitleSize = 75
	}
	if r.Text.ColorDefault == "" {
		r.Text.ColorDefault = "#FFFFFF"
	}
	if r.Text.ColorBackgroundBox == "" {
		r.Text.ColorBackgroundBox = "#000000F0"
	}
	if r.Text.WrapChars == 0 {
		r.Text.WrapChars = 24
	}
	if r.Overlay.Type == "" {
		r.Overlay.Type = "static"
	}
	if r.Overlay.TypingSpeed == 0 {
		r.Overlay.TypingSpeed = 1.0
	}
	if r.Overlay.SubtitleMode == "" {
		r.Overlay.SubtitleMode = "karaoke"
	}
	if r.Sections.DefaultDurationSeconds == 0 {
		r.Sections.DefaultDurationSeconds = 60
	}
	if r.Sections.MinDurationSeconds == 0 {
		r.Sections.MinDurationSeconds = 5
	}
	if r.Sections.MaxDurationSeconds == 0 {
		r.Sections.MaxDurationSeconds = 120
	}
	if r.Sections.MaxChunksPerScene == 0 {
		r.Sections.MaxChunksPerScene = 10
	}
	if f.Logging.Level == "" {
		f.Logging.Level = "info"
	}
	if f.Output.Directory == "" {
		f.Output.Directory = "output"
	}
}

// ResolveAnimation merges the configured animation values over the common and
// per-mode default tables.
func (r Config) ResolveAnimation() KenBurns {
	mode := strings.ToLower(strings.TrimSpace(r.Animation.KenBurnsMode))
	kb, ok := modeDefaults[mode]
	if !ok {
		mode = ModePanOnly
		kb = modeDefaults[ModePanOnly]
	}
	kb.Mode = mode

	a := r.Animation
	if a.PaddingSeconds != nil {
		kb.PaddingSeconds = *a.PaddingSeconds
	} else {
		kb.PaddingSeconds = commonDefaults.PaddingSeconds
	}
	if a.KenBurnsZoom != nil {
		kb.Zoom = *a.KenBurnsZoom
	}
	if a.KenBurnsOffset != nil {
		kb.Offset = *a.KenBurnsOffset
	}
	if a.KenBurnsMargin != nil {
		kb.Margin = *a.KenBurnsMargin
	}
	if a.KenBurnsMotionScale != nil {
		kb.MotionScale = *a.KenBurnsMotionScale
	}
	if a.KenBurnsFullTravel != nil {
		kb.FullTravel = *a.KenBurnsFullTravel
	}
	if a.KenBurnsMaxMargin != nil {
		kb.MaxMargin = *a.KenBurnsMaxMargin
	}
	if a.KenBurnsPanExtent != nil {
		kb.PanExtent = *a.KenBurnsPanExtent
	}
	if a.KenBurnsIntroRelief != nil {
		kb.IntroRelief = *a.KenBurnsIntroRelief
	}
	if a.KenBurnsIntroSecs != nil {
		kb.IntroSeconds = *a.KenBurnsIntroSecs
	}
	// full_travel saturates the available slack, so a partial extent would be
	// contradictory.
	if kb.FullTravel {
		kb.PanExtent = 1.0
	}
	return kb
}

// ResolveBGM applies the mixer defaults.
func (r Config) ResolveBGM() (volume, fadeIn, fadeOut float64) {
	volume, fadeIn, fadeOut = 0.24, 0.5, 1.0
	if r.BGM.Volume != nil && *r.BGM.Volume >= 0 {
		volume = *r.BGM.Volume
	}
	if r.BGM.FadeIn != nil && *r.BGM.FadeIn >= 0 {
		fadeIn = *r.BGM.FadeIn
	}
	if r.BGM.FadeOut != nil && *r.BGM.FadeOut >= 0 {
		fadeOut = *r.BGM.FadeOut
	}
	return volume, fadeIn, fadeOut
}

func (f *File) Validate() error {
	r := f.Renderer
	if r.Video.Width <= 0 || r.Video.Height <= 0 {
		return errors.New("video dimensions must be positive")
	}
	if r.Video.Width%2 != 0 || r.Video.Height%2 != 0 {
		return errors.New("video dimensions must be even for yuv420p")
	}
	if r.Video.FPS <= 0 {
		return errors.New("fps must be positive")
	}
	if r.Audio.SampleRate <= 0 {
		return errors.New("audio sample rate must be positive")
	}
	if r.Overlay.Type != "static" && r.Overlay.Type != "typing" {
		return fmt.Errorf("overlay type must be static or typing, got %q", r.Overlay.Type)
	}
	if r.Overlay.TypingSpeed <= 0 {
		return errors.New("overlay typing_speed must be positive")
	}
	if r.Overlay.SubtitleMode != "karaoke" && r.Overlay.SubtitleMode != "per_char" {
		return fmt.Errorf("overlay subtitle_mode must be karaoke or per_char, got %q", r.Overlay.SubtitleMode)
	}
	if r.Sections.MinDurationSeconds > r.Sections.MaxDurationSeconds {
		return errors.New("sections min duration must be <= max duration")
	}
	if _, err := ParseRGBA(r.Text.ColorDefault); err != nil {
		return fmt.Errorf("text color_default: %w", err)
	}
	if _, err := ParseRGBA(r.Text.ColorBackgroundBox); err != nil {
		return fmt.Errorf("text color_background_box: %w", err)
	}
	return nil
}

// ParseRGBA accepts #RRGGBB or #RRGGBBAA. Six-digit values are opaque.
func ParseRGBA(value string) (color.NRGBA, error) {
	v := strings.TrimPrefix(strings.TrimSpace(value), "#")
	var r, g, b, a uint8
	switch len(v) {
	case 6:
		if _, err := fmt.Sscanf(v, "%02x%02x%02x", &r, &g, &b); err != nil {
			return color.NRGBA{}, fmt.Errorf("invalid hex colour %q", value)
		}
		a = 0xFF
	case 8:
		if _, err := fmt.Sscanf(v, "%02x%02x%02x%02x", &r, &g, &b, &a); err != nil {
			return color.NRGBA{}, fmt.Errorf("invalid hex colour %q", value)
		}
	default:
		return color.NRGBA{}, fmt.Errorf("invalid hex colour %q", value)
	}
	return color.NRGBA{R: r, G: g, B: b, A: a}, nil
}
