package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sugiura/kamishibai/internal/config"
	"github.com/sugiura/kamishibai/internal/logging"
	"github.com/sugiura/kamishibai/internal/pipeline"
)

func run(cmd *cobra.Command, scriptArg string) error {
	configPath, _ := cmd.Flags().GetString("config")
	outDir, _ := cmd.Flags().GetString("out")
	bgm, _ := cmd.Flags().GetString("bgm")
	workers, _ := cmd.Flags().GetInt("workers")
	clean, _ := cmd.Flags().GetBool("clean")
	typing, _ := cmd.Flags().GetBool("typing")

	var cfg *config.File
	if _, err := os.Stat(configPath); err == nil {
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
	} else {
		cfg = config.Default()
	}
	if typing {
		cfg.Renderer.Overlay.Type = "typing"
	}
	if cfg.Output.CleanTemp {
		clean = true
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, closer, err := logging.Setup(cfg.Logging.Level, cfg.Logging.File)
	if err != nil {
		return err
	}
	if closer != nil {
		defer closer.Close()
	}

	absScript, err := filepath.Abs(scriptArg)
	if err != nil {
		return err
	}

	// Ctrl-C propagates to every live subprocess worker.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := pipeline.Options{
		ScriptPath: absScript,
		OutDir:     outDir,
		BGMPath:    bgm,
		Workers:    workers,
		CleanTemp:  clean,

		FFmpegPath:  getenvDefault("FFMPEG_PATH", "ffmpeg"),
		FFprobePath: getenvDefault("FFPROBE_PATH", "ffprobe"),

		VoicevoxBaseURL:      os.Getenv("VOICEVOX_BASE_URL"),
		VoicevoxSpeakerID:    getenvInt("VOICEVOX_SPEAKER_ID", 3),
		VoicevoxAllowedHosts: splitList(os.Getenv("VOICEVOX_ALLOWED_HOSTS")),
		ImageBaseURL:         os.Getenv("POLLINATIONS_BASE_URL"),

		Log: log,
	}
	if err := opts.Validate(); err != nil {
		return fmt.Errorf("options: %w", err)
	}
	return pipeline.Run(ctx, cfg, opts)
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvInt(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
