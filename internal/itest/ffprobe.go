//go:build integration

package itest

import (
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

func probeDurationSeconds(mp4Path string) (float64, error) {
	cmd := exec.Command("ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		mp4Path,
	)
	b, err := cmd.CombinedOutput()
	if err != nil {
		return 0, fmt.Errorf("ffprobe: %w\n%s", err, string(b))
	}
	s := strings.TrimSpace(string(b))
	sec, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", s, err)
	}
	return sec, nil
}

func probeVideoStream(mp4Path string) (pixFmt string, width, height int, err error) {
	cmd := exec.Command("ffprobe",
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=pix_fmt,width,height",
		"-of", "default=noprint_wrappers=1",
		mp4Path,
	)
	b, err := cmd.CombinedOutput()
	if err != nil {
		return "", 0, 0, fmt.Errorf("ffprobe: %w\n%s", err, string(b))
	}
	for _, line := range strings.Split(strings.TrimSpace(string(b)), "\n") {
		k, v, ok := strings.Cut(strings.TrimSpace(line), "=")
		if !ok {
			continue
		}
		switch k {
		case "pix_fmt":
			pixFmt = v
		case "width":
			width, _ = strconv.Atoi(v)
		case "height":
			height, _ = strconv.Atoi(v)
		}
	}
	return pixFmt, width, height, nil
}
