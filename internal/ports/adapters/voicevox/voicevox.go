// Package voicevox synthesises narration through a local VOICEVOX-compatible
// engine over HTTP: audio_query builds the phrase model, synthesis renders it
// to WAV.
package voicevox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/sugiura/kamishibai/internal/ports"
)

type Adapter struct {
	baseURL   string
	speakerID int
	client    *http.Client
}

func New(baseURL string, speakerID int) *Adapter {
	if speakerID <= 0 {
		speakerID = 3
	}
	return &Adapter{
		baseURL:   normalizeBaseURL(baseURL),
		speakerID: speakerID,
		client:    &http.Client{Timeout: 2 * time.Minute},
	}
}

var _ ports.SpeechSynth = (*Adapter)(nil)

// Ping checks the engine is reachable before the pipeline commits to a run.
func (a *Adapter) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/version", nil)
	if err != nil {
		return err
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("voicevox engine not reachable at %s: %w", a.baseURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("voicevox version endpoint returned %s", resp.Status)
	}
	return nil
}

func (a *Adapter) Synthesize(ctx context.Context, text, outWav string) error {
	query, err := a.audioQuery(ctx, text)
	if err != nil {
		return err
	}
	wav, err := a.synthesis(ctx, query)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(outWav), 0o755); err != nil {
		return err
	}
	// Write-then-rename so concurrent workers never observe a short file.
	tmp := outWav + ".tmp"
	if err := os.WriteFile(tmp, wav, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, outWav)
}

func (a *Adapter) audioQuery(ctx context.Context, text string) (map[string]any, error) {
	q := url.Values{}
	q.Set("text", text)
	q.Set("speaker", strconv.Itoa(a.speakerID))
	u := a.baseURL + "/audio_query?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("audio_query: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("audio_query returned %s: %s", resp.Status, string(b))
	}

	var query map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&query); err != nil {
		return nil, fmt.Errorf("decode audio_query: %w", err)
	}
	// Trim engine-default silence so chunk durations track the spoken text.
	query["prePhonemeLength"] = 0.06
	query["postPhonemeLength"] = 0.06
	return query, nil
}

func (a *Adapter) synthesis(ctx context.Context, query map[string]any) ([]byte, error) {
	body, err := json.Marshal(query)
	if err != nil {
		return nil, fmt.Errorf("marshal audio_query: %w", err)
	}
	u := a.baseURL + "/synthesis?speaker=" + strconv.Itoa(a.speakerID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("synthesis: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("synthesis returned %s: %s", resp.Status, string(b))
	}
	return io.ReadAll(resp.Body)
}
