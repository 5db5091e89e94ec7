package synth

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// Client calls an HTTP text-to-speech sidecar that returns MP3 audio and
// per-word timings in one response.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			// Per-call deadlines come from the request context; this is a
			// last-resort ceiling.
			Timeout: 5 * time.Minute,
		},
	}
}

type ttsRequest struct {
	Text     string  `json:"text"`
	Language string  `json:"language"`
	Gender   string  `json:"gender"`
	Speed    float64 `json:"speed"`
}

type ttsResponse struct {
	Audio   string       `json:"audio"` // base64 MP3
	Timings []WordTiming `json:"timings"`
	Error   string       `json:"error"`
}

func (c *Client) Synthesize(ctx context.Context, req Request) (Result, error) {
	body, err := json.Marshal(ttsRequest{
		Text:     req.Text,
		Language: req.Language,
		Gender:   req.Gender,
		Speed:    req.Speed,
	})
	if err != nil {
		return Result{}, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/synthesize", bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Result{}, fmt.Errorf("tts api: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return Result{}, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("tts api status %d: %s", resp.StatusCode, truncate(string(respBody), 200))
	}

	var apiResp ttsResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return Result{}, fmt.Errorf("decode response: %w", err)
	}
	if apiResp.Error != "" {
		return Result{}, fmt.Errorf("tts error: %s", apiResp.Error)
	}

	audio, err := base64.StdEncoding.DecodeString(apiResp.Audio)
	if err != nil {
		return Result{}, fmt.Errorf("decode audio: %w", err)
	}
	if len(audio) == 0 {
		return Result{}, fmt.Errorf("empty audio from service")
	}

	if err := writeArtifact(req.OutPath, audio); err != nil {
		return Result{}, err
	}
	return Result{AudioPath: req.OutPath, Timings: apiResp.Timings}, nil
}

// writeArtifact writes audio to path via a temp file so a failed write never
// leaves a partial artifact behind.
func writeArtifact(path string, audio []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, audio, 0o644); err != nil {
		return fmt.Errorf("write audio: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("finalize audio: %w", err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// Close releases resources.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}
