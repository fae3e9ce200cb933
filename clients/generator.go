package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/sirupsen/logrus"

	"github.com/blakedemarest/SamplePackAgent/config"
)

const defaultSoundAPIURL = "https://api.elevenlabs.io"

// SoundAPI generates audio clips through the ElevenLabs sound-generation
// endpoint and stores them in the configured output folder.
type SoundAPI struct {
	http    *HTTP
	baseURL string
	apiKey  string
	log     *logrus.Entry
}

// NewSoundAPI returns a client for baseURL, falling back to ELEVEN_API_URL
// and then the public endpoint. An empty key falls back to ELEVEN_API_KEY.
func NewSoundAPI(baseURL, apiKey string) *SoundAPI {
	if baseURL == "" {
		baseURL = os.Getenv("ELEVEN_API_URL")
	}
	if baseURL == "" {
		baseURL = defaultSoundAPIURL
	}
	if apiKey == "" {
		apiKey = os.Getenv("ELEVEN_API_KEY")
	}
	return &SoundAPI{
		http:    NewHTTP(),
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		log:     logrus.WithField("component", "generator"),
	}
}

type soundRequest struct {
	Text            string  `json:"text"`
	VoiceID         string  `json:"voice_id"`
	ModelID         string  `json:"model_id"`
	DurationSeconds float64 `json:"duration_seconds"`
	PromptInfluence float64 `json:"prompt_influence"`
	OutputFormat    string  `json:"output_format"`
}

// Generate requests one clip and writes the returned bytes under the
// config's output folder. The filename encodes the prompt, duration and
// influence so variations of one brief stay distinguishable.
func (s *SoundAPI) Generate(ctx context.Context, prompt string, duration, influence float64, cfg *config.Config) (string, error) {
	payload, err := json.Marshal(soundRequest{
		Text:            prompt,
		VoiceID:         cfg.Voice,
		ModelID:         cfg.Model,
		DurationSeconds: duration,
		PromptInfluence: influence,
		OutputFormat:    cfg.OutputFormat,
	})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/v1/sound-generation", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("xi-api-key", s.apiKey)
	}

	resp, err := s.http.c.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("sound api %s: %s", resp.Status, string(body))
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("sound api read body: %w", err)
	}

	if err := os.MkdirAll(cfg.OutputFolder, 0o755); err != nil {
		return "", fmt.Errorf("create output folder %s: %w", cfg.OutputFolder, err)
	}
	name := fmt.Sprintf("%s_%.2f_%.2f.%s", sanitize(prompt, 50), duration, influence, cfg.OutputFormat)
	outPath := filepath.Join(cfg.OutputFolder, name)
	if err := os.WriteFile(outPath, audio, 0o644); err != nil {
		return "", fmt.Errorf("write audio %s: %w", outPath, err)
	}

	s.log.WithFields(logrus.Fields{
		"file":  outPath,
		"bytes": len(audio),
	}).Debug("raw audio saved")
	return outPath, nil
}

// sanitize keeps letters, digits, '_' and '-', replaces everything else
// with '_', and caps the result at max runes.
func sanitize(s string, max int) string {
	mapped := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '-' {
			return r
		}
		return '_'
	}, s)
	runes := []rune(mapped)
	if len(runes) > max {
		runes = runes[:max]
	}
	return string(runes)
}
