package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/blakedemarest/SamplePackAgent/config"
	"github.com/blakedemarest/SamplePackAgent/orchestrator"
)

const defaultOllamaHost = "http://localhost:11434"

const decomposeSystem = "You are a sound design assistant. Respond with a single JSON object and nothing else."

// Ollama talks to a local Ollama server for brief decomposition and prompt
// feedback.
type Ollama struct {
	http    *HTTP
	baseURL string
	log     *logrus.Entry
}

// NewOllama returns a client for baseURL, falling back to the OLLAMA_HOST
// environment variable and then to localhost.
func NewOllama(baseURL string) *Ollama {
	if baseURL == "" {
		baseURL = os.Getenv("OLLAMA_HOST")
	}
	if baseURL == "" {
		baseURL = defaultOllamaHost
	}
	return &Ollama{
		http:    NewHTTP(),
		baseURL: strings.TrimRight(baseURL, "/"),
		log:     logrus.WithField("component", "ollama"),
	}
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	System string `json:"system,omitempty"`
	Format string `json:"format,omitempty"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
}

// generate runs a single non-streaming completion and returns the raw text.
func (o *Ollama) generate(ctx context.Context, model, system, prompt string) (string, error) {
	payload, err := json.Marshal(generateRequest{
		Model:  model,
		Prompt: prompt,
		System: system,
		Format: "json",
		Stream: false,
	})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/generate", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.http.c.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("ollama %s: %s", resp.Status, string(body))
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("ollama decode: %w", err)
	}
	return out.Response, nil
}

// Decompose asks the configured model to break brief into structured
// generation parameters. The six descriptive fields are required; duration
// and batch_influences are taken when usable.
func (o *Ollama) Decompose(ctx context.Context, brief string, cfg *config.Config) (orchestrator.StructuredParams, error) {
	instruction := fmt.Sprintf(
		"Decompose this SFX brief into JSON with keys: source, timbre, dynamics, duration, pitch, space, analogy, prompt_influence, batch_influences. Brief: %q",
		brief,
	)

	raw, err := o.generate(ctx, cfg.GemmaModel, decomposeSystem, instruction)
	if err != nil {
		return orchestrator.StructuredParams{}, fmt.Errorf("decompose: %w", err)
	}

	clean := cleanJSON(raw)
	var fields map[string]any
	if err := json.Unmarshal([]byte(clean), &fields); err != nil {
		return orchestrator.StructuredParams{}, fmt.Errorf("decompose: invalid JSON from %s: %q", cfg.GemmaModel, truncate(clean, 200))
	}

	params := orchestrator.StructuredParams{
		Source:   stringField(fields, "source"),
		Timbre:   stringField(fields, "timbre"),
		Dynamics: stringField(fields, "dynamics"),
		Pitch:    stringField(fields, "pitch"),
		Space:    stringField(fields, "space"),
		Analogy:  stringField(fields, "analogy"),
	}
	if missing := params.MissingFields(); len(missing) > 0 {
		return orchestrator.StructuredParams{}, fmt.Errorf("decompose: model output missing required fields: %s", strings.Join(missing, ", "))
	}

	if v, ok := fields["duration"]; ok && v != nil {
		d, err := asFloat(v)
		if err != nil {
			return orchestrator.StructuredParams{}, fmt.Errorf("decompose: invalid duration %v: %v", v, err)
		}
		params.Duration = d
	}
	params.BatchInfluences = o.floatList(fields["batch_influences"])

	return params, nil
}

// cleanJSON strips the markdown code fences models sometimes wrap around
// their JSON.
func cleanJSON(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if i := strings.LastIndex(s, "```"); i >= 0 {
			s = s[:i]
		}
		s = strings.TrimSpace(s)
	}
	return s
}

func stringField(fields map[string]any, key string) string {
	switch v := fields[key].(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func asFloat(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, fmt.Errorf("cannot convert %q to float", x)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("cannot convert %v (%T) to float", v, v)
	}
}

// floatList converts the model's batch_influences when usable; anything
// else is dropped so the config defaults apply.
func (o *Ollama) floatList(v any) []float64 {
	if v == nil {
		return nil
	}
	items, ok := v.([]any)
	if !ok || len(items) == 0 {
		o.log.WithField("batch_influences", v).Warn("unusable batch_influences from model, falling back to config")
		return nil
	}
	out := make([]float64, 0, len(items))
	for _, item := range items {
		f, err := asFloat(item)
		if err != nil {
			o.log.WithField("batch_influences", v).Warn("non-numeric batch influence from model, falling back to config")
			return nil
		}
		out = append(out, f)
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
