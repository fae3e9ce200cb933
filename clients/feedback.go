package clients

import (
	"context"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/blakedemarest/SamplePackAgent/config"
)

// SuggestTweaks sends a used prompt and the loudness metrics of its audio
// to the model and returns structured suggestions for improving the prompt.
func (o *Ollama) SuggestTweaks(ctx context.Context, prompt string, metrics map[string]any, cfg *config.Config) (map[string]any, error) {
	rendered, err := yaml.Marshal(metrics)
	if err != nil {
		return nil, fmt.Errorf("feedback: encode metrics: %w", err)
	}

	instruction := fmt.Sprintf(
		"You are an assistant that improves sound-effect prompts. "+
			"Given the following text-to-audio prompt and audio metrics, "+
			"suggest precise adjustments to optimize the sound quality. "+
			"Respond with a JSON object.\nPrompt: %q\nMetrics:\n%s",
		prompt, rendered,
	)

	raw, err := o.generate(ctx, cfg.GemmaModel, "", instruction)
	if err != nil {
		return nil, fmt.Errorf("feedback: %w", err)
	}

	clean := cleanJSON(raw)
	var suggestions map[string]any
	if err := json.Unmarshal([]byte(clean), &suggestions); err != nil {
		return nil, fmt.Errorf("feedback: invalid JSON from %s: %q", cfg.GemmaModel, truncate(clean, 200))
	}
	return suggestions, nil
}
