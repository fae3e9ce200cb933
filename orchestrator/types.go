package orchestrator

import (
	"context"

	"github.com/blakedemarest/SamplePackAgent/config"
	"github.com/blakedemarest/SamplePackAgent/loudness"
)

// StructuredParams is the decomposer's reading of a brief. The six string
// fields are required for prompt composition; Duration and BatchInfluences
// are optional hints that fall back to config values when unset.
type StructuredParams struct {
	Source   string
	Timbre   string
	Dynamics string
	Pitch    string
	Space    string
	Analogy  string

	// Duration in seconds. Zero means the model gave none.
	Duration float64
	// PromptInfluence is filled in per variation by the pipeline.
	PromptInfluence float64
	// BatchInfluences is nil when the model gave none or gave garbage.
	BatchInfluences []float64
}

// MissingFields reports which required fields are empty, in a fixed order.
func (p StructuredParams) MissingFields() []string {
	var missing []string
	for _, f := range []struct {
		name, value string
	}{
		{"source", p.Source},
		{"timbre", p.Timbre},
		{"dynamics", p.Dynamics},
		{"pitch", p.Pitch},
		{"space", p.Space},
		{"analogy", p.Analogy},
	} {
		if f.value == "" {
			missing = append(missing, f.name)
		}
	}
	return missing
}

// GenerationRecord is one variation's library entry: the brief it came
// from, the prompt that was sent, and where the audio ended up.
type GenerationRecord struct {
	Brief           string `yaml:"brief"`
	Prompt          string `yaml:"prompt"`
	RawAudioPath    string `yaml:"raw_audio_path"`
	loudness.Result `yaml:",inline"`
}

// Decomposer turns a free-text brief into structured parameters.
type Decomposer interface {
	Decompose(ctx context.Context, brief string, cfg *config.Config) (StructuredParams, error)
}

// Composer renders structured parameters into a text-to-audio prompt.
type Composer interface {
	Compose(params StructuredParams, template string) (string, error)
}

// Generator produces one audio file for a prompt and returns its path.
type Generator interface {
	Generate(ctx context.Context, prompt string, duration, influence float64, cfg *config.Config) (string, error)
}

// Normalizer post-processes a raw audio file to the target loudness.
type Normalizer interface {
	Normalize(path string, targetLUFS float64, outputDir string, overwriteOriginal bool) (*loudness.Result, error)
}

// Library persists generation records keyed by brief.
type Library interface {
	Append(brief string, entries []any, path string) (string, error)
}

// Deps bundles the pipeline's collaborators.
type Deps struct {
	Decomposer Decomposer
	Composer   Composer
	Generator  Generator
	Normalizer Normalizer
	Library    Library
}
