// Package prompt renders structured parameters into text-to-audio prompts.
package prompt

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/blakedemarest/SamplePackAgent/orchestrator"
)

// DefaultTemplate is the canonical prompt shape, e.g.
// "door: a sharp sound; fast, 1.2s, low; hall; like click."
const DefaultTemplate = "{source}: a {timbre} sound; {dynamics}, {duration}s, {pitch}; {space}; like {analogy}."

var placeholderRE = regexp.MustCompile(`\{[a-zA-Z_]+\}`)

// Composer fills prompt templates from structured parameters.
type Composer struct{}

// Compose renders params into template, or DefaultTemplate when template is
// empty. Every placeholder the template names must resolve to a non-empty
// value; placeholders that are not known fields are an error.
func (Composer) Compose(params orchestrator.StructuredParams, template string) (string, error) {
	tpl := template
	if tpl == "" {
		tpl = DefaultTemplate
	}

	values := map[string]string{
		"source":           params.Source,
		"timbre":           params.Timbre,
		"dynamics":         params.Dynamics,
		"pitch":            params.Pitch,
		"space":            params.Space,
		"analogy":          params.Analogy,
		"duration":         "",
		"prompt_influence": strconv.FormatFloat(params.PromptInfluence, 'f', 2, 64),
	}
	if params.Duration > 0 {
		values["duration"] = formatDuration(params.Duration)
	}

	out := tpl
	for key, value := range values {
		placeholder := "{" + key + "}"
		if !strings.Contains(out, placeholder) {
			continue
		}
		if value == "" {
			return "", fmt.Errorf("missing value for prompt field %q", key)
		}
		out = strings.ReplaceAll(out, placeholder, value)
	}
	if leftover := placeholderRE.FindString(out); leftover != "" {
		return "", fmt.Errorf("unknown placeholder %s in template", leftover)
	}
	return out, nil
}

// formatDuration renders whole seconds with one decimal (2.0, not 2) and
// everything else in the shortest exact form.
func formatDuration(d float64) string {
	if d == math.Trunc(d) {
		return strconv.FormatFloat(d, 'f', 1, 64)
	}
	return strconv.FormatFloat(d, 'f', -1, 64)
}
