package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Config is the validated run configuration. Load resolves relative paths
// against the config file's directory; the struct is not mutated afterwards.
type Config struct {
	// elevenlabs
	Voice string
	Model string

	// gemma
	GemmaModel string

	// output
	OutputFolder string
	OutputFormat string

	// prompt
	DefaultDuration float64
	PromptInfluence float64
	BatchInfluences []float64

	// processing
	TargetLUFS float64

	// library
	LibraryPath string

	// logging
	LogLevel     logrus.Level
	LogLevelName string

	// Path is the absolute path of the loaded config file.
	Path string
}

var required = []struct {
	section string
	keys    []string
}{
	{"elevenlabs", []string{"voice", "model"}},
	{"gemma", []string{"model"}},
	{"output", []string{"folder", "file_format"}},
	{"prompt", []string{"default_duration", "prompt_influence", "batch_influences"}},
	{"processing", []string{"target_lufs"}},
	{"library", []string{"path"}},
	{"logging", []string{"level"}},
}

// Load reads and validates the YAML config at path. Environment variables
// prefixed with SFX_ override file values (dots become underscores, e.g.
// SFX_PROCESSING_TARGET_LUFS).
func Load(path string) (*Config, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path %s: %w", path, err)
	}

	v := viper.New()
	v.SetConfigFile(abs)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("SFX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", abs)
		}
		return nil, fmt.Errorf("parse config %s: %w", abs, err)
	}
	if len(v.AllSettings()) == 0 {
		return nil, fmt.Errorf("config file is empty: %s", abs)
	}

	var missingSections, missingKeys []string
	for _, req := range required {
		raw := v.Get(req.section)
		if raw == nil {
			missingSections = append(missingSections, req.section)
			continue
		}
		if _, ok := raw.(map[string]any); !ok {
			return nil, fmt.Errorf("config section %q is not a mapping", req.section)
		}
		for _, key := range req.keys {
			if v.Get(req.section+"."+key) == nil {
				missingKeys = append(missingKeys, req.section+"."+key)
			}
		}
	}
	if len(missingSections) > 0 {
		return nil, fmt.Errorf("missing required config sections: %s", strings.Join(missingSections, ", "))
	}
	if len(missingKeys) > 0 {
		return nil, fmt.Errorf("missing required config entries: %s", strings.Join(missingKeys, ", "))
	}

	cfg := &Config{Path: abs}

	if cfg.Voice, err = getString(v, "elevenlabs.voice"); err != nil {
		return nil, err
	}
	if cfg.Model, err = getString(v, "elevenlabs.model"); err != nil {
		return nil, err
	}
	if cfg.GemmaModel, err = getString(v, "gemma.model"); err != nil {
		return nil, err
	}
	folder, err := getString(v, "output.folder")
	if err != nil {
		return nil, err
	}
	if cfg.OutputFormat, err = getString(v, "output.file_format"); err != nil {
		return nil, err
	}
	if cfg.DefaultDuration, err = getFloat(v, "prompt.default_duration"); err != nil {
		return nil, err
	}
	if cfg.PromptInfluence, err = getFloat(v, "prompt.prompt_influence"); err != nil {
		return nil, err
	}
	if cfg.BatchInfluences, err = getFloatList(v, "prompt.batch_influences"); err != nil {
		return nil, err
	}
	if cfg.TargetLUFS, err = getFloat(v, "processing.target_lufs"); err != nil {
		return nil, err
	}
	libPath, err := getString(v, "library.path")
	if err != nil {
		return nil, err
	}
	if cfg.LogLevelName, err = getString(v, "logging.level"); err != nil {
		return nil, err
	}

	if cfg.DefaultDuration <= 0 {
		return nil, fmt.Errorf("prompt.default_duration must be positive, got %v", cfg.DefaultDuration)
	}
	if len(cfg.BatchInfluences) == 0 {
		return nil, fmt.Errorf("prompt.batch_influences must not be empty")
	}
	if cfg.LogLevel, err = logrus.ParseLevel(cfg.LogLevelName); err != nil {
		return nil, fmt.Errorf("invalid logging.level %q", cfg.LogLevelName)
	}

	base := filepath.Dir(abs)
	cfg.OutputFolder = resolve(base, folder)
	cfg.LibraryPath = resolve(base, libPath)

	logrus.WithFields(logrus.Fields{
		"config":  cfg.Path,
		"voice":   cfg.Voice,
		"gemma":   cfg.GemmaModel,
		"output":  cfg.OutputFolder,
		"library": cfg.LibraryPath,
	}).Debug("configuration loaded")

	return cfg, nil
}

// resolve makes p absolute, treating relative paths as relative to base.
func resolve(base, p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(base, p)
}

func getString(v *viper.Viper, key string) (string, error) {
	raw := v.Get(key)
	s, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("%s must be a string, got %T", key, raw)
	}
	return s, nil
}

func getFloat(v *viper.Viper, key string) (float64, error) {
	f, err := toFloat(v.Get(key))
	if err != nil {
		return 0, fmt.Errorf("invalid numeric value for %s: %v", key, err)
	}
	return f, nil
}

func getFloatList(v *viper.Viper, key string) ([]float64, error) {
	raw := v.Get(key)
	items, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("%s must be a list, got %T", key, raw)
	}
	out := make([]float64, 0, len(items))
	for _, item := range items {
		f, err := toFloat(item)
		if err != nil {
			return nil, fmt.Errorf("invalid numeric value in %s: %v", key, err)
		}
		out = append(out, f)
	}
	return out, nil
}

func toFloat(raw any) (float64, error) {
	switch x := raw.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case uint64:
		return float64(x), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, fmt.Errorf("cannot convert %q to float", x)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("cannot convert %v (%T) to float", raw, raw)
	}
}
