package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/blakedemarest/SamplePackAgent/config"
)

// Pipeline drives a brief through decomposition, prompt composition, audio
// generation, loudness normalization and library persistence.
type Pipeline struct {
	deps     Deps
	workers  int
	template string
	log      *logrus.Entry
}

// New builds a Pipeline around the given collaborators.
func New(deps Deps, opts ...Option) *Pipeline {
	p := &Pipeline{
		deps:    deps,
		workers: 1,
		log:     logrus.WithField("component", "pipeline"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p
}

// Run executes the full pipeline for brief. It returns the paths of the
// normalized files plus the error messages collected along the way: a
// failure before any audio exists (config, decomposition) yields a single
// message and no paths, while per-variation failures are recorded and the
// remaining variations continue.
func (p *Pipeline) Run(ctx context.Context, brief, configPath string) ([]string, []string) {
	var errs []string

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, append(errs, fmt.Sprintf("configuration: %v", err))
	}
	logrus.SetLevel(cfg.LogLevel)

	log := p.log.WithField("brief", brief)
	log.Info("decomposing brief")

	params, err := p.deps.Decomposer.Decompose(ctx, brief, cfg)
	if err != nil {
		return nil, append(errs, fmt.Sprintf("decompose brief: %v", err))
	}
	if missing := params.MissingFields(); len(missing) > 0 {
		return nil, append(errs, fmt.Sprintf("decomposer output missing required fields: %s", strings.Join(missing, ", ")))
	}

	duration := params.Duration
	if duration <= 0 {
		duration = cfg.DefaultDuration
	}
	influences := params.BatchInfluences
	if len(influences) == 0 {
		log.WithField("influences", cfg.BatchInfluences).Debug("using batch influences from config")
		influences = cfg.BatchInfluences
	}

	log.WithFields(logrus.Fields{
		"variations": len(influences),
		"duration":   duration,
	}).Info("generating variations")

	records := make([]*GenerationRecord, len(influences))
	failures := make([]string, len(influences))

	workers := p.workers
	if workers < 1 {
		workers = 1
	}
	if workers > len(influences) {
		workers = len(influences)
	}

	var wg sync.WaitGroup
	jobs := make(chan int)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				records[i], failures[i] = p.runVariation(ctx, cfg, brief, params, duration, influences[i])
			}
		}()
	}
	for i := range influences {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	var files []string
	var entries []any
	for i := range influences {
		if failures[i] != "" {
			errs = append(errs, failures[i])
			continue
		}
		if rec := records[i]; rec != nil {
			entries = append(entries, *rec)
			files = append(files, rec.OutputPath)
		}
	}

	if len(entries) > 0 {
		if _, err := p.deps.Library.Append(brief, entries, cfg.LibraryPath); err != nil {
			errs = append(errs, fmt.Sprintf("library append %s: %v", cfg.LibraryPath, err))
		}
	}

	if len(errs) > 0 {
		log.WithField("errors", len(errs)).Error("pipeline finished with errors")
	} else {
		log.WithField("files", len(files)).Info("pipeline finished")
	}
	return files, errs
}

// runVariation renders and generates one prompt influence. It returns
// either a record or a message describing which stage failed.
func (p *Pipeline) runVariation(ctx context.Context, cfg *config.Config, brief string, base StructuredParams, duration, influence float64) (*GenerationRecord, string) {
	log := p.log.WithField("influence", influence)

	params := base
	params.Duration = duration
	params.PromptInfluence = influence

	text, err := p.deps.Composer.Compose(params, p.template)
	if err != nil {
		return nil, fmt.Sprintf("influence %.2f: compose prompt: %v", influence, err)
	}
	log.WithField("prompt", text).Debug("composed prompt")

	rawPath, err := p.deps.Generator.Generate(ctx, text, duration, influence, cfg)
	if err != nil {
		return nil, fmt.Sprintf("influence %.2f: generate audio: %v", influence, err)
	}
	log.WithField("raw", rawPath).Debug("audio generated")

	res, err := p.deps.Normalizer.Normalize(rawPath, cfg.TargetLUFS, cfg.OutputFolder, false)
	if err != nil {
		return nil, fmt.Sprintf("influence %.2f: post-process %s: %v", influence, rawPath, err)
	}
	log.WithField("output", res.OutputPath).Info("variation complete")

	return &GenerationRecord{
		Brief:        brief,
		Prompt:       text,
		RawAudioPath: rawPath,
		Result:       *res,
	}, ""
}
