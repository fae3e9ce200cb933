// Package loudness measures generated audio against an ITU-R BS.1770 target
// and applies the matching gain, with a hard ceiling at 0 dBFS sample peak.
package loudness

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	r128 "github.com/cwbudde/algo-dsp/measure/loudness"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("component", "loudness")

// Result captures the metrics of one normalization pass.
type Result struct {
	OriginalLUFS       float64 `yaml:"original_lufs" json:"original_lufs"`
	OriginalPeakDBFS   float64 `yaml:"original_peak_dbfs" json:"original_peak_dbfs"`
	TargetLUFS         float64 `yaml:"target_lufs" json:"target_lufs"`
	GainAppliedDB      float64 `yaml:"gain_applied_db" json:"gain_applied_db"`
	ClippingPrevented  bool    `yaml:"clipping_prevented" json:"clipping_prevented"`
	NormalizedLUFS     float64 `yaml:"normalized_lufs" json:"normalized_lufs"`
	NormalizedPeakDBFS float64 `yaml:"normalized_peak_dbfs" json:"normalized_peak_dbfs"`
	OutputPath         string  `yaml:"output_path" json:"output_path"`
}

// Engine normalizes audio files to a target integrated loudness.
type Engine struct{}

// NewEngine returns a ready Engine.
func NewEngine() *Engine { return &Engine{} }

// Normalize measures path, applies the gain needed to reach targetLUFS
// (limited so the raw-sample peak cannot pass 0 dBFS), re-measures the
// result and writes it out. With overwriteOriginal the source file is
// replaced in place; otherwise the output lands in outputDir, or next to
// the source when outputDir is empty, under a _norm suffix.
//
// Loudness comes from a BS.1770 meter over float-scaled samples; the peak
// comes straight from the raw integer samples. Fully gated audio measures
// -Inf LUFS and is written through unchanged.
func (e *Engine) Normalize(path string, targetLUFS float64, outputDir string, overwriteOriginal bool) (*Result, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	buf, err := DecodeFile(path)
	if err != nil {
		return nil, err
	}
	if buf.Channels() == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoChannels, path)
	}
	if buf.Channels() > 2 {
		log.WithFields(logrus.Fields{
			"file":     path,
			"channels": buf.Channels(),
		}).Warn("downmixing to stereo for loudness measurement")
		buf = buf.DownmixStereo()
	}

	res := &Result{TargetLUFS: targetLUFS}
	res.OriginalLUFS = integratedLUFS(buf)
	res.OriginalPeakDBFS = buf.PeakDBFS()

	log.WithFields(logrus.Fields{
		"file": path,
		"lufs": res.OriginalLUFS,
		"peak": res.OriginalPeakDBFS,
	}).Info("measured original audio")

	normalized := buf
	if math.IsInf(res.OriginalLUFS, -1) {
		log.WithField("file", path).Warn("audio is silent, skipping normalization")
		res.NormalizedLUFS = res.OriginalLUFS
		res.NormalizedPeakDBFS = res.OriginalPeakDBFS
	} else {
		gain := targetLUFS - res.OriginalLUFS
		if predicted := res.OriginalPeakDBFS + gain; predicted > 0 {
			res.ClippingPrevented = true
			gain = -res.OriginalPeakDBFS
			log.WithFields(logrus.Fields{
				"file": path,
				"gain": gain,
			}).Warn("limiting gain to keep peak at or below 0 dBFS")
		}
		res.GainAppliedDB = gain

		normalized = buf.ApplyGain(gain)
		res.NormalizedLUFS = integratedLUFS(normalized)
		res.NormalizedPeakDBFS = normalized.PeakDBFS()
	}

	outPath, err := outputPath(path, outputDir, overwriteOriginal)
	if err != nil {
		return nil, err
	}
	if err := normalized.EncodeFile(outPath); err != nil {
		return nil, fmt.Errorf("write normalized audio %s: %w", outPath, err)
	}
	res.OutputPath = outPath

	log.WithFields(logrus.Fields{
		"output": outPath,
		"lufs":   res.NormalizedLUFS,
		"peak":   res.NormalizedPeakDBFS,
		"gain":   res.GainAppliedDB,
	}).Info("normalized audio written")

	return res, nil
}

func outputPath(src, outputDir string, overwrite bool) (string, error) {
	if overwrite {
		return src, nil
	}
	ext := filepath.Ext(src)
	name := strings.TrimSuffix(filepath.Base(src), ext) + "_norm" + ext
	dir := outputDir
	if dir == "" {
		dir = filepath.Dir(src)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir %s: %w", dir, err)
	}
	return filepath.Join(dir, name), nil
}

// integratedLUFS runs a fresh BS.1770 meter over the whole buffer.
func integratedLUFS(b *Buffer) float64 {
	meter := r128.NewMeter(
		r128.WithSampleRate(float64(b.SampleRate())),
		r128.WithChannels(b.Channels()),
	)
	meter.StartIntegration()
	meter.ProcessBlock(b.Floats())
	return meter.Integrated()
}
