package ranking

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
)

// Weights defines how the relevance score and the five non-lexical features
// are blended into the final score. Weights are used as supplied; they are not
// required to sum to 1.
type Weights struct {
	Lexical   float64 `json:"lexical" koanf:"lexical"`     // Weight for the relevance score (default: 0.25)
	Recency   float64 `json:"recency" koanf:"recency"`     // Weight for publication recency (default: 0.20)
	Authority float64 `json:"authority" koanf:"authority"` // Weight for domain authority (default: 0.20)
	Geo       float64 `json:"geo" koanf:"geo"`             // Weight for country match (default: 0.15)
	Schema    float64 `json:"schema" koanf:"schema"`       // Weight for structured-data presence (default: 0.10)
	Topic     float64 `json:"topic" koanf:"topic"`         // Weight for event-type match (default: 0.10)
}

// Config is the immutable configuration of a Reranker.
type Config struct {
	Weights       Weights `json:"weights"`
	MinScore      float64 `json:"min_score"`      // Candidates scoring below this are dropped
	MaxCandidates int     `json:"max_candidates"` // Maximum results returned; <= 0 means no limit
}

// Default thresholds.
const (
	DefaultMinScore      = 0.3
	DefaultMaxCandidates = 10
)

// CalibrationConfig represents the JSON structure of a calibration file.
type CalibrationConfig struct {
	Version string  `json:"version"` // Config version for future compatibility
	Weights Weights `json:"weights"` // Weight overrides
}

// DefaultWeights returns the default weight vector.
//
// Formula: final = (relevance * 0.25) + (recency * 0.20) + (authority * 0.20) +
// (geo * 0.15) + (schema * 0.10) + (topic * 0.10)
func DefaultWeights() Weights {
	return Weights{
		Lexical:   0.25,
		Recency:   0.20,
		Authority: 0.20,
		Geo:       0.15,
		Schema:    0.10,
		Topic:     0.10,
	}
}

// DefaultConfig returns the default reranker configuration.
func DefaultConfig() Config {
	return Config{
		Weights:       DefaultWeights(),
		MinScore:      DefaultMinScore,
		MaxCandidates: DefaultMaxCandidates,
	}
}

// Sum returns the total of all weights.
func (w Weights) Sum() float64 {
	return w.Lexical + w.Recency + w.Authority + w.Geo + w.Schema + w.Topic
}

// blend computes the final score from a relevance score and a feature vector.
// The feature vector's own Lexical value is not used.
func (w Weights) blend(relevance float64, f Features) float64 {
	return relevance*w.Lexical +
		f.Recency*w.Recency +
		f.Authority*w.Authority +
		f.Geo*w.Geo +
		f.Schema*w.Schema +
		f.Topic*w.Topic
}

// namedWeight is a single weight with its calibration key.
type namedWeight struct {
	name  string
	value float64
}

func (w Weights) named() []namedWeight {
	return []namedWeight{
		{"lexical", w.Lexical},
		{"recency", w.Recency},
		{"authority", w.Authority},
		{"geo", w.Geo},
		{"schema", w.Schema},
		{"topic", w.Topic},
	}
}

// MergeWeights applies the non-zero fields of override on top of base and
// returns the result. Neither argument is modified.
func MergeWeights(base, override Weights) Weights {
	result := base

	if override.Lexical != 0 {
		result.Lexical = override.Lexical
	}
	if override.Recency != 0 {
		result.Recency = override.Recency
	}
	if override.Authority != 0 {
		result.Authority = override.Authority
	}
	if override.Geo != 0 {
		result.Geo = override.Geo
	}
	if override.Schema != 0 {
		result.Schema = override.Schema
	}
	if override.Topic != 0 {
		result.Topic = override.Topic
	}

	return result
}

// LoadCalibration loads ranking weights from a JSON calibration file.
// An empty path returns the defaults. If the file can't be read or parsed the
// defaults are returned together with the error, so callers can log and carry on.
// Partial files are merged over the defaults.
func LoadCalibration(filePath string) (Weights, error) {
	if filePath == "" {
		return DefaultWeights(), nil
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		slog.Warn("failed to read calibration file, using defaults",
			"path", filePath,
			"error", err)
		return DefaultWeights(), fmt.Errorf("failed to read calibration file: %w", err)
	}

	var config CalibrationConfig
	if err := json.Unmarshal(data, &config); err != nil {
		slog.Warn("failed to parse calibration file, using defaults",
			"path", filePath,
			"error", err)
		return DefaultWeights(), fmt.Errorf("failed to parse calibration file: %w", err)
	}

	defaults := DefaultWeights()
	merged := MergeWeights(defaults, config.Weights)
	logCalibrationOverrides(defaults, merged)

	return merged, nil
}

// logCalibrationOverrides logs which weights differ from the defaults.
func logCalibrationOverrides(defaults, loaded Weights) {
	var overrides []string

	base := defaults.named()
	for i, w := range loaded.named() {
		if w.value != base[i].value {
			overrides = append(overrides, fmt.Sprintf("%s: %.2f -> %.2f", w.name, base[i].value, w.value))
		}
	}

	if len(overrides) > 0 {
		slog.Info("loaded ranking calibration with overrides",
			"overrides", overrides,
			"weight_sum", loaded.Sum())
	} else {
		slog.Info("loaded ranking calibration (using all defaults)")
	}
}
