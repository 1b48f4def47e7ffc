package strategy

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"

	"trading-backtestv1/internal/model"
)

// FeatureNames is the classifier input layout produced by Features.
var FeatureNames = []string{
	"rsi", "macd", "macd_signal", "macd_hist",
	"bb_upper", "bb_middle", "bb_lower", "price_return",
}

// ErrFeatureCount is returned when a feature vector has the wrong length.
var ErrFeatureCount = errors.New("feature vector length mismatch")

// Classifier returns the probability that the next bar closes higher.
type Classifier interface {
	PredictProba(features []float64) (float64, error)
}

// ClassifierFunc adapts a plain function to Classifier.
type ClassifierFunc func(features []float64) (float64, error)

func (f ClassifierFunc) PredictProba(features []float64) (float64, error) { return f(features) }

// Features returns the classifier inputs for bar. ok is false while any of
// them is still in warmup.
func Features(bar model.Bar) (features []float64, ok bool) {
	features = []float64{
		bar.RSI, bar.MACD, bar.MACDSignal, bar.MACDHist,
		bar.BBUpper, bar.BBMiddle, bar.BBLower, bar.PriceReturn,
	}
	for _, f := range features {
		if !model.IsFinite(f) {
			return features, false
		}
	}
	return features, true
}

// LogisticModel is a pre-fitted logistic regression over standardized features:
// p = sigmoid(bias + sum(w_i * (x_i - mean_i) / scale_i)).
//
// Features are in FeatureNames order and raw indicator units; price_return is
// a percent (0.25 means +0.25%), so mean and scale must be fitted on percents.
type LogisticModel struct {
	Name    string    `json:"name"`
	Weights []float64 `json:"weights"`
	Bias    float64   `json:"bias"`
	Mean    []float64 `json:"mean"`
	Scale   []float64 `json:"scale"`
}

// LoadModel reads a JSON model artifact.
func LoadModel(path string) (*LogisticModel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model: %w", err)
	}
	var m LogisticModel
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode model %s: %w", path, err)
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("model %s: %w", path, err)
	}
	return &m, nil
}

// Validate checks that every vector matches the feature layout.
func (m *LogisticModel) Validate() error {
	n := len(FeatureNames)
	if len(m.Weights) != n || len(m.Mean) != n || len(m.Scale) != n {
		return fmt.Errorf("%w: want %d weights/mean/scale, got %d/%d/%d",
			ErrFeatureCount, n, len(m.Weights), len(m.Mean), len(m.Scale))
	}
	for i, s := range m.Scale {
		if s == 0 || !model.IsFinite(s) {
			return fmt.Errorf("scale[%d] (%s) must be finite and non-zero", i, FeatureNames[i])
		}
	}
	return nil
}

// PredictProba implements Classifier.
func (m *LogisticModel) PredictProba(features []float64) (float64, error) {
	if len(features) != len(m.Weights) {
		return 0, fmt.Errorf("%w: want %d, got %d", ErrFeatureCount, len(m.Weights), len(features))
	}
	z := m.Bias
	for i, x := range features {
		z += m.Weights[i] * (x - m.Mean[i]) / m.Scale[i]
	}
	if !model.IsFinite(z) {
		return 0, fmt.Errorf("non-finite logit %v", z)
	}
	return 1 / (1 + math.Exp(-z)), nil
}

// DefaultModel is a fixed-weight momentum model used when no artifact is
// configured. It leans long on high RSI, a positive MACD histogram and a
// positive last return.
func DefaultModel() *LogisticModel {
	return &LogisticModel{
		Name:    "default-momentum",
		Weights: []float64{0.6, 0, 0, 0.8, 0, 0, 0, 0.3},
		Mean:    []float64{50, 0, 0, 0, 0, 0, 0, 0},
		Scale:   []float64{10, 1, 1, 1, 1, 1, 1, 0.1},
	}
}
