package scoring

import (
	"encoding/json"
	"math"
	"os"

	"github.com/wallet-sentinel/sentinel/internal/apperr"
)

// Model is a portable logistic-regression-style classifier artifact: a
// per-feature weight vector plus bias, standardized against a stored
// mean/stddev scaler, consumed through a fixed declared feature order. No ML
// runtime exists in the project's dependency stack, so inference is a plain
// dot product plus sigmoid over math.Float64 — this is the scoring engine's
// one deliberately stdlib-only surface (see design notes).
type Model struct {
	FeatureOrder []string
	Weights      []float64
	Bias         float64
	Scaler       map[string]Scale
}

// Scale is a per-feature standardization parameter pair.
type Scale struct {
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stddev"`
}

type modelFile struct {
	Weights map[string]float64 `json:"weights"`
	Bias    float64            `json:"bias"`
}

// LoadModel reads the weight/bias artifact at modelPath, the feature-order
// list at featuresPath, and the optional scaler at scalerPath. Any missing
// or malformed artifact yields a nil model and a non-fatal error — callers
// fall through to the rule-based fallback per §4.3 step 3.
func LoadModel(modelPath, scalerPath, featuresPath string) (*Model, error) {
	if modelPath == "" || featuresPath == "" {
		return nil, apperr.New(apperr.CodeScoring, "model artifacts not configured")
	}

	var order []string
	if err := readJSON(featuresPath, &order); err != nil {
		return nil, apperr.Wrap(apperr.CodeScoring, "loading feature order", err)
	}

	var mf modelFile
	if err := readJSON(modelPath, &mf); err != nil {
		return nil, apperr.Wrap(apperr.CodeScoring, "loading model weights", err)
	}

	weights := make([]float64, len(order))
	for i, name := range order {
		weights[i] = mf.Weights[name] // missing names default to 0
	}

	scaler := map[string]Scale{}
	if scalerPath != "" {
		if err := readJSON(scalerPath, &scaler); err != nil {
			return nil, apperr.Wrap(apperr.CodeScoring, "loading scaler", err)
		}
	}

	return &Model{
		FeatureOrder: order,
		Weights:      weights,
		Bias:         mf.Bias,
		Scaler:       scaler,
	}, nil
}

// PositiveProbability maps a feature map to the model's expected order,
// standardizes it, and returns the positive-class probability p ∈ [0,1].
// Returns an error on a NaN/Inf result so the caller can fall through to the
// rule-based path per the spec's "scoring failure" handling (§7).
func (m *Model) PositiveProbability(features map[string]float64) (float64, error) {
	var logit float64
	for i, name := range m.FeatureOrder {
		v := features[name] // missing names default to 0
		if s, ok := m.Scaler[name]; ok && s.StdDev != 0 {
			v = (v - s.Mean) / s.StdDev
		}
		logit += v * m.Weights[i]
	}
	logit += m.Bias

	p := sigmoid(logit)
	if math.IsNaN(p) || math.IsInf(p, 0) {
		return 0, apperr.New(apperr.CodeScoring, "model produced a non-finite output")
	}
	return p, nil
}

func sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}

func readJSON(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}
