// Package ml provides the logistic regression classifier that scores ads
// for policy violations.
package ml

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"os"
	"sync"

	"github.com/adsafe/moderation-api/internal/core"
	"github.com/adsafe/moderation-api/internal/domain/model"
	apperrors "github.com/adsafe/moderation-api/internal/errors"
)

const featureCount = 4

// modelWeights is the persisted form of a trained model.
type modelWeights struct {
	Weights [featureCount]float64 `json:"weights"`
	Bias    float64               `json:"bias"`
	Version string                `json:"version"`
}

// Classifier is a logistic regression model over four normalized ad
// features: seller verification, image count, description length, and
// category. It is safe for concurrent use once loaded.
type Classifier struct {
	mu     sync.RWMutex
	model  *modelWeights
	path   string
	logger *slog.Logger
}

// Options configures a Classifier.
type Options struct {
	// ModelPath is where weights are persisted. When the file does not
	// exist, Load trains on synthetic data and writes it.
	ModelPath string
	Logger    *slog.Logger
}

// NewClassifier creates an unloaded Classifier. Call Load before Predict.
func NewClassifier(opts Options) *Classifier {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	path := opts.ModelPath
	if path == "" {
		path = "model.json"
	}
	return &Classifier{path: path, logger: logger}
}

// Load reads persisted weights, or trains a fresh model on synthetic data
// and persists it when no weights file exists.
func (c *Classifier) Load(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	raw, err := os.ReadFile(c.path)
	switch {
	case err == nil:
		var m modelWeights
		if unmarshalErr := json.Unmarshal(raw, &m); unmarshalErr != nil {
			return fmt.Errorf("decode model weights %s: %w", c.path, unmarshalErr)
		}
		c.model = &m
		c.logger.InfoContext(ctx, "model loaded", "path", c.path, "version", m.Version)
		return nil
	case os.IsNotExist(err):
		c.logger.InfoContext(ctx, "model file not found, training on synthetic data", "path", c.path)
		m := train()
		c.model = m
		if saveErr := c.save(m); saveErr != nil {
			// A model that trained but failed to persist is still usable.
			c.logger.WarnContext(ctx, "persist model weights failed", "path", c.path, "error", saveErr)
		}
		return nil
	default:
		return fmt.Errorf("read model weights %s: %w", c.path, err)
	}
}

// Unload drops the model from memory. Subsequent Predict calls fail with a
// model_unavailable error until Load is called again.
func (c *Classifier) Unload() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.model = nil
}

// Available reports whether a model is loaded.
func (c *Classifier) Available() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.model != nil
}

// Predict scores an ad and returns the verdict with its probability.
func (c *Classifier) Predict(_ context.Context, input core.PredictInput) (model.Prediction, error) {
	c.mu.RLock()
	m := c.model
	c.mu.RUnlock()

	if m == nil {
		return model.Prediction{}, apperrors.ModelUnavailable("model is not loaded")
	}

	features := prepareFeatures(input)
	z := m.Bias
	for i, w := range m.Weights {
		z += w * features[i]
	}
	probability := sigmoid(z)

	return model.Prediction{
		IsViolation: probability >= 0.5,
		Probability: probability,
	}, nil
}

func (c *Classifier) save(m *modelWeights) error {
	raw, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode model weights: %w", err)
	}
	if writeErr := os.WriteFile(c.path, raw, 0o644); writeErr != nil {
		return fmt.Errorf("write model weights: %w", writeErr)
	}
	return nil
}

// prepareFeatures normalizes raw ad attributes into the [0,1] feature
// vector the model was trained on.
func prepareFeatures(input core.PredictInput) [featureCount]float64 {
	verified := 0.0
	if input.SellerVerified {
		verified = 1.0
	}
	return [featureCount]float64{
		verified,
		math.Min(float64(input.ImagesQty)/10.0, 1.0),
		math.Min(float64(len(input.Description))/1000.0, 1.0),
		float64(input.Category) / 100.0,
	}
}

func sigmoid(z float64) float64 {
	return 1.0 / (1.0 + math.Exp(-z))
}

// train fits a logistic regression with gradient descent on deterministic
// synthetic data: unverified sellers with few images are labeled violations.
func train() *modelWeights {
	const (
		samples      = 1000
		epochs       = 500
		learningRate = 0.5
	)

	rng := rand.New(rand.NewSource(42))

	features := make([][featureCount]float64, samples)
	labels := make([]float64, samples)
	for i := range features {
		for j := range features[i] {
			features[i][j] = rng.Float64()
		}
		if features[i][0] < 0.3 && features[i][1] < 0.2 {
			labels[i] = 1.0
		}
	}

	m := &modelWeights{Version: "1"}
	for epoch := 0; epoch < epochs; epoch++ {
		var gradW [featureCount]float64
		var gradB float64
		for i, x := range features {
			z := m.Bias
			for j, w := range m.Weights {
				z += w * x[j]
			}
			diff := sigmoid(z) - labels[i]
			for j := range gradW {
				gradW[j] += diff * x[j]
			}
			gradB += diff
		}
		for j := range m.Weights {
			m.Weights[j] -= learningRate * gradW[j] / samples
		}
		m.Bias -= learningRate * gradB / samples
	}
	return m
}
