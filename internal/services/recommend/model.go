package recommend

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/benvon/smart-docs/internal/models"
)

// Feature layout of a profile vector: age and daily usage hours are numeric,
// the four descriptive fields categorical.
const (
	numericFeatures     = 2
	categoricalFeatures = 4
)

// ErrModelNotLoaded is returned when recommendations are asked for without a cluster model
var ErrModelNotLoaded = errors.New("kproto model is not loaded")

// Centroid is one k-prototypes cluster center
type Centroid struct {
	Numeric     []float64 `json:"numeric"`
	Categorical []string  `json:"categorical"`
}

// Model is a trained k-prototypes model exported as JSON. Gamma weighs
// categorical mismatches against squared numeric distance.
type Model struct {
	Gamma     float64    `json:"gamma"`
	Centroids []Centroid `json:"centroids"`
}

// LoadModel reads a model file
func LoadModel(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model %s: %w", path, err)
	}
	return ParseModel(data)
}

// ParseModel decodes and checks a model document
func ParseModel(data []byte) (*Model, error) {
	var m Model
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse model: %w", err)
	}
	if err := m.validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *Model) validate() error {
	if len(m.Centroids) == 0 {
		return errors.New("model has no centroids")
	}
	if m.Gamma < 0 || math.IsNaN(m.Gamma) || math.IsInf(m.Gamma, 0) {
		return fmt.Errorf("model gamma %v is invalid", m.Gamma)
	}
	for i, c := range m.Centroids {
		if len(c.Numeric) != numericFeatures {
			return fmt.Errorf("centroid %d has %d numeric values, want %d", i, len(c.Numeric), numericFeatures)
		}
		if len(c.Categorical) != categoricalFeatures {
			return fmt.Errorf("centroid %d has %d categorical values, want %d", i, len(c.Categorical), categoricalFeatures)
		}
	}
	return nil
}

// Predict returns the index of the closest centroid. Ties go to the lower index.
func (m *Model) Predict(p models.UserProfile) int {
	numeric := [numericFeatures]float64{float64(p.Age), p.DailyUsageHours}
	categorical := [categoricalFeatures]string{
		strings.TrimSpace(p.Gender),
		strings.TrimSpace(p.Occupation),
		strings.TrimSpace(p.EducationLevel),
		strings.TrimSpace(p.DeviceType),
	}

	best, bestCost := 0, math.Inf(1)
	for i, c := range m.Centroids {
		cost := 0.0
		for j, v := range numeric {
			d := v - c.Numeric[j]
			cost += d * d
		}
		mismatches := 0
		for j, v := range categorical {
			if v != c.Categorical[j] {
				mismatches++
			}
		}
		cost += m.Gamma * float64(mismatches)
		if cost < bestCost {
			best, bestCost = i, cost
		}
	}
	return best
}
