// Package recommend suggests document templates for a user profile. A
// k-prototypes model places the profile in a cluster and the templates
// picked by dataset users of that cluster become the suggestions.
package recommend

import (
	"context"
	"errors"
	"io/fs"
	"math/rand/v2"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/benvon/smart-docs/internal/document"
	"github.com/benvon/smart-docs/internal/metrics"
	"github.com/benvon/smart-docs/internal/models"
	"github.com/benvon/smart-docs/internal/telemetry"
)

// MaxRecommendations caps the templates returned per request
const MaxRecommendations = 3

// Reasons given with an empty recommendation list
const (
	ReasonNoUsers     = "No users found in this cluster"
	ReasonNoTemplates = "Cluster has no templates"
)

// Recommender answers recommendation requests. It is read-only after
// construction and safe for concurrent use.
type Recommender struct {
	model      *Model
	dataset    *Dataset
	normalizer *document.Normalizer
	logger     *zap.Logger
	pick       func(n int) int
}

// Option configures a Recommender
type Option func(*Recommender)

// WithPicker replaces the random choice of a dataset user
func WithPicker(pick func(n int) int) Option {
	return func(r *Recommender) {
		if pick != nil {
			r.pick = pick
		}
	}
}

// New creates a recommender. model and dataset may be nil; requests then fail
// the way they would with missing files.
func New(model *Model, dataset *Dataset, normalizer *document.Normalizer, logger *zap.Logger, opts ...Option) *Recommender {
	if logger == nil {
		logger = zap.NewNop()
	}
	if normalizer == nil {
		normalizer = document.New()
	}
	if dataset == nil {
		dataset = NewDataset(nil)
	}
	r := &Recommender{
		model:      model,
		dataset:    dataset,
		normalizer: normalizer,
		logger:     logger,
		pick:       rand.IntN,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Load builds a recommender from a model file and a dataset file. A missing
// file is logged and leaves that part unloaded; any other error is returned.
func Load(modelPath, dataPath string, normalizer *document.Normalizer, logger *zap.Logger, opts ...Option) (*Recommender, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	model, err := LoadModel(modelPath)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		logger.Warn("recommender_model_missing", zap.String("path", modelPath))
		model = nil
	}

	dataset, err := LoadDataset(dataPath)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		logger.Warn("recommender_dataset_missing", zap.String("path", dataPath))
		dataset = nil
	}

	r := New(model, dataset, normalizer, logger, opts...)
	logger.Info("recommender_loaded",
		zap.Bool("model", model != nil),
		zap.Int("users", r.dataset.Len()),
		zap.Int("skipped_rows", r.dataset.Skipped))
	return r, nil
}

// Ready reports whether recommendations can be served
func (r *Recommender) Ready() error {
	if r.model == nil {
		return ErrModelNotLoaded
	}
	return nil
}

// Random recommends for a user sampled from the dataset
func (r *Recommender) Random(ctx context.Context) (*models.Recommendation, error) {
	if r.model == nil {
		return nil, ErrModelNotLoaded
	}
	if r.dataset.Len() == 0 {
		return nil, ErrDatasetEmpty
	}
	user := r.dataset.Users[r.pick(r.dataset.Len())]

	rec := r.recommend(ctx, models.RecommendationModeRandom, user.Profile)
	rec.UserUsed = profileFeatures(user.Profile)
	return rec, nil
}

// ForUser recommends for the given profile
func (r *Recommender) ForUser(ctx context.Context, profile models.UserProfile) (*models.Recommendation, error) {
	if r.model == nil {
		return nil, ErrModelNotLoaded
	}
	rec := r.recommend(ctx, models.RecommendationModeInputUser, profile)
	rec.User = &profile
	return rec, nil
}

func (r *Recommender) recommend(ctx context.Context, mode models.RecommendationMode, profile models.UserProfile) *models.Recommendation {
	_, span := telemetry.StartSpan(ctx, "recommend."+string(mode))
	defer span.End()

	cluster := r.model.Predict(profile)
	span.SetAttributes(attribute.Int("cluster", cluster))
	rec := &models.Recommendation{Mode: mode, Cluster: cluster, Recommendations: []*models.Document{}}

	users := r.dataset.Cluster(cluster)
	if len(users) == 0 {
		rec.Reason = ReasonNoUsers
		metrics.ObserveRecommendation(string(mode), "no_users")
		return rec
	}

	var templates []map[string]any
	for _, u := range users {
		templates = append(templates, u.Templates...)
	}
	if len(templates) == 0 {
		rec.Reason = ReasonNoTemplates
		metrics.ObserveRecommendation(string(mode), "no_templates")
		return rec
	}

	for _, t := range uniqueByName(templates, MaxRecommendations) {
		doc, report, err := r.normalizer.ValidateReport(t)
		if err != nil {
			r.logger.Warn("recommendation_template_rejected", zap.Int("cluster", cluster), zap.Error(err))
			continue
		}
		metrics.ObserveDocument(string(doc.Kind), report.Counts())
		rec.Recommendations = append(rec.Recommendations, doc)
	}

	metrics.ObserveRecommendation(string(mode), "ok")
	r.logger.Debug("recommendation_served",
		zap.String("mode", string(mode)),
		zap.Int("cluster", cluster),
		zap.Int("candidates", len(templates)),
		zap.Int("returned", len(rec.Recommendations)))
	return rec
}

// uniqueByName keeps the first template of every case-insensitive name, in
// order, up to limit. Templates without a string name are skipped.
func uniqueByName(templates []map[string]any, limit int) []map[string]any {
	seen := make(map[string]struct{}, len(templates))
	out := make([]map[string]any, 0, limit)
	for _, t := range templates {
		name, _ := t["name"].(string)
		key := strings.ToLower(strings.TrimSpace(name))
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, t)
		if len(out) == limit {
			break
		}
	}
	return out
}
