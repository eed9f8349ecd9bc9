package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/benvon/smart-docs/internal/document"
	"github.com/benvon/smart-docs/internal/metrics"
	"github.com/benvon/smart-docs/internal/models"
	"github.com/benvon/smart-docs/internal/services/ai"
)

// ErrUnusableOutput is returned when model output parsed but held nothing the
// normalizer could keep.
var ErrUnusableOutput = errors.New("model output has no usable content")

// Generator asks the model for document content and normalizes what comes back
type Generator struct {
	provider   ai.AIProvider
	normalizer *document.Normalizer
	logger     *zap.Logger
}

// NewGenerator creates a content generator
func NewGenerator(provider ai.AIProvider, normalizer *document.Normalizer, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if normalizer == nil {
		normalizer = document.New()
	}
	return &Generator{provider: provider, normalizer: normalizer, logger: logger}
}

// Enabled reports whether a model is configured
func (g *Generator) Enabled() bool {
	return g != nil && g.provider != nil
}

func (g *Generator) complete(ctx context.Context, operation, prompt string, jsonMode bool) (string, error) {
	if !g.Enabled() {
		return "", ai.ErrNotConfigured
	}
	return g.provider.Complete(ctx, ai.CompletionRequest{
		Operation:   operation,
		Prompt:      prompt,
		Temperature: ai.TemperatureContent,
		JSON:        jsonMode,
	})
}

// Document generates a whole document. The model's own "type" wins when it
// names one; otherwise the requested kind is used.
func (g *Generator) Document(ctx context.Context, name string, kind models.DocumentKind, userRequest string) (*models.Document, error) {
	raw, err := g.complete(ctx, "generate_content", ai.ContentPrompt(name, string(kind), userRequest), true)
	if err != nil {
		return nil, err
	}
	parsed, err := ai.ExtractJSONObject(raw)
	if err != nil {
		return nil, err
	}
	if document.KindOf(parsed) == "" {
		parsed["type"] = string(kind)
	}
	return g.normalize(parsed)
}

// Row generates one table row for the given columns, coerced to their types
func (g *Generator) Row(ctx context.Context, columns []models.Column, userRequest string) (models.Row, error) {
	columnsJSON, err := json.Marshal(columns)
	if err != nil {
		return nil, fmt.Errorf("failed to encode columns: %w", err)
	}
	raw, err := g.complete(ctx, "generate_row", ai.RowPrompt(string(columnsJSON), userRequest), false)
	if err != nil {
		return nil, err
	}
	arr, err := ai.ExtractJSONArray(raw)
	if err != nil {
		return nil, err
	}
	row, ok := g.normalizer.CoerceRow(arr, columns)
	if !ok {
		return nil, ErrUnusableOutput
	}
	return row, nil
}

// TodoItem generates one todo list entry
func (g *Generator) TodoItem(ctx context.Context, userRequest string) (models.TodoItem, error) {
	doc, err := g.item(ctx, "generate_todo_item", ai.TodoItemPrompt(userRequest), models.DocumentKindTodoList)
	if err != nil {
		return models.TodoItem{}, err
	}
	return doc.Todos[0], nil
}

// HabitItem generates one habit tracker entry
func (g *Generator) HabitItem(ctx context.Context, userRequest string) (models.HabitItem, error) {
	doc, err := g.item(ctx, "generate_habit_item", ai.HabitItemPrompt(userRequest), models.DocumentKindHabit)
	if err != nil {
		return models.HabitItem{}, err
	}
	return doc.Habits[0], nil
}

// item runs a single generated entry through the list validator so it gets
// the same label and done handling as a stored document.
func (g *Generator) item(ctx context.Context, operation, prompt string, kind models.DocumentKind) (*models.Document, error) {
	raw, err := g.complete(ctx, operation, prompt, true)
	if err != nil {
		return nil, err
	}
	obj, err := ai.ExtractJSONObject(raw)
	if err != nil {
		return nil, err
	}
	doc, report, err := g.normalizer.ValidateKindReport(kind, map[string]any{"name": "", "items": []any{obj}})
	if err != nil {
		return nil, err
	}
	if report.Has(document.RepairItemSynthesized) {
		return nil, ErrUnusableOutput
	}
	return doc, nil
}

// Enhance personalizes a template for a user profile. The answer keeps the
// template's kind unless the model names another one.
func (g *Generator) Enhance(ctx context.Context, template map[string]any, profile map[string]any) (*models.Document, error) {
	if profile == nil {
		profile = map[string]any{}
	}
	templateJSON, err := json.Marshal(template)
	if err != nil {
		return nil, fmt.Errorf("failed to encode template: %w", err)
	}
	profileJSON, err := json.Marshal(profile)
	if err != nil {
		return nil, fmt.Errorf("failed to encode profile: %w", err)
	}

	raw, err := g.complete(ctx, "enhance", ai.EnhancePrompt(string(templateJSON), string(profileJSON)), true)
	if err != nil {
		return nil, err
	}
	parsed, err := ai.ExtractJSONObject(raw)
	if err != nil {
		return nil, err
	}
	if document.KindOf(parsed) == "" {
		if kind := document.KindOf(template); kind != "" {
			parsed["type"] = string(kind)
		}
	}
	return g.normalize(parsed)
}

func (g *Generator) normalize(candidate map[string]any) (*models.Document, error) {
	doc, report, err := g.normalizer.ValidateReport(candidate)
	if err != nil {
		metrics.ObserveRejected()
		return nil, err
	}
	metrics.ObserveDocument(string(doc.Kind), report.Counts())
	if report.Len() > 0 {
		g.logger.Debug("document_repaired",
			zap.String("kind", string(doc.Kind)),
			zap.Int("repairs", report.Len()))
	}
	return doc, nil
}
