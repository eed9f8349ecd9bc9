// Package document turns loosely structured candidate documents, usually
// produced by a language model, into canonical documents that a renderer can
// rely on. Apart from a non-object top-level value, every malformation is
// repaired in place.
package document

import (
	"fmt"
	"strings"
	"time"

	"github.com/benvon/smart-docs/internal/models"
)

// Normalizer validates and repairs candidate documents. It holds no mutable
// state and is safe for concurrent use.
type Normalizer struct {
	schema *Schema
	now    func() time.Time
}

// Option configures a Normalizer
type Option func(*Normalizer)

// WithSchema replaces the built-in schema registry
func WithSchema(s *Schema) Option {
	return func(n *Normalizer) {
		if s != nil {
			n.schema = s
		}
	}
}

// WithClock sets the clock used for date defaults
func WithClock(now func() time.Time) Option {
	return func(n *Normalizer) {
		if now != nil {
			n.now = now
		}
	}
}

// New creates a Normalizer using the default schema unless overridden
func New(opts ...Option) *Normalizer {
	n := &Normalizer{
		schema: DefaultSchema(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Schema returns the registry in use
func (n *Normalizer) Schema() *Schema {
	return n.schema
}

// Today returns the current date in ISO form
func (n *Normalizer) Today() string {
	return n.now().Format(time.DateOnly)
}

// KindOf reads the kind discriminator of a candidate
func KindOf(candidate any) models.DocumentKind {
	obj, ok := asObject(candidate)
	if !ok {
		return ""
	}
	return normalizeKind(stringify(obj["type"]))
}

func normalizeKind(s string) models.DocumentKind {
	return models.DocumentKind(strings.ToLower(strings.TrimSpace(s)))
}

// Validate normalizes a candidate, choosing the validator from its "type" field
func (n *Normalizer) Validate(candidate any) (*models.Document, error) {
	return n.validate("", candidate, nil)
}

// ValidateKind normalizes a candidate as the given kind. An empty kind falls
// back to the candidate's own "type" field.
func (n *Normalizer) ValidateKind(kind models.DocumentKind, candidate any) (*models.Document, error) {
	return n.validate(kind, candidate, nil)
}

// ValidateReport behaves like Validate and also returns the repairs it made
func (n *Normalizer) ValidateReport(candidate any) (*models.Document, *Report, error) {
	return n.ValidateKindReport("", candidate)
}

// ValidateKindReport behaves like ValidateKind and also returns the repairs it made
func (n *Normalizer) ValidateKindReport(kind models.DocumentKind, candidate any) (*models.Document, *Report, error) {
	report := &Report{Repairs: []Repair{}}
	doc, err := n.validate(kind, candidate, report)
	if err != nil {
		return nil, nil, err
	}
	return doc, report, nil
}

func (n *Normalizer) validate(kind models.DocumentKind, candidate any, report *Report) (*models.Document, error) {
	switch d := candidate.(type) {
	case models.Document:
		candidate = d.Map()
	case *models.Document:
		if d != nil {
			candidate = d.Map()
		}
	}

	obj, ok := asObject(candidate)
	if !ok {
		return nil, structuralError(candidate)
	}

	if kind == "" {
		kind = KindOf(obj)
	} else {
		kind = normalizeKind(string(kind))
	}

	switch kind {
	case models.DocumentKindTable:
		return n.table(obj, report), nil
	case models.DocumentKindTodoList:
		return n.todoList(obj, report), nil
	case models.DocumentKindHabit:
		return n.habit(obj, report), nil
	default:
		return &models.Document{Name: stringify(obj["name"]), Kind: kind, Raw: obj}, nil
	}
}

func (n *Normalizer) name(obj map[string]any, fallback string, report *Report) string {
	v, ok := obj["name"]
	if !ok || v == nil {
		report.add(RepairNameDefaulted, "name")
		return fallback
	}
	return stringify(v)
}

func (n *Normalizer) table(obj map[string]any, report *Report) *models.Document {
	doc := &models.Document{
		Name: n.name(obj, n.schema.Placeholders().TableName, report),
		Kind: models.DocumentKindTable,
	}

	values, ok := asList(obj["values"])
	if !ok && truthy(obj["values"]) {
		report.add(RepairRowDropped, "values")
	}

	var rows []models.Row
	columns := n.sanitizeColumns(obj["columns"], report)
	if len(columns) == 0 {
		report.add(RepairColumnsDefaulted, "columns")
		columns = n.schema.TableSkeleton()
		if len(values) == 0 {
			report.add(RepairValuesDefaulted, "values")
			rows = append(rows, n.skeletonExample(columns))
		}
	}

	for i, v := range values {
		if row, ok := n.coerceRow(v, columns, report, fmt.Sprintf("values[%d]", i)); ok {
			rows = append(rows, row)
		}
	}
	if len(rows) == 0 {
		report.add(RepairRowSynthesized, "values")
		rows = []models.Row{n.ExampleRow(columns, n.schema.Placeholders().Text)}
	}

	doc.Columns = columns
	doc.Values = rows
	return doc
}

func (n *Normalizer) todoList(obj map[string]any, report *Report) *models.Document {
	doc := &models.Document{
		Name: n.name(obj, n.schema.Placeholders().TodoName, report),
		Kind: models.DocumentKindTodoList,
	}

	items, _ := asList(obj["items"])
	for i, it := range items {
		path := fmt.Sprintf("items[%d]", i)
		item, ok := asObject(it)
		if !ok {
			report.add(RepairItemDropped, path)
			continue
		}
		task := strings.TrimSpace(stringify(item["task"]))
		if task == "" {
			report.add(RepairItemDropped, path)
			continue
		}
		doc.Todos = append(doc.Todos, models.TodoItem{Task: task, Done: n.done(item, report, path)})
	}

	if len(doc.Todos) == 0 {
		report.add(RepairItemSynthesized, "items")
		doc.Todos = []models.TodoItem{{Task: n.schema.Placeholders().Task}}
	}
	return doc
}

func (n *Normalizer) habit(obj map[string]any, report *Report) *models.Document {
	doc := &models.Document{
		Name: n.name(obj, n.schema.Placeholders().HabitName, report),
		Kind: models.DocumentKindHabit,
	}

	source, _ := firstTruthy(obj, "items", "habits")
	items, _ := asList(source)
	for i, it := range items {
		path := fmt.Sprintf("items[%d]", i)
		item, ok := asObject(it)
		if !ok {
			report.add(RepairItemDropped, path)
			continue
		}
		label, _ := firstTruthy(item, "habit", "task", "name")
		habit := strings.TrimSpace(stringify(label))
		if habit == "" {
			report.add(RepairItemDropped, path)
			continue
		}
		doc.Habits = append(doc.Habits, models.HabitItem{Habit: habit, Done: n.done(item, report, path)})
	}

	if len(doc.Habits) == 0 {
		report.add(RepairItemSynthesized, "items")
		doc.Habits = []models.HabitItem{{Habit: n.schema.Placeholders().Habit}}
	}
	return doc
}

func (n *Normalizer) done(item map[string]any, report *Report, path string) bool {
	v, ok := item["done"]
	if !ok {
		return false
	}
	if b, isBool := v.(bool); isBool {
		return b
	}
	report.addf(RepairDoneCoerced, "%s.done", path)
	return toBool(v)
}

func (n *Normalizer) skeletonExample(columns []models.Column) models.Row {
	row, ok := n.coerceRow(n.schema.tableExample, columns, nil, "")
	if !ok {
		return n.ExampleRow(columns, n.schema.Placeholders().Text)
	}
	return row
}

// DefaultSkeleton returns the starter table: the registry's columns and one example row
func (n *Normalizer) DefaultSkeleton() ([]models.Column, []models.Row) {
	columns := n.schema.TableSkeleton()
	return columns, []models.Row{n.skeletonExample(columns)}
}

// DefaultDocument is the content written for a new file before anything is
// generated for it. Unknown kinds get a todo list.
func (n *Normalizer) DefaultDocument(kind models.DocumentKind, name string) *models.Document {
	if strings.TrimSpace(name) == "" {
		name = "Untitled"
	}
	p := n.schema.Placeholders()

	switch normalizeKind(string(kind)) {
	case models.DocumentKindTable:
		columns, rows := n.DefaultSkeleton()
		return &models.Document{Name: name, Kind: models.DocumentKindTable, Columns: columns, Values: rows}
	case models.DocumentKindHabit:
		return &models.Document{Name: name, Kind: models.DocumentKindHabit, Habits: []models.HabitItem{{Habit: p.Habit}}}
	case models.DocumentKindJournal:
		return &models.Document{
			Name: name,
			Kind: models.DocumentKindJournal,
			Raw: map[string]any{
				"name": name,
				"type": string(models.DocumentKindJournal),
				"entries": []any{
					map[string]any{"date": n.Today(), "text": ""},
				},
			},
		}
	default:
		return &models.Document{Name: name, Kind: models.DocumentKindTodoList, Todos: []models.TodoItem{{Task: p.Task}}}
	}
}
