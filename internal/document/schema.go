package document

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/benvon/smart-docs/internal/models"
)

// Placeholders are the literal values used when a document has nothing usable
type Placeholders struct {
	Text      string `yaml:"text"`
	Task      string `yaml:"task"`
	Habit     string `yaml:"habit"`
	TableName string `yaml:"table_name"`
	TodoName  string `yaml:"todo_name"`
	HabitName string `yaml:"habit_name"`
}

// Schema is the registry of column types and default content. It is immutable
// once built; accessors hand out copies.
type Schema struct {
	types              []models.ColumnType
	optionPlaceholders []string
	tableColumns       []models.Column
	tableExample       []any
	placeholders       Placeholders
}

type schemaFile struct {
	ColumnTypes        []models.ColumnType `yaml:"column_types"`
	OptionPlaceholders []string            `yaml:"option_placeholders"`
	Table              tableFile           `yaml:"table"`
	Placeholders       Placeholders        `yaml:"placeholders"`
}

type tableFile struct {
	Columns []models.Column `yaml:"columns"`
	Example []any           `yaml:"example"`
}

var defaultSchemaFile = schemaFile{
	ColumnTypes: []models.ColumnType{
		models.ColumnTypeText,
		models.ColumnTypeOptions,
		models.ColumnTypeDate,
		models.ColumnTypeNumber,
		models.ColumnTypeCheckbox,
	},
	OptionPlaceholders: []string{"Option 1", "Option 2"},
	Table: tableFile{
		Columns: []models.Column{
			{Name: "Task", Type: models.ColumnTypeText},
			{Name: "Status", Type: models.ColumnTypeOptions, Options: []string{"Not Started", "In Progress", "Completed"}},
			{Name: "Priority", Type: models.ColumnTypeOptions, Options: []string{"High", "Medium", "Low"}},
			{Name: "Due Date", Type: models.ColumnTypeDate},
		},
		// the empty date cell becomes today's date when the row is coerced
		Example: []any{"Define goals", "Not Started", "High", ""},
	},
	Placeholders: Placeholders{
		Text:      "Example",
		Task:      "New Task 1",
		Habit:     "New Habit",
		TableName: "Untitled Table",
		TodoName:  "Untitled Todo",
		HabitName: "Untitled Habit",
	},
}

// DefaultSchema returns the built-in registry
func DefaultSchema() *Schema {
	s, err := newSchema(defaultSchemaFile)
	if err != nil {
		panic(fmt.Sprintf("default schema is invalid: %v", err))
	}
	return s
}

// LoadSchema reads a YAML registry from disk
func LoadSchema(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file: %w", err)
	}
	return ParseSchema(data)
}

// ParseSchema builds a registry from YAML. Sections that are left out keep
// their built-in values.
func ParseSchema(data []byte) (*Schema, error) {
	var f schemaFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse schema: %w", err)
	}

	merged := defaultSchemaFile
	if len(f.ColumnTypes) > 0 {
		merged.ColumnTypes = f.ColumnTypes
	}
	if len(f.OptionPlaceholders) > 0 {
		merged.OptionPlaceholders = f.OptionPlaceholders
	}
	if len(f.Table.Columns) > 0 {
		merged.Table = f.Table
	}
	merged.Placeholders = mergePlaceholders(defaultSchemaFile.Placeholders, f.Placeholders)

	return newSchema(merged)
}

func mergePlaceholders(base, override Placeholders) Placeholders {
	pick := func(def, v string) string {
		if strings.TrimSpace(v) == "" {
			return def
		}
		return v
	}
	return Placeholders{
		Text:      pick(base.Text, override.Text),
		Task:      pick(base.Task, override.Task),
		Habit:     pick(base.Habit, override.Habit),
		TableName: pick(base.TableName, override.TableName),
		TodoName:  pick(base.TodoName, override.TodoName),
		HabitName: pick(base.HabitName, override.HabitName),
	}
}

func newSchema(f schemaFile) (*Schema, error) {
	types := make([]models.ColumnType, 0, len(f.ColumnTypes))
	for _, t := range f.ColumnTypes {
		norm := models.ColumnType(strings.ToLower(strings.TrimSpace(string(t))))
		if norm == "" {
			return nil, errors.New("column_types contains an empty entry")
		}
		if !slices.Contains(types, norm) {
			types = append(types, norm)
		}
	}
	if !slices.Contains(types, models.ColumnTypeText) {
		return nil, errors.New("column_types must include text")
	}

	optionPlaceholders := make([]string, 0, len(f.OptionPlaceholders))
	for _, o := range f.OptionPlaceholders {
		if strings.TrimSpace(o) != "" {
			optionPlaceholders = append(optionPlaceholders, o)
		}
	}
	if len(optionPlaceholders) == 0 {
		return nil, errors.New("option_placeholders must not be empty")
	}

	columns := make([]models.Column, 0, len(f.Table.Columns))
	for i, c := range f.Table.Columns {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			return nil, fmt.Errorf("table column %d has no name", i)
		}
		ct := models.ColumnType(strings.ToLower(strings.TrimSpace(string(c.Type))))
		if !slices.Contains(types, ct) {
			return nil, fmt.Errorf("table column %q has unknown type %q", name, c.Type)
		}
		col := models.Column{Name: name, Type: ct}
		if ct == models.ColumnTypeOptions {
			if len(c.Options) == 0 {
				return nil, fmt.Errorf("options column %q has no options", name)
			}
			col.Options = slices.Clone(c.Options)
		}
		columns = append(columns, col)
	}
	if len(columns) == 0 {
		return nil, errors.New("table skeleton must have at least one column")
	}

	return &Schema{
		types:              types,
		optionPlaceholders: optionPlaceholders,
		tableColumns:       columns,
		tableExample:       slices.Clone(f.Table.Example),
		placeholders:       f.Placeholders,
	}, nil
}

// Types returns the allowed column types in registry order
func (s *Schema) Types() []models.ColumnType {
	return slices.Clone(s.types)
}

// Allows reports whether t is a registered column type
func (s *Schema) Allows(t models.ColumnType) bool {
	return slices.Contains(s.types, t)
}

// OptionPlaceholders returns the options synthesized for an options column without any
func (s *Schema) OptionPlaceholders() []string {
	return slices.Clone(s.optionPlaceholders)
}

// TableSkeleton returns a copy of the starter columns for tables
func (s *Schema) TableSkeleton() []models.Column {
	return cloneColumns(s.tableColumns)
}

// Placeholders returns the placeholder literals
func (s *Schema) Placeholders() Placeholders {
	return s.placeholders
}

// MarshalYAML encodes the registry in the same layout ParseSchema reads
func (s *Schema) MarshalYAML() (any, error) {
	return schemaFile{
		ColumnTypes:        s.Types(),
		OptionPlaceholders: s.OptionPlaceholders(),
		Table: tableFile{
			Columns: s.TableSkeleton(),
			Example: slices.Clone(s.tableExample),
		},
		Placeholders: s.placeholders,
	}, nil
}

func cloneColumns(cols []models.Column) []models.Column {
	out := make([]models.Column, len(cols))
	for i, c := range cols {
		out[i] = models.Column{Name: c.Name, Type: c.Type, Options: slices.Clone(c.Options)}
	}
	return out
}
