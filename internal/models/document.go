package models

import (
	"encoding/json"
)

// DocumentKind is the discriminator stored in a document's "type" field
type DocumentKind string

const (
	DocumentKindTable    DocumentKind = "table"
	DocumentKindTodoList DocumentKind = "todolist"
	DocumentKindHabit    DocumentKind = "habit"
	DocumentKindJournal  DocumentKind = "journal"
)

// ColumnType is the renderer type of a table column
type ColumnType string

const (
	ColumnTypeText     ColumnType = "text"
	ColumnTypeOptions  ColumnType = "options"
	ColumnTypeDate     ColumnType = "date"
	ColumnTypeNumber   ColumnType = "number"
	ColumnTypeCheckbox ColumnType = "checkbox"
)

// Column describes one table field
type Column struct {
	Name    string     `json:"name" yaml:"name"`
	Type    ColumnType `json:"type" yaml:"type"`
	Options []string   `json:"options,omitempty" yaml:"options,omitempty"`
}

// Row is one table record. Cells are string, float64 or bool depending on the column type.
type Row []any

// TodoItem is one entry of a todo list
type TodoItem struct {
	Task string `json:"task"`
	Done bool   `json:"done"`
}

// HabitItem is one entry of a habit tracker
type HabitItem struct {
	Habit string `json:"habit"`
	Done  bool   `json:"done"`
}

// Document is a canonical document. Which fields are populated depends on Kind;
// kinds without a validator keep their original content in Raw.
type Document struct {
	Name    string
	Kind    DocumentKind
	Columns []Column
	Values  []Row
	Todos   []TodoItem
	Habits  []HabitItem
	Raw     map[string]any
}

type tableJSON struct {
	Name    string       `json:"name"`
	Type    DocumentKind `json:"type"`
	Columns []Column     `json:"columns"`
	Values  []Row        `json:"values"`
}

type todoListJSON struct {
	Name  string       `json:"name"`
	Type  DocumentKind `json:"type"`
	Items []TodoItem   `json:"items"`
}

type habitJSON struct {
	Name  string       `json:"name"`
	Type  DocumentKind `json:"type"`
	Items []HabitItem  `json:"items"`
}

// IsPassThrough reports whether the document kind has no validator
func (d Document) IsPassThrough() bool {
	switch d.Kind {
	case DocumentKindTable, DocumentKindTodoList, DocumentKindHabit:
		return false
	default:
		return true
	}
}

// MarshalJSON encodes the document in its wire format: {name, type, columns?, values?, items?}
func (d Document) MarshalJSON() ([]byte, error) {
	switch d.Kind {
	case DocumentKindTable:
		return json.Marshal(tableJSON{Name: d.Name, Type: d.Kind, Columns: d.Columns, Values: d.Values})
	case DocumentKindTodoList:
		return json.Marshal(todoListJSON{Name: d.Name, Type: d.Kind, Items: d.Todos})
	case DocumentKindHabit:
		return json.Marshal(habitJSON{Name: d.Name, Type: d.Kind, Items: d.Habits})
	default:
		if d.Raw == nil {
			return json.Marshal(map[string]any{"name": d.Name, "type": d.Kind})
		}
		return json.Marshal(d.Raw)
	}
}

// Map returns the document as a generic JSON-shaped value, the same shape a
// decoded wire document has. Feeding it back to the normalizer is a no-op.
func (d Document) Map() map[string]any {
	switch d.Kind {
	case DocumentKindTable:
		columns := make([]any, 0, len(d.Columns))
		for _, c := range d.Columns {
			col := map[string]any{"name": c.Name, "type": string(c.Type)}
			if c.Options != nil {
				opts := make([]any, len(c.Options))
				for i, o := range c.Options {
					opts[i] = o
				}
				col["options"] = opts
			}
			columns = append(columns, col)
		}
		values := make([]any, 0, len(d.Values))
		for _, row := range d.Values {
			cells := make([]any, len(row))
			copy(cells, row)
			values = append(values, cells)
		}
		return map[string]any{"name": d.Name, "type": string(d.Kind), "columns": columns, "values": values}
	case DocumentKindTodoList:
		items := make([]any, 0, len(d.Todos))
		for _, it := range d.Todos {
			items = append(items, map[string]any{"task": it.Task, "done": it.Done})
		}
		return map[string]any{"name": d.Name, "type": string(d.Kind), "items": items}
	case DocumentKindHabit:
		items := make([]any, 0, len(d.Habits))
		for _, it := range d.Habits {
			items = append(items, map[string]any{"habit": it.Habit, "done": it.Done})
		}
		return map[string]any{"name": d.Name, "type": string(d.Kind), "items": items}
	default:
		if d.Raw == nil {
			return map[string]any{"name": d.Name, "type": string(d.Kind)}
		}
		return d.Raw
	}
}
