package document

import (
	"fmt"
	"slices"

	"github.com/benvon/smart-docs/internal/models"
)

// CoerceRow fits one candidate row to columns: exactly one cell per column,
// each in the representation its column type requires. Candidates that are
// not sequences are skipped (second return false).
func (n *Normalizer) CoerceRow(candidate any, columns []models.Column) (models.Row, bool) {
	return n.coerceRow(candidate, columns, nil, "row")
}

// ExampleRow builds a placeholder row for columns, using text for text cells
func (n *Normalizer) ExampleRow(columns []models.Column, text string) models.Row {
	today := n.Today()
	row := make(models.Row, len(columns))
	for i, col := range columns {
		switch col.Type {
		case models.ColumnTypeDate:
			row[i] = today
		case models.ColumnTypeNumber:
			row[i] = float64(0)
		case models.ColumnTypeCheckbox:
			row[i] = false
		case models.ColumnTypeOptions:
			if len(col.Options) > 0 {
				row[i] = col.Options[0]
			} else {
				row[i] = ""
			}
		default:
			row[i] = text
		}
	}
	return row
}

func (n *Normalizer) coerceRow(candidate any, columns []models.Column, report *Report, path string) (models.Row, bool) {
	cells, ok := asList(candidate)
	if !ok {
		report.add(RepairRowDropped, path)
		return nil, false
	}
	if len(cells) != len(columns) {
		report.add(RepairRowResized, path)
	}

	today := n.Today()
	row := make(models.Row, len(columns))
	for i, col := range columns {
		var v any = ""
		if i < len(cells) {
			v = cells[i]
		}
		row[i] = coerceCell(v, col, today, report, fmt.Sprintf("%s[%d]", path, i))
	}
	return row, true
}

func coerceCell(v any, col models.Column, today string, report *Report, path string) any {
	switch col.Type {
	case models.ColumnTypeDate:
		if isISODate(v) {
			return v
		}
		if truthy(v) {
			// non-ISO text is cut down, not parsed
			report.add(RepairDateTruncated, path)
			return firstRunes(stringify(v), 10)
		}
		report.add(RepairCellCoerced, path)
		return today

	case models.ColumnTypeNumber:
		f, ok := toNumber(v)
		if _, isFloat := v.(float64); !isFloat || !ok {
			report.add(RepairCellCoerced, path)
		}
		if !ok {
			return float64(0)
		}
		return f

	case models.ColumnTypeCheckbox:
		if b, ok := v.(bool); ok {
			return b
		}
		report.add(RepairCellCoerced, path)
		return toBool(v)

	case models.ColumnTypeOptions:
		s := stringify(v)
		if slices.Contains(col.Options, s) {
			if _, ok := v.(string); !ok {
				report.add(RepairCellCoerced, path)
			}
			return s
		}
		report.add(RepairCellCoerced, path)
		if len(col.Options) > 0 {
			return col.Options[0]
		}
		return s

	default:
		if s, ok := v.(string); ok {
			return s
		}
		report.add(RepairCellCoerced, path)
		return stringify(v)
	}
}
