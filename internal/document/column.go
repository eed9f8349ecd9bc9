package document

import (
	"strconv"
	"strings"

	"github.com/benvon/smart-docs/internal/models"
)

// SanitizeColumn repairs one column descriptor. The second return is false
// when the candidate is not an object or has no usable name.
func (n *Normalizer) SanitizeColumn(candidate any) (models.Column, bool) {
	return n.sanitizeColumn(candidate, nil, "column")
}

func (n *Normalizer) sanitizeColumn(candidate any, report *Report, path string) (models.Column, bool) {
	obj, ok := asObject(candidate)
	if !ok {
		report.add(RepairColumnDropped, path)
		return models.Column{}, false
	}

	name := strings.TrimSpace(stringify(obj["name"]))
	if name == "" {
		report.add(RepairColumnDropped, path)
		return models.Column{}, false
	}

	rawType, present := obj["type"]
	ct := models.ColumnType(strings.ToLower(strings.TrimSpace(stringify(rawType))))
	if !n.schema.Allows(ct) {
		if present {
			report.addf(RepairColumnTypeCoerced, "%s.type", path)
		}
		ct = models.ColumnTypeText
	}

	col := models.Column{Name: name, Type: ct}
	if ct == models.ColumnTypeOptions {
		col.Options = n.sanitizeOptions(obj, report, path)
	}
	return col, true
}

func (n *Normalizer) sanitizeOptions(obj map[string]any, report *Report, path string) []string {
	raw := obj["options"]
	if !truthy(raw) {
		raw = obj["choices"]
	}

	var opts []string
	switch v := raw.(type) {
	case string:
		for _, piece := range strings.Split(v, ",") {
			if p := strings.TrimSpace(piece); p != "" {
				opts = append(opts, p)
			}
		}
		if len(opts) > 0 {
			report.addf(RepairOptionsSplit, "%s.options", path)
		}
	default:
		if list, ok := asList(v); ok {
			for _, item := range list {
				if s := stringify(item); strings.TrimSpace(s) != "" {
					opts = append(opts, s)
				}
			}
		}
	}

	if len(opts) == 0 {
		report.addf(RepairOptionsSynthesized, "%s.options", path)
		return n.schema.OptionPlaceholders()
	}
	return opts
}

func (n *Normalizer) sanitizeColumns(candidate any, report *Report) []models.Column {
	list, ok := asList(candidate)
	if !ok {
		return nil
	}
	columns := make([]models.Column, 0, len(list))
	for i, c := range list {
		if col, ok := n.sanitizeColumn(c, report, columnPath(i)); ok {
			columns = append(columns, col)
		}
	}
	return columns
}

func columnPath(i int) string {
	return "columns[" + strconv.Itoa(i) + "]"
}
