package document

import "fmt"

// RepairKind classifies a silent repair applied during normalization
type RepairKind string

const (
	RepairNameDefaulted      RepairKind = "name_defaulted"
	RepairColumnDropped      RepairKind = "column_dropped"
	RepairColumnTypeCoerced  RepairKind = "column_type_coerced"
	RepairOptionsSplit       RepairKind = "options_split"
	RepairOptionsSynthesized RepairKind = "options_synthesized"
	RepairColumnsDefaulted   RepairKind = "columns_defaulted"
	RepairValuesDefaulted    RepairKind = "values_defaulted"
	RepairRowDropped         RepairKind = "row_dropped"
	RepairRowResized         RepairKind = "row_resized"
	RepairCellCoerced        RepairKind = "cell_coerced"
	RepairDateTruncated      RepairKind = "date_truncated"
	RepairRowSynthesized     RepairKind = "row_synthesized"
	RepairItemDropped        RepairKind = "item_dropped"
	RepairItemSynthesized    RepairKind = "item_synthesized"
	RepairDoneCoerced        RepairKind = "done_coerced"
)

// Repair records one correction. Path points into the candidate, e.g. "values[2][1]".
type Repair struct {
	Kind RepairKind `json:"kind"`
	Path string     `json:"path"`
}

// Report collects the repairs made while normalizing one candidate.
// A nil *Report discards everything, so callers that don't care pay nothing.
type Report struct {
	Repairs []Repair `json:"repairs"`
}

func (r *Report) add(kind RepairKind, path string) {
	if r == nil {
		return
	}
	r.Repairs = append(r.Repairs, Repair{Kind: kind, Path: path})
}

func (r *Report) addf(kind RepairKind, format string, args ...any) {
	if r == nil {
		return
	}
	r.add(kind, fmt.Sprintf(format, args...))
}

// Len returns the number of recorded repairs
func (r *Report) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Repairs)
}

// Counts groups the recorded repairs by kind
func (r *Report) Counts() map[RepairKind]int {
	counts := make(map[RepairKind]int)
	if r == nil {
		return counts
	}
	for _, rep := range r.Repairs {
		counts[rep.Kind]++
	}
	return counts
}

// Has reports whether at least one repair of the given kind was recorded
func (r *Report) Has(kind RepairKind) bool {
	if r == nil {
		return false
	}
	for _, rep := range r.Repairs {
		if rep.Kind == kind {
			return true
		}
	}
	return false
}
