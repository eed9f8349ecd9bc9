package store

import (
	"context"
	"strings"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
)

// DefaultMatchCutoff is the minimum similarity for a fuzzy filename match
const DefaultMatchCutoff = 0.4

// Match is a stored file together with its similarity to a query
type Match struct {
	Filename string  `json:"filename"`
	Score    float64 `json:"score"`
}

// FindBestMatch resolves a loose document reference ("my workout plan",
// "workout_plan.json") to a stored file name. An exact file name wins
// outright; otherwise the stem with the highest Levenshtein similarity at or
// above the cutoff is chosen.
func (s *FileStore) FindBestMatch(ctx context.Context, query string) (Match, error) {
	files, err := s.List(ctx)
	if err != nil {
		return Match{}, err
	}

	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" || len(files) == 0 {
		return Match{}, ErrNoMatch
	}

	direct := strings.TrimSuffix(q, FileExt) + FileExt
	safe := SafeFilename(strings.TrimSuffix(q, FileExt))
	for _, f := range files {
		if f == direct || f == safe {
			return Match{Filename: f, Score: 1}, nil
		}
	}

	q = strings.TrimSuffix(q, FileExt)
	q = strings.ReplaceAll(q, "_", " ")

	lev := metrics.NewLevenshtein()
	best := Match{}
	for _, f := range files {
		score := strutil.Similarity(q, Stem(f), lev)
		if score > best.Score {
			best = Match{Filename: f, Score: score}
		}
	}

	if best.Filename == "" || best.Score < s.cutoff {
		return Match{}, ErrNoMatch
	}
	return best, nil
}

// Stem is the human form of a stored file name: extension dropped and
// underscores read as spaces.
func Stem(filename string) string {
	stem := strings.TrimSuffix(strings.ToLower(filename), FileExt)
	return strings.ReplaceAll(stem, "_", " ")
}
