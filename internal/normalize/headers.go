package normalize

import (
	"sort"

	"github.com/agext/levenshtein"

	"github.com/joseph-ayodele/wine-ingest/internal/entity"
)

const stemMatchScore = 0.95

// HeaderMatch is the best dictionary hit for one column label.
type HeaderMatch struct {
	Column    int
	Label     string
	Field     entity.Field
	Score     float64
	Authority int
}

// ScoreHeader finds the closest synonym for a raw header label. Exact matches
// score 1; otherwise the Levenshtein similarity, raised to 0.95 when the stemmed
// words are equal. Ties go to the synonym listed first.
func (n *Normalizer) ScoreHeader(label string) (HeaderMatch, bool) {
	clean := CleanHeader(label)
	if clean == "" {
		return HeaderMatch{}, false
	}
	stem := stemPhrase(clean)

	best := HeaderMatch{Label: label, Authority: -1}
	for _, syn := range n.dict.synonyms {
		var score float64
		switch {
		case clean == syn.clean:
			score = 1
		default:
			score = levenshtein.Similarity(clean, syn.clean, nil)
			if stem == syn.stem && score < stemMatchScore {
				score = stemMatchScore
			}
		}
		// synonyms are in authority order, so only a strictly better score replaces
		if score > best.Score {
			best.Score = score
			best.Field = syn.field
			best.Authority = syn.authority
		}
	}
	if best.Authority < 0 {
		return HeaderMatch{}, false
	}
	return best, true
}

// MapHeaders binds header columns to canonical fields. Only matches at or above
// the header threshold count. Each field goes to one column: the highest score
// wins, then the more authoritative synonym, then the leftmost column.
func (n *Normalizer) MapHeaders(header []string) *entity.HeaderMapping {
	var matches []HeaderMatch
	for col, label := range header {
		m, ok := n.ScoreHeader(label)
		if !ok {
			continue
		}
		m.Column = col
		if m.Score < n.headerThreshold {
			n.logger.Debug("normalize.header.below_threshold",
				"column", col, "label", label, "best_field", m.Field, "score", round2(m.Score))
			continue
		}
		matches = append(matches, m)
	}

	sort.SliceStable(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Authority != b.Authority {
			return a.Authority < b.Authority
		}
		return a.Column < b.Column
	})

	mapping := &entity.HeaderMapping{}
	for _, m := range matches {
		err := mapping.Add(entity.ColumnMapping{
			Column:     m.Column,
			Label:      m.Label,
			Field:      m.Field,
			Confidence: m.Score,
			Origin:     entity.OriginDictionary,
		})
		if err != nil {
			kept, _ := mapping.ColumnFor(m.Field)
			n.logger.Info("normalize.header.discarded",
				"column", m.Column, "label", m.Label, "field", m.Field,
				"score", round2(m.Score), "kept_column", kept.Column, "kept_label", kept.Label)
			continue
		}
		n.logger.Debug("normalize.header.mapped",
			"column", m.Column, "label", m.Label, "field", m.Field, "score", round2(m.Score))
	}
	return mapping
}

// LooksLikeHeader reports whether a row maps at least two distinct fields, used to
// skip header rows repeated inside the data.
func (n *Normalizer) LooksLikeHeader(row []string, mapping *entity.HeaderMapping) bool {
	hits := 0
	for col, cell := range row {
		f, ok := mapping.FieldFor(col)
		if !ok {
			continue
		}
		cm, _ := mapping.ColumnFor(f)
		if CleanHeader(cell) != "" && CleanHeader(cell) == CleanHeader(cm.Label) {
			hits++
		}
	}
	return hits >= 2 || (hits == len(mapping.Columns) && hits > 0)
}

func round2(f float64) float64 {
	return float64(int(f*100+0.5)) / 100
}
