package normalize

import (
	"strings"

	"github.com/agext/levenshtein"

	"github.com/joseph-ayodele/wine-ingest/internal/entity"
)

// Party is what a producer/supplier cell most likely names.
type Party string

const (
	PartyUnknown  Party = "unknown"
	PartySupplier Party = "supplier"
	PartyWinery   Party = "winery"
)

const (
	partyMatchThreshold = 0.9
	partyMinLen         = 4
	// hints at least this long also match as word prefixes ("distrib" -> "distribuzione")
	hintPrefixLen = 6
)

// compact folds s and keeps only letters and digits, so "Pellegrini S.p.A."
// becomes "pellegrinispa".
func compact(s string) string {
	return strings.Join(words(strings.ReplaceAll(s, ".", "")), "")
}

// ClassifyParty checks the known supplier list, then the known winery list, then
// the supplier hints (company suffixes, "distribuzioni", ...).
func (n *Normalizer) ClassifyParty(s string) Party {
	c := compact(s)
	if c == "" {
		return PartyUnknown
	}
	if matchesAny(c, n.dict.suppliers) {
		return PartySupplier
	}
	if matchesAny(c, n.dict.wineries) {
		return PartyWinery
	}
	for _, w := range words(strings.ReplaceAll(s, ".", "")) {
		for _, h := range n.dict.hints {
			if w == h || (len(h) >= hintPrefixLen && strings.HasPrefix(w, h)) {
				return PartySupplier
			}
		}
	}
	return PartyUnknown
}

// resolveParties fixes distributors read into the producer column and producers
// read into the supplier column. Only empty fields are filled.
func (n *Normalizer) resolveParties(c *entity.CandidateRecord) {
	if c.Winery != "" && c.Supplier == "" && n.ClassifyParty(c.Winery) == PartySupplier {
		n.logger.Debug("normalize.winery.is_supplier", "row", c.SourceRow, "value", c.Winery)
		c.Supplier, c.Winery = c.Winery, ""
	}
	if c.Winery == "" && c.Supplier != "" && n.ClassifyParty(c.Supplier) == PartyWinery {
		n.logger.Debug("normalize.supplier.is_winery", "row", c.SourceRow, "value", c.Supplier)
		c.Winery = c.Supplier
	}
}

func matchesAny(value string, known []string) bool {
	for _, k := range known {
		if partialSimilarity(value, k) >= partyMatchThreshold {
			return true
		}
	}
	return false
}

// partialSimilarity is the best Levenshtein similarity of the shorter string
// against every equally long window of the longer one.
func partialSimilarity(a, b string) float64 {
	short, long := []rune(a), []rune(b)
	if len(short) > len(long) {
		short, long = long, short
	}
	if len(short) < partyMinLen {
		return 0
	}
	s := string(short)
	best := 0.0
	for i := 0; i+len(short) <= len(long); i++ {
		if sim := levenshtein.Similarity(s, string(long[i:i+len(short)]), nil); sim > best {
			best = sim
			if best == 1 {
				break
			}
		}
	}
	return best
}
