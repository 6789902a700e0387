package dedup

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/joseph-ayodele/wine-ingest/constants"
	"github.com/joseph-ayodele/wine-ingest/internal/entity"
	"github.com/joseph-ayodele/wine-ingest/internal/normalize"
)

// Key identifies the same wine across rows: folded name, folded producer and vintage.
type Key struct {
	Name       string
	Producer   string
	Vintage    int
	HasVintage bool
}

func (k Key) String() string {
	v := "-"
	if k.HasVintage {
		v = fmt.Sprint(k.Vintage)
	}
	return k.Name + "|" + k.Producer + "|" + v
}

// KeyOf builds the dedup key of a record.
func KeyOf(w *entity.WineRecord) Key {
	k := Key{Name: normalize.Fold(w.Name), Producer: normalize.Fold(w.Winery)}
	if w.Vintage != nil {
		k.Vintage, k.HasVintage = *w.Vintage, true
	}
	return k
}

var textFields = []entity.Field{
	entity.FieldName, entity.FieldWinery, entity.FieldSupplier, entity.FieldGrapeVariety,
	entity.FieldRegion, entity.FieldCountry, entity.FieldClassification,
	entity.FieldDescription, entity.FieldNotes,
}

// Deduplicate collapses records sharing a key into the first one seen. Quantities
// are summed; for other fields a non-empty value wins, then the longer one.
// Running it twice gives the same result as running it once.
func Deduplicate(records []entity.WineRecord) []entity.WineRecord {
	out := make([]entity.WineRecord, 0, len(records))
	index := make(map[Key]int, len(records))
	for _, r := range records {
		k := KeyOf(&r)
		if i, ok := index[k]; ok {
			merged := mergeFields(out[i], r)
			merged.Qty = out[i].Qty + r.Qty
			out[i] = merged
			continue
		}
		index[k] = len(out)
		out = append(out, r.Clone())
	}
	return out
}

// CombineStages joins the output of an earlier stage with a later one. The earlier
// record is kept for a shared key: its name is never replaced, empty fields are
// filled from the later record and quantities are summed as in Deduplicate.
// Records only the later stage found are appended.
func CombineStages(earlier, later []entity.WineRecord) []entity.WineRecord {
	out := Deduplicate(earlier)
	index := make(map[Key]int, len(out))
	for i := range out {
		index[KeyOf(&out[i])] = i
	}
	for _, r := range Deduplicate(later) {
		k := KeyOf(&r)
		i, ok := index[k]
		if !ok {
			index[k] = len(out)
			out = append(out, r)
			continue
		}
		base := out[i]
		for _, f := range textFields {
			if f == entity.FieldName {
				continue
			}
			if base.Text(f) == "" && r.Text(f) != "" {
				base.SetText(f, r.Text(f))
			}
		}
		if base.Type == "" || (base.Type == constants.Other && r.Type != "") {
			base.Type = r.Type
		}
		fillNumbers(&base, r)
		base.Qty += r.Qty
		if r.Name != base.Name {
			base.Revisions = appendRevision(base.Revisions, entity.Revision{
				Field: entity.FieldName, Value: r.Name, Stage: r.SourceStage,
			})
		}
		base.Revisions = appendRevision(base.Revisions, r.Revisions...)
		out[i] = base
	}
	return out
}

func mergeFields(a, b entity.WineRecord) entity.WineRecord {
	out := a.Clone()
	for _, f := range textFields {
		av, bv := a.Text(f), b.Text(f)
		if bv == "" || av == bv {
			continue
		}
		if av == "" || utf8.RuneCountInString(bv) > utf8.RuneCountInString(av) {
			out.SetText(f, bv)
			if f == entity.FieldName && av != "" {
				out.Revisions = appendRevision(out.Revisions, entity.Revision{Field: f, Value: av, Stage: a.SourceStage})
			}
			continue
		}
		if f == entity.FieldName {
			out.Revisions = appendRevision(out.Revisions, entity.Revision{Field: f, Value: bv, Stage: b.SourceStage})
		}
	}
	if out.Type == "" || (out.Type == constants.Other && b.Type != "") {
		out.Type = b.Type
	}
	fillNumbers(&out, b)
	out.Revisions = appendRevision(out.Revisions, b.Revisions...)
	return out
}

func fillNumbers(dst *entity.WineRecord, src entity.WineRecord) {
	if dst.Price == nil && src.Price != nil {
		v := *src.Price
		dst.Price = &v
	}
	if dst.CostPrice == nil && src.CostPrice != nil {
		v := *src.CostPrice
		dst.CostPrice = &v
	}
	if dst.AlcoholContent == nil && src.AlcoholContent != nil {
		v := *src.AlcoholContent
		dst.AlcoholContent = &v
	}
}

func appendRevision(list []entity.Revision, revs ...entity.Revision) []entity.Revision {
	for _, r := range revs {
		dup := false
		for _, e := range list {
			if e == r {
				dup = true
				break
			}
		}
		if !dup {
			list = append(list, r)
		}
	}
	return list
}

// signature renders every canonical value of a candidate.
func signature(c *entity.CandidateRecord) string {
	var b strings.Builder
	for _, f := range entity.AllFields {
		b.WriteString(c.Text(f))
		b.WriteByte('\x1f')
	}
	fmt.Fprint(&b, deref(c.Vintage), "|", deref(c.Qty), "|", derefF(c.Price), "|", derefF(c.CostPrice), "|", derefF(c.AlcoholContent))
	return b.String()
}

// MergeChunks concatenates per-chunk candidates in chunk order, dropping records of
// a chunk that repeat a record of the previous chunk value for value. Adjacent
// chunks share an overlap window, so such repeats are echoes of the same rows.
func MergeChunks(chunks [][]entity.CandidateRecord) ([]entity.CandidateRecord, int) {
	var out []entity.CandidateRecord
	dropped := 0
	var prev map[string]int
	for _, chunk := range chunks {
		cur := make(map[string]int, len(chunk))
		for i := range chunk {
			sig := signature(&chunk[i])
			cur[sig]++
			if prev[sig] > 0 {
				prev[sig]--
				dropped++
				continue
			}
			out = append(out, chunk[i])
		}
		prev = cur
	}
	return out, dropped
}

func deref(p *int) string {
	if p == nil {
		return ""
	}
	return fmt.Sprint(*p)
}

func derefF(p *float64) string {
	if p == nil {
		return ""
	}
	return fmt.Sprint(*p)
}
