package normalize

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/joseph-ayodele/wine-ingest/constants"
	"github.com/joseph-ayodele/wine-ingest/internal/entity"
)

// Coercion issues attached to candidates. Stage 2 targets rows carrying any of them.
const (
	IssueVintageUnparsed   = "vintage_unparsed"
	IssueQtyUnparsed       = "qty_unparsed"
	IssuePriceUnparsed     = "price_unparsed"
	IssueCostPriceUnparsed = "cost_price_unparsed"
	IssueAlcoholUnparsed   = "alcohol_unparsed"
	IssueWineryNumeric     = "winery_numeric"
	IssueNameFromCategory  = "name_from_category"
)

var reCategoryName = regexp.MustCompile(`^(.+?)\s*\(([^)]+)\)(?:\s+((?:19|20)\d{2}))?$`)

// Normalizer turns raw cell text into typed candidate fields. It is shared by
// every stage and safe for concurrent use.
type Normalizer struct {
	dict            *Dictionary
	headerThreshold float64
	typeRules       []typeRule
	logger          *slog.Logger
}

type typeRule struct {
	wineType constants.WineType
	keywords [][]string
}

// New builds a normalizer over an immutable dictionary.
func New(dict *Dictionary, headerThreshold float64, logger *slog.Logger) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}
	if headerThreshold <= 0 {
		headerThreshold = 0.75
	}
	n := &Normalizer{dict: dict, headerThreshold: headerThreshold, logger: logger}
	for _, r := range dict.TypeKeywords {
		tr := typeRule{wineType: r.Type}
		for _, kw := range r.Keywords {
			if ws := words(kw); len(ws) > 0 {
				tr.keywords = append(tr.keywords, ws)
			}
		}
		n.typeRules = append(n.typeRules, tr)
	}
	return n
}

func (n *Normalizer) Dictionary() *Dictionary { return n.dict }

func (n *Normalizer) HeaderThreshold() float64 { return n.headerThreshold }

// FromRow builds a normalized candidate from a table row through the mapping.
func (n *Normalizer) FromRow(row []string, mapping *entity.HeaderMapping, rowNum int, stage string) entity.CandidateRecord {
	c := entity.CandidateRecord{
		Raw:         make(map[entity.Field]string, len(mapping.Columns)),
		SourceStage: stage,
		SourceRow:   rowNum,
	}
	for _, cm := range mapping.Columns {
		if cm.Column < len(row) {
			c.Raw[cm.Field] = row[cm.Column]
		}
	}
	n.Normalize(&c)
	return c
}

// CleanText trims, collapses whitespace and maps placeholders to "".
func (n *Normalizer) CleanText(s string) string {
	s = strings.TrimSpace(reSpaces.ReplaceAllString(s, " "))
	if s == "" || n.dict.IsPlaceholder(s) {
		return ""
	}
	return s
}

// ClassifyType maps free text to a wine type. Empty input stays unset; text
// without a known label or keyword is Other.
func (n *Normalizer) ClassifyType(s string) constants.WineType {
	s = n.CleanText(s)
	if s == "" {
		return ""
	}
	if t, ok := constants.Canonicalize(s); ok {
		return t
	}
	ws := words(s)
	for _, r := range n.typeRules {
		for _, kw := range r.keywords {
			if containsPhrase(ws, kw) {
				return r.wineType
			}
		}
	}
	return constants.Other
}

// Normalize derives every typed field from c.Raw. It resets Issues, so running it
// again after a repair reflects only the current raw values.
func (n *Normalizer) Normalize(c *entity.CandidateRecord) {
	c.Issues = nil
	for _, f := range entity.AllFields {
		switch f {
		case entity.FieldVintage, entity.FieldQty, entity.FieldPrice, entity.FieldCostPrice,
			entity.FieldAlcohol, entity.FieldType:
			continue
		}
		c.SetText(f, n.CleanText(c.Raw[f]))
	}

	if c.Winery != "" && IsNumeric(c.Winery) {
		n.logger.Debug("normalize.winery.numeric_dropped", "row", c.SourceRow, "value", c.Winery)
		c.Winery = ""
		c.Issues = append(c.Issues, IssueWineryNumeric)
	}
	n.resolveParties(c)

	c.Vintage = nil
	if raw := n.CleanText(c.Raw[entity.FieldVintage]); raw != "" {
		if y, ok := ParseVintage(raw); ok {
			c.Vintage = &y
		} else {
			c.Issues = append(c.Issues, IssueVintageUnparsed)
		}
	}

	c.Qty = nil
	if raw := n.CleanText(c.Raw[entity.FieldQty]); raw != "" {
		if q, ok := ParseQty(raw); ok {
			c.Qty = &q
		} else {
			c.Issues = append(c.Issues, IssueQtyUnparsed)
		}
	}

	c.Price = n.decimal(c, entity.FieldPrice, IssuePriceUnparsed, ParseDecimal)
	c.CostPrice = n.decimal(c, entity.FieldCostPrice, IssueCostPriceUnparsed, ParseDecimal)
	c.AlcoholContent = n.decimal(c, entity.FieldAlcohol, IssueAlcoholUnparsed, ParseAlcohol)

	c.Type = string(n.ClassifyType(c.Raw[entity.FieldType]))

	n.unwrapCategoryName(c)
}

func (n *Normalizer) decimal(c *entity.CandidateRecord, f entity.Field, issue string, parse func(string) (float64, bool)) *float64 {
	raw := n.CleanText(c.Raw[f])
	if raw == "" {
		return nil
	}
	v, ok := parse(raw)
	if !ok {
		c.Issues = append(c.Issues, issue)
		return nil
	}
	return &v
}

// unwrapCategoryName handles names that are really a category label, either bare
// ("Bolle") or wrapping the wine ("Bolle (Dom Perignon) 2015").
func (n *Normalizer) unwrapCategoryName(c *entity.CandidateRecord) {
	if c.Name == "" {
		return
	}
	if m := reCategoryName.FindStringSubmatch(c.Name); m != nil {
		t, ok := n.dict.CategoryType(m[1])
		if !ok {
			return
		}
		c.Name = strings.TrimSpace(m[2])
		if c.Type == "" {
			c.Type = string(t)
		}
		if c.Vintage == nil && m[3] != "" {
			if y, ok := ParseVintage(m[3]); ok {
				c.Vintage = &y
			}
		}
		return
	}
	if t, ok := n.dict.CategoryType(c.Name); ok {
		if c.Type == "" {
			c.Type = string(t)
		}
		c.Name = c.Winery
		c.Issues = append(c.Issues, IssueNameFromCategory)
	}
}
