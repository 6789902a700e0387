package validation

import (
	"strings"

	"github.com/joseph-ayodele/wine-ingest/constants"
	"github.com/joseph-ayodele/wine-ingest/internal/entity"
)

// Rejection reasons, one per rejected candidate.
const (
	ReasonMissingName      = "missing_name"
	ReasonInvalidVintage   = "invalid_vintage"
	ReasonInvalidQuantity  = "invalid_quantity"
	ReasonInvalidPrice     = "invalid_price"
	ReasonInvalidCostPrice = "invalid_cost_price"
	ReasonInvalidType      = "invalid_type"
	ReasonInvalidAlcohol   = "invalid_alcohol"
)

const (
	minVintage = 1900
	maxVintage = 2099
)

// Stats summarizes a batch validation.
type Stats struct {
	Total    int
	Valid    int
	Rejected int
	Reasons  map[string]int
}

// Check returns the first rule the candidate breaks, or "" when it is valid.
func Check(c *entity.CandidateRecord) string {
	switch {
	case strings.TrimSpace(c.Name) == "":
		return ReasonMissingName
	case c.Vintage != nil && (*c.Vintage < minVintage || *c.Vintage > maxVintage):
		return ReasonInvalidVintage
	case c.Qty != nil && *c.Qty < 0:
		return ReasonInvalidQuantity
	case c.Price != nil && *c.Price < 0:
		return ReasonInvalidPrice
	case c.CostPrice != nil && *c.CostPrice < 0:
		return ReasonInvalidCostPrice
	case c.Type != "" && !constants.IsWineType(c.Type):
		return ReasonInvalidType
	case c.AlcoholContent != nil && (*c.AlcoholContent < 0 || *c.AlcoholContent > 100):
		return ReasonInvalidAlcohol
	default:
		return ""
	}
}

// Promote converts a candidate that passed Check into a WineRecord.
func Promote(c *entity.CandidateRecord) entity.WineRecord {
	qty := 0
	if c.Qty != nil {
		qty = *c.Qty
	}
	w := entity.WineRecord{
		Name:           strings.TrimSpace(c.Name),
		Winery:         c.Winery,
		Supplier:       c.Supplier,
		Qty:            qty,
		Type:           constants.WineType(c.Type),
		GrapeVariety:   c.GrapeVariety,
		Region:         c.Region,
		Country:        c.Country,
		Classification: c.Classification,
		Description:    c.Description,
		Notes:          c.Notes,
		SourceStage:    c.SourceStage,
		SourceRow:      c.SourceRow,
		Revisions:      append([]entity.Revision(nil), c.Revisions...),
	}
	if c.Vintage != nil {
		v := *c.Vintage
		w.Vintage = &v
	}
	if c.Price != nil {
		v := *c.Price
		w.Price = &v
	}
	if c.CostPrice != nil {
		v := *c.CostPrice
		w.CostPrice = &v
	}
	if c.AlcoholContent != nil {
		v := *c.AlcoholContent
		w.AlcoholContent = &v
	}
	return w
}

// ValidateBatch partitions candidates. Every input ends up in exactly one of the
// two outputs, in input order.
func ValidateBatch(candidates []entity.CandidateRecord) ([]entity.WineRecord, []entity.Rejection, Stats) {
	stats := Stats{Total: len(candidates), Reasons: map[string]int{}}
	valid := make([]entity.WineRecord, 0, len(candidates))
	var rejected []entity.Rejection

	for i := range candidates {
		c := &candidates[i]
		if reason := Check(c); reason != "" {
			rejected = append(rejected, entity.Rejection{Record: c.Clone(), Reason: reason, Index: i})
			stats.Reasons[reason]++
			continue
		}
		valid = append(valid, Promote(c))
	}
	stats.Valid = len(valid)
	stats.Rejected = len(rejected)
	return valid, rejected, stats
}

// Apply copies batch stats into stage metrics.
func (s Stats) Apply(m *entity.Metrics) {
	m.RowsTotal = s.Total
	m.RowsValid = s.Valid
	m.RowsRejected = s.Rejected
	for reason, n := range s.Reasons {
		for i := 0; i < n; i++ {
			m.AddRejection(reason)
		}
	}
}
