package entity

import (
	"github.com/joseph-ayodele/wine-ingest/constants"
)

// Field is a canonical inventory attribute.
type Field string

const (
	FieldName           Field = "name"
	FieldWinery         Field = "winery"
	FieldSupplier       Field = "supplier"
	FieldVintage        Field = "vintage"
	FieldQty            Field = "qty"
	FieldPrice          Field = "price"
	FieldCostPrice      Field = "cost_price"
	FieldType           Field = "type"
	FieldGrapeVariety   Field = "grape_variety"
	FieldRegion         Field = "region"
	FieldCountry        Field = "country"
	FieldClassification Field = "classification"
	FieldAlcohol        Field = "alcohol_content"
	FieldDescription    Field = "description"
	FieldNotes          Field = "notes"
)

// AllFields lists the canonical fields in report order.
var AllFields = []Field{
	FieldName, FieldWinery, FieldSupplier, FieldVintage, FieldQty, FieldPrice, FieldCostPrice,
	FieldType, FieldGrapeVariety, FieldRegion, FieldCountry, FieldClassification, FieldAlcohol,
	FieldDescription, FieldNotes,
}

// RequiredFields drive the schema score.
var RequiredFields = []Field{FieldName, FieldWinery, FieldVintage, FieldQty, FieldPrice, FieldType}

func (f Field) IsRequired() bool {
	for _, r := range RequiredFields {
		if r == f {
			return true
		}
	}
	return false
}

// ParseField resolves a canonical field name, accepting a few spelled-out aliases
// that LLM responses tend to use.
func ParseField(s string) (Field, bool) {
	switch s {
	case "producer", "winery_name":
		return FieldWinery, true
	case "quantity":
		return FieldQty, true
	case "wine_type":
		return FieldType, true
	case "alcohol":
		return FieldAlcohol, true
	}
	for _, f := range AllFields {
		if string(f) == s {
			return f, true
		}
	}
	return "", false
}

// Revision records a value a record held before a later stage or a merge replaced it.
type Revision struct {
	Field Field  `json:"field"`
	Value string `json:"value"`
	Stage string `json:"stage"`
}

// CandidateRecord is a partially typed record produced by a stage before validation.
// Text fields use "" for unset.
type CandidateRecord struct {
	Name           string
	Winery         string
	Supplier       string
	Vintage        *int
	Qty            *int
	Price          *float64
	CostPrice      *float64
	Type           string
	GrapeVariety   string
	Region         string
	Country        string
	Classification string
	AlcoholContent *float64
	Description    string
	Notes          string

	Raw         map[Field]string
	SourceStage string
	SourceRow   int
	Issues      []string
	Revisions   []Revision
}

// Text returns the value of a text field.
func (c *CandidateRecord) Text(f Field) string {
	switch f {
	case FieldName:
		return c.Name
	case FieldWinery:
		return c.Winery
	case FieldSupplier:
		return c.Supplier
	case FieldType:
		return c.Type
	case FieldGrapeVariety:
		return c.GrapeVariety
	case FieldRegion:
		return c.Region
	case FieldCountry:
		return c.Country
	case FieldClassification:
		return c.Classification
	case FieldDescription:
		return c.Description
	case FieldNotes:
		return c.Notes
	default:
		return ""
	}
}

// SetText assigns a text field; numeric fields are ignored.
func (c *CandidateRecord) SetText(f Field, v string) {
	switch f {
	case FieldName:
		c.Name = v
	case FieldWinery:
		c.Winery = v
	case FieldSupplier:
		c.Supplier = v
	case FieldType:
		c.Type = v
	case FieldGrapeVariety:
		c.GrapeVariety = v
	case FieldRegion:
		c.Region = v
	case FieldCountry:
		c.Country = v
	case FieldClassification:
		c.Classification = v
	case FieldDescription:
		c.Description = v
	case FieldNotes:
		c.Notes = v
	}
}

// HasIssues reports whether normalization had to coerce or drop something.
func (c *CandidateRecord) HasIssues() bool {
	return len(c.Issues) > 0
}

// IsEmpty reports whether no canonical field carries a value.
func (c *CandidateRecord) IsEmpty() bool {
	for _, f := range AllFields {
		if c.Text(f) != "" {
			return false
		}
	}
	return c.Vintage == nil && c.Qty == nil && c.Price == nil && c.CostPrice == nil && c.AlcoholContent == nil
}

// Clone returns a deep copy so escalation can hand each stage its own records.
func (c CandidateRecord) Clone() CandidateRecord {
	out := c
	out.Vintage = cloneInt(c.Vintage)
	out.Qty = cloneInt(c.Qty)
	out.Price = cloneFloat(c.Price)
	out.CostPrice = cloneFloat(c.CostPrice)
	out.AlcoholContent = cloneFloat(c.AlcoholContent)
	if c.Raw != nil {
		out.Raw = make(map[Field]string, len(c.Raw))
		for k, v := range c.Raw {
			out.Raw[k] = v
		}
	}
	out.Issues = append([]string(nil), c.Issues...)
	out.Revisions = append([]Revision(nil), c.Revisions...)
	return out
}

// WineRecord is a validated inventory record.
type WineRecord struct {
	Name           string             `json:"name"`
	Winery         string             `json:"winery,omitempty"`
	Supplier       string             `json:"supplier,omitempty"`
	Vintage        *int               `json:"vintage,omitempty"`
	Qty            int                `json:"qty"`
	Price          *float64           `json:"price,omitempty"`
	CostPrice      *float64           `json:"cost_price,omitempty"`
	Type           constants.WineType `json:"type,omitempty"`
	GrapeVariety   string             `json:"grape_variety,omitempty"`
	Region         string             `json:"region,omitempty"`
	Country        string             `json:"country,omitempty"`
	Classification string             `json:"classification,omitempty"`
	AlcoholContent *float64           `json:"alcohol_content,omitempty"`
	Description    string             `json:"description,omitempty"`
	Notes          string             `json:"notes,omitempty"`
	SourceStage    string             `json:"source_stage"`
	SourceRow      int                `json:"source_row"`
	Revisions      []Revision         `json:"revisions,omitempty"`
}

// Text returns the value of a text field.
func (w *WineRecord) Text(f Field) string {
	switch f {
	case FieldName:
		return w.Name
	case FieldWinery:
		return w.Winery
	case FieldSupplier:
		return w.Supplier
	case FieldType:
		return string(w.Type)
	case FieldGrapeVariety:
		return w.GrapeVariety
	case FieldRegion:
		return w.Region
	case FieldCountry:
		return w.Country
	case FieldClassification:
		return w.Classification
	case FieldDescription:
		return w.Description
	case FieldNotes:
		return w.Notes
	default:
		return ""
	}
}

// SetText assigns a text field; numeric fields are ignored.
func (w *WineRecord) SetText(f Field, v string) {
	switch f {
	case FieldName:
		w.Name = v
	case FieldWinery:
		w.Winery = v
	case FieldSupplier:
		w.Supplier = v
	case FieldType:
		w.Type = constants.WineType(v)
	case FieldGrapeVariety:
		w.GrapeVariety = v
	case FieldRegion:
		w.Region = v
	case FieldCountry:
		w.Country = v
	case FieldClassification:
		w.Classification = v
	case FieldDescription:
		w.Description = v
	case FieldNotes:
		w.Notes = v
	}
}

// Clone returns a deep copy.
func (w WineRecord) Clone() WineRecord {
	out := w
	out.Vintage = cloneInt(w.Vintage)
	out.Price = cloneFloat(w.Price)
	out.CostPrice = cloneFloat(w.CostPrice)
	out.AlcoholContent = cloneFloat(w.AlcoholContent)
	out.Revisions = append([]Revision(nil), w.Revisions...)
	return out
}

// Rejection pairs a candidate with the first validation rule it failed.
type Rejection struct {
	Record CandidateRecord
	Reason string
	Index  int
}

func cloneInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneFloat(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
