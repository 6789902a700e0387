package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/wine-ingest/constants"
	"github.com/joseph-ayodele/wine-ingest/internal/entity"
)

func newTestNormalizer(t *testing.T) *Normalizer {
	t.Helper()
	dict, err := DefaultDictionary()
	require.NoError(t, err)
	return New(dict, 0.75, nil)
}

func TestParseDictionary_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"no fields", "version: x\n"},
		{"unknown field", "fields:\n  - field: colour\n    synonyms: [colore]\n"},
		{"duplicate field", "fields:\n  - field: name\n    synonyms: [a]\n  - field: name\n    synonyms: [b]\n"},
		{"unknown type", "fields:\n  - field: name\n    synonyms: [a]\ntype_keywords:\n  - type: Orange\n    keywords: [orange]\n"},
		{"bad yaml", "fields: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseDictionary([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestFoldAndCleanHeader(t *testing.T) {
	assert.Equal(t, "ca del bosco", Fold("  Cà   del Bosco "))
	assert.Equal(t, "qta", CleanHeader("Q.tà"))
	assert.Equal(t, "prezzo", CleanHeader("Prezzo (€)"))
	assert.Equal(t, "wine type", CleanHeader("WINE_TYPE"))
}

func TestMapHeaders_ItalianHeaders(t *testing.T) {
	n := newTestNormalizer(t)

	m := n.MapHeaders([]string{"Etichetta", "Produttore", "Annata", "Q.tà", "Prezzo €", "Tipologia", "Colonna X"})

	want := map[int]entity.Field{
		0: entity.FieldName,
		1: entity.FieldWinery,
		2: entity.FieldVintage,
		3: entity.FieldQty,
		4: entity.FieldPrice,
		5: entity.FieldType,
	}
	for col, f := range want {
		got, ok := m.FieldFor(col)
		require.True(t, ok, "column %d", col)
		assert.Equal(t, f, got, "column %d", col)
	}
	_, ok := m.FieldFor(6)
	assert.False(t, ok)
	assert.Equal(t, 6, m.MappedRequired())
}

func TestMapHeaders_OneToOne(t *testing.T) {
	n := newTestNormalizer(t)

	// "Vino" and "Nome" both exactly match name synonyms; "Nome" is more authoritative.
	m := n.MapHeaders([]string{"Vino", "Nome", "Prezzo", "Price"})

	col, ok := m.ColumnFor(entity.FieldName)
	require.True(t, ok)
	assert.Equal(t, 1, col.Column)

	price, ok := m.ColumnFor(entity.FieldPrice)
	require.True(t, ok)
	assert.Equal(t, 2, price.Column)

	seen := map[entity.Field]int{}
	for _, c := range m.Columns {
		seen[c.Field]++
	}
	for f, n := range seen {
		assert.Equal(t, 1, n, "field %s mapped more than once", f)
	}
}

func TestScoreHeader_FuzzyAndStem(t *testing.T) {
	n := newTestNormalizer(t)

	m, ok := n.ScoreHeader("Quantities")
	require.True(t, ok)
	assert.Equal(t, entity.FieldQty, m.Field)
	assert.GreaterOrEqual(t, m.Score, 0.95)

	m, ok = n.ScoreHeader("Produtore")
	require.True(t, ok)
	assert.Equal(t, entity.FieldWinery, m.Field)
	assert.GreaterOrEqual(t, m.Score, 0.75)

	_, ok = n.ScoreHeader("  ")
	assert.False(t, ok)
}

func TestParseDecimal(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"8,50", 8.5, true},
		{"€ 12", 12, true},
		{"1.234,50", 1234.5, true},
		{"1,234.50", 1234.5, true},
		{"1.234.567", 1234567, true},
		{"12.5 EUR", 12.5, true},
		{"-3", -3, true},
		{"gratis", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseDecimal(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestParseVintageAndQty(t *testing.T) {
	y, ok := ParseVintage("Annata 2016 riserva")
	assert.True(t, ok)
	assert.Equal(t, 2016, y)

	_, ok = ParseVintage("1899")
	assert.False(t, ok)
	_, ok = ParseVintage("NV")
	assert.False(t, ok)

	q, ok := ParseQty("12 bottiglie")
	assert.True(t, ok)
	assert.Equal(t, 12, q)

	_, ok = ParseQty("dozzina")
	assert.False(t, ok)
}

func TestClassifyType(t *testing.T) {
	n := newTestNormalizer(t)

	tests := []struct {
		in   string
		want constants.WineType
	}{
		{"", ""},
		{"n/a", ""},
		{"Rosso", constants.Red},
		{"Bianco secco", constants.White},
		{"Rosé", constants.Rose},
		{"Prosecco DOC", constants.Sparkling},
		{"Pinot Nero Spumante Brut", constants.Sparkling},
		{"Nebbiolo", constants.Red},
		{"Passito", constants.Other},
		{"Sparkling", constants.Sparkling},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, n.ClassifyType(tt.in))
		})
	}
}

func TestNormalize_Row(t *testing.T) {
	n := newTestNormalizer(t)
	mapping := n.MapHeaders([]string{"Nome", "Produttore", "Annata", "Quantità", "Prezzo", "Tipo", "Gradazione"})

	c := n.FromRow([]string{" Barolo  Riserva ", "12345", "vendemmia 2015", "6 bt", "45,90 €", "rosso", "14,5% vol"}, mapping, 2, constants.StageTabular)

	assert.Equal(t, "Barolo Riserva", c.Name)
	assert.Equal(t, "", c.Winery, "numeric producer dropped")
	require.NotNil(t, c.Vintage)
	assert.Equal(t, 2015, *c.Vintage)
	require.NotNil(t, c.Qty)
	assert.Equal(t, 6, *c.Qty)
	require.NotNil(t, c.Price)
	assert.InDelta(t, 45.9, *c.Price, 1e-9)
	assert.Equal(t, string(constants.Red), c.Type)
	require.NotNil(t, c.AlcoholContent)
	assert.InDelta(t, 14.5, *c.AlcoholContent, 1e-9)
	assert.Equal(t, []string{IssueWineryNumeric}, c.Issues)
	assert.Equal(t, 2, c.SourceRow)
}

func TestNormalize_PlaceholdersAndIssues(t *testing.T) {
	n := newTestNormalizer(t)
	c := entity.CandidateRecord{Raw: map[entity.Field]string{
		entity.FieldName:    "Soave",
		entity.FieldWinery:  "n/a",
		entity.FieldVintage: "NV",
		entity.FieldQty:     "-",
		entity.FieldPrice:   "su richiesta",
	}}

	n.Normalize(&c)

	assert.Equal(t, "", c.Winery)
	assert.Nil(t, c.Vintage)
	assert.Nil(t, c.Qty, "placeholder qty stays unset")
	assert.Nil(t, c.Price)
	assert.ElementsMatch(t, []string{IssueVintageUnparsed, IssuePriceUnparsed}, c.Issues)

	c.Raw[entity.FieldPrice] = "9,00"
	n.Normalize(&c)
	assert.Equal(t, []string{IssueVintageUnparsed}, c.Issues, "issues reset on rerun")
}

func TestNormalize_CategoryNames(t *testing.T) {
	n := newTestNormalizer(t)

	c := entity.CandidateRecord{Raw: map[entity.Field]string{entity.FieldName: "Bolle (Dom Perignon) 2012"}}
	n.Normalize(&c)
	assert.Equal(t, "Dom Perignon", c.Name)
	assert.Equal(t, string(constants.Sparkling), c.Type)
	require.NotNil(t, c.Vintage)
	assert.Equal(t, 2012, *c.Vintage)

	c = entity.CandidateRecord{Raw: map[entity.Field]string{entity.FieldName: "Rosati", entity.FieldWinery: "Pibernon"}}
	n.Normalize(&c)
	assert.Equal(t, "Pibernon", c.Name)
	assert.Equal(t, string(constants.Rose), c.Type)

	c = entity.CandidateRecord{Raw: map[entity.Field]string{entity.FieldName: "Barolo (magnum)"}}
	n.Normalize(&c)
	assert.Equal(t, "Barolo (magnum)", c.Name)
}

func TestClassifyParty(t *testing.T) {
	n := newTestNormalizer(t)

	tests := []struct {
		in   string
		want Party
	}{
		{"Pellegrini S.p.A.", PartySupplier},
		{"PARTESA", PartySupplier},
		{"Rossi Distribuzioni", PartySupplier},
		{"Enoteca Bianchi srl", PartySupplier},
		{"Vini Importatore Nord", PartySupplier},
		{"Ca' del Bosco", PartyWinery},
		{"Cantina Vietti", PartyWinery},
		{"Azienda Agricola Montevetrano", PartyUnknown},
		{"Spadafora", PartyUnknown},
		{"", PartyUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, n.ClassifyParty(tt.in))
		})
	}
}

func TestNormalize_ResolvesSupplierAndProducer(t *testing.T) {
	n := newTestNormalizer(t)

	c := entity.CandidateRecord{Raw: map[entity.Field]string{
		entity.FieldName:   "Franciacorta Brut",
		entity.FieldWinery: "Pellegrini S.p.A.",
	}}
	n.Normalize(&c)
	assert.Equal(t, "", c.Winery)
	assert.Equal(t, "Pellegrini S.p.A.", c.Supplier)

	c = entity.CandidateRecord{Raw: map[entity.Field]string{
		entity.FieldName:     "Soave Classico",
		entity.FieldSupplier: "Pieropan",
	}}
	n.Normalize(&c)
	assert.Equal(t, "Pieropan", c.Winery)
	assert.Equal(t, "Pieropan", c.Supplier)

	c = entity.CandidateRecord{Raw: map[entity.Field]string{
		entity.FieldName:     "Barolo",
		entity.FieldWinery:   "Sagna",
		entity.FieldSupplier: "Enoteca Centrale",
	}}
	n.Normalize(&c)
	assert.Equal(t, "Sagna", c.Winery, "a filled supplier is never overwritten")
	assert.Equal(t, "Enoteca Centrale", c.Supplier)
	assert.Empty(t, c.Issues)
}
