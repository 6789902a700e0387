package llm

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/joseph-ayodele/wine-ingest/constants"
	"github.com/joseph-ayodele/wine-ingest/internal/entity"
)

var fieldGuide = []string{
	"name: the wine label or cuvée, never a category heading.",
	"winery: the producer or estate.",
	"vintage: 4-digit year between 1900 and 2099, or omit.",
	"qty: bottles in stock, integer >= 0.",
	"price: unit selling price in EUR, a number (comma decimals allowed).",
	"cost_price: unit purchase price, a number.",
	"type: one of " + strings.Join(constants.WineTypesAsStringSlice(), ", ") + ".",
	"grape_variety, region, country, classification (DOC, DOCG, IGT...), supplier, alcohol_content (percent), description, notes: optional text.",
}

// BuildHeaderPrompt asks for a mapping of unmapped columns onto the still free fields.
func BuildHeaderPrompt(cols []HeaderColumn, free []entity.Field) (system, user string) {
	system = strings.Join([]string{
		"You match spreadsheet columns of an Italian or English wine inventory to canonical fields.",
		"Return ONLY a JSON object: {\"mappings\":[{\"column\":<index>,\"field\":\"<field>\",\"confidence\":<0..1>}]}.",
		"Use each field at most once. Leave a column out when unsure. Never invent columns.",
	}, " ")

	names := make([]string, 0, len(free))
	for _, f := range free {
		names = append(names, string(f))
	}

	var b strings.Builder
	b.WriteString("Free fields: ")
	b.WriteString(strings.Join(names, ", "))
	b.WriteString("\nField guide:\n- ")
	b.WriteString(strings.Join(fieldGuide, "\n- "))
	b.WriteString("\n\nColumns with sample values:\n")
	b.WriteString(mustJSON(cols))
	return system, b.String()
}

// BuildRepairPrompt asks for corrected values of a batch of rows. The response must keep
// the row count and order.
func BuildRepairPrompt(rows []RepairRow) (system, user string) {
	system = strings.Join([]string{
		"You are a data assistant cleaning wine inventory rows.",
		"Fill in or correct ONLY missing or invalid fields of each row, using the other values of the same row.",
		"Return ONLY a JSON object {\"rows\":[...]} with exactly " + strconv.Itoa(len(rows)) + " objects in the same order as the input.",
		"Use {} for a row you cannot improve. Never output null.",
	}, " ")

	var b strings.Builder
	b.WriteString("Field guide:\n- ")
	b.WriteString(strings.Join(fieldGuide, "\n- "))
	b.WriteString("\n\nRows:\n")
	b.WriteString(mustJSON(rows))
	return system, b.String()
}

// BuildExtractionPrompt asks for every wine found in a chunk of linearized text. Retries
// pass attempt > 0 and get a stricter reminder of the output shape.
func BuildExtractionPrompt(text string, chunk, chunks, attempt int) (system, user string) {
	parts := []string{
		"You extract wine inventory tables from messy text: spreadsheets flattened with ' | ' separators, PDF text or OCR output, often in Italian.",
		"Return ONLY a JSON object {\"records\":[...]} with one object per wine.",
		"Skip headings, totals and category lines (Rossi, Bianchi, Bollicine...) but use them to set 'type' of the wines below them.",
		"Omit fields you cannot read. Never output null.",
	}
	if attempt > 0 {
		parts = append(parts,
			"Your previous answer was not valid. Output a single JSON object with the key \"records\" and nothing else: no prose, no markdown fences.")
	}

	var b strings.Builder
	b.WriteString("Field guide:\n- ")
	b.WriteString(strings.Join(fieldGuide, "\n- "))
	b.WriteString("\n\nChunk ")
	b.WriteString(strconv.Itoa(chunk + 1))
	b.WriteString(" of ")
	b.WriteString(strconv.Itoa(chunks))
	b.WriteString(":\n")
	b.WriteString(text)
	return strings.Join(parts, " "), b.String()
}

func mustJSON(v any) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}
