package constants

import (
	"strings"
)

type WineType string

const (
	Red       WineType = "Red"
	White     WineType = "White"
	Rose      WineType = "Rosé"
	Sparkling WineType = "Sparkling"
	Other     WineType = "Other"
)

var allWineTypes = []WineType{
	Red,
	White,
	Rose,
	Sparkling,
	Other,
}

func WineTypesAsStringSlice() []string {
	result := make([]string, len(allWineTypes))
	for i, t := range allWineTypes {
		result[i] = string(t)
	}
	return result
}

// IsWineType reports whether s is exactly one of the enum values.
func IsWineType(s string) bool {
	for _, t := range allWineTypes {
		if s == string(t) {
			return true
		}
	}
	return false
}

// Canonicalize maps an enum label or a common label synonym (English/Italian)
// to a WineType. Free text classification lives in the normalizer.
func Canonicalize(input string) (WineType, bool) {
	if input == "" {
		return Other, false
	}

	normalized := strings.ToLower(strings.TrimSpace(input))

	synonyms := map[string]WineType{
		"rosso":     Red,
		"rouge":     Red,
		"tinto":     Red,
		"bianco":    White,
		"blanc":     White,
		"blanco":    White,
		"rosato":    Rose,
		"rose":      Rose,
		"rosè":      Rose,
		"spumante":  Sparkling,
		"frizzante": Sparkling,
		"bollicine": Sparkling,
		"altro":     Other,
	}

	if t, ok := synonyms[normalized]; ok {
		return t, true
	}

	for _, t := range allWineTypes {
		if normalized == strings.ToLower(string(t)) {
			return t, true
		}
	}

	return Other, false
}
