package ocr

import (
	"regexp"
	"strings"
)

var (
	reYear     = regexp.MustCompile(`\b(19|20)\d{2}\b`)
	reCurrency = regexp.MustCompile(`\b(eur|euro|usd|chf|gbp)\b|[$£€]`)
	rePrice    = regexp.MustCompile(`\b\d{1,4}[.,]\d{2}\b`)
	reWineWord = regexp.MustCompile(`\b(vino|vini|rosso|bianco|ros[ée]|spumante|doc|docg|igt|annata|cantina|wine|red|white|brut|riserva)\b`)
)

// heuristicConfidence scores how much the recognized text looks like a wine list.
// It is reported with the result and never gates a decision.
func heuristicConfidence(txt string) float64 {
	l := strings.ToLower(txt)
	score := 0.2
	if reYear.MatchString(l) {
		score += 0.2
	}
	if reCurrency.MatchString(l) {
		score += 0.15
	}
	if rePrice.MatchString(l) {
		score += 0.15
	}
	if reWineWord.MatchString(l) {
		score += 0.2
	}
	if len(txt) > 120 {
		score += 0.1
	}
	if score > 1 {
		score = 1
	}
	return score
}

// blendConfidence weights tesseract's own word confidence higher when it was measured.
func blendConfidence(word, heuristic float64) float64 {
	conf := heuristic
	if word > 0 {
		conf = 0.7*word + 0.3*heuristic
	}
	if conf > 1 {
		conf = 1
	}
	return conf
}
