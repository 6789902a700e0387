package tabular

import (
	"strings"
)

var delimiterCandidates = []rune{',', ';', '\t', '|'}

const sniffLines = 20

// sniffDelimiter picks the candidate whose per-line count is highest and most
// consistent over the first non-empty lines. Comma wins when nothing stands out.
func sniffDelimiter(text string) rune {
	var lines []string
	for _, l := range strings.Split(text, "\n") {
		if strings.TrimSpace(l) == "" {
			continue
		}
		lines = append(lines, l)
		if len(lines) == sniffLines {
			break
		}
	}
	if len(lines) == 0 {
		return ','
	}

	best, bestScore := ',', 0.0
	for _, d := range delimiterCandidates {
		counts := map[int]int{}
		for _, l := range lines {
			counts[countOutsideQuotes(l, d)]++
		}
		mode, modeLines := 0, 0
		for c, n := range counts {
			if n > modeLines || (n == modeLines && c > mode) {
				mode, modeLines = c, n
			}
		}
		if mode == 0 {
			continue
		}
		consistency := float64(modeLines) / float64(len(lines))
		score := float64(mode) * consistency
		if consistency == 1 {
			score *= 1.5
		}
		if score > bestScore {
			best, bestScore = d, score
		}
	}
	return best
}

func countOutsideQuotes(line string, d rune) int {
	n, quoted := 0, false
	for _, r := range line {
		switch {
		case r == '"':
			quoted = !quoted
		case r == d && !quoted:
			n++
		}
	}
	return n
}
