package extraction

import (
	"strings"
	"unicode/utf8"
)

// Truncate caps text at max bytes, cutting after the last complete line when one
// ends in the second half of the window.
func Truncate(text string, max int) (string, bool) {
	if max <= 0 || len(text) <= max {
		return text, false
	}
	cut := runeStart(text, max)
	if nl := strings.LastIndexByte(text[:cut], '\n'); nl >= max/2 {
		cut = nl + 1
	}
	return text[:cut], true
}

// SplitChunks cuts text into chunks of at most size bytes at line boundaries. Each
// chunk after the first repeats up to overlap bytes of the previous one, starting
// on a line boundary. A single line longer than size is cut at a rune boundary.
func SplitChunks(text string, size, overlap int) []string {
	if text == "" {
		return nil
	}
	if size <= 0 || len(text) <= size {
		return []string{text}
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}

	var out []string
	start := 0
	for start < len(text) {
		end := start + size
		if end >= len(text) {
			out = append(out, text[start:])
			break
		}
		if nl := strings.LastIndexByte(text[start:end], '\n'); nl > 0 {
			end = start + nl + 1
		} else {
			end = runeStart(text, end)
			if end <= start {
				end = start + size
			}
		}
		out = append(out, text[start:end])

		next := end - overlap
		if next <= start || overlap == 0 {
			start = end
			continue
		}
		// overlap starts on a full line; without one there is no overlap
		if nl := strings.IndexByte(text[next:end], '\n'); nl >= 0 && next+nl+1 < end && next+nl+1 > start {
			start = next + nl + 1
		} else {
			start = end
		}
	}
	return out
}

// runeStart moves i back to the first byte of the rune it falls in.
func runeStart(s string, i int) int {
	for i > 0 && i < len(s) && !utf8.RuneStart(s[i]) {
		i--
	}
	return i
}
