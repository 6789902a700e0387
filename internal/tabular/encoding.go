package tabular

import (
	"bytes"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

const (
	EncodingUTF8BOM = "utf-8-sig"
	EncodingUTF8    = "utf-8"
	EncodingLatin1  = "windows-1252"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// decodeText returns UTF-8 text and the encoding it was read as: UTF-8 with a
// BOM, then plain UTF-8, then the Windows-1252 superset of Latin-1.
func decodeText(data []byte) (string, string) {
	if bytes.HasPrefix(data, utf8BOM) {
		return string(data[len(utf8BOM):]), EncodingUTF8BOM
	}
	if utf8.Valid(data) {
		return string(data), EncodingUTF8
	}
	decoded, err := charmap.Windows1252.NewDecoder().Bytes(data)
	if err != nil {
		// best effort: keep the valid runes
		return string(bytes.ToValidUTF8(data, []byte("�"))), EncodingUTF8
	}
	return string(decoded), EncodingLatin1
}

// DecodeText exposes the Stage 1 decoding for callers that need the raw text.
func DecodeText(data []byte) string {
	text, _ := decodeText(data)
	return text
}
