package constants

import "strings"

// FileKind is the lane chosen by the router. It is resolved once per invocation.
type FileKind int

const (
	Unsupported FileKind = iota
	Tabular
	Document
)

func (k FileKind) String() string {
	switch k {
	case Tabular:
		return "tabular"
	case Document:
		return "document"
	default:
		return "unsupported"
	}
}

// TabularExtensions are parsed by Stage 1.
var TabularExtensions = map[string]struct{}{
	"csv":  {},
	"tsv":  {},
	"xlsx": {},
	"xls":  {},
}

// DocumentExtensions go through OCR (Stage 4).
var DocumentExtensions = map[string]struct{}{
	"pdf":  {},
	"jpg":  {},
	"jpeg": {},
	"png":  {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}

// KindForExt classifies a normalized or raw extension.
func KindForExt(ext string) FileKind {
	ext = NormalizeExt(ext)
	if _, ok := TabularExtensions[ext]; ok {
		return Tabular
	}
	if _, ok := DocumentExtensions[ext]; ok {
		return Document
	}
	return Unsupported
}

// AllowedExt reports whether any lane accepts ext.
func AllowedExt(ext string) bool {
	return KindForExt(ext) != Unsupported
}

func IsSpreadsheetExt(ext string) bool {
	ext = NormalizeExt(ext)
	return ext == "xlsx" || ext == "xls"
}
