package ingest

import (
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/wine-ingest/constants"
)

// AllowedExt checks if the pipeline routes the extension to a lane.
func AllowedExt(ext string) bool {
	return constants.AllowedExt(ext)
}

// IsHidden checks if a file or directory is hidden (starts with '.').
func IsHidden(path string) bool {
	base := filepath.Base(path)
	return base != "." && strings.HasPrefix(base, ".")
}
