package pipeline

import (
	"fmt"
	"path/filepath"

	"github.com/joseph-ayodele/wine-ingest/constants"
	"github.com/joseph-ayodele/wine-ingest/internal/common"
)

// Route resolves the lane of a file once per invocation. The declared extension
// wins; the file name's extension is the fallback.
func Route(content []byte, fileName, declaredExt string) (constants.FileKind, string, error) {
	ext := constants.NormalizeExt(declaredExt)
	if ext == "" {
		ext = constants.NormalizeExt(filepath.Ext(fileName))
	}
	kind := constants.KindForExt(ext)
	if kind == constants.Unsupported {
		return kind, ext, common.NewKindError(common.KindUnsupportedFormat, fmt.Sprintf("unsupported extension %q", ext), nil)
	}
	if len(content) == 0 {
		return kind, ext, common.NewKindError(common.KindParseFailure, "empty file", nil)
	}
	return kind, ext, nil
}
