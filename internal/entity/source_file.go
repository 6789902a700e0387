package entity

import (
	"time"
)

// SourceFile is an inventory file discovered on disk by the batch ingestor.
type SourceFile struct {
	SourcePath  string    `json:"source_path"`
	ContentHash []byte    `json:"content_hash"`
	Filename    string    `json:"filename"`
	FileExt     string    `json:"file_ext"`
	FileSize    int       `json:"file_size"`
	ModifiedAt  time.Time `json:"modified_at"`
}
