package content

import (
	"io/fs"
	"time"
)

// Source says where a snapshot was loaded from.
type Source string

const (
	SourceUnknown Source = "unknown"
	SourceDir     Source = "dir"
	SourceS3      Source = "s3"
)

// Meta describes a snapshot.
type Meta struct {
	Source Source `json:"source"`
	// Version is a human label, e.g. the bundle object key. Empty for directories.
	Version string `json:"version,omitempty"`
	// SHA256 is the hex digest of the downloaded bundle. Empty for directories.
	SHA256 string `json:"sha256,omitempty"`
	// Files and Bytes are known for in-memory bundles only
	Files int   `json:"files,omitempty"`
	Bytes int64 `json:"bytes,omitempty"`
}

// Snapshot is an immutable content tree.
type Snapshot struct {
	FS       fs.FS
	Meta     Meta
	LoadedAt time.Time
}
