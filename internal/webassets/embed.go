// Package webassets embeds the pages the server can answer with before any
// site content is available.
package webassets

import (
	"embed"
	"io/fs"
)

// UnavailableFile is served with 503 while no content snapshot is active.
const UnavailableFile = "unavailable.html"

//go:embed unavailable.html
var embedded embed.FS

// FallbackFS returns the embedded pages.
func FallbackFS() fs.FS { return embedded }
