package sitehandler

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/keithlinneman/linnemanlabs-static/internal/content"
	"github.com/keithlinneman/linnemanlabs-static/internal/log"
)

var ErrInvalidOptions = errors.New("sitehandler: invalid options")

// SnapshotProvider returns the active content snapshot.
type SnapshotProvider interface {
	Get() (*content.Snapshot, bool)
}

type Options struct {
	Logger  log.Logger
	Content SnapshotProvider

	// IndexFile is served for "/" and for directory paths. Default "index.html".
	IndexFile string

	// NotFoundFile, when set and present in the snapshot, is served with 404
	// instead of the plain text body.
	NotFoundFile string

	// FallbackFS and UnavailableFile give the page served with 503 while no
	// snapshot is active. Without them the 503 is plain text.
	FallbackFS      fs.FS
	UnavailableFile string

	HTMLCacheControl  string // default "no-cache"
	AssetCacheControl string // default "public, max-age=3600"
	OtherCacheControl string // default "public, max-age=0"
}

func (o *Options) setDefaults() {
	if o.Logger == nil {
		o.Logger = log.Nop()
	}
	if o.IndexFile == "" {
		o.IndexFile = "index.html"
	}
	if o.HTMLCacheControl == "" {
		o.HTMLCacheControl = "no-cache"
	}
	if o.AssetCacheControl == "" {
		o.AssetCacheControl = "public, max-age=3600"
	}
	if o.OtherCacheControl == "" {
		o.OtherCacheControl = "public, max-age=0"
	}
}

func (o *Options) validate() error {
	if o.Content == nil {
		return fmt.Errorf("%w: Content is nil", ErrInvalidOptions)
	}
	if !fs.ValidPath(o.IndexFile) || o.IndexFile == "." {
		return fmt.Errorf("%w: IndexFile %q is not a relative file name", ErrInvalidOptions, o.IndexFile)
	}
	if o.FallbackFS != nil && o.UnavailableFile != "" {
		if _, err := fs.Stat(o.FallbackFS, o.UnavailableFile); err != nil {
			return fmt.Errorf("%w: missing %q in fallback FS: %v", ErrInvalidOptions, o.UnavailableFile, err)
		}
	}
	return nil
}
