package content

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/keithlinneman/linnemanlabs-static/internal/log"
	"github.com/keithlinneman/linnemanlabs-static/internal/xerrors"
)

// LoadDir returns a snapshot serving dir from disk. Files are read per
// request, so edits under dir show up without a reload. A missing index
// document is only logged: the root path will answer 404 until it exists.
func LoadDir(ctx context.Context, logger log.Logger, dir, index string) (*Snapshot, error) {
	if logger == nil {
		logger = log.Nop()
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, xerrors.Wrapf(err, "resolve public dir %q", dir)
	}
	fi, err := os.Stat(abs)
	if err != nil {
		return nil, xerrors.Wrapf(err, "stat public dir %q", abs)
	}
	if !fi.IsDir() {
		return nil, xerrors.Newf("public dir %q is not a directory", abs)
	}

	fsys := os.DirFS(abs)
	if index != "" {
		if _, err := fs.Stat(fsys, index); err != nil {
			logger.Warn(ctx, "index document missing from public dir",
				"dir", abs,
				"index", index,
			)
		}
	}

	return &Snapshot{
		FS:       fsys,
		Meta:     Meta{Source: SourceDir},
		LoadedAt: time.Now().UTC(),
	}, nil
}
