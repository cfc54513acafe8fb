package content

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"path"
	"strings"
	"testing/fstest"

	"github.com/keithlinneman/linnemanlabs-static/internal/xerrors"
)

// Limits bounds bundle download and extraction.
type Limits struct {
	MaxBundle int64 // compressed size
	MaxFile   int64 // single extracted file
	MaxTotal  int64 // all extracted files
}

// DefaultLimits: 50MB bundle, 10MB per file, 100MB extracted.
func DefaultLimits() Limits {
	return Limits{
		MaxBundle: 50 << 20,
		MaxFile:   10 << 20,
		MaxTotal:  100 << 20,
	}
}

// readWithHash reads at most maxSize bytes of r and returns them with their
// hex SHA-256.
func readWithHash(r io.Reader, maxSize int64) ([]byte, string, error) {
	h := sha256.New()
	data, err := io.ReadAll(io.TeeReader(io.LimitReader(r, maxSize+1), h))
	if err != nil {
		return nil, "", xerrors.Wrap(err, "read bundle")
	}
	if int64(len(data)) > maxSize {
		return nil, "", xerrors.Newf("bundle exceeds max size of %d bytes", maxSize)
	}
	return data, hex.EncodeToString(h.Sum(nil)), nil
}

// cleanArchivePath returns the fs.FS name for a tar entry, or "" for entries
// that name the archive root.
func cleanArchivePath(name string) (string, error) {
	if strings.ContainsAny(name, "\\\x00") {
		return "", xerrors.Newf("invalid path in archive: %q", name)
	}
	if path.IsAbs(name) {
		return "", xerrors.Newf("absolute path in archive: %q", name)
	}
	for _, seg := range strings.Split(name, "/") {
		if seg == ".." {
			return "", xerrors.Newf("path traversal in archive: %q", name)
		}
	}
	clean := path.Clean(name)
	if clean == "." {
		return "", nil
	}
	return clean, nil
}

// extractTarGz unpacks a gzip'd tarball into an in-memory filesystem.
// Only directories and regular files are accepted.
func extractTarGz(data []byte, lim Limits) (fstest.MapFS, int64, error) {
	gr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, 0, xerrors.Wrap(err, "open gzip")
	}
	defer gr.Close()

	mfs := make(fstest.MapFS)
	tr := tar.NewReader(gr)
	var total int64

	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, 0, xerrors.Wrap(err, "read tar header")
		}

		name, err := cleanArchivePath(hdr.Name)
		if err != nil {
			return nil, 0, err
		}

		switch hdr.Typeflag {
		case tar.TypeDir, tar.TypeXGlobalHeader:
			continue
		case tar.TypeReg:
		default:
			return nil, 0, xerrors.Newf("unsupported entry in archive: %s (type %q)", hdr.Name, hdr.Typeflag)
		}
		if name == "" {
			continue
		}
		if hdr.Size > lim.MaxFile {
			return nil, 0, xerrors.Newf("file %s exceeds max size (%d > %d)", name, hdr.Size, lim.MaxFile)
		}

		body, err := io.ReadAll(io.LimitReader(tr, lim.MaxFile+1))
		if err != nil {
			return nil, 0, xerrors.Wrapf(err, "read %s", name)
		}
		if int64(len(body)) > lim.MaxFile {
			return nil, 0, xerrors.Newf("file %s exceeds max size", name)
		}
		total += int64(len(body))
		if total > lim.MaxTotal {
			return nil, 0, xerrors.Newf("extracted size exceeds limit of %d bytes", lim.MaxTotal)
		}

		mfs[name] = &fstest.MapFile{
			Data:    body,
			Mode:    hdr.FileInfo().Mode().Perm(),
			ModTime: hdr.ModTime,
		}
	}

	return mfs, total, nil
}
