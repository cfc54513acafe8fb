package sitehandler

import (
	"io/fs"
	"path"
	"strings"

	"github.com/keithlinneman/linnemanlabs-static/internal/pathutil"
)

// resolvePath maps a URL path to a file name within fsys.
//
// file is set when a file was found; redirectTo is set when the path names a
// directory without its trailing slash and that directory has an index.
// Paths with dot segments, dotfiles, backslashes or NUL bytes never resolve.
func resolvePath(urlPath, index string, fsys fs.FS) (file, redirectTo string, ok bool) {
	p := urlPath
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if strings.ContainsAny(p, "\x00\\") || pathutil.HasDotSegments(p) || pathutil.HasHiddenSegment(p) {
		return "", "", false
	}

	dir := strings.HasSuffix(p, "/")
	clean := path.Clean(p)
	rel := strings.TrimPrefix(clean, "/")

	if clean == "/" {
		if existsFile(fsys, index) {
			return index, "", true
		}
		return "", "", false
	}

	if dir {
		name := rel + "/" + index
		if existsFile(fsys, name) {
			return name, "", true
		}
		return "", "", false
	}

	if existsFile(fsys, rel) {
		return rel, "", true
	}
	if existsFile(fsys, rel+"/"+index) {
		return "", clean + "/", true
	}
	return "", "", false
}

func existsFile(fsys fs.FS, name string) bool {
	if name == "" || !fs.ValidPath(name) {
		return false
	}
	info, err := fs.Stat(fsys, name)
	return err == nil && info.Mode().IsRegular()
}
