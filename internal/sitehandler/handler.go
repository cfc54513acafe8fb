package sitehandler

import (
	"bytes"
	"io"
	"io/fs"
	"mime"
	"net/http"
	"path"
)

// Handler serves files from the active content snapshot.
type Handler struct {
	opts Options
}

func New(opts *Options) (*Handler, error) {
	o := *opts
	o.setDefaults()
	if err := o.validate(); err != nil {
		return nil, err
	}
	return &Handler{opts: o}, nil
}

// ServeHTTP serves the file a request path maps to. Directories are served
// through their index document, never as listings.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.begin(w, r)
	if !ok {
		return
	}

	file, redirectTo, found := resolvePath(r.URL.Path, h.opts.IndexFile, snap)
	if redirectTo != "" {
		if q := r.URL.RawQuery; q != "" {
			redirectTo += "?" + q
		}
		http.Redirect(w, r, redirectTo, http.StatusPermanentRedirect)
		return
	}
	if !found {
		h.serveNotFound(w, r, snap)
		return
	}
	h.serveFile(w, r, snap, file)
}

// ServeIndex serves the index document regardless of the request path.
// It backs the explicit "/" route.
func (h *Handler) ServeIndex(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.begin(w, r)
	if !ok {
		return
	}
	if !existsFile(snap, h.opts.IndexFile) {
		h.serveNotFound(w, r, snap)
		return
	}
	h.serveFile(w, r, snap, h.opts.IndexFile)
}

// MethodNotAllowed answers anything but GET and HEAD.
func (h *Handler) MethodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Allow", "GET, HEAD")
	w.Header().Set("Cache-Control", "no-store")
	http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
}

// begin checks the method and returns the active FS, answering the request
// itself when it cannot be served.
func (h *Handler) begin(w http.ResponseWriter, r *http.Request) (fs.FS, bool) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		h.MethodNotAllowed(w, r)
		return nil, false
	}
	snap, ok := h.opts.Content.Get()
	if !ok {
		h.serveUnavailable(w, r)
		return nil, false
	}
	return snap.FS, true
}

func (h *Handler) serveFile(w http.ResponseWriter, r *http.Request, fsys fs.FS, name string) {
	f, err := fsys.Open(name)
	if err != nil {
		h.serveNotFound(w, r, fsys)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || !info.Mode().IsRegular() {
		h.serveNotFound(w, r, fsys)
		return
	}

	if cc := cacheControlForFile(name, &h.opts); cc != "" {
		w.Header().Set("Cache-Control", cc)
	}

	rs, ok := f.(io.ReadSeeker)
	if !ok {
		// no range support without Seek: buffer it
		data, err := io.ReadAll(f)
		if err != nil {
			h.opts.Logger.Error(r.Context(), err, "read content file", "file", name)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		rs = bytes.NewReader(data)
	}
	http.ServeContent(w, r, name, info.ModTime(), rs)
}

func (h *Handler) serveNotFound(w http.ResponseWriter, r *http.Request, fsys fs.FS) {
	w.Header().Set("Cache-Control", "no-store")
	if h.opts.NotFoundFile != "" && existsFile(fsys, h.opts.NotFoundFile) {
		if writeFileWithStatus(w, r, http.StatusNotFound, fsys, h.opts.NotFoundFile) {
			return
		}
	}
	writePlain(w, r, http.StatusNotFound, "404 page not found")
}

func (h *Handler) serveUnavailable(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Retry-After", "60")
	if h.opts.FallbackFS != nil && h.opts.UnavailableFile != "" {
		if writeFileWithStatus(w, r, http.StatusServiceUnavailable, h.opts.FallbackFS, h.opts.UnavailableFile) {
			return
		}
	}
	writePlain(w, r, http.StatusServiceUnavailable, "503 content unavailable")
}

// writeFileWithStatus writes a whole file with a forced status. Conditional
// and range headers are ignored on purpose: error pages are never cached.
func writeFileWithStatus(w http.ResponseWriter, r *http.Request, status int, fsys fs.FS, name string) bool {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return false
	}
	ct := mime.TypeByExtension(path.Ext(name))
	if ct == "" {
		ct = http.DetectContentType(data)
	}
	w.Header().Set("Content-Type", ct)
	w.WriteHeader(status)
	if r.Method != http.MethodHead {
		_, _ = w.Write(data)
	}
	return true
}

func writePlain(w http.ResponseWriter, r *http.Request, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	if r.Method != http.MethodHead {
		_, _ = io.WriteString(w, body)
	}
}
