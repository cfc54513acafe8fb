package sitehttp

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Site is the static content handler mounted on the public router.
type Site interface {
	http.Handler
	ServeIndex(w http.ResponseWriter, r *http.Request)
	MethodNotAllowed(w http.ResponseWriter, r *http.Request)
}

type Routes struct {
	Site Site
}

func New(site Site) *Routes {
	return &Routes{Site: site}
}

// RegisterRoutes maps "/" to the index document explicitly and every other
// path to the static handler. Only GET and HEAD are routed.
func (rt *Routes) RegisterRoutes(r chi.Router) {
	r.Get("/", rt.Site.ServeIndex)
	r.Head("/", rt.Site.ServeIndex)

	r.Get("/*", rt.Site.ServeHTTP)
	r.Head("/*", rt.Site.ServeHTTP)

	r.MethodNotAllowed(rt.Site.MethodNotAllowed)
}
