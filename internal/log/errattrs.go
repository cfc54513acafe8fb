package log

import (
	"errors"
	"fmt"
	"reflect"
	"runtime"
	"strings"
)

// errorKV is the set of attrs added to every Error record with a non-nil err.
func (s *slogLogger) errorKV(err error) []any {
	surface, root := classifyTypes(err)
	kv := []any{"err", err, "error_type", surface, "cause_type", root}
	if chain := errorChain(err); len(chain) > 0 {
		kv = append(kv, "error_chain", chain)
	}
	if s.includeErrorLinks {
		kv = append(kv, "error_links", chainLinks(err, s.maxErrorLinks))
	}
	return kv
}

// errorChain lists each distinct message down the Unwrap chain, then the
// members of a top-level errors.Join.
func errorChain(err error) []string {
	out := make([]string, 0, 8)
	add := func(msg string) {
		if n := len(out); n == 0 || out[n-1] != msg {
			out = append(out, msg)
		}
	}
	for e := err; e != nil; e = errors.Unwrap(e) {
		add(e.Error())
	}
	if m, ok := err.(interface{ Unwrap() []error }); ok {
		for _, e := range m.Unwrap() {
			add(e.Error())
		}
	}
	return out
}

// chainLinks reports msg plus source position for each link that has one.
// The outermost link is always present. max <= 0 means unbounded.
func chainLinks(err error, max int) []map[string]any {
	links := make([]map[string]any, 0, 8)
	depth := 0
	for e := err; e != nil && (max <= 0 || depth < max); e = errors.Unwrap(e) {
		link := map[string]any{"msg": e.Error()}
		if fr, ok := linkFrame(e); ok {
			link["func"], link["file"], link["line"] = fr.Function, fr.File, fr.Line
			links = append(links, link)
		} else if depth == 0 {
			links = append(links, link)
		}
		depth++
	}
	return links
}

// linkFrame prefers a single recorded PC (Wrap/New) over a captured stack
// (EnsureTrace).
func linkFrame(e error) (runtime.Frame, bool) {
	if hp, ok := e.(hasPC); ok {
		return frameFromPC(hp.PC())
	}
	if hs, ok := e.(hasStack); ok {
		return firstExtFrame(hs.StackPCs())
	}
	return runtime.Frame{}, false
}

// classifyTypes returns the first non-wrapper type in the chain and the type
// of the innermost error.
func classifyTypes(err error) (surface, root string) {
	if err == nil {
		return "", ""
	}
	var last error
	for e := err; e != nil; e = errors.Unwrap(e) {
		last = e
		if surface == "" && !wrapperType(reflect.TypeOf(e)) {
			surface = reflect.TypeOf(e).String()
		}
	}
	if surface == "" {
		surface = fmt.Sprintf("%T", err)
	}
	return surface, fmt.Sprintf("%T", last)
}

// wrapperType reports xerrors and fmt.Errorf wrappers, which carry context
// rather than meaning.
func wrapperType(t reflect.Type) bool {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	pkg := t.PkgPath()
	return strings.Contains(pkg, "/internal/xerrors") || (pkg == "fmt" && t.Name() == "wrapError")
}
