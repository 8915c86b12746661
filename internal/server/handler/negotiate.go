package handler

import (
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/sevigo/locomote-server/internal/negotiator"
)

// qValue is one entry of a weighted Accept-* header: a value plus its
// "q" parameter (default 1.0 when absent).
type qValue struct {
	value string
	q     float64
}

// parseQList parses an Accept/Accept-Language/Accept-Encoding header
// into a descending-q-weighted value list. internal/negotiator.Bundle
// takes an already-ordered preference list with no q-value weighting
// of its own (spec §4.9 leaves q-sorting to the HTTP layer), so this
// is the one piece of RFC 7231 Accept-header parsing this port needs;
// no example in the pack implements generic weighted header parsing,
// so it's hand-rolled against the standard library rather than adapted
// from a dependency.
func parseQList(header string) []string {
	if header == "" {
		return nil
	}
	parts := strings.Split(header, ",")
	values := make([]qValue, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		fields := strings.Split(p, ";")
		value := strings.TrimSpace(fields[0])
		q := 1.0
		for _, param := range fields[1:] {
			param = strings.TrimSpace(param)
			if rest, ok := strings.CutPrefix(param, "q="); ok {
				if parsed, err := strconv.ParseFloat(rest, 64); err == nil {
					q = parsed
				}
			}
		}
		values = append(values, qValue{value: value, q: q})
	}
	sort.SliceStable(values, func(i, j int) bool { return values[i].q > values[j].q })

	out := make([]string, 0, len(values))
	for _, v := range values {
		out = append(out, v.value)
	}
	return out
}

// negotiatorHeaders builds internal/negotiator.Headers from r's
// Accept-family headers.
func negotiatorHeaders(r *http.Request) negotiator.Headers {
	return negotiator.Headers{
		Accept:         parseQList(r.Header.Get("Accept")),
		AcceptLanguage: parseQList(r.Header.Get("Accept-Language")),
		AcceptEncoding: parseQList(r.Header.Get("Accept-Encoding")),
	}
}

// acceptsHTML reports whether r's Accept header prefers an HTML
// response, used to decide whether an error response gets a rendered
// error page or an empty body (spec §6.1).
func acceptsHTML(r *http.Request) bool {
	for _, v := range parseQList(r.Header.Get("Accept")) {
		if v == "text/html" || v == "*/*" {
			return true
		}
	}
	return false
}
