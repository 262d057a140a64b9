// Package proxy implements the caching fetch coordinator: the in-memory
// and durable cache tiers, popularity-adaptive TTL selection, single-flight
// coalescing, stale-while-revalidate, and the hot-set refresher.
package proxy

import (
	"sort"
	"strings"

	"github.com/zeralabs/qnoracle/internal/proxy/upstream"
)

// Fingerprint computes the canonical cache key for a GET to path with the
// given query parameters: "GET|PATH?k1=v1&k2=v2", params sorted
// lexicographically by key then value. Parameters are the textual query as
// received, no type coercion.
func Fingerprint(path string, params []upstream.Param) string {
	sorted := make([]upstream.Param, len(params))
	copy(sorted, params)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Key != sorted[j].Key {
			return sorted[i].Key < sorted[j].Key
		}
		return sorted[i].Value < sorted[j].Value
	})

	var b strings.Builder
	b.WriteString("GET|")
	b.WriteString(path)
	if len(sorted) > 0 {
		b.WriteByte('?')
		for i, p := range sorted {
			if i > 0 {
				b.WriteByte('&')
			}
			b.WriteString(p.Key)
			b.WriteByte('=')
			b.WriteString(p.Value)
		}
	}
	return b.String()
}

// ParseFingerprint inverts Fingerprint, recovering (path, params) so the
// hot-set refresher can re-issue a coordinator Get for a fingerprint it only
// has as a string. Parameter order within the fingerprint is already sorted;
// callers that need to re-canonicalize will get the identical fingerprint
// back from the returned params.
func ParseFingerprint(fp string) (path string, params []upstream.Param, ok bool) {
	rest, found := strings.CutPrefix(fp, "GET|")
	if !found {
		return "", nil, false
	}

	path, query, hasQuery := strings.Cut(rest, "?")
	if !hasQuery {
		return path, nil, true
	}

	for _, pair := range strings.Split(query, "&") {
		if pair == "" {
			continue
		}
		k, v, _ := strings.Cut(pair, "=")
		params = append(params, upstream.Param{Key: k, Value: v})
	}
	return path, params, true
}
