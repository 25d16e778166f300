// Package keys builds the Redis keys under which backend metadata is shared
// between adapter replicas.
package keys

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"
)

const prefix = "gee-wms"

// ServerDefs is the key of the normalized server-definitions document for
// one (server URL, target path) pair. The readable part is capped; the hash
// keeps distinct targets apart.
func ServerDefs(serverURL, targetPath string) string {
	server := normalizeURL(serverURL)
	target := normalizeTarget(targetPath)
	safe := sanitizeForKey(target)

	const maxTargetLen = 96
	if len(safe) > maxTargetLen {
		safe = safe[:maxTargetLen]
	}

	sum := xxhash.Sum64String(server + "\x00" + target)
	return fmt.Sprintf("%s:serverdefs:%s:h=%016x", prefix, safe, sum)
}

// TargetPattern matches every ServerDefs key of targetPath, whatever the server.
func TargetPattern(targetPath string) string {
	return fmt.Sprintf("%s:serverdefs:%s:h=*", prefix, sanitizeForKey(normalizeTarget(targetPath)))
}

func normalizeURL(s string) string {
	return strings.TrimRight(strings.ToLower(strings.TrimSpace(s)), "/")
}

func normalizeTarget(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, "/")
	return s
}

func sanitizeForKey(s string) string {
	if s == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(s))

	var prev rune
	for _, r := range s {
		out := rune(0)
		switch {
		case r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\v' || r == '\f':
			out = '_'
		case isAlphaNum(r) || r == '_' || r == '-' || r == '.':
			out = r
		default:
			// '/', ':' and non-ASCII become '-'
			out = '-'
		}
		if (out == '_' || out == '-') && out == prev {
			continue
		}
		b.WriteRune(out)
		prev = out
	}
	return b.String()
}

func isAlphaNum(r rune) bool {
	return (r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		unicode.IsDigit(r)
}
