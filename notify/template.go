package notify

import (
	"fmt"
	"regexp"
	"strings"
)

var tokenRe = regexp.MustCompile(`\{\{([^}]+)\}\}`)

// Interpolate replaces {{path}} tokens in template with values from data.
// Paths are dotted and resolved through nested maps. Tokens whose path
// resolves to nothing are left in place unchanged.
func Interpolate(template string, data map[string]any) string {
	return tokenRe.ReplaceAllStringFunc(template, func(match string) string {
		path := strings.TrimSpace(match[2 : len(match)-2])
		v, ok := lookup(data, path)
		if !ok {
			return match
		}
		return fmt.Sprint(v)
	})
}

// lookup resolves a dotted path through nested map[string]any values.
func lookup(data map[string]any, path string) (any, bool) {
	var current any = data
	for _, key := range strings.Split(path, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[key]
		if !ok {
			return nil, false
		}
	}
	return current, true
}
