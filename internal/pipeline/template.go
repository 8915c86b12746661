// Package pipeline implements the multi-step streaming pipeline runtime
// described in spec §4.2: an init/open/step.../done chain where every
// step that declares a path template writes its output to a
// deterministic file under the cache directory first, and the runtime
// short-circuits a step entirely when that file already exists. It is
// grounded on the teacher's review pipeline shape (internal/jobs/review.go's
// ordered stage list) generalized from "run one fixed AI-review flow"
// to "run an arbitrary declared chain of named steps, any of which may
// be disk-cached".
package pipeline

import (
	"fmt"
	"strings"

	"github.com/sevigo/locomote-server/internal/core"
)

// interpolate substitutes every `{var}` or `{var.path}` occurrence in
// template from vars. `{var.path}` addresses a nested field by dotted
// path on a map[string]any stored at vars[var]; plain `{var}` expects a
// string value directly in vars.
func interpolate(template string, vars core.Vars) (string, error) {
	var out strings.Builder
	i := 0
	for i < len(template) {
		c := template[i]
		if c != '{' {
			out.WriteByte(c)
			i++
			continue
		}
		end := strings.IndexByte(template[i:], '}')
		if end < 0 {
			return "", fmt.Errorf("pipeline: unterminated template variable in %q", template)
		}
		expr := template[i+1 : i+end]
		val, err := resolveExpr(expr, vars)
		if err != nil {
			return "", fmt.Errorf("pipeline: template %q: %w", template, err)
		}
		out.WriteString(val)
		i += end + 1
	}
	return out.String(), nil
}

func resolveExpr(expr string, vars core.Vars) (string, error) {
	parts := strings.SplitN(expr, ".", 2)
	v, ok := vars[parts[0]]
	if !ok {
		return "", fmt.Errorf("no such var %q", parts[0])
	}
	if len(parts) == 1 {
		return stringify(v)
	}
	return resolvePath(v, parts[1])
}

func resolvePath(v any, path string) (string, error) {
	cur := v
	for _, seg := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return "", fmt.Errorf("cannot descend into %q: not an object", seg)
		}
		next, ok := m[seg]
		if !ok {
			return "", fmt.Errorf("no such field %q", seg)
		}
		cur = next
	}
	return stringify(cur)
}

func stringify(v any) (string, error) {
	switch t := v.(type) {
	case string:
		return t, nil
	case fmt.Stringer:
		return t.String(), nil
	default:
		return fmt.Sprintf("%v", t), nil
	}
}
