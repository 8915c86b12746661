package manifest

import (
	"fmt"
	"strconv"
	"strings"
)

// resolveRefs walks a decoded JSON document and substitutes every object
// of the form {"$ref": "#/a/b"} with the subtree at that JSON pointer
// within the same document, after replacing the literal "{SOURCE}"
// segment in the pointer with branch. This is a small, self-contained
// transformer rather than a general JSON-Schema $ref resolver: Locomote
// manifests only ever point within themselves.
func resolveRefs(doc map[string]any, branch string) (map[string]any, error) {
	resolved, err := resolveValue(doc, doc, branch, 0)
	if err != nil {
		return nil, err
	}
	m, ok := resolved.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("manifest: root resolved to non-object")
	}
	return m, nil
}

const maxRefDepth = 16

func resolveValue(root map[string]any, v any, branch string, depth int) (any, error) {
	if depth > maxRefDepth {
		return nil, fmt.Errorf("manifest: $ref nesting too deep (possible cycle)")
	}
	switch node := v.(type) {
	case map[string]any:
		if ref, ok := refString(node); ok {
			target, err := lookupPointer(root, strings.ReplaceAll(ref, "{SOURCE}", branch))
			if err != nil {
				return nil, err
			}
			return resolveValue(root, target, branch, depth+1)
		}
		out := make(map[string]any, len(node))
		for k, child := range node {
			rv, err := resolveValue(root, child, branch, depth)
			if err != nil {
				return nil, err
			}
			out[k] = rv
		}
		return out, nil
	case []any:
		out := make([]any, len(node))
		for i, child := range node {
			rv, err := resolveValue(root, child, branch, depth)
			if err != nil {
				return nil, err
			}
			out[i] = rv
		}
		return out, nil
	default:
		return v, nil
	}
}

// refString reports whether node is exactly {"$ref": "<string>"}.
func refString(node map[string]any) (string, bool) {
	if len(node) != 1 {
		return "", false
	}
	ref, ok := node["$ref"]
	if !ok {
		return "", false
	}
	s, ok := ref.(string)
	return s, ok
}

// lookupPointer resolves a "#/a/b/0" style JSON pointer against root.
// The leading "#" is optional; an empty pointer returns root itself.
func lookupPointer(root map[string]any, ref string) (any, error) {
	ptr := strings.TrimPrefix(ref, "#")
	ptr = strings.TrimPrefix(ptr, "/")
	if ptr == "" {
		return root, nil
	}

	var cur any = root
	for _, raw := range strings.Split(ptr, "/") {
		tok := strings.ReplaceAll(strings.ReplaceAll(raw, "~1", "/"), "~0", "~")
		switch node := cur.(type) {
		case map[string]any:
			v, ok := node[tok]
			if !ok {
				return nil, fmt.Errorf("manifest: $ref %q: no such key %q", ref, tok)
			}
			cur = v
		case []any:
			idx, err := strconv.Atoi(tok)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, fmt.Errorf("manifest: $ref %q: invalid array index %q", ref, tok)
			}
			cur = node[idx]
		default:
			return nil, fmt.Errorf("manifest: $ref %q: %q is not addressable", ref, tok)
		}
	}
	return cur, nil
}
