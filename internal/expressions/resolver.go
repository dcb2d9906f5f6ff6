// Package expressions implements the restricted template language used to
// wire step outputs into later steps and into the UI: dotted-path lookups
// wrapped in {{ }} delimiters, inline string interpolation, and a small
// condition evaluator. No general scripting engine is embedded.
package expressions

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// PathError reports a failed dotted-path resolution. NotFound distinguishes
// "path does not exist" (callers may treat it as missing input) from
// structurally invalid paths.
type PathError struct {
	Path     string
	Segment  string
	NotFound bool
	Reason   string
}

func (e *PathError) Error() string {
	if e.NotFound {
		return fmt.Sprintf("path %q: segment %q not found", e.Path, e.Segment)
	}
	return fmt.Sprintf("path %q: segment %q: %s", e.Path, e.Segment, e.Reason)
}

var markerPattern = regexp.MustCompile(`\{\{\s*([^{}]+?)\s*\}\}`)

// wholePattern matches a string that is exactly one marker, modulo
// surrounding whitespace. Such references resolve to the raw value at the
// path, preserving its type.
var wholePattern = regexp.MustCompile(`^\s*\{\{\s*([^{}]+?)\s*\}\}\s*$`)

// Resolve renders a value against the context. Strings holding a single
// whole-string reference resolve to the exact value at that path; strings
// with inline markers render to a string; maps and slices are resolved
// element-wise; everything else passes through untouched. Missing paths are
// strict errors.
func Resolve(value any, ctx map[string]any) (any, error) {
	switch v := value.(type) {
	case string:
		return resolveString(v, ctx)
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, elem := range v {
			resolved, err := Resolve(elem, ctx)
			if err != nil {
				return nil, err
			}
			out[key] = resolved
		}
		return out, nil
	case []any:
		out := make([]any, len(v))
		for i, elem := range v {
			resolved, err := Resolve(elem, ctx)
			if err != nil {
				return nil, err
			}
			out[i] = resolved
		}
		return out, nil
	default:
		return value, nil
	}
}

func resolveString(s string, ctx map[string]any) (any, error) {
	if m := wholePattern.FindStringSubmatch(s); m != nil {
		return ResolvePath(ctx, m[1])
	}

	var resolveErr error
	rendered := markerPattern.ReplaceAllStringFunc(s, func(marker string) string {
		if resolveErr != nil {
			return marker
		}
		path := markerPattern.FindStringSubmatch(marker)[1]
		value, err := ResolvePath(ctx, path)
		if err != nil {
			resolveErr = err
			return marker
		}
		return Stringify(value)
	})
	if resolveErr != nil {
		return nil, resolveErr
	}
	return rendered, nil
}

// ResolvePath walks a dotted path through nested maps and slices. Slice
// elements are addressed by stringified integer index. Missing keys and
// out-of-range indexes yield a NotFound PathError; non-integer segments
// against a slice and any segment against a scalar are structural errors.
func ResolvePath(ctx map[string]any, path string) (any, error) {
	var current any = ctx
	for _, segment := range strings.Split(path, ".") {
		segment = strings.TrimSpace(segment)
		if segment == "" {
			return nil, &PathError{Path: path, Segment: segment, Reason: "empty segment"}
		}
		switch node := current.(type) {
		case map[string]any:
			value, ok := node[segment]
			if !ok {
				return nil, &PathError{Path: path, Segment: segment, NotFound: true}
			}
			current = value
		case []any:
			index, err := strconv.Atoi(segment)
			if err != nil {
				return nil, &PathError{Path: path, Segment: segment, Reason: "array index must be an integer"}
			}
			if index < 0 || index >= len(node) {
				return nil, &PathError{Path: path, Segment: segment, NotFound: true}
			}
			current = node[index]
		default:
			return nil, &PathError{Path: path, Segment: segment, Reason: fmt.Sprintf("cannot descend into %T", current)}
		}
	}
	return current, nil
}

// IsNotFound reports whether err is a NotFound path resolution failure.
func IsNotFound(err error) bool {
	pathErr, ok := err.(*PathError)
	return ok && pathErr.NotFound
}

// Stringify renders a resolved value for inline interpolation. Containers
// are JSON-encoded so templates stay deterministic.
func Stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	default:
		encoded, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprintf("%v", t)
		}
		return string(encoded)
	}
}
