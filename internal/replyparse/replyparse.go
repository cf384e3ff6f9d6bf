// Package replyparse decodes list-shaped model replies. A reply may be a
// JSON array, an array of objects carrying a list field, an object carrying
// a list field, fenced JSON, or loose text with quoted strings. Decode runs
// an ordered list of matchers and reports which one succeeded.
package replyparse

import (
	"encoding/json"
	"regexp"
	"strings"
)

// ShapeNone marks a reply no matcher could decode.
const ShapeNone = "none"

// Result is the decoded list plus the name of the matcher that produced it.
// Empty is set when no matcher found items but one decoded a well-formed
// empty list, such as `[]` or `{"field": []}`; Shape then names that matcher.
type Result struct {
	Items []string
	Shape string
	Empty bool
}

// OK reports whether any matcher produced at least one item.
func (r Result) OK() bool {
	return r.Shape != ShapeNone && len(r.Items) > 0
}

// Matcher tries to decode a reply. ok is false when the reply does not have
// the matcher's shape, in which case Decode falls through to the next one.
type Matcher interface {
	Name() string
	Match(reply string) (items []string, ok bool)
}

// Decode returns the first successful, non-empty match. Failing that, it
// reports the first matcher that decoded an empty list.
func Decode(reply string, matchers ...Matcher) Result {
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return Result{Shape: ShapeNone}
	}
	empty := ""
	for _, m := range matchers {
		items, ok := m.Match(reply)
		if !ok {
			continue
		}
		if len(items) > 0 {
			return Result{Items: items, Shape: m.Name()}
		}
		if empty == "" {
			empty = m.Name()
		}
	}
	if empty != "" {
		return Result{Shape: empty, Empty: true}
	}
	return Result{Shape: ShapeNone}
}

// ListMatchers is the standard chain for a reply expected to hold a list
// under field: flat array, array of objects, object, fenced JSON, salvage.
func ListMatchers(field string) []Matcher {
	structured := []Matcher{StringArray(), ObjectArrayField(field), ObjectField(field)}
	return append(append(structured, FencedJSON(structured...)), QuotedSalvage())
}

type matcherFunc struct {
	name string
	fn   func(string) ([]string, bool)
}

func (m matcherFunc) Name() string { return m.name }
func (m matcherFunc) Match(reply string) ([]string, bool) { return m.fn(reply) }

// StringArray matches `["a", "b"]` and `[]`. Non-string entries are
// skipped; an array holding no strings at all is not this shape.
func StringArray() Matcher {
	return matcherFunc{name: "string_array", fn: func(reply string) ([]string, bool) {
		var raw []any
		if err := json.Unmarshal([]byte(reply), &raw); err != nil {
			return nil, false
		}
		items := stringsOf(raw)
		if len(raw) > 0 && len(items) == 0 {
			return nil, false
		}
		return items, true
	}}
}

// ObjectArrayField matches `[{"field": [...]}, {"field": "x"}]` and
// concatenates the field values in order.
func ObjectArrayField(field string) Matcher {
	return matcherFunc{name: "object_array_field", fn: func(reply string) ([]string, bool) {
		var raw []map[string]any
		if err := json.Unmarshal([]byte(reply), &raw); err != nil {
			return nil, false
		}
		var out []string
		found := false
		for _, obj := range raw {
			v, ok := obj[field]
			if !ok {
				continue
			}
			found = true
			out = append(out, valueStrings(v)...)
		}
		return out, found
	}}
}

// ObjectField matches `{"field": [...]}`.
func ObjectField(field string) Matcher {
	return matcherFunc{name: "object_field", fn: func(reply string) ([]string, bool) {
		var raw map[string]any
		if err := json.Unmarshal([]byte(reply), &raw); err != nil {
			return nil, false
		}
		v, ok := raw[field]
		if !ok {
			return nil, false
		}
		return valueStrings(v), true
	}}
}

var fencePattern = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")
var bracketPattern = regexp.MustCompile(`(?s)[\[{].*[\]}]`)

// FencedJSON pulls JSON out of a markdown code fence, or out of the first
// bracketed span of surrounding prose, and retries inner on it.
func FencedJSON(inner ...Matcher) Matcher {
	return matcherFunc{name: "fenced_json", fn: func(reply string) ([]string, bool) {
		var candidate string
		if m := fencePattern.FindStringSubmatch(reply); m != nil {
			candidate = strings.TrimSpace(m[1])
		} else if m := bracketPattern.FindString(reply); m != "" && m != reply {
			candidate = m
		}
		if candidate == "" {
			return nil, false
		}
		matched := false
		for _, im := range inner {
			items, ok := im.Match(candidate)
			if ok && len(items) > 0 {
				return items, true
			}
			matched = matched || ok
		}
		return nil, matched
	}}
}

var quotedPattern = regexp.MustCompile(`"((?:[^"\\]|\\.)*)"`)

// QuotedSalvage collects every double-quoted substring. Bare JSON keys such
// as "competitors" are dropped when followed by a colon.
func QuotedSalvage() Matcher {
	return matcherFunc{name: "quoted_salvage", fn: func(reply string) ([]string, bool) {
		var out []string
		for _, loc := range quotedPattern.FindAllStringSubmatchIndex(reply, -1) {
			rest := strings.TrimLeft(reply[loc[1]:], " \t")
			if strings.HasPrefix(rest, ":") {
				continue
			}
			s := reply[loc[2]:loc[3]]
			if unq, err := unquote(s); err == nil {
				s = unq
			}
			out = append(out, s)
		}
		return out, len(out) > 0
	}}
}

// Clean trims, drops empties and case-insensitive duplicates, and caps the
// list at limit entries. limit <= 0 means no cap.
func Clean(items []string, limit int) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		key := strings.ToLower(item)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, item)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

func valueStrings(v any) []string {
	switch t := v.(type) {
	case string:
		return []string{t}
	case []any:
		return stringsOf(t)
	}
	return nil
}

func stringsOf(raw []any) []string {
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func unquote(s string) (string, error) {
	var out string
	err := json.Unmarshal([]byte(`"`+s+`"`), &out)
	return out, err
}
