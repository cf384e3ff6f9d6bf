package replyparse

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecodeShapes(t *testing.T) {
	tests := []struct {
		name      string
		reply     string
		wantItems []string
		wantShape string
		wantEmpty bool
	}{
		{
			name:      "flat array",
			reply:     `["Acme Rival", "Widget World"]`,
			wantItems: []string{"Acme Rival", "Widget World"},
			wantShape: "string_array",
		},
		{
			name:      "flat array skips non strings",
			reply:     `["Acme Rival", 42, null, "Gizmo Co"]`,
			wantItems: []string{"Acme Rival", "Gizmo Co"},
			wantShape: "string_array",
		},
		{
			name:      "array of objects",
			reply:     `[{"competitors": ["Acme Rival", "Widget World"]}, {"competitors": "Gizmo Co"}, {"other": 1}]`,
			wantItems: []string{"Acme Rival", "Widget World", "Gizmo Co"},
			wantShape: "object_array_field",
		},
		{
			name:      "object with field",
			reply:     `{"competitors": ["Acme Rival"], "note": "x"}`,
			wantItems: []string{"Acme Rival"},
			wantShape: "object_field",
		},
		{
			name:      "fenced json",
			reply:     "Sure!\n```json\n[\"Acme Rival\", \"Gizmo Co\"]\n```",
			wantItems: []string{"Acme Rival", "Gizmo Co"},
			wantShape: "fenced_json",
		},
		{
			name:      "json inside prose",
			reply:     `Here you go: {"competitors": ["Acme Rival"]} hope it helps`,
			wantItems: []string{"Acme Rival"},
			wantShape: "fenced_json",
		},
		{
			name:      "salvage from broken json",
			reply:     `["Acme Rival", "Widget World", "Gizmo`,
			wantItems: []string{"Acme Rival", "Widget World"},
			wantShape: "quoted_salvage",
		},
		{
			name:      "salvage skips keys",
			reply:     `{"competitors": ["Acme Rival" "Gizmo Co"]}`,
			wantItems: []string{"Acme Rival", "Gizmo Co"},
			wantShape: "quoted_salvage",
		},
		{
			name:      "garbage",
			reply:     `I can't help with that.`,
			wantShape: ShapeNone,
		},
		{
			name:      "empty",
			reply:     "   ",
			wantShape: ShapeNone,
		},
		{
			name:      "empty array is an empty list",
			reply:     `[]`,
			wantShape: "string_array",
			wantEmpty: true,
		},
		{
			name:      "empty field is an empty list",
			reply:     `{"competitors": []}`,
			wantShape: "object_field",
			wantEmpty: true,
		},
		{
			name:      "fenced empty array",
			reply:     "```json\n[]\n```",
			wantShape: "fenced_json",
			wantEmpty: true,
		},
		{
			name:      "array without strings is not a list of names",
			reply:     `[1, 2, null]`,
			wantShape: ShapeNone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Decode(tt.reply, ListMatchers("competitors")...)
			assert.Equal(t, tt.wantShape, got.Shape)
			assert.Equal(t, tt.wantItems, got.Items)
			assert.Equal(t, tt.wantEmpty, got.Empty)
			assert.Equal(t, tt.wantShape != ShapeNone && !tt.wantEmpty, got.OK())
		})
	}
}

func TestDecodeRespectsMatcherOrder(t *testing.T) {
	reply := `{"categories": ["A"]}`

	got := Decode(reply, QuotedSalvage(), ObjectField("categories"))
	assert.Equal(t, "quoted_salvage", got.Shape)
	assert.Equal(t, []string{"A"}, got.Items)

	got = Decode(reply, StringArray())
	assert.False(t, got.OK())
}

func TestClean(t *testing.T) {
	tests := []struct {
		name  string
		items []string
		limit int
		want  []string
	}{
		{"trims and drops empties", []string{"  a ", "", "   ", "b"}, 0, []string{"a", "b"}},
		{"case insensitive dedupe keeps first", []string{"Acme", "ACME", "acme ", "Beta"}, 0, []string{"Acme", "Beta"}},
		{"caps", []string{"a", "b", "c", "d", "e", "f"}, 4, []string{"a", "b", "c", "d"}},
		{"cap counts kept items only", []string{"a", "", "a", "b"}, 2, []string{"a", "b"}},
		{"nil", nil, 5, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Clean(tt.items, tt.limit))
		})
	}
}

func TestDecodeNeverPanics(t *testing.T) {
	inputs := []string{
		`[`, `{`, `"`, `"\`, "```", "```json\n```", `[{"competitors": 5}]`,
		`{"competitors": {"nested": true}}`, `[[["deep"]]]`, `"a" : "b"`,
	}
	for _, in := range inputs {
		assert.NotPanics(t, func() {
			got := Decode(in, ListMatchers("competitors")...)
			assert.LessOrEqual(t, 0, len(got.Items))
		}, in)
	}
}
