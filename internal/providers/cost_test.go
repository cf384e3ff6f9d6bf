package providers

import (
	"math"
	"strings"
	"testing"
)

func TestCalculateCost(t *testing.T) {
	tests := []struct {
		name     string
		provider string
		model    string
		input    int
		output   int
		want     float64
	}{
		{"known model", "openai", "gpt-4.1-mini", 1_000_000, 1_000_000, 4.00},
		{"unknown openai model uses gpt-4.1", "openai", "gpt-unknown", 1_000_000, 0, 3.00},
		{"unknown anthropic model uses sonnet", "anthropic", "claude-next", 0, 1_000_000, 15.00},
		{"zero tokens", "openai", "gpt-4.1", 0, 0, 0},
	}

	s := NewCostService()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.CalculateCost(tt.provider, tt.model, tt.input, tt.output)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("CalculateCost() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSchemaInstruction(t *testing.T) {
	got, err := schemaInstruction(&JSONSchema{Name: "x", Schema: map[string]any{"type": "object"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := `{"type":"object"}`; !strings.Contains(got, want) {
		t.Errorf("instruction %q does not embed schema %q", got, want)
	}

	if _, err := schemaInstruction(&JSONSchema{Schema: make(chan int)}); err == nil {
		t.Error("expected marshal error for unsupported schema value")
	}
}
