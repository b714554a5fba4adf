package domain

import (
	"reflect"
	"testing"
)

func TestDecodeOptions(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want []string
	}{
		{"native string slice", []string{"a", "b"}, []string{"a", "b"}},
		{"decoded json list", []any{"a", "b"}, []string{"a", "b"}},
		{"encoded text", `["a","b"]`, []string{"a", "b"}},
		{"garbage text", `not json`, []string{}},
		{"nil", nil, []string{}},
		{"wrong type", 42, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DecodeOptions(tt.in); !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestQuestionFromFieldsCoercesNumbers(t *testing.T) {
	q := QuestionFromFields("q1", map[string]any{
		"question": "pick one",
		"options":  `["x","y"]`,
		"index":    float64(1), // as JSON decoding produces
	})
	if q.ID != "q1" || q.Prompt != "pick one" || q.CorrectIndex != 1 {
		t.Fatalf("unexpected question: %+v", q)
	}
	if len(q.Options) != 2 {
		t.Fatalf("expected coerced options, got %v", q.Options)
	}
}

func TestPlayerFromFieldsDefaults(t *testing.T) {
	p := PlayerFromFields("p1", map[string]any{"username": "alice", "role": RolePlayer})
	if p.Attempted || p.Moved || p.Score != 0 {
		t.Fatalf("missing flags must default to false/zero: %+v", p)
	}
	if !p.Eligible() {
		t.Fatalf("fresh player should be eligible")
	}
	if PlayerFromFields("p2", map[string]any{"attempted": true}).Eligible() {
		t.Fatalf("attempted player must not be eligible")
	}
}
