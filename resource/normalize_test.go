package resource

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/crmarques/quayconf/faults"
	"github.com/google/go-cmp/cmp"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	t.Run("normalizes_nested_payload", func(t *testing.T) {
		t.Parallel()

		input := map[string]any{
			"uuid":  "45b4cc8b",
			"value": json.Number("5"),
			"limits": []any{
				uint32(3),
				json.Number("1.5"),
				float64(7),
			},
			"root_rule": map[string]any{
				"rule_value": []string{"latest", "v1*"},
			},
		}

		got, err := Normalize(input)
		if err != nil {
			t.Fatalf("Normalize returned error: %v", err)
		}

		expected := map[string]any{
			"uuid":  "45b4cc8b",
			"value": int64(5),
			"limits": []any{
				int64(3),
				float64(1.5),
				int64(7),
			},
			"root_rule": map[string]any{
				"rule_value": []any{"latest", "v1*"},
			},
		}

		if diff := cmp.Diff(expected, got); diff != "" {
			t.Fatalf("unexpected normalized payload (-want +got):\n%s", diff)
		}
	})

	t.Run("normalizes_structs_through_json", func(t *testing.T) {
		t.Parallel()

		type federation struct {
			Issuer     string `json:"issuer"`
			Subject    string `json:"subject"`
			IsExpanded bool   `json:"isExpanded"`
		}

		got, err := Normalize([]federation{{Issuer: "https://sso", Subject: "abc"}})
		if err != nil {
			t.Fatalf("Normalize returned error: %v", err)
		}
		expected := []any{map[string]any{"issuer": "https://sso", "subject": "abc", "isExpanded": false}}
		if diff := cmp.Diff(expected, got); diff != "" {
			t.Fatalf("unexpected normalized payload (-want +got):\n%s", diff)
		}
	})

	t.Run("rejects_non_finite_float", func(t *testing.T) {
		t.Parallel()

		_, err := Normalize(map[string]any{"value": math.Inf(1)})
		if !faults.IsCategory(err, faults.ValidationError) {
			t.Fatalf("expected validation error, got %v", err)
		}
	})

	t.Run("rejects_out_of_range_integers", func(t *testing.T) {
		t.Parallel()

		_, err := Normalize(json.Number("92233720368547758070"))
		if !faults.IsCategory(err, faults.ValidationError) {
			t.Fatalf("expected validation error, got %v", err)
		}
	})
}

func TestValuesEqual(t *testing.T) {
	t.Parallel()

	if !ValuesEqual(5, json.Number("5")) {
		t.Fatalf("expected int and json number to compare equal")
	}
	if ValuesEqual("5", 5) {
		t.Fatalf("expected string and number to differ")
	}
	if !ValuesEqual(nil, nil) {
		t.Fatalf("expected nil values to compare equal")
	}
	if !ValuesEqual(map[string]any{"verify_tls": true}, map[string]any{"verify_tls": true}) {
		t.Fatalf("expected equal nested maps")
	}
}
