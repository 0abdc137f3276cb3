package partialjson

import "testing"

func TestIsCompleteObject(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		want  bool
	}{
		{"empty", "", false},
		{"truncated object", `{"a":1,"b`, false},
		{"truncated array", `[1,2,`, false},
		{"complete object", `{"a":1}`, true},
		{"complete array", `[1,2,3]`, true},
		{"complete string", `"hello"`, true},
		{"complete number", `42`, true},
		{"whitespace padded complete", ` {"a":1} `, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IsCompleteObject(tt.text)
			if got != tt.want {
				t.Errorf("IsCompleteObject(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestTryParse_IncompleteHasNoValue(t *testing.T) {
	result := TryParse(`{"partial`)
	if result.State != StateIncomplete {
		t.Fatalf("expected StateIncomplete, got %v", result.State)
	}
	if result.Value != nil {
		t.Errorf("expected nil value for incomplete parse, got %v", result.Value)
	}
}

func TestTryParse_CompleteReturnsValue(t *testing.T) {
	result := TryParse(`{"a":1}`)
	if result.State != StateComplete {
		t.Fatalf("expected StateComplete, got %v", result.State)
	}
	m, ok := result.Value.(map[string]any)
	if !ok {
		t.Fatalf("expected map[string]any, got %T", result.Value)
	}
	if m["a"] != float64(1) {
		t.Errorf("expected a=1, got %v", m["a"])
	}
}
