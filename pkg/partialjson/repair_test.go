package partialjson

import (
	"encoding/json"
	"testing"
)

func TestRepair_ClosesTruncatedObject(t *testing.T) {
	repaired := Repair(`{"location":"San Francisco","unit":"fah`)

	var v map[string]any
	if err := json.Unmarshal([]byte(repaired), &v); err != nil {
		t.Fatalf("repaired JSON still invalid: %v (%q)", err, repaired)
	}
	if v["location"] != "San Francisco" {
		t.Errorf("expected location preserved, got %v", v["location"])
	}
}

func TestRepair_ClosesTruncatedArray(t *testing.T) {
	repaired := Repair(`{"items":[1,2,3`)

	var v map[string]any
	if err := json.Unmarshal([]byte(repaired), &v); err != nil {
		t.Fatalf("repaired JSON still invalid: %v (%q)", err, repaired)
	}
}

func TestRepair_ClosesTruncatedLiteral(t *testing.T) {
	repaired := Repair(`{"done":tru`)

	var v map[string]any
	if err := json.Unmarshal([]byte(repaired), &v); err != nil {
		t.Fatalf("repaired JSON still invalid: %v (%q)", err, repaired)
	}
	if v["done"] != true {
		t.Errorf("expected done=true, got %v", v["done"])
	}
}

func TestRepair_EmptyInputStaysEmpty(t *testing.T) {
	if got := Repair(""); got != "" {
		t.Errorf("expected empty string, got %q", got)
	}
}

func TestRepair_AlreadyCompleteIsUnchanged(t *testing.T) {
	complete := `{"a":1}`
	repaired := Repair(complete)

	var v map[string]any
	if err := json.Unmarshal([]byte(repaired), &v); err != nil {
		t.Fatalf("expected valid JSON, got error: %v", err)
	}
}
