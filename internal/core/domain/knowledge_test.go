package domain

import (
	"encoding/json"
	"testing"
)

func TestAttributesRoundTripPreservesOrder(t *testing.T) {
	raw := `{"rule_type":"annual_leave","days":"12","accrual":"theo thâm niên"}`

	var a Attributes
	if err := json.Unmarshal([]byte(raw), &a); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	want := []string{"rule_type", "days", "accrual"}
	keys := a.Keys()
	if len(keys) != len(want) {
		t.Fatalf("keys = %v", keys)
	}
	for i, k := range want {
		if keys[i] != k {
			t.Fatalf("keys = %v, want %v", keys, want)
		}
	}

	out, err := json.Marshal(a)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != raw {
		t.Errorf("round trip = %s", out)
	}
}

func TestAttributesCoercesScalarValues(t *testing.T) {
	var a Attributes
	if err := json.Unmarshal([]byte(`{"days":12,"paid":true}`), &a); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if v, _ := a.Get("days"); v != "12" {
		t.Errorf("days = %q", v)
	}
	if v, _ := a.Get("paid"); v != "true" {
		t.Errorf("paid = %q", v)
	}
}

func TestAttributesRejectsNonObject(t *testing.T) {
	var a Attributes
	if err := json.Unmarshal([]byte(`["x"]`), &a); err == nil {
		t.Fatal("expected error for non-object attributes")
	}
}

func TestChunkAccessors(t *testing.T) {
	c := KnowledgeChunk{Metadata: map[string]string{
		MetaDocID:      "noi_quy",
		MetaSourceType: string(SourceTree),
	}}
	if c.DocID() != "noi_quy" {
		t.Errorf("doc id = %q", c.DocID())
	}
	if c.SourceType() != SourceTree {
		t.Errorf("source type = %q", c.SourceType())
	}
}
