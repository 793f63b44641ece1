package toolgen

import (
	"testing"

	"github.com/i-dream-of-ai/ipybox/toolrun"
)

func TestDeriveParamRecordTypedFields(t *testing.T) {
	tool := toolrun.ToolSchema{
		Name: "search",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{"type": "string", "description": "search text"},
				"limit": map[string]any{"type": "integer"},
			},
			"required": []any{"query"},
		},
	}
	rec, err := deriveParamRecord(tool)
	if err != nil {
		t.Fatalf("deriveParamRecord: %v", err)
	}
	if rec.Open {
		t.Fatal("expected a typed record, got an open record")
	}
	if len(rec.Fields) != 2 {
		t.Fatalf("len(Fields) = %d, want 2", len(rec.Fields))
	}
	var query *field
	for i := range rec.Fields {
		if rec.Fields[i].Name == "query" {
			query = &rec.Fields[i]
		}
	}
	if query == nil {
		t.Fatal("missing query field")
	}
	if query.PyType != "str" || !query.Required {
		t.Fatalf("query field = %+v", query)
	}
}

func TestDeriveParamRecordDegradesToOpenRecord(t *testing.T) {
	tool := toolrun.ToolSchema{
		Name: "passthrough",
		InputSchema: map[string]any{
			"type":                 "object",
			"additionalProperties": true,
		},
	}
	rec, err := deriveParamRecord(tool)
	if err != nil {
		t.Fatalf("deriveParamRecord: %v", err)
	}
	if !rec.Open {
		t.Fatal("expected an open record")
	}
}

func TestDeriveParamRecordEmptyPropertiesIsOpen(t *testing.T) {
	tool := toolrun.ToolSchema{
		Name:        "noop",
		InputSchema: map[string]any{"type": "object"},
	}
	rec, err := deriveParamRecord(tool)
	if err != nil {
		t.Fatalf("deriveParamRecord: %v", err)
	}
	if !rec.Open {
		t.Fatal("expected a schema with no properties to degrade to an open record")
	}
}
