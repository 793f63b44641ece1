package toolgen

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"

	"github.com/i-dream-of-ai/ipybox/ipyerr"
	"github.com/i-dream-of-ai/ipybox/toolrun"
)

// field is one member of a generated stub's typed parameter record.
type field struct {
	Name     string
	PyType   string
	Required bool
	Doc      string
}

// paramRecord is the typed-record shape toolgen derives from a tool's
// JSON Schema, per spec.md §4.4.
type paramRecord struct {
	Fields []field
	// Open is true when the schema declares no properties, whatever its
	// additionalProperties says, and toolgen degrades to a dict
	// passthrough instead of a fully typed record. A schema with declared
	// properties always gets a typed record.
	Open bool
}

// jsonSchemaMetaSchema is a loader referencing the draft-07 meta-schema.
// deriveParamRecord does not use it; it checks a tool's schema by
// compiling it with gojsonschema.NewSchema.
var jsonSchemaMetaSchema = gojsonschema.NewStringLoader(`{"$schema":"http://json-schema.org/draft-07/schema#"}`)

// deriveParamRecord compiles tool.InputSchema with gojsonschema.NewSchema,
// then maps its properties to a typed record. A schema with no explicit
// properties degrades to an open record (spec.md §4.4's degrade path),
// whether or not it sets additionalProperties. A schema that fails to
// compile fails generation with a diagnostic naming the offending tool.
func deriveParamRecord(tool toolrun.ToolSchema) (paramRecord, error) {
	schemaLoader := gojsonschema.NewGoLoader(tool.InputSchema)
	if _, err := gojsonschema.NewSchema(schemaLoader); err != nil {
		return paramRecord{}, ipyerr.New(ipyerr.ToolClientGenerator, "ValidateSchema", ipyerr.Configuration,
			fmt.Errorf("tool %q: invalid JSON Schema: %w", tool.Name, err))
	}

	props, _ := tool.InputSchema["properties"].(map[string]any)
	additional, hasAdditional := tool.InputSchema["additionalProperties"]
	if len(props) == 0 {
		if hasAdditional {
			if allow, ok := additional.(bool); ok && allow {
				return paramRecord{Open: true}, nil
			}
		}
		return paramRecord{Open: true}, nil
	}

	required := map[string]bool{}
	if reqList, ok := tool.InputSchema["required"].([]any); ok {
		for _, r := range reqList {
			if s, ok := r.(string); ok {
				required[s] = true
			}
		}
	}

	rec := paramRecord{}
	for name, raw := range props {
		propSchema, _ := raw.(map[string]any)
		rec.Fields = append(rec.Fields, field{
			Name:     name,
			PyType:   pyTypeOf(propSchema),
			Required: required[name],
			Doc:      docOf(propSchema),
		})
	}
	return rec, nil
}

func pyTypeOf(propSchema map[string]any) string {
	t, _ := propSchema["type"].(string)
	switch t {
	case "string":
		return "str"
	case "integer":
		return "int"
	case "number":
		return "float"
	case "boolean":
		return "bool"
	case "array":
		return "list"
	case "object":
		return "dict"
	default:
		return "Any"
	}
}

func docOf(propSchema map[string]any) string {
	d, _ := propSchema["description"].(string)
	return d
}
