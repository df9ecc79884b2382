package tool

import (
	"bytes"
	"embed"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

//go:embed schemas/*.json
var schemaFS embed.FS

// CompileSchema compiles a JSON Schema document registered under name.
func CompileSchema(name string, raw []byte) (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("unmarshal schema %s: %w", name, err)
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(name, doc); err != nil {
		return nil, fmt.Errorf("add schema resource %s: %w", name, err)
	}
	sch, err := c.Compile(name)
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", name, err)
	}
	return sch, nil
}

// ValidateJSON decodes raw and validates it against sch.
func ValidateJSON(sch *jsonschema.Schema, raw []byte) error {
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("decode json: %w", err)
	}
	return sch.Validate(inst)
}

func mustCompileArgs(tool string) *jsonschema.Schema {
	raw, err := schemaFS.ReadFile("schemas/" + tool + ".json")
	if err != nil {
		panic(fmt.Sprintf("tool schema %s: %v", tool, err))
	}
	sch, err := CompileSchema(tool+".json", raw)
	if err != nil {
		panic(err)
	}
	return sch
}
