package llm

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/kestrelai/modelkit/pkg/llmerr"
)

// ValidateToolSchema compiles Tool.Parameters as a JSON Schema document and
// reports whether it is well-formed. It validates the *schema itself*, not
// any call-time arguments. Callers invoke it themselves; no adapter in this
// module calls it before sending a tool definition.
func ValidateToolSchema(t Tool) error {
	if t.Parameters == nil {
		return nil
	}

	raw, err := json.Marshal(t.Parameters)
	if err != nil {
		return llmerr.NewInvalidInput(fmt.Sprintf("tool %q: parameters did not marshal: %v", t.Name, err))
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return llmerr.NewInvalidInput(fmt.Sprintf("tool %q: parameters did not round-trip as JSON: %v", t.Name, err))
	}

	resource := "modelkit://tool/" + t.Name
	c := jsonschema.NewCompiler()
	if err := c.AddResource(resource, doc); err != nil {
		return llmerr.NewInvalidInput(fmt.Sprintf("tool %q: invalid JSON Schema: %v", t.Name, err))
	}
	if _, err := c.Compile(resource); err != nil {
		return llmerr.NewInvalidInput(fmt.Sprintf("tool %q: schema does not compile: %v", t.Name, err))
	}
	return nil
}
