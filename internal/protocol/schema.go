package protocol

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Frame shapes for inbound types. Unknown properties are tolerated so
// firmware can add fields without breaking older hubs.
var inboundSchemas = map[string]string{
	TypeRegister: `{
		"$schema": "https://json-schema.org/draft/2020-12/schema",
		"type": "object",
		"required": ["type", "deviceId"],
		"properties": {
			"type": {"const": "register"},
			"deviceId": {
				"type": "string",
				"minLength": 1,
				"maxLength": 128,
				"pattern": "^[^\\s\\p{Cc}/+#]+$"
			}
		}
	}`,
	TypeHeartbeat: `{
		"$schema": "https://json-schema.org/draft/2020-12/schema",
		"type": "object",
		"required": ["type"],
		"$defs": {
			"angle": {
				"type": "object",
				"required": ["angle"],
				"properties": {
					"angle": {"type": "number", "minimum": 0, "maximum": 180}
				}
			}
		},
		"properties": {
			"type": {"const": "heartbeat"},
			"servo1": {"$ref": "#/$defs/angle"},
			"servo2": {"$ref": "#/$defs/angle"}
		}
	}`,
}

// Validator checks inbound frames against their JSON Schema.
// It is immutable after construction and safe for concurrent use.
type Validator struct {
	schemas map[string]*jsonschema.Schema
}

// NewValidator compiles the schema of every inbound frame type.
func NewValidator() (*Validator, error) {
	v := &Validator{schemas: make(map[string]*jsonschema.Schema, len(inboundSchemas))}

	c := jsonschema.NewCompiler()
	for frameType, doc := range inboundSchemas {
		schemaDoc, err := jsonschema.UnmarshalJSON(strings.NewReader(doc))
		if err != nil {
			return nil, fmt.Errorf("parsing %s schema: %w", frameType, err)
		}
		url := frameType + ".json"
		if err := c.AddResource(url, schemaDoc); err != nil {
			return nil, fmt.Errorf("adding %s schema: %w", frameType, err)
		}
		compiled, err := c.Compile(url)
		if err != nil {
			return nil, fmt.Errorf("compiling %s schema: %w", frameType, err)
		}
		v.schemas[frameType] = compiled
	}
	return v, nil
}

// Known reports whether frameType has a schema.
func (v *Validator) Known(frameType string) bool {
	_, ok := v.schemas[frameType]
	return ok
}

// Validate checks doc, as returned by Decode, against the schema for
// frameType. Failures wrap ErrInvalidPayload; an unknown type wraps
// ErrUnknownType.
func (v *Validator) Validate(frameType string, doc any) error {
	schema, ok := v.schemas[frameType]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownType, frameType)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidPayload, frameType, err)
	}
	return nil
}

func unmarshalDoc(raw []byte) (any, error) {
	return jsonschema.UnmarshalJSON(bytes.NewReader(raw))
}
