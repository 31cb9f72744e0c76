package config

import (
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// legacySchema is the shape every readable document must have, whatever its
// version. Anything else is treated as corrupt rather than migrated.
const legacySchema = `{
  "type": "object",
  "properties": {
    "schemaVersion": {"type": "integer", "minimum": 0},
    "buttons": {"type": "array", "items": {"type": "object"}}
  }
}`

// currentSchema is checked after migration. Parameter contents are left to
// the handlers so one bad button does not discard the whole document.
const currentSchema = `{
  "type": "object",
  "required": ["schemaVersion", "buttons"],
  "properties": {
    "schemaVersion": {"type": "integer", "minimum": 0},
    "nextId": {"type": "integer", "minimum": 1},
    "buttons": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "type", "order", "params"],
        "properties": {
          "id": {"type": "integer"},
          "type": {"type": "string"},
          "label": {"type": "string"},
          "icon": {"type": "string"},
          "order": {"type": "integer"},
          "schedule": {"type": "string"},
          "params": {"type": "object"}
        }
      }
    }
  }
}`

type schemas struct {
	legacy  *jsonschema.Schema
	current *jsonschema.Schema
}

var loadSchemas = sync.OnceValues(func() (*schemas, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	const base = "https://quickbuttons.local/config/"
	if err := c.AddResource(base+"legacy.schema.json", strings.NewReader(legacySchema)); err != nil {
		return nil, fmt.Errorf("load legacy schema: %w", err)
	}
	if err := c.AddResource(base+"current.schema.json", strings.NewReader(currentSchema)); err != nil {
		return nil, fmt.Errorf("load current schema: %w", err)
	}
	legacy, err := c.Compile(base + "legacy.schema.json")
	if err != nil {
		return nil, fmt.Errorf("compile legacy schema: %w", err)
	}
	current, err := c.Compile(base + "current.schema.json")
	if err != nil {
		return nil, fmt.Errorf("compile current schema: %w", err)
	}
	return &schemas{legacy: legacy, current: current}, nil
})

func checkLegacy(doc any) error {
	s, err := loadSchemas()
	if err != nil {
		return err
	}
	return s.legacy.Validate(doc)
}

func checkCurrent(doc any) error {
	s, err := loadSchemas()
	if err != nil {
		return err
	}
	return s.current.Validate(doc)
}
