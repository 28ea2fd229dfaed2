package curriculum

import (
	"bytes"
	_ "embed"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

const schemaURL = "schema://curriculum.json"

//go:embed curriculum.schema.json
var schemaJSON []byte

var (
	compileOnce sync.Once
	compiled    *jsonschema.Schema
	compileErr  error
)

// SchemaError reports a curriculum document that does not match the schema.
type SchemaError struct {
	Err error
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("curriculum schema validation failed: %v", e.Err)
}

func (e *SchemaError) Unwrap() error { return e.Err }

func schema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		def, err := jsonschema.UnmarshalJSON(bytes.NewReader(schemaJSON))
		if err != nil {
			compileErr = fmt.Errorf("parse curriculum schema: %w", err)
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource(schemaURL, def); err != nil {
			compileErr = fmt.Errorf("add curriculum schema: %w", err)
			return
		}
		compiled, compileErr = c.Compile(schemaURL)
	})
	return compiled, compileErr
}

func validateDocument(doc any) error {
	sch, err := schema()
	if err != nil {
		return err
	}
	v, err := toJSONValue(doc)
	if err != nil {
		return err
	}
	if err := sch.Validate(v); err != nil {
		return &SchemaError{Err: err}
	}
	return nil
}
