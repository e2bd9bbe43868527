// Package engines contains the declarative definitions for every supported
// generation backend. One file per engine; All() feeds the registry.
package engines

import (
	cerrors "genflow/internal/common/errors"
	"genflow/internal/engine"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

func check(errs *cerrors.ValidationErrors, field string, value interface{}, rules ...validation.Rule) {
	if err := validation.Validate(value, rules...); err != nil {
		*errs = append(*errs, cerrors.FieldError{
			Field:   field,
			Message: err.Error(),
			Code:    "INVALID_VALUE",
		})
	}
}

func addErr(errs *cerrors.ValidationErrors, field, message, code string) {
	*errs = append(*errs, cerrors.FieldError{Field: field, Message: message, Code: code})
}

func checkProcess(errs *cerrors.ValidationErrors, def *engine.Definition, proc engine.Process) {
	if !def.Supports(proc) {
		addErr(errs, "process", "process not supported by this engine", "UNSUPPORTED_PROCESS")
	}
}

// schemaObject builds the JSON-schema envelope shared by all engine input
// schemas; validated at registry startup via gojsonschema.
func schemaObject(properties map[string]interface{}, required ...string) map[string]interface{} {
	schema := map[string]interface{}{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}
