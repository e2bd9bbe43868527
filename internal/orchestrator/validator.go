package orchestrator

import (
	"fmt"

	cerrors "genflow/internal/common/errors"
	"genflow/internal/engine"

	"dario.cat/mergo"
)

// Validator resolves an engine definition and runs its validation over the
// caller's raw input merged onto the engine defaults. Pure; the only hard
// error is an unregistered engine id.
type Validator struct {
	registry *engine.Registry
}

func NewValidator(registry *engine.Registry) *Validator {
	return &Validator{registry: registry}
}

// Validate merges rawInput over the engine's defaults and runs the engine's
// rule set. Field errors come back as a list so the caller can point at the
// offending fields; they are results, not faults.
func (v *Validator) Validate(engineID string, rawInput map[string]interface{}) (*engine.ValidatedParams, cerrors.ValidationErrors, error) {
	def, err := v.registry.Get(engineID)
	if err != nil {
		return nil, nil, err
	}

	merged := make(map[string]interface{}, len(rawInput)+len(def.Defaults))
	for k, val := range rawInput {
		merged[k] = val
	}
	if err := mergo.Merge(&merged, def.Defaults); err != nil {
		return nil, nil, cerrors.NewConfigurationError(
			fmt.Sprintf("merging defaults for engine %q: %v", engineID, err))
	}
	// mergo treats zero values as fillable. A caller-supplied key wins
	// verbatim, zero or not; defaults are for absent keys only.
	for k, val := range rawInput {
		merged[k] = val
	}

	params, ferrs := def.Validate(merged)
	if len(ferrs) > 0 {
		return nil, ferrs, nil
	}
	return params, nil, nil
}

// EngineInput runs the engine's pure payload transform for validated params.
func (v *Validator) EngineInput(params *engine.ValidatedParams) (map[string]interface{}, error) {
	def, err := v.registry.Get(params.EngineID)
	if err != nil {
		return nil, err
	}
	return def.EngineInput(params), nil
}

// DisplayMetadata runs the engine's audit/display transform.
func (v *Validator) DisplayMetadata(params *engine.ValidatedParams) (map[string]interface{}, error) {
	def, err := v.registry.Get(params.EngineID)
	if err != nil {
		return nil, err
	}
	return def.DisplayMetadata(params), nil
}
