// Package engine holds the declarative per-engine definitions that drive the
// generation orchestration layer. Adding a new engine means adding one new
// Definition record; no other component changes.
package engine

import (
	"fmt"
	"sort"

	cerrors "genflow/internal/common/errors"

	"github.com/xeipuuv/gojsonschema"
)

// Process is an operation mode an engine can run.
type Process string

const (
	ProcessTextToImage  Process = "txt2img"
	ProcessImageToImage Process = "img2img"
	ProcessTextToVideo  Process = "txt2vid"
	ProcessImageToVideo Process = "img2vid"
)

// Resource is a referenced model resource with a per-resource strength.
type Resource struct {
	ID       string  `json:"id"`
	Strength float64 `json:"strength"`
}

// ValidatedParams is the strongly-typed result of a successful Validate,
// tagged with the originating engine so downstream code never re-checks shape.
type ValidatedParams struct {
	EngineID  string
	Process   Process
	Values    map[string]interface{}
	Resources []Resource
}

// Quantity returns the requested output count, defaulting to 1.
func (p *ValidatedParams) Quantity() int {
	if q, ok := coerceInt(p.Values["quantity"]); ok && q > 0 {
		return q
	}
	return 1
}

// Definition is one engine's declarative record. Validate performs structural
// and cross-field validation and returns normalized params; EngineInput and
// DisplayMetadata are pure transforms total over any value Validate accepts.
type Definition struct {
	ID          string
	Processes   []Process
	Defaults    map[string]interface{}
	InputSchema map[string]interface{}

	Validate        func(input map[string]interface{}) (*ValidatedParams, cerrors.ValidationErrors)
	EngineInput     func(p *ValidatedParams) map[string]interface{}
	DisplayMetadata func(p *ValidatedParams) map[string]interface{}
}

// Supports reports whether the engine can run the given process.
func (d *Definition) Supports(proc Process) bool {
	for _, p := range d.Processes {
		if p == proc {
			return true
		}
	}
	return false
}

// Registry maps engineId to Definition. Lookups are O(1); an unknown id is a
// configuration defect, not a user error.
type Registry struct {
	defs map[string]*Definition
}

// NewRegistry builds the registry and fails fast on configuration defects:
// duplicate ids, unparseable input schemas, or engines whose own defaults do
// not survive Validate and EngineInput.
func NewRegistry(defs ...*Definition) (*Registry, error) {
	r := &Registry{defs: make(map[string]*Definition, len(defs))}

	for _, def := range defs {
		if def.ID == "" {
			return nil, cerrors.NewConfigurationError("engine definition with empty id")
		}
		if _, dup := r.defs[def.ID]; dup {
			return nil, cerrors.NewConfigurationError(fmt.Sprintf("duplicate engine id %q", def.ID))
		}
		if len(def.Processes) == 0 {
			return nil, cerrors.NewConfigurationError(fmt.Sprintf("engine %q declares no processes", def.ID))
		}

		if def.InputSchema != nil {
			loader := gojsonschema.NewGoLoader(def.InputSchema)
			if _, err := gojsonschema.NewSchema(loader); err != nil {
				return nil, cerrors.NewConfigurationError(
					fmt.Sprintf("engine %q input schema does not compile: %v", def.ID, err))
			}
		}

		params, ferrs := def.Validate(cloneValues(def.Defaults))
		if len(ferrs) > 0 {
			return nil, cerrors.NewConfigurationError(
				fmt.Sprintf("engine %q defaults are not self-valid: %v", def.ID, ferrs.Messages()))
		}
		if def.EngineInput(params) == nil {
			return nil, cerrors.NewConfigurationError(
				fmt.Sprintf("engine %q produced nil engine input from its defaults", def.ID))
		}

		r.defs[def.ID] = def
	}

	return r, nil
}

// Get looks up an engine definition by id.
func (r *Registry) Get(engineID string) (*Definition, error) {
	def, ok := r.defs[engineID]
	if !ok {
		return nil, cerrors.NewConfigurationError(fmt.Sprintf("unknown engine id %q", engineID))
	}
	return def, nil
}

// IDs returns the registered engine ids in stable order.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.defs))
	for id := range r.defs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func cloneValues(in map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
