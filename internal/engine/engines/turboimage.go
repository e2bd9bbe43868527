package engines

import (
	cerrors "genflow/internal/common/errors"
	"genflow/internal/engine"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

var turboImageSizes = []interface{}{"512x512", "768x768", "1024x1024", "1024x576", "576x1024"}

// TurboImage is the low-latency text-to-image backend. Few steps, no
// negative prompt, aggressive quantity cap.
func TurboImage() *engine.Definition {
	def := &engine.Definition{
		ID:        "turbo-image",
		Processes: []engine.Process{engine.ProcessTextToImage},
		Defaults: map[string]interface{}{
			"process":  string(engine.ProcessTextToImage),
			"prompt":   "a photograph of a mountain lake at dawn",
			"quantity": 1,
			"size":     "1024x1024",
			"steps":    6,
			"seed":     -1,
		},
		InputSchema: schemaObject(map[string]interface{}{
			"process":  map[string]interface{}{"type": "string"},
			"prompt":   map[string]interface{}{"type": "string", "maxLength": 1500},
			"quantity": map[string]interface{}{"type": "integer", "minimum": 1, "maximum": 8},
			"size":     map[string]interface{}{"type": "string"},
			"steps":    map[string]interface{}{"type": "integer", "minimum": 1, "maximum": 12},
			"seed":     map[string]interface{}{"type": "integer"},
		}, "prompt"),
	}

	def.Validate = func(input map[string]interface{}) (*engine.ValidatedParams, cerrors.ValidationErrors) {
		var errs cerrors.ValidationErrors

		proc := engine.Process(engine.StringValue(input, "process", string(engine.ProcessTextToImage)))
		checkProcess(&errs, def, proc)

		prompt := engine.StringValue(input, "prompt", "")
		check(&errs, "prompt", prompt, validation.Required, validation.Length(1, 1500))

		quantity := engine.IntValue(input, "quantity", 1)
		check(&errs, "quantity", quantity, validation.Required, validation.Min(1), validation.Max(8))

		size := engine.StringValue(input, "size", "1024x1024")
		check(&errs, "size", size, validation.In(turboImageSizes...))

		steps := engine.IntValue(input, "steps", 6)
		check(&errs, "steps", steps, validation.Required, validation.Min(1), validation.Max(12))

		seed := engine.IntValue(input, "seed", -1)
		check(&errs, "seed", seed, validation.Min(-1))

		if len(errs) > 0 {
			return nil, errs
		}

		return &engine.ValidatedParams{
			EngineID: def.ID,
			Process:  proc,
			Values: map[string]interface{}{
				"process":  string(proc),
				"prompt":   prompt,
				"quantity": quantity,
				"size":     size,
				"steps":    steps,
				"seed":     seed,
			},
			Resources: engine.ResourcesFrom(input),
		}, nil
	}

	def.EngineInput = func(p *engine.ValidatedParams) map[string]interface{} {
		out := map[string]interface{}{
			"prompt":              p.Values["prompt"],
			"num_images":          p.Quantity(),
			"image_size":          p.Values["size"],
			"num_inference_steps": p.Values["steps"],
		}
		if seed := engine.IntValue(p.Values, "seed", -1); seed >= 0 {
			out["seed"] = seed
		}
		return out
	}

	def.DisplayMetadata = func(p *engine.ValidatedParams) map[string]interface{} {
		return map[string]interface{}{
			"engineId": p.EngineID,
			"process":  string(p.Process),
			"prompt":   p.Values["prompt"],
			"quantity": p.Quantity(),
			"size":     p.Values["size"],
		}
	}

	return def
}
