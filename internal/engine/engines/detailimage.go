package engines

import (
	cerrors "genflow/internal/common/errors"
	"genflow/internal/engine"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// DetailImage is the high-step, detail-oriented image backend with an
// optional output upscale pass.
func DetailImage() *engine.Definition {
	def := &engine.Definition{
		ID:        "detail-image",
		Processes: []engine.Process{engine.ProcessTextToImage},
		Defaults: map[string]interface{}{
			"process":        string(engine.ProcessTextToImage),
			"prompt":         "an architectural photograph, intricate detail",
			"negativePrompt": "",
			"quantity":       1,
			"size":           "1024x1024",
			"steps":          50,
			"cfgScale":       8.0,
			"upscale":        1,
		},
		InputSchema: schemaObject(map[string]interface{}{
			"process":        map[string]interface{}{"type": "string"},
			"prompt":         map[string]interface{}{"type": "string", "maxLength": 2000},
			"negativePrompt": map[string]interface{}{"type": "string", "maxLength": 2000},
			"quantity":       map[string]interface{}{"type": "integer", "minimum": 1, "maximum": 4},
			"size":           map[string]interface{}{"type": "string"},
			"steps":          map[string]interface{}{"type": "integer", "minimum": 20, "maximum": 100},
			"cfgScale":       map[string]interface{}{"type": "number", "minimum": 1, "maximum": 30},
			"upscale":        map[string]interface{}{"type": "integer", "minimum": 1, "maximum": 4},
		}, "prompt"),
	}

	def.Validate = func(input map[string]interface{}) (*engine.ValidatedParams, cerrors.ValidationErrors) {
		var errs cerrors.ValidationErrors

		proc := engine.Process(engine.StringValue(input, "process", string(engine.ProcessTextToImage)))
		checkProcess(&errs, def, proc)

		prompt := engine.StringValue(input, "prompt", "")
		check(&errs, "prompt", prompt, validation.Required, validation.Length(1, 2000))

		quantity := engine.IntValue(input, "quantity", 1)
		check(&errs, "quantity", quantity, validation.Required, validation.Min(1), validation.Max(4))

		size := engine.StringValue(input, "size", "1024x1024")
		check(&errs, "size", size, validation.In(baseImageSizes...))

		steps := engine.IntValue(input, "steps", 50)
		check(&errs, "steps", steps, validation.Min(20), validation.Max(100))

		cfgScale := engine.FloatValue(input, "cfgScale", 8.0)
		check(&errs, "cfgScale", cfgScale, validation.Min(1.0), validation.Max(30.0))

		upscale := engine.IntValue(input, "upscale", 1)
		check(&errs, "upscale", upscale, validation.Required, validation.Min(1), validation.Max(4))

		if len(errs) > 0 {
			return nil, errs
		}

		return &engine.ValidatedParams{
			EngineID: def.ID,
			Process:  proc,
			Values: map[string]interface{}{
				"process":        string(proc),
				"prompt":         prompt,
				"negativePrompt": engine.StringValue(input, "negativePrompt", ""),
				"quantity":       quantity,
				"size":           size,
				"steps":          steps,
				"cfgScale":       cfgScale,
				"upscale":        upscale,
			},
			Resources: engine.ResourcesFrom(input),
		}, nil
	}

	def.EngineInput = func(p *engine.ValidatedParams) map[string]interface{} {
		out := map[string]interface{}{
			"prompt":          p.Values["prompt"],
			"negative_prompt": p.Values["negativePrompt"],
			"num_images":      p.Quantity(),
			"image_size":      p.Values["size"],
			"steps":           p.Values["steps"],
			"cfg_scale":       p.Values["cfgScale"],
		}
		if upscale := engine.IntValue(p.Values, "upscale", 1); upscale > 1 {
			out["upscale_factor"] = upscale
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
			"upscale":  p.Values["upscale"],
		}
	}

	return def
}
