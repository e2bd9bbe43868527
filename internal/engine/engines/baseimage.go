package engines

import (
	cerrors "genflow/internal/common/errors"
	"genflow/internal/engine"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

var baseImageSizes = []interface{}{
	"512x512", "768x768", "1024x1024", "1216x832", "832x1216", "1344x768", "768x1344",
}

// BaseImage is the standard image backend: text-to-image and image-to-image
// with negative prompt, guidance and model-resource support.
func BaseImage() *engine.Definition {
	def := &engine.Definition{
		ID:        "base-image",
		Processes: []engine.Process{engine.ProcessTextToImage, engine.ProcessImageToImage},
		Defaults: map[string]interface{}{
			"process":        string(engine.ProcessTextToImage),
			"prompt":         "a watercolor painting of a lighthouse",
			"negativePrompt": "",
			"quantity":       1,
			"size":           "1024x1024",
			"steps":          30,
			"cfgScale":       7.0,
			"seed":           -1,
			"denoise":        0.75,
		},
		InputSchema: schemaObject(map[string]interface{}{
			"process":        map[string]interface{}{"type": "string"},
			"prompt":         map[string]interface{}{"type": "string", "maxLength": 2000},
			"negativePrompt": map[string]interface{}{"type": "string", "maxLength": 2000},
			"quantity":       map[string]interface{}{"type": "integer", "minimum": 1, "maximum": 8},
			"size":           map[string]interface{}{"type": "string"},
			"steps":          map[string]interface{}{"type": "integer", "minimum": 10, "maximum": 60},
			"cfgScale":       map[string]interface{}{"type": "number", "minimum": 1, "maximum": 30},
			"seed":           map[string]interface{}{"type": "integer"},
			"sourceImage":    map[string]interface{}{"type": "string"},
			"denoise":        map[string]interface{}{"type": "number", "minimum": 0, "maximum": 1},
		}, "prompt"),
	}

	def.Validate = func(input map[string]interface{}) (*engine.ValidatedParams, cerrors.ValidationErrors) {
		var errs cerrors.ValidationErrors

		proc := engine.Process(engine.StringValue(input, "process", string(engine.ProcessTextToImage)))
		checkProcess(&errs, def, proc)

		prompt := engine.StringValue(input, "prompt", "")
		check(&errs, "prompt", prompt, validation.Required, validation.Length(1, 2000))

		negative := engine.StringValue(input, "negativePrompt", "")
		check(&errs, "negativePrompt", negative, validation.Length(0, 2000))

		quantity := engine.IntValue(input, "quantity", 1)
		check(&errs, "quantity", quantity, validation.Required, validation.Min(1), validation.Max(8))

		size := engine.StringValue(input, "size", "1024x1024")
		check(&errs, "size", size, validation.In(baseImageSizes...))

		steps := engine.IntValue(input, "steps", 30)
		check(&errs, "steps", steps, validation.Min(10), validation.Max(60))

		cfgScale := engine.FloatValue(input, "cfgScale", 7.0)
		check(&errs, "cfgScale", cfgScale, validation.Min(1.0), validation.Max(30.0))

		sourceImage := engine.StringValue(input, "sourceImage", "")
		if proc == engine.ProcessImageToImage && sourceImage == "" {
			addErr(&errs, "sourceImage", "source image required when process is img2img", "REQUIRED_FIELD_MISSING")
		}

		denoise := engine.FloatValue(input, "denoise", 0.75)
		check(&errs, "denoise", denoise, validation.Min(0.0), validation.Max(1.0))

		resources := engine.ResourcesFrom(input)
		for _, res := range resources {
			if res.Strength < 0 || res.Strength > 2 {
				addErr(&errs, "resources", "resource strength must be between 0 and 2", "INVALID_VALUE")
				break
			}
		}

		if len(errs) > 0 {
			return nil, errs
		}

		values := map[string]interface{}{
			"process":        string(proc),
			"prompt":         prompt,
			"negativePrompt": negative,
			"quantity":       quantity,
			"size":           size,
			"steps":          steps,
			"cfgScale":       cfgScale,
			"seed":           engine.IntValue(input, "seed", -1),
		}
		// Fields for the other process mode are mutually exclusive and dropped.
		if proc == engine.ProcessImageToImage {
			values["sourceImage"] = sourceImage
			values["denoise"] = denoise
		}

		return &engine.ValidatedParams{
			EngineID:  def.ID,
			Process:   proc,
			Values:    values,
			Resources: resources,
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
		if seed := engine.IntValue(p.Values, "seed", -1); seed >= 0 {
			out["seed"] = seed
		}
		if p.Process == engine.ProcessImageToImage {
			out["init_image"] = p.Values["sourceImage"]
			out["denoising_strength"] = p.Values["denoise"]
		}
		if len(p.Resources) > 0 {
			loras := make([]map[string]interface{}, 0, len(p.Resources))
			for _, res := range p.Resources {
				loras = append(loras, map[string]interface{}{
					"model":  res.ID,
					"weight": res.Strength,
				})
			}
			out["loras"] = loras
		}
		return out
	}

	def.DisplayMetadata = func(p *engine.ValidatedParams) map[string]interface{} {
		meta := map[string]interface{}{
			"engineId": p.EngineID,
			"process":  string(p.Process),
			"prompt":   p.Values["prompt"],
			"quantity": p.Quantity(),
			"size":     p.Values["size"],
			"cfgScale": p.Values["cfgScale"],
		}
		if len(p.Resources) > 0 {
			meta["resources"] = p.Resources
		}
		return meta
	}

	return def
}
