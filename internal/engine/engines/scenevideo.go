package engines

import (
	cerrors "genflow/internal/common/errors"
	"genflow/internal/engine"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

var sceneCameraMotions = []interface{}{
	"static", "pan_left", "pan_right", "zoom_in", "zoom_out", "orbit",
}

// SceneVideo is the general video backend supporting both text-to-video and
// image-to-video, with camera motion presets.
func SceneVideo() *engine.Definition {
	def := &engine.Definition{
		ID:        "scene-video",
		Processes: []engine.Process{engine.ProcessTextToVideo, engine.ProcessImageToVideo},
		Defaults: map[string]interface{}{
			"process":      string(engine.ProcessTextToVideo),
			"prompt":       "drone footage over a forest river",
			"duration":     5,
			"fps":          24,
			"cameraMotion": "static",
			"quantity":     1,
		},
		InputSchema: schemaObject(map[string]interface{}{
			"process":      map[string]interface{}{"type": "string"},
			"prompt":       map[string]interface{}{"type": "string", "maxLength": 1500},
			"sourceImage":  map[string]interface{}{"type": "string"},
			"duration":     map[string]interface{}{"type": "integer", "minimum": 1, "maximum": 15},
			"fps":          map[string]interface{}{"type": "integer"},
			"cameraMotion": map[string]interface{}{"type": "string"},
			"quantity":     map[string]interface{}{"type": "integer", "minimum": 1, "maximum": 2},
		}),
	}

	def.Validate = func(input map[string]interface{}) (*engine.ValidatedParams, cerrors.ValidationErrors) {
		var errs cerrors.ValidationErrors

		proc := engine.Process(engine.StringValue(input, "process", string(engine.ProcessTextToVideo)))
		checkProcess(&errs, def, proc)

		prompt := engine.StringValue(input, "prompt", "")
		sourceImage := engine.StringValue(input, "sourceImage", "")

		switch proc {
		case engine.ProcessTextToVideo:
			check(&errs, "prompt", prompt, validation.Required, validation.Length(1, 1500))
		case engine.ProcessImageToVideo:
			if sourceImage == "" {
				addErr(&errs, "sourceImage", "source image required when process is img2vid", "REQUIRED_FIELD_MISSING")
			}
			check(&errs, "prompt", prompt, validation.Length(0, 1500))
		}

		duration := engine.IntValue(input, "duration", 5)
		check(&errs, "duration", duration, validation.Required, validation.Min(1), validation.Max(15))

		fps := engine.IntValue(input, "fps", 24)
		check(&errs, "fps", fps, validation.In(motionVideoFPS...))

		cameraMotion := engine.StringValue(input, "cameraMotion", "static")
		check(&errs, "cameraMotion", cameraMotion, validation.In(sceneCameraMotions...))

		quantity := engine.IntValue(input, "quantity", 1)
		check(&errs, "quantity", quantity, validation.Required, validation.Min(1), validation.Max(2))

		if len(errs) > 0 {
			return nil, errs
		}

		values := map[string]interface{}{
			"process":      string(proc),
			"prompt":       prompt,
			"duration":     duration,
			"fps":          fps,
			"cameraMotion": cameraMotion,
			"quantity":     quantity,
		}
		// sourceImage only travels with img2vid; it is dropped for txt2vid.
		if proc == engine.ProcessImageToVideo {
			values["sourceImage"] = sourceImage
		}

		return &engine.ValidatedParams{
			EngineID:  def.ID,
			Process:   proc,
			Values:    values,
			Resources: engine.ResourcesFrom(input),
		}, nil
	}

	def.EngineInput = func(p *engine.ValidatedParams) map[string]interface{} {
		out := map[string]interface{}{
			"duration_seconds": p.Values["duration"],
			"fps":              p.Values["fps"],
			"camera_motion":    p.Values["cameraMotion"],
			"num_videos":       p.Quantity(),
		}
		if prompt := engine.StringValue(p.Values, "prompt", ""); prompt != "" {
			out["prompt"] = prompt
		}
		if p.Process == engine.ProcessImageToVideo {
			out["image_url"] = p.Values["sourceImage"]
		}
		return out
	}

	def.DisplayMetadata = func(p *engine.ValidatedParams) map[string]interface{} {
		return map[string]interface{}{
			"engineId":     p.EngineID,
			"process":      string(p.Process),
			"prompt":       p.Values["prompt"],
			"duration":     p.Values["duration"],
			"cameraMotion": p.Values["cameraMotion"],
			"quantity":     p.Quantity(),
		}
	}

	return def
}
