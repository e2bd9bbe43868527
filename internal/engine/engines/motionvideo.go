package engines

import (
	cerrors "genflow/internal/common/errors"
	"genflow/internal/engine"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

var motionVideoFPS = []interface{}{8, 12, 24}

// MotionVideo animates a still image into a short clip. A source image is
// mandatory; when the caller supplies only an end image it is promoted to
// the start position.
func MotionVideo() *engine.Definition {
	def := &engine.Definition{
		ID:        "motion-video",
		Processes: []engine.Process{engine.ProcessImageToVideo},
		Defaults: map[string]interface{}{
			"process":        string(engine.ProcessImageToVideo),
			"sourceImage":    "asset://placeholder-frame",
			"prompt":         "",
			"duration":       4,
			"fps":            24,
			"motionStrength": 0.6,
		},
		InputSchema: schemaObject(map[string]interface{}{
			"process":        map[string]interface{}{"type": "string"},
			"sourceImage":    map[string]interface{}{"type": "string"},
			"endImage":       map[string]interface{}{"type": "string"},
			"prompt":         map[string]interface{}{"type": "string", "maxLength": 1000},
			"duration":       map[string]interface{}{"type": "integer", "minimum": 1, "maximum": 10},
			"fps":            map[string]interface{}{"type": "integer"},
			"motionStrength": map[string]interface{}{"type": "number", "minimum": 0, "maximum": 1},
		}, "sourceImage"),
	}

	def.Validate = func(input map[string]interface{}) (*engine.ValidatedParams, cerrors.ValidationErrors) {
		var errs cerrors.ValidationErrors

		proc := engine.Process(engine.StringValue(input, "process", string(engine.ProcessImageToVideo)))
		checkProcess(&errs, def, proc)

		sourceImage := engine.StringValue(input, "sourceImage", "")
		endImage := engine.StringValue(input, "endImage", "")

		// An end image without a start image becomes the start image.
		if sourceImage == "" && endImage != "" {
			sourceImage = endImage
			endImage = ""
		}
		if sourceImage == "" {
			addErr(&errs, "sourceImage", "source image required when process is img2vid", "REQUIRED_FIELD_MISSING")
		}

		prompt := engine.StringValue(input, "prompt", "")
		check(&errs, "prompt", prompt, validation.Length(0, 1000))

		duration := engine.IntValue(input, "duration", 4)
		check(&errs, "duration", duration, validation.Required, validation.Min(1), validation.Max(10))

		fps := engine.IntValue(input, "fps", 24)
		check(&errs, "fps", fps, validation.In(motionVideoFPS...))

		motionStrength := engine.FloatValue(input, "motionStrength", 0.6)
		check(&errs, "motionStrength", motionStrength, validation.Min(0.0), validation.Max(1.0))

		if len(errs) > 0 {
			return nil, errs
		}

		values := map[string]interface{}{
			"process":        string(proc),
			"sourceImage":    sourceImage,
			"prompt":         prompt,
			"duration":       duration,
			"fps":            fps,
			"motionStrength": motionStrength,
			"quantity":       1,
		}
		if endImage != "" {
			values["endImage"] = endImage
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
			"image_url":        p.Values["sourceImage"],
			"duration_seconds": p.Values["duration"],
			"fps":              p.Values["fps"],
			"motion_strength":  p.Values["motionStrength"],
		}
		if prompt := engine.StringValue(p.Values, "prompt", ""); prompt != "" {
			out["prompt"] = prompt
		}
		if end := engine.StringValue(p.Values, "endImage", ""); end != "" {
			out["end_image_url"] = end
		}
		return out
	}

	def.DisplayMetadata = func(p *engine.ValidatedParams) map[string]interface{} {
		return map[string]interface{}{
			"engineId":    p.EngineID,
			"process":     string(p.Process),
			"sourceImage": p.Values["sourceImage"],
			"duration":    p.Values["duration"],
			"fps":         p.Values["fps"],
		}
	}

	return def
}
