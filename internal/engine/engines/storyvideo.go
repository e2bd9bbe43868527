package engines

import (
	"fmt"

	cerrors "genflow/internal/common/errors"
	"genflow/internal/engine"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

const storyVideoMaxShots = 6

// StoryVideo renders a multi-shot clip from a shot list. Each shot carries
// its own prompt and duration; the requested quantity equals the shot count.
func StoryVideo() *engine.Definition {
	def := &engine.Definition{
		ID:        "story-video",
		Processes: []engine.Process{engine.ProcessTextToVideo},
		Defaults: map[string]interface{}{
			"process": string(engine.ProcessTextToVideo),
			"shots": []interface{}{
				map[string]interface{}{"prompt": "establishing shot of a coastal town", "duration": 4},
			},
			"fps":   24,
			"style": "cinematic",
		},
		InputSchema: schemaObject(map[string]interface{}{
			"process": map[string]interface{}{"type": "string"},
			"shots": map[string]interface{}{
				"type":     "array",
				"minItems": 1,
				"maxItems": storyVideoMaxShots,
				"items": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"prompt":   map[string]interface{}{"type": "string", "maxLength": 1000},
						"duration": map[string]interface{}{"type": "integer", "minimum": 1, "maximum": 10},
					},
					"required": []string{"prompt"},
				},
			},
			"fps":   map[string]interface{}{"type": "integer"},
			"style": map[string]interface{}{"type": "string"},
		}, "shots"),
	}

	def.Validate = func(input map[string]interface{}) (*engine.ValidatedParams, cerrors.ValidationErrors) {
		var errs cerrors.ValidationErrors

		proc := engine.Process(engine.StringValue(input, "process", string(engine.ProcessTextToVideo)))
		checkProcess(&errs, def, proc)

		shots := decodeShots(input["shots"])
		if len(shots) == 0 {
			addErr(&errs, "shots", "at least one shot is required", "REQUIRED_FIELD_MISSING")
		}
		if len(shots) > storyVideoMaxShots {
			addErr(&errs, "shots", fmt.Sprintf("at most %d shots are allowed", storyVideoMaxShots), "INVALID_VALUE")
		}
		for i, shot := range shots {
			if shot.Prompt == "" {
				addErr(&errs, fmt.Sprintf("shots[%d].prompt", i), "shot prompt is required", "REQUIRED_FIELD_MISSING")
			}
			if shot.Duration < 1 || shot.Duration > 10 {
				addErr(&errs, fmt.Sprintf("shots[%d].duration", i), "shot duration must be between 1 and 10", "INVALID_VALUE")
			}
		}

		fps := engine.IntValue(input, "fps", 24)
		check(&errs, "fps", fps, validation.In(motionVideoFPS...))

		style := engine.StringValue(input, "style", "cinematic")
		check(&errs, "style", style, validation.In("cinematic", "documentary", "animation", "vintage"))

		if len(errs) > 0 {
			return nil, errs
		}

		shotValues := make([]interface{}, len(shots))
		for i, shot := range shots {
			shotValues[i] = map[string]interface{}{
				"prompt":   shot.Prompt,
				"duration": shot.Duration,
			}
		}

		return &engine.ValidatedParams{
			EngineID: def.ID,
			Process:  proc,
			Values: map[string]interface{}{
				"process":  string(proc),
				"shots":    shotValues,
				"fps":      fps,
				"style":    style,
				"quantity": len(shots),
			},
			Resources: engine.ResourcesFrom(input),
		}, nil
	}

	def.EngineInput = func(p *engine.ValidatedParams) map[string]interface{} {
		return map[string]interface{}{
			"shots": p.Values["shots"],
			"fps":   p.Values["fps"],
			"style": p.Values["style"],
		}
	}

	def.DisplayMetadata = func(p *engine.ValidatedParams) map[string]interface{} {
		return map[string]interface{}{
			"engineId":  p.EngineID,
			"process":   string(p.Process),
			"shotCount": p.Quantity(),
			"style":     p.Values["style"],
		}
	}

	return def
}

type storyShot struct {
	Prompt   string
	Duration int
}

func decodeShots(raw interface{}) []storyShot {
	list, ok := raw.([]interface{})
	if !ok {
		return nil
	}
	out := make([]storyShot, 0, len(list))
	for _, item := range list {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		shot := storyShot{Duration: 4}
		if p, ok := m["prompt"].(string); ok {
			shot.Prompt = p
		}
		shot.Duration = engine.IntValue(m, "duration", 4)
		out = append(out, shot)
	}
	return out
}
