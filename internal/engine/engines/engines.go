package engines

import "genflow/internal/engine"

// All returns the full engine catalog in registration order.
func All() []*engine.Definition {
	return []*engine.Definition{
		TurboImage(),
		BaseImage(),
		DetailImage(),
		MotionVideo(),
		SceneVideo(),
		StoryVideo(),
	}
}
