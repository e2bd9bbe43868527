package engines

import (
	"testing"

	"genflow/internal/engine"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

func definitionByID(t *testing.T, id string) *engine.Definition {
	t.Helper()
	for _, def := range All() {
		if def.ID == id {
			return def
		}
	}
	t.Fatalf("engine %q not in catalog", id)
	return nil
}

// ==========================
// Catalog-Wide Properties
// ==========================

func TestAll_RegistersCleanly(t *testing.T) {
	registry, err := engine.NewRegistry(All()...)
	require.NoError(t, err)
	assert.Len(t, registry.IDs(), 6)
}

func TestAll_DefaultsAreSelfValid(t *testing.T) {
	for _, def := range All() {
		def := def
		t.Run(def.ID, func(t *testing.T) {
			params, ferrs := def.Validate(def.Defaults)
			require.Empty(t, ferrs, "defaults must pass the engine's own validation")
			require.NotNil(t, params)
			assert.Equal(t, def.ID, params.EngineID)

			input := def.EngineInput(params)
			require.NotNil(t, input, "engine input transform must be total over validated params")

			meta := def.DisplayMetadata(params)
			require.NotNil(t, meta)
			assert.Equal(t, def.ID, meta["engineId"])
		})
	}
}

func TestAll_QuantityIsPositive(t *testing.T) {
	for _, def := range All() {
		def := def
		t.Run(def.ID, func(t *testing.T) {
			params, ferrs := def.Validate(def.Defaults)
			require.Empty(t, ferrs)
			assert.GreaterOrEqual(t, params.Quantity(), 1)
		})
	}
}

// ==========================
// Per-Engine Validation Tests
// ==========================

func TestTurboImage_Validate(t *testing.T) {
	def := TurboImage()

	tests := []struct {
		name       string
		input      map[string]interface{}
		wantField  string
		wantValues func(t *testing.T, params *engine.ValidatedParams)
	}{
		{
			name: "valid request",
			input: map[string]interface{}{
				"prompt":   "a red fox in the snow",
				"quantity": float64(4),
				"size":     "768x768",
				"steps":    float64(8),
			},
			wantValues: func(t *testing.T, params *engine.ValidatedParams) {
				assert.Equal(t, 4, params.Quantity())
				assert.Equal(t, "768x768", params.Values["size"])
			},
		},
		{
			name:      "missing prompt",
			input:     map[string]interface{}{"quantity": float64(1)},
			wantField: "prompt",
		},
		{
			name: "quantity above cap",
			input: map[string]interface{}{
				"prompt":   "too many",
				"quantity": float64(9),
			},
			wantField: "quantity",
		},
		{
			name: "unsupported process",
			input: map[string]interface{}{
				"prompt":  "fox",
				"process": "img2vid",
			},
			wantField: "process",
		},
		{
			name: "unknown size",
			input: map[string]interface{}{
				"prompt": "fox",
				"size":   "999x999",
			},
			wantField: "size",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			params, ferrs := def.Validate(tt.input)
			if tt.wantField != "" {
				require.NotEmpty(t, ferrs)
				assert.NotEmpty(t, ferrs.ForField(tt.wantField),
					"expected an error on %q, got %v", tt.wantField, ferrs.Messages())
				return
			}
			require.Empty(t, ferrs)
			require.NotNil(t, params)
			if tt.wantValues != nil {
				tt.wantValues(t, params)
			}
		})
	}
}

func TestTurboImage_EngineInput_RenamesFields(t *testing.T) {
	def := TurboImage()

	params, ferrs := def.Validate(map[string]interface{}{
		"prompt":   "a lighthouse",
		"quantity": float64(2),
		"steps":    float64(4),
		"seed":     float64(42),
	})
	require.Empty(t, ferrs)

	input := def.EngineInput(params)
	assert.Equal(t, "a lighthouse", input["prompt"])
	assert.Equal(t, 2, input["num_images"])
	assert.Equal(t, 4, input["num_inference_steps"])
	assert.Equal(t, 42, input["seed"])
}

func TestMotionVideo_RequiresSourceImage(t *testing.T) {
	def := MotionVideo()

	params, ferrs := def.Validate(map[string]interface{}{
		"process": "img2vid",
		"prompt":  "slow pan over the scene",
	})
	require.Nil(t, params)
	require.NotEmpty(t, ferrs)

	fieldErrs := ferrs.ForField("sourceImage")
	require.NotEmpty(t, fieldErrs, "error must reference the sourceImage field")
	assert.Equal(t, "REQUIRED_FIELD_MISSING", fieldErrs[0].Code)
}

func TestMotionVideo_PromotesEndImageToSource(t *testing.T) {
	def := MotionVideo()

	params, ferrs := def.Validate(map[string]interface{}{
		"process":  "img2vid",
		"endImage": "asset://final-frame",
	})
	require.Empty(t, ferrs)
	require.NotNil(t, params)

	assert.Equal(t, "asset://final-frame", params.Values["sourceImage"])
	_, hasEnd := params.Values["endImage"]
	assert.False(t, hasEnd, "promoted end image must not survive as endImage")

	input := def.EngineInput(params)
	assert.Equal(t, "asset://final-frame", input["image_url"])
	_, hasEndURL := input["end_image_url"]
	assert.False(t, hasEndURL)
}

func TestBaseImage_SourceImageRequiredForImg2Img(t *testing.T) {
	def := BaseImage()

	_, ferrs := def.Validate(map[string]interface{}{
		"process": "img2img",
		"prompt":  "repaint in watercolor",
	})
	require.NotEmpty(t, ferrs)
	assert.NotEmpty(t, ferrs.ForField("sourceImage"))
}

func TestStoryVideo_QuantityFollowsShotCount(t *testing.T) {
	def := StoryVideo()

	params, ferrs := def.Validate(map[string]interface{}{
		"shots": []interface{}{
			map[string]interface{}{"prompt": "opening shot", "duration": float64(3)},
			map[string]interface{}{"prompt": "chase scene", "duration": float64(5)},
			map[string]interface{}{"prompt": "closing shot", "duration": float64(2)},
		},
	})
	require.Empty(t, ferrs)
	assert.Equal(t, 3, params.Quantity())
}

func TestStoryVideo_RejectsBadShots(t *testing.T) {
	def := StoryVideo()

	tests := []struct {
		name      string
		shots     interface{}
		wantField string
	}{
		{
			name:      "empty shot list",
			shots:     []interface{}{},
			wantField: "shots",
		},
		{
			name: "shot without prompt",
			shots: []interface{}{
				map[string]interface{}{"duration": float64(3)},
			},
			wantField: "shots[0].prompt",
		},
		{
			name: "shot duration out of range",
			shots: []interface{}{
				map[string]interface{}{"prompt": "ok", "duration": float64(30)},
			},
			wantField: "shots[0].duration",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			_, ferrs := def.Validate(map[string]interface{}{"shots": tt.shots})
			require.NotEmpty(t, ferrs)
			assert.NotEmpty(t, ferrs.ForField(tt.wantField),
				"expected an error on %q, got %v", tt.wantField, ferrs.Messages())
		})
	}
}

func TestSceneVideo_ProcessDependentRequirements(t *testing.T) {
	def := definitionByID(t, "scene-video")

	_, ferrs := def.Validate(map[string]interface{}{"process": "img2vid"})
	require.NotEmpty(t, ferrs)
	assert.NotEmpty(t, ferrs.ForField("sourceImage"))

	_, ferrs = def.Validate(map[string]interface{}{"process": "txt2vid"})
	require.NotEmpty(t, ferrs)
	assert.NotEmpty(t, ferrs.ForField("prompt"))
}

func TestEngines_ResourcesCarriedThrough(t *testing.T) {
	def := BaseImage()

	params, ferrs := def.Validate(map[string]interface{}{
		"prompt": "castle on a hill",
		"resources": []interface{}{
			map[string]interface{}{"id": "lora-ink-style", "strength": 0.8},
		},
	})
	require.Empty(t, ferrs)
	require.Len(t, params.Resources, 1)
	assert.Equal(t, "lora-ink-style", params.Resources[0].ID)
	assert.InDelta(t, 0.8, params.Resources[0].Strength, 1e-9)
}
