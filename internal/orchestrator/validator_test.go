package orchestrator

import (
	"testing"

	cerrors "genflow/internal/common/errors"
	"genflow/internal/engine"
	"genflow/internal/engine/engines"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

func newTestValidator(t *testing.T) *Validator {
	t.Helper()
	registry, err := engine.NewRegistry(engines.All()...)
	require.NoError(t, err)
	return NewValidator(registry)
}

// ==========================
// Validation Tests
// ==========================

func TestValidator_DefaultsFillMissingFields(t *testing.T) {
	v := newTestValidator(t)

	params, ferrs, err := v.Validate("turbo-image", map[string]interface{}{
		"prompt": "a lighthouse at dusk",
	})
	require.NoError(t, err)
	require.Empty(t, ferrs)

	// Caller supplied only the prompt; everything else comes from defaults.
	assert.Equal(t, "a lighthouse at dusk", params.Values["prompt"])
	assert.Equal(t, "1024x1024", params.Values["size"])
	assert.Equal(t, 1, params.Quantity())
}

func TestValidator_RawInputWinsOverDefaults(t *testing.T) {
	v := newTestValidator(t)

	params, ferrs, err := v.Validate("turbo-image", map[string]interface{}{
		"prompt": "a lighthouse at dusk",
		"size":   "512x512",
	})
	require.NoError(t, err)
	require.Empty(t, ferrs)
	assert.Equal(t, "512x512", params.Values["size"])
}

func TestValidator_ExplicitZeroValuesAreNotReplacedByDefaults(t *testing.T) {
	v := newTestValidator(t)

	// seed 0 is a legal fixed seed; the default -1 (random) must not win.
	params, ferrs, err := v.Validate("turbo-image", map[string]interface{}{
		"prompt": "a lighthouse at dusk",
		"seed":   float64(0),
	})
	require.NoError(t, err)
	require.Empty(t, ferrs)
	assert.Equal(t, 0, engine.IntValue(params.Values, "seed", -1))

	// quantity 0 is out of range; it must surface as a field error, not be
	// silently bumped to the default.
	params, ferrs, err = v.Validate("turbo-image", map[string]interface{}{
		"prompt":   "a lighthouse at dusk",
		"quantity": float64(0),
	})
	require.NoError(t, err)
	assert.Nil(t, params)
	require.NotEmpty(t, ferrs)
	assert.NotEmpty(t, ferrs.ForField("quantity"))
}

func TestValidator_FieldErrorsComeBackAsResults(t *testing.T) {
	v := newTestValidator(t)

	params, ferrs, err := v.Validate("turbo-image", map[string]interface{}{
		"prompt": "fox",
		"steps":  float64(50),
	})
	require.NoError(t, err, "malformed input is a result, not a fault")
	assert.Nil(t, params)
	require.NotEmpty(t, ferrs)
	assert.NotEmpty(t, ferrs.ForField("steps"))
}

func TestValidator_UnknownEngineFailsHard(t *testing.T) {
	v := newTestValidator(t)

	_, _, err := v.Validate("no-such-engine", map[string]interface{}{})
	require.Error(t, err)
	assert.Equal(t, cerrors.ErrCodeConfiguration, cerrors.CodeOf(err))
}

func TestValidator_EngineInputTotalOverValidated(t *testing.T) {
	v := newTestValidator(t)

	for _, def := range engines.All() {
		def := def
		t.Run(def.ID, func(t *testing.T) {
			params, ferrs, err := v.Validate(def.ID, map[string]interface{}{})
			require.NoError(t, err)
			require.Empty(t, ferrs, "defaults alone must validate for %s", def.ID)

			input, err := v.EngineInput(params)
			require.NoError(t, err)
			assert.NotNil(t, input)

			meta, err := v.DisplayMetadata(params)
			require.NoError(t, err)
			assert.NotNil(t, meta)
		})
	}
}
