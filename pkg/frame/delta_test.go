package frame

import (
	"image"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDeltaValidate(t *testing.T) {
	patch := func(w, h int) *image.NRGBA { return image.NewNRGBA(image.Rect(0, 0, w, h)) }

	testCases := map[string]struct {
		delta Delta
		valid bool
	}{
		"FullCanvas":  {delta: Delta{Rect: image.Rect(0, 0, 4, 4), Patch: patch(4, 4)}, valid: true},
		"Inner":       {delta: Delta{Rect: image.Rect(1, 2, 3, 4), Patch: patch(2, 2)}, valid: true},
		"NoPatch":     {delta: Delta{Rect: image.Rect(0, 0, 1, 1)}},
		"Empty":       {delta: Delta{Rect: image.Rect(2, 2, 2, 3), Patch: patch(1, 1)}},
		"Outside":     {delta: Delta{Rect: image.Rect(3, 3, 5, 5), Patch: patch(2, 2)}},
		"Negative":    {delta: Delta{Rect: image.Rect(-1, 0, 1, 1), Patch: patch(2, 1)}},
		"PatchSize":   {delta: Delta{Rect: image.Rect(0, 0, 2, 2), Patch: patch(2, 1)}},
		"NegDuration": {delta: Delta{Rect: image.Rect(0, 0, 1, 1), Patch: patch(1, 1), Duration: -time.Millisecond}},
	}
	for name, tc := range testCases {
		tc := tc
		t.Run(name, func(t *testing.T) {
			err := tc.delta.Validate(4, 4)
			if tc.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestDisplayDuration(t *testing.T) {
	assert.Equal(t, DefaultFrameDuration, (&Delta{}).DisplayDuration())
	assert.Equal(t, 20*time.Millisecond, (&Delta{Duration: 20 * time.Millisecond}).DisplayDuration())
}

func TestStrings(t *testing.T) {
	assert.Equal(t, "none", DisposeNone.String())
	assert.Equal(t, "background", DisposeRestoreBackground.String())
	assert.Equal(t, "previous", DisposeRestorePrevious.String())
	assert.Equal(t, "Dispose(7)", Dispose(7).String())
	assert.Equal(t, "source", BlendSource.String())
	assert.Equal(t, "source-over", BlendSourceOver.String())
	assert.Equal(t, "Blend(-1)", Blend(-1).String())
}
