package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseResolutionPreset(t *testing.T) {
	for in, want := range map[string]ResolutionPreset{
		"low":       PresetLow,
		"veryHigh":  PresetVeryHigh,
		"ultraHigh": PresetUltraHigh,
		"max":       PresetAuto,
		"":          PresetAuto,
	} {
		got, err := ParseResolutionPreset(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseResolutionPreset("huge")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestMaxPreviewHeight(t *testing.T) {
	assert.Equal(t, uint32(240), PresetLow.MaxPreviewHeight())
	assert.Equal(t, uint32(1080), PresetVeryHigh.MaxPreviewHeight())
	assert.Equal(t, uint32(UnboundedHeight), PresetAuto.MaxPreviewHeight())
}

func TestParseSize(t *testing.T) {
	w, h, err := ParseSize(" 1280X720 ")
	require.NoError(t, err)
	assert.Equal(t, uint32(1280), w)
	assert.Equal(t, uint32(720), h)

	for _, bad := range []string{"1280", "axb", "0x480", "640x"} {
		_, _, err := ParseSize(bad)
		assert.ErrorIs(t, err, ErrInvalidInput, bad)
	}
}

func TestMediaType(t *testing.T) {
	mt := MediaType{Width: 640, Height: 480, Format: FormatYUYV}
	assert.Equal(t, uint64(307200), mt.Area())
	assert.False(t, mt.IsZero())
	assert.True(t, MediaType{Width: 640}.IsZero())
	assert.Equal(t, "640x480/mjpeg", mt.WithFormat(FormatMJPEG).String())
	assert.Equal(t, FormatYUYV, mt.Format, "WithFormat returns a copy")
}

func TestOperationKindsAreDistinct(t *testing.T) {
	seen := map[OperationKind]bool{}
	for _, k := range OperationKinds() {
		assert.False(t, seen[k], k)
		seen[k] = true
	}
	assert.Len(t, seen, 7)
}
