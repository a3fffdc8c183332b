package capture

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"camsession/internal/domain"
)

func TestGetFrameBufferReusedForSameLength(t *testing.T) {
	h := newHarness(t)

	a := h.ctrl.GetFrameBuffer(64)
	b := h.ctrl.GetFrameBuffer(64)
	require.Len(t, a, 64)
	assert.Same(t, &a[0], &b[0], "same length must return the same buffer")

	c := h.ctrl.GetFrameBuffer(128)
	require.Len(t, c, 128)
	assert.NotSame(t, &a[0], &c[0], "length change must reallocate")
}

func TestGetFrameBufferStableAcrossPublishedFrames(t *testing.T) {
	h := newHarness(t).previewing(t)

	first := h.ctrl.GetFrameBuffer(16)
	h.ctrl.OnBufferUpdated()
	second := h.ctrl.GetFrameBuffer(16)
	h.ctrl.OnBufferUpdated()
	third := h.ctrl.GetFrameBuffer(16)

	assert.Same(t, &first[0], &second[0], "publishing must not replace the source buffer")
	assert.Same(t, &first[0], &third[0])
}

func TestConvertReturnsIndependentCopies(t *testing.T) {
	var f frameStore
	f.setSize(1, 1)
	copy(f.buffer(4), []byte{1, 2, 3, 0})
	f.publish()

	a := f.convert()
	require.NotNil(t, a)
	copy(f.buffer(4), []byte{7, 8, 9, 0})
	f.publish()
	b := f.convert()
	require.NotNil(t, b)

	assert.Equal(t, []byte{3, 2, 1, 255}, a.Data, "earlier conversion is not overwritten")
	assert.Equal(t, []byte{9, 8, 7, 255}, b.Data)
}

func TestConvertFrameForRendererNeedsFrameAndSize(t *testing.T) {
	var f frameStore
	assert.Nil(t, f.convert(), "no frame and no size")

	f.setSize(2, 1)
	assert.Nil(t, f.convert(), "size but no frame published")

	copy(f.buffer(8), []byte{1, 2, 3, 0, 4, 5, 6, 0})
	f.publish()
	assert.NotNil(t, f.convert())

	f.setSize(0, 1)
	assert.Nil(t, f.convert())
}

func TestConvertFrameForRendererSwapsChannelsAndSetsAlpha(t *testing.T) {
	h := newHarness(t).previewing(t)
	w, hgt := h.ctrl.PreviewSize()
	n := int(w * hgt)

	buf := h.ctrl.GetFrameBuffer(n * 4)
	for i := 0; i < n; i++ {
		buf[i*4] = 10   // B
		buf[i*4+1] = 20 // G
		buf[i*4+2] = 30 // R
		buf[i*4+3] = 0  // X
	}
	h.ctrl.OnBufferUpdated()

	out := h.ctrl.ConvertFrameForRenderer(1, 1)
	require.NotNil(t, out)
	assert.Equal(t, int(w), out.Width, "requested size is ignored")
	assert.Equal(t, int(hgt), out.Height)
	require.Len(t, out.Data, n*4)
	for i := 0; i < n; i++ {
		px := out.Data[i*4 : i*4+4]
		if px[0] != 30 || px[1] != 20 || px[2] != 10 || px[3] != 255 {
			t.Fatalf("pixel %d = %v, want [30 20 10 255]", i, px)
		}
	}
}

func TestConvertReadsOnlyPublishedFrames(t *testing.T) {
	var f frameStore
	f.setSize(1, 1)

	copy(f.buffer(4), []byte{1, 1, 1, 0})
	f.publish()

	// Writing the next frame must not leak into the published one.
	copy(f.buffer(4), []byte{9, 9, 9, 0})
	out := f.convert()
	require.NotNil(t, out)
	assert.Equal(t, []byte{1, 1, 1, 255}, out.Data)

	f.publish()
	assert.Equal(t, []byte{9, 9, 9, 255}, f.convert().Data)
}

func TestConvertRejectsShortFrame(t *testing.T) {
	var f frameStore
	f.setSize(4, 4)
	f.buffer(8)
	f.publish()
	assert.Nil(t, f.convert())
}

func TestFindBestMediaType(t *testing.T) {
	vga := domain.MediaType{Width: 640, Height: 480, Format: domain.FormatYUYV}
	hd := domain.MediaType{Width: 1280, Height: 720, Format: domain.FormatYUYV, FrameRate: 30}
	hd15 := domain.MediaType{Width: 1280, Height: 720, Format: domain.FormatMJPEG, FrameRate: 15}
	fhd := domain.MediaType{Width: 1920, Height: 1080, Format: domain.FormatMJPEG}
	uhd := domain.MediaType{Width: 3840, Height: 2160, Format: domain.FormatMJPEG}

	tests := []struct {
		name      string
		types     []domain.MediaType
		maxHeight uint32
		want      domain.MediaType
		ok        bool
	}{
		{"empty", nil, domain.UnboundedHeight, domain.MediaType{}, false},
		{"uncapped picks largest", []domain.MediaType{vga, fhd, hd}, domain.UnboundedHeight, fhd, true},
		{"cap excludes taller", []domain.MediaType{vga, hd, fhd, uhd}, 720, hd, true},
		{"first seen at max wins", []domain.MediaType{vga, hd, hd15}, 720, hd, true},
		{"nothing fits", []domain.MediaType{hd, fhd}, 240, domain.MediaType{}, false},
		{"zero sized ignored", []domain.MediaType{{}, vga}, 480, vga, true},
		{"low preset", []domain.MediaType{{Width: 320, Height: 240}, vga}, domain.PresetLow.MaxPreviewHeight(), domain.MediaType{Width: 320, Height: 240}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := FindBestMediaType(tt.types, tt.maxHeight)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRecordHandlerTiming(t *testing.T) {
	r := newRecordHandler("/tmp/x", 5000)
	r.updateRecordingTime(100)
	assert.Equal(t, int64(-1), r.startUs, "time is not measured before the recording runs")

	r.state = recordRunning
	r.mode = RecordingTimed
	r.updateRecordingTime(2_000_000)
	r.updateRecordingTime(4_500_000)
	assert.Equal(t, int64(2500), r.recordedDurationMs())
	assert.False(t, r.shouldStopTimedRecording())

	r.updateRecordingTime(7_000_000)
	assert.True(t, r.shouldStopTimedRecording())

	r.mode = RecordingContinuous
	assert.False(t, r.shouldStopTimedRecording())
}
