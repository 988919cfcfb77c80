package render

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSnapshot(width, height int) *Snapshot {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i+0] = 0x10
		img.Pix[i+1] = 0x20
		img.Pix[i+2] = 0x30
		img.Pix[i+3] = 0xff
	}

	end := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return &Snapshot{
		Image:          img,
		FrequencyMin:   144e6,
		FrequencyMax:   146e6,
		TimestampStart: end.Add(-10 * time.Minute),
		TimestampEnd:   end,
	}
}

func TestRender(t *testing.T) {
	r, err := NewRenderer(Config{Location: time.UTC})
	require.NoError(t, err)

	s := testSnapshot(400, 120)
	img, err := r.Render(s)
	require.NoError(t, err)

	b := r.config.Borders
	assert.Equal(t, 400+b.Left+b.Right, img.Bounds().Dx())
	assert.Equal(t, 120+b.Top+b.Bottom, img.Bounds().Dy())

	// data area is a straight copy of the waterfall
	assert.Equal(t, color.RGBA{R: 0x10, G: 0x20, B: 0x30, A: 0xff}, img.RGBAAt(b.Left, b.Top))
	assert.Equal(t, color.RGBA{R: 0x10, G: 0x20, B: 0x30, A: 0xff}, img.RGBAAt(b.Left+399, b.Top+119))

	// the right border stays white
	assert.Equal(t, color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}, img.RGBAAt(img.Bounds().Max.X-1, b.Top+60))

	// the frequency scale has some ink
	var ink int
	for y := 0; y < b.Top; y++ {
		for x := 0; x < img.Bounds().Dx(); x++ {
			if img.RGBAAt(x, y).R < 0x80 {
				ink++
			}
		}
	}
	assert.Positive(t, ink)
}

func TestRenderPartialRows(t *testing.T) {
	r, err := NewRenderer(Config{})
	require.NoError(t, err)

	s := testSnapshot(100, 50)
	s.Rows = 20

	img, err := r.Render(s)
	require.NoError(t, err)
	assert.Equal(t, 20+r.config.Borders.Top+r.config.Borders.Bottom, img.Bounds().Dy())
}

func TestRenderEmpty(t *testing.T) {
	r, err := NewRenderer(Config{})
	require.NoError(t, err)

	_, err = r.Render(&Snapshot{})
	assert.ErrorIs(t, err, ErrEmptySnapshot)

	_, err = r.Render(&Snapshot{Image: image.NewRGBA(image.Rect(0, 0, 10, 0))})
	assert.ErrorIs(t, err, ErrEmptySnapshot)
}

func TestEncode(t *testing.T) {
	img := testSnapshot(16, 8).Image

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, img, FormatPNG))
	decoded, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, img.Bounds(), decoded.Bounds())

	buf.Reset()
	require.NoError(t, Encode(&buf, img, FormatJPEG))
	_, err = jpeg.Decode(&buf)
	require.NoError(t, err)

	assert.Error(t, Encode(&buf, img, "gif"))
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"png": FormatPNG, "JPG": FormatJPEG, "jpeg": FormatJPEG} {
		got, err := ParseFormat(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := ParseFormat("bmp")
	assert.Error(t, err)
}

func TestNiceTimeStep(t *testing.T) {
	tests := []struct {
		duration time.Duration
		want     time.Duration
	}{
		{5 * time.Second, time.Second},
		{10 * time.Minute, 5 * time.Minute},
		{time.Hour, 10 * time.Minute},
		{48 * time.Hour, 6 * time.Hour},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, niceTimeStep(tt.duration), tt.duration.String())
	}
}
