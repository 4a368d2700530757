package scan

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"
)

func TestValidate(t *testing.T) {
	cases := []struct {
		filename, contentType, want string
		ok                         bool
	}{
		{"a.jpg", "image/jpeg", "image/jpeg", true},
		{"a.png", "image/png", "image/png", true},
		{"a.png", "image/png; charset=binary", "image/png", true},
		{"a.bmp", "image/bmp", "image/bmp", true},
		{"a.tif", "image/tiff", "image/tiff", true},
		{"a.dcm", "application/octet-stream", ContentTypeDICOM, true},
		{"A.DCM", "", ContentTypeDICOM, true},
		{"x", "application/dicom", ContentTypeDICOM, true},
		{"a.gif", "image/gif", "", false},
		{"notes.pdf", "application/pdf", "", false},
		{"a.png", "", "", false},
	}
	for _, c := range cases {
		got, err := Validate(c.filename, c.contentType)
		if c.ok {
			assert.NoError(t, err, c.filename)
			assert.Equal(t, c.want, got, c.filename)
		} else {
			assert.ErrorIs(t, err, ErrUnsupportedScanType, c.filename)
		}
	}
}

func TestExtension(t *testing.T) {
	assert.Equal(t, ".png", Extension("image/png"))
	assert.Equal(t, ".dcm", Extension(ContentTypeDICOM))
	assert.Equal(t, ".bin", Extension("text/plain"))
}

func TestDecode(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 3, 2))
	img.Set(1, 1, color.RGBA{R: 200, A: 255})

	var pngBuf, bmpBuf bytes.Buffer
	require.NoError(t, png.Encode(&pngBuf, img))
	require.NoError(t, bmp.Encode(&bmpBuf, img))

	for name, data := range map[string][]byte{"png": pngBuf.Bytes(), "bmp": bmpBuf.Bytes()} {
		out, err := Decode(data, "image/"+name)
		require.NoError(t, err, name)
		assert.Equal(t, image.Rect(0, 0, 3, 2), out.Bounds(), name)
	}

	_, err := Decode([]byte("DICM"), ContentTypeDICOM)
	assert.ErrorIs(t, err, ErrNotRenderable)
	_, err = Decode([]byte("garbage"), "image/png")
	assert.ErrorIs(t, err, ErrNotRenderable)
}
