package validate

import (
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeImage(t *testing.T, path string, img image.Image) {
	t.Helper()

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	switch filepath.Ext(path) {
	case ".png":
		require.NoError(t, png.Encode(f, img))
	default:
		require.NoError(t, jpeg.Encode(f, img, nil))
	}
}

func rgbImage() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for x := 0; x < 4; x++ {
		for y := 0; y < 4; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 60), G: uint8(y * 60), B: 90, A: 255})
		}
	}
	return img
}

func grayImage() image.Image {
	img := image.NewGray(image.Rect(0, 0, 4, 4))
	img.SetGray(1, 1, color.Gray{Y: 200})
	return img
}

func TestValidateDirectory_AllRGB(t *testing.T) {
	dir := t.TempDir()
	writeImage(t, filepath.Join(dir, "0.jpg"), rgbImage())
	writeImage(t, filepath.Join(dir, "1.png"), rgbImage())
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested"), 0o755))

	n, err := ValidateDirectory(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestValidateDirectory_StopsAtFirstGreyscale(t *testing.T) {
	dir := t.TempDir()
	writeImage(t, filepath.Join(dir, "a.jpg"), rgbImage())
	writeImage(t, filepath.Join(dir, "b.png"), grayImage())
	// Would fail with a DecodeError if validation continued past b.png.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "c.jpg"), []byte("not an image"), 0o644))

	n, err := ValidateDirectory(context.Background(), dir)
	require.Error(t, err)

	var modeErr *ColorModeError
	require.ErrorAs(t, err, &modeErr)
	assert.Equal(t, filepath.Join(dir, "b.png"), modeErr.Path)
	assert.Equal(t, "L", modeErr.Mode)
	assert.Contains(t, err.Error(), "b.png")
	assert.Equal(t, 1, n)
}

func TestValidateDirectory_Undecodable(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "0.jpg"), []byte("<html>blocked</html>"), 0o644))

	_, err := ValidateDirectory(context.Background(), dir)

	var decodeErr *DecodeError
	require.ErrorAs(t, err, &decodeErr)
	assert.ErrorIs(t, err, image.ErrFormat)
}

func TestValidateDirectory_MissingDir(t *testing.T) {
	_, err := ValidateDirectory(context.Background(), filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}

func TestMode(t *testing.T) {
	dir := t.TempDir()

	paletted := image.NewPaletted(image.Rect(0, 0, 2, 2), color.Palette{color.Black, color.White})
	translucent := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	translucent.Set(0, 0, color.NRGBA{R: 10, A: 100})

	tests := []struct {
		name string
		img  image.Image
		want string
	}{
		{"rgb.jpg", rgbImage(), "RGB"},
		{"rgb.png", rgbImage(), "RGB"},
		{"gray.jpg", grayImage(), "L"},
		{"gray.png", grayImage(), "L"},
		{"palette.png", paletted, "P"},
		{"alpha.png", translucent, "RGBA"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name)
			writeImage(t, path, tt.img)

			got, err := Mode(path)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestModeOf(t *testing.T) {
	assert.Equal(t, "RGB", ModeOf(color.YCbCrModel))
	assert.Equal(t, "I;16", ModeOf(color.Gray16Model))
	assert.Equal(t, "CMYK", ModeOf(color.CMYKModel))
	assert.Equal(t, "unknown", ModeOf(color.AlphaModel))
}
