package validate

import (
	"context"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg" // register decoders for the formats the downloader writes
	_ "image/png"
	"os"
	"path/filepath"

	"github.com/italolelis/instrument_downloader/internal/logctx"
	"github.com/italolelis/instrument_downloader/internal/telemetry"
)

// ModeRGB is the only accepted color mode: three channels, no alpha.
const ModeRGB = "RGB"

// ColorModeError reports an image that decoded into something other than RGB.
type ColorModeError struct {
	Path string
	Mode string
}

func (e *ColorModeError) Error() string {
	return fmt.Sprintf("image %s has mode %s", e.Path, e.Mode)
}

// DecodeError reports a file that could not be decoded as an image.
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("image %s could not be decoded: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Validator checks that every image in a directory is RGB.
type Validator struct {
	telemetry *telemetry.Telemetry
}

func NewValidator(tel *telemetry.Telemetry) *Validator {
	return &Validator{telemetry: tel}
}

// ValidateDirectory decodes each regular file in dir, in directory order, and
// stops at the first one that is not an RGB image. It returns how many files
// passed.
func (v *Validator) ValidateDirectory(ctx context.Context, dir string) (int, error) {
	logger := logctx.LoggerFromContext(ctx).With("dir", dir)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read directory: %w", err)
	}

	checked := 0

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return checked, err
		}

		if !entry.Type().IsRegular() {
			continue
		}

		path := filepath.Join(dir, entry.Name())

		mode, err := Mode(path)
		if err != nil {
			v.telemetry.RecordValidation(ctx, "undecodable")

			return checked, &DecodeError{Path: path, Err: err}
		}

		if mode != ModeRGB {
			v.telemetry.RecordValidation(ctx, "wrong_mode")
			logger.ErrorContext(ctx, "image failed validation", "path", path, "mode", mode)

			return checked, &ColorModeError{Path: path, Mode: mode}
		}

		v.telemetry.RecordValidation(ctx, "ok")

		checked++
	}

	logger.InfoContext(ctx, "directory validated", "images", checked)

	return checked, nil
}

// ValidateDirectory validates dir without telemetry.
func ValidateDirectory(ctx context.Context, dir string) (int, error) {
	return NewValidator(nil).ValidateDirectory(ctx, dir)
}

// Mode decodes the image at path and returns its color mode name.
func Mode(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return "", err
	}

	return ModeOf(img.ColorModel()), nil
}

// ModeOf maps a decoded color model to a mode name: RGB, RGBA, L, P,
// CMYK, I;16 or "unknown". JPEG YCbCr and PNG truecolor without alpha are RGB.
func ModeOf(m color.Model) string {
	switch m {
	case color.YCbCrModel, color.RGBAModel, color.RGBA64Model:
		return ModeRGB
	case color.NRGBAModel, color.NRGBA64Model:
		return "RGBA"
	case color.GrayModel:
		return "L"
	case color.Gray16Model:
		return "I;16"
	case color.NYCbCrAModel:
		return "RGBA"
	case color.CMYKModel:
		return "CMYK"
	}

	if _, ok := m.(color.Palette); ok {
		return "P"
	}

	return "unknown"
}
