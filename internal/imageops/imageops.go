// Package imageops applies the caption-selected operations to decoded images
// and handles loading and saving image files.
package imageops

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math/rand/v2"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/edgard/polybot/internal/instruction"
)

var (
	// ErrInvalidParameter is returned for parameters the user got wrong.
	ErrInvalidParameter = errors.New("invalid parameter")
	// ErrUnsupportedAction is returned by Apply for actions that are not single-image operations.
	ErrUnsupportedAction = errors.New("unsupported action")
)

// Concat sides.
const (
	SideLeftToRight = "left-to-right"
	SideRightToLeft = "right-to-left"
	SideTopToBottom = "top-to-bottom"
	SideBottomToTop = "bottom-to-top"
)

const (
	defaultBlurSigma   = 3.0
	maxBlurSigma       = 100.0
	defaultNoiseLevel  = 0.05
	defaultRotateAngle = 90
	resultSuffix       = "_filtered"
)

// Open decodes the image at path, applying EXIF orientation.
func Open(path string) (image.Image, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("open image %s: %w", path, err)
	}
	return img, nil
}

// Save encodes img to path. The format follows the file extension.
func Save(img image.Image, path string) error {
	if err := imaging.Save(img, path); err != nil {
		return fmt.Errorf("save image %s: %w", path, err)
	}
	return nil
}

// ResultPath returns the path the processed version of path is written to.
func ResultPath(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + resultSuffix + ext
}

// Apply runs a single-image operation.
func Apply(img image.Image, in instruction.Instruction) (image.Image, error) {
	switch in.Action {
	case instruction.ActionBlur:
		level, _ := in.Param(instruction.ParamLevel)
		return Blur(img, level)
	case instruction.ActionContour:
		return Contour(img), nil
	case instruction.ActionRotate:
		direction, _ := in.Param(instruction.ParamDirection)
		degrees, _ := in.Param(instruction.ParamDegrees)
		return Rotate(img, direction, degrees)
	case instruction.ActionSaltAndPepper:
		level, _ := in.Param(instruction.ParamLevel)
		return SaltAndPepper(img, level)
	case instruction.ActionSegment:
		return Segment(img), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedAction, in.Action)
	}
}

// Blur applies a gaussian blur. level is the sigma in (0, 100], defaulting to 3.
// The kernel grows with sigma, so larger values are rejected.
func Blur(img image.Image, level string) (image.Image, error) {
	sigma := defaultBlurSigma
	if level != "" {
		v, err := strconv.ParseFloat(level, 64)
		if err != nil || !(v > 0 && v <= maxBlurSigma) {
			return nil, fmt.Errorf("%w: blur level must be a number above 0 and at most %g, got %q",
				ErrInvalidParameter, maxBlurSigma, level)
		}
		sigma = v
	}
	return imaging.Blur(img, sigma), nil
}

// Contour highlights edges as dark lines on a light background.
func Contour(img image.Image) image.Image {
	laplacian := [9]float64{
		-1, -1, -1,
		-1, 8, -1,
		-1, -1, -1,
	}
	edges := imaging.Convolve3x3(imaging.Grayscale(img), laplacian, nil)
	return imaging.Invert(edges)
}

// Rotate turns the image by 90, 180 or 270 degrees. The default is 90 degrees clockwise.
func Rotate(img image.Image, direction, degrees string) (image.Image, error) {
	angle := defaultRotateAngle
	if degrees != "" {
		v, err := strconv.Atoi(degrees)
		if err != nil || (v != 90 && v != 180 && v != 270) {
			return nil, fmt.Errorf("%w: degrees must be 90, 180 or 270, got %q", ErrInvalidParameter, degrees)
		}
		angle = v
	}

	switch direction {
	case "", instruction.DirectionClockwise:
		angle = 360 - angle
	case instruction.DirectionAntiClockwise:
	default:
		return nil, fmt.Errorf("%w: direction must be clockwise or anti-clockwise, got %q", ErrInvalidParameter, direction)
	}

	// imaging rotates counter-clockwise.
	switch angle {
	case 90:
		return imaging.Rotate90(img), nil
	case 180:
		return imaging.Rotate180(img), nil
	default:
		return imaging.Rotate270(img), nil
	}
}

// SaltAndPepper sets a random proportion of pixels to black or white.
// level is that proportion in [0, 1], defaulting to 0.05.
func SaltAndPepper(img image.Image, level string) (image.Image, error) {
	amount := defaultNoiseLevel
	if level != "" {
		v, err := strconv.ParseFloat(level, 64)
		if err != nil || !(v >= 0 && v <= 1) {
			return nil, fmt.Errorf("%w: noise level must be a number between 0 and 1, got %q", ErrInvalidParameter, level)
		}
		amount = v
	}

	out := imaging.Clone(img)
	bounds := out.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w == 0 || h == 0 {
		return out, nil
	}

	salt := color.NRGBA{R: 255, G: 255, B: 255, A: 255}
	pepper := color.NRGBA{A: 255}
	n := int(amount * float64(w*h))
	for range n {
		x, y := rand.IntN(w), rand.IntN(h)
		if rand.IntN(2) == 0 {
			out.SetNRGBA(x, y, pepper)
		} else {
			out.SetNRGBA(x, y, salt)
		}
	}
	return out, nil
}

// Segment splits the image into foreground and background by thresholding
// luminance at its mean.
func Segment(img image.Image) image.Image {
	gray := imaging.Grayscale(img)
	if len(gray.Pix) == 0 {
		return gray
	}

	var sum uint64
	for i := 0; i < len(gray.Pix); i += 4 {
		sum += uint64(gray.Pix[i])
	}
	mean := uint8(sum / uint64(len(gray.Pix)/4))

	for i := 0; i < len(gray.Pix); i += 4 {
		v := uint8(0)
		if gray.Pix[i] > mean {
			v = 255
		}
		gray.Pix[i], gray.Pix[i+1], gray.Pix[i+2] = v, v, v
	}
	return gray
}

// Concat joins two images. direction is horizontal (default) or vertical;
// side orders the pair: left-to-right and top-to-bottom put base first,
// right-to-left and bottom-to-top put other first. Defaults are
// right-to-left for horizontal and top-to-bottom for vertical. The smaller
// image is padded with white.
func Concat(base, other image.Image, direction, side string) (image.Image, error) {
	if direction == "" {
		direction = instruction.DirectionHorizontal
	}

	var baseFirst bool
	switch direction {
	case instruction.DirectionHorizontal:
		switch side {
		case "", SideRightToLeft:
			baseFirst = false
		case SideLeftToRight:
			baseFirst = true
		default:
			return nil, fmt.Errorf("%w: horizontal concat side must be %s or %s, got %q",
				ErrInvalidParameter, SideLeftToRight, SideRightToLeft, side)
		}
	case instruction.DirectionVertical:
		switch side {
		case "", SideTopToBottom:
			baseFirst = true
		case SideBottomToTop:
			baseFirst = false
		default:
			return nil, fmt.Errorf("%w: vertical concat side must be %s or %s, got %q",
				ErrInvalidParameter, SideTopToBottom, SideBottomToTop, side)
		}
	default:
		return nil, fmt.Errorf("%w: concat direction must be horizontal or vertical, got %q", ErrInvalidParameter, direction)
	}

	first, second := other, base
	if baseFirst {
		first, second = base, other
	}
	fb, sb := first.Bounds(), second.Bounds()

	var canvas *image.NRGBA
	var offset image.Point
	if direction == instruction.DirectionHorizontal {
		canvas = imaging.New(fb.Dx()+sb.Dx(), max(fb.Dy(), sb.Dy()), color.White)
		offset = image.Pt(fb.Dx(), 0)
	} else {
		canvas = imaging.New(max(fb.Dx(), sb.Dx()), fb.Dy()+sb.Dy(), color.White)
		offset = image.Pt(0, fb.Dy())
	}
	canvas = imaging.Paste(canvas, first, image.Pt(0, 0))
	canvas = imaging.Paste(canvas, second, offset)
	return canvas, nil
}
