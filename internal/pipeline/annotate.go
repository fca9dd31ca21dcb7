package pipeline

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	xdraw "golang.org/x/image/draw"
)

const (
	borderThickness = 4
	// maxFrameWidth keeps detection latency predictable on large camera frames.
	maxFrameWidth = 960
	jpegQuality   = 80
)

var (
	colorMatched   = color.RGBA{R: 0, G: 200, B: 0, A: 255}
	colorUnmatched = color.RGBA{R: 220, G: 0, B: 0, A: 255}
)

func decodeFrame(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding frame: %w", err)
	}
	return img, nil
}

// downscale shrinks the frame to maxFrameWidth, keeping the aspect ratio.
// Frames at or below the limit pass through untouched.
func downscale(img image.Image) image.Image {
	bounds := img.Bounds()
	if bounds.Dx() <= maxFrameWidth {
		return img
	}

	height := bounds.Dy() * maxFrameWidth / bounds.Dx()
	dst := image.NewRGBA(image.Rect(0, 0, maxFrameWidth, height))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, bounds, xdraw.Over, nil)
	return dst
}

// drawBorder paints a rectangle border around the bounding box. The box
// is clipped to the frame so partial faces at the edge still render.
func drawBorder(img image.Image, bbox []float64, c color.Color) *image.RGBA {
	dst := toRGBA(img)
	if len(bbox) != 4 {
		return dst
	}

	rect := image.Rect(int(bbox[0]), int(bbox[1]), int(bbox[2]), int(bbox[3])).Intersect(dst.Bounds())
	if rect.Empty() {
		return dst
	}

	uniform := image.NewUniform(c)
	top := image.Rect(rect.Min.X, rect.Min.Y, rect.Max.X, rect.Min.Y+borderThickness)
	bottom := image.Rect(rect.Min.X, rect.Max.Y-borderThickness, rect.Max.X, rect.Max.Y)
	left := image.Rect(rect.Min.X, rect.Min.Y, rect.Min.X+borderThickness, rect.Max.Y)
	right := image.Rect(rect.Max.X-borderThickness, rect.Min.Y, rect.Max.X, rect.Max.Y)

	for _, edge := range []image.Rectangle{top, bottom, left, right} {
		draw.Draw(dst, edge.Intersect(dst.Bounds()), uniform, image.Point{}, draw.Src)
	}
	return dst
}

func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	dst := image.NewRGBA(img.Bounds())
	draw.Draw(dst, dst.Bounds(), img, img.Bounds().Min, draw.Src)
	return dst
}

func encodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("encoding frame: %w", err)
	}
	return buf.Bytes(), nil
}
