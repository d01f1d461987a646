// Package export re-renders a generated image at a fixed square size and
// encodes it as a JPEG ready for download.
package export

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"strings"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

var (
	ErrNoImage     = errors.New("no image to export")
	ErrUnknownTier = errors.New("unknown quality tier")
	ErrDecode      = errors.New("decode image")
)

// Quality is the JPEG quality factor (0.9 on a 0..1 scale).
const Quality = 90

const ContentType = "image/jpeg"

type Tier string

const (
	Low    Tier = "low"
	Medium Tier = "medium"
	High   Tier = "high"
)

var Tiers = []Tier{Low, Medium, High}

// Size is the edge length in pixels of the square output.
func (t Tier) Size() int {
	switch t {
	case Low:
		return 256
	case Medium:
		return 512
	case High:
		return 1024
	default:
		return 0
	}
}

func (t Tier) Filename() string {
	return fmt.Sprintf("sage-ai-image-%s.jpg", t)
}

func ParseTier(s string) (Tier, error) {
	t := Tier(strings.ToLower(strings.TrimSpace(s)))
	if t.Size() == 0 {
		return "", fmt.Errorf("%w: %q", ErrUnknownTier, s)
	}
	return t, nil
}

type File struct {
	Name        string
	Data        []byte
	ContentType string
}

// Export decodes src, scales it onto a tier-sized square canvas and encodes the
// result as JPEG. Nothing is retained between calls.
func Export(src []byte, tier Tier) (File, error) {
	if len(src) == 0 {
		return File{}, ErrNoImage
	}
	size := tier.Size()
	if size == 0 {
		return File{}, fmt.Errorf("%w: %q", ErrUnknownTier, string(tier))
	}

	img, _, err := image.Decode(bytes.NewReader(src))
	if err != nil {
		return File{}, fmt.Errorf("%w: %w", ErrDecode, err)
	}

	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.BiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)

	buf := new(bytes.Buffer)
	if err := jpeg.Encode(buf, dst, &jpeg.Options{Quality: Quality}); err != nil {
		return File{}, fmt.Errorf("encode jpeg: %w", err)
	}

	return File{
		Name:        tier.Filename(),
		Data:        buf.Bytes(),
		ContentType: ContentType,
	}, nil
}
