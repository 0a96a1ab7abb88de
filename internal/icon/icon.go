package icon

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/jpeg"
	"image/png"
	"os"
	"strings"

	"github.com/MimeLyc/quote-translator/pkg/file"
	"github.com/MimeLyc/quote-translator/pkg/log"
)

// Info describes an image the way app store tooling reports it.
type Info struct {
	Path     string
	Mode     string // RGBA, RGB, LA, L, P or CMYK
	Width    int
	Height   int
	MinAlpha uint8
	MaxAlpha uint8
}

func (i Info) HasAlpha() bool {
	return strings.Contains(i.Mode, "A")
}

// Transparent reports whether any pixel is not fully opaque.
func (i Info) Transparent() bool {
	return i.HasAlpha() && i.MinAlpha < 0xff
}

func (i Info) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Mode: %s\n", i.Mode)
	fmt.Fprintf(&sb, "Size: %dx%d\n", i.Width, i.Height)
	fmt.Fprintf(&sb, "Has Alpha: %t\n", i.HasAlpha())
	if i.HasAlpha() {
		fmt.Fprintf(&sb, "Alpha range: %d-%d\n", i.MinAlpha, i.MaxAlpha)
	}
	return sb.String()
}

// Inspect decodes the image at path and reports its mode and alpha range.
func Inspect(path string) (Info, image.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Info{}, nil, fmt.Errorf("read image %s: %w", path, err)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return Info{}, nil, fmt.Errorf("decode image %s: %w", path, err)
	}

	b := img.Bounds()
	info := Info{Path: path, Mode: mode(data, img), Width: b.Dx(), Height: b.Dy(), MinAlpha: 0xff, MaxAlpha: 0xff}
	if info.HasAlpha() {
		info.MinAlpha, info.MaxAlpha = alphaRange(img)
	}
	return info, img, nil
}

// PNG color types from the IHDR chunk.
var pngModes = map[byte]string{
	0: "L",
	2: "RGB",
	3: "P",
	4: "LA",
	6: "RGBA",
}

const pngHeader = "\x89PNG\r\n\x1a\n"

// mode prefers the PNG header color type, since the decoder widens gray
// with alpha to NRGBA.
func mode(data []byte, img image.Image) string {
	if len(data) >= 26 && string(data[:8]) == pngHeader && string(data[12:16]) == "IHDR" {
		if m, ok := pngModes[data[25]]; ok {
			return m
		}
	}
	switch img.(type) {
	case *image.Gray, *image.Gray16:
		return "L"
	case *image.Paletted:
		return "P"
	case *image.CMYK:
		return "CMYK"
	case *image.YCbCr:
		return "RGB"
	default:
		return "RGBA"
	}
}

func alphaRange(img image.Image) (uint8, uint8) {
	b := img.Bounds()
	if b.Empty() {
		return 0xff, 0xff
	}
	lo, hi := uint8(0xff), uint8(0)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			_, _, _, a := img.At(x, y).RGBA()
			a8 := uint8(a >> 8)
			lo = min(lo, a8)
			hi = max(hi, a8)
		}
	}
	return lo, hi
}

// Flatten composites img over opaque white.
func Flatten(img image.Image) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Over)
	return dst
}

// FixedPath is where FixFile writes the flattened copy of path.
func FixedPath(path string) string {
	return file.ReplaceExt(file.WithSuffix(path, "_fixed"), ".png")
}

// FixFile inspects path and, if it has transparent pixels, writes a
// flattened PNG next to it. It returns the written path or "" when the
// image is already opaque.
func FixFile(path string) (Info, string, error) {
	info, img, err := Inspect(path)
	if err != nil {
		return Info{}, "", err
	}
	if !info.Transparent() {
		return info, "", nil
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, Flatten(img)); err != nil {
		return info, "", fmt.Errorf("encode flattened image: %w", err)
	}
	out := FixedPath(path)
	if err := file.WriteAtomic(out, buf.Bytes(), 0o644); err != nil {
		return info, "", fmt.Errorf("write %s: %w", out, err)
	}
	log.Info("Flattened %s (min alpha %d) into %s", path, info.MinAlpha, out)
	return info, out, nil
}
