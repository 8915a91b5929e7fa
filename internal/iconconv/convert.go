// Package iconconv converts raster images into Windows .ico files usable as
// application icons.
package iconconv

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
)

// MaxSize is the largest edge an ICO directory entry can describe.
const MaxSize = 256

// ErrUnsupportedFormat is returned for inputs that are not PNG, JPEG or GIF.
var ErrUnsupportedFormat = errors.New("unsupported image format")

var supportedMIME = []string{"image/png", "image/jpeg", "image/gif"}

// Convert reads src, scales it to fit MaxSize×MaxSize keeping the aspect
// ratio and writes a single-image .ico with a PNG payload to dst.
func Convert(src, dst string) error {
	mtype, err := mimetype.DetectFile(src)
	if err != nil {
		return fmt.Errorf("detect %s: %w", src, err)
	}
	if !mimetype.EqualsAny(mtype.String(), supportedMIME...) {
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, mtype.String())
	}

	f, err := os.Open(src)
	if err != nil {
		return err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return fmt.Errorf("decode %s: %w", src, err)
	}

	data, err := Encode(Fit(img, MaxSize))
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o644)
}

// DefaultTarget returns src with its extension replaced by .ico.
func DefaultTarget(src string) string {
	ext := filepath.Ext(src)
	return src[:len(src)-len(ext)] + ".ico"
}

// Fit scales img down so both edges are at most size. Smaller images are
// returned unchanged.
func Fit(img image.Image, size int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= size && h <= size {
		return img
	}

	nw, nh := size, size
	if w > h {
		nh = max(1, h*size/w)
	} else {
		nw = max(1, w*size/h)
	}

	out := image.NewNRGBA(image.Rect(0, 0, nw, nh))
	for y := 0; y < nh; y++ {
		y0 := b.Min.Y + y*h/nh
		y1 := max(y0+1, b.Min.Y+(y+1)*h/nh)
		for x := 0; x < nw; x++ {
			x0 := b.Min.X + x*w/nw
			x1 := max(x0+1, b.Min.X+(x+1)*w/nw)
			out.SetNRGBA(x, y, average(img, x0, y0, x1, y1))
		}
	}
	return out
}

// average box-filters the source block [x0,x1)×[y0,y1).
func average(img image.Image, x0, y0, x1, y1 int) color.NRGBA {
	var r, g, b, a, n uint64
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			r += uint64(c.R)
			g += uint64(c.G)
			b += uint64(c.B)
			a += uint64(c.A)
			n++
		}
	}
	return color.NRGBA{R: uint8(r / n), G: uint8(g / n), B: uint8(b / n), A: uint8(a / n)}
}

// Encode writes img as an ICO file holding one PNG-compressed image.
func Encode(img image.Image) ([]byte, error) {
	b := img.Bounds()
	if b.Dx() > MaxSize || b.Dy() > MaxSize || b.Empty() {
		return nil, fmt.Errorf("icon size %dx%d out of range", b.Dx(), b.Dy())
	}

	rgba := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)

	var payload bytes.Buffer
	if err := png.Encode(&payload, rgba); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}

	const headerSize, entrySize = 6, 16
	var buf bytes.Buffer
	header := struct {
		Reserved uint16
		Type     uint16
		Count    uint16
	}{Type: 1, Count: 1}
	entry := struct {
		Width       uint8
		Height      uint8
		Colors      uint8
		Reserved    uint8
		Planes      uint16
		BitCount    uint16
		BytesInRes  uint32
		ImageOffset uint32
	}{
		Width:       dimByte(b.Dx()),
		Height:      dimByte(b.Dy()),
		Planes:      1,
		BitCount:    32,
		BytesInRes:  uint32(payload.Len()),
		ImageOffset: headerSize + entrySize,
	}
	if err := binary.Write(&buf, binary.LittleEndian, header); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.LittleEndian, entry); err != nil {
		return nil, err
	}
	buf.Write(payload.Bytes())
	return buf.Bytes(), nil
}

// dimByte encodes an edge length; 0 means 256 in the ICO directory.
func dimByte(n int) uint8 {
	if n >= MaxSize {
		return 0
	}
	return uint8(n)
}
