package appcache

import (
	"bytes"
	"image"
	"image/draw"
	_ "image/gif"  // register gif
	_ "image/jpeg" // register jpeg
	_ "image/png"  // register png
	"io"
	"os"
	"path/filepath"
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/theme"
	"github.com/fyne-io/image/ico"
	"github.com/fyne-io/image/xpm"
	"github.com/gabriel-vasile/mimetype"
	"github.com/jackmordaunt/icns"
	"github.com/klauspost/compress/gzip"
)

// IconData is the persisted form of an icon.
// It is always one of RasterBytes, RGBA or VectorBytes.
type IconData interface {
	isIconData()
}

// RasterBytes is an encoded raster image (PNG, JPEG, ...) kept as found on disk.
type RasterBytes []byte

// VectorBytes is the content of an SVG file.
type VectorBytes []byte

// RGBA is a decoded raster image with non-premultiplied 8 bit channels, 4 bytes per pixel.
type RGBA struct {
	Width, Height uint32
	Pix           []byte
}

func (RasterBytes) isIconData() {}
func (VectorBytes) isIconData() {}
func (RGBA) isIconData()        {}

func (d RGBA) valid() bool {
	return d.Width > 0 && d.Height > 0 && uint64(len(d.Pix)) == 4*uint64(d.Width)*uint64(d.Height)
}

// IconKind says what an IconHandle can render.
type IconKind uint8

const (
	// IconNotLoaded means no icon is available yet, a live lookup may still find one
	IconNotLoaded IconKind = iota
	IconRaster
	IconVector
	// IconFallback is the built in application icon
	IconFallback
)

// IconHandle is the render form of an app icon.
// Raster handles carry either a Resource with encoded bytes or an already decoded Image.
type IconHandle struct {
	Kind     IconKind
	Resource fyne.Resource
	Image    image.Image
}

// Canvas returns a canvas image showing this icon, or nil if the icon is not loaded.
func (h IconHandle) Canvas() *canvas.Image {
	var img *canvas.Image
	switch {
	case h.Image != nil:
		img = canvas.NewImageFromImage(h.Image)
	case h.Resource != nil:
		img = canvas.NewImageFromResource(h.Resource)
	default:
		return nil
	}
	img.FillMode = canvas.ImageFillContain
	return img
}

// FallbackIconHandle returns the handle used when no icon could be found for an app.
func FallbackIconHandle() IconHandle {
	return IconHandle{Kind: IconFallback, Resource: theme.FileApplicationIcon()}
}

var xpmMagic = []byte("/* XPM */")

// iconDataFromPath loads the icon a resolved path points at.
// It returns nil when the path is not resolved or the file cannot be read or decoded.
func iconDataFromPath(icon IconPath) IconData {
	if icon.State != IconResolved || icon.Path == "" {
		return nil
	}

	data, err := os.ReadFile(icon.Path)
	if err != nil {
		return nil
	}
	switch strings.ToLower(filepath.Ext(icon.Path)) {
	case ".svg":
		return VectorBytes(data)
	case ".svgz":
		svg, err := gunzip(data)
		if err != nil {
			return nil
		}
		return VectorBytes(svg)
	}
	return decodeRaster(data)
}

func gunzip(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

// decodeRaster decodes any supported raster format to RGBA, returning nil if it cannot.
func decodeRaster(data []byte) IconData {
	img, err := decodeImage(data)
	if err != nil || img == nil {
		return nil
	}

	bounds := img.Bounds()
	if bounds.Empty() {
		return nil
	}
	dst := image.NewNRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(dst, dst.Bounds(), img, bounds.Min, draw.Src)
	return RGBA{Width: uint32(bounds.Dx()), Height: uint32(bounds.Dy()), Pix: dst.Pix}
}

func decodeImage(data []byte) (image.Image, error) {
	r := bytes.NewReader(data)
	mime := mimetype.Detect(data)
	switch {
	case mime.Is("image/x-icns"):
		return icns.Decode(r)
	case mime.Is("image/x-icon"):
		return ico.Decode(r)
	case bytes.HasPrefix(data, xpmMagic):
		return xpm.Decode(r)
	}

	img, _, err := image.Decode(r)
	return img, err
}

// handleFromData builds a render handle for persisted icon data, name is used for the resource name.
func handleFromData(name string, data IconData) IconHandle {
	switch d := data.(type) {
	case RasterBytes:
		return IconHandle{Kind: IconRaster, Resource: fyne.NewStaticResource(name+".png", d)}
	case RGBA:
		if !d.valid() {
			return FallbackIconHandle()
		}
		w, h := int(d.Width), int(d.Height)
		return IconHandle{Kind: IconRaster, Image: &image.NRGBA{Pix: d.Pix, Stride: 4 * w, Rect: image.Rect(0, 0, w, h)}}
	case VectorBytes:
		return IconHandle{Kind: IconVector, Resource: fyne.NewStaticResource(name+".svg", d)}
	}

	return IconHandle{}
}
