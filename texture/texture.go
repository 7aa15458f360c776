// Package texture provides an image asset for the assetq loader.
//
// The load phase reads and decodes an image file into tightly packed
// RGBA pixels; the finalize phase hands the pixels to a caller-supplied
// uploader, the boundary where GPU texture creation happens. PNG, JPEG,
// GIF, WebP, BMP, and TIFF are supported.
package texture

import (
	"bytes"
	"image"
	"image/draw"
	"os"

	// Decoders register themselves with image.Decode.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/assetq"
)

// Uploader receives the decoded pixels during the finalize phase and
// creates the GPU-side texture. It runs on the owning goroutine. A
// returned error marks the asset invalid.
type Uploader func(pixels *image.RGBA, format gputypes.TextureFormat) error

// Asset loads and decodes one image file.
//
// Without an uploader, the decoded pixels are retained and available
// through Pixels after a successful finalize, useful for CPU-side use
// or tests. With [WithUploader], the pixels are handed off and not
// retained.
type Asset struct {
	assetq.State

	path        string
	data        []byte // decode from memory instead of path when set
	premultiply bool
	upload      Uploader

	// decoded is the payload: written by Load, consumed by Finalize.
	decoded *image.RGBA

	width, height int
	format        gputypes.TextureFormat
	retained      *image.RGBA
}

// Option configures a texture Asset during creation.
type Option func(*Asset)

// WithUploader sets the finalize-phase upload callback. The decoded
// pixels are passed to fn and not retained by the asset.
func WithUploader(fn Uploader) Option {
	return func(a *Asset) { a.upload = fn }
}

// WithPremultiply converts the decoded pixels to premultiplied alpha
// during the load phase. Use this when the render pipeline blends with
// premultiplied textures.
func WithPremultiply() Option {
	return func(a *Asset) { a.premultiply = true }
}

// New creates a texture asset that loads from path.
func New(path string, opts ...Option) *Asset {
	a := &Asset{State: assetq.NewState(path), path: path}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// NewFromBytes creates a texture asset that decodes data already in
// memory, for example an embedded fallback texture. name is the display
// name used in logs.
func NewFromBytes(name string, data []byte, opts ...Option) *Asset {
	a := &Asset{State: assetq.NewState(name), data: data}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Load reads and decodes the image. Worker goroutine only.
func (a *Asset) Load() {
	data := a.data
	if data == nil {
		var err error
		data, err = os.ReadFile(a.path)
		if err != nil {
			assetq.Logger().Warn("texture read failed", "asset", a.Name(), "error", err)
			return
		}
	}

	img, kind, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		assetq.Logger().Warn("texture decode failed", "asset", a.Name(), "error", err)
		return
	}

	rgba := toRGBA(img)
	if a.premultiply {
		premultiply(rgba)
	}
	a.decoded = rgba

	assetq.Logger().Debug("texture decoded",
		"asset", a.Name(), "codec", kind,
		"width", rgba.Rect.Dx(), "height", rgba.Rect.Dy())
}

// Finalize consumes the decoded pixels. Owning goroutine only.
func (a *Asset) Finalize() bool {
	pixels := a.decoded
	a.decoded = nil

	if pixels == nil {
		return a.FinishFinalize(a, false)
	}

	a.width = pixels.Rect.Dx()
	a.height = pixels.Rect.Dy()
	a.format = gputypes.TextureFormatRGBA8Unorm

	ok := true
	if a.upload != nil {
		if err := a.upload(pixels, a.format); err != nil {
			assetq.Logger().Warn("texture upload failed", "asset", a.Name(), "error", err)
			ok = false
		}
	} else {
		a.retained = pixels
	}
	return a.FinishFinalize(a, ok)
}

// Size returns the texture dimensions in pixels. Valid after a
// successful finalize.
func (a *Asset) Size() (width, height int) { return a.width, a.height }

// Format returns the pixel format of the uploaded or retained pixels.
// [gputypes.TextureFormatUndefined] before finalize.
func (a *Asset) Format() gputypes.TextureFormat { return a.format }

// Pixels returns the retained pixels, or nil when an uploader consumed
// them or the load failed.
func (a *Asset) Pixels() *image.RGBA { return a.retained }

// Release drops the retained pixels so their memory can be reclaimed.
func (a *Asset) Release() { a.retained = nil }

// toRGBA returns img as a tightly packed *image.RGBA with a zero-origin
// rectangle, copying only when necessary.
func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		b := rgba.Rect
		if b.Min == (image.Point{}) && rgba.Stride == 4*b.Dx() {
			return rgba
		}
	}
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Rect, img, b.Min, draw.Src)
	return dst
}

// premultiply converts straight-alpha pixels to premultiplied alpha in
// place.
func premultiply(img *image.RGBA) {
	pix := img.Pix
	for i := 0; i < len(pix); i += 4 {
		a := uint32(pix[i+3])
		if a == 0xff {
			continue
		}
		pix[i+0] = uint8(uint32(pix[i+0]) * a / 0xff)
		pix[i+1] = uint8(uint32(pix[i+1]) * a / 0xff)
		pix[i+2] = uint8(uint32(pix[i+2]) * a / 0xff)
	}
}

var _ assetq.Asset = (*Asset)(nil)
