package texture

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/assetq"
)

// encodePNG returns a w×h PNG with every pixel set to c.
func encodePNG(t *testing.T, w, h int, c color.NRGBA) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	return buf.Bytes()
}

func TestLoadFromBytes(t *testing.T) {
	data := encodePNG(t, 8, 4, color.NRGBA{R: 255, A: 255})

	a := NewFromBytes("red.png", data)
	if !assetq.LoadNow(a) {
		t.Fatal("LoadNow failed for a valid PNG")
	}

	w, h := a.Size()
	if w != 8 || h != 4 {
		t.Errorf("Size() = %dx%d, want 8x4", w, h)
	}
	if a.Format() != gputypes.TextureFormatRGBA8Unorm {
		t.Errorf("Format() = %v, want RGBA8Unorm", a.Format())
	}
	px := a.Pixels()
	if px == nil {
		t.Fatal("Pixels() = nil without an uploader")
	}
	if got := px.RGBAAt(0, 0); got.R != 255 || got.A != 255 {
		t.Errorf("pixel (0,0) = %v, want opaque red", got)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "white.png")
	data := encodePNG(t, 2, 2, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	a := New(path)
	if !assetq.LoadNow(a) {
		t.Fatal("LoadNow failed for a PNG on disk")
	}
	if w, h := a.Size(); w != 2 || h != 2 {
		t.Errorf("Size() = %dx%d, want 2x2", w, h)
	}
}

func TestMissingFileIsInvalidButFinalized(t *testing.T) {
	a := New(filepath.Join(t.TempDir(), "does-not-exist.png"))
	if assetq.LoadNow(a) {
		t.Fatal("LoadNow succeeded for a missing file")
	}
	if !a.IsFinalized() {
		t.Error("failed texture was never finalized")
	}
	if a.IsValid() {
		t.Error("failed texture reports IsValid() = true")
	}
	if a.Pixels() != nil {
		t.Error("failed texture retained pixels")
	}
}

func TestCorruptDataIsInvalid(t *testing.T) {
	a := NewFromBytes("garbage.png", []byte("not an image"))
	if assetq.LoadNow(a) {
		t.Fatal("LoadNow succeeded for garbage data")
	}
	if a.IsValid() {
		t.Error("corrupt texture reports IsValid() = true")
	}
}

func TestUploaderReceivesPixels(t *testing.T) {
	data := encodePNG(t, 4, 4, color.NRGBA{G: 255, A: 255})

	var gotW, gotH int
	var gotFormat gputypes.TextureFormat
	a := NewFromBytes("green.png", data, WithUploader(
		func(pixels *image.RGBA, format gputypes.TextureFormat) error {
			gotW, gotH = pixels.Rect.Dx(), pixels.Rect.Dy()
			gotFormat = format
			return nil
		}))

	if !assetq.LoadNow(a) {
		t.Fatal("LoadNow failed")
	}
	if gotW != 4 || gotH != 4 {
		t.Errorf("uploader got %dx%d pixels, want 4x4", gotW, gotH)
	}
	if gotFormat != gputypes.TextureFormatRGBA8Unorm {
		t.Errorf("uploader got format %v, want RGBA8Unorm", gotFormat)
	}
	if a.Pixels() != nil {
		t.Error("pixels retained even though an uploader consumed them")
	}
}

func TestUploaderErrorMarksInvalid(t *testing.T) {
	data := encodePNG(t, 1, 1, color.NRGBA{A: 255})
	a := NewFromBytes("tiny.png", data, WithUploader(
		func(*image.RGBA, gputypes.TextureFormat) error {
			return errors.New("device lost")
		}))

	if assetq.LoadNow(a) {
		t.Fatal("LoadNow succeeded despite an upload error")
	}
	if a.IsValid() {
		t.Error("asset valid despite an upload error")
	}
}

func TestPremultiply(t *testing.T) {
	// 50% transparent white: premultiplied channels become ~127.
	data := encodePNG(t, 1, 1, color.NRGBA{R: 255, G: 255, B: 255, A: 128})

	a := NewFromBytes("half.png", data, WithPremultiply())
	if !assetq.LoadNow(a) {
		t.Fatal("LoadNow failed")
	}
	got := a.Pixels().RGBAAt(0, 0)
	if got.R < 120 || got.R > 135 {
		t.Errorf("premultiplied R = %d, want ~128", got.R)
	}
	if got.A != 128 {
		t.Errorf("alpha changed by premultiply: %d, want 128", got.A)
	}
}

func TestToRGBAConvertsSubImages(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 8, 8))
	sub := src.SubImage(image.Rect(2, 2, 6, 6)).(*image.RGBA)

	got := toRGBA(sub)
	if got.Rect.Min != (image.Point{}) {
		t.Errorf("converted image origin = %v, want (0,0)", got.Rect.Min)
	}
	if got.Stride != 4*got.Rect.Dx() {
		t.Errorf("converted image not tightly packed: stride %d for width %d",
			got.Stride, got.Rect.Dx())
	}
}

func TestLoadThroughLoader(t *testing.T) {
	data := encodePNG(t, 2, 2, color.NRGBA{B: 255, A: 255})
	a := NewFromBytes("blue.png", data)

	l := assetq.NewLoader()
	l.Submit(a)
	l.Start()
	defer l.Shutdown()

	deadlineDrain(t, l)

	if !a.IsValid() {
		t.Error("texture loaded through the loader is invalid")
	}
}

func deadlineDrain(t *testing.T, l *assetq.Loader) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !l.Drain() {
		if time.Now().After(deadline) {
			t.Fatal("loader did not drain")
		}
		time.Sleep(time.Millisecond)
	}
}
