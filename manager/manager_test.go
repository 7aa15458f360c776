package manager

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gogpu/assetq"
)

// countingAsset records phase executions for registry tests.
type countingAsset struct {
	assetq.State
	loads     atomic.Int32
	finalizes atomic.Int32
}

func newCountingAsset(name string) *countingAsset {
	return &countingAsset{State: assetq.NewState(name)}
}

func (a *countingAsset) Load() { a.loads.Add(1) }
func (a *countingAsset) Finalize() bool {
	a.finalizes.Add(1)
	return a.FinishFinalize(a, true)
}

func tickUntilDone(t *testing.T, m *Manager) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !m.Tick() {
		if time.Now().After(deadline) {
			t.Fatal("manager did not drain in time")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestLoadDeduplicatesByKey(t *testing.T) {
	m := New()
	defer m.Shutdown()

	factoryCalls := 0
	factory := func() assetq.Asset {
		factoryCalls++
		return newCountingAsset("rock.obj")
	}

	first := m.Load("rock", factory)
	second := m.Load("rock", factory)

	if first != second {
		t.Error("Load returned different assets for the same key")
	}
	if factoryCalls != 1 {
		t.Errorf("factory called %d times, want 1", factoryCalls)
	}
	if got := m.Refs("rock"); got != 2 {
		t.Errorf("Refs() = %d, want 2", got)
	}

	tickUntilDone(t, m)
	if n := first.(*countingAsset).loads.Load(); n != 1 {
		t.Errorf("deduplicated asset loaded %d times, want 1", n)
	}
}

func TestReleaseCountsDown(t *testing.T) {
	m := New()
	defer m.Shutdown()

	m.Load("a", func() assetq.Asset { return newCountingAsset("a.png") })
	m.Load("a", func() assetq.Asset { return newCountingAsset("unused") })
	tickUntilDone(t, m)

	if !m.Release("a") {
		t.Fatal("Release of a held key returned false")
	}
	if got := m.Refs("a"); got != 1 {
		t.Errorf("Refs() = %d after one release, want 1", got)
	}
	if _, ok := m.Get("a"); !ok {
		t.Error("asset dropped while references remain")
	}

	m.Release("a")
	if _, ok := m.Get("a"); ok {
		t.Error("asset still registered after the last release")
	}
	if m.Release("a") {
		t.Error("Release of an unknown key returned true")
	}
}

func TestReleaseCancelsUnfinalized(t *testing.T) {
	// Keep the worker paused so the asset never loads or finalizes.
	m := New()
	defer m.Shutdown()
	m.Loader().Pause()

	a := newCountingAsset("big.png")
	m.Load("big", func() assetq.Asset { return a })
	m.Release("big")

	m.Loader().Start()
	tickUntilDone(t, m)

	if n := a.loads.Load(); n != 0 {
		t.Errorf("released asset loaded %d times, want 0", n)
	}
	if n := a.finalizes.Load(); n != 0 {
		t.Errorf("released asset finalized %d times, want 0", n)
	}
}

func TestNilFactoryResultPanics(t *testing.T) {
	m := New()
	defer m.Shutdown()

	defer func() {
		if recover() == nil {
			t.Error("Load should panic when the factory returns nil")
		}
	}()
	m.Load("nil", func() assetq.Asset { return nil })
}

func TestParseManifest(t *testing.T) {
	const doc = `
assets:
  - key: hero
    kind: texture
    path: textures/hero.png
  - key: sky
    kind: shader
    path: shaders/sky.wgsl
  - key: rock
    kind: mesh
    path: meshes/rock.obj
  - key: save
    kind: file
    path: data/save.bin
  - key: dlc
    kind: http
    url: http://cdn.example.com/dlc.pak
`
	man, err := ParseManifest(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("ParseManifest: %v", err)
	}
	if got := len(man.Assets); got != 5 {
		t.Fatalf("parsed %d entries, want 5", got)
	}
	if man.Assets[0].Key != "hero" || man.Assets[0].Kind != "texture" {
		t.Errorf("first entry = %+v, want key=hero kind=texture", man.Assets[0])
	}
}

func TestParseManifestRejectsBadEntries(t *testing.T) {
	cases := []struct {
		name string
		doc  string
	}{
		{"unknown kind", "assets:\n  - key: x\n    kind: sound\n    path: x.ogg\n"},
		{"missing key", "assets:\n  - kind: texture\n    path: x.png\n"},
		{"missing path", "assets:\n  - key: x\n    kind: texture\n"},
		{"missing url", "assets:\n  - key: x\n    kind: http\n"},
		{"not yaml", "{{{{"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ParseManifest(strings.NewReader(tc.doc)); err == nil {
				t.Errorf("ParseManifest accepted %s", tc.name)
			}
		})
	}

	if _, err := ParseManifest(strings.NewReader(
		"assets:\n  - key: x\n    kind: sound\n    path: x.ogg\n")); !errors.Is(err, ErrUnknownKind) {
		t.Errorf("unknown kind error = %v, want ErrUnknownKind", err)
	}
}

func TestPreloadManifest(t *testing.T) {
	dir := t.TempDir()

	// A real 1x1 PNG for the texture entry.
	img := image.NewNRGBA(image.Rect(0, 0, 1, 1))
	img.SetNRGBA(0, 0, color.NRGBA{R: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "pixel.png"), buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "save.bin"), []byte("state"), 0o644); err != nil {
		t.Fatal(err)
	}

	const doc = `
assets:
  - key: pixel
    kind: texture
    path: pixel.png
  - key: save
    kind: file
    path: save.bin
`
	m := New()
	defer m.Shutdown()

	if err := m.PreloadManifest(strings.NewReader(doc), dir); err != nil {
		t.Fatalf("PreloadManifest: %v", err)
	}
	if got := m.Len(); got != 2 {
		t.Fatalf("registered %d assets, want 2", got)
	}

	tickUntilDone(t, m)

	for _, key := range []string{"pixel", "save"} {
		a, ok := m.Get(key)
		if !ok {
			t.Fatalf("asset %q not registered", key)
		}
		if !a.IsFinalized() || !a.IsValid() {
			t.Errorf("%q: IsFinalized=%v IsValid=%v, want true/true",
				key, a.IsFinalized(), a.IsValid())
		}
	}
}
