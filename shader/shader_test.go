package shader

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/gogpu/assetq"
)

// minimalWGSL is a trivially valid compute shader.
const minimalWGSL = `
@compute @workgroup_size(1)
fn main() {
}
`

func TestCompileFromSource(t *testing.T) {
	a := NewFromSource("noop.wgsl", minimalWGSL)
	if !assetq.LoadNow(a) {
		t.Fatal("LoadNow failed for a valid shader")
	}
	if len(a.SPIRV()) == 0 {
		t.Error("no SPIR-V retained after a successful compile")
	}
}

func TestCompileFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "noop.wgsl")
	if err := os.WriteFile(path, []byte(minimalWGSL), 0o644); err != nil {
		t.Fatal(err)
	}

	a := New(path)
	if !assetq.LoadNow(a) {
		t.Fatal("LoadNow failed for a shader on disk")
	}
	if len(a.SPIRV()) == 0 {
		t.Error("no SPIR-V retained")
	}
}

func TestSyntaxErrorIsInvalidButFinalized(t *testing.T) {
	a := NewFromSource("broken.wgsl", "fn { not wgsl")
	if assetq.LoadNow(a) {
		t.Fatal("LoadNow succeeded for invalid WGSL")
	}
	if !a.IsFinalized() {
		t.Error("failed shader was never finalized")
	}
	if a.IsValid() {
		t.Error("failed shader reports IsValid() = true")
	}
}

func TestMissingFileIsInvalid(t *testing.T) {
	a := New(filepath.Join(t.TempDir(), "missing.wgsl"))
	if assetq.LoadNow(a) {
		t.Fatal("LoadNow succeeded for a missing file")
	}
	if a.IsValid() {
		t.Error("missing shader reports IsValid() = true")
	}
}

func TestReceiverConsumesBytecode(t *testing.T) {
	var got []byte
	a := NewFromSource("noop.wgsl", minimalWGSL, WithReceiver(
		func(spirv []byte) error {
			got = spirv
			return nil
		}))

	if !assetq.LoadNow(a) {
		t.Fatal("LoadNow failed")
	}
	if len(got) == 0 {
		t.Error("receiver got no bytecode")
	}
	if a.SPIRV() != nil {
		t.Error("bytecode retained even though a receiver consumed it")
	}
}

func TestReceiverErrorMarksInvalid(t *testing.T) {
	a := NewFromSource("noop.wgsl", minimalWGSL, WithReceiver(
		func([]byte) error { return errors.New("device lost") }))

	if assetq.LoadNow(a) {
		t.Fatal("LoadNow succeeded despite a receiver error")
	}
	if a.IsValid() {
		t.Error("asset valid despite a receiver error")
	}
}
