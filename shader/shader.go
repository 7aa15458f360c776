// Package shader provides a WGSL shader asset for the assetq loader.
//
// The load phase reads a WGSL source file and compiles it to SPIR-V
// through naga; the finalize phase hands the bytecode to a
// caller-supplied receiver, the boundary where GPU shader-module
// creation happens. Compiling in the load phase keeps WGSL parsing off
// the frame loop.
package shader

import (
	"os"

	"github.com/gogpu/naga"

	"github.com/gogpu/assetq"
)

// Receiver accepts the compiled SPIR-V during the finalize phase and
// creates the GPU-side shader module. It runs on the owning goroutine.
// A returned error marks the asset invalid.
type Receiver func(spirv []byte) error

// Asset loads one WGSL source file and compiles it to SPIR-V.
//
// Without a receiver, the bytecode is retained and available through
// SPIRV after a successful finalize.
type Asset struct {
	assetq.State

	path    string
	source  string // compile from memory instead of path when set
	receive Receiver

	// compiled is the payload: written by Load, consumed by Finalize.
	compiled []byte

	retained []byte
}

// Option configures a shader Asset during creation.
type Option func(*Asset)

// WithReceiver sets the finalize-phase callback that consumes the
// SPIR-V. The bytecode is not retained by the asset.
func WithReceiver(fn Receiver) Option {
	return func(a *Asset) { a.receive = fn }
}

// New creates a shader asset that loads WGSL from path.
func New(path string, opts ...Option) *Asset {
	a := &Asset{State: assetq.NewState(path), path: path}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// NewFromSource creates a shader asset that compiles source already in
// memory, for example an embedded built-in shader. name is the display
// name used in logs.
func NewFromSource(name, source string, opts ...Option) *Asset {
	a := &Asset{State: assetq.NewState(name), source: source}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Load reads and compiles the shader. Worker goroutine only.
func (a *Asset) Load() {
	src := a.source
	if src == "" {
		data, err := os.ReadFile(a.path)
		if err != nil {
			assetq.Logger().Warn("shader read failed", "asset", a.Name(), "error", err)
			return
		}
		src = string(data)
	}

	spirv, err := naga.Compile(src)
	if err != nil {
		assetq.Logger().Warn("shader compile failed", "asset", a.Name(), "error", err)
		return
	}
	a.compiled = spirv

	assetq.Logger().Debug("shader compiled", "asset", a.Name(), "spirvBytes", len(spirv))
}

// Finalize consumes the compiled bytecode. Owning goroutine only.
func (a *Asset) Finalize() bool {
	spirv := a.compiled
	a.compiled = nil

	if spirv == nil {
		return a.FinishFinalize(a, false)
	}

	ok := true
	if a.receive != nil {
		if err := a.receive(spirv); err != nil {
			assetq.Logger().Warn("shader module creation failed", "asset", a.Name(), "error", err)
			ok = false
		}
	} else {
		a.retained = spirv
	}
	return a.FinishFinalize(a, ok)
}

// SPIRV returns the retained bytecode, or nil when a receiver consumed
// it or the load failed.
func (a *Asset) SPIRV() []byte { return a.retained }

var _ assetq.Asset = (*Asset)(nil)
