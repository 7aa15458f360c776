// Package assetq provides asynchronous asset loading for the GoGPU ecosystem.
//
// # Overview
//
// assetq decouples slow asset I/O and decoding from a render or game loop.
// A single background goroutine (the worker) runs the I/O phase of each
// submitted asset in strict FIFO order; the owning goroutine drains the
// results once per frame, running the finalize phase that turns decoded
// bytes into usable resources.
//
// Every asset has exactly two phases:
//
//   - Load: the slow part (file read, image decode, shader compile).
//     Runs only on the worker goroutine, never concurrently with another
//     Load. On failure it leaves the asset's payload empty.
//   - Finalize: the cheap part that consumes the payload into the final
//     resource. Runs only on the owning goroutine, exactly once, even
//     when Load failed.
//
// # Quick Start
//
//	loader := assetq.NewLoader()
//	loader.Start()
//	defer loader.Shutdown()
//
//	tex := texture.New("hero.png")
//	loader.Submit(tex)
//
//	// Once per frame:
//	done := loader.Drain()
//	if done && tex.IsFinalized() && tex.IsValid() {
//	    // texture is ready
//	}
//
// # Concurrency Model
//
// Exactly one worker goroutine ever calls Load. Decode libraries are
// therefore never entered from two goroutines at once, and asset
// implementations do not need to be reentrant. All public Loader methods
// are intended to be called from the owning goroutine.
//
// # Sub-packages
//
//   - manager: keyed deduplication, reference counting, manifest preload
//   - texture, shader, mesh, blob: ready-made asset implementations
package assetq
