// Command assetqdemo demonstrates the assetq asynchronous asset loader.
//
// It walks a directory, submits every recognized file as the matching
// asset kind, then runs a simulated frame loop that drains finalized
// assets once per frame, the same shape a game loop would have.
package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gogpu/assetq"
	"github.com/gogpu/assetq/blob"
	"github.com/gogpu/assetq/manager"
	"github.com/gogpu/assetq/mesh"
	"github.com/gogpu/assetq/shader"
	"github.com/gogpu/assetq/texture"
)

func main() {
	var (
		dir      = flag.String("dir", ".", "directory to load assets from")
		manifest = flag.String("manifest", "", "optional YAML manifest instead of a directory walk")
		frameMs  = flag.Int("frame", 16, "simulated frame time in milliseconds")
		verbose  = flag.Bool("v", false, "enable debug logging")
	)
	flag.Parse()

	if *verbose {
		assetq.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})))
	}

	m := manager.New()
	defer m.Shutdown()

	if *manifest != "" {
		f, err := os.Open(*manifest)
		if err != nil {
			log.Fatalf("Failed to open manifest: %v", err)
		}
		err = m.PreloadManifest(f, filepath.Dir(*manifest))
		f.Close()
		if err != nil {
			log.Fatalf("Failed to preload manifest: %v", err)
		}
	} else if err := submitDirectory(m, *dir); err != nil {
		log.Fatalf("Failed to walk %s: %v", *dir, err)
	}

	total := m.Len()
	if total == 0 {
		log.Fatal("No loadable assets found")
	}
	log.Printf("Submitted %d assets, entering frame loop", total)

	frames := 0
	start := time.Now()
	for !m.Tick() {
		frames++
		time.Sleep(time.Duration(*frameMs) * time.Millisecond)
	}
	log.Printf("All assets finalized after %d frames (%v)", frames, time.Since(start))

	report(m, *dir)
}

// submitDirectory registers every recognized file under root with the
// manager, keyed by its path relative to root.
func submitDirectory(m *manager.Manager, root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			rel = path
		}
		factory := factoryFor(path)
		if factory == nil {
			return nil // unrecognized extension
		}
		m.Load(rel, factory)
		return nil
	})
}

// factoryFor picks the asset kind by file extension, or nil for files
// assetqdemo does not handle.
func factoryFor(path string) func() assetq.Asset {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png", ".jpg", ".jpeg", ".gif", ".webp", ".bmp", ".tiff", ".tif":
		return func() assetq.Asset { return texture.New(path) }
	case ".wgsl":
		return func() assetq.Asset { return shader.New(path) }
	case ".obj":
		return func() assetq.Asset { return mesh.New(path) }
	case ".bin", ".dat", ".pak":
		return func() assetq.Asset { return blob.NewFile(path) }
	default:
		return nil
	}
}

// report prints one line per asset with its outcome.
func report(m *manager.Manager, root string) {
	ok, failed := 0, 0
	_ = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, rerr := filepath.Rel(root, path)
		if rerr != nil {
			rel = path
		}
		a, found := m.Get(rel)
		if !found {
			return nil
		}
		status := "ok"
		if !a.IsValid() {
			status = "FAILED"
			failed++
		} else {
			ok++
		}
		fmt.Printf("  %-40s %s%s\n", rel, status, describe(a))
		return nil
	})
	log.Printf("Done: %d ok, %d failed", ok, failed)
}

// describe returns a short per-kind summary for valid assets.
func describe(a assetq.Asset) string {
	if !a.IsValid() {
		return ""
	}
	switch t := a.(type) {
	case *texture.Asset:
		w, h := t.Size()
		return fmt.Sprintf("  (%dx%d)", w, h)
	case *shader.Asset:
		return fmt.Sprintf("  (%d bytes SPIR-V)", len(t.SPIRV()))
	case *mesh.Asset:
		if g := t.Geometry(); g != nil {
			return fmt.Sprintf("  (%d verts, %d tris)", g.VertexCount(), g.TriangleCount())
		}
	case *blob.File:
		return fmt.Sprintf("  (%d bytes)", len(t.Bytes()))
	}
	return ""
}
