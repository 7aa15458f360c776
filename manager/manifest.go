package manager

import (
	"fmt"
	"io"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/gogpu/assetq"
	"github.com/gogpu/assetq/blob"
	"github.com/gogpu/assetq/mesh"
	"github.com/gogpu/assetq/shader"
	"github.com/gogpu/assetq/texture"
)

// Manifest describes a set of assets to preload, typically shipped as a
// YAML file next to the assets themselves:
//
//	assets:
//	  - key: hero
//	    kind: texture
//	    path: textures/hero.png
//	  - key: sky
//	    kind: shader
//	    path: shaders/sky.wgsl
//	  - key: dlc-pack
//	    kind: http
//	    url: https://cdn.example.com/dlc.pak
type Manifest struct {
	Assets []ManifestEntry `yaml:"assets"`
}

// ManifestEntry is one asset in a Manifest. Kind selects the asset
// implementation: texture, shader, mesh, file, or http. Path is
// relative to the base directory passed to PreloadManifest; http
// entries use URL instead.
type ManifestEntry struct {
	Key  string `yaml:"key"`
	Kind string `yaml:"kind"`
	Path string `yaml:"path"`
	URL  string `yaml:"url"`
}

// ParseManifest decodes a YAML manifest and validates its entries.
func ParseManifest(r io.Reader) (*Manifest, error) {
	var man Manifest
	if err := yaml.NewDecoder(r).Decode(&man); err != nil {
		return nil, fmt.Errorf("manager: manifest: %w", err)
	}
	for i, e := range man.Assets {
		if e.Key == "" {
			return nil, fmt.Errorf("manager: manifest entry %d: missing key", i)
		}
		switch e.Kind {
		case "texture", "shader", "mesh", "file":
			if e.Path == "" {
				return nil, fmt.Errorf("manager: manifest entry %q: missing path", e.Key)
			}
		case "http":
			if e.URL == "" {
				return nil, fmt.Errorf("manager: manifest entry %q: missing url", e.Key)
			}
		default:
			return nil, fmt.Errorf("%w: %q (entry %q)", ErrUnknownKind, e.Kind, e.Key)
		}
	}
	return &man, nil
}

// PreloadManifest parses a YAML manifest from r and submits every entry
// through Load. Relative paths resolve against baseDir. Entries whose
// key is already registered gain a reference instead of loading again.
func (m *Manager) PreloadManifest(r io.Reader, baseDir string) error {
	man, err := ParseManifest(r)
	if err != nil {
		return err
	}
	for _, e := range man.Assets {
		path := e.Path
		if path != "" && !filepath.IsAbs(path) {
			path = filepath.Join(baseDir, path)
		}
		m.Load(e.Key, manifestFactory(e.Kind, path, e.URL))
	}
	return nil
}

// manifestFactory returns the asset constructor for one manifest entry.
// Kinds are validated by ParseManifest before this is called.
func manifestFactory(kind, path, url string) func() assetq.Asset {
	return func() assetq.Asset {
		switch kind {
		case "texture":
			return texture.New(path)
		case "shader":
			return shader.New(path)
		case "mesh":
			return mesh.New(path)
		case "file":
			return blob.NewFile(path)
		case "http":
			return blob.NewHTTP(url)
		}
		panic("manager: unreachable asset kind " + kind)
	}
}
