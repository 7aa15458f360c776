// Package mesh provides a Wavefront OBJ asset for the assetq loader.
//
// The load phase parses the OBJ text into indexed vertex data ready for
// GPU buffer upload; the finalize phase hands the data to a
// caller-supplied receiver. The supported subset is v/vt/vn/f with
// arbitrary polygon faces (triangulated as fans), which covers what
// game asset pipelines typically export.
package mesh

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/gogpu/assetq"
)

// Data is the parsed geometry: tightly packed attribute arrays indexed
// by Indices. Positions holds 3 floats per vertex, Normals 3, UVs 2;
// Normals and UVs are empty when the file defines none.
type Data struct {
	Positions []float32
	Normals   []float32
	UVs       []float32
	Indices   []uint32
}

// VertexCount returns the number of unique vertices.
func (d *Data) VertexCount() int { return len(d.Positions) / 3 }

// TriangleCount returns the number of triangles.
func (d *Data) TriangleCount() int { return len(d.Indices) / 3 }

// Receiver accepts the parsed geometry during the finalize phase and
// creates the GPU-side vertex and index buffers. It runs on the owning
// goroutine. A returned error marks the asset invalid.
type Receiver func(*Data) error

// Asset loads one OBJ file.
type Asset struct {
	assetq.State

	path    string
	source  []byte // parse from memory instead of path when set
	receive Receiver

	// parsed is the payload: written by Load, consumed by Finalize.
	parsed *Data

	retained *Data
}

// Option configures a mesh Asset during creation.
type Option func(*Asset)

// WithReceiver sets the finalize-phase callback that consumes the
// geometry. The data is not retained by the asset.
func WithReceiver(fn Receiver) Option {
	return func(a *Asset) { a.receive = fn }
}

// New creates a mesh asset that loads from path.
func New(path string, opts ...Option) *Asset {
	a := &Asset{State: assetq.NewState(path), path: path}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// NewFromBytes creates a mesh asset that parses OBJ text already in
// memory. name is the display name used in logs.
func NewFromBytes(name string, data []byte, opts ...Option) *Asset {
	a := &Asset{State: assetq.NewState(name), source: data}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Load reads and parses the mesh. Worker goroutine only.
func (a *Asset) Load() {
	data := a.source
	if data == nil {
		var err error
		data, err = os.ReadFile(a.path)
		if err != nil {
			assetq.Logger().Warn("mesh read failed", "asset", a.Name(), "error", err)
			return
		}
	}

	parsed, err := ParseOBJ(data)
	if err != nil {
		assetq.Logger().Warn("mesh parse failed", "asset", a.Name(), "error", err)
		return
	}
	a.parsed = parsed

	assetq.Logger().Debug("mesh parsed",
		"asset", a.Name(),
		"vertices", parsed.VertexCount(), "triangles", parsed.TriangleCount())
}

// Finalize consumes the parsed geometry. Owning goroutine only.
func (a *Asset) Finalize() bool {
	parsed := a.parsed
	a.parsed = nil

	if parsed == nil {
		return a.FinishFinalize(a, false)
	}

	ok := true
	if a.receive != nil {
		if err := a.receive(parsed); err != nil {
			assetq.Logger().Warn("mesh buffer creation failed", "asset", a.Name(), "error", err)
			ok = false
		}
	} else {
		a.retained = parsed
	}
	return a.FinishFinalize(a, ok)
}

// Geometry returns the retained data, or nil when a receiver consumed
// it or the load failed.
func (a *Asset) Geometry() *Data { return a.retained }

var _ assetq.Asset = (*Asset)(nil)

// vertexKey identifies one v/vt/vn combination from a face element.
type vertexKey struct {
	pos, uv, normal int // 0-based; -1 when absent
}

// ParseOBJ parses the supported OBJ subset into indexed geometry.
// Face elements sharing the same v/vt/vn triple are merged into one
// vertex. Polygon faces are triangulated as fans.
func ParseOBJ(data []byte) (*Data, error) {
	var (
		positions [][3]float32
		normals   [][3]float32
		uvs       [][2]float32

		out    Data
		lookup = make(map[vertexKey]uint32)
		line   int
	)

	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		line++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			continue
		}
		switch fields[0] {
		case "v":
			v, err := parseFloats3(fields[1:])
			if err != nil {
				return nil, fmt.Errorf("mesh: line %d: vertex: %w", line, err)
			}
			positions = append(positions, v)
		case "vn":
			v, err := parseFloats3(fields[1:])
			if err != nil {
				return nil, fmt.Errorf("mesh: line %d: normal: %w", line, err)
			}
			normals = append(normals, v)
		case "vt":
			if len(fields) < 3 {
				return nil, fmt.Errorf("mesh: line %d: texcoord needs 2 components", line)
			}
			u, err0 := strconv.ParseFloat(fields[1], 32)
			v, err1 := strconv.ParseFloat(fields[2], 32)
			if err0 != nil || err1 != nil {
				return nil, fmt.Errorf("mesh: line %d: bad texcoord", line)
			}
			uvs = append(uvs, [2]float32{float32(u), float32(v)})
		case "f":
			if len(fields) < 4 {
				return nil, fmt.Errorf("mesh: line %d: face needs at least 3 vertices", line)
			}
			corners := make([]uint32, 0, len(fields)-1)
			for _, el := range fields[1:] {
				key, err := parseFaceElement(el, len(positions), len(uvs), len(normals))
				if err != nil {
					return nil, fmt.Errorf("mesh: line %d: %w", line, err)
				}
				idx, ok := lookup[key]
				if !ok {
					idx = uint32(out.VertexCount())
					lookup[key] = idx
					p := positions[key.pos]
					out.Positions = append(out.Positions, p[0], p[1], p[2])
					if key.uv >= 0 {
						t := uvs[key.uv]
						out.UVs = append(out.UVs, t[0], t[1])
					}
					if key.normal >= 0 {
						n := normals[key.normal]
						out.Normals = append(out.Normals, n[0], n[1], n[2])
					}
				}
				corners = append(corners, idx)
			}
			// Fan triangulation.
			for i := 1; i+1 < len(corners); i++ {
				out.Indices = append(out.Indices, corners[0], corners[i], corners[i+1])
			}
		default:
			// o, g, s, mtllib, usemtl and friends carry no geometry.
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("mesh: %w", err)
	}
	if len(out.Indices) == 0 {
		return nil, fmt.Errorf("mesh: no faces")
	}
	return &out, nil
}

func parseFloats3(fields []string) ([3]float32, error) {
	var v [3]float32
	if len(fields) < 3 {
		return v, fmt.Errorf("needs 3 components, got %d", len(fields))
	}
	for i := range 3 {
		f, err := strconv.ParseFloat(fields[i], 32)
		if err != nil {
			return v, fmt.Errorf("bad float %q", fields[i])
		}
		v[i] = float32(f)
	}
	return v, nil
}

// parseFaceElement parses one "v", "v/vt", "v//vn", or "v/vt/vn"
// element into 0-based indices, resolving OBJ's 1-based and negative
// (relative) index forms.
func parseFaceElement(el string, nPos, nUV, nNormal int) (vertexKey, error) {
	key := vertexKey{pos: -1, uv: -1, normal: -1}
	parts := strings.Split(el, "/")
	if len(parts) == 0 || len(parts) > 3 {
		return key, fmt.Errorf("bad face element %q", el)
	}

	resolve := func(s string, n int) (int, error) {
		i, err := strconv.Atoi(s)
		if err != nil || i == 0 {
			return 0, fmt.Errorf("bad index %q", s)
		}
		if i < 0 {
			i = n + i + 1
		}
		if i < 1 || i > n {
			return 0, fmt.Errorf("index %q out of range", s)
		}
		return i - 1, nil
	}

	var err error
	if key.pos, err = resolve(parts[0], nPos); err != nil {
		return key, err
	}
	if len(parts) > 1 && parts[1] != "" {
		if key.uv, err = resolve(parts[1], nUV); err != nil {
			return key, err
		}
	}
	if len(parts) > 2 && parts[2] != "" {
		if key.normal, err = resolve(parts[2], nNormal); err != nil {
			return key, err
		}
	}
	return key, nil
}
