// Package asset holds the decoded asset graph: models, texture dictionaries,
// collision models and world placements, plus the Session that indexes them
// and resolves references between files.
package asset

import (
	"strings"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
)

// NoParent marks a root frame.
const NoParent = -1

var (
	// ErrFrameParentRange is returned when a parent index points outside the frame list.
	ErrFrameParentRange = errors.New("frame parent out of range")
	// ErrFrameCycle is returned when parent indices loop.
	ErrFrameCycle = errors.New("frame hierarchy has a cycle")
	// ErrIndexOutOfRange is returned when a triangle refers to a missing vertex.
	ErrIndexOutOfRange = errors.New("vertex index out of range")
	// ErrAttributeLength is returned when a per-vertex array does not match the vertex count.
	ErrAttributeLength = errors.New("attribute length mismatch")
)

// Frame is a node of a model's transform hierarchy.
type Frame struct {
	Name   string
	Parent int // index into Model.Frames or NoParent
	Local  mgl32.Mat4
}

// GeometryFlags describes optional per-vertex arrays.
type GeometryFlags uint32

const (
	GeometryNormals GeometryFlags = 1 << 0
	GeometryColors  GeometryFlags = 1 << 1
)

// Sphere is a bounding sphere.
type Sphere struct {
	Center mgl32.Vec3
	Radius float32
}

// TriangleGroup binds a run of triangles to one material.
type TriangleGroup struct {
	First    int
	Count    int
	Material int // index into Model.Materials, -1 for none
}

// Geometry is one mesh of a model.
type Geometry struct {
	Index     int // position in the stored geometry list
	Flags     GeometryFlags
	Bounds    Sphere
	Vertices  []mgl32.Vec3
	Normals   []mgl32.Vec3
	Colors    [][4]uint8
	UVs       [][]mgl32.Vec2 // one slice per channel
	Triangles [][3]uint16
	Groups    []TriangleGroup
}

// MaterialRefs returns the material index of every triangle group.
func (g *Geometry) MaterialRefs() []int {
	refs := make([]int, len(g.Groups))
	for i, grp := range g.Groups {
		refs[i] = grp.Material
	}
	return refs
}

// Validate checks that triangles, groups and per-vertex arrays agree with the vertex list.
func (g *Geometry) Validate() error {
	n := len(g.Vertices)
	for i, tri := range g.Triangles {
		for _, idx := range tri {
			if int(idx) >= n {
				return errors.Wrapf(ErrIndexOutOfRange, "triangle %d uses vertex %d of %d", i, idx, n)
			}
		}
	}
	if g.Normals != nil && len(g.Normals) != n {
		return errors.Wrapf(ErrAttributeLength, "%d normals for %d vertices", len(g.Normals), n)
	}
	if g.Colors != nil && len(g.Colors) != n {
		return errors.Wrapf(ErrAttributeLength, "%d colors for %d vertices", len(g.Colors), n)
	}
	for ch, uv := range g.UVs {
		if len(uv) != n {
			return errors.Wrapf(ErrAttributeLength, "uv channel %d has %d entries for %d vertices", ch, len(uv), n)
		}
	}
	for i, grp := range g.Groups {
		if grp.First < 0 || grp.Count < 0 || grp.First+grp.Count > len(g.Triangles) {
			return errors.Wrapf(ErrIndexOutOfRange, "group %d covers triangles %d+%d of %d", i, grp.First, grp.Count, len(g.Triangles))
		}
	}
	return nil
}

// Material describes surface color and an optional texture reference.
type Material struct {
	Color   [4]uint8
	Flags   uint32
	Texture *TextureRef
}

// TextureName returns the referenced texture name, or "" when the material is untextured.
func (m *Material) TextureName() string {
	if m.Texture == nil {
		return ""
	}
	return m.Texture.Name
}

// TextureRef names a texture and optionally the dictionary expected to hold it.
type TextureRef struct {
	Name       string
	Dictionary string
	Link       TextureLink
}

// RenderFlags are per-atomic draw hints.
type RenderFlags uint32

const (
	RenderDrawLast          RenderFlags = 0x4
	RenderAdditive          RenderFlags = 0x8
	RenderNoZWrite          RenderFlags = 0x40
	RenderNoShadows         RenderFlags = 0x80
	RenderNoBackfaceCulling RenderFlags = 0x200000
)

var renderFlagNames = []struct {
	flag RenderFlags
	name string
}{
	{RenderDrawLast, "draw-last"},
	{RenderAdditive, "additive"},
	{RenderNoZWrite, "no-zwrite"},
	{RenderNoShadows, "no-shadows"},
	{RenderNoBackfaceCulling, "no-backface-culling"},
}

func (f RenderFlags) String() string {
	var parts []string
	for _, fn := range renderFlagNames {
		if f&fn.flag != 0 {
			parts = append(parts, fn.name)
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// Atomic binds one geometry to one frame.
type Atomic struct {
	Frame    int
	Geometry int // Geometry.Index, not a slice position
	Flags    RenderFlags
	HashKey  uint32
}

// Model is a decoded model file.
type Model struct {
	Name       string
	File       string
	Frames     []Frame
	Geometries []Geometry
	Materials  []Material
	Atomics    []Atomic
}

// Geometry returns the geometry stored at list position index, or nil if it was dropped.
func (m *Model) Geometry(index int) *Geometry {
	for i := range m.Geometries {
		if m.Geometries[i].Index == index {
			return &m.Geometries[i]
		}
	}
	return nil
}

// FindFrame returns the index of the first frame named name, or -1.
func (m *Model) FindFrame(name string) int {
	for i, f := range m.Frames {
		if strings.EqualFold(f.Name, name) {
			return i
		}
	}
	return -1
}

// Roots returns the indices of frames without a parent.
func (m *Model) Roots() []int {
	var roots []int
	for i, f := range m.Frames {
		if f.Parent == NoParent {
			roots = append(roots, i)
		}
	}
	return roots
}

// Children returns the indices of frames whose parent is i.
func (m *Model) Children(i int) []int {
	var out []int
	for j, f := range m.Frames {
		if f.Parent == i {
			out = append(out, j)
		}
	}
	return out
}

// WorldMatrix composes the local transforms from the root down to frame i.
// The hierarchy must have passed ValidateFrames.
func (m *Model) WorldMatrix(i int) mgl32.Mat4 {
	world := mgl32.Ident4()
	for i >= 0 && i < len(m.Frames) {
		world = m.Frames[i].Local.Mul4(world)
		i = m.Frames[i].Parent
	}
	return world
}

// ValidateFrames checks that parent indices are in range and form an acyclic forest.
func ValidateFrames(frames []Frame) error {
	const (
		unvisited = iota
		visiting
		done
	)
	state := make([]uint8, len(frames))

	for i := range frames {
		if p := frames[i].Parent; p != NoParent && (p < 0 || p >= len(frames)) {
			return errors.Wrapf(ErrFrameParentRange, "frame %d (%q) has parent %d of %d", i, frames[i].Name, p, len(frames))
		}
	}

	for i := range frames {
		var path []int
		j := i
		for j != NoParent && state[j] == unvisited {
			state[j] = visiting
			path = append(path, j)
			j = frames[j].Parent
		}
		if j != NoParent && state[j] == visiting {
			return errors.Wrapf(ErrFrameCycle, "frame %d (%q) is its own ancestor", j, frames[j].Name)
		}
		for _, k := range path {
			state[k] = done
		}
	}
	return nil
}
