package asset

import "github.com/go-gl/mathgl/mgl32"

// CollisionSphere is a sphere primitive.
type CollisionSphere struct {
	Center  mgl32.Vec3
	Radius  float32
	Surface uint8
}

// CollisionBox is an axis-aligned box primitive.
type CollisionBox struct {
	Min     mgl32.Vec3
	Max     mgl32.Vec3
	Surface uint8
}

// CollisionMesh is a triangle soup with per-triangle surface ids.
type CollisionMesh struct {
	Vertices  []mgl32.Vec3
	Triangles [][3]uint16
	Surfaces  []uint16
}

// Validate checks every triangle index against the vertex count.
func (m *CollisionMesh) Validate() error {
	g := Geometry{Vertices: m.Vertices, Triangles: m.Triangles}
	return g.Validate()
}

// SpatialNode is one node of a flattened bounding volume tree.
// Leaves cover primitives [First, First+Count) in sphere, box, triangle order.
type SpatialNode struct {
	Min   mgl32.Vec3
	Max   mgl32.Vec3
	First int
	Count int
	Left  int // -1 for none
	Right int
}

// SpatialIndex accelerates queries over a collision model. Consumers may ignore it.
type SpatialIndex struct {
	Nodes []SpatialNode
}

// CollisionModel owns one set of collision primitives.
type CollisionModel struct {
	Name    string
	File    string
	Bounds  Sphere
	Min     mgl32.Vec3
	Max     mgl32.Vec3
	Spheres []CollisionSphere
	Boxes   []CollisionBox
	Mesh    *CollisionMesh
	Index   *SpatialIndex
}

// PrimitiveCount returns the number of spheres, boxes and triangles.
func (c *CollisionModel) PrimitiveCount() int {
	n := len(c.Spheres) + len(c.Boxes)
	if c.Mesh != nil {
		n += len(c.Mesh.Triangles)
	}
	return n
}
