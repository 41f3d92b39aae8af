package formats

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"

	"github.com/Faultbox/leeds-assets/pkg/asset"
	"github.com/Faultbox/leeds-assets/pkg/chunk"
)

const (
	collisionNameSize = 24
	sphereRecordSize  = 20
	boxRecordSize     = 28
	spatialNodeSize   = 40

	// collisionQuantized marks mesh vertices stored as int16 triples scaled into the model's box.
	collisionQuantized = 1 << 0
)

type collisionFileState struct {
	models int
}

type collisionState struct {
	col       *asset.CollisionModel
	header    bool
	spheres   int
	boxes     int
	vertices  int
	triangles int
	flags     uint32
}

var collisionFileSections = &sectionTable[*collisionFileState]{
	handlers: map[uint32]sectionFunc[*collisionFileState]{
		IDCollisionModel: decodeCollisionModel,
	},
}

var collisionSections = &sectionTable[*collisionState]{
	handlers: map[uint32]sectionFunc[*collisionState]{
		IDCollisionHeader:  decodeCollisionHeader,
		IDCollisionSpheres: decodeCollisionSpheres,
		IDCollisionBoxes:   decodeCollisionBoxes,
		IDCollisionMesh:    decodeCollisionMesh,
		IDSpatialIndex:     decodeSpatialIndex,
	},
}

func decodeCollisionFile(r *chunk.Reader, root *chunk.Chunk, dc *decodeContext) error {
	return walk(dc, r, collisionFileSections, &collisionFileState{})
}

// decodeCollisionModel decodes one model. Primitive blocks that overrun are
// dropped on their own; a spatial index that does not match the primitives
// is dropped and the model kept. A nested chunk overrunning the model ends
// it early, keeping the blocks decoded so far.
func decodeCollisionModel(r *chunk.Reader, c *chunk.Chunk, dc *decodeContext, fs *collisionFileState) error {
	index := fs.models
	fs.models++

	st := &collisionState{col: &asset.CollisionModel{File: dc.file}}
	if err := walk(dc, r, collisionSections, st); err != nil {
		if isCanceled(err) {
			return err
		}
		entity := fmt.Sprintf("collision %d", index)
		if !isTruncation(err) {
			dc.report(asset.KindStructural, c, entity, err)
			return nil
		}
		if st.header {
			entity = fmt.Sprintf("collision %q", st.col.Name)
		}
		dc.report(asset.KindRange, c, entity, wrap(ErrCollisionRange, err))
		if !st.header {
			return nil
		}
	}
	if st.col.Name == "" {
		st.col.Name = fmt.Sprintf("%s_%d", baseName(dc.file), index)
	}
	if st.col.Index != nil {
		if err := checkSpatialIndex(st.col); err != nil {
			dc.report(asset.KindStructural, c, fmt.Sprintf("collision %q spatial index", st.col.Name), err)
			st.col.Index = nil
		}
	}
	dc.frag.Collisions = append(dc.frag.Collisions, st.col)
	return nil
}

func decodeCollisionHeader(r *chunk.Reader, c *chunk.Chunk, dc *decodeContext, st *collisionState) error {
	st.col.Name = r.FixedString(collisionNameSize)
	st.spheres = int(r.U32())
	st.boxes = int(r.U32())
	st.vertices = int(r.U32())
	st.triangles = int(r.U32())
	st.flags = r.U32()
	st.col.Bounds = asset.Sphere{Center: r.Vec3(), Radius: r.F32()}
	st.col.Min = r.Vec3()
	st.col.Max = r.Vec3()
	if err := r.Err(); err != nil {
		return wrap(ErrCollisionRange, err)
	}
	st.header = true
	return nil
}

// blockReady checks that the header was seen and the block holds count records.
func (st *collisionState) blockReady(r *chunk.Reader, c *chunk.Chunk, dc *decodeContext, what string, count, size int) bool {
	entity := fmt.Sprintf("collision %q %s", st.col.Name, what)
	if !st.header {
		dc.report(asset.KindRange, c, entity, errors.Wrap(ErrCollisionRange, "block precedes header"))
		return false
	}
	if !r.Fits(count, size) {
		dc.report(asset.KindRange, c, entity,
			errors.Wrapf(ErrCollisionRange, "%d records of %d bytes in %d bytes", count, size, r.Remaining()))
		return false
	}
	return true
}

func decodeCollisionSpheres(r *chunk.Reader, c *chunk.Chunk, dc *decodeContext, st *collisionState) error {
	if !st.blockReady(r, c, dc, "spheres", st.spheres, sphereRecordSize) {
		return nil
	}
	spheres := make([]asset.CollisionSphere, st.spheres)
	for i := range spheres {
		spheres[i].Center = r.Vec3()
		spheres[i].Radius = r.F32()
		spheres[i].Surface = r.U8()
		r.Discard(3)
	}
	st.col.Spheres = spheres
	return nil
}

func decodeCollisionBoxes(r *chunk.Reader, c *chunk.Chunk, dc *decodeContext, st *collisionState) error {
	if !st.blockReady(r, c, dc, "boxes", st.boxes, boxRecordSize) {
		return nil
	}
	boxes := make([]asset.CollisionBox, st.boxes)
	for i := range boxes {
		boxes[i].Min = r.Vec3()
		boxes[i].Max = r.Vec3()
		boxes[i].Surface = r.U8()
		r.Discard(3)
	}
	st.col.Boxes = boxes
	return nil
}

func decodeCollisionMesh(r *chunk.Reader, c *chunk.Chunk, dc *decodeContext, st *collisionState) error {
	quantized := st.flags&collisionQuantized != 0
	stride := 12
	if quantized {
		stride = 6
	}
	if !st.blockReady(r, c, dc, "mesh", st.vertices, stride) {
		return nil
	}

	mesh := &asset.CollisionMesh{Vertices: make([]mgl32.Vec3, st.vertices)}
	for i := range mesh.Vertices {
		if quantized {
			mesh.Vertices[i] = dequantize(st.col.Min, st.col.Max, r.I16(), r.I16(), r.I16())
		} else {
			mesh.Vertices[i] = r.Vec3()
		}
	}
	if !st.blockReady(r, c, dc, "mesh triangles", st.triangles, 8) {
		return nil
	}
	mesh.Triangles = make([][3]uint16, st.triangles)
	mesh.Surfaces = make([]uint16, st.triangles)
	for i := range mesh.Triangles {
		mesh.Triangles[i] = [3]uint16{r.U16(), r.U16(), r.U16()}
		mesh.Surfaces[i] = r.U16()
	}
	if err := mesh.Validate(); err != nil {
		dc.report(asset.KindStructural, c, fmt.Sprintf("collision %q mesh", st.col.Name), wrap(ErrInvalidGeometry, err))
		return nil
	}
	st.col.Mesh = mesh
	return nil
}

// dequantize maps int16 coordinates linearly onto the box [lo, hi].
func dequantize(lo, hi mgl32.Vec3, x, y, z int16) mgl32.Vec3 {
	q := mgl32.Vec3{
		(float32(x) + 32768) / 65535,
		(float32(y) + 32768) / 65535,
		(float32(z) + 32768) / 65535,
	}
	size := hi.Sub(lo)
	return mgl32.Vec3{
		lo[0] + size[0]*q[0],
		lo[1] + size[1]*q[1],
		lo[2] + size[2]*q[2],
	}
}

func decodeSpatialIndex(r *chunk.Reader, c *chunk.Chunk, dc *decodeContext, st *collisionState) error {
	count := int(r.U32())
	if r.Err() != nil || !r.Fits(count, spatialNodeSize) {
		dc.report(asset.KindRange, c, fmt.Sprintf("collision %q spatial index", st.col.Name),
			errors.Wrapf(ErrInvalidSpatialIndex, "%d nodes in %d bytes", count, r.Remaining()))
		return nil
	}
	nodes := make([]asset.SpatialNode, count)
	for i := range nodes {
		nodes[i] = asset.SpatialNode{
			Min:   r.Vec3(),
			Max:   r.Vec3(),
			First: int(r.U32()),
			Count: int(r.U32()),
			Left:  int(r.I32()),
			Right: int(r.I32()),
		}
	}
	st.col.Index = &asset.SpatialIndex{Nodes: nodes}
	return nil
}

// checkSpatialIndex requires leaf ranges inside the primitive list and child
// links that point forward, which rules out cycles.
func checkSpatialIndex(col *asset.CollisionModel) error {
	total := col.PrimitiveCount()
	n := len(col.Index.Nodes)
	for i, node := range col.Index.Nodes {
		if node.First < 0 || node.Count < 0 || node.First+node.Count > total {
			return errors.Wrapf(ErrInvalidSpatialIndex, "node %d covers %d+%d of %d primitives", i, node.First, node.Count, total)
		}
		for _, child := range [2]int{node.Left, node.Right} {
			if child != -1 && (child <= i || child >= n) {
				return errors.Wrapf(ErrInvalidSpatialIndex, "node %d links to node %d of %d", i, child, n)
			}
		}
	}
	return nil
}
