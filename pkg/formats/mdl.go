package formats

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Faultbox/leeds-assets/pkg/asset"
	"github.com/Faultbox/leeds-assets/pkg/chunk"
)

const (
	frameNameSize   = 24
	frameRecordSize = frameNameSize + 4 + 64
	modelNameSize   = 24
	textureNameSize = 32
	maxUVChannels   = 8
	groupRecordSize = 12
)

type modelState struct {
	model      *asset.Model
	geometries int // geometry chunks seen, including dropped ones
	materials  int
}

var modelSections = &sectionTable[*modelState]{
	handlers: map[uint32]sectionFunc[*modelState]{
		IDFrameList:    decodeFrameList,
		IDGeometryList: decodeGeometryList,
		IDMaterialList: decodeMaterialList,
		IDAtomic:       decodeAtomic,
		IDModelName:    decodeModelName,
	},
	unsupported: map[uint32]string{
		IDAnimation: "animation",
		IDSkin:      "skin",
	},
}

var geometryListSections = &sectionTable[*modelState]{
	handlers: map[uint32]sectionFunc[*modelState]{
		IDGeometry: decodeGeometry,
	},
}

var materialListSections = &sectionTable[*modelState]{
	handlers: map[uint32]sectionFunc[*modelState]{
		IDMaterial: decodeMaterial,
	},
}

var materialSections = &sectionTable[*asset.Material]{
	handlers: map[uint32]sectionFunc[*asset.Material]{
		IDTextureRef: decodeTextureRef,
	},
}

// decodeModel decodes one model container. A broken frame hierarchy drops the
// whole model; a broken geometry drops only that geometry.
func decodeModel(r *chunk.Reader, root *chunk.Chunk, dc *decodeContext) error {
	st := &modelState{model: &asset.Model{File: dc.file}}
	err := walk(dc, r, modelSections, st)
	if st.model.Name == "" {
		st.model.Name = baseName(dc.file)
	}
	if err != nil {
		if isFileFatal(err) {
			return err
		}
		dc.report(asset.KindStructural, root, fmt.Sprintf("model %q", st.model.Name), err)
		return nil
	}

	st.checkMaterialRefs(dc, root)
	st.checkAtomics(dc, root)
	dc.frag.Models = append(dc.frag.Models, st.model)
	return nil
}

func decodeFrameList(r *chunk.Reader, c *chunk.Chunk, dc *decodeContext, st *modelState) error {
	count := int(r.U32())
	if !r.Fits(count, frameRecordSize) {
		return errors.Wrapf(ErrInvalidFrameHierarchy, "%d frames declared in %d bytes", count, r.Remaining())
	}

	frames := make([]asset.Frame, count)
	for i := range frames {
		frames[i].Name = r.FixedString(frameNameSize)
		frames[i].Parent = int(r.I32())
		frames[i].Local = r.Mat4()
	}
	if err := r.Err(); err != nil {
		return wrap(ErrInvalidFrameHierarchy, err)
	}
	if err := asset.ValidateFrames(frames); err != nil {
		return wrap(ErrInvalidFrameHierarchy, err)
	}
	st.model.Frames = frames
	return nil
}

func decodeGeometryList(r *chunk.Reader, c *chunk.Chunk, dc *decodeContext, st *modelState) error {
	declared := int(r.U32())
	if err := r.Err(); err != nil {
		dc.report(asset.KindStructural, c, "geometry list", wrap(ErrInvalidGeometry, err))
		return nil
	}
	before := st.geometries
	if err := walk(dc, r, geometryListSections, st); err != nil {
		return err
	}
	if found := st.geometries - before; found != declared {
		dc.log.Debug("geometry count mismatch", zap.Int("declared", declared), zap.Int("found", found))
	}
	return nil
}

func decodeGeometry(r *chunk.Reader, c *chunk.Chunk, dc *decodeContext, st *modelState) error {
	index := st.geometries
	st.geometries++

	g, err := readGeometry(r, index)
	if err == nil {
		err = g.Validate()
	}
	if err != nil {
		dc.report(asset.KindStructural, c, fmt.Sprintf("geometry %d", index), wrap(ErrInvalidGeometry, err))
		return nil
	}
	st.model.Geometries = append(st.model.Geometries, *g)
	return nil
}

func readGeometry(r *chunk.Reader, index int) (*asset.Geometry, error) {
	g := &asset.Geometry{Index: index, Flags: asset.GeometryFlags(r.U32())}
	numVerts := int(r.U32())
	numTris := int(r.U32())
	numUV := int(r.U32())
	g.Bounds = asset.Sphere{Center: r.Vec3(), Radius: r.F32()}
	if err := r.Err(); err != nil {
		return nil, err
	}
	if numUV > maxUVChannels {
		return nil, errors.Errorf("%d uv channels", numUV)
	}

	stride := 12 + numUV*8
	if g.Flags&asset.GeometryNormals != 0 {
		stride += 12
	}
	if g.Flags&asset.GeometryColors != 0 {
		stride += 4
	}
	if !r.Fits(numVerts, stride) {
		return nil, errors.Wrapf(chunk.ErrOutOfBounds, "%d vertices of %d bytes in %d bytes", numVerts, stride, r.Remaining())
	}

	g.Vertices = make([]mgl32.Vec3, numVerts)
	for i := range g.Vertices {
		g.Vertices[i] = r.Vec3()
	}
	if g.Flags&asset.GeometryNormals != 0 {
		g.Normals = make([]mgl32.Vec3, numVerts)
		for i := range g.Normals {
			g.Normals[i] = r.Vec3()
		}
	}
	if g.Flags&asset.GeometryColors != 0 {
		g.Colors = make([][4]uint8, numVerts)
		for i := range g.Colors {
			copy(g.Colors[i][:], r.Bytes(4))
		}
	}
	g.UVs = make([][]mgl32.Vec2, numUV)
	for ch := range g.UVs {
		uv := make([]mgl32.Vec2, numVerts)
		for i := range uv {
			uv[i] = r.Vec2()
		}
		g.UVs[ch] = uv
	}

	if !r.Fits(numTris, 6) {
		return nil, errors.Wrapf(chunk.ErrOutOfBounds, "%d triangles in %d bytes", numTris, r.Remaining())
	}
	g.Triangles = make([][3]uint16, numTris)
	for i := range g.Triangles {
		g.Triangles[i] = [3]uint16{r.U16(), r.U16(), r.U16()}
	}

	numGroups := int(r.U32())
	if !r.Fits(numGroups, groupRecordSize) {
		return nil, errors.Wrapf(chunk.ErrOutOfBounds, "%d triangle groups in %d bytes", numGroups, r.Remaining())
	}
	g.Groups = make([]asset.TriangleGroup, numGroups)
	for i := range g.Groups {
		g.Groups[i] = asset.TriangleGroup{
			First:    int(r.U32()),
			Count:    int(r.U32()),
			Material: int(r.I32()),
		}
	}
	return g, r.Err()
}

func decodeMaterialList(r *chunk.Reader, c *chunk.Chunk, dc *decodeContext, st *modelState) error {
	r.U32() // declared count; the material chunks are authoritative
	if err := r.Err(); err != nil {
		dc.report(asset.KindStructural, c, "material list", wrap(ErrInvalidMaterial, err))
		return nil
	}
	return walk(dc, r, materialListSections, st)
}

// decodeMaterial always appends a material so that triangle group indices stay aligned.
func decodeMaterial(r *chunk.Reader, c *chunk.Chunk, dc *decodeContext, st *modelState) error {
	index := st.materials
	st.materials++

	var m asset.Material
	copy(m.Color[:], r.Bytes(4))
	m.Flags = r.U32()
	err := r.Err()
	if err == nil {
		err = walk(dc, r, materialSections, &m)
	}
	if err != nil {
		if isCanceled(err) {
			return err
		}
		kind := asset.KindStructural
		if isTruncation(err) {
			kind = asset.KindRange
		}
		dc.report(kind, c, fmt.Sprintf("material %d", index), wrap(ErrInvalidMaterial, err))
	}
	st.model.Materials = append(st.model.Materials, m)
	return nil
}

func decodeTextureRef(r *chunk.Reader, c *chunk.Chunk, dc *decodeContext, m *asset.Material) error {
	ref := &asset.TextureRef{
		Name:       r.FixedString(textureNameSize),
		Dictionary: r.FixedString(textureNameSize),
	}
	if err := r.Err(); err != nil {
		return err
	}
	if ref.Name != "" {
		m.Texture = ref
	}
	return nil
}

func decodeAtomic(r *chunk.Reader, c *chunk.Chunk, dc *decodeContext, st *modelState) error {
	a := asset.Atomic{
		Frame:    int(r.U32()),
		Geometry: int(r.U32()),
		Flags:    asset.RenderFlags(r.U32()),
		HashKey:  r.U32(),
	}
	if err := r.Err(); err != nil {
		dc.report(asset.KindStructural, c, fmt.Sprintf("atomic %d", len(st.model.Atomics)), wrap(ErrInvalidAtomic, err))
		return nil
	}
	st.model.Atomics = append(st.model.Atomics, a)
	return nil
}

func decodeModelName(r *chunk.Reader, c *chunk.Chunk, dc *decodeContext, st *modelState) error {
	name := r.FixedString(modelNameSize)
	if err := r.Err(); err != nil {
		return err
	}
	st.model.Name = name
	return nil
}

// checkMaterialRefs clears triangle group material indices that point past the material list.
func (st *modelState) checkMaterialRefs(dc *decodeContext, root *chunk.Chunk) {
	n := len(st.model.Materials)
	for gi := range st.model.Geometries {
		g := &st.model.Geometries[gi]
		for i := range g.Groups {
			if m := g.Groups[i].Material; m < -1 || m >= n {
				dc.report(asset.KindStructural, root, fmt.Sprintf("geometry %d group %d", g.Index, i),
					errors.Wrapf(ErrInvalidGeometry, "material %d of %d cleared", m, n))
				g.Groups[i].Material = -1
			}
		}
	}
}

// checkAtomics drops atomics whose frame or geometry does not exist.
func (st *modelState) checkAtomics(dc *decodeContext, root *chunk.Chunk) {
	kept := st.model.Atomics[:0]
	for i, a := range st.model.Atomics {
		var err error
		switch {
		case a.Frame < 0 || a.Frame >= len(st.model.Frames):
			err = errors.Wrapf(ErrInvalidAtomic, "frame %d of %d", a.Frame, len(st.model.Frames))
		case st.model.Geometry(a.Geometry) == nil:
			err = errors.Wrapf(ErrInvalidAtomic, "geometry %d missing or dropped", a.Geometry)
		}
		if err != nil {
			dc.report(asset.KindStructural, root, fmt.Sprintf("atomic %d", i), err)
			continue
		}
		kept = append(kept, a)
	}
	st.model.Atomics = kept
}
