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
	worldNameSize     = 24
	sectionRecordSize = 2 + 2 + 12 + 4
	instanceNameSize  = 24

	// Instance list chunk versions.
	instancesFloat = 1
	instancesFixed = 2

	instanceFloatSize = 4 + instanceNameSize + 4 + 48 + 4 + 2 + 2
	instanceFixedSize = 4 + instanceNameSize + 4 + 18 + 2 + 12 + 4 + 2 + 2

	// fixedPointOne is 1.0 in the fixed-point transform encoding.
	fixedPointOne = 4096

	refByHash = 1
)

type worldState struct {
	world    *asset.World
	header   bool
	declared int
	sections int
	listed   int
}

var worldSections = &sectionTable[*worldState]{
	handlers: map[uint32]sectionFunc[*worldState]{
		IDWorldHeader:  decodeWorldHeader,
		IDSectionList:  decodeSectionList,
		IDInstanceList: decodeInstanceList,
	},
}

// decodeWorld decodes instance placements. Model references are left pending
// for the session resolver.
func decodeWorld(r *chunk.Reader, root *chunk.Chunk, dc *decodeContext) error {
	st := &worldState{world: &asset.World{File: dc.file}}
	if err := walk(dc, r, worldSections, st); err != nil {
		if isFileFatal(err) {
			return err
		}
		dc.report(asset.KindStructural, root, "world", err)
		return nil
	}
	if st.world.Name == "" {
		st.world.Name = baseName(dc.file)
	}
	entity := fmt.Sprintf("world %q", st.world.Name)
	if st.declared > st.listed {
		dc.report(asset.KindRange, root, entity,
			errors.Wrapf(ErrWorldRange, "header declares %d instances, lists hold %d", st.declared, st.listed))
	}
	if st.header && st.sections != len(st.world.Sections) {
		dc.report(asset.KindRange, root, entity,
			errors.Wrapf(ErrWorldRange, "header declares %d sections, list holds %d", st.sections, len(st.world.Sections)))
	}
	if err := checkSections(st.world); err != nil {
		dc.report(asset.KindRange, root, entity, err)
	}
	dc.frag.Worlds = append(dc.frag.Worlds, st.world)
	return nil
}

// checkSections requires every instance to name a decoded section. Worlds
// without a section list are not partitioned and pass.
func checkSections(w *asset.World) error {
	if len(w.Sections) == 0 {
		return nil
	}
	known := make(map[uint16]bool, len(w.Sections))
	for _, s := range w.Sections {
		known[s.ID] = true
	}
	orphans, first := 0, -1
	for i, inst := range w.Instances {
		if !known[inst.SectionID] {
			if first < 0 {
				first = i
			}
			orphans++
		}
	}
	if orphans == 0 {
		return nil
	}
	return errors.Wrapf(ErrWorldRange, "%d instances name missing sections, first is instance %d in section %d",
		orphans, first, w.Instances[first].SectionID)
}

func decodeWorldHeader(r *chunk.Reader, c *chunk.Chunk, dc *decodeContext, st *worldState) error {
	name := r.FixedString(worldNameSize)
	declared := int(r.U32())
	sections := int(r.U32())
	if err := r.Err(); err != nil {
		return wrap(ErrWorldRange, err)
	}
	st.world.Name = name
	st.header = true
	st.declared = declared
	st.sections = sections
	dc.log.Debug("world header", zap.String("world", name), zap.Int("instances", declared), zap.Int("sections", sections))
	return nil
}

// fitRecords returns how many of count records fit, reporting the shortfall.
func fitRecords(r *chunk.Reader, c *chunk.Chunk, dc *decodeContext, entity string, count, size int) int {
	if r.Fits(count, size) {
		return count
	}
	fit := r.Remaining() / size
	dc.report(asset.KindRange, c, entity,
		errors.Wrapf(ErrWorldRange, "%d records declared, %d fit", count, fit))
	return fit
}

func decodeSectionList(r *chunk.Reader, c *chunk.Chunk, dc *decodeContext, st *worldState) error {
	count := int(r.U32())
	if err := r.Err(); err != nil {
		return wrap(ErrWorldRange, err)
	}
	count = fitRecords(r, c, dc, "section list", count, sectionRecordSize)
	for range count {
		st.world.Sections = append(st.world.Sections, asset.Section{
			ID:      r.U16(),
			LODTier: r.U16(),
			Center:  r.Vec3(),
			Radius:  r.F32(),
		})
	}
	return r.Err()
}

func decodeInstanceList(r *chunk.Reader, c *chunk.Chunk, dc *decodeContext, st *worldState) error {
	var size int
	switch c.Version {
	case 0, instancesFloat:
		size = instanceFloatSize
	case instancesFixed:
		size = instanceFixedSize
	default:
		dc.unsupported(c, fmt.Sprintf("instance list version %d", c.Version))
		return nil
	}

	count := int(r.U32())
	if err := r.Err(); err != nil {
		return wrap(ErrWorldRange, err)
	}
	st.listed += count
	count = fitRecords(r, c, dc, "instance list", count, size)
	for range count {
		st.world.Instances = append(st.world.Instances, readInstance(r, c.Version == instancesFixed))
	}
	return r.Err()
}

func readInstance(r *chunk.Reader, fixed bool) asset.WorldInstance {
	kind := r.U8()
	r.Discard(3)
	ref := asset.ModelRef{Name: r.FixedString(instanceNameSize), Hash: r.U32()}
	ref.ByHash = kind == refByHash || (ref.Name == "" && ref.Hash != 0)

	var inst asset.WorldInstance
	inst.Model = ref
	if fixed {
		inst.Transform = readFixedTransform(r)
	} else {
		right, up, at, pos := r.Vec3(), r.Vec3(), r.Vec3(), r.Vec3()
		inst.Transform = mgl32.Mat4FromCols(right.Vec4(0), up.Vec4(0), at.Vec4(0), pos.Vec4(1))
	}
	inst.LODDistance = r.F32()
	inst.SectionID = r.U16()
	inst.Flags = r.U16()
	return inst
}

// readFixedTransform reads a 3x3 rotation as int16 and a position as int32, both scaled by 1/4096.
func readFixedTransform(r *chunk.Reader) mgl32.Mat4 {
	var rot [9]float32
	for i := range rot {
		rot[i] = float32(r.I16()) / fixedPointOne
	}
	r.Discard(2)
	var pos mgl32.Vec3
	for i := range pos {
		pos[i] = float32(r.I32()) / fixedPointOne
	}
	return mgl32.Mat4FromCols(
		mgl32.Vec4{rot[0], rot[1], rot[2], 0},
		mgl32.Vec4{rot[3], rot[4], rot[5], 0},
		mgl32.Vec4{rot[6], rot[7], rot[8], 0},
		pos.Vec4(1),
	)
}
