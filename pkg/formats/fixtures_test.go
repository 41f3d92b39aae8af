package formats

import (
	"encoding/binary"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/leeds-assets/internal/chunktest"
)

type testFrame struct {
	name   string
	parent int32
}

func writeFrames(b *chunktest.Builder, frames ...testFrame) {
	b.Chunk(IDFrameList, 1, func(b *chunktest.Builder) {
		b.U32(uint32(len(frames)))
		for i, f := range frames {
			b.String(f.name, frameNameSize).I32(f.parent).Mat4(mgl32.Translate3D(float32(i), 0, 0))
		}
	})
}

type testGeometry struct {
	vertices  []mgl32.Vec3
	triangles [][3]uint16
	normals   bool
	uvs       int
	groups    [][3]int32 // first, count, material
}

func quad() testGeometry {
	return testGeometry{
		vertices:  []mgl32.Vec3{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}, {1, 1, 0}},
		triangles: [][3]uint16{{0, 1, 2}, {2, 1, 3}},
	}
}

func writeGeometry(b *chunktest.Builder, g testGeometry) {
	b.Chunk(IDGeometry, 1, func(b *chunktest.Builder) {
		var flags uint32
		if g.normals {
			flags |= 1
		}
		b.U32(flags).U32(uint32(len(g.vertices))).U32(uint32(len(g.triangles))).U32(uint32(g.uvs))
		b.F32(0.5, 0.5, 0, 1)
		for _, v := range g.vertices {
			b.F32(v[:]...)
		}
		if g.normals {
			for range g.vertices {
				b.F32(0, 0, 1)
			}
		}
		for ch := 0; ch < g.uvs; ch++ {
			for i := range g.vertices {
				b.F32(float32(i), float32(ch))
			}
		}
		for _, t := range g.triangles {
			b.U16(t[0]).U16(t[1]).U16(t[2])
		}
		b.U32(uint32(len(g.groups)))
		for _, grp := range g.groups {
			b.U32(uint32(grp[0])).U32(uint32(grp[1])).I32(grp[2])
		}
	})
}

func writeGeometryList(b *chunktest.Builder, geoms ...testGeometry) {
	b.Chunk(IDGeometryList, 1, func(b *chunktest.Builder) {
		b.U32(uint32(len(geoms)))
		for _, g := range geoms {
			writeGeometry(b, g)
		}
	})
}

type testMaterial struct {
	texture    string
	dictionary string
}

func writeMaterialList(b *chunktest.Builder, mats ...testMaterial) {
	b.Chunk(IDMaterialList, 1, func(b *chunktest.Builder) {
		b.U32(uint32(len(mats)))
		for _, m := range mats {
			b.Chunk(IDMaterial, 1, func(b *chunktest.Builder) {
				b.U8(255).U8(255).U8(255).U8(255).U32(0)
				if m.texture != "" {
					b.Chunk(IDTextureRef, 1, func(b *chunktest.Builder) {
						b.String(m.texture, textureNameSize).String(m.dictionary, textureNameSize)
					})
				}
			})
		}
	})
}

func writeAtomic(b *chunktest.Builder, frame, geometry, flags, hash uint32) {
	b.Chunk(IDAtomic, 1, func(b *chunktest.Builder) {
		b.U32(frame).U32(geometry).U32(flags).U32(hash)
	})
}

func buildModel(order binary.ByteOrder, body func(b *chunktest.Builder)) []byte {
	return chunktest.New(order).Chunk(RootModel, 1, body).Bytes()
}

type testTexture struct {
	name          string
	width, height uint16
	format        uint32
	mips          uint8
	flags         uint16
	offset        uint32
	length        uint32
}

func writeTextureHeader(b *chunktest.Builder, tex testTexture) {
	b.Chunk(IDTextureHeader, 1, func(b *chunktest.Builder) {
		b.String(tex.name, textureNameSize).String("", textureMaskNameSize)
		b.U16(tex.width).U16(tex.height).U32(tex.format)
		b.U8(tex.mips).U8(32).U16(tex.flags)
		b.U32(tex.offset).U32(tex.length)
	})
}

type testInstance struct {
	name   string
	hash   uint32
	byHash bool
	pos    mgl32.Vec3
	lod    float32
	sect   uint16
}

func writeInstances(b *chunktest.Builder, version uint32, declared int, insts ...testInstance) {
	b.Chunk(IDInstanceList, version, func(b *chunktest.Builder) {
		b.U32(uint32(declared))
		for _, in := range insts {
			kind := uint8(0)
			if in.byHash {
				kind = 1
			}
			b.U8(kind).Pad(3).String(in.name, instanceNameSize).U32(in.hash)
			if version == instancesFixed {
				for _, v := range []int16{4096, 0, 0, 0, 4096, 0, 0, 0, 4096} {
					b.I16(v)
				}
				b.Pad(2)
				for _, v := range in.pos {
					b.I32(int32(v * fixedPointOne))
				}
			} else {
				b.F32(1, 0, 0, 0, 1, 0, 0, 0, 1)
				b.F32(in.pos[:]...)
			}
			b.F32(in.lod).U16(in.sect).U16(0)
		}
	})
}

func buildWorld(order binary.ByteOrder, name string, version uint32, insts ...testInstance) []byte {
	return chunktest.New(order).Chunk(RootWorld, 1, func(b *chunktest.Builder) {
		b.Chunk(IDWorldHeader, 1, func(b *chunktest.Builder) {
			b.String(name, worldNameSize).U32(uint32(len(insts))).U32(2)
		})
		b.Chunk(IDSectionList, 1, func(b *chunktest.Builder) {
			b.U32(2)
			b.U16(0).U16(0).F32(0, 0, 0, 250)
			b.U16(7).U16(0).F32(0, 0, 0, 500)
		})
		writeInstances(b, version, len(insts), insts...)
	}).Bytes()
}
