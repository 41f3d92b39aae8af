package asset

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
)

// ModelRef names the model a world instance places, by name or by hash.
type ModelRef struct {
	Name   string
	Hash   uint32
	ByHash bool
}

func (r ModelRef) String() string {
	if r.ByHash {
		return fmt.Sprintf("#%08x", r.Hash)
	}
	return r.Name
}

// WorldInstance places one model.
type WorldInstance struct {
	Model       ModelRef
	Transform   mgl32.Mat4
	LODDistance float32
	SectionID   uint16
	Flags       uint16
	Link        ModelLink
}

// Position returns the translation part of the transform.
func (i *WorldInstance) Position() mgl32.Vec3 {
	return i.Transform.Col(3).Vec3()
}

// Section groups instances for streaming and LOD selection.
type Section struct {
	ID      uint16
	LODTier uint16
	Center  mgl32.Vec3
	Radius  float32
}

// World is a decoded world or map file.
type World struct {
	Name      string
	File      string
	Sections  []Section
	Instances []WorldInstance
}

// Section returns the section with the given id, or nil.
func (w *World) Section(id uint16) *Section {
	for i := range w.Sections {
		if w.Sections[i].ID == id {
			return &w.Sections[i]
		}
	}
	return nil
}

// InstancesInSection returns pointers to the instances grouped under id.
func (w *World) InstancesInSection(id uint16) []*WorldInstance {
	var out []*WorldInstance
	for i := range w.Instances {
		if w.Instances[i].SectionID == id {
			out = append(out, &w.Instances[i])
		}
	}
	return out
}
